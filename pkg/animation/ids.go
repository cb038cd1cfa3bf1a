// Package animation 程序化骨骼动画的数据模型与合成核心
//
// 主要类型：
//   - Target：动画目标（实体或手持物品）
//   - AnimationId / Category：动画标识与混合类别
//   - RunParameters / Request：单个动画动作的参数
//   - Clip：不可变的关键帧片段
//   - AnimatorInstance：单个动画在单个目标上的播放状态机
//   - FrameComposer：按目标混合所有正在播放的动画
package animation

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"strings"
)

// TargetType 动画目标类型
type TargetType int

const (
	// TargetEntity 世界中的某个实体
	TargetEntity TargetType = iota
	// TargetHeldItem 第一人称下手持的物品（不参与网络同步）
	TargetHeldItem
)

func (t TargetType) String() string {
	switch t {
	case TargetEntity:
		return "entity"
	case TargetHeldItem:
		return "held_item"
	default:
		return fmt.Sprintf("TargetType(%d)", int(t))
	}
}

// Target 动画目标
// 可比较的值类型，直接用作 map 键
type Target struct {
	Type     TargetType `json:"type"`
	EntityID int64      `json:"entity_id"`
}

// EntityTarget 创建实体目标
func EntityTarget(entityID int64) Target {
	return Target{Type: TargetEntity, EntityID: entityID}
}

// HeldItemTarget 创建手持物品目标
func HeldItemTarget() Target {
	return Target{Type: TargetHeldItem}
}

func (t Target) String() string {
	if t.Type == TargetHeldItem {
		return "(held_item)"
	}
	return fmt.Sprintf("(entity: %d)", t.EntityID)
}

// BlendMode 类别混合方式
type BlendMode int

const (
	// BlendAverage 按权重加权平均，累计权重不超过上限
	BlendAverage BlendMode = iota
	// BlendAdd 叠加增量
	BlendAdd
)

func (b BlendMode) String() string {
	switch b {
	case BlendAverage:
		return "average"
	case BlendAdd:
		return "add"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(b))
	}
}

// ParseBlendMode 从配置字符串解析混合方式
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "average", "avg", "":
		return BlendAverage, nil
	case "add", "additive":
		return BlendAdd, nil
	default:
		return BlendAverage, fmt.Errorf("unknown blend mode: %s", s)
	}
}

// Category 动画类别
// 同一类别下的动画共享混合方式与默认权重
type Category struct {
	Name      string    `json:"name"`
	Blend     BlendMode `json:"blend"`
	Weight    float64   `json:"weight,omitempty"`
	HasWeight bool      `json:"has_weight,omitempty"`
}

// NewCategory 创建未指定权重的类别
func NewCategory(name string, blend BlendMode) Category {
	return Category{Name: name, Blend: blend}
}

// WithWeight 返回带默认权重的类别副本
func (c Category) WithWeight(weight float64) Category {
	c.Weight = weight
	c.HasWeight = true
	return c
}

// Hash 类别哈希（名称 + 混合方式 + 权重）
func (c Category) Hash() uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(c.Name))
	var buf [9]byte
	buf[0] = byte(c.Blend)
	if c.HasWeight {
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(c.Weight))
	}
	h.Write(buf[:])
	return h.Sum32()
}

func (c Category) String() string {
	if c.HasWeight {
		return fmt.Sprintf("%s (%s, weight: %.2f)", c.Name, c.Blend, c.Weight)
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Blend)
}

// AnimationId 动画标识
// 同名动画在不同类别下是不同的标识
type AnimationId struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
}

// NewAnimationId 创建动画标识
func NewAnimationId(category Category, name string) AnimationId {
	return AnimationId{Category: category, Name: name}
}

// Hash 动画标识哈希，组合名称哈希与类别哈希
func (id AnimationId) Hash() uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], crc32.ChecksumIEEE([]byte(id.Name)))
	binary.LittleEndian.PutUint32(buf[4:], id.Category.Hash())
	return crc32.ChecksumIEEE(buf[:])
}

func (id AnimationId) String() string {
	return fmt.Sprintf("%s/%s", id.Category.Name, id.Name)
}

// less 稳定排序：先按哈希，再按名称
func (id AnimationId) less(other AnimationId) bool {
	a, b := id.Hash(), other.Hash()
	if a != b {
		return a < b
	}
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	if id.Category.Name != other.Category.Name {
		return id.Category.Name < other.Category.Name
	}
	if id.Category.Blend != other.Category.Blend {
		return id.Category.Blend < other.Category.Blend
	}
	return id.Category.Weight < other.Category.Weight
}
