package components

import (
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// SkeletonComponent 骨骼组件
// 持有实体的形状和当前姿势，是动画合成结果的写入目标（pose sink）。
type SkeletonComponent struct {
	// Shape 元素层级、静止姿势和关键帧轨道
	Shape *shape.Shape

	// Pose 每个元素当前的局部变换
	// 只包含被动画写入过的元素，未写入的元素使用静止姿势
	Pose map[string]animation.Transform

	// Dirty 本 tick 是否有元素被写入
	// 渲染端读取后自行清除
	Dirty bool
}

// NewSkeletonComponent 创建骨骼组件，初始为静止姿势
func NewSkeletonComponent(s *shape.Shape) *SkeletonComponent {
	return &SkeletonComponent{
		Shape: s,
		Pose:  make(map[string]animation.Transform),
	}
}

// RestTransform 元素的静止姿势
func (c *SkeletonComponent) RestTransform(name string) (animation.Transform, bool) {
	el, ok := c.Shape.Element(name)
	if !ok {
		return animation.Transform{}, false
	}
	return animation.TransformFromPose(el.Rest), true
}

// SetElementTransform 写入元素的局部变换，未知元素被忽略
func (c *SkeletonComponent) SetElementTransform(name string, t animation.Transform) {
	if _, ok := c.Shape.Element(name); !ok {
		return
	}
	c.Pose[name] = t
	c.Dirty = true
}

// ElementTransform 元素当前的局部变换（未写入时为静止姿势）
func (c *SkeletonComponent) ElementTransform(name string) (animation.Transform, bool) {
	if t, ok := c.Pose[name]; ok {
		return t, true
	}
	return c.RestTransform(name)
}

// LocalTransforms 按形状元素顺序返回所有元素的当前局部变换
func (c *SkeletonComponent) LocalTransforms() []animation.Transform {
	out := make([]animation.Transform, len(c.Shape.Elements))
	for i, el := range c.Shape.Elements {
		if t, ok := c.Pose[el.Name]; ok {
			out[i] = t
		} else {
			out[i] = animation.TransformFromPose(el.Rest)
		}
	}
	return out
}

// ResetPose 回到静止姿势
func (c *SkeletonComponent) ResetPose() {
	c.Pose = make(map[string]animation.Transform)
	c.Dirty = true
}

// Snapshot 所有元素当前局部变换的副本（按名称索引）
func (c *SkeletonComponent) Snapshot() map[string]animation.Transform {
	out := make(map[string]animation.Transform, len(c.Shape.Elements))
	for i, t := range c.LocalTransforms() {
		out[c.Shape.Elements[i].Name] = t
	}
	return out
}
