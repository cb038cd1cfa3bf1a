package animation

import (
	"sort"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Transform 元素局部变换：平移 + 欧拉角旋转（角度制）
type Transform struct {
	Translation utils.Vec3 `json:"translation" yaml:"translation"`
	Rotation    utils.Vec3 `json:"rotation" yaml:"rotation"`
}

// TransformFromPose 从形状姿势转换
func TransformFromPose(p shape.Pose) Transform {
	return Transform{Translation: p.Offset, Rotation: p.Rotation}
}

func (t Transform) Add(o Transform) Transform {
	return Transform{Translation: t.Translation.Add(o.Translation), Rotation: t.Rotation.Add(o.Rotation)}
}

func (t Transform) Scale(s float64) Transform {
	return Transform{Translation: t.Translation.Scale(s), Rotation: t.Rotation.Scale(s)}
}

// LerpTransform 逐分量线性插值
func LerpTransform(a, b Transform, t float64) Transform {
	return Transform{
		Translation: utils.LerpVec3(a.Translation, b.Translation, t),
		Rotation:    utils.LerpVec3(a.Rotation, b.Rotation, t),
	}
}

// NearlyEqual 平移与旋转各分量误差均不超过 eps
func (t Transform) NearlyEqual(o Transform, eps float64) bool {
	return t.Translation.NearlyEqual(o.Translation, eps) && t.Rotation.NearlyEqual(o.Rotation, eps)
}

// ElementFrame 单个元素在一帧中的取值
// Ease 是动画内部的进度权重（包络与过渡），关键帧中为 1；
// Weight 是元素权重 × Ease，平均混合时用于计算竞争总和。
type ElementFrame struct {
	Transform Transform
	Weight    float64
	Ease      float64
	Blend     BlendMode
}

// Frame 元素名 -> 取值
// 既用于片段关键帧，也用于动画实例每次计算的贡献
type Frame map[string]ElementFrame

// Elements 按名称排序的元素列表
func (f Frame) Elements() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScaleWeights 返回权重与 Ease 整体乘以 s 的副本
func (f Frame) ScaleWeights(s float64) Frame {
	out := make(Frame, len(f))
	for name, el := range f {
		el.Weight *= s
		el.Ease *= s
		out[name] = el
	}
	return out
}

// LerpFrames 在两帧之间插值
// 只在一侧出现的元素取该侧的值（包括权重）
func LerpFrames(a, b Frame, t float64) Frame {
	out := make(Frame, len(a)+len(b))
	for name, ea := range a {
		eb, ok := b[name]
		if !ok {
			out[name] = ea
			continue
		}
		out[name] = ElementFrame{
			Transform: LerpTransform(ea.Transform, eb.Transform, t),
			Weight:    utils.Lerp(ea.Weight, eb.Weight, t),
			Ease:      utils.Lerp(ea.Ease, eb.Ease, t),
			Blend:     eb.Blend,
		}
	}
	for name, eb := range b {
		if _, ok := a[name]; !ok {
			out[name] = eb
		}
	}
	return out
}

// ComposedElement 合成后的单个元素
type ComposedElement struct {
	// Transform 平均混合的加权结果
	Transform Transform
	// Weight 平均混合的累计权重 ∈ [0, 1]
	Weight float64
	// Additive 叠加混合的增量之和
	Additive Transform
}

// Apply 作用到静止姿势：lerp(rest, Transform, Weight) + Additive
func (c ComposedElement) Apply(rest Transform) Transform {
	return LerpTransform(rest, c.Transform, c.Weight).Add(c.Additive)
}

// AnimationFrame 一个目标在一个 tick 的合成结果
type AnimationFrame struct {
	Elements map[string]ComposedElement
}

// NewAnimationFrame 创建空的合成帧
func NewAnimationFrame() AnimationFrame {
	return AnimationFrame{Elements: make(map[string]ComposedElement)}
}

// Empty 没有任何元素
func (f AnimationFrame) Empty() bool {
	return len(f.Elements) == 0
}
