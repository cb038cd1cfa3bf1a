// Package skeleton 前向运动学：由局部姿势和元素层级计算世界矩阵，
// 并投影到 2D 供调试绘制和姿势表使用。
package skeleton

import (
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Joint 一个元素的世界空间结果
type Joint struct {
	Name   string
	Parent int // -1 表示根
	World  Mat4
}

// Position 关节原点的世界坐标
func (j Joint) Position() utils.Vec3 {
	return j.World.Translation()
}

// LocalMatrix 局部变换矩阵：先旋转后平移
func LocalMatrix(t animation.Transform) Mat4 {
	return Compose(EulerDegrees(t.Rotation), t.Translation)
}

// Solve 计算所有元素的世界矩阵
// locals 按 s.Elements 顺序给出；形状保证父元素先于子元素声明。
// locals 长度不足时缺失的元素使用静止姿势。
func Solve(s *shape.Shape, locals []animation.Transform) []Joint {
	if s == nil {
		return nil
	}
	joints := make([]Joint, len(s.Elements))
	for i, el := range s.Elements {
		local := animation.TransformFromPose(el.Rest)
		if i < len(locals) {
			local = locals[i]
		}

		parent := -1
		if el.Parent != "" {
			parent = s.ElementIndex(el.Parent)
		}

		m := LocalMatrix(local)
		if parent >= 0 && parent < i {
			m = joints[parent].World.Mul(m)
		} else {
			parent = -1
		}
		joints[i] = Joint{Name: el.Name, Parent: parent, World: m}
	}
	return joints
}

// Segment 一根骨骼：父关节到子关节
type Segment struct {
	From, To utils.Vec3
	Name     string
}

// Segments 返回所有有父元素的骨骼线段
func Segments(joints []Joint) []Segment {
	segments := make([]Segment, 0, len(joints))
	for _, j := range joints {
		if j.Parent < 0 {
			continue
		}
		segments = append(segments, Segment{
			From: joints[j.Parent].Position(),
			To:   j.Position(),
			Name: j.Name,
		})
	}
	return segments
}

// Translate 把所有关节整体平移 offset（实体在世界中的放置）
func Translate(joints []Joint, offset utils.Vec3) {
	for i := range joints {
		joints[i].World[3] += offset[0]
		joints[i].World[7] += offset[1]
		joints[i].World[11] += offset[2]
	}
}
