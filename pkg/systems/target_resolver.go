package systems

import (
	"log"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// PoseSink 姿势写入端
// 宿主骨骼实现该接口，接收合成后的元素变换
type PoseSink interface {
	// RestTransform 元素的静止姿势，未知元素返回 false
	RestTransform(name string) (animation.Transform, bool)
	// SetElementTransform 写入元素的最终局部变换
	SetElementTransform(name string, t animation.Transform)
}

// TargetResolver 动画目标解析
// 由宿主实现，动画核心通过它查询目标是否存活、形状和姿势写入端
type TargetResolver interface {
	// Alive 目标是否仍然存在
	Alive(target animation.Target) bool
	// Shape 目标当前使用的形状（用于延迟构建片段）
	Shape(target animation.Target) (*shape.Shape, bool)
	// Pose 目标的姿势写入端
	Pose(target animation.Target) (PoseSink, bool)
}

// Verbose 是否输出逐条跳过日志
var Verbose = false

func verbosef(format string, args ...interface{}) {
	if Verbose {
		log.Printf(format, args...)
	}
}
