package components

import "github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"

// PlacementComponent 实体在场景中的位置（骨骼根元素的世界偏移）
type PlacementComponent struct {
	Position utils.Vec3
	// Label 查看器中显示的名称
	Label string
}
