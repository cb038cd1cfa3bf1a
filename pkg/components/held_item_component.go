package components

import "github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"

// HeldItemComponent 标记第一人称手持物品实体
// 世界中最多一个实体带有该组件，它就是 HeldItem 动画目标。
type HeldItemComponent struct {
	// Owner 持有者实体
	Owner ecs.EntityID
}
