package systems

import (
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
)

// WorldResolver 基于 ECS 世界的目标解析器
//
//   - Entity(id)：ID 为 id 的实体，需带 SkeletonComponent
//   - HeldItem：带 HeldItemComponent 的实体（最多一个）
type WorldResolver struct {
	entityManager *ecs.EntityManager
}

// NewWorldResolver 创建世界解析器
func NewWorldResolver(em *ecs.EntityManager) *WorldResolver {
	return &WorldResolver{entityManager: em}
}

func (r *WorldResolver) entityFor(target animation.Target) (ecs.EntityID, bool) {
	switch target.Type {
	case animation.TargetEntity:
		if target.EntityID <= 0 {
			return 0, false
		}
		return ecs.EntityID(target.EntityID), true
	case animation.TargetHeldItem:
		held := ecs.GetEntitiesWith1[*components.HeldItemComponent](r.entityManager)
		if len(held) == 0 {
			return 0, false
		}
		return held[0], true
	default:
		return 0, false
	}
}

func (r *WorldResolver) skeleton(target animation.Target) (*components.SkeletonComponent, bool) {
	id, ok := r.entityFor(target)
	if !ok || !r.entityManager.IsAlive(id) {
		return nil, false
	}
	skel, ok := ecs.GetComponent[*components.SkeletonComponent](r.entityManager, id)
	if !ok || skel == nil || skel.Shape == nil {
		return nil, false
	}
	return skel, true
}

// Alive 实体存活且带骨骼
func (r *WorldResolver) Alive(target animation.Target) bool {
	_, ok := r.skeleton(target)
	return ok
}

// Shape 实体骨骼的形状
func (r *WorldResolver) Shape(target animation.Target) (*shape.Shape, bool) {
	skel, ok := r.skeleton(target)
	if !ok {
		return nil, false
	}
	return skel.Shape, true
}

// Pose 实体骨骼组件本身就是写入端
func (r *WorldResolver) Pose(target animation.Target) (PoseSink, bool) {
	skel, ok := r.skeleton(target)
	if !ok {
		return nil, false
	}
	return skel, true
}
