package systems

import (
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
)

// LifetimeSystem 管理限时实体的生命周期
type LifetimeSystem struct {
	entityManager *ecs.EntityManager
}

// NewLifetimeSystem 创建生命周期系统
func NewLifetimeSystem(em *ecs.EntityManager) *LifetimeSystem {
	return &LifetimeSystem{
		entityManager: em,
	}
}

// Update 推进所有限时实体，返回本次过期并被标记删除的实体
func (s *LifetimeSystem) Update(deltaTime float64) []ecs.EntityID {
	var expired []ecs.EntityID
	entities := ecs.GetEntitiesWith1[*components.LifetimeComponent](s.entityManager)

	for _, id := range entities {
		lifetime, ok := ecs.GetComponent[*components.LifetimeComponent](s.entityManager, id)
		if !ok {
			continue
		}

		lifetime.CurrentLifetime += deltaTime
		if lifetime.CurrentLifetime >= lifetime.MaxLifetime {
			lifetime.IsExpired = true
		}

		// 标记删除；动画管理器下一次 Tick 时发现目标失效
		if lifetime.IsExpired {
			s.entityManager.DestroyEntity(id)
			expired = append(expired, id)
		}
	}
	return expired
}
