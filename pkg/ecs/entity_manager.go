// Package ecs 宿主世界的实体容器
// 动画目标通过实体 ID 引用这里的实体，骨骼组件挂在实体上。
package ecs

import (
	"reflect"
	"sort"
)

// EntityID 是实体的唯一标识符，0 保留为无效 ID
type EntityID uint64

// EntityManager 管理所有实体和组件
// 只在模拟线程上使用，不做并发保护
type EntityManager struct {
	nextID uint64
	// EntityID -> 组件类型 -> 组件实例
	components map[EntityID]map[reflect.Type]interface{}
	// 已标记销毁、等待 RemoveMarkedEntities 的实体
	marked map[EntityID]struct{}
}

// NewEntityManager 创建一个新的 EntityManager 实例
func NewEntityManager() *EntityManager {
	return &EntityManager{
		nextID:     1,
		components: make(map[EntityID]map[reflect.Type]interface{}),
		marked:     make(map[EntityID]struct{}),
	}
}

// CreateEntity 创建新实体并返回唯一ID
func (em *EntityManager) CreateEntity() EntityID {
	id := EntityID(em.nextID)
	em.nextID++
	em.components[id] = make(map[reflect.Type]interface{})
	return id
}

// CreateEntityWithID 以指定 ID 创建实体（例如与远端对齐的实体）
// ID 已存在或为 0 时返回 false
func (em *EntityManager) CreateEntityWithID(id EntityID) bool {
	if id == 0 {
		return false
	}
	if _, exists := em.components[id]; exists {
		return false
	}
	em.components[id] = make(map[reflect.Type]interface{})
	if uint64(id) >= em.nextID {
		em.nextID = uint64(id) + 1
	}
	return true
}

// DestroyEntity 标记实体待删除(不立即删除)
// 标记后 IsAlive 立即返回 false
func (em *EntityManager) DestroyEntity(id EntityID) {
	if _, exists := em.components[id]; exists {
		em.marked[id] = struct{}{}
	}
}

// IsAlive 实体存在且未被标记删除
func (em *EntityManager) IsAlive(id EntityID) bool {
	if _, exists := em.components[id]; !exists {
		return false
	}
	_, dying := em.marked[id]
	return !dying
}

// AddComponent 为实体添加组件，同类型组件会被替换
func (em *EntityManager) AddComponent(id EntityID, component interface{}) {
	componentType := reflect.TypeOf(component)
	if compMap, exists := em.components[id]; exists {
		compMap[componentType] = component
	}
}

// RemoveComponent 从实体移除指定类型的组件
func (em *EntityManager) RemoveComponent(id EntityID, componentType reflect.Type) {
	if compMap, exists := em.components[id]; exists {
		delete(compMap, componentType)
	}
}

// GetComponent 获取实体的特定类型组件
func (em *EntityManager) GetComponent(id EntityID, componentType reflect.Type) (interface{}, bool) {
	if compMap, exists := em.components[id]; exists {
		if comp, found := compMap[componentType]; found {
			return comp, true
		}
	}
	return nil, false
}

// HasComponent 检查实体是否拥有特定类型组件
func (em *EntityManager) HasComponent(id EntityID, componentType reflect.Type) bool {
	_, found := em.GetComponent(id, componentType)
	return found
}

// RemoveMarkedEntities 清理所有标记删除的实体，返回被删除的 ID（升序）
func (em *EntityManager) RemoveMarkedEntities() []EntityID {
	removed := make([]EntityID, 0, len(em.marked))
	for id := range em.marked {
		delete(em.components, id)
		removed = append(removed, id)
	}
	em.marked = make(map[EntityID]struct{})
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// GetEntitiesWith 查询拥有指定组件类型组合的所有存活实体（升序）
func (em *EntityManager) GetEntitiesWith(componentTypes ...reflect.Type) []EntityID {
	result := make([]EntityID, 0)

	for id, compMap := range em.components {
		if _, dying := em.marked[id]; dying {
			continue
		}
		hasAll := true
		for _, ct := range componentTypes {
			if _, found := compMap[ct]; !found {
				hasAll = false
				break
			}
		}
		if hasAll {
			result = append(result, id)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// EntityCount 实体总数（包括已标记删除但尚未清理的）
func (em *EntityManager) EntityCount() int {
	return len(em.components)
}
