package systems

import (
	"log"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
)

// AnimationData 动画注册数据
type AnimationData struct {
	// Code 形状中关键帧轨道的名称
	Code string
	// Cyclic 是否循环
	Cyclic bool
	// Shape 可选：指定时立即构建片段；为空时按目标的形状延迟构建
	Shape *shape.Shape
	// ElementWeight 可选：按元素覆盖权重
	ElementWeight map[string]float64
	// ElementBlend 可选：按元素覆盖混合方式
	ElementBlend map[string]animation.BlendMode
}

// settings 元素权重与混合方式：元素覆盖 > 类别 > 默认（权重 1）
func (d AnimationData) settings(category animation.Category) animation.ElementSettings {
	return func(name string) (float64, animation.BlendMode) {
		weight := 1.0
		if category.HasWeight {
			weight = category.Weight
		}
		if w, ok := d.ElementWeight[name]; ok {
			weight = w
		}
		blend := category.Blend
		if b, ok := d.ElementBlend[name]; ok {
			blend = b
		}
		return weight, blend
	}
}

// RegistryStats 注册表计数
type RegistryStats struct {
	// Registered 已注册的动画数
	Registered int
	// Prebuilt 注册时即构建好片段的动画数
	Prebuilt int
	// Pending 尚未为任何目标构建过片段的延迟动画数
	Pending int
	// Constructed 按目标缓存的片段数
	Constructed int
}

type registryEntry struct {
	data     AnimationData
	prebuilt *animation.Clip
}

type clipKey struct {
	id     animation.AnimationId
	target animation.Target
}

// AnimationRegistry 动画注册表
// 保存 AnimationId -> 注册数据，并按 (id, 目标) 缓存构建好的片段
type AnimationRegistry struct {
	resolver TargetResolver
	entries  map[animation.AnimationId]*registryEntry
	cache    map[clipKey]*animation.Clip
}

// NewAnimationRegistry 创建注册表
// resolver 用于延迟构建时查询目标形状，可以为 nil（此时只能使用预构建片段）
func NewAnimationRegistry(resolver TargetResolver) *AnimationRegistry {
	return &AnimationRegistry{
		resolver: resolver,
		entries:  make(map[animation.AnimationId]*registryEntry),
		cache:    make(map[clipKey]*animation.Clip),
	}
}

// SetResolver 设置目标解析器
func (r *AnimationRegistry) SetResolver(resolver TargetResolver) {
	r.resolver = resolver
}

// Register 注册动画
// id 已有预构建片段时返回 false；已注册但尚未构建的动画被新数据替换，
// 其按目标缓存的片段一并丢弃。指定了 Shape 但片段构建失败时返回 false，且不改变注册。
func (r *AnimationRegistry) Register(id animation.AnimationId, data AnimationData) bool {
	existing, exists := r.entries[id]
	if exists && existing.prebuilt != nil {
		log.Printf("[AnimationRegistry] Animation %s is already registered", id)
		return false
	}

	entry := &registryEntry{data: data}
	if data.Shape != nil {
		clip, err := animation.BuildClip(data.Shape, data.Code, data.Cyclic, data.settings(id.Category))
		if err != nil {
			log.Printf("[AnimationRegistry] Failed to build %s: %v", id, err)
			return false
		}
		entry.prebuilt = clip
	}

	if exists {
		verbosef("[AnimationRegistry] Replacing source data of %s", id)
		r.dropCached(id)
	}
	r.entries[id] = entry
	return true
}

// Registered 是否已注册
func (r *AnimationRegistry) Registered(id animation.AnimationId) bool {
	_, ok := r.entries[id]
	return ok
}

// Get 获取 id 在 target 上的片段
// 顺序：预构建片段 → (id, target) 缓存 → 解析目标形状并构建、缓存
func (r *AnimationRegistry) Get(id animation.AnimationId, target animation.Target) (*animation.Clip, bool) {
	entry, ok := r.entries[id]
	if !ok {
		verbosef("[AnimationRegistry] Animation %s is not registered, skipping", id)
		return nil, false
	}
	if entry.prebuilt != nil {
		return entry.prebuilt, true
	}

	key := clipKey{id: id, target: target}
	if clip, ok := r.cache[key]; ok {
		return clip, true
	}

	if r.resolver == nil {
		verbosef("[AnimationRegistry] No resolver to construct %s for %s, skipping", id, target)
		return nil, false
	}
	s, ok := r.resolver.Shape(target)
	if !ok {
		verbosef("[AnimationRegistry] No shape for %s, skipping %s", target, id)
		return nil, false
	}

	clip, err := animation.BuildClip(s, entry.data.Code, entry.data.Cyclic, entry.data.settings(id.Category))
	if err != nil {
		verbosef("[AnimationRegistry] Failed to construct %s for %s: %v", id, target, err)
		return nil, false
	}
	r.cache[key] = clip
	return clip, true
}

// Forget 丢弃目标的所有缓存片段（目标失效时调用）
func (r *AnimationRegistry) Forget(target animation.Target) {
	for key := range r.cache {
		if key.target == target {
			delete(r.cache, key)
		}
	}
}

// Reset 丢弃所有延迟构建的片段（形状热重载后调用）
func (r *AnimationRegistry) Reset() {
	r.cache = make(map[clipKey]*animation.Clip)
}

// Unregister 移除注册（热重载时替换定义）
func (r *AnimationRegistry) Unregister(id animation.AnimationId) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.dropCached(id)
	return true
}

func (r *AnimationRegistry) dropCached(id animation.AnimationId) {
	for key := range r.cache {
		if key.id == id {
			delete(r.cache, key)
		}
	}
}

// Stats 注册表计数
func (r *AnimationRegistry) Stats() RegistryStats {
	stats := RegistryStats{Registered: len(r.entries), Constructed: len(r.cache)}
	constructed := make(map[animation.AnimationId]bool)
	for key := range r.cache {
		constructed[key.id] = true
	}
	for id, entry := range r.entries {
		switch {
		case entry.prebuilt != nil:
			stats.Prebuilt++
		case !constructed[id]:
			stats.Pending++
		}
	}
	return stats
}
