package animation

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// DefaultWeightCap 平均混合的默认权重上限
const DefaultWeightCap = 1.0

// ErrClipNotRegistered 请求的动画没有在合成器中注册片段
var ErrClipNotRegistered = errors.New("animation clip not registered in composer")

// StatusCallback 动画实例离开运行状态时回调一次
//
// status 为 StatusFinished / StatusStopped 表示动作正常结束；
// status 为 StatusRunning 表示该实例在运行中被另一个请求接管。
type StatusCallback func(status Status)

type composerEntry struct {
	id       AnimationId
	clip     *Clip
	instance *AnimatorInstance
	request  Request
	callback StatusCallback
}

// FrameComposer 单个目标的帧合成器
// 每个 AnimationId 最多一个动画实例，按稳定顺序混合所有实例的贡献
type FrameComposer struct {
	clips     map[AnimationId]*Clip
	entries   map[AnimationId]*composerEntry
	weightCap float64
}

// NewFrameComposer 创建帧合成器，weightCap <= 0 时使用默认上限 1
func NewFrameComposer(weightCap float64) *FrameComposer {
	if weightCap <= 0 {
		weightCap = DefaultWeightCap
	}
	return &FrameComposer{
		clips:     make(map[AnimationId]*Clip),
		entries:   make(map[AnimationId]*composerEntry),
		weightCap: weightCap,
	}
}

// Register 注册片段，已注册时返回 false
func (c *FrameComposer) Register(id AnimationId, clip *Clip) bool {
	if clip == nil {
		return false
	}
	if _, exists := c.clips[id]; exists {
		return false
	}
	c.clips[id] = clip
	return true
}

// Registered 是否已注册该动画
func (c *FrameComposer) Registered(id AnimationId) bool {
	_, ok := c.clips[id]
	return ok
}

// Run 在该动画的实例上执行请求
// 若实例仍在为另一个请求运行，旧回调以 StatusRunning 通知被接管
func (c *FrameComposer) Run(request Request, callback StatusCallback) error {
	clip, ok := c.clips[request.Animation]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClipNotRegistered, request.Animation)
	}

	entry, exists := c.entries[request.Animation]
	if !exists {
		entry = &composerEntry{
			id:       request.Animation,
			instance: NewAnimatorInstance(),
		}
		c.entries[request.Animation] = entry
	}

	superseded := entry.callback
	if entry.instance.Status() != StatusRunning {
		superseded = nil
	}

	entry.clip = clip
	entry.request = request
	entry.callback = callback
	entry.instance.Run(request.Parameters, clip)

	if superseded != nil {
		safeCallback(superseded, StatusRunning, request.Animation)
	}
	return nil
}

// Stop 停止该动画，保持当前姿势，不再触发回调
func (c *FrameComposer) Stop(request Request) {
	entry, ok := c.entries[request.Animation]
	if !ok {
		return
	}
	entry.callback = nil
	entry.request = Request{Animation: request.Animation, Parameters: Stop()}
	entry.instance.Run(Stop(), entry.clip)
}

// Instance 返回该动画的实例（测试与调试用）
func (c *FrameComposer) Instance(id AnimationId) (*AnimatorInstance, bool) {
	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return entry.instance, true
}

// InstanceCount 当前实例数
func (c *FrameComposer) InstanceCount() int {
	return len(c.entries)
}

type pendingCallback struct {
	id       AnimationId
	callback StatusCallback
	status   Status
}

type averageAccumulator struct {
	transforms []Transform
	weights    []float64
	eases      []float64
}

// Compose 推进所有实例 dt 并混合成一帧
//
//   - 叠加类：Additive = Σ wᵢ·Tᵢ
//   - 平均类：bᵢ = clamp(eᵢ / max(weightCap, Σwᵢ·eᵢ), 0, 1)，
//     Transform = Σ bᵢ·Tᵢ / Σ bᵢ，Weight = clamp(Σ bᵢ, 0, 1)
//
// 回调在全部实例计算完后触发，回调中可以安全地再次调用 Run。
func (c *FrameComposer) Compose(dt time.Duration) AnimationFrame {
	ids := make([]AnimationId, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].less(ids[j]) })

	additive := make(map[string]Transform)
	average := make(map[string]*averageAccumulator)
	var pending []pendingCallback
	var pruned []AnimationId

	for _, id := range ids {
		entry := c.entries[id]
		before := entry.instance.Status()

		frame, status, err := safeCalculate(entry.instance, dt)
		if err != nil {
			log.Printf("[FrameComposer] Error: animation %s panicked, dropping it: %v", id, err)
			pruned = append(pruned, id)
			if entry.callback != nil {
				pending = append(pending, pendingCallback{id: id, callback: entry.callback, status: StatusFinished})
				entry.callback = nil
			}
			continue
		}

		if before == StatusRunning && status != StatusRunning && entry.callback != nil {
			pending = append(pending, pendingCallback{id: id, callback: entry.callback, status: status})
			entry.callback = nil
		}
		if status != StatusRunning && !entry.instance.Contributes() {
			pruned = append(pruned, id)
		}

		for _, name := range frame.Elements() {
			el := frame[name]
			if el.Weight <= 0 {
				continue
			}
			switch el.Blend {
			case BlendAdd:
				additive[name] = additive[name].Add(el.Transform.Scale(el.Weight))
			default:
				acc, ok := average[name]
				if !ok {
					acc = &averageAccumulator{}
					average[name] = acc
				}
				acc.transforms = append(acc.transforms, el.Transform)
				acc.weights = append(acc.weights, el.Weight)
				acc.eases = append(acc.eases, el.Ease)
			}
		}
	}

	for _, id := range pruned {
		delete(c.entries, id)
	}

	result := NewAnimationFrame()
	for name, acc := range average {
		el := c.blendAverage(acc)
		if el.Weight > 0 {
			result.Elements[name] = el
		}
	}
	for name, add := range additive {
		if add == (Transform{}) {
			continue
		}
		el := result.Elements[name]
		el.Additive = add
		result.Elements[name] = el
	}

	for _, p := range pending {
		safeCallback(p.callback, p.status, p.id)
	}
	return result
}

// blendAverage 平均混合单个元素
// 单独的实例按自身 Ease 生效，元素权重只计入竞争总和
func (c *FrameComposer) blendAverage(acc *averageAccumulator) ComposedElement {
	sum := 0.0
	for _, w := range acc.weights {
		sum += w
	}
	denom := sum
	if denom < c.weightCap {
		denom = c.weightCap
	}
	if denom <= 0 {
		return ComposedElement{}
	}

	var weighted Transform
	bSum := 0.0
	for i, e := range acc.eases {
		b := utils.Clamp01(e / denom)
		weighted = weighted.Add(acc.transforms[i].Scale(b))
		bSum += b
	}
	if bSum <= 0 {
		return ComposedElement{}
	}
	return ComposedElement{
		Transform: weighted.Scale(1 / bSum),
		Weight:    utils.Clamp01(bSum),
	}
}

func safeCalculate(instance *AnimatorInstance, dt time.Duration) (frame Frame, status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	frame, status = instance.Calculate(dt)
	return frame, status, nil
}

func safeCallback(cb StatusCallback, status Status, id AnimationId) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[FrameComposer] Error: status callback for %s panicked: %v", id, r)
		}
	}()
	cb(status)
}
