package systems

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/netsync"
)

var (
	// ErrEmptySequence Run 没有任何请求
	ErrEmptySequence = errors.New("animation run requires at least one request")
	// ErrNoPlayableRequests 所有请求的片段都无法解析
	ErrNoPlayableRequests = errors.New("no request in the run could be resolved to a clip")
	// ErrDuplicateRun 指定的运行 ID 已在运行中
	ErrDuplicateRun = errors.New("run id is already active")
)

// RunOptions Run 的可选参数
type RunOptions struct {
	// ID 指定运行 ID，uuid.Nil 时自动生成
	ID uuid.UUID
	// Synchronize 是否通过同步器广播
	Synchronize bool
	// FromRemote 来自远端的运行，不再次广播
	FromRemote bool
}

// runState 一次 Run 的执行状态
type runState struct {
	id           uuid.UUID
	target       animation.Target
	requests     []animation.Request
	next         int
	current      animation.Request
	synchronized bool
}

// AnimationManager 动画管理器
//
// 每个目标一个 FrameComposer；一次 Run 是一个请求序列，
// 前一个请求的实例离开运行状态后自动执行下一个。
// Run / Stop / Tick 必须在同一个（模拟）线程上调用。
type AnimationManager struct {
	registry     *AnimationRegistry
	resolver     TargetResolver
	synchronizer netsync.Synchronizer
	events       *EventHub

	composers map[animation.Target]*animation.FrameComposer
	applied   map[animation.Target]map[string]struct{} // 上一 tick 写入的元素
	runs      map[uuid.UUID]*runState
	weightCap float64
}

// NewAnimationManager 创建动画管理器
func NewAnimationManager(registry *AnimationRegistry, resolver TargetResolver) *AnimationManager {
	return &AnimationManager{
		registry:  registry,
		resolver:  resolver,
		events:    NewEventHub(),
		composers: make(map[animation.Target]*animation.FrameComposer),
		applied:   make(map[animation.Target]map[string]struct{}),
		runs:      make(map[uuid.UUID]*runState),
		weightCap: animation.DefaultWeightCap,
	}
}

// SetSynchronizer 设置网络同步器，nil 表示不同步
func (m *AnimationManager) SetSynchronizer(s netsync.Synchronizer) {
	m.synchronizer = s
}

// SetWeightCap 设置平均混合的权重上限（只影响之后创建的合成器）
func (m *AnimationManager) SetWeightCap(weightCap float64) {
	if weightCap <= 0 {
		weightCap = animation.DefaultWeightCap
	}
	m.weightCap = weightCap
}

// Registry 动画注册表
func (m *AnimationManager) Registry() *AnimationRegistry {
	return m.registry
}

// Events 事件分发器
func (m *AnimationManager) Events() *EventHub {
	return m.events
}

// Register 注册动画（转发到注册表）
func (m *AnimationManager) Register(id animation.AnimationId, data AnimationData) bool {
	return m.registry.Register(id, data)
}

// Run 在目标上执行请求序列（默认参与同步）
func (m *AnimationManager) Run(target animation.Target, requests ...animation.Request) (uuid.UUID, error) {
	return m.RunWithOptions(RunOptions{Synchronize: true}, target, requests...)
}

// RunAnimation 用多个参数依次执行同一个动画
func (m *AnimationManager) RunAnimation(target animation.Target, id animation.AnimationId, params ...animation.RunParameters) (uuid.UUID, error) {
	return m.Run(target, animation.RequestsFor(id, params...)...)
}

// RunWithOptions 在目标上执行请求序列
//
// 无法解析片段的请求被跳过（记录日志），其余请求照常执行；
// 全部无法解析时返回 ErrNoPlayableRequests，且不改变任何状态。
func (m *AnimationManager) RunWithOptions(opts RunOptions, target animation.Target, requests ...animation.Request) (uuid.UUID, error) {
	if len(requests) == 0 {
		return uuid.Nil, ErrEmptySequence
	}

	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, exists := m.runs[id]; exists {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateRun, id)
	}

	m.validateTargets()

	type resolved struct {
		request animation.Request
		clip    *animation.Clip
	}
	playable := make([]resolved, 0, len(requests))
	for _, r := range requests {
		clip, ok := m.registry.Get(r.Animation, target)
		if !ok {
			log.Printf("[AnimationManager] Failed to get animation %s for %s, skipping request", r.Animation, target)
			continue
		}
		playable = append(playable, resolved{request: r, clip: clip})
	}
	if len(playable) == 0 {
		return uuid.Nil, ErrNoPlayableRequests
	}

	composer, ok := m.composers[target]
	if !ok {
		composer = animation.NewFrameComposer(m.weightCap)
		m.composers[target] = composer
	}

	run := &runState{
		id:       id,
		target:   target,
		requests: make([]animation.Request, 0, len(playable)),
	}
	for _, p := range playable {
		composer.Register(p.request.Animation, p.clip)
		run.requests = append(run.requests, p.request)
	}
	m.runs[id] = run

	if opts.Synchronize && !opts.FromRemote && target.Type != animation.TargetHeldItem && m.synchronizer != nil {
		packet := netsync.RunPacket{RunID: id, Target: target, Requests: run.requests}
		if err := m.synchronizer.SyncRun(packet); err != nil {
			log.Printf("[AnimationManager] Warning: failed to synchronize run %s: %v", id, err)
		} else {
			run.synchronized = true
		}
	}

	if !m.startNext(run) {
		m.releaseRun(run, true)
		return uuid.Nil, ErrNoPlayableRequests
	}
	m.events.Publish(Event{Type: EventRunStarted, RunID: id, Target: target, Request: run.current})
	return id, nil
}

// startNext 执行运行中的下一个请求，没有可执行的请求时返回 false
func (m *AnimationManager) startNext(run *runState) bool {
	composer, ok := m.composers[run.target]
	if !ok {
		return false
	}
	for run.next < len(run.requests) {
		request := run.requests[run.next]
		run.next++
		run.current = request

		runID := run.id
		if err := composer.Run(request, func(status animation.Status) { m.advanceRun(runID, status) }); err != nil {
			log.Printf("[AnimationManager] Failed to run %s: %v", request, err)
			continue
		}
		return true
	}
	return false
}

// advanceRun 合成器回调：当前请求结束后推进运行
func (m *AnimationManager) advanceRun(runID uuid.UUID, status animation.Status) {
	run, ok := m.runs[runID]
	if !ok {
		return
	}

	switch status {
	case animation.StatusRunning:
		// 被其他运行接管
		m.releaseRun(run, true)
		m.events.Publish(Event{Type: EventRunStopped, RunID: runID, Target: run.target})
	case animation.StatusStopped, animation.StatusFinished:
		if m.startNext(run) {
			m.events.Publish(Event{Type: EventRunAdvanced, RunID: runID, Target: run.target, Request: run.current})
			return
		}
		m.releaseRun(run, true)
		m.events.Publish(Event{Type: EventRunFinished, RunID: runID, Target: run.target})
	}
}

// releaseRun 删除运行记录，按需发送停止包
func (m *AnimationManager) releaseRun(run *runState, synchronize bool) {
	delete(m.runs, run.id)
	if run.synchronized && synchronize && m.synchronizer != nil {
		if err := m.synchronizer.SyncStop(netsync.StopPacket{RunID: run.id}); err != nil {
			log.Printf("[AnimationManager] Warning: failed to synchronize stop %s: %v", run.id, err)
		}
	}
	run.synchronized = false
}

// Stop 停止运行：当前动画停在当前姿势，剩余请求丢弃
// 运行不存在时返回 false
func (m *AnimationManager) Stop(runID uuid.UUID) bool {
	return m.stop(runID, true)
}

func (m *AnimationManager) stop(runID uuid.UUID, synchronize bool) bool {
	run, ok := m.runs[runID]
	if !ok {
		return false
	}
	if composer, ok := m.composers[run.target]; ok {
		composer.Stop(run.current)
	}
	m.releaseRun(run, synchronize)
	m.events.Publish(Event{Type: EventRunStopped, RunID: runID, Target: run.target})
	return true
}

// OnRemoteRun 远端运行：以远端的运行 ID 执行，不再次同步
func (m *AnimationManager) OnRemoteRun(packet netsync.RunPacket) {
	opts := RunOptions{ID: packet.RunID, Synchronize: true, FromRemote: true}
	if _, err := m.RunWithOptions(opts, packet.Target, packet.Requests...); err != nil {
		log.Printf("[AnimationManager] Failed to run remote %s on %s: %v", packet.RunID, packet.Target, err)
	}
}

// OnRemoteStop 远端停止，不再次同步
func (m *AnimationManager) OnRemoteStop(packet netsync.StopPacket) {
	m.stop(packet.RunID, false)
}

// Tick 推进所有目标 dt 秒并把合成结果写入姿势
//
// 顺序：清理失效目标 → 按目标顺序合成并写入 → 处理入站同步包。
// 任何 panic 都在这里被捕获并记录。
func (m *AnimationManager) Tick(dt float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AnimationManager] Error: recovered from panic during tick: %v", r)
		}
	}()

	m.validateTargets()

	elapsed := time.Duration(dt * float64(time.Second))
	for _, target := range m.sortedTargets() {
		composer, ok := m.composers[target]
		if !ok {
			continue
		}
		frame, ok := m.compose(target, composer, elapsed)
		if !ok {
			continue
		}
		if m.resolver == nil {
			continue
		}
		sink, ok := m.resolver.Pose(target)
		if !ok {
			continue
		}
		m.applied[target] = ApplyFrame(frame, sink, m.applied[target])
	}

	if pumper, ok := m.synchronizer.(netsync.Pumper); ok {
		pumper.Pump(m)
	}
}

// Compose 只合成单个目标而不写入姿势（调试与离线渲染用）
func (m *AnimationManager) Compose(target animation.Target, dt float64) (animation.AnimationFrame, bool) {
	composer, ok := m.composers[target]
	if !ok {
		return animation.AnimationFrame{}, false
	}
	return m.compose(target, composer, time.Duration(dt*float64(time.Second)))
}

func (m *AnimationManager) compose(target animation.Target, composer *animation.FrameComposer, dt time.Duration) (frame animation.AnimationFrame, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AnimationManager] Error: composing %s panicked: %v", target, r)
			ok = false
		}
	}()
	return composer.Compose(dt), true
}

// validateTargets 清理失效目标：停止其运行（不同步）、删除合成器、丢弃缓存片段
func (m *AnimationManager) validateTargets() {
	if m.resolver == nil {
		return
	}
	for _, target := range m.sortedTargets() {
		if m.resolver.Alive(target) {
			continue
		}
		count := 0
		for _, run := range m.runsFor(target) {
			m.releaseRun(run, false)
			count++
		}
		delete(m.composers, target)
		delete(m.applied, target)
		m.registry.Forget(target)
		log.Printf("[AnimationManager] Stopped %d animations for invalid target %s", count, target)
		m.events.Publish(Event{Type: EventTargetInvalidated, Target: target})
	}
}

func (m *AnimationManager) runsFor(target animation.Target) []*runState {
	var out []*runState
	for _, run := range m.runs {
		if run.target == target {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	return out
}

func (m *AnimationManager) sortedTargets() []animation.Target {
	targets := make([]animation.Target, 0, len(m.composers))
	for t := range m.composers {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Type != targets[j].Type {
			return targets[i].Type < targets[j].Type
		}
		return targets[i].EntityID < targets[j].EntityID
	})
	return targets
}

// ActiveRuns 进行中的运行数
func (m *AnimationManager) ActiveRuns() int {
	return len(m.runs)
}

// ActiveComposers 合成器（目标）数
func (m *AnimationManager) ActiveComposers() int {
	return len(m.composers)
}

// Composer 目标的合成器
func (m *AnimationManager) Composer(target animation.Target) (*animation.FrameComposer, bool) {
	c, ok := m.composers[target]
	return c, ok
}

// IsRunning 运行是否仍在进行
func (m *AnimationManager) IsRunning(runID uuid.UUID) bool {
	_, ok := m.runs[runID]
	return ok
}

// CurrentRequest 运行当前执行的请求
func (m *AnimationManager) CurrentRequest(runID uuid.UUID) (animation.Request, bool) {
	run, ok := m.runs[runID]
	if !ok {
		return animation.Request{}, false
	}
	return run.current, true
}

// Close 关闭事件分发器并丢弃所有运行（不同步）
func (m *AnimationManager) Close() {
	for _, run := range m.runs {
		m.releaseRun(run, false)
	}
	m.composers = make(map[animation.Target]*animation.FrameComposer)
	m.applied = make(map[animation.Target]map[string]struct{})
	m.events.Close()
}
