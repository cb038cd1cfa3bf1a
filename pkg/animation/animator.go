package animation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/looplab/fsm"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Status 动画实例状态
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
	StatusFinished
)

const (
	stateIdle     = "idle"
	stateRunning  = "running"
	stateStopped  = "stopped"
	stateFinished = "finished"

	eventRun    = "run"
	eventStop   = "stop"
	eventFinish = "finish"
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return stateIdle
	case StatusRunning:
		return stateRunning
	case StatusStopped:
		return stateStopped
	case StatusFinished:
		return stateFinished
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func statusFromState(state string) Status {
	switch state {
	case stateRunning:
		return StatusRunning
	case stateStopped:
		return StatusStopped
	case stateFinished:
		return StatusFinished
	default:
		return StatusIdle
	}
}

// AnimatorInstance 单个动画在单个目标上的播放状态
//
// 输出 = pose（片段采样结果，带元素权重）× envelope（实例整体权重）。
// 状态由 looplab/fsm 驱动：
//
//	idle --run--> running --stop--> stopped
//	                      --finish--> finished
//	任意状态 --run--> running
type AnimatorInstance struct {
	clip   *Clip
	params RunParameters
	state  *fsm.FSM

	elapsed  time.Duration
	duration time.Duration // 实际时长（EaseOut / Rewind 已乘以上一次进度）

	progress     float64 // 当前动作的原始进度 ∈ [0,1]
	lastProgress float64 // 收到当前动作时上一个动作的进度

	startPose     Frame
	startEnvelope float64
	targetPose    Frame // EaseIn 的目标帧

	startFrame  float64
	targetFrame float64
	playedFrame float64 // 上一次播放到的帧（未取模）

	pose     Frame
	envelope float64
}

// NewAnimatorInstance 创建空闲的动画实例
func NewAnimatorInstance() *AnimatorInstance {
	return &AnimatorInstance{
		state: fsm.NewFSM(
			stateIdle,
			fsm.Events{
				{Name: eventRun, Src: []string{stateIdle, stateRunning, stateStopped, stateFinished}, Dst: stateRunning},
				{Name: eventStop, Src: []string{stateRunning}, Dst: stateStopped},
				{Name: eventFinish, Src: []string{stateRunning}, Dst: stateFinished},
			},
			fsm.Callbacks{},
		),
	}
}

// Status 当前状态
func (a *AnimatorInstance) Status() Status {
	return statusFromState(a.state.Current())
}

// Parameters 当前动作参数
func (a *AnimatorInstance) Parameters() RunParameters {
	return a.params
}

// Progress 当前动作的原始进度
func (a *AnimatorInstance) Progress() float64 {
	return a.progress
}

// CurrentFrame 上一次播放到的帧（已归一化到片段范围）
func (a *AnimatorInstance) CurrentFrame() float64 {
	if a.clip == nil {
		return a.playedFrame
	}
	return a.clip.NormalizeFrame(a.playedFrame)
}

// Weight 实例整体权重
func (a *AnimatorInstance) Weight() float64 {
	return a.envelope
}

// Contributes 是否还在向合成结果贡献姿势
func (a *AnimatorInstance) Contributes() bool {
	return a.envelope > 0 && len(a.pose) > 0
}

// Run 开始新的动作，从上一输出姿势继续
func (a *AnimatorInstance) Run(params RunParameters, clip *Clip) {
	a.lastProgress = a.progress
	a.startPose = a.pose
	a.startEnvelope = a.envelope
	a.params = params
	a.clip = clip
	a.elapsed = 0
	a.duration = params.Duration
	a.targetPose = nil

	switch params.Action {
	case ActionEaseIn:
		a.progress = 0
		a.targetPose = clip.Sample(frameOr(params.TargetFrame, 0))
	case ActionEaseOut:
		a.progress = 0
		a.duration = scaleDuration(params.Duration, a.lastProgress)
	case ActionPlay:
		a.progress = 0
		a.startFrame = frameOr(params.StartFrame, 0)
		a.targetFrame = frameOr(params.TargetFrame, float64(clip.TotalFrames-1))
		if clip.Cyclic && a.targetFrame < a.startFrame {
			// 循环片段跨越第 0 帧
			a.targetFrame += float64(clip.TotalFrames)
		}
	case ActionRewind:
		a.progress = 0
		a.startFrame = a.playedFrame
		a.targetFrame = frameOr(params.StartFrame, 0)
		a.duration = scaleDuration(params.Duration, a.lastProgress)
	case ActionStop:
		// 保留进度，之后的 Rewind / EaseOut 仍按停止前的进度计算时长
		a.progress = a.lastProgress
	default:
		a.progress = 0
	}

	a.fire(eventRun)
}

// Calculate 推进 dt 并返回本次的贡献帧和状态
// 非运行状态下保持上一输出
func (a *AnimatorInstance) Calculate(dt time.Duration) (Frame, Status) {
	if a.Status() != StatusRunning {
		return a.output(), a.Status()
	}

	a.elapsed += dt
	progress := 1.0
	if a.duration > 0 {
		progress = utils.Clamp01(float64(a.elapsed) / float64(a.duration))
	}
	eased := a.params.Modifier.Apply(progress)

	switch a.params.Action {
	case ActionSet:
		frame := frameOr(a.params.TargetFrame, 0)
		a.pose = a.clip.Sample(frame)
		a.envelope = 1
		a.playedFrame = frame
		progress = 1

	case ActionEaseIn:
		if a.startEnvelope <= 0 || len(a.startPose) == 0 {
			a.pose = a.targetPose
		} else {
			a.pose = transitionFrames(a.startPose, a.targetPose, eased)
		}
		a.envelope = utils.Lerp(a.startEnvelope, 1, eased)
		a.playedFrame = frameOr(a.params.TargetFrame, 0)

	case ActionEaseOut:
		a.pose = a.startPose
		a.envelope = utils.Lerp(a.startEnvelope, 0, eased)
		if progress >= 1 {
			a.pose = nil
			a.envelope = 0
		}

	case ActionPlay, ActionRewind:
		frame := utils.Lerp(a.startFrame, a.targetFrame, eased)
		a.pose = a.clip.Sample(frame)
		a.envelope = 1
		a.playedFrame = frame

	case ActionStop:
		a.pose = a.startPose
		a.envelope = a.startEnvelope
		a.fire(eventStop)
		return a.output(), a.Status()

	case ActionClear:
		a.pose = nil
		a.envelope = 0
		progress = 1

	default:
		log.Printf("[Animator] Unknown action %v, finishing", a.params.Action)
		progress = 1
	}

	a.progress = progress
	if progress >= 1 {
		if a.params.Action == ActionEaseOut || a.params.Action == ActionClear {
			// 已回到空帧，之后的 EaseOut 无需再过渡
			a.progress = 0
		}
		a.fire(eventFinish)
	}
	return a.output(), a.Status()
}

func (a *AnimatorInstance) output() Frame {
	if !a.Contributes() {
		return Frame{}
	}
	return a.pose.ScaleWeights(a.envelope)
}

func (a *AnimatorInstance) fire(event string) {
	err := a.state.Event(context.Background(), event)
	if err == nil {
		return
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return
	}
	log.Printf("[Animator] Warning: state event '%s' from '%s' failed: %v", event, a.state.Current(), err)
}

// transitionFrames 两个姿势之间过渡
// 只在 a 中的元素权重降到 0，只在 b 中的元素权重从 0 升起
func transitionFrames(a, b Frame, t float64) Frame {
	out := make(Frame, len(a)+len(b))
	for name, ea := range a {
		eb, ok := b[name]
		if !ok {
			ea.Weight = utils.Lerp(ea.Weight, 0, t)
			ea.Ease = utils.Lerp(ea.Ease, 0, t)
			out[name] = ea
			continue
		}
		out[name] = ElementFrame{
			Transform: LerpTransform(ea.Transform, eb.Transform, t),
			Weight:    utils.Lerp(ea.Weight, eb.Weight, t),
			Ease:      utils.Lerp(ea.Ease, eb.Ease, t),
			Blend:     eb.Blend,
		}
	}
	for name, eb := range b {
		if _, ok := a[name]; !ok {
			eb.Weight = utils.Lerp(0, eb.Weight, t)
			eb.Ease = utils.Lerp(0, eb.Ease, t)
			out[name] = eb
		}
	}
	return out
}

func frameOr(f *float64, fallback float64) float64 {
	if f == nil {
		return fallback
	}
	return *f
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * utils.Clamp01(factor))
}
