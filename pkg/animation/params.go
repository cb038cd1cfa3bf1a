package animation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Action 动画动作
type Action int

const (
	// ActionSet 直接跳到 TargetFrame
	ActionSet Action = iota
	// ActionEaseIn 从上一输出姿势过渡到 TargetFrame，同时权重渐入
	ActionEaseIn
	// ActionEaseOut 从上一输出姿势过渡到空帧，时长乘以上一次进度
	ActionEaseOut
	// ActionPlay 从 StartFrame 播放到 TargetFrame
	ActionPlay
	// ActionStop 停在上一输出姿势
	ActionStop
	// ActionRewind 从上一播放帧倒放回 StartFrame，时长乘以上一次进度
	ActionRewind
	// ActionClear 立即清空为空帧
	ActionClear
)

var actionNames = map[Action]string{
	ActionSet:     "set",
	ActionEaseIn:  "ease_in",
	ActionEaseOut: "ease_out",
	ActionPlay:    "play",
	ActionStop:    "stop",
	ActionRewind:  "rewind",
	ActionClear:   "clear",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction 从配置字符串解析动作（大小写不敏感，允许 "easein" / "ease-in"）
func ParseAction(s string) (Action, error) {
	key := normalizeEnumName(s)
	for action, name := range actionNames {
		if normalizeEnumName(name) == key {
			return action, nil
		}
	}
	return ActionSet, fmt.Errorf("unknown action: %s", s)
}

// ProgressModifier 进度修饰器（缓动曲线）
type ProgressModifier int

const (
	ModifierLinear ProgressModifier = iota
	ModifierQuadratic
	ModifierCubic
	ModifierSqrt
	ModifierSin
	ModifierSinQuadratic
	ModifierCubicOut
	ModifierCubicInOut
	ModifierExpoOut
)

var modifierNames = map[ProgressModifier]string{
	ModifierLinear:       "linear",
	ModifierQuadratic:    "quadratic",
	ModifierCubic:        "cubic",
	ModifierSqrt:         "sqrt",
	ModifierSin:          "sin",
	ModifierSinQuadratic: "sin_quadratic",
	ModifierCubicOut:     "cubic_out",
	ModifierCubicInOut:   "cubic_in_out",
	ModifierExpoOut:      "expo_out",
}

var modifierFuncs = map[ProgressModifier]func(float64) float64{
	ModifierLinear:       utils.EaseLinear,
	ModifierQuadratic:    utils.EaseInQuad,
	ModifierCubic:        utils.EaseInCubic,
	ModifierSqrt:         utils.EaseOutSqrt,
	ModifierSin:          utils.EaseOutSine,
	ModifierSinQuadratic: utils.EaseSineQuadratic,
	ModifierCubicOut:     utils.EaseOutCubic,
	ModifierCubicInOut:   utils.EaseInOutCubic,
	ModifierExpoOut:      utils.EaseOutExpo,
}

func (m ProgressModifier) String() string {
	if name, ok := modifierNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ProgressModifier(%d)", int(m))
}

// Apply 对 [0,1] 内的进度应用缓动；未知修饰器按线性处理
func (m ProgressModifier) Apply(progress float64) float64 {
	progress = utils.Clamp01(progress)
	fn, ok := modifierFuncs[m]
	if !ok {
		return progress
	}
	return utils.Clamp01(fn(progress))
}

// ParseProgressModifier 从配置字符串解析进度修饰器，空字符串为线性
func ParseProgressModifier(s string) (ProgressModifier, error) {
	if strings.TrimSpace(s) == "" {
		return ModifierLinear, nil
	}
	key := normalizeEnumName(s)
	for m, name := range modifierNames {
		if normalizeEnumName(name) == key {
			return m, nil
		}
	}
	return ModifierLinear, fmt.Errorf("unknown progress modifier: %s", s)
}

func normalizeEnumName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

// RunParameters 单个动画动作的参数
// 由 Set / EaseIn / EaseOut / Play / Rewind / Stop / Clear 构造
type RunParameters struct {
	Action      Action           `json:"action"`
	Duration    time.Duration    `json:"duration"`
	Modifier    ProgressModifier `json:"modifier"`
	StartFrame  *float64         `json:"start_frame,omitempty"`
	TargetFrame *float64         `json:"target_frame,omitempty"`
}

func framePtr(v float64) *float64 {
	return &v
}

// Set 立即跳到指定帧
func Set(frame float64) RunParameters {
	return RunParameters{Action: ActionSet, TargetFrame: framePtr(frame)}
}

// EaseIn 在 duration 内从上一输出姿势过渡到 frame
func EaseIn(duration time.Duration, frame float64, modifier ProgressModifier) RunParameters {
	return RunParameters{
		Action:      ActionEaseIn,
		Duration:    duration,
		Modifier:    modifier,
		TargetFrame: framePtr(frame),
	}
}

// EaseOut 过渡到空帧，实际时长 = duration × 上一次进度
func EaseOut(duration time.Duration, modifier ProgressModifier) RunParameters {
	return RunParameters{Action: ActionEaseOut, Duration: duration, Modifier: modifier}
}

// Play 在 duration 内从 startFrame 播放到 targetFrame
// 循环动画中 targetFrame < startFrame 表示跨越第 0 帧继续播放
func Play(duration time.Duration, startFrame, targetFrame float64, modifier ProgressModifier) RunParameters {
	return RunParameters{
		Action:      ActionPlay,
		Duration:    duration,
		Modifier:    modifier,
		StartFrame:  framePtr(startFrame),
		TargetFrame: framePtr(targetFrame),
	}
}

// Rewind 从上一播放帧倒放回 startFrame，实际时长 = duration × 上一次进度
// startFrame / targetFrame 应与之前 Play 的参数一致
func Rewind(duration time.Duration, startFrame, targetFrame float64, modifier ProgressModifier) RunParameters {
	return RunParameters{
		Action:      ActionRewind,
		Duration:    duration,
		Modifier:    modifier,
		StartFrame:  framePtr(startFrame),
		TargetFrame: framePtr(targetFrame),
	}
}

// Stop 停在上一输出姿势
func Stop() RunParameters {
	return RunParameters{Action: ActionStop}
}

// Clear 清空为空帧
func Clear() RunParameters {
	return RunParameters{Action: ActionClear}
}

func formatFrame(f *float64) string {
	if f == nil {
		return "null"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func (p RunParameters) String() string {
	var b strings.Builder
	b.WriteString(p.Action.String())
	switch p.Action {
	case ActionSet:
		fmt.Fprintf(&b, ", frame: %s", formatFrame(p.TargetFrame))
	case ActionEaseIn:
		fmt.Fprintf(&b, ", frame: %s, duration: %.3f", formatFrame(p.TargetFrame), p.Duration.Seconds())
	case ActionEaseOut:
		fmt.Fprintf(&b, ", duration: %.3f", p.Duration.Seconds())
	case ActionPlay, ActionRewind:
		fmt.Fprintf(&b, ", start: %s, end: %s, duration: %.3f",
			formatFrame(p.StartFrame), formatFrame(p.TargetFrame), p.Duration.Seconds())
	}
	if p.Modifier != ModifierLinear {
		fmt.Fprintf(&b, ", modifier: %s", p.Modifier)
	}
	return b.String()
}

// Request 动画请求：哪个动画 + 做什么
type Request struct {
	Animation  AnimationId   `json:"animation"`
	Parameters RunParameters `json:"parameters"`
}

// NewRequest 创建动画请求
func NewRequest(id AnimationId, params RunParameters) Request {
	return Request{Animation: id, Parameters: params}
}

// RequestsFor 为同一个动画构造多个请求
func RequestsFor(id AnimationId, params ...RunParameters) []Request {
	requests := make([]Request, 0, len(params))
	for _, p := range params {
		requests = append(requests, Request{Animation: id, Parameters: p})
	}
	return requests
}

func (r Request) String() string {
	return fmt.Sprintf("%s: %s", r.Animation, r.Parameters)
}
