package animation

import (
	"fmt"
	"math"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
)

// EndBehavior 非循环片段播放越过最后一帧时的行为
type EndBehavior int

const (
	// EndHold 停在最后一帧
	EndHold EndBehavior = iota
	// EndRepeat 回到第 0 帧重新开始（首尾之间不插值）
	EndRepeat
)

func (e EndBehavior) String() string {
	if e == EndRepeat {
		return "repeat"
	}
	return "hold"
}

// Clip 不可变的关键帧片段
// 由 AnimationRegistry 从形状的关键帧轨道构建，构建后只读
type Clip struct {
	Code string

	// Keyframes 与 FrameNumbers 一一对应，按帧号升序
	Keyframes    []Frame
	FrameNumbers []float64

	TotalFrames int
	Cyclic      bool
	OnEnd       EndBehavior
}

// ElementSettings 返回元素的权重与混合方式
// 优先级：元素覆盖 > 类别 > 默认（权重 1）
type ElementSettings func(element string) (weight float64, blend BlendMode)

// BuildClip 从形状中的 code 轨道构建片段
//
// 平均混合元素的缺省分量取自静止姿势，叠加混合元素的缺省分量为 0，
// 因此叠加轨道只需写出增量。
func BuildClip(s *shape.Shape, code string, cyclic bool, settings ElementSettings) (*Clip, error) {
	if s == nil {
		return nil, fmt.Errorf("nil shape")
	}
	track, ok := s.Track(code)
	if !ok {
		return nil, fmt.Errorf("track '%s' not found in shape '%s'", code, s.Name)
	}
	if len(track.Keyframes) == 0 {
		return nil, fmt.Errorf("track '%s' has no keyframes", code)
	}

	clip := &Clip{
		Code:         track.Code,
		Keyframes:    make([]Frame, 0, len(track.Keyframes)),
		FrameNumbers: make([]float64, 0, len(track.Keyframes)),
		TotalFrames:  track.QuantityFrames,
		Cyclic:       cyclic,
	}
	if track.OnEnd == "repeat" {
		clip.OnEnd = EndRepeat
	}

	for _, kf := range track.Keyframes {
		frame := make(Frame, len(kf.Elements))
		for name, key := range kf.Elements {
			el, ok := s.Element(name)
			if !ok {
				return nil, fmt.Errorf("track '%s' keyframe %d: unknown element '%s'", code, kf.Frame, name)
			}
			weight, blend := 1.0, BlendAverage
			if settings != nil {
				weight, blend = settings(name)
			}
			base := shape.Pose{}
			if blend == BlendAverage {
				base = el.Rest
			}
			frame[name] = ElementFrame{
				Transform: TransformFromPose(key.Resolve(base)),
				Weight:    weight,
				Ease:      1,
				Blend:     blend,
			}
		}
		clip.Keyframes = append(clip.Keyframes, frame)
		clip.FrameNumbers = append(clip.FrameNumbers, float64(kf.Frame))
	}
	return clip, nil
}

// NormalizeFrame 把任意帧号映射到片段的有效范围
// 循环片段和 repeat 片段取模，其余钳制到 [0, TotalFrames-1]
func (c *Clip) NormalizeFrame(frame float64) float64 {
	n := float64(c.TotalFrames)
	if n <= 0 {
		return 0
	}
	if c.Cyclic || c.OnEnd == EndRepeat {
		f := math.Mod(frame, n)
		if f < 0 {
			f += n
		}
		return f
	}
	if frame < 0 {
		return 0
	}
	if frame > n-1 {
		return n - 1
	}
	return frame
}

// Sample 在任意（小数）帧号处插值得到一帧
// 返回的 Frame 是新分配的，调用方可以修改
func (c *Clip) Sample(frame float64) Frame {
	k := len(c.Keyframes)
	if k == 0 {
		return Frame{}
	}
	if k == 1 {
		return copyFrame(c.Keyframes[0])
	}

	f := c.NormalizeFrame(frame)
	n := float64(c.TotalFrames)

	// 最后一个帧号 <= f 的关键帧
	idx := -1
	for i, num := range c.FrameNumbers {
		if num <= f {
			idx = i
		} else {
			break
		}
	}

	var prev, next int
	var prevF, nextF float64
	switch {
	case c.Cyclic && idx < 0:
		prev, next = k-1, 0
		prevF, nextF = c.FrameNumbers[k-1]-n, c.FrameNumbers[0]
	case c.Cyclic && idx == k-1:
		prev, next = k-1, 0
		prevF, nextF = c.FrameNumbers[k-1], c.FrameNumbers[0]+n
	case idx < 0:
		return copyFrame(c.Keyframes[0])
	case idx == k-1:
		return copyFrame(c.Keyframes[k-1])
	default:
		prev, next = idx, idx+1
		prevF, nextF = c.FrameNumbers[prev], c.FrameNumbers[next]
	}

	t := 0.0
	if denom := nextF - prevF; denom > 0 {
		t = (f - prevF) / denom
	}
	return LerpFrames(c.Keyframes[prev], c.Keyframes[next], t)
}

func copyFrame(f Frame) Frame {
	out := make(Frame, len(f))
	for name, el := range f {
		out[name] = el
	}
	return out
}
