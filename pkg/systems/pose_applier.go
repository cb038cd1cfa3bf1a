package systems

import "github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"

// ApplyFrame 把合成帧写入姿势写入端
// 每个元素写入 lerp(rest, Transform, Weight) + Additive；
// previous 中本帧不再出现的元素恢复为静止姿势。
// 返回本帧写入的元素集合，下一帧作为 previous 传回。
func ApplyFrame(frame animation.AnimationFrame, sink PoseSink, previous map[string]struct{}) map[string]struct{} {
	if sink == nil {
		return nil
	}
	written := make(map[string]struct{}, len(frame.Elements))
	for name, el := range frame.Elements {
		rest, ok := sink.RestTransform(name)
		if !ok {
			verbosef("[PoseApplier] Skipping unknown element '%s'", name)
			continue
		}
		sink.SetElementTransform(name, el.Apply(rest))
		written[name] = struct{}{}
	}
	for name := range previous {
		if _, ok := written[name]; ok {
			continue
		}
		if rest, ok := sink.RestTransform(name); ok {
			sink.SetElementTransform(name, rest)
		}
	}
	return written
}
