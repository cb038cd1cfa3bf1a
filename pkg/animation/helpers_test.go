package animation

import (
	"math"
	"testing"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
)

const rigYAML = `
name: rig
elements:
  - name: root
  - name: torso
    parent: root
    rest: {offset: [0, 10, 0]}
  - name: arm
    parent: torso
    rest: {offset: [2, 5, 0]}
animations:
  - code: swing
    quantity_frames: 8
    keyframes:
      - frame: 0
        elements: {arm: {rotation_z: 40}}
      - frame: 4
        elements: {arm: {rotation_z: -40}}
  - code: lean
    quantity_frames: 1
    keyframes:
      - frame: 0
        elements: {torso: {rotation_z: 10}}
  - code: bob
    quantity_frames: 10
    keyframes:
      - frame: 0
        elements: {torso: {offset_y: 0}}
      - frame: 5
        elements: {torso: {offset_y: 1}}
  - code: reach
    quantity_frames: 5
    keyframes:
      - frame: 0
        elements: {arm: {rotation_z: 0}, torso: {rotation_x: 0}}
      - frame: 4
        elements: {arm: {rotation_z: 90}}
`

const eps = 1e-9

func rigShape(t *testing.T) *shape.Shape {
	t.Helper()
	s, err := shape.ParseShape([]byte(rigYAML), "rig")
	if err != nil {
		t.Fatalf("Failed to parse test rig: %v", err)
	}
	return s
}

func uniform(weight float64, blend BlendMode) ElementSettings {
	return func(string) (float64, BlendMode) { return weight, blend }
}

func buildClip(t *testing.T, code string, cyclic bool, settings ElementSettings) *Clip {
	t.Helper()
	clip, err := BuildClip(rigShape(t), code, cyclic, settings)
	if err != nil {
		t.Fatalf("BuildClip(%s) failed: %v", code, err)
	}
	return clip
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func rotZ(t *testing.T, f Frame, element string) float64 {
	t.Helper()
	el, ok := f[element]
	if !ok {
		t.Fatalf("Expected element '%s' in frame, got %v", element, f.Elements())
	}
	return el.Transform.Rotation[2]
}
