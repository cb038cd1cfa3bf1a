// Package shape provides data structures and parsers for skeletal shape files.
// A shape file declares an element hierarchy with a rest pose and a set of
// named keyframe tracks (animations) that transform those elements over time.
package shape

import (
	"hash/crc32"
	"strings"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Shape is the root structure of a shape file.
type Shape struct {
	// Name identifies the shape, e.g. "humanoid"
	Name string `yaml:"name"`

	// Elements is the element hierarchy. A parent must be declared before
	// its children, so iterating Elements in order visits parents first.
	Elements []Element `yaml:"elements"`

	// Animations is the list of keyframe tracks
	Animations []Animation `yaml:"animations"`

	// Source is the path the shape was loaded from (not serialized)
	Source string `yaml:"-"`

	elementIndex map[string]int
	trackIndex   map[uint32]int
}

// Element is one bone of the hierarchy.
type Element struct {
	// Name is the unique element name, e.g. "torso", "arm_l"
	Name string `yaml:"name"`

	// Parent is the parent element name; empty for a root element
	Parent string `yaml:"parent,omitempty"`

	// Rest is the element's local transform when no animation touches it
	Rest Pose `yaml:"rest"`
}

// Pose is a local element transform.
type Pose struct {
	// Offset is the translation relative to the parent element
	Offset utils.Vec3 `yaml:"offset"`

	// Rotation is the Euler rotation in degrees (X, Y, Z)
	Rotation utils.Vec3 `yaml:"rotation"`
}

// Animation is a named keyframe track.
type Animation struct {
	// Code is the track name used for lookup, e.g. "walk"
	Code string `yaml:"code"`

	// QuantityFrames is the total frame count of the track
	QuantityFrames int `yaml:"quantity_frames"`

	// OnEnd controls what a non-cyclic playback does past the last frame:
	// "hold" (default) or "repeat"
	OnEnd string `yaml:"on_end,omitempty"`

	// Keyframes is the ordered list of keyframes (sorted by Frame after parsing)
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe holds the element values at one source frame.
type Keyframe struct {
	// Frame is the source frame number in [0, QuantityFrames)
	Frame int `yaml:"frame"`

	// Elements maps element names to their values at this frame
	Elements map[string]ElementKey `yaml:"elements"`
}

// ElementKey is the value of one element at one keyframe. All fields are
// optional and use pointer types; a nil field takes its value from the
// base pose passed to Resolve.
type ElementKey struct {
	OffsetX *float64 `yaml:"offset_x,omitempty"`
	OffsetY *float64 `yaml:"offset_y,omitempty"`
	OffsetZ *float64 `yaml:"offset_z,omitempty"`

	// RotationX, RotationY and RotationZ are in degrees (NOT radians)
	RotationX *float64 `yaml:"rotation_x,omitempty"`
	RotationY *float64 `yaml:"rotation_y,omitempty"`
	RotationZ *float64 `yaml:"rotation_z,omitempty"`
}

// Resolve fills the nil fields of k from base.
func (k ElementKey) Resolve(base Pose) Pose {
	out := base
	pick := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	pick(&out.Offset[0], k.OffsetX)
	pick(&out.Offset[1], k.OffsetY)
	pick(&out.Offset[2], k.OffsetZ)
	pick(&out.Rotation[0], k.RotationX)
	pick(&out.Rotation[1], k.RotationY)
	pick(&out.Rotation[2], k.RotationZ)
	return out
}

// TrackHash returns the lookup hash of an animation code.
// Codes are case-insensitive.
func TrackHash(code string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToLower(code)))
}

// Track returns the animation track with the given code.
func (s *Shape) Track(code string) (*Animation, bool) {
	if s == nil {
		return nil, false
	}
	if s.trackIndex == nil {
		s.buildIndex()
	}
	idx, ok := s.trackIndex[TrackHash(code)]
	if !ok {
		return nil, false
	}
	return &s.Animations[idx], true
}

// Element returns the element with the given name.
func (s *Shape) Element(name string) (*Element, bool) {
	if s == nil {
		return nil, false
	}
	if s.elementIndex == nil {
		s.buildIndex()
	}
	idx, ok := s.elementIndex[name]
	if !ok {
		return nil, false
	}
	return &s.Elements[idx], true
}

// ElementIndex returns the position of the named element in Elements, or -1.
func (s *Shape) ElementIndex(name string) int {
	if s.elementIndex == nil {
		s.buildIndex()
	}
	idx, ok := s.elementIndex[name]
	if !ok {
		return -1
	}
	return idx
}

func (s *Shape) buildIndex() {
	s.elementIndex = make(map[string]int, len(s.Elements))
	for i, el := range s.Elements {
		s.elementIndex[el.Name] = i
	}
	s.trackIndex = make(map[uint32]int, len(s.Animations))
	for i, anim := range s.Animations {
		s.trackIndex[TrackHash(anim.Code)] = i
	}
}
