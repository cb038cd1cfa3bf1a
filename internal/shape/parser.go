package shape

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ParseShapeFile parses a shape YAML file from disk.
//
// Example:
//
//	s, err := ParseShapeFile("data/shapes/humanoid.yaml")
//	if err != nil {
//	    log.Fatalf("Failed to parse shape: %v", err)
//	}
//	walk, _ := s.Track("walk")
func ParseShapeFile(path string) (*Shape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shape file '%s': %w", path, err)
	}
	return ParseShape(data, path)
}

// ParseShapeFS parses a shape YAML file from fsys (e.g. the embedded data tree).
func ParseShapeFS(fsys fs.FS, path string) (*Shape, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shape file '%s': %w", path, err)
	}
	return ParseShape(data, path)
}

// ParseShape parses shape YAML content. source is only used in error messages.
// Keyframes are sorted by frame and the lookup indexes are built.
func ParseShape(data []byte, source string) (*Shape, error) {
	var s Shape
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML from '%s': %w", source, err)
	}
	s.Source = source

	for i := range s.Animations {
		anim := &s.Animations[i]
		sort.SliceStable(anim.Keyframes, func(a, b int) bool {
			return anim.Keyframes[a].Frame < anim.Keyframes[b].Frame
		})
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape '%s': %w", source, err)
	}
	s.buildIndex()
	return &s, nil
}

// Validate checks the element hierarchy and the keyframe tracks.
func (s *Shape) Validate() error {
	if len(s.Elements) == 0 {
		return fmt.Errorf("shape has no elements")
	}

	seen := make(map[string]bool, len(s.Elements))
	for i, el := range s.Elements {
		if el.Name == "" {
			return fmt.Errorf("element %d has empty name", i)
		}
		if seen[el.Name] {
			return fmt.Errorf("duplicate element name: %s", el.Name)
		}
		if el.Parent != "" && !seen[el.Parent] {
			return fmt.Errorf("element '%s': parent '%s' must be declared before it", el.Name, el.Parent)
		}
		seen[el.Name] = true
	}

	codes := make(map[uint32]string, len(s.Animations))
	for _, anim := range s.Animations {
		if anim.Code == "" {
			return fmt.Errorf("animation has empty code")
		}
		h := TrackHash(anim.Code)
		if prev, dup := codes[h]; dup {
			return fmt.Errorf("duplicate animation code: %s (collides with %s)", anim.Code, prev)
		}
		codes[h] = anim.Code

		if anim.QuantityFrames <= 0 {
			return fmt.Errorf("animation '%s': quantity_frames must be positive, got %d", anim.Code, anim.QuantityFrames)
		}
		if len(anim.Keyframes) == 0 {
			return fmt.Errorf("animation '%s' has no keyframes", anim.Code)
		}
		switch anim.OnEnd {
		case "", "hold", "repeat":
		default:
			return fmt.Errorf("animation '%s': unknown on_end '%s'", anim.Code, anim.OnEnd)
		}

		last := -1
		for _, kf := range anim.Keyframes {
			if kf.Frame < 0 || kf.Frame >= anim.QuantityFrames {
				return fmt.Errorf("animation '%s': keyframe %d out of range [0, %d)", anim.Code, kf.Frame, anim.QuantityFrames)
			}
			if kf.Frame == last {
				return fmt.Errorf("animation '%s': duplicate keyframe %d", anim.Code, kf.Frame)
			}
			last = kf.Frame
			for name := range kf.Elements {
				if !seen[name] {
					return fmt.Errorf("animation '%s' keyframe %d: unknown element '%s'", anim.Code, kf.Frame, name)
				}
			}
		}
	}
	return nil
}
