package shape

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

const humanoidPath = "../../data/shapes/humanoid.yaml"

// TestParseShapeFile_Success tests parsing of the bundled humanoid shape
func TestParseShapeFile_Success(t *testing.T) {
	s, err := ParseShapeFile(humanoidPath)
	if err != nil {
		t.Fatalf("Failed to parse humanoid.yaml: %v", err)
	}

	if s.Name != "humanoid" {
		t.Errorf("Expected Name='humanoid', got '%s'", s.Name)
	}
	if len(s.Elements) != 7 {
		t.Errorf("Expected 7 elements, got %d", len(s.Elements))
	}

	torso, ok := s.Element("torso")
	if !ok {
		t.Fatal("Expected element 'torso'")
	}
	if torso.Parent != "root" {
		t.Errorf("Expected torso parent 'root', got '%s'", torso.Parent)
	}
	if torso.Rest.Offset[1] != 10 {
		t.Errorf("Expected torso rest offset_y=10, got %v", torso.Rest.Offset[1])
	}

	walk, ok := s.Track("walk")
	if !ok {
		t.Fatal("Expected track 'walk'")
	}
	if walk.QuantityFrames != 8 {
		t.Errorf("Expected walk quantity_frames=8, got %d", walk.QuantityFrames)
	}
	if len(walk.Keyframes) != 2 {
		t.Errorf("Expected 2 walk keyframes, got %d", len(walk.Keyframes))
	}
}

// TestParseShapeFile_MultipleTracks tests track lookup by code
func TestParseShapeFile_MultipleTracks(t *testing.T) {
	s, err := ParseShapeFile(humanoidPath)
	if err != nil {
		t.Fatalf("Failed to parse humanoid.yaml: %v", err)
	}

	tests := []struct {
		code   string
		frames int
	}{
		{"walk", 8},
		{"idle", 1},
		{"breathing", 20},
		{"wave", 12},
		{"WAVE", 12},
		{"crouch", 6},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			track, ok := s.Track(tt.code)
			if !ok {
				t.Fatalf("Track '%s' not found", tt.code)
			}
			if track.QuantityFrames != tt.frames {
				t.Errorf("Expected %d frames, got %d", tt.frames, track.QuantityFrames)
			}
		})
	}

	if _, ok := s.Track("run"); ok {
		t.Error("Expected missing track 'run' to return false")
	}
}

func TestParseShapeFS(t *testing.T) {
	fsys := fstest.MapFS{
		"shapes/stick.yaml": &fstest.MapFile{Data: []byte(`
name: stick
elements:
  - name: pole
animations:
  - code: sway
    quantity_frames: 4
    keyframes:
      - frame: 2
        elements:
          pole: {rotation_z: 10}
      - frame: 0
        elements:
          pole: {rotation_z: -10}
`)},
	}

	s, err := ParseShapeFS(fsys, "shapes/stick.yaml")
	if err != nil {
		t.Fatalf("ParseShapeFS failed: %v", err)
	}
	sway, _ := s.Track("sway")
	if sway.Keyframes[0].Frame != 0 || sway.Keyframes[1].Frame != 2 {
		t.Errorf("Expected keyframes sorted [0 2], got [%d %d]", sway.Keyframes[0].Frame, sway.Keyframes[1].Frame)
	}
	if s.Source != "shapes/stick.yaml" {
		t.Errorf("Expected Source to be recorded, got '%s'", s.Source)
	}
}

// TestParseShape_Errors tests error handling scenarios
func TestParseShape_Errors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		expectError string
	}{
		{
			name:        "invalid yaml",
			yaml:        "elements: [",
			expectError: "failed to parse YAML",
		},
		{
			name:        "no elements",
			yaml:        "name: empty",
			expectError: "no elements",
		},
		{
			name: "parent declared after child",
			yaml: `
elements:
  - {name: hand, parent: arm}
  - {name: arm}`,
			expectError: "must be declared before",
		},
		{
			name: "duplicate element",
			yaml: `
elements:
  - {name: arm}
  - {name: arm}`,
			expectError: "duplicate element",
		},
		{
			name: "keyframe out of range",
			yaml: `
elements: [{name: arm}]
animations:
  - code: lift
    quantity_frames: 2
    keyframes: [{frame: 2, elements: {arm: {rotation_z: 1}}}]`,
			expectError: "out of range",
		},
		{
			name: "unknown element in keyframe",
			yaml: `
elements: [{name: arm}]
animations:
  - code: lift
    quantity_frames: 2
    keyframes: [{frame: 0, elements: {leg: {rotation_z: 1}}}]`,
			expectError: "unknown element",
		},
		{
			name: "unknown on_end",
			yaml: `
elements: [{name: arm}]
animations:
  - code: lift
    quantity_frames: 2
    on_end: bounce
    keyframes: [{frame: 0}]`,
			expectError: "unknown on_end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseShape([]byte(tt.yaml), "inline")
			if err == nil {
				t.Fatalf("Expected error containing '%s', got nil", tt.expectError)
			}
			if s != nil {
				t.Errorf("Expected nil shape on error, got %v", s)
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.expectError, err.Error())
			}
		})
	}
}

func TestParseShapeFile_NotFound(t *testing.T) {
	_, err := ParseShapeFile("../../data/shapes/missing.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
