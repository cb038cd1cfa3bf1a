package utils

import (
	"math"
	"testing"
)

// TestEasingEndpoints 所有缓动函数都必须满足 f(0)=0, f(1)=1
func TestEasingEndpoints(t *testing.T) {
	funcs := []struct {
		name string
		fn   func(float64) float64
	}{
		{"EaseLinear", EaseLinear},
		{"EaseInQuad", EaseInQuad},
		{"EaseOutQuad", EaseOutQuad},
		{"EaseInCubic", EaseInCubic},
		{"EaseOutCubic", EaseOutCubic},
		{"EaseInOutCubic", EaseInOutCubic},
		{"EaseOutExpo", EaseOutExpo},
		{"EaseOutSqrt", EaseOutSqrt},
		{"EaseOutSine", EaseOutSine},
		{"EaseSineQuadratic", EaseSineQuadratic},
	}

	for _, f := range funcs {
		t.Run(f.name, func(t *testing.T) {
			if got := f.fn(0); math.Abs(got) > 0.001 {
				t.Errorf("%s(0) = %v, expected 0", f.name, got)
			}
			if got := f.fn(1); math.Abs(got-1) > 0.001 {
				t.Errorf("%s(1) = %v, expected 1", f.name, got)
			}
		})
	}
}

// TestEasingMidpoints 测试中点取值
func TestEasingMidpoints(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(float64) float64
		expected float64
	}{
		{"线性", EaseLinear, 0.5},
		{"二次缓入", EaseInQuad, 0.25},
		{"二次缓出", EaseOutQuad, 0.75},
		{"三次缓入", EaseInCubic, 0.125},
		{"三次缓出", EaseOutCubic, 0.875},
		{"三次缓入缓出", EaseInOutCubic, 0.5},
		{"平方根", EaseOutSqrt, math.Sqrt(0.5)},
		{"正弦", EaseOutSine, math.Sin(math.Pi / 4)},
		{"正弦平方", EaseSineQuadratic, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.fn(0.5)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("f(0.5) = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestEaseOutCubicFasterThanLinear(t *testing.T) {
	for p := 0.1; p < 0.95; p += 0.1 {
		if EaseOutCubic(p) <= EaseLinear(p) {
			t.Errorf("EaseOutCubic(%v) = %v should exceed linear %v", p, EaseOutCubic(p), p)
		}
	}
}

func TestEaseOutSqrtNegative(t *testing.T) {
	if got := EaseOutSqrt(-0.5); got != 0 {
		t.Errorf("Expected 0 for negative input, got %v", got)
	}
}

// TestLerp 测试线性插值函数
func TestLerp(t *testing.T) {
	tests := []struct {
		name     string
		a        float64
		b        float64
		t        float64
		expected float64
	}{
		{"起点", 0.0, 100.0, 0.0, 0.0},
		{"中点", 0.0, 100.0, 0.5, 50.0},
		{"终点", 0.0, 100.0, 1.0, 100.0},
		{"负数范围", -50.0, 50.0, 0.5, 0.0},
		{"逆向范围", 100.0, 0.0, 0.5, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Lerp(tt.a, tt.b, tt.t)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Lerp(%v, %v, %v) = %v, expected %v", tt.a, tt.b, tt.t, result, tt.expected)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, expected float64
	}{
		{-1, 0},
		{0.3, 0.3},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.expected {
			t.Errorf("Clamp01(%v) = %v, expected %v", tt.in, got, tt.expected)
		}
	}
}

func TestVec3(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{3, 2, 1}

	if got := a.Add(b); got != (Vec3{4, 4, 4}) {
		t.Errorf("Add: expected {4,4,4}, got %v", got)
	}
	if got := a.Sub(b); got != (Vec3{-2, 0, 2}) {
		t.Errorf("Sub: expected {-2,0,2}, got %v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale: expected {2,4,6}, got %v", got)
	}
	if got := LerpVec3(a, b, 0.5); !got.NearlyEqual(Vec3{2, 2, 2}, 1e-9) {
		t.Errorf("LerpVec3: expected {2,2,2}, got %v", got)
	}
	if got := (Vec3{3, 4, 0}).Len(); math.Abs(got-5) > 1e-9 {
		t.Errorf("Len: expected 5, got %v", got)
	}
}
