package geo

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"already_exact", 127.3475, 127.3475},
		{"rounds_down", 127.347501, 127.3475},
		{"rounds_up", 127.347549, 127.34755},
		{"negative", -36.327501, -36.3275},
		{"drifted_sum", 127.36 - 0.0125, 127.3475},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			if result != tt.expected {
				t.Errorf("Normalize(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	values := []float64{127.36, 36.34, -0.0000049, 0.333333333, 179.999999, -89.123456}

	for _, v := range values {
		once := Normalize(v)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize(Normalize(%v)) = %v, want %v", v, twice, once)
		}
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		start    GeoPoint
		expected string
	}{
		{GeoPoint{127.3475, 36.3275}, "127.34750_36.32750"},
		{GeoPoint{0, 0}, "0.00000_0.00000"},
		{GeoPoint{-122.42, -37.78}, "-122.42000_-37.78000"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Key(tt.start); got != tt.expected {
				t.Errorf("Key(%v) = %s, want %s", tt.start, got, tt.expected)
			}
		})
	}
}

func TestScaleClamp(t *testing.T) {
	s := NewScale(nil)

	tests := []struct {
		level    int
		expected int
	}{
		{-1, 0},
		{0, 0},
		{3, 3},
		{s.Levels() - 1, s.Levels() - 1},
		{s.Levels(), s.Levels() - 1},
		{99, s.Levels() - 1},
	}

	for _, tt := range tests {
		if got := s.Clamp(tt.level); got != tt.expected {
			t.Errorf("Clamp(%d) = %d, want %d", tt.level, got, tt.expected)
		}
	}
}

func TestTransformRoundTrip(t *testing.T) {
	viewport := Size{Width: 1024, Height: 768}
	tile := Size{Width: 1024, Height: 1024}
	center := GeoPoint{127.36, 36.34}
	scale := NewScale(nil)

	points := []GeoPoint{
		{127.36, 36.34},
		{127.3475, 36.3275},
		{126.97, 35.98},
		{-122.42, 37.78},
		{0, 0},
	}

	for zoom := 0; zoom < scale.Levels(); zoom++ {
		d := scale.DegPerTile(zoom)
		for _, p := range points {
			px := ToCanvas(p, center, d, viewport, tile)
			back := ToGeo(px, center, d, viewport, tile)

			if math.Abs(back.X()-p.X()) > 1e-9 || math.Abs(back.Y()-p.Y()) > 1e-9 {
				t.Errorf("zoom %d: round trip of %v produced %v", zoom, p, back)
			}
		}
	}
}

func TestToCanvasAxisDirections(t *testing.T) {
	viewport := Size{Width: 1024, Height: 1024}
	tile := Size{Width: 1024, Height: 1024}
	center := GeoPoint{127.36, 36.34}
	d := 0.025

	// The center maps to the viewport center.
	px := ToCanvas(center, center, d, viewport, tile)
	if px.X != 512 || px.Y != 512 {
		t.Fatalf("center mapped to (%v, %v), want (512, 512)", px.X, px.Y)
	}

	// East of center is right of center.
	east := ToCanvas(GeoPoint{127.37, 36.34}, center, d, viewport, tile)
	if east.X <= 512 {
		t.Errorf("east point mapped to x=%v, want > 512", east.X)
	}

	// North of center is above center (smaller y).
	north := ToCanvas(GeoPoint{127.36, 36.35}, center, d, viewport, tile)
	if north.Y >= 512 {
		t.Errorf("north point mapped to y=%v, want < 512", north.Y)
	}
}

func TestToGeoPixelShift(t *testing.T) {
	// A pixel 50px left of the viewport center resolves to a point
	// 50/1024 * 0.025 degrees west of the view center. This is the
	// geometry behind the pan-commit behavior.
	viewport := Size{Width: 1024, Height: 1024}
	tile := Size{Width: 1024, Height: 1024}
	center := GeoPoint{127.36, 36.34}
	d := 0.025

	p := ToGeo(PixelPoint{X: 512 - 50, Y: 512}, center, d, viewport, tile)

	expected := 127.36 - 50.0/1024*0.025
	if math.Abs(p.X()-expected) > 1e-12 {
		t.Errorf("shifted pixel resolved to lon %v, want %v", p.X(), expected)
	}
	if p.Y() != 36.34 {
		t.Errorf("latitude changed to %v, want 36.34", p.Y())
	}
}
