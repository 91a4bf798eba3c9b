package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToScenePoint_RoundTrip(t *testing.T) {
	points := []Point{{0, 0}, {10, 20}, {-350.5, 812.25}, {1e4, -1e4}}
	viewports := []Viewport{
		NewViewport(),
		{Scale: 0.1, TranslateX: 5, TranslateY: -7},
		{Scale: 5, TranslateX: -1200, TranslateY: 340},
		{Scale: 1.37, TranslateX: 0.5, TranslateY: 0.25},
	}

	for _, vp := range viewports {
		for _, p := range points {
			got := ToDocumentPoint(ToScenePoint(p, vp), vp)
			assert.InDelta(t, p.X, got.X, 1e-9, "x for %+v through %+v", p, vp)
			assert.InDelta(t, p.Y, got.Y, 1e-9, "y for %+v through %+v", p, vp)
		}
	}
}

func TestViewportMatrix_MatchesForwardProjection(t *testing.T) {
	vp := Viewport{Scale: 2.5, TranslateX: 40, TranslateY: -12}
	p := Point{X: 13, Y: 7}

	want := ToDocumentPoint(p, vp)
	got := vp.Matrix().TransformPoint(p)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)

	back := vp.Matrix().Invert().TransformPoint(got)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestApplyZoom_Clamps(t *testing.T) {
	tcs := []struct {
		name  string
		start float64
		delta float64
		want  float64
	}{
		{name: "in range", start: 1, delta: 2, want: 2},
		{name: "above max", start: 4, delta: 10, want: MaxScale},
		{name: "below min", start: 0.5, delta: 0.01, want: MinScale},
		{name: "zero delta ignored", start: 1.5, delta: 0, want: 1.5},
		{name: "negative delta ignored", start: 1.5, delta: -3, want: 1.5},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			vp := ApplyZoom(Viewport{Scale: tc.start}, Point{X: 100, Y: 50}, tc.delta)
			assert.InDelta(t, tc.want, vp.Scale, 1e-12)
		})
	}
}

func TestApplyZoom_RepeatedNeverExceedsBounds(t *testing.T) {
	vp := NewViewport()
	for i := 0; i < 200; i++ {
		vp = ApplyZoom(vp, Point{X: float64(i), Y: float64(-i)}, 1.25)
		require.LessOrEqual(t, vp.Scale, MaxScale)
	}
	assert.Equal(t, MaxScale, vp.Scale)

	for i := 0; i < 200; i++ {
		vp = ApplyZoom(vp, Point{X: 3, Y: 4}, 0.8)
		require.GreaterOrEqual(t, vp.Scale, MinScale)
	}
	assert.Equal(t, MinScale, vp.Scale)
}

func TestApplyZoom_KeepsFocalPointFixed(t *testing.T) {
	vp := Viewport{Scale: 1.2, TranslateX: 30, TranslateY: 10}
	focal := Point{X: 250, Y: 125}

	before := ToScenePoint(focal, vp)
	after := ToScenePoint(focal, ApplyZoom(vp, focal, 1.5))

	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestApplyZoom_SaturatedKeepsFocalPointFixed(t *testing.T) {
	vp := Viewport{Scale: 4.5}
	focal := Point{X: 80, Y: 60}

	before := ToScenePoint(focal, vp)
	zoomed := ApplyZoom(vp, focal, 3)
	after := ToScenePoint(focal, zoomed)

	assert.Equal(t, MaxScale, zoomed.Scale)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestApplyPan_Unbounded(t *testing.T) {
	vp := ApplyPan(NewViewport(), -1e6, 2e6)
	assert.Equal(t, Viewport{Scale: 1, TranslateX: -1e6, TranslateY: 2e6}, vp)
}

func TestViewportClamp(t *testing.T) {
	assert.Equal(t, 1.0, Viewport{}.Clamp().Scale)
	assert.Equal(t, MaxScale, Viewport{Scale: 99}.Clamp().Scale)
	assert.Equal(t, MinScale, Viewport{Scale: 0.001}.Clamp().Scale)
	assert.Equal(t, 1.0, Viewport{Scale: math.NaN()}.Clamp().Scale)
}

func TestToScenePoint_InvertsMatrix(t *testing.T) {
	vp := Viewport{Scale: 2, TranslateX: 100, TranslateY: 50}
	assert.Equal(t, Point{X: 10, Y: 10}, ToScenePoint(Point{X: 120, Y: 70}, vp))

	// A degenerate viewport has no inverse; points pass through unchanged.
	assert.Equal(t, Point{X: 7, Y: 8}, ToScenePoint(Point{X: 7, Y: 8}, Viewport{}))
}
