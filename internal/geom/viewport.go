package geom

import "math"

// Scale bounds for every pan/zoom gesture.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// Viewport is the pan/zoom transform between scene space (where geometry
// is stored) and document space (where pointer events arrive):
//
//	doc = scene*Scale + (TranslateX, TranslateY)
type Viewport struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// NewViewport returns the identity viewport.
func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// Matrix returns the forward (scene → document) matrix.
func (v Viewport) Matrix() Matrix2D {
	return Translate(v.TranslateX, v.TranslateY).Multiply(Scale(v.Scale, v.Scale))
}

// Clamp forces the scale into [MinScale, MaxScale]. A zero or invalid
// scale becomes 1.
func (v Viewport) Clamp() Viewport {
	if v.Scale == 0 || math.IsNaN(v.Scale) || math.IsInf(v.Scale, 0) {
		v.Scale = 1
	}
	v.Scale = clampScale(v.Scale)
	return v
}

// ToScenePoint maps a document-space point into scene space through the
// inverse of the viewport matrix.
func ToScenePoint(doc Point, v Viewport) Point {
	return v.Matrix().Invert().TransformPoint(doc)
}

// ToDocumentPoint maps a scene-space point into document space. It is the
// exact inverse of ToScenePoint.
func ToDocumentPoint(scene Point, v Viewport) Point {
	return Point{
		X: scene.X*v.Scale + v.TranslateX,
		Y: scene.Y*v.Scale + v.TranslateY,
	}
}

// ApplyZoom multiplies the scale by deltaScale around focal (a document
// point, usually the cursor). The scene point under focal stays put. The
// resulting scale saturates at the bounds. Non-positive or non-finite
// deltas leave v unchanged.
func ApplyZoom(v Viewport, focal Point, deltaScale float64) Viewport {
	if deltaScale <= 0 || math.IsNaN(deltaScale) || math.IsInf(deltaScale, 0) {
		return v
	}

	anchor := ToScenePoint(focal, v)
	scale := clampScale(v.Scale * deltaScale)

	return Viewport{
		Scale:      scale,
		TranslateX: focal.X - anchor.X*scale,
		TranslateY: focal.Y - anchor.Y*scale,
	}
}

// ApplyPan translates the viewport. The scene is unbounded.
func ApplyPan(v Viewport, dx, dy float64) Viewport {
	v.TranslateX += dx
	v.TranslateY += dy
	return v
}

func clampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}
