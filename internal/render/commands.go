// Package render projects a scene onto a drawing surface. Everything here
// is a pure function of its Input; the model is never mutated.
package render

import (
	"encoding/json"
	"math"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

// DefaultGridPitch is the grid spacing in document pixels.
const DefaultGridPitch = 20

// Surface is the mounted drawing area in document pixels. The zero value
// means "not mounted".
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mounted reports whether the surface has a usable size.
func (s Surface) Mounted() bool {
	return s.Width > 0 && s.Height > 0
}

// Input is everything a frame depends on.
type Input struct {
	Shapes      []scene.Shape
	Annotations []scene.Annotation
	Selected    string
	Viewport    geom.Viewport
	Preview     []geom.Point // in-progress draw gesture, scene space
	Brush       scene.Style
	ShowGrid    bool
	GridPitch   float64
	Surface     Surface
}

func (in Input) pitch() float64 {
	if in.GridPitch > 0 {
		return in.GridPitch
	}
	return DefaultGridPitch
}

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string     `json:"op"`                    // "grid", "path", "rect", "text", "preview"
	ObjectID    string     `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64  `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        string     `json:"path,omitempty"`        // SVG path data for "path" and "preview"
	Rect        *geom.Rect `json:"rect,omitempty"`        // Box for "rect", extent for "grid"
	Text        string     `json:"text,omitempty"`        // Label for "text"
	X           float64    `json:"x,omitempty"`           // Text origin
	Y           float64    `json:"y,omitempty"`           // Text origin
	FontSize    float64    `json:"fontSize,omitempty"`    // Text size in scene units
	Fill        string     `json:"fill,omitempty"`        // Fill color
	Stroke      string     `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64    `json:"strokeWidth,omitempty"` // Stroke width
	Pitch       float64    `json:"pitch,omitempty"`       // Grid spacing
	Selected    bool       `json:"selected,omitempty"`    // Selection highlight
}

// Frame compiles the scene into draw commands in painter's order (back to
// front): grid backdrop, shapes, annotations, then the draw preview.
func Frame(in Input) []DrawCommand {
	var commands []DrawCommand

	// The grid lives in document space: no transform, fixed pitch.
	if in.ShowGrid && in.Surface.Mounted() {
		commands = append(commands, DrawCommand{
			Op:    "grid",
			Rect:  &geom.Rect{Width: in.Surface.Width, Height: in.Surface.Height},
			Pitch: in.pitch(),
		})
	}

	transform := in.Viewport.Matrix().ToSlice()

	for _, s := range in.Shapes {
		cmd := DrawCommand{
			ObjectID:    s.ID,
			Transform:   transform,
			Fill:        s.Fill,
			Stroke:      s.StrokeColor,
			StrokeWidth: s.StrokeWidth,
			Selected:    s.ID == in.Selected,
		}
		switch s.Type {
		case scene.ShapeTypePath:
			cmd.Op = "path"
			cmd.Path = s.PathData()
		case scene.ShapeTypeRect:
			cmd.Op = "rect"
			r := s.Bounds()
			cmd.Rect = &r
		default:
			continue
		}
		commands = append(commands, cmd)
	}

	for _, a := range in.Annotations {
		commands = append(commands, DrawCommand{
			Op:        "text",
			ObjectID:  a.ID,
			Transform: transform,
			Text:      a.Text,
			X:         a.X,
			Y:         a.Y,
			FontSize:  a.FontSize,
			Fill:      a.Color,
			Selected:  a.ID == in.Selected,
		})
	}

	if len(in.Preview) > 0 {
		commands = append(commands, DrawCommand{
			Op:          "preview",
			Transform:   transform,
			Path:        scene.PathData(in.Preview),
			Fill:        "none",
			Stroke:      in.Brush.StrokeColor,
			StrokeWidth: in.Brush.StrokeWidth,
		})
	}

	return commands
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// hitSlop is the minimum pick distance in document pixels, so thin strokes
// stay clickable when zoomed out.
const hitSlop = 4

// HitTest returns the id of the topmost element under the document point,
// or "" if nothing is hit. Annotations are drawn over shapes, and later
// elements over earlier ones.
func HitTest(in Input, doc geom.Point) string {
	if in.Viewport.Scale <= 0 {
		return ""
	}
	p := geom.ToScenePoint(doc, in.Viewport)
	slop := hitSlop / in.Viewport.Scale

	for i := len(in.Annotations) - 1; i >= 0; i-- {
		a := in.Annotations[i]
		if a.Bounds().Inset(-slop).Contains(p) {
			return a.ID
		}
	}

	for i := len(in.Shapes) - 1; i >= 0; i-- {
		if hitShape(in.Shapes[i], p, slop) {
			return in.Shapes[i].ID
		}
	}

	return ""
}

func hitShape(s scene.Shape, p geom.Point, slop float64) bool {
	tol := math.Max(s.StrokeWidth/2, slop)

	switch s.Type {
	case scene.ShapeTypePath:
		if !s.Bounds().Inset(-tol).Contains(p) {
			return false
		}
		if len(s.Points) == 1 {
			return distance(p, s.Points[0]) <= tol
		}
		for i := 1; i < len(s.Points); i++ {
			if segmentDistance(p, s.Points[i-1], s.Points[i]) <= tol {
				return true
			}
		}
		return false

	case scene.ShapeTypeRect:
		r := s.Bounds()
		if !r.Inset(-tol).Contains(p) {
			return false
		}
		// fill="none" is not painted, so only the outline is clickable.
		if paintsFill(s.Fill) {
			return true
		}
		return !r.Inset(tol).Contains(p)
	}

	return false
}

func paintsFill(fill string) bool {
	return fill != "" && fill != "none"
}

func distance(a, b geom.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// segmentDistance is the distance from p to the segment ab.
func segmentDistance(p, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(p, a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(p, geom.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// SelectionBounds returns the document-space box of the selected element,
// for drawing handles. Empty when nothing is selected.
func SelectionBounds(in Input) geom.Rect {
	if in.Selected == "" {
		return geom.Rect{}
	}
	m := in.Viewport.Matrix()
	for _, s := range in.Shapes {
		if s.ID == in.Selected {
			return m.TransformRect(s.Bounds())
		}
	}
	for _, a := range in.Annotations {
		if a.ID == in.Selected {
			return m.TransformRect(a.Bounds())
		}
	}
	return geom.Rect{}
}
