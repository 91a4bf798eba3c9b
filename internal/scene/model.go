// Package scene holds the canonical drawable content of a canvas: shapes,
// text annotations, the current selection and the unsaved-changes flag.
package scene

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/typeid"
)

var ErrUnknownElement = errors.New("unknown element")

type ShapeType string

const (
	ShapeTypePath ShapeType = "path"
	ShapeTypeRect ShapeType = "rect"
)

// Style is the stroke/fill triple shared by all shapes.
type Style struct {
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	Fill        string  `json:"fill"`
}

// DefaultStyle is the free-hand brush.
func DefaultStyle() Style {
	return Style{StrokeColor: "#000000", StrokeWidth: 2, Fill: "none"}
}

// DefaultRectStyle is used by the "add rectangle" command.
func DefaultRectStyle() Style {
	return Style{StrokeColor: "#2563eb", StrokeWidth: 2, Fill: "transparent"}
}

// Shape is a drawn primitive. Path shapes use Points; rect shapes use the
// box fields. All geometry is in scene space.
type Shape struct {
	ID     string       `json:"id"`
	Type   ShapeType    `json:"type"`
	Points []geom.Point `json:"points,omitempty"`
	X      float64      `json:"x,omitempty"`
	Y      float64      `json:"y,omitempty"`
	Width  float64      `json:"width,omitempty"`
	Height float64      `json:"height,omitempty"`
	Style
}

// NewPath builds an unsaved path shape. The id is assigned when it is
// added to a Model.
func NewPath(points []geom.Point, style Style) Shape {
	return Shape{
		Type:   ShapeTypePath,
		Points: append([]geom.Point(nil), points...),
		Style:  style,
	}
}

// NewRect builds an unsaved rect shape.
func NewRect(r geom.Rect, style Style) Shape {
	return Shape{
		Type:   ShapeTypeRect,
		X:      r.X,
		Y:      r.Y,
		Width:  r.Width,
		Height: r.Height,
		Style:  style,
	}
}

// PathData returns the SVG path command string for a path shape:
// "M x y" followed by one "L x y" per further point.
func (s Shape) PathData() string {
	return PathData(s.Points)
}

// PathData formats points as an SVG move/line command string.
func PathData(points []geom.Point) string {
	if len(points) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(geom.FormatFloat(p.X))
		b.WriteByte(' ')
		b.WriteString(geom.FormatFloat(p.Y))
	}
	// A lone moveto paints nothing; a zero-length segment lets the round
	// cap draw the dot.
	if len(points) == 1 {
		b.WriteString(" L ")
		b.WriteString(geom.FormatFloat(points[0].X))
		b.WriteByte(' ')
		b.WriteString(geom.FormatFloat(points[0].Y))
	}
	return b.String()
}

// Bounds returns the scene-space box of the shape, ignoring stroke width.
func (s Shape) Bounds() geom.Rect {
	switch s.Type {
	case ShapeTypePath:
		return geom.BoundsOf(s.Points)
	case ShapeTypeRect:
		r := geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
		if r.Width < 0 {
			r.X, r.Width = r.X+r.Width, -r.Width
		}
		if r.Height < 0 {
			r.Y, r.Height = r.Y+r.Height, -r.Height
		}
		return r
	}
	return geom.Rect{}
}

func (s Shape) clone() Shape {
	s.Points = append([]geom.Point(nil), s.Points...)
	return s
}

// Annotation is a positioned text label. (X, Y) is the top-left corner of
// the text box in scene space.
type Annotation struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
}

const (
	DefaultFontSize        = 16
	DefaultAnnotationColor = "#111827"

	// average glyph advance relative to font size, used for hit boxes
	glyphAdvance = 0.6
	lineHeight   = 1.2
)

// Bounds approximates the box covered by the rendered text.
func (a Annotation) Bounds() geom.Rect {
	n := utf8.RuneCountInString(a.Text)
	if n == 0 {
		n = 1
	}
	return geom.Rect{
		X:      a.X,
		Y:      a.Y,
		Width:  float64(n) * a.FontSize * glyphAdvance,
		Height: a.FontSize * lineHeight,
	}
}

// Model is the single source of truth for drawable content and selection.
// It is not safe for concurrent use; the engine serializes access.
type Model struct {
	shapes      []Shape
	annotations []Annotation
	selected    string
	dirty       bool
	revision    uint64

	newShapeID      func() string
	newAnnotationID func() string
}

// NewModel creates an empty, clean model.
func NewModel() *Model {
	return &Model{
		newShapeID:      typeid.NewShapeID,
		newAnnotationID: typeid.NewAnnotationID,
	}
}

// Snapshot is an immutable deep copy of the content taken at a revision.
type Snapshot struct {
	Shapes      []Shape
	Annotations []Annotation
	Revision    uint64
}

// Snapshot copies the current content. Later edits to the model do not
// affect the returned value.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		Shapes:      m.Shapes(),
		Annotations: m.Annotations(),
		Revision:    m.revision,
	}
}

// Shapes returns a copy of the shapes in painter's order.
func (m *Model) Shapes() []Shape {
	out := make([]Shape, len(m.shapes))
	for i, s := range m.shapes {
		out[i] = s.clone()
	}
	return out
}

// Annotations returns a copy of the annotations in painter's order.
func (m *Model) Annotations() []Annotation {
	return append(make([]Annotation, 0, len(m.annotations)), m.annotations...)
}

// Selected returns the selected element id, or "" when nothing is selected.
func (m *Model) Selected() string { return m.selected }

// Dirty reports unsaved mutations since the last successful save or load.
func (m *Model) Dirty() bool { return m.dirty }

// Revision increases on every content mutation.
func (m *Model) Revision() uint64 { return m.revision }

// Len returns the total number of elements.
func (m *Model) Len() int { return len(m.shapes) + len(m.annotations) }

// Shape looks up a shape by id.
func (m *Model) Shape(id string) (Shape, bool) {
	if i := m.shapeIndex(id); i >= 0 {
		return m.shapes[i].clone(), true
	}
	return Shape{}, false
}

// Annotation looks up an annotation by id.
func (m *Model) Annotation(id string) (Annotation, bool) {
	if i := m.annotationIndex(id); i >= 0 {
		return m.annotations[i], true
	}
	return Annotation{}, false
}

// Contains reports whether id names a shape or an annotation.
func (m *Model) Contains(id string) bool {
	return id != "" && (m.shapeIndex(id) >= 0 || m.annotationIndex(id) >= 0)
}

// --- Convenience wrappers around Apply ---

// AddShape appends s with a fresh id and returns the stored shape.
func (m *Model) AddShape(s Shape) Shape {
	ch, _ := m.Apply(AddShape{Shape: s})
	out, _ := m.Shape(ch.ID)
	return out
}

// AddAnnotation appends a with a fresh id and returns the stored annotation.
func (m *Model) AddAnnotation(a Annotation) Annotation {
	ch, _ := m.Apply(AddAnnotation{Annotation: a})
	out, _ := m.Annotation(ch.ID)
	return out
}

// RemoveElement deletes id from whichever collection holds it. It reports
// whether anything was removed; absent ids are a no-op.
func (m *Model) RemoveElement(id string) bool {
	ch, _ := m.Apply(RemoveElement{ID: id})
	return ch.Mutated
}

// Select sets the selection. An empty id clears it.
func (m *Model) Select(id string) error {
	_, err := m.Apply(Select{ID: id})
	return err
}

// ReplaceAll swaps in loaded content and marks the model clean.
func (m *Model) ReplaceAll(shapes []Shape, annotations []Annotation) {
	m.Apply(ReplaceAll{Shapes: shapes, Annotations: annotations})
}

// MarkClean clears the dirty flag for the current revision.
func (m *Model) MarkClean() {
	m.Apply(MarkClean{Revision: m.revision})
}

func (m *Model) shapeIndex(id string) int {
	for i := range m.shapes {
		if m.shapes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) annotationIndex(id string) int {
	for i := range m.annotations {
		if m.annotations[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) touch() {
	m.dirty = true
	m.revision++
}
