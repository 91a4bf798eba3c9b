package scene

import (
	"fmt"

	"github.com/inamate/inkboard/internal/geom"
)

// Command is a mutation of the Model. Commands are applied through
// Model.Apply, the single entry point for content changes.
type Command interface {
	Kind() string
}

// Change describes the effect of an applied command.
type Change struct {
	ID      string // element created or touched, if any
	Mutated bool   // false for no-op commands
}

// AddShape appends a shape with a freshly generated id.
type AddShape struct {
	Shape Shape
}

// CommitPath appends a free-hand path. A single point is a valid dot.
type CommitPath struct {
	Points []geom.Point
	Style  Style
}

// AddAnnotation appends a text label with a freshly generated id.
type AddAnnotation struct {
	Annotation Annotation
}

// RemoveElement deletes a shape or annotation. Unknown ids are a no-op.
type RemoveElement struct {
	ID string
}

// Select sets the selection. An empty ID clears it.
type Select struct {
	ID string
}

// ReplaceAll swaps both collections atomically, as done when loading.
type ReplaceAll struct {
	Shapes      []Shape
	Annotations []Annotation
}

// MarkClean clears the dirty flag if the model is still at Revision.
type MarkClean struct {
	Revision uint64
}

// UpdateStyle restyles a shape.
type UpdateStyle struct {
	ID    string
	Style Style
}

// UpdateAnnotation edits an annotation's text and appearance. Zero
// FontSize and empty Color keep the current values.
type UpdateAnnotation struct {
	ID       string
	Text     string
	FontSize float64
	Color    string
}

// MoveElement translates an element in scene space.
type MoveElement struct {
	ID     string
	DX, DY float64
}

// Clear removes every element.
type Clear struct{}

func (AddShape) Kind() string         { return "shape.add" }
func (CommitPath) Kind() string       { return "path.commit" }
func (AddAnnotation) Kind() string    { return "annotation.add" }
func (RemoveElement) Kind() string    { return "element.remove" }
func (Select) Kind() string           { return "element.select" }
func (ReplaceAll) Kind() string       { return "scene.replace" }
func (MarkClean) Kind() string        { return "scene.clean" }
func (UpdateStyle) Kind() string      { return "shape.style" }
func (UpdateAnnotation) Kind() string { return "annotation.update" }
func (MoveElement) Kind() string      { return "element.move" }
func (Clear) Kind() string            { return "scene.clear" }

// Apply applies cmd to the model.
func (m *Model) Apply(cmd Command) (Change, error) {
	switch c := cmd.(type) {
	case AddShape:
		return m.applyAddShape(c.Shape), nil
	case CommitPath:
		return m.applyAddShape(NewPath(c.Points, c.Style)), nil
	case AddAnnotation:
		return m.applyAddAnnotation(c.Annotation), nil
	case RemoveElement:
		return m.applyRemove(c.ID), nil
	case Select:
		return m.applySelect(c.ID)
	case ReplaceAll:
		return m.applyReplaceAll(c), nil
	case MarkClean:
		return m.applyMarkClean(c.Revision), nil
	case UpdateStyle:
		return m.applyUpdateStyle(c)
	case UpdateAnnotation:
		return m.applyUpdateAnnotation(c)
	case MoveElement:
		return m.applyMove(c)
	case Clear:
		return m.applyClear(), nil
	case nil:
		return Change{}, fmt.Errorf("nil command")
	default:
		return Change{}, fmt.Errorf("unknown command: %s", cmd.Kind())
	}
}

func (m *Model) applyAddShape(s Shape) Change {
	s = s.clone()
	s.ID = m.newShapeID()
	m.shapes = append(m.shapes, s)
	m.touch()
	return Change{ID: s.ID, Mutated: true}
}

func (m *Model) applyAddAnnotation(a Annotation) Change {
	a.ID = m.newAnnotationID()
	if a.FontSize <= 0 {
		a.FontSize = DefaultFontSize
	}
	if a.Color == "" {
		a.Color = DefaultAnnotationColor
	}
	m.annotations = append(m.annotations, a)
	m.touch()
	return Change{ID: a.ID, Mutated: true}
}

func (m *Model) applyRemove(id string) Change {
	if i := m.shapeIndex(id); i >= 0 {
		m.shapes = append(m.shapes[:i], m.shapes[i+1:]...)
	} else if i := m.annotationIndex(id); i >= 0 {
		m.annotations = append(m.annotations[:i], m.annotations[i+1:]...)
	} else {
		return Change{ID: id}
	}

	if m.selected == id {
		m.selected = ""
	}
	m.touch()
	return Change{ID: id, Mutated: true}
}

func (m *Model) applySelect(id string) (Change, error) {
	if id != "" && !m.Contains(id) {
		return Change{}, fmt.Errorf("select %q: %w", id, ErrUnknownElement)
	}
	m.selected = id
	return Change{ID: id}, nil
}

func (m *Model) applyReplaceAll(c ReplaceAll) Change {
	shapes := make([]Shape, len(c.Shapes))
	for i, s := range c.Shapes {
		shapes[i] = s.clone()
	}
	m.shapes = shapes
	m.annotations = append([]Annotation(nil), c.Annotations...)
	m.selected = ""
	m.revision++
	m.dirty = false
	return Change{Mutated: true}
}

func (m *Model) applyMarkClean(revision uint64) Change {
	if revision != m.revision || !m.dirty {
		return Change{}
	}
	m.dirty = false
	return Change{Mutated: true}
}

func (m *Model) applyUpdateStyle(c UpdateStyle) (Change, error) {
	i := m.shapeIndex(c.ID)
	if i < 0 {
		return Change{}, fmt.Errorf("restyle %q: %w", c.ID, ErrUnknownElement)
	}
	m.shapes[i].Style = c.Style
	m.touch()
	return Change{ID: c.ID, Mutated: true}, nil
}

func (m *Model) applyUpdateAnnotation(c UpdateAnnotation) (Change, error) {
	i := m.annotationIndex(c.ID)
	if i < 0 {
		return Change{}, fmt.Errorf("update annotation %q: %w", c.ID, ErrUnknownElement)
	}

	a := &m.annotations[i]
	a.Text = c.Text
	if c.FontSize > 0 {
		a.FontSize = c.FontSize
	}
	if c.Color != "" {
		a.Color = c.Color
	}
	m.touch()
	return Change{ID: c.ID, Mutated: true}, nil
}

func (m *Model) applyMove(c MoveElement) (Change, error) {
	if i := m.shapeIndex(c.ID); i >= 0 {
		s := &m.shapes[i]
		switch s.Type {
		case ShapeTypePath:
			for j := range s.Points {
				s.Points[j] = s.Points[j].Add(c.DX, c.DY)
			}
		default:
			s.X += c.DX
			s.Y += c.DY
		}
	} else if i := m.annotationIndex(c.ID); i >= 0 {
		m.annotations[i].X += c.DX
		m.annotations[i].Y += c.DY
	} else {
		return Change{}, fmt.Errorf("move %q: %w", c.ID, ErrUnknownElement)
	}

	m.touch()
	return Change{ID: c.ID, Mutated: true}, nil
}

func (m *Model) applyClear() Change {
	if m.Len() == 0 {
		return Change{}
	}
	m.shapes = nil
	m.annotations = nil
	m.selected = ""
	m.touch()
	return Change{Mutated: true}
}
