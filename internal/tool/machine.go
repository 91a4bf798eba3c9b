// Package tool interprets pointer input according to the active tool.
//
// The machine never touches the scene model directly: it returns the
// scene.Command to apply, so the owner decides when and where mutations
// happen and the machine can be tested without a rendering surface.
package tool

import (
	"fmt"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

type Tool string

const (
	Select Tool = "select"
	Draw   Tool = "draw"
)

// ParseTool converts a wire name into a Tool.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case Select, Draw:
		return Tool(s), nil
	default:
		return "", fmt.Errorf("unknown tool %q", s)
	}
}

type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Machine is the draw-gesture state machine. The zero value is not
// usable; call NewMachine.
type Machine struct {
	tool    Tool
	state   State
	brush   scene.Style
	preview []geom.Point // scene space
}

// NewMachine starts Idle with the Draw tool and the default brush.
func NewMachine() *Machine {
	return &Machine{
		tool:  Draw,
		state: Idle,
		brush: scene.DefaultStyle(),
	}
}

func (m *Machine) Tool() Tool { return m.tool }

func (m *Machine) State() State { return m.state }

func (m *Machine) Brush() scene.Style { return m.brush }

// SetBrush sets the style used for the next committed path.
func (m *Machine) SetBrush(s scene.Style) { m.brush = s }

// Preview returns a copy of the in-progress path in scene space, or nil
// when Idle.
func (m *Machine) Preview() []geom.Point {
	if m.state != Drawing {
		return nil
	}
	return append([]geom.Point(nil), m.preview...)
}

// SetTool switches tools. Any in-progress gesture is cancelled, even when
// the tool does not change.
func (m *Machine) SetTool(t Tool) {
	m.cancel()
	m.tool = t
}

// PointerDown starts a path at the pointer's scene position.
func (m *Machine) PointerDown(doc geom.Point, vp geom.Viewport) {
	if m.tool != Draw || m.state != Idle {
		return
	}
	m.state = Drawing
	m.preview = []geom.Point{geom.ToScenePoint(doc, vp)}
}

// PointerMove extends the in-progress path.
func (m *Machine) PointerMove(doc geom.Point, vp geom.Viewport) {
	if m.tool != Draw || m.state != Drawing {
		return
	}
	m.preview = append(m.preview, geom.ToScenePoint(doc, vp))
}

// PointerUp finishes the gesture and returns the CommitPath to apply, or
// nil when no gesture was in progress. A gesture that never moved commits
// a single-point path.
func (m *Machine) PointerUp(doc geom.Point, vp geom.Viewport) scene.Command {
	if m.tool != Draw || m.state != Drawing {
		return nil
	}

	points := m.preview
	m.state = Idle
	m.preview = nil
	return scene.CommitPath{Points: points, Style: m.brush}
}

// PointerLeave cancels the gesture when the pointer leaves the surface.
func (m *Machine) PointerLeave() {
	m.cancel()
}

func (m *Machine) cancel() {
	m.state = Idle
	m.preview = nil
}

// Default geometry for the insertion commands.
var (
	DefaultRect          = geom.Rect{X: 100, Y: 100, Width: 100, Height: 80}
	DefaultAnnotationPos = geom.Point{X: 200, Y: 200}
)

// AddRectangle returns the atomic "add rectangle" command. It does not
// depend on the active tool.
func AddRectangle() scene.Command {
	return scene.AddShape{Shape: scene.NewRect(DefaultRect, scene.DefaultRectStyle())}
}

// AddText returns the atomic "add text" command at the default position.
func AddText(text string) scene.Command {
	return scene.AddAnnotation{Annotation: scene.Annotation{
		Text:     text,
		X:        DefaultAnnotationPos.X,
		Y:        DefaultAnnotationPos.Y,
		FontSize: scene.DefaultFontSize,
		Color:    scene.DefaultAnnotationColor,
	}}
}
