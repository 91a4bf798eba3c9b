package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/export"
	"github.com/inamate/inkboard/internal/gateway"
	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/render"
	"github.com/inamate/inkboard/internal/scene"
	"github.com/inamate/inkboard/internal/tool"
)

// Engine owns one canvas: the scene model, the view, the active tool and
// the project's saved-artifact list. All methods are safe to call from
// multiple goroutines; they are serialized on a single lock.
type Engine struct {
	mu sync.Mutex

	projectID string
	gw        gateway.Gateway
	notify    Notifier
	log       *slog.Logger
	now       func() time.Time

	model    *scene.Model
	viewport geom.Viewport
	machine  *tool.Machine
	surface  render.Surface

	showGrid  bool
	gridPitch float64

	// Local cache of the project's artifacts. Each completed save or
	// refresh replaces it wholesale.
	saved []artifact.Artifact

	pending sync.WaitGroup
}

// Options configures a new Engine.
type Options struct {
	ProjectID string
	Gateway   gateway.Gateway
	Notify    Notifier
	Logger    *slog.Logger
	GridPitch float64
	ShowGrid  bool
}

// New creates an engine with an empty, clean scene and the Draw tool.
func New(opts Options) *Engine {
	e := &Engine{
		projectID: opts.ProjectID,
		gw:        opts.Gateway,
		notify:    opts.Notify,
		log:       opts.Logger,
		now:       time.Now,
		model:     scene.NewModel(),
		viewport:  geom.NewViewport(),
		machine:   tool.NewMachine(),
		showGrid:  opts.ShowGrid,
		gridPitch: opts.GridPitch,
	}
	if e.notify == nil {
		e.notify = func(Notification) {}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("project", e.projectID)
	return e
}

// ProjectID returns the project the engine persists into.
func (e *Engine) ProjectID() string { return e.projectID }

// --- Surface ---

// Mount gives the engine a drawing surface of the given size in document
// pixels. Markup and saving need a mounted surface.
func (e *Engine) Mount(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = render.Surface{Width: width, Height: height}
}

// Unmount detaches the surface and cancels any gesture.
func (e *Engine) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = render.Surface{}
	e.machine.PointerLeave()
}

// --- Pointer input (document coordinates) ---

// PointerDown starts a stroke with the Draw tool. With the Select tool it
// selects the topmost element under the pointer, or clears the selection.
func (e *Engine) PointerDown(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := geom.Point{X: x, Y: y}
	if e.machine.Tool() == tool.Select {
		id := render.HitTest(e.input(), p)
		e.apply(scene.Select{ID: id})
		return
	}
	e.machine.PointerDown(p, e.viewport)
}

func (e *Engine) PointerMove(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.PointerMove(geom.Point{X: x, Y: y}, e.viewport)
}

func (e *Engine) PointerUp(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cmd := e.machine.PointerUp(geom.Point{X: x, Y: y}, e.viewport); cmd != nil {
		e.apply(cmd)
	}
}

func (e *Engine) PointerLeave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.PointerLeave()
}

// SetTool switches the active tool, cancelling any gesture in progress.
func (e *Engine) SetTool(t tool.Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.SetTool(t)
}

// SetBrush sets the style used for the next committed stroke.
func (e *Engine) SetBrush(s scene.Style) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.SetBrush(s)
}

// --- View ---

// Zoom scales the view by delta around the focal point (document coords).
func (e *Engine) Zoom(fx, fy, delta float64) geom.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = geom.ApplyZoom(e.viewport, geom.Point{X: fx, Y: fy}, delta)
	return e.viewport
}

// Pan moves the view by (dx, dy) document pixels.
func (e *Engine) Pan(dx, dy float64) geom.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = geom.ApplyPan(e.viewport, dx, dy)
	return e.viewport
}

// ResetView returns to scale 1 with no translation.
func (e *Engine) ResetView() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = geom.NewViewport()
}

func (e *Engine) SetGrid(show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showGrid = show
}

func (e *Engine) ToggleGrid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showGrid = !e.showGrid
	return e.showGrid
}

// --- Scene commands ---

// AddRectangle inserts the default rectangle regardless of the active tool.
func (e *Engine) AddRectangle() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.apply(tool.AddRectangle())
	return ch.ID
}

// AddAnnotation inserts a text label at the default position.
func (e *Engine) AddAnnotation(text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.apply(tool.AddText(text))
	return ch.ID
}

// Delete removes an element. Unknown ids are ignored.
func (e *Engine) Delete(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.apply(scene.RemoveElement{ID: id})
	return ch.Mutated
}

// DeleteSelected removes the selected element, if any.
func (e *Engine) DeleteSelected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.model.Selected()
	if id == "" {
		return false
	}
	ch, _ := e.apply(scene.RemoveElement{ID: id})
	return ch.Mutated
}

func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.apply(scene.Select{ID: id})
	return err
}

func (e *Engine) UpdateStyle(id string, style scene.Style) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.apply(scene.UpdateStyle{ID: id, Style: style})
	return err
}

func (e *Engine) UpdateAnnotation(id, text string, fontSize float64, color string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.apply(scene.UpdateAnnotation{ID: id, Text: text, FontSize: fontSize, Color: color})
	return err
}

func (e *Engine) Move(id string, dx, dy float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.apply(scene.MoveElement{ID: id, DX: dx, DY: dy})
	return err
}

// Clear removes every element.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.apply(scene.Clear{})
}

// Apply runs an arbitrary scene command.
func (e *Engine) Apply(cmd scene.Command) (scene.Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(cmd)
}

func (e *Engine) apply(cmd scene.Command) (scene.Change, error) {
	ch, err := e.model.Apply(cmd)
	if err != nil {
		e.log.Debug("command rejected", "kind", kindOf(cmd), "error", err)
	}
	return ch, err
}

func kindOf(cmd scene.Command) string {
	if cmd == nil {
		return "nil"
	}
	return cmd.Kind()
}

// --- Queries ---

// input captures everything a frame depends on. Caller holds mu.
func (e *Engine) input() render.Input {
	return render.Input{
		Shapes:      e.model.Shapes(),
		Annotations: e.model.Annotations(),
		Selected:    e.model.Selected(),
		Viewport:    e.viewport,
		Preview:     e.machine.Preview(),
		Brush:       e.machine.Brush(),
		ShowGrid:    e.showGrid,
		GridPitch:   e.gridPitch,
		Surface:     e.surface,
	}
}

// Frame returns the draw commands for the current state.
func (e *Engine) Frame() []render.DrawCommand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.Frame(e.input())
}

// Render returns the current frame as a JSON array of draw commands.
func (e *Engine) Render() string {
	result, _ := render.DrawCommandsToJSON(e.Frame())
	return result
}

// Markup returns the current content as standalone SVG.
func (e *Engine) Markup() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.Markup(e.input())
}

// HitTest returns the topmost element at a document point, or "".
func (e *Engine) HitTest(x, y float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.HitTest(e.input(), geom.Point{X: x, Y: y})
}

// SelectionBounds returns the selected element's box in document space.
func (e *Engine) SelectionBounds() geom.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.SelectionBounds(e.input())
}

func (e *Engine) Shapes() []scene.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Shapes()
}

func (e *Engine) Annotations() []scene.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Annotations()
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Selected()
}

func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Dirty()
}

func (e *Engine) Tool() tool.Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Tool()
}

func (e *Engine) Viewport() geom.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// SavedArtifacts returns a copy of the cached artifact list.
func (e *Engine) SavedArtifacts() []artifact.Artifact {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]artifact.Artifact(nil), e.saved...)
}

// Status is a compact summary of the engine state for UIs.
type Status struct {
	Tool        string        `json:"tool"`
	State       string        `json:"state"`
	Viewport    geom.Viewport `json:"viewport"`
	ShowGrid    bool          `json:"showGrid"`
	Selected    string        `json:"selected,omitempty"`
	Dirty       bool          `json:"dirty"`
	Shapes      int           `json:"shapes"`
	Annotations int           `json:"annotations"`
	Mounted     bool          `json:"mounted"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Tool:        string(e.machine.Tool()),
		State:       e.machine.State().String(),
		Viewport:    e.viewport,
		ShowGrid:    e.showGrid,
		Selected:    e.model.Selected(),
		Dirty:       e.model.Dirty(),
		Shapes:      len(e.model.Shapes()),
		Annotations: len(e.model.Annotations()),
		Mounted:     e.surface.Mounted(),
	}
}

// --- Export ---

// Export writes the current rendering as SVG. It needs no network.
func (e *Engine) Export(w io.Writer) error {
	markup, err := e.Markup()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return export.WriteSVG(w, markup)
}

// ExportFile writes the current rendering into dir and returns the path.
func (e *Engine) ExportFile(dir, name string) (string, error) {
	markup, err := e.Markup()
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return export.SaveFile(dir, name, markup)
}

// Wait blocks until every in-flight save has finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}
