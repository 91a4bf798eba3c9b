package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

func apply(t *testing.T, m *scene.Model, cmd scene.Command) {
	t.Helper()
	if cmd == nil {
		return
	}
	_, err := m.Apply(cmd)
	require.NoError(t, err)
}

func TestDrawGesture_CommitsPath(t *testing.T) {
	mach := NewMachine()
	model := scene.NewModel()
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{X: 10, Y: 10}, vp)
	assert.Equal(t, Drawing, mach.State())
	mach.PointerMove(geom.Point{X: 20, Y: 15}, vp)
	mach.PointerMove(geom.Point{X: 30, Y: 25}, vp)
	assert.Len(t, mach.Preview(), 3)
	assert.Empty(t, model.Shapes(), "preview is not part of the model")

	apply(t, model, mach.PointerUp(geom.Point{X: 30, Y: 25}, vp))

	assert.Equal(t, Idle, mach.State())
	assert.Nil(t, mach.Preview())
	shapes := model.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, scene.ShapeTypePath, shapes[0].Type)
	assert.Equal(t, "M 10 10 L 20 15 L 30 25", shapes[0].PathData())
	assert.Equal(t, scene.DefaultStyle(), shapes[0].Style)
}

func TestDrawGesture_NoMoveCommitsDot(t *testing.T) {
	mach := NewMachine()
	model := scene.NewModel()
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{X: 42, Y: 7}, vp)
	apply(t, model, mach.PointerUp(geom.Point{X: 42, Y: 7}, vp))

	shapes := model.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, []geom.Point{{X: 42, Y: 7}}, shapes[0].Points)
}

func TestDrawGesture_StoresSceneCoordinates(t *testing.T) {
	mach := NewMachine()
	model := scene.NewModel()
	vp := geom.Viewport{Scale: 2, TranslateX: 100, TranslateY: 50}

	mach.PointerDown(geom.Point{X: 120, Y: 70}, vp)
	apply(t, model, mach.PointerUp(geom.Point{X: 120, Y: 70}, vp))

	assert.Equal(t, []geom.Point{{X: 10, Y: 10}}, model.Shapes()[0].Points)
}

func TestToolSwitch_CancelsGesture(t *testing.T) {
	mach := NewMachine()
	model := scene.NewModel()
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{X: 1, Y: 1}, vp)
	mach.PointerMove(geom.Point{X: 5, Y: 5}, vp)
	mach.SetTool(Select)
	apply(t, model, mach.PointerUp(geom.Point{X: 5, Y: 5}, vp))

	assert.Empty(t, model.Shapes())
	assert.Equal(t, Idle, mach.State())
	assert.Nil(t, mach.Preview())
}

func TestToolSwitch_SameToolStillCancels(t *testing.T) {
	mach := NewMachine()
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{}, vp)
	mach.SetTool(Draw)

	assert.Equal(t, Idle, mach.State())
	assert.Nil(t, mach.PointerUp(geom.Point{}, vp))
}

func TestPointerLeave_Cancels(t *testing.T) {
	mach := NewMachine()
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{X: 3, Y: 3}, vp)
	mach.PointerLeave()

	assert.Equal(t, Idle, mach.State())
	assert.Nil(t, mach.PointerUp(geom.Point{X: 3, Y: 3}, vp))
}

func TestSelectTool_IgnoresPointer(t *testing.T) {
	mach := NewMachine()
	mach.SetTool(Select)
	vp := geom.NewViewport()

	mach.PointerDown(geom.Point{X: 1, Y: 1}, vp)
	mach.PointerMove(geom.Point{X: 2, Y: 2}, vp)
	assert.Equal(t, Idle, mach.State())
	assert.Nil(t, mach.PointerUp(geom.Point{X: 2, Y: 2}, vp))
}

func TestStrayEventsWhileIdle(t *testing.T) {
	mach := NewMachine()
	vp := geom.NewViewport()

	mach.PointerMove(geom.Point{X: 1, Y: 1}, vp)
	assert.Nil(t, mach.PointerUp(geom.Point{X: 1, Y: 1}, vp))
	assert.Equal(t, Idle, mach.State())
}

func TestBrushAppliesToCommittedPath(t *testing.T) {
	mach := NewMachine()
	brush := scene.Style{StrokeColor: "#ff0000", StrokeWidth: 6, Fill: "none"}
	mach.SetBrush(brush)

	mach.PointerDown(geom.Point{}, geom.NewViewport())
	cmd := mach.PointerUp(geom.Point{}, geom.NewViewport())

	commit, ok := cmd.(scene.CommitPath)
	require.True(t, ok)
	assert.Equal(t, brush, commit.Style)
}

func TestInsertionCommands_IndependentOfTool(t *testing.T) {
	model := scene.NewModel()
	mach := NewMachine()
	mach.SetTool(Select)

	apply(t, model, AddRectangle())
	apply(t, model, AddText("Hi"))

	shapes := model.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, DefaultRect, shapes[0].Bounds())
	notes := model.Annotations()
	require.Len(t, notes, 1)
	assert.Equal(t, "Hi", notes[0].Text)
	assert.Equal(t, DefaultAnnotationPos.X, notes[0].X)
}

func TestParseTool(t *testing.T) {
	got, err := ParseTool("draw")
	require.NoError(t, err)
	assert.Equal(t, Draw, got)

	_, err = ParseTool("lasso")
	assert.Error(t, err)
}
