package render

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

func sampleInput() Input {
	return Input{
		Shapes: []scene.Shape{
			{ID: "shape_rect", Type: scene.ShapeTypeRect, X: 100, Y: 100, Width: 100, Height: 80, Style: scene.DefaultRectStyle()},
			{ID: "shape_path", Type: scene.ShapeTypePath, Points: []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 0}}, Style: scene.DefaultStyle()},
		},
		Annotations: []scene.Annotation{
			{ID: "ann_hi", Text: "Hi", X: 200, Y: 200, FontSize: 16, Color: "#111827"},
		},
		Viewport: geom.NewViewport(),
		Surface:  Surface{Width: 800, Height: 600},
	}
}

func ops(cmds []DrawCommand) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func TestFrame_PainterOrder(t *testing.T) {
	in := sampleInput()
	in.ShowGrid = true
	in.Preview = []geom.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}
	in.Brush = scene.DefaultStyle()

	cmds := Frame(in)
	assert.Equal(t, []string{"grid", "rect", "path", "text", "preview"}, ops(cmds))
	assert.Nil(t, cmds[0].Transform, "grid is drawn in document space")
	assert.Equal(t, float64(DefaultGridPitch), cmds[0].Pitch)
	assert.Equal(t, "M 1 1 L 2 2", cmds[4].Path)
}

func TestFrame_GridHiddenOrUnmounted(t *testing.T) {
	in := sampleInput()
	assert.NotContains(t, ops(Frame(in)), "grid")

	in.ShowGrid = true
	in.Surface = Surface{}
	assert.NotContains(t, ops(Frame(in)), "grid")
}

func TestFrame_GridIgnoresZoom(t *testing.T) {
	in := sampleInput()
	in.ShowGrid = true
	in.GridPitch = 25
	in.Viewport = geom.Viewport{Scale: 3, TranslateX: 10}

	grid := Frame(in)[0]
	assert.Equal(t, 25.0, grid.Pitch)
	assert.Equal(t, &geom.Rect{Width: 800, Height: 600}, grid.Rect)
}

func TestFrame_SelectionAndTransform(t *testing.T) {
	in := sampleInput()
	in.Selected = "ann_hi"
	in.Viewport = geom.Viewport{Scale: 2, TranslateX: 5, TranslateY: 6}

	for _, c := range Frame(in) {
		assert.Equal(t, c.ObjectID == "ann_hi", c.Selected, c.ObjectID)
		assert.Equal(t, []float64{2, 0, 0, 2, 5, 6}, c.Transform)
	}
}

func TestFrame_DoesNotMutateInput(t *testing.T) {
	in := sampleInput()
	before := sampleInput()
	Frame(in)
	assert.Equal(t, before, in)
}

func TestDrawCommandsToJSON(t *testing.T) {
	out, err := DrawCommandsToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = DrawCommandsToJSON(Frame(sampleInput()))
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 3)
	assert.Equal(t, "rect", decoded[0]["op"])
}

func TestHitTest(t *testing.T) {
	in := sampleInput()

	tcs := []struct {
		name string
		at   geom.Point
		want string
	}{
		{name: "rect interior transparent fill", at: geom.Point{X: 150, Y: 140}, want: "shape_rect"},
		{name: "path segment", at: geom.Point{X: 25, Y: 1}, want: "shape_path"},
		{name: "annotation", at: geom.Point{X: 205, Y: 205}, want: "ann_hi"},
		{name: "empty space", at: geom.Point{X: 500, Y: 500}, want: ""},
		{name: "off the path line", at: geom.Point{X: 25, Y: 30}, want: ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HitTest(in, tc.at))
		})
	}
}

func TestHitTest_AnnotationsAboveShapes(t *testing.T) {
	in := sampleInput()
	in.Annotations[0].X, in.Annotations[0].Y = 120, 120
	assert.Equal(t, "ann_hi", HitTest(in, geom.Point{X: 125, Y: 125}))
}

func TestHitTest_LaterShapeWins(t *testing.T) {
	in := sampleInput()
	in.Shapes = append(in.Shapes, scene.Shape{ID: "shape_top", Type: scene.ShapeTypeRect, X: 90, Y: 90, Width: 50, Height: 50, Style: scene.DefaultRectStyle()})
	assert.Equal(t, "shape_top", HitTest(in, geom.Point{X: 120, Y: 120}))
}

func TestHitTest_UnfilledRectOnlyOutline(t *testing.T) {
	in := Input{
		Shapes:   []scene.Shape{{ID: "shape_box", Type: scene.ShapeTypeRect, X: 0, Y: 0, Width: 100, Height: 100, Style: scene.Style{StrokeColor: "#000", StrokeWidth: 2, Fill: "none"}}},
		Viewport: geom.NewViewport(),
	}
	assert.Equal(t, "", HitTest(in, geom.Point{X: 50, Y: 50}))
	assert.Equal(t, "shape_box", HitTest(in, geom.Point{X: 1, Y: 50}))
}

func TestHitTest_ThroughViewport(t *testing.T) {
	in := sampleInput()
	in.Viewport = geom.Viewport{Scale: 2, TranslateX: -100, TranslateY: -100}
	// scene (150, 140) → document (200, 180)
	assert.Equal(t, "shape_rect", HitTest(in, geom.Point{X: 200, Y: 180}))
}

func TestSelectionBounds(t *testing.T) {
	in := sampleInput()
	assert.Equal(t, geom.Rect{}, SelectionBounds(in))

	in.Selected = "shape_rect"
	in.Viewport = geom.Viewport{Scale: 0.5}
	assert.Equal(t, geom.Rect{X: 50, Y: 50, Width: 50, Height: 40}, SelectionBounds(in))
}

func TestMarkup_NotMounted(t *testing.T) {
	in := sampleInput()
	in.Surface = Surface{}
	_, err := Markup(in)
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestMarkup_SelfContainedSVG(t *testing.T) {
	in := sampleInput()
	in.ShowGrid = true
	in.Selected = "shape_rect"
	in.Preview = []geom.Point{{X: 9, Y: 9}}

	out, err := Markup(in)
	require.NoError(t, err)

	assert.Contains(t, out, `width="800" height="600" viewBox="0 0 800 600"`)
	assert.Contains(t, out, `xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, out, `<rect id="shape_rect" x="100" y="100" width="100" height="80"`)
	assert.Contains(t, out, `d="M 0 0 L 50 0"`)
	assert.Contains(t, out, `>Hi</text>`)
	assert.Contains(t, out, `<pattern id="grid"`)
	assert.NotContains(t, out, "M 9 9", "preview is never exported")
	assertWellFormed(t, out)
}

func TestMarkup_EscapesAndSanitizes(t *testing.T) {
	in := Input{
		Shapes: []scene.Shape{{ID: "shape_x", Type: scene.ShapeTypeRect, Width: 1, Height: 1,
			Style: scene.Style{StrokeColor: `"/><script>`, Fill: "url(https://evil.example/p.svg#x)"}}},
		Annotations: []scene.Annotation{{ID: "ann_x", Text: `<b>&"quotes"`, FontSize: 12}},
		Viewport:    geom.NewViewport(),
		Surface:     Surface{Width: 10, Height: 10},
	}

	out, err := Markup(in)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "evil.example")
	assert.Contains(t, out, "&lt;b&gt;&amp;&#34;quotes&#34;")
	assertWellFormed(t, out)
}

func TestMarkup_AppliesViewport(t *testing.T) {
	in := sampleInput()
	in.Viewport = geom.Viewport{Scale: 1.5, TranslateX: 10, TranslateY: -20}

	out, err := Markup(in)
	require.NoError(t, err)
	assert.Contains(t, out, `<g transform="matrix(1.5 0 0 1.5 10 -20)">`)
}

func assertWellFormed(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			require.ErrorContains(t, err, "EOF")
			return
		}
	}
}

func TestMarkup_DotStroke(t *testing.T) {
	in := Input{
		Shapes: []scene.Shape{{ID: "shape_dot", Type: scene.ShapeTypePath,
			Points: []geom.Point{{X: 10, Y: 10}}, Style: scene.DefaultStyle()}},
		Viewport: geom.NewViewport(),
		Surface:  Surface{Width: 40, Height: 40},
	}

	out, err := Markup(in)
	require.NoError(t, err)
	assert.Contains(t, out, `d="M 10 10 L 10 10"`)
	assert.Contains(t, out, `stroke-linecap="round"`)

	cmds := Frame(in)
	require.Len(t, cmds, 1)
	assert.Equal(t, "M 10 10 L 10 10", cmds[0].Path)
}
