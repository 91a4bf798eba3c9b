package export

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/render"
	"github.com/inamate/inkboard/internal/scene"
)

func redSquareMarkup(t *testing.T) string {
	t.Helper()
	markup, err := render.Markup(render.Input{
		Shapes: []scene.Shape{
			{ID: "shape_1", Type: scene.ShapeTypeRect, X: 50, Y: 25, Width: 100, Height: 50,
				Style: scene.Style{StrokeColor: "#ff0000", StrokeWidth: 2, Fill: "#ff0000"}},
			{ID: "shape_2", Type: scene.ShapeTypeRect, X: 10, Y: 10, Width: 20, Height: 20,
				Style: scene.DefaultRectStyle()},
		},
		Annotations: []scene.Annotation{{ID: "ann_1", Text: "skipped", X: 0, Y: 0, FontSize: 12}},
		Viewport:    geom.NewViewport(),
		ShowGrid:    true,
		Surface:     render.Surface{Width: 200, Height: 100},
	})
	require.NoError(t, err)
	return markup
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"Test", "svg", "Test.svg"},
		{"my canvas/../x", "png", "my-canvas----x.png"},
		{"  ", "svg", "canvas.svg"},
		{"a_b-c", "svg", "a_b-c.svg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.name, tt.ext))
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, "<svg/>"))
	assert.Equal(t, "<svg/>", buf.String())

	assert.ErrorIs(t, WriteSVG(&buf, ""), ErrEmptyMarkup)
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveFile(dir, "My Canvas", "<svg/>")
	require.NoError(t, err)
	assert.Equal(t, "My-Canvas.svg", path[len(dir)+1:])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestRasterize(t *testing.T) {
	img, err := Rasterize(redSquareMarkup(t), 200, 100)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	r, g, b, _ := img.At(100, 50).RGBA()
	assert.Greater(t, r, uint32(0xf000), "filled rect is red")
	assert.Less(t, g, uint32(0x1000))
	assert.Less(t, b, uint32(0x1000))

	r, g, b, _ = img.At(190, 90).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b}, "background is white")

	r, g, b, _ = img.At(20, 20).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b}, "transparent fill leaves interior")
}

func TestRasterize_Dot(t *testing.T) {
	markup, err := render.Markup(render.Input{
		Shapes: []scene.Shape{{ID: "shape_dot", Type: scene.ShapeTypePath,
			Points: []geom.Point{{X: 10, Y: 10}},
			Style:  scene.Style{StrokeColor: "#000000", StrokeWidth: 4, Fill: "none"}}},
		Viewport: geom.NewViewport(),
		Surface:  render.Surface{Width: 40, Height: 40},
	})
	require.NoError(t, err)

	img, err := Rasterize(markup, 40, 40)
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Less(t, r+g+b, uint32(3*0x8000), "dot is painted")
}

func TestRasterize_BadInput(t *testing.T) {
	_, err := Rasterize("", 10, 10)
	assert.ErrorIs(t, err, ErrEmptyMarkup)
	_, err = Rasterize("<svg/>", 0, 10)
	assert.ErrorIs(t, err, ErrBadSize)
	_, err = Rasterize("<svg/>", MaxRasterSide+1, 10)
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestThumbnail(t *testing.T) {
	img, err := Rasterize(redSquareMarkup(t), 200, 100)
	require.NoError(t, err)

	thumb := Thumbnail(img, 50)
	assert.Equal(t, 50, thumb.Bounds().Dx())
	assert.Equal(t, 25, thumb.Bounds().Dy())

	assert.Same(t, img, Thumbnail(img, 400), "small images are not scaled up")
}

type fakeSource map[string]*artifact.Artifact

func (f fakeSource) GetArtifact(_ context.Context, _, id string) (*artifact.Artifact, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, artifact.ErrNotFound
}

func serve(t *testing.T, src ArtifactSource, url string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{projectId}/artifacts/{artifactId}/export", NewHandler(src, "").Export).Methods("GET")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHandler_Export(t *testing.T) {
	src := fakeSource{"art_1": {
		ID:       "art_1",
		Name:     "Test",
		Markup:   redSquareMarkup(t),
		Metadata: artifact.Metadata{Width: 200, Height: 100},
	}}

	t.Run("svg", func(t *testing.T) {
		rec := serve(t, src, "/api/projects/p/artifacts/art_1/export")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Test.svg"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, src["art_1"].Markup, rec.Body.String())
	})

	t.Run("png thumbnail", func(t *testing.T) {
		rec := serve(t, src, "/api/projects/p/artifacts/art_1/export?format=png&size=100")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, 50, img.Bounds().Dy())
	})

	t.Run("bad format", func(t *testing.T) {
		rec := serve(t, src, "/api/projects/p/artifacts/art_1/export?format=gif")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := serve(t, src, "/api/projects/p/artifacts/art_nope/export")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Archive(t *testing.T) {
	src := fakeSource{
		"art_1": {ID: "art_1", Name: "My Canvas", Markup: redSquareMarkup(t)},
		"art_2": {ID: "art_2", Name: "Empty"},
		"art_3": {ID: "art_3", Name: "My Canvas", Markup: "<svg id=\"second\"/>"},
	}
	dir := t.TempDir()
	h := NewHandler(src, dir)

	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{projectId}/artifacts/{artifactId}/archive", h.Archive).Methods("POST")
	r.PathPrefix("/exports/").Handler(h.Serve())

	post := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))
		return rec
	}

	rec := post("/api/projects/proj_1/artifacts/art_1/archive")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ArchiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/exports/proj_1/My-Canvas-art_1.svg", resp.URL)
	assert.Equal(t, "My-Canvas-art_1.svg", resp.Name)

	// Same name, different artifact: both files survive.
	rec = post("/api/projects/proj_1/artifacts/art_3/archive")
	require.Equal(t, http.StatusCreated, rec.Code)
	var second ArchiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.NotEqual(t, resp.URL, second.URL)

	get := func(url string) string {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}
	assert.Equal(t, src["art_1"].Markup, get(resp.URL))
	assert.Equal(t, src["art_3"].Markup, get(second.URL))

	assert.Equal(t, http.StatusUnprocessableEntity, post("/api/projects/proj_1/artifacts/art_2/archive").Code)
	assert.Equal(t, http.StatusNotFound, post("/api/projects/proj_1/artifacts/art_9/archive").Code)

	disabled := NewHandler(src, "")
	rec = httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/", nil),
		map[string]string{"projectId": "proj_1", "artifactId": "art_1"})
	disabled.Archive(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
