package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/inkboard/internal/artifact"
)

// ArtifactSource looks up a saved artifact. store.Store satisfies it.
type ArtifactSource interface {
	GetArtifact(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error)
}

// ArchiveResponse is returned when an export is written to the archive.
type ArchiveResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Handler struct {
	source ArtifactSource
	dir    string // archive root; empty disables Archive and Serve
}

// NewHandler exports artifacts from source. Archived files go under dir.
func NewHandler(source ArtifactSource, dir string) *Handler {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("create export dir", "error", err, "dir", dir)
		}
	}
	return &Handler{source: source, dir: dir}
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*artifact.Artifact, bool) {
	vars := mux.Vars(r)

	a, err := h.source.GetArtifact(r.Context(), vars["projectId"], vars["artifactId"])
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return nil, false
		}
		slog.Error("load artifact for export", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return a, true
}

// Export streams a saved artifact as an attachment. format is svg
// (default) or png; png accepts an optional size for a thumbnail.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}

	var err error
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "svg"
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case "svg":
		contentType = "image/svg+xml"
		err = WriteSVG(&buf, a.Markup)
	case "png":
		contentType = "image/png"
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		width, height := rasterSize(a.Metadata)
		err = WritePNG(&buf, a.Markup, width, height, size)
	default:
		http.Error(w, "invalid format: must be svg or png", http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, ErrEmptyMarkup) || errors.Is(err, ErrBadSize) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		slog.Error("export failed", "format", format, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, FileName(a.Name, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())

	slog.Info("export complete", "format", format, "artifact", a.ID, "size", buf.Len())
}

func rasterSize(md artifact.Metadata) (int, int) {
	w, h := int(md.Width), int(md.Height)
	if w <= 0 || h <= 0 {
		return 800, 600
	}
	return w, h
}

// Archive writes a saved artifact's SVG into the project's folder under
// the export dir and returns where it can be fetched. File names carry the
// artifact id, since names are not unique within a project.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" {
		http.Error(w, "export archive disabled", http.StatusNotFound)
		return
	}
	a, ok := h.load(w, r)
	if !ok {
		return
	}

	projectDir := strings.TrimSuffix(FileName(mux.Vars(r)["projectId"], ""), ".")
	path, err := SaveFile(filepath.Join(h.dir, projectDir), archiveName(a), a.Markup)
	if err != nil {
		if errors.Is(err, ErrEmptyMarkup) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		slog.Error("archive export", "artifact", a.ID, "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	rel, _ := filepath.Rel(h.dir, path)
	resp := ArchiveResponse{
		URL:  "/exports/" + filepath.ToSlash(rel),
		Name: filepath.Base(path),
		Size: len(a.Markup),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Serve returns an http.Handler for archived files under /exports/.
// Re-archiving an artifact overwrites its file, so nothing is cached.
func (h *Handler) Serve() http.Handler {
	if h.dir == "" {
		return http.NotFoundHandler()
	}
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/exports/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	}))
}

func archiveName(a *artifact.Artifact) string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "canvas"
	}
	return name + "-" + a.ID
}
