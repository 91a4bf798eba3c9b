package session

import (
	"encoding/json"
	"time"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/engine"
	"github.com/inamate/inkboard/internal/render"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client to server
	TypePointerDown    = "pointer.down"
	TypePointerMove    = "pointer.move"
	TypePointerUp      = "pointer.up"
	TypePointerLeave   = "pointer.leave"
	TypeToolSet        = "tool.set"
	TypeViewZoom       = "view.zoom"
	TypeViewPan        = "view.pan"
	TypeGridSet        = "grid.set"
	TypeShapeRect      = "shape.rect"
	TypeAnnotationAdd  = "annotation.add"
	TypeElementSelect  = "element.select"
	TypeElementDelete  = "element.delete"
	TypeCanvasSave     = "canvas.save"
	TypeCanvasLoad     = "canvas.load"
	TypeCanvasRefresh  = "canvas.refresh"
	TypeArtifactDelete = "artifact.delete"
	TypeSurfaceMount   = "surface.mount"

	// Server to client
	TypeWelcome   = "welcome"
	TypeFrame     = "frame"
	TypeArtifacts = "artifacts"
	TypeSaved     = "saved"
	TypeNotify    = "notify"
	TypeError     = "error"
)

type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ToolPayload struct {
	Tool string `json:"tool"`
}

type ZoomPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Delta float64 `json:"delta"`
}

type PanPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type GridPayload struct {
	Show bool `json:"show"`
}

type AnnotationPayload struct {
	Text string `json:"text"`
}

// IDPayload names an element or artifact. An empty id in element.delete
// means the current selection.
type IDPayload struct {
	ID string `json:"id"`
}

type SavePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type MountPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	ProjectID string `json:"projectId"`
}

type FramePayload struct {
	Commands []render.DrawCommand `json:"commands"`
	Status   engine.Status        `json:"status"`
}

// ArtifactSummary is the list view of an artifact; markup and content
// stay on the server.
type ArtifactSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Shapes      int       `json:"shapes"`
	Annotations int       `json:"annotations"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ArtifactsPayload struct {
	Artifacts []ArtifactSummary `json:"artifacts"`
}

type SavedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func summarize(list []artifact.Artifact) []ArtifactSummary {
	out := make([]ArtifactSummary, len(list))
	for i, a := range list {
		out[i] = ArtifactSummary{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Shapes:      len(a.Shapes),
			Annotations: len(a.Annotations),
			CreatedAt:   a.CreatedAt,
		}
	}
	return out
}
