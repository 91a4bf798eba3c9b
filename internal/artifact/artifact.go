// Package artifact converts between a live scene and the persisted
// Artifact: rendered SVG markup plus the structured shapes and annotations.
//
// The shapes/annotations arrays are the source of truth. Markup is a
// derived view kept for export and previews; it is never parsed back.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

var (
	// ErrRenderNotReady means no markup could be produced, usually because
	// the surface is not mounted. Nothing is sent to the store.
	ErrRenderNotReady = errors.New("render not ready")
	// ErrNameRequired is returned for a blank artifact name.
	ErrNameRequired = errors.New("artifact name is required")
	// ErrNotFound is returned for an artifact id the caller cannot see.
	ErrNotFound = errors.New("artifact not found")
)

// Artifact is the persisted, named bundle.
type Artifact struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"projectId,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Markup      string             `json:"markup"`
	Shapes      []scene.Shape      `json:"shapes"`
	Annotations []scene.Annotation `json:"annotations"`
	Metadata    Metadata           `json:"metadata"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Metadata describes the surface the artifact was rendered from.
type Metadata struct {
	Width     float64        `json:"width"`
	Height    float64        `json:"height"`
	Tool      string         `json:"tool"`
	ShowGrid  bool           `json:"showGrid"`
	CreatedAt time.Time      `json:"createdAt"`
	Viewport  *geom.Viewport `json:"viewport,omitempty"`
}

// Meta is the view state supplied by the caller at save time.
type Meta struct {
	Name        string
	Description string
	Width       float64
	Height      float64
	Tool        string
	ShowGrid    bool
	Viewport    geom.Viewport
}

// ValidateName rejects blank names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return nil
}

// Serialize bundles a scene snapshot with its rendered markup. The shape
// and annotation arrays are copied verbatim; the id is left for the store
// to assign.
func Serialize(snap scene.Snapshot, markup string, meta Meta, now time.Time) (*Artifact, error) {
	if err := ValidateName(meta.Name); err != nil {
		return nil, err
	}
	if markup == "" {
		return nil, ErrRenderNotReady
	}

	shapes := snap.Shapes
	if shapes == nil {
		shapes = []scene.Shape{}
	}
	annotations := snap.Annotations
	if annotations == nil {
		annotations = []scene.Annotation{}
	}

	vp := meta.Viewport
	now = now.UTC()

	return &Artifact{
		Name:        strings.TrimSpace(meta.Name),
		Description: meta.Description,
		Markup:      markup,
		Shapes:      shapes,
		Annotations: annotations,
		Metadata: Metadata{
			Width:     meta.Width,
			Height:    meta.Height,
			Tool:      meta.Tool,
			ShowGrid:  meta.ShowGrid,
			CreatedAt: now,
			Viewport:  &vp,
		},
		CreatedAt: now,
	}, nil
}

// Deserialize returns the stored content for scene.Model.ReplaceAll.
func Deserialize(a *Artifact) ([]scene.Shape, []scene.Annotation) {
	if a == nil {
		return nil, nil
	}
	return a.Shapes, a.Annotations
}

// Encode marshals an artifact to JSON.
func Encode(a *Artifact) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return data, nil
}

// Decode unmarshals an artifact from JSON.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &a, nil
}

// EventCanvasCreated is logged after an artifact is saved.
const EventCanvasCreated = "canvas_created"

// Event is an entry in the project event log.
type Event struct {
	ID          string         `json:"id,omitempty"`
	ProjectID   string         `json:"projectId,omitempty"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// CreatedEvent builds the canvas_created event for a saved artifact.
func CreatedEvent(a *Artifact) Event {
	return Event{
		Type:        EventCanvasCreated,
		Title:       a.Name,
		Description: a.Description,
		Metadata: map[string]any{
			"artifactId":  a.ID,
			"shapes":      len(a.Shapes),
			"annotations": len(a.Annotations),
			"width":       a.Metadata.Width,
			"height":      a.Metadata.Height,
		},
	}
}
