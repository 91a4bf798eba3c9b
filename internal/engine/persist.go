package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/gateway"
	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/render"
	"github.com/inamate/inkboard/internal/scene"
	"github.com/inamate/inkboard/internal/tool"
)

var errNoGateway = errors.New("no persistence gateway configured")

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a short, user-facing message. None of them are fatal.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notifications. It may be called from the goroutine
// finishing a save, never while the engine lock is held.
type Notifier func(Notification)

// PendingSave is a save running in the background.
type PendingSave struct {
	done     chan struct{}
	artifact *artifact.Artifact
	err      error
}

// Done is closed once the save has finished.
func (p *PendingSave) Done() <-chan struct{} { return p.done }

// Wait blocks until the save finishes or ctx ends.
func (p *PendingSave) Wait(ctx context.Context) (*artifact.Artifact, error) {
	select {
	case <-p.done:
		return p.artifact, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Save snapshots the scene and rendered markup, then stores them as a new
// artifact in the background. Name validation and the render check happen
// before Save returns; edits made afterwards are not part of the artifact.
func (e *Engine) Save(ctx context.Context, name, description string) (*PendingSave, error) {
	e.mu.Lock()
	if err := artifact.ValidateName(name); err != nil {
		e.mu.Unlock()
		e.notify(Notification{Level: LevelError, Message: "Please enter a name for the canvas"})
		return nil, err
	}

	markup, err := render.Markup(e.input())
	if err != nil {
		e.mu.Unlock()
		e.notify(Notification{Level: LevelError, Message: "Canvas is not ready to save yet"})
		return nil, fmt.Errorf("%w: %w", artifact.ErrRenderNotReady, err)
	}
	snap := e.model.Snapshot()
	a, err := artifact.Serialize(snap, markup, artifact.Meta{
		Name:        name,
		Description: description,
		Width:       e.surface.Width,
		Height:      e.surface.Height,
		Tool:        string(e.machine.Tool()),
		ShowGrid:    e.showGrid,
		Viewport:    e.viewport,
	}, e.now())
	e.mu.Unlock()

	if err != nil {
		if errors.Is(err, artifact.ErrRenderNotReady) {
			e.notify(Notification{Level: LevelError, Message: "Canvas is not ready to save yet"})
		}
		return nil, err
	}
	if e.gw == nil {
		e.log.Error("save without a persistence gateway", "name", name)
		e.notify(Notification{Level: LevelError, Message: "Failed to save canvas"})
		return nil, errNoGateway
	}

	p := &PendingSave{done: make(chan struct{})}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer close(p.done)
		p.artifact, p.err = e.persist(context.WithoutCancel(ctx), a, snap.Revision)
	}()
	return p, nil
}

// persist runs the remote half of a save.
func (e *Engine) persist(ctx context.Context, a *artifact.Artifact, revision uint64) (*artifact.Artifact, error) {
	saved, err := e.gw.SaveArtifact(ctx, e.projectID, a)
	if err != nil {
		e.log.Error("save artifact failed", "name", a.Name, "error", err)
		e.notify(Notification{Level: LevelError, Message: "Failed to save canvas"})
		return nil, err
	}

	e.mu.Lock()
	e.model.Apply(scene.MarkClean{Revision: revision})
	e.mu.Unlock()

	if err := e.gw.LogEvent(ctx, e.projectID, artifact.CreatedEvent(saved)); err != nil {
		e.log.Warn("log canvas_created failed", "artifact", saved.ID, "error", err)
	}

	if list, err := e.gw.ListArtifacts(ctx, e.projectID); err != nil {
		e.log.Warn("refresh after save failed", "error", err)
	} else {
		e.mu.Lock()
		e.saved = list
		e.mu.Unlock()
	}

	e.log.Info("canvas saved", "artifact", saved.ID, "name", saved.Name,
		"shapes", len(saved.Shapes), "annotations", len(saved.Annotations))
	e.notify(Notification{Level: LevelInfo, Message: fmt.Sprintf("Saved %q", saved.Name)})
	return saved, nil
}

// Refresh reloads the project's artifact list into the cache.
func (e *Engine) Refresh(ctx context.Context) ([]artifact.Artifact, error) {
	if e.gw == nil {
		e.notify(Notification{Level: LevelError, Message: "Failed to load saved canvases"})
		return nil, errNoGateway
	}
	list, err := e.gw.ListArtifacts(ctx, e.projectID)
	if err != nil {
		e.log.Error("list artifacts failed", "error", err)
		e.notify(Notification{Level: LevelError, Message: "Failed to load saved canvases"})
		return nil, err
	}

	e.mu.Lock()
	e.saved = list
	e.mu.Unlock()
	return append([]artifact.Artifact(nil), list...), nil
}

// Load replaces the scene with a cached artifact's content and restores
// its grid and view settings. The model is clean afterwards.
func (e *Engine) Load(artifactID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found *artifact.Artifact
	for i := range e.saved {
		if e.saved[i].ID == artifactID {
			found = &e.saved[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("load %q: %w", artifactID, artifact.ErrNotFound)
	}

	shapes, annotations := artifact.Deserialize(found)
	e.model.Apply(scene.ReplaceAll{Shapes: shapes, Annotations: annotations})

	e.showGrid = found.Metadata.ShowGrid
	if vp := found.Metadata.Viewport; vp != nil {
		e.viewport = vp.Clamp()
	} else {
		e.viewport = geom.NewViewport()
	}
	if t, err := tool.ParseTool(found.Metadata.Tool); err == nil {
		e.machine.SetTool(t)
	} else {
		e.machine.PointerLeave()
	}
	return nil
}

// DeleteArtifact removes a saved artifact remotely and from the cache.
// Deleting an artifact that is already gone succeeds.
func (e *Engine) DeleteArtifact(ctx context.Context, artifactID string) error {
	if e.gw == nil {
		e.notify(Notification{Level: LevelError, Message: "Failed to delete canvas"})
		return errNoGateway
	}
	if err := e.gw.DeleteArtifact(ctx, e.projectID, artifactID); err != nil {
		e.log.Error("delete artifact failed", "artifact", artifactID, "error", err)
		e.notify(Notification{Level: LevelError, Message: "Failed to delete canvas"})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.saved[:0:0]
	for _, a := range e.saved {
		if a.ID != artifactID {
			kept = append(kept, a)
		}
	}
	e.saved = kept
	return nil
}

// IsPersistenceFailure reports whether err came from the remote store.
func IsPersistenceFailure(err error) bool {
	return errors.Is(err, gateway.ErrPersistence)
}
