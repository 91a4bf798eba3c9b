// Package gateway is the canvas engine's view of the outside world: the
// per-project artifact store and the event log.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/inamate/inkboard/internal/artifact"
)

// ErrPersistence wraps every failed store call.
var ErrPersistence = errors.New("persistence failure")

// ArtifactStore persists artifacts per project.
type ArtifactStore interface {
	ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error)
	// SaveArtifact stores a and returns it with the server-assigned id.
	SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error)
	// DeleteArtifact is idempotent: unknown ids are not an error.
	DeleteArtifact(ctx context.Context, projectID, artifactID string) error
}

// EventLog records project events. Callers treat it as best-effort.
type EventLog interface {
	LogEvent(ctx context.Context, projectID string, ev artifact.Event) error
}

// Gateway is both capability groups together.
type Gateway interface {
	ArtifactStore
	EventLog
}

// Local adapts an in-process backend (such as a store.Store) into a
// Gateway, tagging failures with ErrPersistence.
type Local struct {
	backend Gateway
}

func NewLocal(backend Gateway) *Local {
	return &Local{backend: backend}
}

func (l *Local) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	out, err := l.backend.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, persistenceError("list artifacts", err)
	}
	return out, nil
}

func (l *Local) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	out, err := l.backend.SaveArtifact(ctx, projectID, a)
	if err != nil {
		return nil, persistenceError("save artifact", err)
	}
	return out, nil
}

func (l *Local) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	if err := l.backend.DeleteArtifact(ctx, projectID, artifactID); err != nil {
		return persistenceError("delete artifact", err)
	}
	return nil
}

func (l *Local) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	if err := l.backend.LogEvent(ctx, projectID, ev); err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
