// Package store is the server-side home of saved canvas artifacts and
// the project event log.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/db"
	"github.com/inamate/inkboard/internal/scene"
	"github.com/inamate/inkboard/internal/typeid"
)

// ErrNotFound is shared with the artifact package so callers that only
// see a gateway can match it.
var ErrNotFound = artifact.ErrNotFound

// Store persists artifacts and events, namespaced by project id.
type Store interface {
	// ListArtifacts returns a project's artifacts, newest first.
	ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error)
	// SaveArtifact inserts a new artifact and returns it with its id and
	// creation time filled in. Every call creates a distinct artifact.
	SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error)
	GetArtifact(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error)
	// DeleteArtifact removes an artifact. Unknown ids are not an error.
	DeleteArtifact(ctx context.Context, projectID, artifactID string) error
	LogEvent(ctx context.Context, projectID string, ev artifact.Event) error
	// ListEvents returns a project's events, oldest first.
	ListEvents(ctx context.Context, projectID string) ([]artifact.Event, error)
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Open connects to the configured backend and applies its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemory(), nil

	case DriverPostgres:
		pool, err := db.NewPool(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := NewPostgres(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	case DriverSQLite:
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// prepareArtifact fills in the server-assigned fields on a copy of a.
func prepareArtifact(projectID string, a *artifact.Artifact, now time.Time) artifact.Artifact {
	out := *a
	out.ID = typeid.NewArtifactID()
	out.ProjectID = projectID
	out.CreatedAt = now.UTC().Truncate(time.Microsecond)
	if out.Shapes == nil {
		out.Shapes = []scene.Shape{}
	}
	if out.Annotations == nil {
		out.Annotations = []scene.Annotation{}
	}
	return out
}

func prepareEvent(projectID string, ev artifact.Event, now time.Time) artifact.Event {
	ev.ID = typeid.NewEventID()
	ev.ProjectID = projectID
	ev.CreatedAt = now.UTC().Truncate(time.Microsecond)
	return ev
}
