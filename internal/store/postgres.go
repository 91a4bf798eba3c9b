package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/inkboard/internal/artifact"
)

//go:embed schema/postgres.sql
var postgresSchema string

// Postgres stores artifacts as rows with JSONB content columns.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const artifactColumns = `id, project_id, name, description, markup, shapes, annotations, metadata, created_at`

func (p *Postgres) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM canvas_artifacts
		 WHERE project_id = $1
		 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []artifact.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

func (p *Postgres) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	saved := prepareArtifact(projectID, a, p.now())
	cols, err := encodeArtifact(&saved)
	if err != nil {
		return nil, err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO canvas_artifacts (`+artifactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		saved.ID, saved.ProjectID, saved.Name, saved.Description, saved.Markup,
		cols.shapes, cols.annotations, cols.metadata, saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return &saved, nil
}

func (p *Postgres) GetArtifact(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM canvas_artifacts
		 WHERE project_id = $1 AND id = $2`, projectID, artifactID)
	a, err := scanArtifact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (p *Postgres) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM canvas_artifacts WHERE project_id = $1 AND id = $2`, projectID, artifactID)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (p *Postgres) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	ev = prepareEvent(projectID, ev, p.now())
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO project_events (id, project_id, type, title, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ProjectID, ev.Type, ev.Title, ev.Description, meta, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (p *Postgres) ListEvents(ctx context.Context, projectID string) ([]artifact.Event, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, type, title, description, metadata, created_at
		 FROM project_events WHERE project_id = $1
		 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []artifact.Event{}
	for rows.Next() {
		var ev artifact.Event
		var meta []byte
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Type, &ev.Title, &ev.Description, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := decodeEventMetadata(meta, &ev); err != nil {
			return nil, err
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanArtifact(row pgx.Row) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var cols encodedColumns
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Description, &a.Markup,
		&cols.shapes, &cols.annotations, &cols.metadata, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if err := cols.decodeInto(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
