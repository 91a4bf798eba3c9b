package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/inamate/inkboard/internal/artifact"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLite is a single-file store for local and desktop deployments.
// Timestamps are stored as unix microseconds; list order follows
// insertion.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLite) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM canvas_artifacts
		 WHERE project_id = ? ORDER BY seq DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []artifact.Artifact{}
	for rows.Next() {
		a, err := scanSQLiteArtifact(rows)
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

func (s *SQLite) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	saved := prepareArtifact(projectID, a, s.now())
	cols, err := encodeArtifact(&saved)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO canvas_artifacts (`+artifactColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.ProjectID, saved.Name, saved.Description, saved.Markup,
		string(cols.shapes), string(cols.annotations), string(cols.metadata), saved.CreatedAt.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return &saved, nil
}

func (s *SQLite) GetArtifact(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM canvas_artifacts
		 WHERE project_id = ? AND id = ?`, projectID, artifactID)
	a, err := scanSQLiteArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *SQLite) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM canvas_artifacts WHERE project_id = ? AND id = ?`, projectID, artifactID)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *SQLite) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	ev = prepareEvent(projectID, ev, s.now())
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_events (id, project_id, type, title, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ProjectID, ev.Type, ev.Title, ev.Description, string(meta), ev.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLite) ListEvents(ctx context.Context, projectID string) ([]artifact.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, type, title, description, metadata, created_at
		 FROM project_events WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []artifact.Event{}
	for rows.Next() {
		var ev artifact.Event
		var meta string
		var created int64
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Type, &ev.Title, &ev.Description, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := decodeEventMetadata([]byte(meta), &ev); err != nil {
			return nil, err
		}
		ev.CreatedAt = time.UnixMicro(created).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteArtifact(row rowScanner) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var shapes, annotations, metadata string
	var created int64
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Description, &a.Markup,
		&shapes, &annotations, &metadata, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.CreatedAt = time.UnixMicro(created).UTC()

	cols := encodedColumns{shapes: []byte(shapes), annotations: []byte(annotations), metadata: []byte(metadata)}
	if err := cols.decodeInto(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
