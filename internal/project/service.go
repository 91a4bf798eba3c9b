package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/store"
	"github.com/inamate/inkboard/internal/typeid"
)

var (
	ErrNotFound       = artifact.ErrNotFound
	ErrInvalidProject = errors.New("invalid project id")
	ErrMarkupRequired = errors.New("markup is required")
	ErrTypeRequired   = errors.New("event type is required")
)

// PlaygroundProjectID is open to anonymous websocket sessions.
const PlaygroundProjectID = "proj_playground"

// Service is the project-scoped API over a store.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func checkProject(projectID string) error {
	if projectID == PlaygroundProjectID {
		return nil
	}
	if err := typeid.Validate(projectID, typeid.PrefixProject); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}
	return nil
}

func (s *Service) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	if err := checkProject(projectID); err != nil {
		return nil, err
	}
	list, err := s.store.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return list, nil
}

// SaveArtifact stores a new artifact. The id and creation time in a are
// ignored; the store assigns them.
func (s *Service) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	if err := checkProject(projectID); err != nil {
		return nil, err
	}
	if err := artifact.ValidateName(a.Name); err != nil {
		return nil, err
	}
	if a.Markup == "" {
		return nil, ErrMarkupRequired
	}
	a.Name = strings.TrimSpace(a.Name)

	saved, err := s.store.SaveArtifact(ctx, projectID, a)
	if err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	return saved, nil
}

func (s *Service) GetArtifact(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error) {
	if err := checkProject(projectID); err != nil {
		return nil, err
	}
	a, err := s.store.GetArtifact(ctx, projectID, artifactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}

// DeleteArtifact removes an artifact. Missing artifacts are not an error.
func (s *Service) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	if err := checkProject(projectID); err != nil {
		return err
	}
	if err := s.store.DeleteArtifact(ctx, projectID, artifactID); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *Service) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	if err := checkProject(projectID); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Type) == "" {
		return ErrTypeRequired
	}
	if err := s.store.LogEvent(ctx, projectID, ev); err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func (s *Service) ListEvents(ctx context.Context, projectID string) ([]artifact.Event, error) {
	if err := checkProject(projectID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Gateway exposes the service to an in-process engine.
func (s *Service) Gateway() *Gateway {
	return &Gateway{s: s}
}

// Gateway adapts Service to the engine's persistence gateway interface.
type Gateway struct {
	s *Service
}

func (g *Gateway) ListArtifacts(ctx context.Context, projectID string) ([]artifact.Artifact, error) {
	return g.s.ListArtifacts(ctx, projectID)
}

func (g *Gateway) SaveArtifact(ctx context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	return g.s.SaveArtifact(ctx, projectID, a)
}

func (g *Gateway) DeleteArtifact(ctx context.Context, projectID, artifactID string) error {
	return g.s.DeleteArtifact(ctx, projectID, artifactID)
}

func (g *Gateway) LogEvent(ctx context.Context, projectID string, ev artifact.Event) error {
	return g.s.LogEvent(ctx, projectID, ev)
}
