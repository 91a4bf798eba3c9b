package store

import (
	"context"
	"sync"
	"time"

	"github.com/inamate/inkboard/internal/artifact"
)

// Memory keeps everything in process. Used for the playground and tests.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[string][]artifact.Artifact // project id -> insertion order
	events    map[string][]artifact.Event
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		artifacts: make(map[string][]artifact.Artifact),
		events:    make(map[string][]artifact.Event),
		now:       time.Now,
	}
}

func (m *Memory) ListArtifacts(_ context.Context, projectID string) ([]artifact.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.artifacts[projectID]
	out := make([]artifact.Artifact, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *Memory) SaveArtifact(_ context.Context, projectID string, a *artifact.Artifact) (*artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := prepareArtifact(projectID, a, m.now())
	m.artifacts[projectID] = append(m.artifacts[projectID], saved)
	return &saved, nil
}

func (m *Memory) GetArtifact(_ context.Context, projectID, artifactID string) (*artifact.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.artifacts[projectID] {
		if a.ID == artifactID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteArtifact(_ context.Context, projectID, artifactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.artifacts[projectID]
	for i, a := range list {
		if a.ID == artifactID {
			m.artifacts[projectID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) LogEvent(_ context.Context, projectID string, ev artifact.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[projectID] = append(m.events[projectID], prepareEvent(projectID, ev, m.now()))
	return nil
}

func (m *Memory) ListEvents(_ context.Context, projectID string) ([]artifact.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]artifact.Event, len(m.events[projectID]))
	copy(out, m.events[projectID])
	return out, nil
}

func (m *Memory) Close() error { return nil }
