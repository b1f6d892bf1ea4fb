package buildqueue

import (
	"context"
	"sync"
	"time"
)

// Store defines persistence for build jobs. CreateExclusive is the critical
// section for the one-active-job-per-game invariant: the insert must fail
// with ErrActiveJobExists when a pending or processing job already exists for
// the game, atomically with respect to concurrent inserts.
type Store interface {
	CreateExclusive(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (Job, error)
	Latest(ctx context.Context, gameID string) (Job, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkTerminal(ctx context.Context, id string, status Status, errMsg string) error
	ListStale(ctx context.Context, olderThan time.Time) ([]Job, error)
	DeleteForGame(ctx context.Context, gameID string) error
}

// MemStore keeps build jobs in memory behind a single mutex, which makes the
// exclusive insert trivially atomic. Only valid for one-process deployments
// and tests; production uses the Postgres store's partial unique index.
type MemStore struct {
	mu    sync.Mutex
	items map[string]*Job
}

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]*Job)}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) CreateExclusive(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.items {
		if j.GameID == job.GameID && j.Status.Active() {
			return ErrActiveJobExists
		}
	}
	cp := *job
	s.items[job.ID] = &cp
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *j, nil
}

func (s *MemStore) Latest(ctx context.Context, gameID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Job
	for _, j := range s.items {
		if j.GameID != gameID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return Job{}, ErrNoJobs
	}
	return *latest, nil
}

func (s *MemStore) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.StartedAt = &now
	return nil
}

func (s *MemStore) MarkTerminal(ctx context.Context, id string, status Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	now := time.Now().UTC()
	j.Status = status
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	return nil
}

func (s *MemStore) ListStale(ctx context.Context, olderThan time.Time) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, j := range s.items {
		if j.Status.Active() && j.CreatedAt.Before(olderThan) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *MemStore) DeleteForGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.items {
		if j.GameID == gameID {
			delete(s.items, id)
		}
	}
	return nil
}
