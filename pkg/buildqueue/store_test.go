package buildqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newJob(gameID string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		GameID:    gameID,
		UserID:    "user-1",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateExclusiveRejectsSecondActiveJob(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.CreateExclusive(ctx, newJob("game-1")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.CreateExclusive(ctx, newJob("game-1")); err != ErrActiveJobExists {
		t.Fatalf("expected ErrActiveJobExists, got %v", err)
	}
	// A different game is unaffected.
	if err := s.CreateExclusive(ctx, newJob("game-2")); err != nil {
		t.Fatalf("insert for other game failed: %v", err)
	}
}

func TestCreateExclusiveAllowsAfterTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	first := newJob("game-1")
	if err := s.CreateExclusive(ctx, first); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.MarkTerminal(ctx, first.ID, StatusFailed, "boom"); err != nil {
		t.Fatalf("mark terminal failed: %v", err)
	}
	if err := s.CreateExclusive(ctx, newJob("game-1")); err != nil {
		t.Fatalf("insert after terminal job failed: %v", err)
	}
}

func TestCreateExclusiveUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.CreateExclusive(ctx, newJob("game-1"))
		}()
	}
	wg.Wait()
	close(results)

	var created, rejected int
	for err := range results {
		switch err {
		case nil:
			created++
		case ErrActiveJobExists:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", created)
	}
	if rejected != attempts-1 {
		t.Fatalf("expected %d rejections, got %d", attempts-1, rejected)
	}
}

func TestLatestReturnsNewestJob(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	old := newJob("game-1")
	old.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.CreateExclusive(ctx, old); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.MarkTerminal(ctx, old.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("mark terminal failed: %v", err)
	}

	recent := newJob("game-1")
	if err := s.CreateExclusive(ctx, recent); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.Latest(ctx, "game-1")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if got.ID != recent.ID {
		t.Fatalf("expected newest job %s, got %s", recent.ID, got.ID)
	}
}

func TestLatestSentinelForNoHistory(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Latest(context.Background(), "game-never-built"); err != ErrNoJobs {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	job := newJob("game-1")
	if err := s.CreateExclusive(ctx, job); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.MarkTerminal(ctx, job.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("mark terminal failed: %v", err)
	}

	if err := s.MarkTerminal(ctx, job.ID, StatusFailed, "late failure"); err != ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := s.MarkProcessing(ctx, job.ID); err != ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted || got.ErrorMessage != "" {
		t.Fatalf("terminal job was mutated: %+v", got)
	}
}

func TestListStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	stale := newJob("game-1")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	if err := s.CreateExclusive(ctx, stale); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	fresh := newJob("game-2")
	if err := s.CreateExclusive(ctx, fresh); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.ListStale(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list stale failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("expected only the stale job, got %+v", got)
	}
}
