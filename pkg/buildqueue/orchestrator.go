package buildqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gameforge/backend/pkg/buildsvc"
	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/ratelimit"
)

// Precondition and authorization failures surfaced to callers. Each maps to
// a distinct machine-readable error code at the HTTP layer.
var (
	ErrLanguageUnsupported = errors.New("game language is not supported")
	ErrTierInsufficient    = errors.New("subscription tier does not allow this language")
	ErrCodeMissing         = errors.New("game code not found; generate the game code first")
	ErrRateLimited         = errors.New("build rate limit exceeded")
)

// ValidationError reports structural problems in the game source, found by
// the per-language lint before dispatch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "code validation failed: " + strings.Join(e.Problems, ", ")
}

// DispatchError wraps a failure to hand the job to the build service. By the
// time it is returned the job and game have already been marked failed.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return "build dispatch failed: " + e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher hands an accepted build to the external build service.
type Dispatcher interface {
	Dispatch(ctx context.Context, req buildsvc.BuildRequest) error
}

// Orchestrator drives the build job lifecycle:
//
//	NONE -> PENDING -> PROCESSING -> {COMPLETED | FAILED}
//
// A request checks ownership, tier, source validity, the one-active-job
// invariant, and the per-user quota, then enqueues and dispatches. Partial
// failures are compensated so a game never keeps status "building" without
// an active job behind it.
type Orchestrator struct {
	games      games.Store
	jobs       Store
	registry   *gamelang.Registry
	limiter    *ratelimit.Limiter
	dispatcher Dispatcher
}

func NewOrchestrator(g games.Store, jobs Store, reg *gamelang.Registry, limiter *ratelimit.Limiter, d Dispatcher) *Orchestrator {
	return &Orchestrator{games: g, jobs: jobs, registry: reg, limiter: limiter, dispatcher: d}
}

// Request queues and dispatches a build for the caller's game.
func (o *Orchestrator) Request(ctx context.Context, userID string, tier gamelang.Tier, gameID string) (Job, error) {
	// Ownership. A game owned by someone else reads the same as a missing
	// one so existence is not leaked.
	game, err := o.games.GetOwned(ctx, gameID, userID)
	if err != nil {
		return Job{}, err
	}

	builder, ok := o.registry.Get(game.Language)
	if !ok {
		return Job{}, ErrLanguageUnsupported
	}
	if !builder.CanBuildForTier(tier) {
		return Job{}, ErrTierInsufficient
	}

	// JavaScript games may build from the starter template; every other
	// language needs generated source first.
	if game.GeneratedCode == "" && game.Language != gamelang.DefaultLanguage {
		return Job{}, ErrCodeMissing
	}
	if game.GeneratedCode != "" {
		v := builder.Validate(game.GeneratedCode)
		if !v.Valid {
			return Job{}, &ValidationError{Problems: v.Errors}
		}
		if len(v.Warnings) > 0 {
			log.Printf("build for game %s proceeding with warnings: %s", game.ID, strings.Join(v.Warnings, ", "))
		}
	}

	if game.Status == games.StatusBuilding {
		return Job{}, ErrActiveJobExists
	}

	if !o.limiter.Allow(ctx, userID, "build", ratelimit.Build) {
		return Job{}, ErrRateLimited
	}

	job := &Job{
		ID:        uuid.NewString(),
		GameID:    game.ID,
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	// The conditional insert is the authoritative guard: under concurrent
	// requests exactly one insert wins.
	if err := o.jobs.CreateExclusive(ctx, job); err != nil {
		return Job{}, err
	}

	flipped, err := o.games.SetStatusIf(ctx, game.ID,
		[]games.Status{games.StatusDraft, games.StatusFailed, games.StatusError, games.StatusPublished},
		games.StatusBuilding)
	if err != nil || !flipped {
		// Compensate: the queue record must not outlive a game that never
		// entered building.
		o.abandon(ctx, job.ID, "could not transition game to building")
		if err != nil {
			return Job{}, fmt.Errorf("mark game building: %w", err)
		}
		return Job{}, ErrActiveJobExists
	}

	req := buildsvc.BuildRequest{
		BuildID:  job.ID,
		GameID:   game.ID,
		Config:   game.Config,
		Language: game.Language,
	}
	if game.GeneratedCode != "" {
		code := game.GeneratedCode
		req.GeneratedCode = &code
	}

	if err := o.dispatcher.Dispatch(ctx, req); err != nil {
		// Fail fast. The job is terminal and the game status repaired, so
		// nothing stays stuck in "building".
		o.failBuild(ctx, job.ID, game.ID, err.Error())
		return Job{}, &DispatchError{Err: err}
	}

	if err := o.jobs.MarkProcessing(ctx, job.ID); err != nil {
		log.Printf("mark job %s processing: %v", job.ID, err)
	}
	return o.jobs.Get(ctx, job.ID)
}

// Reconcile applies a terminal (or progress) report from the build service.
// It is idempotent: reports for already-terminal jobs are ignored.
func (o *Orchestrator) Reconcile(ctx context.Context, upd buildsvc.StatusUpdate) error {
	job, err := o.jobs.Get(ctx, upd.BuildID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	switch Status(upd.Status) {
	case StatusProcessing:
		return o.jobs.MarkProcessing(ctx, job.ID)
	case StatusCompleted:
		if err := o.jobs.MarkTerminal(ctx, job.ID, StatusCompleted, ""); err != nil {
			return err
		}
		bundle := upd.BundlePath
		if bundle == "" {
			bundle = fmt.Sprintf("games/%s/index.html", job.GameID)
		}
		if err := o.games.SetPublished(ctx, job.GameID, bundle); err != nil {
			return fmt.Errorf("publish game %s: %w", job.GameID, err)
		}
		return nil
	case StatusFailed:
		msg := upd.Error
		if msg == "" {
			msg = "build failed"
		}
		o.failBuild(ctx, job.ID, job.GameID, msg)
		return nil
	default:
		return fmt.Errorf("unknown build status %q", upd.Status)
	}
}

// StatusInfo is the read model for build status queries.
type StatusInfo struct {
	BuildID      string     `json:"buildId"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Status returns the most recent build job for the caller's game. ErrNoJobs
// means the game has no build history; it is a sentinel, not a failure.
func (o *Orchestrator) Status(ctx context.Context, userID, gameID string) (StatusInfo, error) {
	if _, err := o.games.GetOwned(ctx, gameID, userID); err != nil {
		return StatusInfo{}, err
	}
	job, err := o.jobs.Latest(ctx, gameID)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		BuildID:      job.ID,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}, nil
}

// SweepStale fails every active job older than timeout and repairs its
// game's status, so no game stays in "building" without a reconciliation
// path. Returns the number of jobs swept.
func (o *Orchestrator) SweepStale(ctx context.Context, timeout time.Duration) (int, error) {
	stale, err := o.jobs.ListStale(ctx, time.Now().UTC().Add(-timeout))
	if err != nil {
		return 0, err
	}
	for _, job := range stale {
		log.Printf("sweeping stale build %s (game %s, created %s)", job.ID, job.GameID, job.CreatedAt.Format(time.RFC3339))
		o.failBuild(ctx, job.ID, job.GameID, "build timed out")
	}
	return len(stale), nil
}

func (o *Orchestrator) failBuild(ctx context.Context, jobID, gameID, msg string) {
	if err := o.jobs.MarkTerminal(ctx, jobID, StatusFailed, msg); err != nil && !errors.Is(err, ErrTerminal) {
		log.Printf("mark job %s failed: %v", jobID, err)
	}
	if _, err := o.games.SetStatusIf(ctx, gameID, []games.Status{games.StatusBuilding}, games.StatusFailed); err != nil {
		log.Printf("mark game %s failed: %v", gameID, err)
	}
}

// abandon terminates a job that never reached the build service, leaving the
// game's prior status untouched.
func (o *Orchestrator) abandon(ctx context.Context, jobID, reason string) {
	if err := o.jobs.MarkTerminal(ctx, jobID, StatusFailed, reason); err != nil {
		log.Printf("abandon job %s: %v", jobID, err)
	}
}
