package buildqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gameforge/backend/pkg/buildsvc"
	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/ratelimit"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []buildsvc.BuildRequest
	err      error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req buildsvc.BuildRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.requests = append(d.requests, req)
	return nil
}

type fixture struct {
	games      *games.MemStore
	jobs       *MemStore
	dispatcher *fakeDispatcher
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		games:      games.NewMemStore(),
		jobs:       NewMemStore(),
		dispatcher: &fakeDispatcher{},
	}
	f.orch = NewOrchestrator(
		f.games,
		f.jobs,
		gamelang.DefaultRegistry(),
		ratelimit.NewLimiter(ratelimit.NewMemCounter()),
		f.dispatcher,
	)
	return f
}

func (f *fixture) addGame(t *testing.T, userID, language, code string) games.Game {
	t.Helper()
	g := games.NewGame(userID, "", "Test Game", "A test", language, gamelang.GameConfig{}, code)
	if err := f.games.Create(context.Background(), g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return *g
}

func validPython() string {
	return gamelang.NewPythonBuilder().StarterCode(gamelang.GameConfig{})
}

func TestRequestHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	job, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if job.Status != StatusProcessing {
		t.Fatalf("expected processing after accepted dispatch, got %s", job.Status)
	}
	if job.StartedAt == nil {
		t.Fatal("started timestamp should be set")
	}

	got, err := f.games.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Status != games.StatusBuilding {
		t.Fatalf("game should be building, got %s", got.Status)
	}

	if len(f.dispatcher.requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(f.dispatcher.requests))
	}
	req := f.dispatcher.requests[0]
	if req.BuildID != job.ID || req.GameID != g.ID || req.Language != "javascript" {
		t.Fatalf("unexpected dispatch payload: %+v", req)
	}
	if req.GeneratedCode != nil {
		t.Fatal("javascript game without code should dispatch a nil code payload")
	}
}

func TestRequestRejectsNonOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "owner", "javascript", "")

	_, err := f.orch.Request(ctx, "intruder", gamelang.TierFree, g.ID)
	if !errors.Is(err, games.ErrNotFound) {
		t.Fatalf("expected not-found for non-owner, got %v", err)
	}
	if _, err := f.jobs.Latest(ctx, g.ID); err != ErrNoJobs {
		t.Fatalf("no job should exist after rejected request, got %v", err)
	}
}

func TestRequestRejectsInsufficientTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	premiumJS := gamelang.NewJavaScriptBuilder()
	reg := gamelang.NewRegistry(premiumOnly{premiumJS})
	f.orch = NewOrchestrator(f.games, f.jobs, reg, ratelimit.NewLimiter(ratelimit.NewMemCounter()), f.dispatcher)

	g := f.addGame(t, "user-1", "javascript", "")
	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if !errors.Is(err, ErrTierInsufficient) {
		t.Fatalf("expected tier rejection, got %v", err)
	}
	if _, err := f.jobs.Latest(ctx, g.ID); err != ErrNoJobs {
		t.Fatalf("tier rejection must not create a job, got %v", err)
	}
}

// premiumOnly wraps a builder, raising its tier gate to premium.
type premiumOnly struct {
	gamelang.CodeBuilder
}

func (p premiumOnly) CanBuildForTier(tier gamelang.Tier) bool {
	return tier.Meets(gamelang.TierPremium)
}

func TestRequestRejectsMissingCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "python", "")

	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if !errors.Is(err, ErrCodeMissing) {
		t.Fatalf("expected missing-code rejection, got %v", err)
	}
}

func TestRequestRejectsInvalidCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "python", "print('not a game')\ndef main():\n    pass\n")

	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Problems) == 0 {
		t.Fatal("validation error should carry problems")
	}
	if _, err := f.jobs.Latest(ctx, g.ID); err != ErrNoJobs {
		t.Fatalf("validation rejection must not create a job, got %v", err)
	}
}

func TestConcurrentRequestsCreateOneJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "python", validPython())

	// Few enough callers that the build quota never interferes.
	const callers = 4
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrActiveJobExists):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("exactly one request should win, got %d", ok)
	}
	if rejected != callers-1 {
		t.Fatalf("expected %d precondition rejections, got %d", callers-1, rejected)
	}
	if len(f.dispatcher.requests) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(f.dispatcher.requests))
	}
}

func TestRequestRejectsWhileBuilding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	if _, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if !errors.Is(err, ErrActiveJobExists) {
		t.Fatalf("expected active-job rejection, got %v", err)
	}
}

func TestDispatchFailureFailsJobAndGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.dispatcher.err = errors.New("connection refused")
	g := f.addGame(t, "user-1", "javascript", "")

	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	var derr *DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("expected dispatch error, got %v", err)
	}

	job, err := f.jobs.Latest(ctx, g.ID)
	if err != nil {
		t.Fatalf("latest job: %v", err)
	}
	if job.Status != StatusFailed || job.ErrorMessage == "" {
		t.Fatalf("job should be failed with a message, got %+v", job)
	}

	got, _ := f.games.Get(ctx, g.ID)
	if got.Status != games.StatusFailed {
		t.Fatalf("game must not stay in building after dispatch failure, got %s", got.Status)
	}

	// The slot is free again: a later request may retry.
	f.dispatcher.err = nil
	if _, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
}

func TestRequestRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	for i := 0; i < ratelimit.Build.MaxRequests; i++ {
		job, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if err := f.orch.Reconcile(ctx, buildsvc.StatusUpdate{BuildID: job.ID, Status: "completed"}); err != nil {
			t.Fatalf("reconcile %d failed: %v", i, err)
		}
	}

	_, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit rejection, got %v", err)
	}
}

func TestReconcileCompletedPublishesGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	job, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	upd := buildsvc.StatusUpdate{BuildID: job.ID, Status: "completed", BundlePath: "games/" + g.ID + "/index.html"}
	if err := f.orch.Reconcile(ctx, upd); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	got, _ := f.games.Get(ctx, g.ID)
	if got.Status != games.StatusPublished || got.BundlePath == "" {
		t.Fatalf("game should be published with a bundle path, got %+v", got)
	}

	// A duplicate webhook delivery is a no-op.
	if err := f.orch.Reconcile(ctx, buildsvc.StatusUpdate{BuildID: job.ID, Status: "failed", Error: "late"}); err != nil {
		t.Fatalf("idempotent reconcile failed: %v", err)
	}
	final, _ := f.jobs.Get(ctx, job.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("terminal job must not change, got %s", final.Status)
	}
}

func TestReconcileFailureMarksGameFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	job, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if err := f.orch.Reconcile(ctx, buildsvc.StatusUpdate{BuildID: job.ID, Status: "failed", Error: "pygbag exploded"}); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	final, _ := f.jobs.Get(ctx, job.ID)
	if final.Status != StatusFailed || final.ErrorMessage != "pygbag exploded" {
		t.Fatalf("unexpected job state: %+v", final)
	}
	got, _ := f.games.Get(ctx, g.ID)
	if got.Status != games.StatusFailed {
		t.Fatalf("game should be failed, got %s", got.Status)
	}
}

func TestStatusQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	// No build history is a sentinel, not an error or an empty success.
	if _, err := f.orch.Status(ctx, "user-1", g.ID); err != ErrNoJobs {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}

	job, err := f.orch.Request(ctx, "user-1", gamelang.TierFree, g.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	info, err := f.orch.Status(ctx, "user-1", g.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if info.BuildID != job.ID || info.Status != StatusProcessing {
		t.Fatalf("unexpected status info: %+v", info)
	}

	if _, err := f.orch.Status(ctx, "someone-else", g.ID); !errors.Is(err, games.ErrNotFound) {
		t.Fatalf("status for non-owner should be not-found, got %v", err)
	}
}

func TestSweepStaleTimesOutBuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.addGame(t, "user-1", "javascript", "")

	stale := &Job{
		ID:        "stale-job",
		GameID:    g.ID,
		UserID:    "user-1",
		Status:    StatusProcessing,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := f.jobs.CreateExclusive(ctx, stale); err != nil {
		t.Fatalf("seed stale job: %v", err)
	}
	if err := f.games.SetStatus(ctx, g.ID, games.StatusBuilding); err != nil {
		t.Fatalf("seed game status: %v", err)
	}

	swept, err := f.orch.SweepStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected one swept job, got %d", swept)
	}

	job, _ := f.jobs.Get(ctx, "stale-job")
	if job.Status != StatusFailed || job.ErrorMessage != "build timed out" {
		t.Fatalf("unexpected swept job: %+v", job)
	}
	got, _ := f.games.Get(ctx, g.ID)
	if got.Status != games.StatusFailed {
		t.Fatalf("game should leave building after sweep, got %s", got.Status)
	}
}
