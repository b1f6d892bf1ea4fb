package codegen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
)

type fakeCompleter struct {
	code string
	err  error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.code, f.err
}

const validJS = `<!DOCTYPE html>
<html><body><canvas id="game"></canvas>
<script>
function loop() { requestAnimationFrame(loop); }
loop();
</script></body></html>`

func newGame(t *testing.T, store games.Store, language string) games.Game {
	t.Helper()
	g := games.NewGame("alice", "", "Space Runner", "", language, gamelang.GameConfig{}, "")
	if err := store.Create(context.Background(), g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return *g
}

func waitForStatus(t *testing.T, store games.Store, id string, want games.Status) games.Game {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get game: %v", err)
		}
		if g.Status == want {
			return g
		}
		time.Sleep(5 * time.Millisecond)
	}
	g, _ := store.Get(context.Background(), id)
	t.Fatalf("game never reached %s, stuck at %s", want, g.Status)
	return games.Game{}
}

func TestGenerateSuccess(t *testing.T) {
	store := games.NewMemStore()
	gen := NewGenerator(store, gamelang.DefaultRegistry(), &fakeCompleter{code: validJS})
	g := newGame(t, store, "javascript")

	if err := gen.Start(context.Background(), "alice", g.ID, "a platformer about a fox"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := waitForStatus(t, store, g.ID, games.StatusDraft)
	if got.GeneratedCode != validJS {
		t.Fatal("generated code not stored")
	}
}

func TestGenerateCompleterError(t *testing.T) {
	store := games.NewMemStore()
	gen := NewGenerator(store, gamelang.DefaultRegistry(), &fakeCompleter{err: errors.New("api down")})
	g := newGame(t, store, "javascript")

	if err := gen.Start(context.Background(), "alice", g.ID, "anything"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, store, g.ID, games.StatusError)
}

func TestGenerateInvalidCodeKept(t *testing.T) {
	store := games.NewMemStore()
	gen := NewGenerator(store, gamelang.DefaultRegistry(), &fakeCompleter{code: "not a game"})
	g := newGame(t, store, "javascript")

	if err := gen.Start(context.Background(), "alice", g.ID, "anything"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := waitForStatus(t, store, g.ID, games.StatusError)
	if got.GeneratedCode != "not a game" {
		t.Fatal("invalid code should still be stored for inspection")
	}
}

func TestStartRejectsNonOwner(t *testing.T) {
	store := games.NewMemStore()
	gen := NewGenerator(store, gamelang.DefaultRegistry(), &fakeCompleter{code: validJS})
	g := newGame(t, store, "javascript")

	if err := gen.Start(context.Background(), "bob", g.ID, "anything"); !errors.Is(err, games.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := store.Get(context.Background(), g.ID)
	if got.Status != games.StatusDraft {
		t.Fatalf("status changed for non-owner: %s", got.Status)
	}
}

func TestStartRejectsBusyGame(t *testing.T) {
	store := games.NewMemStore()
	gen := NewGenerator(store, gamelang.DefaultRegistry(), &fakeCompleter{code: validJS})
	g := newGame(t, store, "javascript")

	if err := store.SetStatus(context.Background(), g.ID, games.StatusBuilding); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := gen.Start(context.Background(), "alice", g.ID, "anything"); err == nil {
		t.Fatal("expected error for busy game")
	}
}
