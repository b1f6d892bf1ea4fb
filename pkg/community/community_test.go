package community

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCommentLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	c, err := s.CreateComment(ctx, "game-1", "alice", "  great game  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Body != "great game" {
		t.Fatalf("body not trimmed: %q", c.Body)
	}

	updated, err := s.UpdateComment(ctx, c.ID, "alice", "even better")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Body != "even better" {
		t.Fatalf("unexpected body %q", updated.Body)
	}

	if err := s.DeleteComment(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteComment(ctx, c.ID, "alice"); err != ErrCommentNotFound {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}
}

func TestCommentOwnership(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	c, err := s.CreateComment(ctx, "game-1", "alice", "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateComment(ctx, c.ID, "bob", "hijack"); err != ErrNotCommentOwner {
		t.Fatalf("expected ErrNotCommentOwner, got %v", err)
	}
	if err := s.DeleteComment(ctx, c.ID, "bob"); err != ErrNotCommentOwner {
		t.Fatalf("expected ErrNotCommentOwner, got %v", err)
	}
}

func TestCommentValidation(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.CreateComment(ctx, "game-1", "alice", "   "); err != ErrEmptyBody {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}

	long := strings.Repeat("x", MaxCommentLength+100)
	c, err := s.CreateComment(ctx, "game-1", "alice", long)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(c.Body) != MaxCommentLength {
		t.Fatalf("body not truncated: %d", len(c.Body))
	}
}

func TestCommentTruncationKeepsValidUTF8(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	// Three-byte runes that never align with the byte limit.
	long := strings.Repeat("日", MaxCommentLength)
	c, err := s.CreateComment(ctx, "game-1", "alice", long)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(c.Body) > MaxCommentLength {
		t.Fatalf("body over limit: %d", len(c.Body))
	}
	if !utf8.ValidString(c.Body) {
		t.Fatal("truncation produced invalid UTF-8")
	}
}

func TestListCommentsNewestFirst(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		if _, err := s.CreateComment(ctx, "game-1", "alice", body); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateComment(ctx, "game-2", "alice", "other"); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := s.ListComments(ctx, "game-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatal("comments not sorted newest first")
		}
	}
}

func TestToggleLike(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	state, err := s.ToggleLike(ctx, "game-1", "alice")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if state.Count != 1 || !state.Liked {
		t.Fatalf("expected liked with count 1, got %+v", state)
	}

	if _, err := s.ToggleLike(ctx, "game-1", "bob"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	state, err = s.ToggleLike(ctx, "game-1", "alice")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if state.Count != 1 || state.Liked {
		t.Fatalf("expected unliked with count 1, got %+v", state)
	}

	state, err = s.Likes(ctx, "game-1", "bob")
	if err != nil {
		t.Fatalf("likes: %v", err)
	}
	if state.Count != 1 || !state.Liked {
		t.Fatalf("expected bob still liked, got %+v", state)
	}
}

func TestDeleteForGame(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.CreateComment(ctx, "game-1", "alice", "hi"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.ToggleLike(ctx, "game-1", "alice"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if err := s.DeleteForGame(ctx, "game-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := s.ListComments(ctx, "game-1")
	if len(list) != 0 {
		t.Fatalf("comments survived delete: %d", len(list))
	}
	state, _ := s.Likes(ctx, "game-1", "alice")
	if state.Count != 0 {
		t.Fatalf("likes survived delete: %+v", state)
	}
}
