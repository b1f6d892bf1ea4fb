package community

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Store persists comments and likes. Ownership checks live here so every
// backend enforces them the same way.
type Store interface {
	CreateComment(ctx context.Context, gameID, userID, body string) (*Comment, error)
	ListComments(ctx context.Context, gameID string) ([]*Comment, error)
	UpdateComment(ctx context.Context, commentID, userID, body string) (*Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error

	// ToggleLike flips the user's like on a game and returns the new state.
	ToggleLike(ctx context.Context, gameID, userID string) (*LikeState, error)
	Likes(ctx context.Context, gameID, userID string) (*LikeState, error)

	// DeleteForGame removes all community data for a game.
	DeleteForGame(ctx context.Context, gameID string) error
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len(body) > MaxCommentLength {
		// Cut on a rune boundary so a multi-byte character is never split.
		cut := MaxCommentLength
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return body, nil
}

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	comments map[string]*Comment
	likes    map[string]map[string]bool // gameID -> userID -> liked
}

func NewMemStore() *MemStore {
	return &MemStore{
		comments: make(map[string]*Comment),
		likes:    make(map[string]map[string]bool),
	}
}

func (s *MemStore) CreateComment(_ context.Context, gameID, userID, body string) (*Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &Comment{
		ID:        uuid.NewString(),
		GameID:    gameID,
		UserID:    userID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *MemStore) ListComments(_ context.Context, gameID string) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Comment
	for _, c := range s.comments {
		if c.GameID == gameID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpdateComment(_ context.Context, commentID, userID, body string) (*Comment, error) {
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, ErrCommentNotFound
	}
	if c.UserID != userID {
		return nil, ErrNotCommentOwner
	}
	c.Body = body
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (s *MemStore) DeleteComment(_ context.Context, commentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return ErrCommentNotFound
	}
	if c.UserID != userID {
		return ErrNotCommentOwner
	}
	delete(s.comments, commentID)
	return nil
}

func (s *MemStore) ToggleLike(_ context.Context, gameID, userID string) (*LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.likes[gameID]
	if users == nil {
		users = make(map[string]bool)
		s.likes[gameID] = users
	}
	if users[userID] {
		delete(users, userID)
	} else {
		users[userID] = true
	}
	return &LikeState{Count: int64(len(users)), Liked: users[userID]}, nil
}

func (s *MemStore) Likes(_ context.Context, gameID, userID string) (*LikeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := s.likes[gameID]
	return &LikeState{Count: int64(len(users)), Liked: users[userID]}, nil
}

func (s *MemStore) DeleteForGame(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.comments {
		if c.GameID == gameID {
			delete(s.comments, id)
		}
	}
	delete(s.likes, gameID)
	return nil
}
