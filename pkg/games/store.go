package games

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gameforge/backend/pkg/gamelang"
)

// Store defines persistence operations for games.
type Store interface {
	Create(ctx context.Context, game *Game) error
	Get(ctx context.Context, id string) (Game, error)
	GetOwned(ctx context.Context, id, userID string) (Game, error)
	ListByUser(ctx context.Context, userID string) ([]Game, error)
	ListPublic(ctx context.Context, limit int) ([]Game, error)
	Update(ctx context.Context, id, userID string, upd Update) (Game, error)
	SetStatus(ctx context.Context, id string, status Status) error
	// SetStatusIf flips status only when the current status is in from.
	// It returns false without error when the precondition does not hold.
	SetStatusIf(ctx context.Context, id string, from []Status, to Status) (bool, error)
	SetCode(ctx context.Context, id, code string, status Status) error
	SetVisibility(ctx context.Context, id string, v Visibility) error
	SetPublished(ctx context.Context, id, bundlePath string) error
	Delete(ctx context.Context, id string) error
}

// NewGame assembles a game row with defaults applied. The slug is derived
// from the title when absent.
func NewGame(userID, slug, title, description, language string, cfg gamelang.GameConfig, code string) *Game {
	now := time.Now().UTC()
	if strings.TrimSpace(slug) == "" {
		slug = Slugify(title)
	}
	return &Game{
		ID:            uuid.NewString(),
		UserID:        userID,
		Slug:          slug,
		Title:         title,
		Description:   description,
		Language:      language,
		Config:        cfg,
		GeneratedCode: code,
		Status:        StatusDraft,
		Visibility:    VisibilityPrivate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Slugify lowercases a title and collapses non-alphanumeric runs to hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// MemStore keeps games in memory. Used by tests and single-process setups.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]*Game
}

func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]*Game)}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) Create(ctx context.Context, game *Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.items {
		if g.UserID == game.UserID && g.Slug == game.Slug {
			return ErrSlugTaken
		}
	}
	cp := *game
	s.items[game.ID] = &cp
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.items[id]
	if !ok {
		return Game{}, ErrNotFound
	}
	return *g, nil
}

func (s *MemStore) GetOwned(ctx context.Context, id, userID string) (Game, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return Game{}, err
	}
	if g.UserID != userID {
		return Game{}, ErrNotFound
	}
	return g, nil
}

func (s *MemStore) ListByUser(ctx context.Context, userID string) ([]Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Game
	for _, g := range s.items {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemStore) ListPublic(ctx context.Context, limit int) ([]Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Game
	for _, g := range s.items {
		if g.Visibility == VisibilityPublic && g.Status == StatusPublished {
			out = append(out, *g)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) Update(ctx context.Context, id, userID string, upd Update) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.items[id]
	if !ok || g.UserID != userID {
		return Game{}, ErrNotFound
	}
	if upd.Title != nil {
		g.Title = *upd.Title
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	if upd.Config != nil {
		g.Config = *upd.Config
	}
	if upd.Code != nil {
		g.GeneratedCode = *upd.Code
	}
	g.UpdatedAt = time.Now().UTC()
	return *g, nil
}

func (s *MemStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.mutate(id, func(g *Game) { g.Status = status })
}

func (s *MemStore) SetStatusIf(ctx context.Context, id string, from []Status, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.items[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, f := range from {
		if g.Status == f {
			g.Status = to
			g.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) SetCode(ctx context.Context, id, code string, status Status) error {
	return s.mutate(id, func(g *Game) {
		g.GeneratedCode = code
		g.Status = status
	})
}

func (s *MemStore) SetVisibility(ctx context.Context, id string, v Visibility) error {
	return s.mutate(id, func(g *Game) { g.Visibility = v })
}

func (s *MemStore) SetPublished(ctx context.Context, id, bundlePath string) error {
	return s.mutate(id, func(g *Game) {
		g.Status = StatusPublished
		g.BundlePath = bundlePath
	})
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemStore) mutate(id string, fn func(*Game)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	fn(g)
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func sortNewestFirst(games []Game) {
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
}
