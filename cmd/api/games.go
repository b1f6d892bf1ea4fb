package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gameforge/backend/pkg/auth"
	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/ratelimit"
)

type createGameRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Slug        string               `json:"slug"`
	Language    string               `json:"language"`
	Config      *gamelang.GameConfig `json:"config"`
}

func (s *server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createGameRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "title is required")
		return
	}
	if req.Language == "" {
		req.Language = gamelang.DefaultLanguage
	}
	builder, ok := s.registry.Get(req.Language)
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "language is not supported")
		return
	}
	if !builder.CanBuildForTier(id.Tier) {
		respondError(w, http.StatusForbidden, codeForbidden, "subscription tier does not allow this language")
		return
	}
	if !s.limiter.Allow(r.Context(), id.UserID, "create_game", ratelimit.CreateGame) {
		respondError(w, http.StatusTooManyRequests, codeRateLimited, "game creation limit reached")
		return
	}

	cfg := gamelang.GameConfig{}
	if req.Config != nil {
		cfg = *req.Config
	}
	game := games.NewGame(id.UserID, req.Slug, req.Title, req.Description, req.Language, cfg, "")
	err := s.games.Create(r.Context(), game)
	if errors.Is(err, games.ErrSlugTaken) {
		// Reusing a title is normal; disambiguate instead of rejecting.
		game.Slug = fmt.Sprintf("%s-%d", game.Slug, time.Now().UnixMilli())
		err = s.games.Create(r.Context(), game)
	}
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"game": game}, http.StatusCreated)
}

func (s *server) handleListGames(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	if r.URL.Query().Get("scope") == "public" {
		list, err := s.games.ListPublic(r.Context(), 50)
		if err != nil {
			respondMappedError(w, err)
			return
		}
		respondJSON(w, map[string]any{"games": redactAll(list)}, http.StatusOK)
		return
	}

	list, err := s.games.ListByUser(r.Context(), id.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"games": list}, http.StatusOK)
}

func (s *server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	game, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if game.UserID != id.UserID {
		// Published public games are readable by anyone, without source.
		if game.Visibility != games.VisibilityPublic || game.Status != games.StatusPublished {
			respondMappedError(w, games.ErrNotFound)
			return
		}
		game = redact(game)
	}
	respondJSON(w, map[string]any{"game": game}, http.StatusOK)
}

type updateGameRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Config      *gamelang.GameConfig `json:"config"`
	Code        *string              `json:"code"`
}

func (s *server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	var req updateGameRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	game, err := s.games.Update(r.Context(), gameID, id.UserID, games.Update{
		Title:       req.Title,
		Description: req.Description,
		Config:      req.Config,
		Code:        req.Code,
	})
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"game": game}, http.StatusOK)
}

type visibilityRequest struct {
	Visibility games.Visibility `json:"visibility"`
}

func (s *server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	var req visibilityRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	if req.Visibility != games.VisibilityPublic && req.Visibility != games.VisibilityPrivate {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "visibility must be public or private")
		return
	}
	if _, err := s.games.GetOwned(r.Context(), gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	if err := s.games.SetVisibility(r.Context(), gameID, req.Visibility); err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"visibility": req.Visibility}, http.StatusOK)
}

func (s *server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")
	ctx := r.Context()

	if _, err := s.games.GetOwned(ctx, gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}

	// Cascade before the row goes away. Best-effort on dependents: the game
	// delete is the authoritative step.
	if err := s.jobs.DeleteForGame(ctx, gameID); err != nil {
		log.Printf("delete jobs for game %s: %v", gameID, err)
	}
	if err := s.community.DeleteForGame(ctx, gameID); err != nil {
		log.Printf("delete community data for game %s: %v", gameID, err)
	}
	if err := s.bundles.DeleteGame(ctx, gameID); err != nil {
		log.Printf("delete bundle for game %s: %v", gameID, err)
	}

	if err := s.games.Delete(ctx, gameID); err != nil {
		respondMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// redact strips fields a non-owner must not see.
func redact(g games.Game) games.Game {
	g.GeneratedCode = ""
	return g
}

func redactAll(list []games.Game) []games.Game {
	out := make([]games.Game, len(list))
	for i, g := range list {
		out[i] = redact(g)
	}
	return out
}
