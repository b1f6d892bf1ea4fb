package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gameforge/backend/pkg/auth"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/ratelimit"
)

// visibleGame resolves a game the caller may interact with socially: their
// own, or anyone's published public game.
func (s *server) visibleGame(r *http.Request, gameID, userID string) (games.Game, error) {
	game, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		return games.Game{}, err
	}
	if game.UserID != userID &&
		(game.Visibility != games.VisibilityPublic || game.Status != games.StatusPublished) {
		return games.Game{}, games.ErrNotFound
	}
	return game, nil
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	if _, err := s.visibleGame(r, gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}

	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	if !s.limiter.Allow(r.Context(), id.UserID, "comment", ratelimit.Comment) {
		respondError(w, http.StatusTooManyRequests, codeRateLimited, "comment limit reached")
		return
	}

	comment, err := s.community.CreateComment(r.Context(), gameID, id.UserID, req.Body)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"comment": comment}, http.StatusCreated)
}

func (s *server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	if _, err := s.visibleGame(r, gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	comments, err := s.community.ListComments(r.Context(), gameID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"comments": comments}, http.StatusOK)
}

func (s *server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	commentID := chi.URLParam(r, "commentID")

	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	comment, err := s.community.UpdateComment(r.Context(), commentID, id.UserID, req.Body)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"comment": comment}, http.StatusOK)
}

func (s *server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	commentID := chi.URLParam(r, "commentID")

	if err := s.community.DeleteComment(r.Context(), commentID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	if _, err := s.visibleGame(r, gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	state, err := s.community.ToggleLike(r.Context(), gameID, id.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, state, http.StatusOK)
}

func (s *server) handleGetLikes(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	if _, err := s.visibleGame(r, gameID, id.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	state, err := s.community.Likes(r.Context(), gameID, id.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, state, http.StatusOK)
}
