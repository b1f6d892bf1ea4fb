package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gameforge/backend/pkg/bundles"
	"github.com/gameforge/backend/pkg/games"
)

// handlePlay serves published bundle files for public games. It is the one
// unauthenticated game endpoint, so shared play links work without a login.
func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if game.Visibility != games.VisibilityPublic || game.Status != games.StatusPublished {
		respondMappedError(w, games.ErrNotFound)
		return
	}

	file := strings.TrimSpace(r.URL.Query().Get("file"))
	if file == "" {
		file = "index.html"
	}

	data, err := s.bundles.Get(r.Context(), gameID, file)
	if err != nil {
		if errors.Is(err, bundles.ErrNotFound) {
			respondError(w, http.StatusNotFound, codeNotFound, "bundle file not found")
			return
		}
		respondMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", bundles.ContentType(file))
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}
