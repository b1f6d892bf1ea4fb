package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gameforge/backend/pkg/auth"
	"github.com/gameforge/backend/pkg/buildqueue"
	"github.com/gameforge/backend/pkg/buildsvc"
	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/ratelimit"
)

func (s *server) handleRequestBuild(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	job, err := s.orch.Request(r.Context(), id.UserID, id.Tier, gameID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{"build": job}, http.StatusAccepted)
}

func (s *server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	info, err := s.orch.Status(r.Context(), id.UserID, gameID)
	if err != nil {
		if errors.Is(err, buildqueue.ErrNoJobs) {
			respondJSON(w, map[string]any{"status": "none"}, http.StatusOK)
			return
		}
		respondMappedError(w, err)
		return
	}
	respondJSON(w, info, http.StatusOK)
}

// handleBuildWebhook receives terminal build reports from the build service,
// authenticated by the shared secret.
func (s *server) handleBuildWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.build.VerifySecret(r) {
		respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid build service secret")
		return
	}

	var upd buildsvc.StatusUpdate
	if err := decodeBody(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	upd.BuildID = chi.URLParam(r, "buildID")

	if err := s.orch.Reconcile(r.Context(), upd); err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type languageEntry struct {
	gamelang.LanguageInfo
	Available bool `json:"available"`
}

// handleListLanguages lists every registered language with availability for
// the caller's tier (or an explicit ?tier= override).
func (s *server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	tier := id.Tier
	if raw := r.URL.Query().Get("tier"); raw != "" {
		if gamelang.Tier(raw).Rank() < 0 {
			respondError(w, http.StatusBadRequest, codeInvalidRequest, "unknown tier")
			return
		}
		tier = gamelang.Tier(raw)
	}

	var out []languageEntry
	for _, info := range s.registry.Languages() {
		out = append(out, languageEntry{
			LanguageInfo: info,
			Available:    tier.Meets(info.RequiredTier),
		})
	}
	respondJSON(w, map[string]any{"languages": out, "tier": tier}, http.StatusOK)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, codeInternal, "code generation is not configured")
		return
	}
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON payload")
		return
	}
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "prompt is required")
		return
	}
	if !s.limiter.Allow(r.Context(), id.UserID, "ai_generate", ratelimit.AIGenerate) {
		respondError(w, http.StatusTooManyRequests, codeRateLimited, "generation limit reached")
		return
	}

	if err := s.generator.Start(r.Context(), id.UserID, gameID, req.Prompt); err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "generating"}, http.StatusAccepted)
}

// handleGenerationStatus reports where an async generation stands, observed
// through the game's lifecycle status.
func (s *server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	game, err := s.games.GetOwned(r.Context(), gameID, id.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"status":  game.Status,
		"hasCode": game.GeneratedCode != "",
	}, http.StatusOK)
}
