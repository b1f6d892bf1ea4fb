package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gameforge/backend/pkg/auth"
	"github.com/gameforge/backend/pkg/buildqueue"
	"github.com/gameforge/backend/pkg/buildsvc"
	"github.com/gameforge/backend/pkg/bundles"
	"github.com/gameforge/backend/pkg/codegen"
	"github.com/gameforge/backend/pkg/community"
	"github.com/gameforge/backend/pkg/config"
	"github.com/gameforge/backend/pkg/gamelang"
	"github.com/gameforge/backend/pkg/games"
	"github.com/gameforge/backend/pkg/ratelimit"
	"github.com/gameforge/backend/pkg/telemetry"
)

type server struct {
	games     games.Store
	jobs      buildqueue.Store
	orch      *buildqueue.Orchestrator
	generator *codegen.Generator
	community community.Store
	bundles   *bundles.Store
	build     *buildsvc.Client
	registry  *gamelang.Registry
	limiter   *ratelimit.Limiter
}

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.AuthSecret == "" {
		log.Fatal("auth_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := telemetry.InitTracer(ctx, "gameforge-api")
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	buildClient, err := buildsvc.NewClient(cfg.BuildServiceURL, cfg.BuildServiceSecret)
	if err != nil {
		log.Fatalf("build service config: %v", err)
	}

	gameStore, jobStore, communityStore, err := openStores(cfg)
	if err != nil {
		log.Fatalf("failed to open stores: %v", err)
	}

	bundleStore, err := bundles.Open(ctx, cfg.BundleBucketURL)
	if err != nil {
		log.Fatalf("failed to open bundle bucket: %v", err)
	}
	defer bundleStore.Close()

	limiter := ratelimit.NewLimiter(newCounter(cfg.RedisURL))
	registry := gamelang.DefaultRegistry()

	var completer codegen.Completer
	aiClient, err := codegen.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	if err != nil {
		log.Printf("AI generation disabled: %v", err)
	} else {
		completer = aiClient
	}

	srv := &server{
		games:     gameStore,
		jobs:      jobStore,
		orch:      buildqueue.NewOrchestrator(gameStore, jobStore, registry, limiter, buildClient),
		community: communityStore,
		bundles:   bundleStore,
		build:     buildClient,
		registry:  registry,
		limiter:   limiter,
	}
	if completer != nil {
		srv.generator = codegen.NewGenerator(gameStore, registry, completer)
	}

	verifier := auth.NewVerifier(cfg.AuthSecret)
	router := srv.routes(verifier)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("api shutdown error: %v", err)
		}
	}()

	log.Printf("api listening on %s", cfg.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("api listen failed: %v", err)
	}

	<-ctx.Done()
	log.Println("api stopped")
}

// openStores connects Postgres-backed stores sharing one pool, or falls back
// to the in-memory stores when no database is configured.
func openStores(cfg config.APIConfig) (games.Store, buildqueue.Store, community.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Println("no database_url configured, using in-memory stores")
		return games.NewMemStore(), buildqueue.NewMemStore(), community.NewMemStore(), nil
	}
	gameStore, err := games.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	jobStore, err := buildqueue.NewPostgresStoreFromDB(gameStore.DB())
	if err != nil {
		return nil, nil, nil, err
	}
	communityStore, err := community.NewPostgresStoreFromDB(gameStore.DB())
	if err != nil {
		return nil, nil, nil, err
	}
	return gameStore, jobStore, communityStore, nil
}

func newCounter(redisURL string) ratelimit.Counter {
	counter, err := ratelimit.NewRedisCounter(redisURL)
	if err != nil {
		log.Printf("redis unavailable, using in-process rate limit counter: %v", err)
		return ratelimit.NewMemCounter()
	}
	return counter
}

func (s *server) routes(verifier *auth.Verifier) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(timeoutMiddleware(60 * time.Second))

	router.Get("/healthz", healthzHandler)

	router.Route("/api", func(r chi.Router) {
		r.Use(verifier.Middleware(func(w http.ResponseWriter, err error) {
			respondError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
		}))
		r.Use(s.apiRateLimit)

		r.Get("/languages", s.handleListLanguages)

		r.Route("/games", func(r chi.Router) {
			r.Post("/", s.handleCreateGame)
			r.Get("/", s.handleListGames)
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", s.handleGetGame)
				r.Put("/", s.handleUpdateGame)
				r.Delete("/", s.handleDeleteGame)
				r.Patch("/visibility", s.handleSetVisibility)
				r.Post("/generate", s.handleGenerate)
				r.Get("/generation", s.handleGenerationStatus)
				r.Post("/build", s.handleRequestBuild)
				r.Get("/build", s.handleBuildStatus)
				r.Route("/comments", func(r chi.Router) {
					r.Post("/", s.handleCreateComment)
					r.Get("/", s.handleListComments)
					r.Put("/{commentID}", s.handleUpdateComment)
					r.Delete("/{commentID}", s.handleDeleteComment)
				})
				r.Post("/likes", s.handleToggleLike)
				r.Get("/likes", s.handleGetLikes)
			})
		})
	})

	router.Post("/internal/builds/{buildID}/status", s.handleBuildWebhook)

	router.Get("/play/{gameID}", s.handlePlay)

	return router
}

// apiRateLimit applies the global per-user request quota.
func (s *server) apiRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "missing identity")
			return
		}
		if !s.limiter.Allow(r.Context(), id.UserID, "api", ratelimit.API) {
			respondError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
