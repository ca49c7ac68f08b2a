package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"reviewhub/internal/domain/archive"
	"reviewhub/internal/domain/audit"
	"reviewhub/internal/domain/auth"
	"reviewhub/internal/domain/notify"
	"reviewhub/internal/domain/review"
	"reviewhub/internal/platform/config"
	"reviewhub/internal/platform/db"
	"reviewhub/internal/platform/email"
	"reviewhub/internal/platform/jobs"
	"reviewhub/internal/platform/metrics"
	"reviewhub/internal/transport/http/api"
	audithandler "reviewhub/internal/transport/http/handlers/audit"
	authhandler "reviewhub/internal/transport/http/handlers/auth"
	notificationshandler "reviewhub/internal/transport/http/handlers/notifications"
	reviewshandler "reviewhub/internal/transport/http/handlers/reviews"
	"reviewhub/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	authStore := auth.NewStore(pool)
	auditService := audit.New(pool)
	notifier := notify.New(notify.NewStore(pool), email.New(cfg), cfg.ChatWebhookURL, cfg.EmailFrom)
	archiver := archive.NewService(pool, cfg.ArchiveDir)
	reviews := review.NewService(review.NewStore(pool), notifier, archiver)

	scheduler := jobs.New(pool, cfg, reviews, collector)
	scheduler.Start(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	// The concrete-pointer check matters: handing a nil *metrics.Collector to
	// the RequestRecorder interface would defeat the middleware's nil guard.
	if collector != nil {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if collector != nil {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin, authStore)).
			Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
			})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authStore, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/me", authHandler.HandleMe)

		reviewsHandler := reviewshandler.NewHandler(reviews, authStore, auditService, middleware.NewIdempotencyStore(pool))
		reviewsHandler.RegisterRoutes(r)

		notificationsHandler := notificationshandler.NewHandler(notifier, authStore)
		notificationsHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditService, authStore)
		auditHandler.RegisterRoutes(r)
	})

	log.Printf("reviewhub server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
