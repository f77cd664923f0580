package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/core"
	"leavehub/internal/domain/leave"
	"leavehub/internal/platform/config"
	"leavehub/internal/platform/db"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/platform/metrics"
	audithandler "leavehub/internal/transport/http/handlers/audit"
	authhandler "leavehub/internal/transport/http/handlers/auth"
	leavehandler "leavehub/internal/transport/http/handlers/leave"
	reportshandler "leavehub/internal/transport/http/handlers/reports"
	"leavehub/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
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

	authStore := auth.NewStore(pool)
	coreStore := core.NewStore(pool)
	leaveStore := leave.NewStore(pool)
	auditSvc := audit.New(pool)

	ledger := &leave.Ledger{Store: leaveStore}
	leaveSvc := leave.NewService(leaveStore, ledger, coreStore)

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	jobSvc := jobs.New(pool, cfg, ledger)
	jobSvc.Start(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if collector != nil {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

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

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authStore, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		idemStore := middleware.NewIdempotencyStore(pool)
		leaveHandler := leavehandler.NewHandler(leaveSvc, coreStore, authStore, auditSvc, idemStore)
		leaveHandler.RegisterRoutes(r)

		reportsHandler := reportshandler.NewHandler(ledger, coreStore, jobSvc, collector, authStore)
		reportsHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc, authStore)
		auditHandler.RegisterRoutes(r)
	})

	log.Printf("leavehub server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
