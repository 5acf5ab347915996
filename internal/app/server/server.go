package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/feedback"
	"perfreview/internal/domain/notifications"
	"perfreview/internal/domain/reports"
	"perfreview/internal/domain/selections"
	"perfreview/internal/domain/users"
	"perfreview/internal/platform/config"
	cryptoutil "perfreview/internal/platform/crypto"
	"perfreview/internal/platform/db"
	"perfreview/internal/platform/email"
	"perfreview/internal/platform/jobs"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/transport/http/api"
	audithandler "perfreview/internal/transport/http/handlers/audit"
	authhandler "perfreview/internal/transport/http/handlers/auth"
	cycleshandler "perfreview/internal/transport/http/handlers/cycles"
	feedbackhandler "perfreview/internal/transport/http/handlers/feedback"
	notificationshandler "perfreview/internal/transport/http/handlers/notifications"
	reportshandler "perfreview/internal/transport/http/handlers/reports"
	selectionshandler "perfreview/internal/transport/http/handlers/selections"
	usershandler "perfreview/internal/transport/http/handlers/users"
	"perfreview/internal/transport/http/middleware"
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

	router := NewRouter(cfg, pool)

	jobs.NewSweeper(pool, cfg.CleanupInterval, cfg.IdempotencyTTL).Start(ctx)

	log.Printf("perfreview server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// NewRouter builds the full middleware chain and API surface. Split from
// Run so tests can drive the router without binding a listener.
func NewRouter(cfg config.Config, pool *pgxpool.Pool) http.Handler {
	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore)

	cryptoSvc, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		log.Fatalf("encryption key invalid: %v", err)
	}

	usersService := users.NewService(users.NewStore(pool))
	cyclesService := cycles.NewService(cycles.NewStore(pool))
	selectionsService := selections.NewService(selections.NewStore(pool))
	feedbackService := feedback.NewService(feedback.NewStore(pool))
	reportsService := reports.NewService(reports.NewStore(pool))
	mailer := email.New(cfg)
	notificationsService := notifications.New(notifications.NewStore(pool), mailer, cfg.EmailEnabled, cfg.EmailFrom)
	auditService := audit.New(pool)
	idempotencyStore := middleware.NewIdempotencyStore(pool, cfg.IdempotencyTTL)

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitWindow))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, cfg.RateLimitWindow))
	router.Use(middleware.Auth(cfg.JWTSecret, authStore))

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
		authhandler.NewHandler(authService, cfg.JWTSecret, cfg.TokenTTL, cryptoSvc, mailer, cfg.EmailFrom).RegisterRoutes(r)
		usershandler.NewHandler(pool, usersService, authStore).RegisterRoutes(r)
		cycleshandler.NewHandler(pool, cyclesService, authStore).RegisterRoutes(r)
		selectionshandler.NewHandler(selectionsService, cyclesService, notificationsService, auditService, idempotencyStore, authStore).RegisterRoutes(r)
		feedbackhandler.NewHandler(feedbackService, cyclesService, notificationsService, auditService, idempotencyStore, authStore).RegisterRoutes(r)
		notificationshandler.NewHandler(notificationsService, auditService, authStore).RegisterRoutes(r)
		reportshandler.NewHandler(reportsService, cyclesService, authStore).RegisterRoutes(r)
		audithandler.NewHandler(auditService, authStore).RegisterRoutes(r)

		r.With(middleware.RequirePermission(auth.PermMetricsRead, authStore)).Get("/admin/metrics", func(w http.ResponseWriter, r *http.Request) {
			if collector == nil {
				api.Fail(w, http.StatusNotFound, "metrics_disabled", "metrics collection is disabled", middleware.GetRequestID(r.Context()))
				return
			}
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	})

	return router
}
