package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sentra/internal/activity"
	"sentra/internal/admin"
	"sentra/internal/audit"
	"sentra/internal/maintenance"
	"sentra/internal/pipeline"
	"sentra/internal/platform/config"
	"sentra/internal/platform/httpserver"
	"sentra/internal/platform/logger"
	"sentra/internal/platform/postgres"
	platformredis "sentra/internal/platform/redis"
	ratelimitcfg "sentra/internal/ratelimit/config"
	ratelimitmetrics "sentra/internal/ratelimit/metrics"
	ratelimitmw "sentra/internal/ratelimit/middleware"
	"sentra/internal/ratelimit/models"
	"sentra/internal/ratelimit/store/bucket"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/platform/middleware/auth"
)

// Paths that must stay reachable during maintenance and must never show up
// in the activity trail.
var excludedPaths = []string{"/health", "/metrics"}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores default to in-memory and upgrade to postgres when configured.
	var (
		activityStore activity.Store = activity.NewInMemoryStore()
		auditStore    audit.Store    = audit.NewInMemoryStore()
		settings      settingsStore  = maintenance.NewInMemorySettingsStore()
	)
	if cfg.PostgresURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		activityStore = activity.NewPostgresStore(pool)
		auditStore = audit.NewPostgresStore(pool)
		settings = maintenance.NewPostgresSettingsStore(pool)
	}

	var buckets ratelimitmw.BucketStore = bucket.New()
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		buckets = bucket.NewRedis(redisClient.Client)
		log.Info("rate limiting backed by redis")
	}

	gate := maintenance.NewGate(settings, cfg.MaintenanceCacheTTL)

	recorder := activity.NewRecorder(activityStore, log, excludedPaths)

	auditOpts := []audit.Option{}
	var kafkaSink *audit.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("failed to create kafka audit sink", "error", err)
			os.Exit(1)
		}
		kafkaSink = sink
		auditOpts = append(auditOpts, audit.WithSink(sink))
		log.Info("audit events fan out to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	auditor := audit.NewClassifier(auditStore, log, auditOpts...)

	limiter := ratelimitmw.New(buckets, ratelimitcfg.DefaultConfig(), log,
		ratelimitmw.WithMetrics(ratelimitmetrics.New()))

	validator := auth.NewHMACValidator([]byte(cfg.JWTSigningKey))
	chain := pipeline.New(
		maintenance.NewMiddleware(gate, log, excludedPaths),
		limiter,
		recorder,
		auditor,
		pipeline.WithAuthenticator(auth.Populate(validator, log)),
	)

	adminHandler := admin.NewHandler(activityStore, auditStore, settings, gate, log)
	router := newRouter(chain, adminHandler)

	srv := httpserver.New(cfg.Addr, router)
	sweeper := activity.NewRetentionSweeper(log, cfg.RetentionMaxAge, cfg.RetentionInterval,
		activityStore, auditStore)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sentra", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	if kafkaSink != nil {
		kafkaSink.Close()
	}
	log.Info("sentra stopped")
}

// settingsStore is what main needs from a settings backend: gate reads and
// admin writes.
type settingsStore interface {
	maintenance.SettingsStore
	admin.SettingsWriter
}

// newRouter mounts the demo business surface behind the full pipeline plus
// the unrecorded operational endpoints.
func newRouter(chain *pipeline.Pipeline, adminHandler *admin.Handler) http.Handler {
	r := chi.NewRouter()

	r.Method(http.MethodGet, "/health", chain.Wrap(models.ClassRead, http.HandlerFunc(healthHandler)))
	r.Handle("/metrics", promhttp.Handler())

	business := http.HandlerFunc(businessHandler)
	r.Mount("/api/v1/auth", chain.Wrap(models.ClassAuth, business))
	r.Mount("/api/v1/exports", chain.Wrap(models.ClassExport, business))

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.RequireAdmin)
	adminHandler.Routes(adminRouter)
	r.Mount("/api/v1/admin", byVerb(
		chain.Wrap(models.ClassRead, adminRouter),
		chain.Wrap(models.ClassMutation, adminRouter),
	))

	// Everything else splits by verb: reads are cheap, mutations are not.
	r.Mount("/", byVerb(
		chain.Wrap(models.ClassRead, business),
		chain.Wrap(models.ClassMutation, business),
	))

	return r
}

func byVerb(read, mutate http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			read.ServeHTTP(w, r)
		default:
			mutate.ServeHTTP(w, r)
		}
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// businessHandler stands in for the wrapped CRUD surface. The pipeline is
// the product; the handlers behind it are the host application's.
func businessHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, map[string]string{
		"path":   r.URL.Path,
		"method": r.Method,
	})
}
