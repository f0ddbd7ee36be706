package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"clearance/internal/jwtauth"
	"clearance/internal/notify"
	"clearance/internal/platform/config"
	"clearance/internal/platform/httpserver"
	"clearance/internal/platform/logger"
	platformmetrics "clearance/internal/platform/metrics"
	"clearance/internal/platform/middleware"
	"clearance/internal/platform/postgres"
	platformredis "clearance/internal/platform/redis"
	"clearance/internal/progress"
	"clearance/internal/stage"
	workflowhandler "clearance/internal/workflow/handler"
	workflowmetrics "clearance/internal/workflow/metrics"
	workflowservice "clearance/internal/workflow/service"
	workflowstore "clearance/internal/workflow/store"
)

// main wires dependencies once at process start and keeps the server
// lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		log.Error("stage catalog", "error", err)
		os.Exit(1)
	}

	var store workflowservice.Store = workflowstore.NewInMemory()
	pool, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		pg := workflowstore.NewPostgres(pool.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("postgres schema", "error", err)
			os.Exit(1)
		}
		store = pg
		defer pool.Close()
		log.Info("using postgres submission store")
	} else {
		log.Warn("no database configured, submissions are in-memory only")
	}

	sink, cleanup, err := buildSink(cfg, log)
	if err != nil {
		log.Error("notification sink", "error", err)
		os.Exit(1)
	}
	defer cleanup()
	dispatcher := notify.NewDispatcher(sink, cfg.Notify.Buffer, log)

	var jwtValidator middleware.JWTValidator
	if cfg.JWTSigningKey != "" {
		jwtValidator = jwtauth.NewService(cfg.JWTSigningKey, "clearance", "clearance-api")
	} else {
		log.Warn("no JWT signing key configured, auth is disabled")
	}

	httpMetrics := platformmetrics.New()
	projector := progress.New(catalog, store)
	engine := workflowservice.New(catalog, store, projector, dispatcher,
		workflowservice.WithLogger(log),
		workflowservice.WithMetrics(workflowmetrics.New()),
	)
	handler := workflowhandler.New(engine, log, httpMetrics, jwtValidator)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", platformmetrics.Handler())
	handler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting clearance server", "addr", cfg.Addr, "stages", catalog.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func loadCatalog(cfg config.Server) (*stage.Catalog, error) {
	if cfg.StagesFile != "" {
		return stage.LoadFile(cfg.StagesFile)
	}
	return stage.Default(), nil
}

// buildSink picks the outbound notification channel: kafka when brokers are
// configured, then redis, then the structured log.
func buildSink(cfg config.Server, log *slog.Logger) (notify.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, nil, err
		}
		return kafkaSink, kafkaSink.Close, nil
	}
	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return notify.NewRedisSink(client, cfg.Redis.Channel), func() { _ = client.Close() }, nil
	}
	return notify.NewLogSink(log), func() {}, nil
}
