package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/kitsync/internal/alert"
	"github.com/ignite/kitsync/internal/api"
	"github.com/ignite/kitsync/internal/carousel"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/kit"
	"github.com/ignite/kitsync/internal/ledger"
	"github.com/ignite/kitsync/internal/metrics"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/pkg/distlock"
	"github.com/ignite/kitsync/internal/pkg/logger"
	"github.com/ignite/kitsync/internal/relay"
	"github.com/ignite/kitsync/internal/render"
	"github.com/ignite/kitsync/internal/worker"
)

// app holds the wired process dependencies.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	redis  *redis.Client
	send   *worker.SendJob
	runner *worker.Runner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Ledger.DatabaseURL != "" {
		db, err := openDB(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, falling back to database or local run locks", "addr", cfg.Redis.Addr, "error", err)
			a.redis.Close()
			a.redis = nil
		}
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	l, err := ledger.New(ctx, cfg.Ledger, a.db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}
	alerts, err := alert.New(ctx, cfg.Alerts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating alerts: %w", err)
	}

	retries := cfg.Retry.Retries()
	store := notion.NewClient(cfg.Notion, retries)
	kitClient := kit.NewClient(cfg.Kit, retries)

	// Dry runs never upload images.
	var imageRelay relay.Relay = relay.Passthrough{}
	if !cfg.Send.DryRun {
		r, err := relay.New(ctx, cfg.Images, retries)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating image relay: %w", err)
		}
		imageRelay = relay.Counted{Next: r}
	}

	send, err := worker.NewSendJob(cfg, store, kitClient, kit.NewDirectory(kitClient),
		render.NewRenderer(imageRelay), l, alerts)
	if err != nil {
		a.Close()
		return nil, err
	}
	statsJob, err := worker.NewStatsJob(cfg, store, kitClient, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	gen, err := carousel.LoadGenerator(cfg.Carousel.TemplatePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	refiner, err := carousel.NewRefiner(ctx, cfg.Carousel.Bedrock)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating bedrock refiner: %w", err)
	}

	a.send = send
	a.runner = worker.NewRunner(a.lockFor, alerts,
		send,
		statsJob,
		worker.NewCarouselJob(cfg, store, gen, refiner),
	)
	return a, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Info("connected to database")
	return db, nil
}

func (a *app) lockFor(job domain.JobName) distlock.DistLock {
	return distlock.NewLock(a.redis, a.db, "kitsync:"+string(job), a.cfg.Redis.LockTTL())
}

func (a *app) serve(ctx context.Context) error {
	h := api.NewHandlers(a.runner, a.send, api.NewHealthChecker(a.db, a.redis))
	return api.NewServer(a.cfg.Server, h, prometheus.DefaultGatherer).Start(ctx)
}

// schedule runs the cron scheduler alongside the ops server until ctx ends.
func (a *app) schedule(ctx context.Context) error {
	s, err := worker.NewScheduler(a.runner, a.cfg.Schedule.Timezone)
	if err != nil {
		return err
	}
	for job, spec := range a.cfg.Schedule.Specs() {
		if err := s.Add(ctx, domain.JobName(job), spec); err != nil {
			return err
		}
	}
	if s.Len() == 0 {
		return errors.New("no jobs scheduled")
	}

	go func() {
		if err := a.serve(ctx); err != nil {
			logger.Error("ops server stopped", "error", err)
		}
	}()
	s.Run(ctx)
	logger.Info("scheduler stopped")
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
