// Command engine runs the learning mastery and ranking engine: it consumes
// graded-submission and achievement events, maintains the derived mastery,
// progression, and points aggregates, and pushes realtime updates toward
// dashboards.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnpulse/mastery-engine/config"
	"github.com/learnpulse/mastery-engine/internal/application/command"
	"github.com/learnpulse/mastery-engine/internal/application/saga"
	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/infrastructure/messaging"
	"github.com/learnpulse/mastery-engine/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/learnpulse/mastery-engine/internal/infrastructure/persistence/redis"
	"github.com/learnpulse/mastery-engine/internal/infrastructure/realtime"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "replay all aggregates from source records, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)

	if *rebuild {
		err = runRebuild(cfg, logger)
	} else {
		err = run(cfg, logger)
	}
	if err != nil {
		logger.Error("engine exited with error", "error", err)
		os.Exit(1)
	}
}

// runRebuild replays every derived aggregate from the performance records
// and the points ledger, then exits.
func runRebuild(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := connectPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return err
	}

	records := postgres.NewPerformanceRepo(conn)
	masteryRows := postgres.NewMasteryRepo(conn)
	progressionRows := postgres.NewProgressionRepo(conn)
	ledger := postgres.NewLedgerRepo(conn)
	aggregates := postgres.NewAggregateRepo(conn)
	snapshots := postgres.NewSnapshotRepo(conn)
	students := postgres.NewRosterRepo(conn)

	recomputeMastery := command.NewRecomputeMasteryHandler(records, masteryRows, logger)
	recomputeProgression := command.NewRecomputeProgressionHandler(records, progressionRows, logger)
	awards := command.NewAwardPointsHandler(ledger, aggregates, students, logger)
	rerank := command.NewRerankClassHandler(students, aggregates, snapshots, nil, nil, cfg.Engine.LockWait, logger)

	rebuild := command.NewRebuildAggregatesHandler(
		records, recomputeMastery, recomputeProgression, awards, rerank,
		nil, cfg.Engine.LockWait, logger)

	classIDs, err := students.ListClassIDs(ctx)
	if err != nil {
		return err
	}
	campusIDs, err := students.ListCampusIDs(ctx)
	if err != nil {
		return err
	}

	result, err := rebuild.Handle(ctx, classIDs, campusIDs)
	if err != nil {
		return err
	}
	logger.Info("rebuild complete",
		"topics", result.TopicsRecomputed,
		"subjects", result.SubjectsRecomputed,
		"students", result.StudentsRecomputed,
		"classes", result.ClassesReranked,
		"campuses", result.CampusesReranked,
		"elapsed", result.Elapsed,
	)
	return nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ────────────────────────────────────────────────────────

	conn, err := connectPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database ready")

	records := postgres.NewPerformanceRepo(conn)
	masteryRows := postgres.NewMasteryRepo(conn)
	progressionRows := postgres.NewProgressionRepo(conn)
	ledger := postgres.NewLedgerRepo(conn)
	aggregates := postgres.NewAggregateRepo(conn)
	snapshots := postgres.NewSnapshotRepo(conn)
	students := postgres.NewRosterRepo(conn)

	// ── Event bus and leaderboard cache ───────────────────────────────────

	localBusCfg := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: cfg.Engine.EventWorkers,
		Logger:         logger,
	}

	var bus shared.EventBus
	var busCloser interface{ Close() error }
	var cache points.LeaderboardCache

	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(ctx, redisinfra.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		})
		if err != nil {
			return err
		}
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(client),
			InstanceID:     cfg.App.InstanceID,
			LocalBusConfig: localBusCfg,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
		bus = redisBus
		busCloser = redisBus
		cache = redisinfra.NewLeaderboardCache(client)
		logger.Info("redis event bus connected", "addr", cfg.Redis.Addr)
	} else {
		memBus := messaging.NewInMemoryEventBus(localBusCfg)
		bus = memBus
		busCloser = memBus
		logger.Info("running on in-memory event bus")
	}
	defer func() {
		if err := busCloser.Close(); err != nil {
			logger.Error("event bus close failed", "error", err)
		}
	}()

	// ── Application wiring ────────────────────────────────────────────────

	notifier := realtime.NewNotifier(
		realtime.NewRecentWindow(cfg.Engine.RecentWindowSize),
		realtime.NewBroadcaster(),
		records,
		logger,
	)

	ingest := command.NewIngestSubmissionHandler(records, nil, cfg.Engine.DemonstrationThreshold, logger)
	recomputeMastery := command.NewRecomputeMasteryHandler(records, masteryRows, logger)
	recomputeProgression := command.NewRecomputeProgressionHandler(records, progressionRows, logger)
	awards := command.NewAwardPointsHandler(ledger, aggregates, students, logger)
	rerank := command.NewRerankClassHandler(students, aggregates, snapshots, cache, nil, cfg.Engine.LockWait, logger)

	pipeline := saga.New(saga.Config{
		Ingest:      ingest,
		Mastery:     recomputeMastery,
		Progression: recomputeProgression,
		Awards:      awards,
		Rerank:      rerank,
		Students:    students,
		Bus:         bus,
		Notifier:    notifier,
		LockWait:    cfg.Engine.LockWait,
		Logger:      logger,
	})

	dispatcher := messaging.NewDispatcher(pipeline, cfg.Engine.PipelineTimeout, logger)
	if err := dispatcher.Register(bus); err != nil {
		return err
	}

	go pruneSnapshots(ctx, snapshots, cfg.Engine.SnapshotRetention, logger)

	logger.Info("mastery engine started",
		"env", cfg.App.Env,
		"demonstration_threshold", cfg.Engine.DemonstrationThreshold,
		"recent_window_size", cfg.Engine.RecentWindowSize,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// connectPostgres prefers DATABASE_URL over discrete settings.
func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Connection, error) {
	if cfg.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Host
	pgCfg.Port = cfg.Port
	pgCfg.Database = cfg.Name
	pgCfg.User = cfg.User
	pgCfg.Password = cfg.Password
	pgCfg.SSLMode = cfg.SSLMode
	pgCfg.MaxConns = cfg.MaxConns
	pgCfg.MinConns = cfg.MinConns
	return postgres.NewConnection(ctx, pgCfg)
}

// pruneSnapshots drops leaderboard snapshots past the retention window once
// a day.
func pruneSnapshots(ctx context.Context, snapshots points.SnapshotRepository, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			pruned, err := snapshots.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				logger.Error("snapshot pruning failed", "error", err)
				continue
			}
			if pruned > 0 {
				logger.Info("pruned leaderboard snapshots", "count", pruned, "cutoff", cutoff)
			}
		}
	}
}

func newLogger(app config.AppConfig) *slog.Logger {
	var level slog.Level
	switch app.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if app.Env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
