package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proof-engine/internal/analytics"
	"proof-engine/internal/api"
	"proof-engine/internal/common/aws"
	"proof-engine/internal/common/camunda"
	"proof-engine/internal/common/config"
	"proof-engine/internal/common/database"
	"proof-engine/internal/common/distlock"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/common/observability"
	"proof-engine/internal/engine/admission"
	"proof-engine/internal/engine/graduation"
	"proof-engine/internal/store/cache"
	"proof-engine/internal/store/postgres"
	gw "proof-engine/internal/workers/graduation/graduate-widget"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting proof engine",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, 0.1)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	store := postgres.NewStore(pg.DB, log.Named("store"))
	snapshots := cache.NewSnapshotCache(
		redis.Client,
		store,
		cfg.Engine.SnapshotKeyBase,
		config.GetDuration(cfg.Engine.SnapshotTTL),
		log.Named("snapshot-cache"),
	)

	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis":    redis.Ping,
	}

	// --- Analytics: PostgreSQL first, Elasticsearch index when enabled ---
	var esClient *elasticsearch.Client
	var sink admission.EventSink
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.EnsureEventIndex(ctx, cfg.Database.Elasticsearch.EventIndex)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		esClient = es.Client
		sink = analytics.NewIndexer(es.Client, cfg.Database.Elasticsearch.EventIndex)
		checks["elasticsearch"] = es.Ping
	}
	stats := analytics.NewGraduationSource(pg.DB, esClient, cfg.Database.Elasticsearch.EventIndex, log.Named("analytics"))

	// --- Graduation ---
	gradOpts := []graduation.Option{graduation.WithInvalidator(snapshots)}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		gradOpts = append(gradOpts, graduation.WithNotifier(aws.NewGraduationNotifier(snsClient, cfg.Notifications.SNS.TopicARN)))
		zapLog.Info("Graduation notices enabled", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}

	controller := graduation.NewController(
		graduation.Config{
			DefaultThreshold: cfg.Graduation.DefaultThreshold,
			Thresholds:       cfg.Graduation.Thresholds,
			CTRFactor:        cfg.Graduation.CTRFactor,
			PreRatio:         cfg.Graduation.PreRatio,
			PostRatio:        cfg.Graduation.PostRatio,
			Window:           time.Duration(cfg.Graduation.WindowDays) * 24 * time.Hour,
		},
		stats,
		store,
		distlock.NewFactory(redis.Client, pg.DB, config.GetDuration(cfg.Graduation.LeaseTTL)),
		log.Named("graduation"),
		gradOpts...,
	)

	var scheduler *graduation.Scheduler
	if cfg.Graduation.Enabled {
		scheduler = graduation.NewScheduler(
			controller,
			store,
			config.GetDuration(cfg.Graduation.Interval),
			cfg.Graduation.Concurrency,
			log.Named("graduation-scheduler"),
		)
		if err := scheduler.Start(); err != nil {
			zapLog.Fatal("graduation scheduler failed to start", zap.Error(err))
		}
	}

	// --- Admission ---
	admitOpts := []admission.Option{admission.WithObservability(obs)}
	if sink != nil {
		admitOpts = append(admitOpts, admission.WithEventSink(sink))
	}
	admitter := admission.NewService(
		admission.Config{
			NaturalFloor: cfg.Engine.NaturalFloor,
			RecentWindow: cfg.Engine.RecentWindow,
			SessionTTL:   config.GetDuration(cfg.Engine.SessionTTL),
			PreRatio:     cfg.Graduation.PreRatio,
			PostRatio:    cfg.Graduation.PostRatio,
		},
		snapshots,
		store,
		admission.NewRand(cfg.Engine.RandomSeed),
		log.Named("admission"),
		admitOpts...,
	)

	// --- Zeebe worker ---
	var zeebe *camunda.Client
	var worker *gw.Handler
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		worker, err = gw.NewHandler(gw.ConfigFrom(cfg), controller, log)
		if err != nil {
			zapLog.Fatal("graduation worker init failed", zap.Error(err))
		}
		worker.Register(zeebe)
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe worker started", zap.String("taskType", gw.TaskType))
	}

	// --- HTTP ---
	server := api.NewServer(cfg.API, admitter, controller, checks, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.API.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if worker != nil {
		worker.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Proof engine stopped")
}
