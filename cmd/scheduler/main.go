package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"erosion-platform/internal/config"
	"erosion-platform/internal/notify"
	"erosion-platform/internal/repository"
	"erosion-platform/internal/services"
	"erosion-platform/pkg/database"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

const version = "1.0.0"

// pendingEventBatch caps the number of unprocessed events handled per sweep.
const pendingEventBatch = 100

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("erosion-scheduler", version, cfg.Logging.Level)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info(ctx, "[STARTUP] Starting erosion platform scheduler", logging.Fields{
		"version":           version,
		"analysis_interval": cfg.Scheduler.AnalysisInterval.String(),
		"training_interval": cfg.Scheduler.TrainingInterval.String(),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("erosion_scheduler")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and services
	repo := repository.NewErosionRepository(db, logger, metricsCollector)
	clock := clockwork.NewRealClock()
	notifier := notify.NewLogNotifier(logger)

	analysisService := services.NewAnalysisService(repo, notifier, clock, logger, metricsCollector)
	trainingService := services.NewTrainingService(repo, clock, logger, metricsCollector)

	// Periodic loops
	go runAnalysisLoop(ctx, cfg, clock, repo, analysisService, logger)
	go runTrainingLoop(ctx, cfg, clock, trainingService, logger)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Stopping scheduler...", logging.Fields{})
	cancel()
	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Scheduler stopped", logging.Fields{})
}

// runAnalysisLoop sweeps pending events and runs the continuous
// pipeline for every zone on each tick.
func runAnalysisLoop(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	repo repository.ErosionRepository,
	analysisService *services.AnalysisService,
	logger *logging.StructuredLogger,
) {
	ticker := clock.NewTicker(cfg.Scheduler.AnalysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			runCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.RunTimeout)

			processed, err := analysisService.ProcessPendingEvents(runCtx, pendingEventBatch)
			if err != nil {
				logger.Error(runCtx, "[SCHED_EVENTS_ERROR] Pending event sweep failed", logging.Fields{}, err)
			}

			zones, _, err := repo.ListZones(runCtx, 10000, 0)
			if err != nil {
				logger.Error(runCtx, "[SCHED_ZONES_ERROR] Failed to list zones", logging.Fields{}, err)
				cancel()
				continue
			}

			analyzed := 0
			for _, zone := range zones {
				if _, err := analysisService.AnalyzeZone(runCtx, zone.ID, cfg.Scheduler.AnalysisLookback); err != nil {
					logger.Error(runCtx, "[SCHED_ANALYSIS_ERROR] Zone analysis failed", logging.Fields{
						"zone_id": zone.ID,
					}, err)
					continue
				}
				analyzed++
			}

			logger.Info(runCtx, "[SCHED_TICK] Analysis sweep completed", logging.Fields{
				"events_processed": processed,
				"zones_analyzed":   analyzed,
				"zones_total":      len(zones),
			})
			cancel()
		}
	}
}

// runTrainingLoop retrains and activates models on a daily cadence.
func runTrainingLoop(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	trainingService *services.TrainingService,
	logger *logging.StructuredLogger,
) {
	ticker := clock.NewTicker(cfg.Scheduler.TrainingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			runCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.RunTimeout)

			report, err := trainingService.TrainAndActivate(runCtx)
			if err != nil {
				logger.Warn(runCtx, "[SCHED_TRAIN_SKIP] Training run did not produce a model", logging.Fields{
					"error": err.Error(),
				})
				cancel()
				continue
			}

			logger.Info(runCtx, "[SCHED_TRAIN_COMPLETE] Training run completed", logging.Fields{
				"examples":     report.Examples,
				"activated_id": report.ActivatedID,
			})
			cancel()
		}
	}
}
