// Package main is the entry point for packmule, the squad resupply
// allocation planner. The default invocation runs the configured scenario
// sweep once and exits; -serve starts the HTTP API with the cron scheduler
// instead.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/archive"
	"github.com/rdelgatto/packmule/internal/config"
	"github.com/rdelgatto/packmule/internal/database"
	"github.com/rdelgatto/packmule/internal/modules/loadout"
	loadouthandlers "github.com/rdelgatto/packmule/internal/modules/loadout/handlers"
	"github.com/rdelgatto/packmule/internal/modules/params"
	"github.com/rdelgatto/packmule/internal/modules/results"
	resultshandlers "github.com/rdelgatto/packmule/internal/modules/results/handlers"
	"github.com/rdelgatto/packmule/internal/modules/sweep"
	"github.com/rdelgatto/packmule/internal/scheduler"
	"github.com/rdelgatto/packmule/internal/server"
	"github.com/rdelgatto/packmule/internal/solver"
	"github.com/rdelgatto/packmule/pkg/logger"
)

const maintenanceSchedule = "@daily"

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API and scheduler instead of a one-shot sweep")
	dataDir := flag.String("data", "", "dataset directory (overrides DATA_DIR)")
	outDir := flag.String("out", "", "results directory (overrides RESULTS_DIR)")
	engineName := flag.String("engine", "", "solver engine, nextmv or glpk (overrides SOLVER_ENGINE)")
	flag.Parse()

	// Flags feed the same knobs the environment sets. Load derives dataset
	// and output paths from these, so they must land before it runs.
	if *dataDir != "" {
		os.Setenv("DATA_DIR", *dataDir)
	}
	if *outDir != "" {
		os.Setenv("RESULTS_DIR", *outDir)
	}
	if *engineName != "" {
		os.Setenv("SOLVER_ENGINE", *engineName)
	}

	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("engine", cfg.SolverEngine).
		Int("datasets", len(cfg.Datasets)).
		Ints("squad_sizes", cfg.SquadSizes).
		Ints("durations", cfg.Durations).
		Msg("Starting packmule")

	// Run-history database
	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileHistory,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := results.EnsureSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure result schema")
	}

	engine, err := solver.NewEngine(cfg.SolverEngine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize solver engine")
	}

	repo := results.NewRepository(db.Conn(), log)
	service := loadout.NewService(engine, time.Duration(cfg.SolverTimeLimit)*time.Second, log)

	// S3 archiving is optional; the sweep runs fine without it.
	var archiver sweep.Archiver
	if cfg.S3Bucket != "" {
		uploader, err := archive.NewS3Uploader(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 archiver")
		}
		archiver = uploader
	}

	datasets := make([]sweep.Dataset, len(cfg.Datasets))
	for i, d := range cfg.Datasets {
		datasets[i] = sweep.Dataset{Label: d.Label, Path: d.Path}
	}

	driver := sweep.NewDriver(service, repo, archiver, sweep.Config{
		Datasets:   datasets,
		SquadSizes: cfg.SquadSizes,
		Durations:  cfg.Durations,
		Workers:    cfg.SweepWorkers,
		ResultsDir: cfg.ResultsDir,
		Engine:     cfg.SolverEngine,
	}, log)

	if !*serve {
		code := runSweepOnce(driver, cfg, log)
		db.Close()
		os.Exit(code)
	}

	// Serve mode: live progress hub, scheduler, HTTP API.
	hub := server.NewSweepHub()
	driver.Notify = hub.Broadcast

	sweepJob := scheduler.NewSweepJob(driver, cfg.ParamsFile, log)

	sched := scheduler.New(log)
	if cfg.SweepSchedule != "" {
		if err := sched.AddJob(cfg.SweepSchedule, sweepJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Failed to schedule sweep job")
		}
	}
	if err := sched.AddJob(maintenanceSchedule, scheduler.NewMaintenanceJob(db, repo, cfg.KeepRuns, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}
	sched.Start()
	defer sched.Stop()

	datasetsByLabel := make(map[string]string, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		datasetsByLabel[d.Label] = d.Path
	}

	srv := server.New(server.Config{
		Log:             log,
		Cfg:             cfg,
		DB:              db,
		LoadoutHandlers: loadouthandlers.NewHandler(service, datasetsByLabel, cfg.ParamsFile, log),
		ResultsHandlers: resultshandlers.NewHandler(repo, log),
		SweepHub:        hub,
		SweepJob:        sweepJob,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// runSweepOnce resolves the tuning parameters, runs the full scenario grid
// and reports the exit code: non-zero when any scenario failed.
func runSweepOnce(driver *sweep.Driver, cfg *config.Config, log zerolog.Logger) int {
	p, err := params.LoadFile(cfg.ParamsFile, log)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.ParamsFile).Msg("Failed to resolve tuning parameters")
		return 1
	}

	outcome, err := driver.Run(p)
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		return 1
	}

	if outcome.Failures > 0 {
		log.Warn().
			Int("failures", outcome.Failures).
			Int("total", outcome.Total).
			Msg("Sweep finished with failed scenarios")
		return 1
	}

	log.Info().
		Int("scenarios", outcome.Total).
		Str("summary", outcome.SummaryPath).
		Str("run_id", outcome.RunID).
		Msg("Sweep complete")
	return 0
}
