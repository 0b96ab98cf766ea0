package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/database"
	"github.com/rdelgatto/packmule/internal/modules/results"
)

// MaintenanceJob keeps the run-history database lean: prunes old runs,
// checkpoints the WAL, and reports file sizes.
type MaintenanceJob struct {
	db       *database.DB
	repo     *results.Repository
	keepRuns int
	log      zerolog.Logger
}

// NewMaintenanceJob creates the database maintenance job. keepRuns is the
// number of most recent runs to retain.
func NewMaintenanceJob(db *database.DB, repo *results.Repository, keepRuns int, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:       db,
		repo:     repo,
		keepRuns: keepRuns,
		log:      log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name.
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run prunes history and compacts the database file.
func (j *MaintenanceJob) Run() error {
	pruned, err := j.repo.PruneRuns(j.keepRuns)
	if err != nil {
		return fmt.Errorf("pruning runs: %w", err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}

	stats, err := j.db.GetStats()
	if err != nil {
		return fmt.Errorf("reading db stats: %w", err)
	}

	j.log.Info().
		Int("pruned_runs", pruned).
		Int64("db_bytes", stats.SizeBytes).
		Int64("wal_bytes", stats.WALSizeBytes).
		Msg("Database maintenance finished")
	return nil
}
