package scheduler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rdelgatto/packmule/internal/modules/params"
	"github.com/rdelgatto/packmule/internal/modules/sweep"
)

// SweepJob runs the full scenario sweep on a schedule. The tuning-parameter
// table is re-read on every run so edits take effect without a restart.
type SweepJob struct {
	driver     *sweep.Driver
	paramsFile string
	log        zerolog.Logger

	mu sync.Mutex
}

// NewSweepJob creates the scheduled sweep job.
func NewSweepJob(driver *sweep.Driver, paramsFile string, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		driver:     driver,
		paramsFile: paramsFile,
		log:        log.With().Str("job", "sweep").Logger(),
	}
}

// Name returns the job name.
func (j *SweepJob) Name() string {
	return "sweep"
}

// Run resolves parameters and executes the sweep. Overlapping invocations
// are skipped rather than queued.
func (j *SweepJob) Run() error {
	if !j.mu.TryLock() {
		j.log.Warn().Msg("Sweep already running, skipping this invocation")
		return nil
	}
	defer j.mu.Unlock()

	p, err := params.LoadFile(j.paramsFile, j.log)
	if err != nil {
		return fmt.Errorf("resolving parameters: %w", err)
	}

	outcome, err := j.driver.Run(p)
	if err != nil {
		return err
	}
	if outcome.Failures > 0 {
		return fmt.Errorf("sweep finished with %d of %d scenarios failed", outcome.Failures, outcome.Total)
	}

	j.log.Info().
		Str("run_id", outcome.RunID).
		Int("scenarios", outcome.Total).
		Msg("Scheduled sweep finished")
	return nil
}
