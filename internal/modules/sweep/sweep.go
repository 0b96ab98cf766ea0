// Package sweep runs the scenario grid: every configured dataset is solved
// for every squad size and mission duration, in parallel across a worker
// pool, and the outcomes are persisted, written to CSV, and summarized.
package sweep

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rdelgatto/packmule/internal/modules/catalog"
	"github.com/rdelgatto/packmule/internal/modules/loadout"
	"github.com/rdelgatto/packmule/internal/modules/params"
	"github.com/rdelgatto/packmule/internal/modules/results"
)

// Runner solves a single scenario. Satisfied by *loadout.Service.
type Runner interface {
	Run(items []catalog.Item, scn loadout.Scenario, p params.Params) (*loadout.Report, error)
}

// Archiver ships a finished results directory to long-term storage.
// Satisfied by *archive.S3Uploader.
type Archiver interface {
	ArchiveDir(runID, dir string) error
}

// Dataset is one input catalog in the grid.
type Dataset struct {
	Label string
	Path  string
}

// Config describes the grid and where its outputs go.
type Config struct {
	Datasets   []Dataset
	SquadSizes []int
	Durations  []int
	Workers    int
	ResultsDir string
	Engine     string
}

// Progress is emitted after every completed scenario so callers can stream
// sweep state to observers.
type Progress struct {
	RunID     string  `json:"runId"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Scenario  string  `json:"scenario"`
	SquadSize int     `json:"squadSize"`
	Duration  int     `json:"duration"`
	Status    string  `json:"status"`
	Score     float64 `json:"score"`
}

// Outcome summarizes a finished sweep.
type Outcome struct {
	RunID       string                   `json:"runId"`
	StartedAt   time.Time                `json:"startedAt"`
	FinishedAt  time.Time                `json:"finishedAt"`
	Total       int                      `json:"total"`
	Failures    int                      `json:"failures"`
	Records     []results.ScenarioRecord `json:"records"`
	SummaryPath string                   `json:"summaryPath"`
}

// Driver owns one sweep configuration and runs it on demand. Safe for
// repeated use; each Run is independent.
type Driver struct {
	runner   Runner
	repo     *results.Repository
	archiver Archiver
	cfg      Config
	log      zerolog.Logger

	// Notify, when set, receives a Progress event after every scenario.
	Notify func(Progress)
}

// NewDriver wires a sweep driver. repo and archiver may be nil, which
// disables persistence and archiving respectively.
func NewDriver(runner Runner, repo *results.Repository, archiver Archiver, cfg Config, log zerolog.Logger) *Driver {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Driver{
		runner:   runner,
		repo:     repo,
		archiver: archiver,
		cfg:      cfg,
		log:      log.With().Str("component", "sweep").Logger(),
	}
}

type job struct {
	index int
	items []catalog.Item
	scn   loadout.Scenario
}

type jobResult struct {
	index  int
	report *loadout.Report
	err    error
}

// Run executes the full grid. A scenario failure is recorded and the sweep
// continues; Run returns an error only when the sweep itself cannot start
// or finish. Check Outcome.Failures for per-scenario errors.
func (d *Driver) Run(p params.Params) (*Outcome, error) {
	startedAt := time.Now().UTC()
	runID := uuid.NewString()

	jobs, loadFailures := d.buildGrid()
	total := len(jobs) + loadFailures
	if total == 0 {
		return nil, fmt.Errorf("sweep grid is empty: no datasets, squad sizes, or durations configured")
	}

	d.log.Info().
		Str("run_id", runID).
		Int("scenarios", total).
		Int("workers", d.cfg.Workers).
		Str("engine", d.cfg.Engine).
		Msg("Starting scenario sweep")

	if d.repo != nil {
		if err := d.repo.CreateRun(results.Run{ID: runID, Engine: d.cfg.Engine, StartedAt: startedAt}); err != nil {
			return nil, fmt.Errorf("recording sweep run: %w", err)
		}
	}

	// Results are handled as workers finish so observers see live progress;
	// the grid order is restored afterwards for the summary.
	failures := loadFailures
	completed := 0
	recordByCell := make([]*results.ScenarioRecord, len(jobs))
	for out := range d.solveAll(jobs, p) {
		completed++
		scn := jobs[out.index].scn

		if out.err != nil {
			failures++
			d.log.Error().Err(out.err).
				Str("scenario", scn.Label).
				Int("squad_size", scn.SquadSize).
				Int("duration_days", scn.Duration).
				Msg("Scenario failed")
			d.notify(Progress{
				RunID: runID, Completed: completed, Total: total,
				Scenario: scn.Label, SquadSize: scn.SquadSize, Duration: scn.Duration,
				Status: "error",
			})
			continue
		}

		rec := results.FromReport(runID, out.report)
		rec.CreatedAt = time.Now().UTC()
		recordByCell[out.index] = &rec

		if d.repo != nil {
			if err := d.repo.SaveScenario(rec); err != nil {
				d.log.Error().Err(err).Str("scenario_id", rec.ID).Msg("Failed to persist scenario result")
			}
		}
		if len(rec.Assignments) > 0 {
			if path, err := WriteAllocation(d.cfg.ResultsDir, rec); err != nil {
				failures++
				d.log.Error().Err(err).Str("scenario", rec.Scenario).Msg("Failed to write allocation CSV")
			} else {
				d.log.Info().Str("path", path).Msg("Saved detailed allocation")
			}
		}

		d.notify(Progress{
			RunID: runID, Completed: completed, Total: total,
			Scenario: rec.Scenario, SquadSize: rec.SquadSize, Duration: rec.Duration,
			Status: rec.Status, Score: rec.Score,
		})
	}

	records := make([]results.ScenarioRecord, 0, len(jobs))
	for _, rec := range recordByCell {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	summaryPath, err := WriteSummary(d.cfg.ResultsDir, records)
	if err != nil {
		return nil, fmt.Errorf("writing sweep summary: %w", err)
	}
	d.log.Info().Str("path", summaryPath).Msg("Saved sweep summary")

	agg := aggregateScores(records)
	if agg.solved > 0 {
		d.log.Info().
			Int("solved", agg.solved).
			Float64("mean_score", agg.mean).
			Float64("min_score", agg.min).
			Float64("max_score", agg.max).
			Msg("Sweep score distribution")
	}

	finishedAt := time.Now().UTC()
	if d.repo != nil {
		stats := results.RunStats{
			Scenarios: total,
			Failures:  failures,
			MeanScore: agg.mean,
			MinScore:  agg.min,
			MaxScore:  agg.max,
		}
		if err := d.repo.CompleteRun(runID, finishedAt, stats); err != nil {
			d.log.Error().Err(err).Str("run_id", runID).Msg("Failed to seal run record")
		}
	}

	if d.archiver != nil {
		if err := d.archiver.ArchiveDir(runID, d.cfg.ResultsDir); err != nil {
			d.log.Error().Err(err).Str("run_id", runID).Msg("Failed to archive results")
		}
	}

	return &Outcome{
		RunID:       runID,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Total:       total,
		Failures:    failures,
		Records:     records,
		SummaryPath: summaryPath,
	}, nil
}

// buildGrid loads every dataset and lays out the scenario grid in its
// canonical order: squad size, then duration, then dataset. Datasets that
// fail to load are logged and their grid cells counted as failures.
func (d *Driver) buildGrid() ([]job, int) {
	type loaded struct {
		label string
		items []catalog.Item
	}

	var ok []loaded
	failures := 0
	cells := len(d.cfg.SquadSizes) * len(d.cfg.Durations)
	for _, ds := range d.cfg.Datasets {
		items, err := catalog.LoadFile(ds.Path)
		if err != nil {
			failures += cells
			d.log.Error().Err(err).Str("dataset", ds.Label).Str("path", ds.Path).Msg("Failed to load dataset")
			continue
		}
		ok = append(ok, loaded{label: ds.Label, items: items})
	}

	var jobs []job
	for _, k := range d.cfg.SquadSizes {
		for _, dur := range d.cfg.Durations {
			for _, ds := range ok {
				jobs = append(jobs, job{
					index: len(jobs),
					items: ds.items,
					scn:   loadout.Scenario{Label: ds.label, SquadSize: k, Duration: dur},
				})
			}
		}
	}
	return jobs, failures
}

// solveAll distributes jobs across the worker pool. The returned channel
// yields one result per job in completion order and closes when all
// workers are done.
func (d *Driver) solveAll(jobs []job, p params.Params) <-chan jobResult {
	jobCh := make(chan job, len(jobs))
	resultCh := make(chan jobResult, len(jobs))

	workers := d.cfg.Workers
	if len(jobs) < workers {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				report, err := d.runner.Run(j.items, j.scn, p)
				resultCh <- jobResult{index: j.index, report: report, err: err}
			}
		}()
	}

	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	return resultCh
}

type scoreAggregate struct {
	solved int
	mean   float64
	min    float64
	max    float64
}

// aggregateScores summarizes the score distribution across solved
// scenarios. Infeasible outcomes carry no score and are excluded.
func aggregateScores(records []results.ScenarioRecord) scoreAggregate {
	var scores []float64
	for _, rec := range records {
		if rec.Status == "infeasible" {
			continue
		}
		scores = append(scores, rec.Score)
	}
	if len(scores) == 0 {
		return scoreAggregate{}
	}

	return scoreAggregate{
		solved: len(scores),
		mean:   stat.Mean(scores, nil),
		min:    floats.Min(scores),
		max:    floats.Max(scores),
	}
}

func (d *Driver) notify(p Progress) {
	if d.Notify != nil {
		d.Notify(p)
	}
}
