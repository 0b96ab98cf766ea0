// Package results persists sweep runs and their scenario outcomes to
// SQLite. Allocation tables travel as msgpack blobs so a run can be
// re-rendered or archived without re-solving.
package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rdelgatto/packmule/internal/database"
	"github.com/rdelgatto/packmule/internal/modules/loadout"
)

// Run summarizes one sweep execution over the scenario grid.
type Run struct {
	ID         string    `json:"id"`
	Engine     string    `json:"engine"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Scenarios  int       `json:"scenarios"`
	Failures   int       `json:"failures"`
	MeanScore  float64   `json:"meanScore"`
	MinScore   float64   `json:"minScore"`
	MaxScore   float64   `json:"maxScore"`
}

// Finished reports whether the run has been completed and sealed.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// RunStats are the final counters and score aggregates sealed onto a run.
// Score aggregates cover solved scenarios only; all zero when none solved.
type RunStats struct {
	Scenarios int
	Failures  int
	MeanScore float64
	MinScore  float64
	MaxScore  float64
}

// ScenarioRecord is one persisted scenario outcome within a run.
type ScenarioRecord struct {
	ID            string               `json:"id"`
	RunID         string               `json:"runId"`
	Scenario      string               `json:"scenario"`
	SquadSize     int                  `json:"squadSize"`
	Duration      int                  `json:"duration"`
	Status        string               `json:"status"`
	Objective     float64              `json:"objective"`
	Score         float64              `json:"score"`
	ActualUtility float64              `json:"actualUtility"`
	IdealUtility  float64              `json:"idealUtility"`
	SolveTimeMS   int64                `json:"solveTimeMs"`
	Assignments   []loadout.Assignment `json:"assignments,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// FromReport maps a solved report into a persistable record.
func FromReport(runID string, rep *loadout.Report) ScenarioRecord {
	return ScenarioRecord{
		ID:            rep.ID,
		RunID:         runID,
		Scenario:      rep.Scenario.Label,
		SquadSize:     rep.Scenario.SquadSize,
		Duration:      rep.Scenario.Duration,
		Status:        rep.StatusString(),
		Objective:     rep.Objective,
		Score:         rep.Score,
		ActualUtility: rep.ActualUtility,
		IdealUtility:  rep.IdealUtility,
		SolveTimeMS:   rep.SolveTime.Milliseconds(),
		Assignments:   rep.Assignments,
	}
}

// EnsureSchema creates the runs and scenario_results tables when missing.
// Called once at startup before any repository use.
func EnsureSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		engine TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		scenario_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		mean_score REAL NOT NULL DEFAULT 0,
		min_score REAL NOT NULL DEFAULT 0,
		max_score REAL NOT NULL DEFAULT 0
	) STRICT;

	CREATE TABLE IF NOT EXISTS scenario_results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		scenario TEXT NOT NULL,
		squad_size INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		status TEXT NOT NULL,
		objective REAL NOT NULL,
		score REAL NOT NULL,
		actual_utility REAL NOT NULL,
		ideal_utility REAL NOT NULL,
		solve_time_ms INTEGER NOT NULL,
		allocation BLOB,
		created_at INTEGER NOT NULL
	) STRICT;

	CREATE INDEX IF NOT EXISTS idx_scenario_results_run ON scenario_results(run_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	return nil
}

// Repository handles run and scenario result database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a results repository on an open database handle.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// CreateRun records the start of a sweep.
func (r *Repository) CreateRun(run Run) error {
	_, err := r.db.Exec(
		"INSERT INTO runs (id, engine, started_at, scenario_count, failure_count) VALUES (?, ?, ?, 0, 0)",
		run.ID, run.Engine, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// CompleteRun seals a run with its final counters and score aggregates.
func (r *Repository) CompleteRun(id string, finishedAt time.Time, stats RunStats) error {
	res, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, scenario_count = ?, failure_count = ?,
		 mean_score = ?, min_score = ?, max_score = ? WHERE id = ?`,
		finishedAt.Unix(), stats.Scenarios, stats.Failures,
		stats.MeanScore, stats.MinScore, stats.MaxScore, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// SaveScenario persists one scenario outcome. The allocation table is
// msgpack-encoded; records without assignments store a NULL blob.
func (r *Repository) SaveScenario(rec ScenarioRecord) error {
	var blob []byte
	if len(rec.Assignments) > 0 {
		var err error
		blob, err = msgpack.Marshal(rec.Assignments)
		if err != nil {
			return fmt.Errorf("failed to encode allocation: %w", err)
		}
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO scenario_results
		 (id, run_id, scenario, squad_size, duration, status, objective, score,
		  actual_utility, ideal_utility, solve_time_ms, allocation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Scenario, rec.SquadSize, rec.Duration, rec.Status,
		rec.Objective, rec.Score, rec.ActualUtility, rec.IdealUtility,
		rec.SolveTimeMS, blob, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scenario result: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, engine, started_at, finished_at, scenario_count, failure_count,
		        mean_score, min_score, max_score
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by id, or nil when it does not exist.
func (r *Repository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, engine, started_at, finished_at, scenario_count, failure_count,
		        mean_score, min_score, max_score
		 FROM runs WHERE id = ?`, id)

	var run Run
	var startedAt int64
	var finishedAt sql.NullInt64
	err := row.Scan(&run.ID, &run.Engine, &startedAt, &finishedAt, &run.Scenarios, &run.Failures,
		&run.MeanScore, &run.MinScore, &run.MaxScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		run.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
	}
	return &run, nil
}

// ListScenarios returns every scenario outcome of a run with its decoded
// allocation, ordered by scenario label, squad size, and duration.
func (r *Repository) ListScenarios(runID string) ([]ScenarioRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, scenario, squad_size, duration, status, objective, score,
		        actual_utility, ideal_utility, solve_time_ms, allocation, created_at
		 FROM scenario_results
		 WHERE run_id = ?
		 ORDER BY scenario, squad_size, duration`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario results: %w", err)
	}
	defer rows.Close()

	var records []ScenarioRecord
	for rows.Next() {
		rec, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenario results: %w", err)
	}
	return records, nil
}

// GetScenario returns one scenario outcome by id, or nil when missing.
func (r *Repository) GetScenario(id string) (*ScenarioRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, scenario, squad_size, duration, status, objective, score,
		        actual_utility, ideal_utility, solve_time_ms, allocation, created_at
		 FROM scenario_results WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario result: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query scenario result: %w", err)
		}
		return nil, nil
	}

	rec, err := scanScenario(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PruneRuns deletes the oldest runs beyond keep, cascading to their
// scenario results in one transaction. Returns the number of runs removed.
func (r *Repository) PruneRuns(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	var pruned int
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			"SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT -1 OFFSET ?", keep)
		if err != nil {
			return fmt.Errorf("failed to query prunable runs: %w", err)
		}
		defer rows.Close()

		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan run id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating prunable runs: %w", err)
		}

		for _, id := range ids {
			if _, err := tx.Exec("DELETE FROM scenario_results WHERE run_id = ?", id); err != nil {
				return fmt.Errorf("failed to delete scenario results for run %s: %w", id, err)
			}
			if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to delete run %s: %w", id, err)
			}
		}
		pruned = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if pruned > 0 {
		r.log.Info().Int("pruned", pruned).Int("kept", keep).Msg("Pruned old runs")
	}
	return pruned, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var startedAt int64
	var finishedAt sql.NullInt64

	if err := rows.Scan(&run.ID, &run.Engine, &startedAt, &finishedAt, &run.Scenarios, &run.Failures,
		&run.MeanScore, &run.MinScore, &run.MaxScore); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		run.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
	}
	return run, nil
}

func scanScenario(rows *sql.Rows) (ScenarioRecord, error) {
	var rec ScenarioRecord
	var blob []byte
	var createdAt int64

	if err := rows.Scan(
		&rec.ID, &rec.RunID, &rec.Scenario, &rec.SquadSize, &rec.Duration,
		&rec.Status, &rec.Objective, &rec.Score, &rec.ActualUtility,
		&rec.IdealUtility, &rec.SolveTimeMS, &blob, &createdAt,
	); err != nil {
		return ScenarioRecord{}, fmt.Errorf("failed to scan scenario result: %w", err)
	}

	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &rec.Assignments); err != nil {
			return ScenarioRecord{}, fmt.Errorf("failed to decode allocation for %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}
