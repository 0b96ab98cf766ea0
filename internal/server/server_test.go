package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdelgatto/packmule/internal/config"
	"github.com/rdelgatto/packmule/internal/database"
	"github.com/rdelgatto/packmule/internal/modules/loadout"
	loadouthandlers "github.com/rdelgatto/packmule/internal/modules/loadout/handlers"
	"github.com/rdelgatto/packmule/internal/modules/results"
	resultshandlers "github.com/rdelgatto/packmule/internal/modules/results/handlers"
	"github.com/rdelgatto/packmule/internal/solver"
)

const serverDatasetCSV = `Item,Value_b,Weight_c,Volume_v,Transferable_t,LowerBound_l,Requirement_r,Shareable_a
Water,10,2,1,1,0,20,1
Rations,5,1,1,1,0,12,1
`

// optimalEngine answers every problem with all variables at 1.
type optimalEngine struct{}

func (optimalEngine) Name() string { return "stub" }

func (optimalEngine) Solve(p *solver.Problem, opts solver.Options) (*solver.Result, error) {
	values := make([]float64, len(p.Vars))
	for i := range values {
		values[i] = 1
	}
	return &solver.Result{Status: solver.StatusOptimal, Objective: 42, Values: values}, nil
}

// recordingJob signals on ran when triggered.
type recordingJob struct {
	ran chan struct{}
}

func (j *recordingJob) Name() string { return "sweep" }

func (j *recordingJob) Run() error {
	j.ran <- struct{}{}
	return nil
}

type serverFixture struct {
	server *Server
	repo   *results.Repository
	job    *recordingJob
}

func newTestServer(t *testing.T) serverFixture {
	t.Helper()

	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "hot_sop_dataset.csv")
	require.NoError(t, os.WriteFile(datasetPath, []byte(serverDatasetCSV), 0o644))

	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "history.db"),
		Profile: database.ProfileHistory,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, results.EnsureSchema(db.Conn()))

	log := zerolog.Nop()
	repo := results.NewRepository(db.Conn(), log)
	service := loadout.NewService(optimalEngine{}, time.Minute, log)

	job := &recordingJob{ran: make(chan struct{}, 1)}

	srv := New(Config{
		Log: log,
		Cfg: &config.Config{
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			SolverEngine:       "nextmv",
		},
		DB: db,
		LoadoutHandlers: loadouthandlers.NewHandler(
			service,
			map[string]string{"Hot SOP": datasetPath},
			filepath.Join(dir, "no_params.csv"),
			log,
		),
		ResultsHandlers: resultshandlers.NewHandler(repo, log),
		SweepHub:        NewSweepHub(),
		SweepJob:        job,
	})

	return serverFixture{server: srv, repo: repo, job: job}
}

func (f serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func seedRun(t *testing.T, repo *results.Repository) (results.Run, results.ScenarioRecord) {
	t.Helper()

	run := results.Run{
		ID:        "run-1",
		Engine:    "nextmv",
		StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateRun(run))

	rec := results.ScenarioRecord{
		ID:        "scn-1",
		RunID:     run.ID,
		Scenario:  "Hot SOP",
		SquadSize: 4,
		Duration:  2,
		Status:    "optimal",
		Objective: 171.53,
		Score:     0.9214,
		Assignments: []loadout.Assignment{
			{Item: "Water", Marine: 1, Quantity: 10},
		},
		CreatedAt: run.StartedAt,
	}
	require.NoError(t, repo.SaveScenario(rec))
	stats := results.RunStats{Scenarios: 1, MeanScore: rec.Score, MinScore: rec.Score, MaxScore: rec.Score}
	require.NoError(t, repo.CompleteRun(run.ID, run.StartedAt.Add(time.Minute), stats))

	return run, rec
}

func TestServer_Health(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestServer_ListRuns(t *testing.T) {
	f := newTestServer(t)
	run, _ := seedRun(t, f.repo)

	rec := f.do(t, http.MethodGet, "/api/runs", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var runs []results.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Scenarios)
	assert.Equal(t, 0.9214, runs[0].MeanScore)
}

func TestServer_ListRuns_Empty(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/runs", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestServer_ListRuns_BadLimit(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/runs?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetRun(t *testing.T) {
	f := newTestServer(t)
	run, scn := seedRun(t, f.repo)

	rec := f.do(t, http.MethodGet, "/api/runs/"+run.ID, "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var detail resultshandlers.RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, run.ID, detail.Run.ID)
	require.Len(t, detail.Scenarios, 1)
	assert.Equal(t, scn.ID, detail.Scenarios[0].ID)
	assert.Equal(t, scn.Assignments, detail.Scenarios[0].Assignments)
}

func TestServer_GetRun_NotFound(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/runs/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetScenario(t *testing.T) {
	f := newTestServer(t)
	_, scn := seedRun(t, f.repo)

	rec := f.do(t, http.MethodGet, "/api/scenarios/"+scn.ID, "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var got results.ScenarioRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, scn.Scenario, got.Scenario)
	assert.Equal(t, scn.Objective, got.Objective)
}

func TestServer_GetScenario_NotFound(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/scenarios/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Solve(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/solve", `{"dataset":"Hot SOP","squadSize":2,"duration":1}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response loadouthandlers.SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "optimal", response.Status)
	assert.True(t, response.Optimal)
	assert.Equal(t, 42.0, response.Objective)
	assert.NotEmpty(t, response.Assignments)
	assert.Equal(t, "Hot SOP", response.Scenario.Label)
}

func TestServer_Solve_BadRequests(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{name: "malformed body", body: `{"dataset":`, expectedCode: http.StatusBadRequest},
		{name: "zero squad size", body: `{"dataset":"Hot SOP","squadSize":0,"duration":2}`, expectedCode: http.StatusBadRequest},
		{name: "zero duration", body: `{"dataset":"Hot SOP","squadSize":4,"duration":0}`, expectedCode: http.StatusBadRequest},
		{name: "unknown dataset", body: `{"dataset":"Arctic SOP","squadSize":4,"duration":2}`, expectedCode: http.StatusNotFound},
	}

	f := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/solve", tt.body)
			assert.Equal(t, tt.expectedCode, rec.Code)
		})
	}
}

func TestServer_TriggerSweep(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/sweeps", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "triggered", response["status"])

	select {
	case <-f.job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep job was not triggered")
	}
}

func TestServer_TriggerSweep_NotConfigured(t *testing.T) {
	f := newTestServer(t)
	f.server.sweepJob = nil

	rec := f.do(t, http.MethodPost, "/api/sweeps", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
