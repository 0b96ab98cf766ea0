package sweep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdelgatto/packmule/internal/modules/loadout"
	"github.com/rdelgatto/packmule/internal/modules/results"
)

func TestScenarioFilename(t *testing.T) {
	tests := []struct {
		label    string
		squad    int
		duration int
		want     string
	}{
		{label: "Hot SOP", squad: 4, duration: 2, want: "hot_sop_k4_d2.csv"},
		{label: "Cold SOP", squad: 12, duration: 4, want: "cold_sop_k12_d4.csv"},
		{label: "already_lower", squad: 8, duration: 3, want: "already_lower_k8_d3.csv"},
		{label: "Mountain Warfare Pack", squad: 4, duration: 2, want: "mountain_warfare_pack_k4_d2.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ScenarioFilename(tt.label, tt.squad, tt.duration))
		})
	}
}

func TestWriteAllocation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	rec := results.ScenarioRecord{
		Scenario:  "Hot SOP",
		SquadSize: 4,
		Duration:  2,
		Assignments: []loadout.Assignment{
			{Item: "Water", Marine: 1, Quantity: 10},
			{Item: "Water", Marine: 2, Quantity: 10},
			{Item: "First Aid Kit", Marine: 3, Quantity: 1},
		},
	}

	path, err := WriteAllocation(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hot_sop_k4_d2.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Item,Marine,Quantity\n" +
		"Water,1,10\n" +
		"Water,2,10\n" +
		"First Aid Kit,3,1\n"
	assert.Equal(t, want, string(content))
}

func TestWriteAllocation_EmptyTable(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteAllocation(dir, results.ScenarioRecord{Scenario: "Hot SOP", SquadSize: 2, Duration: 1})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Item,Marine,Quantity\n", string(content))
}

func TestWriteSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	records := []results.ScenarioRecord{
		{Scenario: "Hot SOP", SquadSize: 4, Duration: 2, Objective: 171.5312, Score: 0.92136},
		{Scenario: "Cold SOP", SquadSize: 4, Duration: 2, Objective: 98.0061, Score: 1},
		{Scenario: "Hot SOP", SquadSize: 8, Duration: 3, Objective: 0, Score: 0, Status: "infeasible"},
	}

	path, err := WriteSummary(dir, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFilename), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Scenario,SquadSize,Duration,Objective,SelfSufficiencyScore,ScorePercent\n" +
		"Hot SOP,4,2,171.53,0.9214,92.1%\n" +
		"Cold SOP,4,2,98.01,1,100.0%\n" +
		"Hot SOP,8,3,0,0,0.0%\n"
	assert.Equal(t, want, string(content))
}

func TestFormatRounded(t *testing.T) {
	tests := []struct {
		x      float64
		places int
		want   string
	}{
		{x: 171.5312, places: 2, want: "171.53"},
		{x: 0.92136, places: 4, want: "0.9214"},
		{x: 1, places: 4, want: "1"},
		{x: 0, places: 2, want: "0"},
		{x: 2.5, places: 0, want: "3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRounded(tt.x, tt.places))
	}
}
