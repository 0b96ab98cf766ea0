package sweep

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rdelgatto/packmule/internal/modules/results"
)

// ScenarioFilename derives the allocation CSV name for one scenario:
// the lowercased label with spaces as underscores, then the squad size
// and duration, e.g. "hot_sop_k4_d2.csv".
func ScenarioFilename(label string, squadSize, duration int) string {
	slug := strings.ReplaceAll(strings.ToLower(label), " ", "_")
	return fmt.Sprintf("%s_k%d_d%d.csv", slug, squadSize, duration)
}

// WriteAllocation writes one scenario's allocation table under dir and
// returns the file path. Rows keep the record's item-major order with
// 1-based carrier numbers.
func WriteAllocation(dir string, rec results.ScenarioRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}

	path := filepath.Join(dir, ScenarioFilename(rec.Scenario, rec.SquadSize, rec.Duration))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Item", "Marine", "Quantity"}); err != nil {
		return "", fmt.Errorf("failed to write allocation header: %w", err)
	}
	for _, a := range rec.Assignments {
		row := []string{a.Item, strconv.Itoa(a.Marine), strconv.Itoa(a.Quantity)}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write allocation row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return path, nil
}

// SummaryFilename is the aggregate summary CSV written after a full sweep.
const SummaryFilename = "sop_summary_results.csv"

// WriteSummary writes the aggregate scenario summary under dir in the
// given record order. Objectives are rounded to 2 decimals, scores to 4,
// and the percent column is formatted as "93.4%".
func WriteSummary(dir string, records []results.ScenarioRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}

	path := filepath.Join(dir, SummaryFilename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Scenario", "SquadSize", "Duration", "Objective", "SelfSufficiencyScore", "ScorePercent"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Scenario,
			strconv.Itoa(rec.SquadSize),
			strconv.Itoa(rec.Duration),
			formatRounded(rec.Objective, 2),
			formatRounded(rec.Score, 4),
			fmt.Sprintf("%.1f%%", rec.Score*100),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return path, nil
}

// formatRounded renders a float rounded to the given number of decimal
// places without trailing zeros.
func formatRounded(x float64, places int) string {
	pow := math.Pow(10, float64(places))
	return strconv.FormatFloat(math.Round(x*pow)/pow, 'f', -1, 64)
}
