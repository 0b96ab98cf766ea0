// Package params resolves the scalar tuning constants of the load
// optimization from a flat Parameter,Value table.
package params

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Default tuning constants, used whenever the parameter table is absent or
// does not mention a key.
const (
	DefaultWeightCapacity = 100.0 // w: base per-carrier weight capacity
	DefaultVolumeCapacity = 75.0  // q: base per-carrier volume capacity
	DefaultWeightPenalty  = 0.2   // beta: objective penalty per unit weight carried
	DefaultVolumePenalty  = 0.001 // gamma: objective penalty per unit volume carried
)

// Params holds the resolved tuning constants. Scenario code receives this
// struct explicitly; nothing reads tuning values from process-wide state.
type Params struct {
	WeightCapacity float64 // key "w"
	VolumeCapacity float64 // key "q"
	WeightPenalty  float64 // key "beta"
	VolumePenalty  float64 // key "gamma"
}

// Defaults returns the documented default parameter set.
func Defaults() Params {
	return Params{
		WeightCapacity: DefaultWeightCapacity,
		VolumeCapacity: DefaultVolumeCapacity,
		WeightPenalty:  DefaultWeightPenalty,
		VolumePenalty:  DefaultVolumePenalty,
	}
}

// Resolve builds Params from a key/value table. Keys not present keep their
// defaults; a present key with a non-numeric value is an input error.
func Resolve(table map[string]string) (Params, error) {
	p := Defaults()

	assign := map[string]*float64{
		"w":     &p.WeightCapacity,
		"q":     &p.VolumeCapacity,
		"beta":  &p.WeightPenalty,
		"gamma": &p.VolumePenalty,
	}

	for key, raw := range table {
		target, ok := assign[key]
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Params{}, fmt.Errorf("parameter %q has non-numeric value %q: %w", key, raw, err)
		}
		*target = val
	}

	return p, nil
}

// LoadFile reads a Parameter,Value CSV and resolves it. A missing file is
// not an error: the defaults apply (logged). A malformed file is.
func LoadFile(path string, log zerolog.Logger) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("Parameter table not found, using defaults")
			return Defaults(), nil
		}
		return Params{}, fmt.Errorf("failed to open parameter table: %w", err)
	}
	defer f.Close()

	table, err := parseTable(f)
	if err != nil {
		return Params{}, fmt.Errorf("failed to parse parameter table %s: %w", path, err)
	}

	p, err := Resolve(table)
	if err != nil {
		return Params{}, fmt.Errorf("failed to resolve parameter table %s: %w", path, err)
	}

	log.Debug().
		Float64("w", p.WeightCapacity).
		Float64("q", p.VolumeCapacity).
		Float64("beta", p.WeightPenalty).
		Float64("gamma", p.VolumePenalty).
		Msg("Resolved tuning parameters")

	return p, nil
}

// parseTable reads the two-column Parameter,Value layout.
func parseTable(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("parameter table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "Parameter") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "Value") {
		return nil, fmt.Errorf("unexpected header %v (want Parameter,Value)", header)
	}

	table := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		key := strings.TrimSpace(record[0])
		if key == "" {
			continue
		}
		table[key] = strings.TrimSpace(record[1])
	}

	return table, nil
}
