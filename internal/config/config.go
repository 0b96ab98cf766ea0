// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Dataset is one scenario input: a human-readable label and the CSV path
// holding the item catalog for that climate/mission profile.
type Dataset struct {
	Label string
	Path  string
}

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for input CSVs (always absolute)
	ResultsDir string // Directory allocation and summary CSVs are written to
	ParamsFile string // Tuning-parameter table (Parameter,Value CSV)
	DBPath     string // SQLite run-history database

	Datasets   []Dataset
	SquadSizes []int
	Durations  []int

	SolverEngine       string // "nextmv" or "glpk"
	SolverTimeLimit    int    // per-scenario budget in seconds
	SweepWorkers       int    // parallel scenario solves
	SweepSchedule      string // cron expression, empty disables scheduled sweeps
	KeepRuns           int    // finished runs retained by maintenance pruning
	Port               int
	CORSAllowedOrigins []string

	// S3 archive of result files, disabled when bucket is empty
	S3Bucket string
	S3Prefix string
	S3Region string

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", ".")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	resultsDir := getEnv("RESULTS_DIR", filepath.Join(absDataDir, "results"))
	absResultsDir, err := filepath.Abs(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results directory path: %w", err)
	}

	datasets, err := parseDatasets(getEnv("DATASETS", ""), absDataDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:    absDataDir,
		ResultsDir: absResultsDir,
		ParamsFile: getEnv("PARAMS_FILE", filepath.Join(absDataDir, "optimization_parameters.csv")),
		DBPath:     getEnv("DB_PATH", filepath.Join(absDataDir, "packmule.db")),

		Datasets:   datasets,
		SquadSizes: getEnvAsInts("SQUAD_SIZES", []int{4, 8, 12}),
		Durations:  getEnvAsInts("DURATIONS", []int{2, 3, 4}),

		SolverEngine:       getEnv("SOLVER_ENGINE", "nextmv"),
		SolverTimeLimit:    getEnvAsInt("SOLVER_TIME_LIMIT_SECONDS", 60),
		SweepWorkers:       getEnvAsInt("SWEEP_WORKERS", 4),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", ""),
		KeepRuns:           getEnvAsInt("KEEP_RUNS", 30),
		Port:               getEnvAsInt("PORT", 8080),
		CORSAllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),

		S3Bucket: getEnv("S3_BUCKET", ""),
		S3Prefix: getEnv("S3_PREFIX", "packmule"),
		S3Region: getEnv("S3_REGION", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if len(c.Datasets) == 0 {
		return fmt.Errorf("at least one dataset is required")
	}
	for _, k := range c.SquadSizes {
		if k < 1 {
			return fmt.Errorf("squad sizes must be positive, got %d", k)
		}
	}
	for _, d := range c.Durations {
		if d < 1 {
			return fmt.Errorf("durations must be positive, got %d", d)
		}
	}
	switch c.SolverEngine {
	case "nextmv", "glpk":
	default:
		return fmt.Errorf("unknown solver engine %q (want nextmv or glpk)", c.SolverEngine)
	}
	if c.SolverTimeLimit < 1 {
		return fmt.Errorf("solver time limit must be positive, got %d", c.SolverTimeLimit)
	}
	if c.SweepWorkers < 1 {
		return fmt.Errorf("sweep workers must be positive, got %d", c.SweepWorkers)
	}
	if c.KeepRuns < 1 {
		return fmt.Errorf("keep runs must be positive, got %d", c.KeepRuns)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// parseDatasets parses the DATASETS env value: comma-separated Label=path
// pairs. Relative paths resolve against the data directory. An empty value
// yields the standard hot/cold pair.
func parseDatasets(raw, dataDir string) ([]Dataset, error) {
	if raw == "" {
		return []Dataset{
			{Label: "Hot SOP", Path: filepath.Join(dataDir, "hot_sop_dataset.csv")},
			{Label: "Cold SOP", Path: filepath.Join(dataDir, "cold_sop_dataset.csv")},
		}, nil
	}

	var out []Dataset
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		label, path, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid DATASETS entry %q (want Label=path)", pair)
		}
		label = strings.TrimSpace(label)
		path = strings.TrimSpace(path)
		if label == "" || path == "" {
			return nil, fmt.Errorf("invalid DATASETS entry %q (want Label=path)", pair)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		out = append(out, Dataset{Label: label, Path: path})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("DATASETS is set but contains no entries")
	}
	return out, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsInts(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
