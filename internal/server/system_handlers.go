package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rdelgatto/packmule/internal/database"
)

// SystemHandlers serves health and system monitoring endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	db        *database.DB
	engine    string
	startTime time.Time
}

// NewSystemHandlers creates system handlers bound to the history database.
func NewSystemHandlers(log zerolog.Logger, db *database.DB, engine string) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		db:        db,
		engine:    engine,
		startTime: time.Now(),
	}
}

// HandleHealth handles GET /health. Reports degraded with 503 when the
// database fails its integrity check so orchestrators can rotate the host.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "ok"
	code := http.StatusOK

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Msg("Database health check failed")
			status = "degraded"
			dbStatus = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":   status,
		"database": dbStatus,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// SystemInfo is the GET /api/system response.
type SystemInfo struct {
	Engine        string  `json:"engine"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`

	CPUPercent     float64 `json:"cpuPercent"`
	MemUsedPercent float64 `json:"memUsedPercent"`
	MemUsedMB      float64 `json:"memUsedMb"`
	MemTotalMB     float64 `json:"memTotalMb"`

	DBSizeBytes    int64 `json:"dbSizeBytes"`
	DBWALSizeBytes int64 `json:"dbWalSizeBytes"`
}

// HandleSystemInfo handles GET /api/system.
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := SystemInfo{
		Engine:        h.engine,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("CPU usage unavailable")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		info.MemUsedPercent = memStat.UsedPercent
		info.MemUsedMB = float64(memStat.Used) / 1024 / 1024
		info.MemTotalMB = float64(memStat.Total) / 1024 / 1024
	} else {
		h.log.Debug().Err(err).Msg("Memory usage unavailable")
	}

	if h.db != nil {
		if stats, err := h.db.GetStats(); err == nil {
			info.DBSizeBytes = stats.SizeBytes
			info.DBWALSizeBytes = stats.WALSizeBytes
		} else {
			h.log.Debug().Err(err).Msg("Database stats unavailable")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system info")
	}
}
