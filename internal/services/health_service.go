package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"coefcalc/internal/config"
	"coefcalc/internal/infrastructure"
	"coefcalc/pkg/contracts"
)

// ProgressHub is the part of the WebSocket hub the health checks read
type ProgressHub interface {
	ClientCount() int
	Stats() map[string]int64
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	hub       ProgressHub
	sessions  *SessionStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	Runtime          infrastructure.RuntimeStats `json:"runtime"`
	Sessions         SessionStats                `json:"sessions"`
	ReportFiles      int                         `json:"report_files"`
	ReportBytes      int64                       `json:"report_bytes"`
	WebSocketClients int                         `json:"websocket_clients"`
	WebSocket        map[string]int64            `json:"websocket,omitempty"`
	GoVersion        string                      `json:"go_version"`
	OS               string                      `json:"os"`
	Arch             string                      `json:"arch"`
}

// NewHealthService creates a new health service. hub and sessions may be nil
// for the CLI.
func NewHealthService(version string, paths *config.Paths, hub ProgressHub, sessions *SessionStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		paths:     paths,
		hub:       hub,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	checks := map[string]ServiceHealth{
		"websocket": hs.checkWebSocketHealth(),
		"sessions":  hs.checkSessionHealth(),
		"reports":   hs.checkReportsHealth(),
	}
	for name, check := range checks {
		status.Services[name] = check
		if check.Status != "ready" {
			status.Status = "not_ready"
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"name":          config.AppName,
		"version":       hs.version,
		"build_time":    contracts.BuildTime,
		"git_commit":    contracts.GitCommit,
		"api_version":   contracts.APIVersion,
		"report_format": contracts.ReportFormatVersion,
		"go_version":    runtime.Version(),
		"os":            runtime.GOOS,
		"arch":          runtime.GOARCH,
		"uptime":        time.Since(hs.startTime).Seconds(),
		"start_time":    hs.startTime.Format(time.RFC3339),
		"current_time":  time.Now().Format(time.RFC3339),
	}
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		Runtime:   infrastructure.CollectRuntimeStats(hs.startTime),
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if hs.sessions != nil {
		stats.Sessions = hs.sessions.Stats()
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
		stats.WebSocket = hs.hub.Stats()
	}
	if hs.paths != nil {
		matches, _ := filepath.Glob(filepath.Join(hs.paths.ReportsDir, config.ReportFilePrefix+"*"))
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				stats.ReportFiles++
				stats.ReportBytes += info.Size()
			}
		}
	}
	return stats
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     hs.SystemStats(ctx),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "not_ready", Message: "WebSocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d client(s) connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func (hs *HealthService) checkSessionHealth() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "session store not initialized"}
	}
	st := hs.sessions.Stats()
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d of %d sessions in use", st.Active, st.Capacity),
	}
}

// checkReportsHealth verifies the reports directory exists and is writable
func (hs *HealthService) checkReportsHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "not_ready", Message: "paths not configured"}
	}
	dir := hs.paths.ReportsDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Reports directory not found: %s", dir),
		}
	}

	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to reports directory: %v", err),
		}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return ServiceHealth{Status: "ready", Message: "Reports directory is writable"}
}
