package controllers

import (
	"fmt"
	"net/http"
	"time"
	"wakaproof/internal/scheduler"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	scheduler scheduler.SchedulerInterface
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	RunInProgress bool    `json:"run_in_progress"`
	LastRun       string  `json:"last_run,omitempty"`
	LastRunError  string  `json:"last_run_error,omitempty"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		RunInProgress: hc.scheduler.Running(),
	}
	if last := hc.scheduler.LastRun(); !last.IsZero() {
		resp.LastRun = last.UTC().Format(time.RFC3339)
	}
	if err := hc.scheduler.LastError(); err != nil {
		resp.Status = "degraded"
		resp.LastRunError = err.Error()
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(sched scheduler.SchedulerInterface) *HealthController {
	return &HealthController{
		scheduler: sched,
		startTime: time.Now(),
	}
}
