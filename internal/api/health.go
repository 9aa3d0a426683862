package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/snarg/meetbrief/internal/media"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	InFlight      int64             `json:"in_flight"`
	FreeTierLimit float64           `json:"free_tier_limit_seconds"`
	Checks        map[string]string `json:"checks"`
}

// MQTTStatus reports broker connectivity. Implemented by *mqttclient.Client.
type MQTTStatus interface {
	IsConnected() bool
}

// PipelineStatus exposes live pipeline state to the health check.
type PipelineStatus interface {
	InFlight() int64
	FreeTierLimit() time.Duration
}

type HealthHandler struct {
	pipeline  PipelineStatus
	mqtt      MQTTStatus
	tools     map[string]string // tool name → configured binary
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health handler. mqtt may be nil when event
// publishing is disabled.
func NewHealthHandler(pipeline PipelineStatus, mqtt MQTTStatus, tools map[string]string, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		pipeline:  pipeline,
		mqtt:      mqtt,
		tools:     tools,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Media tools: without them no submission can be probed.
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if media.ToolAvailable(h.tools[name]) {
			checks[name] = "ok"
		} else {
			checks[name] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.pipeline != nil {
		resp.InFlight = h.pipeline.InFlight()
		resp.FreeTierLimit = h.pipeline.FreeTierLimit().Seconds()
	}

	WriteJSON(w, httpStatus, resp)
}
