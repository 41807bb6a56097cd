// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/confluence/internal/eventprocessor"
)

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// LivenessResponse is the body of GET /health/live.
type LivenessResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Root reports that the service is running.
//
// @Summary Service status
// @Tags Core
// @Produce json
// @Success 200 {object} StatusResponse
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, StatusResponse{
		Status:  "Confluence composite service running",
		Version: h.version,
	})
}

// HealthLive is the liveness probe; it never checks dependencies.
//
// @Summary Liveness probe
// @Tags Core
// @Produce json
// @Success 200 {object} LivenessResponse
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, LivenessResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe. It reports the messaging transport;
// a degraded transport is still ready because publishing is best effort.
//
// @Summary Readiness probe
// @Tags Core
// @Produce json
// @Success 200 {object} eventprocessor.OverallHealth
// @Failure 503 {object} eventprocessor.OverallHealth
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respondJSON(w, r, http.StatusOK, eventprocessor.OverallHealth{
			Healthy:   true,
			Status:    eventprocessor.HealthStatusHealthy,
			Timestamp: time.Now(),
		})
		return
	}

	overall := h.health.CheckAll(r.Context())
	status := http.StatusOK
	if !overall.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, r, status, overall)
}
