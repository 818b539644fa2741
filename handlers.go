package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kwv/fgsp/posegraph"
)

// newHTTPServer creates an HTTP handler with all endpoints
func newHTTPServer(deps httpDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health request", zap.String("remote", r.RemoteAddr))
		status := struct {
			Status        string    `json:"status"`
			Timestamp     time.Time `json:"timestamp"`
			MQTTConnected bool      `json:"mqttConnected"`
		}{
			Status:        "ok",
			Timestamp:     time.Now(),
			MQTTConnected: deps.Connected != nil && deps.Connected(),
		}
		writeJSON(w, logger, status)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if deps.Status == nil {
			http.Error(w, "No status available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, deps.Status())
	})

	mux.Handle("/metrics", promhttp.Handler())

	trajectory := func(format, contentType string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if deps.Render == nil {
				http.Error(w, "Trajectory rendering not available", http.StatusNotFound)
				return
			}
			// Render into a buffer so that failures still produce a clean error response.
			var buf bytes.Buffer
			if err := deps.Render(&buf, format); err != nil {
				if errors.Is(err, posegraph.ErrGraphNotReady) || errors.Is(err, posegraph.ErrMalformedInput) {
					http.Error(w, "No trajectory available", http.StatusServiceUnavailable)
					return
				}
				logger.Error("rendering trajectory failed", zap.String("format", format), zap.Error(err))
				http.Error(w, "Rendering failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Cache-Control", "no-cache")
			if _, err := buf.WriteTo(w); err != nil {
				logger.Warn("writing trajectory response failed", zap.Error(err))
			}
		}
	}
	mux.HandleFunc("/trajectory.svg", trajectory("svg", "image/svg+xml"))
	mux.HandleFunc("/trajectory.png", trajectory("png", "image/png"))

	return mux
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response failed", zap.Error(err))
	}
}
