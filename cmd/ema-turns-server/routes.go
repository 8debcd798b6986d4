package main

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "ema-turns"

type statusResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	ActiveSessions int64  `json:"active_sessions"`
	Speech         bool   `json:"speech"`
	AudioInput     bool   `json:"audio_input"`
}

func newRouter(c *components) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, statusResponse{
			Status:         "ok",
			Service:        serviceName,
			ActiveSessions: c.assistant.ActiveSessions(),
			Speech:         c.coordinator.CanSpeak(),
			AudioInput:     c.coordinator.CanTranscribe(),
		})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /ws/assistant", c.assistant)

	return otelhttp.NewHandler(mux, serviceName,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
