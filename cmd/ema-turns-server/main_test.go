package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-turns/internal/config"
)

func textOnlyConfig() config.Config {
	cfg := config.Default()
	cfg.Speech.TTSProvider = "none"
	cfg.Speech.STTProvider = "none"
	return cfg
}

func TestBuildComponentsTextOnly(t *testing.T) {
	c, err := buildComponents(textOnlyConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.coordinator.CanSpeak() || c.coordinator.CanTranscribe() {
		t.Fatalf("expected text only coordinator")
	}
}

func TestBuildComponentsRejectsUnknownVoice(t *testing.T) {
	cfg := textOnlyConfig()
	cfg.Speech.TTSProvider = "deepgram"
	cfg.Speech.Voice = "robot"
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	if _, err := buildComponents(cfg); err == nil {
		t.Fatalf("expected error for an unknown voice")
	}
}

func TestBuildComponentsWithDeepgram(t *testing.T) {
	cfg := config.Default()
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	c, err := buildComponents(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.coordinator.CanSpeak() || !c.coordinator.CanTranscribe() {
		t.Fatalf("expected coordinator with speech in and out")
	}
}

func TestStatusEndpoints(t *testing.T) {
	c, err := buildComponents(textOnlyConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := httptest.NewServer(newRouter(c))
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Status != "ok" || status.Service != serviceName || status.ActiveSessions != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", health.StatusCode)
	}

	missing, err := http.Get(server.URL + "/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}
