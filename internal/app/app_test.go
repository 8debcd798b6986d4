package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/internal/config"
)

func TestBuildDetectorUsesRemoteScorer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]float64{"probability": 0.8})
	}))
	defer server.Close()

	cfg := config.Default().TurnDetection
	cfg.ScorerURL = server.URL

	detector, err := BuildDetector(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision := detector.Evaluate(context.Background(), nil, "that's all")
	if !decision.IsComplete || decision.Probability != 0.8 {
		t.Fatalf("expected complete decision at 0.8, got %+v", decision)
	}
}

func TestBuildDetectorLLMScorerNeedsKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := config.Default().TurnDetection
	cfg.Scorer = "llm"

	if _, err := BuildDetector(cfg); err == nil {
		t.Fatalf("expected error without a groq api key")
	}
}

func TestBuildReplyGeneratorOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "Hi there."},
			"done":    true,
		})
	}))
	defer server.Close()

	cfg := config.Default().LLM
	cfg.BaseURL = server.URL

	generator, err := BuildReplyGenerator(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply, err := generator.Reply(context.Background(), []llms.Turn{llms.UserTurn("hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hi there." {
		t.Fatalf("expected reply from the fake server, got %q", reply)
	}
}

func TestBuildCoordinatorTextOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.TTSProvider = "none"
	cfg.Speech.STTProvider = "none"

	coordinator, err := BuildCoordinator(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coordinator.CanSpeak() || coordinator.CanTranscribe() {
		t.Fatalf("expected a text only coordinator")
	}
}

func TestBuildCoordinatorRejectsUnknownVoice(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	cfg := config.Default()
	cfg.Speech.Voice = "robot"

	if _, err := BuildCoordinator(cfg); err == nil {
		t.Fatalf("expected error for an unknown voice")
	}
}
