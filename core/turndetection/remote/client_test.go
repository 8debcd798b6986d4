package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScorePostsFormattedContext(t *testing.T) {
	var received scoreRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"probability": 0.73}`))
	}))
	defer server.Close()

	probability, err := NewClient(server.URL).Score(context.Background(), "<|im_start|>user\nhello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probability != 0.73 {
		t.Fatalf("expected 0.73, got %v", probability)
	}
	if received.Text != "<|im_start|>user\nhello" {
		t.Fatalf("expected formatted context to be sent, got %q", received.Text)
	}
}

func TestScoreRejectsMissingProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).Score(context.Background(), "x"); err == nil {
		t.Fatalf("expected an error for a response without probability")
	}
}

func TestScoreReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).Score(context.Background(), "x"); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}

func TestScoreHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(server.URL, WithTimeout(50*time.Millisecond)).Score(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected the request to be cut short, took %v", elapsed)
	}
}
