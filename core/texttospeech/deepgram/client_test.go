package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-turns/core/texttospeech"
)

type fakeSpeakBehaviour struct {
	frames [][]byte
	fail   bool
}

func fakeSpeakServer(t *testing.T, behaviour fakeSpeakBehaviour) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("model") == "" || r.URL.Query().Get("sample_rate") != "24000" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var parsed struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(msg, &parsed)

			switch parsed.Type {
			case "Flush":
				if behaviour.fail {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","description":"quota exceeded"}`))
					continue
				}
				for _, frame := range behaviour.frames {
					_ = conn.WriteMessage(websocket.BinaryMessage, frame)
				}
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
			case "Close":
				return
			}
		}
	}))
}

func newTestClient(t *testing.T, server *httptest.Server) *TextToSpeechClient {
	t.Helper()
	client, err := NewTextToSpeechClient(
		WithAPIKey("test-key"),
		WithSpeakURL("ws"+strings.TrimPrefix(server.URL, "http")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestSynthesizeCollectsAudioUntilFlushed(t *testing.T) {
	server := fakeSpeakServer(t, fakeSpeakBehaviour{frames: [][]byte{{0x00, 0x40, 0x00, 0xC0}, {0xFF, 0x7F}}})
	defer server.Close()

	waveform, err := newTestClient(t, server).Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waveform.SampleRate != 24000 {
		t.Fatalf("expected sample rate 24000, got %d", waveform.SampleRate)
	}
	if len(waveform.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(waveform.Samples))
	}
	if waveform.Samples[0] <= 0 || waveform.Samples[1] >= 0 {
		t.Fatalf("expected decoded samples to keep their sign, got %v", waveform.Samples)
	}
}

func TestSynthesizeWithoutAudioReportsEmptyAudio(t *testing.T) {
	server := fakeSpeakServer(t, fakeSpeakBehaviour{})
	defer server.Close()

	_, err := newTestClient(t, server).Synthesize(context.Background(), "Hello.")
	if !errors.Is(err, texttospeech.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestSynthesizeProviderErrorIsSynthesisError(t *testing.T) {
	server := fakeSpeakServer(t, fakeSpeakBehaviour{fail: true})
	defer server.Close()

	_, err := newTestClient(t, server).Synthesize(context.Background(), "Hello.")
	var synthesisErr *texttospeech.SynthesisError
	if !errors.As(err, &synthesisErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthesisErr.Provider != "deepgram" {
		t.Fatalf("expected provider deepgram, got %q", synthesisErr.Provider)
	}
}

func TestSynthesizeRejectsBlankText(t *testing.T) {
	client, _ := NewTextToSpeechClient(WithAPIKey("test-key"))
	if _, err := client.Synthesize(context.Background(), "   "); !errors.Is(err, texttospeech.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestNewClientRejectsUnknownVoice(t *testing.T) {
	if _, err := NewTextToSpeechClient(WithAPIKey("test-key"), WithVoice("robot")); err == nil {
		t.Fatalf("expected error for unknown voice")
	}
	if voice, ok := ParseVoice("aura-2-thalia-en"); !ok || voice != VoiceThalia {
		t.Fatalf("expected thalia voice to parse, got %q %v", voice, ok)
	}
}
