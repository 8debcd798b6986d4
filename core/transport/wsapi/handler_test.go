package wsapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/core/speechtotext"
	"github.com/koscakluka/ema-turns/core/texttospeech"
	"github.com/koscakluka/ema-turns/core/turndetection"
)

type serverMessage struct {
	Type         string  `json:"type"`
	Transcript   string  `json:"transcript"`
	EOUScore     float64 `json:"eou_score"`
	IsComplete   bool    `json:"is_complete"`
	IsProcessing bool    `json:"is_processing"`
	Response     string  `json:"response"`
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	Audio        string  `json:"audio"`
	SampleRate   int     `json:"sample_rate"`
	Skipped      bool    `json:"skipped"`
	Message      string  `json:"message"`
}

func newTestServer(t *testing.T, opts ...orchestration.CoordinatorOption) (*httptest.Server, *Handler) {
	t.Helper()

	scorer := turndetection.ScorerFunc(func(_ context.Context, formatted string) (float64, error) {
		if strings.HasSuffix(formatted, "done") {
			return 0.9, nil
		}
		return 0.1, nil
	})
	coordinator, err := orchestration.NewCoordinator(append([]orchestration.CoordinatorOption{
		orchestration.WithTurnDetector(turndetection.NewDetector(scorer)),
		orchestration.WithLLM(llms.ReplyGeneratorFunc(func(context.Context, []llms.Turn) (string, error) {
			return "Hello there. How can I help?", nil
		})),
		orchestration.WithTextToSpeech(texttospeech.SynthesizerFunc(func(_ context.Context, text string) (texttospeech.Waveform, error) {
			return texttospeech.Waveform{SampleRate: 24000, Samples: make([]float32, len(text))}, nil
		})),
	}, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := NewHandler(coordinator, WithPingInterval(time.Second))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, handler
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode %q: %v", data, err)
	}
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) []serverMessage {
	t.Helper()

	var messages []serverMessage
	for range 20 {
		msg := readMessage(t, conn)
		messages = append(messages, msg)
		if msg.Type == msgType {
			return messages
		}
	}
	t.Fatalf("did not receive %q, got %+v", msgType, messages)
	return nil
}

func TestTranscriptTurnProducesOrderedProtocolMessages(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	if err := conn.WriteJSON(map[string]string{"transcript": "so"}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	buffered := readMessage(t, conn)
	if buffered.Type != typeTranscript || buffered.IsComplete || buffered.EOUScore != 0.1 {
		t.Fatalf("expected incomplete transcript message, got %+v", buffered)
	}

	if err := conn.WriteJSON(map[string]string{"transcript": "I am done"}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	messages := readUntil(t, conn, typeAssistantResponse)

	var types []string
	for _, msg := range messages {
		types = append(types, msg.Type)
	}
	expected := []string{typeTranscript, typeProcessing, typeAssistantText, typeAudioChunk, typeAudioChunk, typeAssistantResponse}
	if strings.Join(types, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v, got %v", expected, types)
	}

	if messages[0].Transcript != "so I am done" || !messages[0].IsComplete {
		t.Fatalf("unexpected complete transcript %+v", messages[0])
	}
	if !messages[1].IsProcessing {
		t.Fatalf("expected processing to start")
	}
	if messages[3].Index != 0 || messages[3].Text != "Hello there." || messages[4].Index != 1 {
		t.Fatalf("expected ordered chunks, got %+v and %+v", messages[3], messages[4])
	}
	if messages[3].SampleRate != 24000 || messages[3].Audio == "" || messages[3].Skipped {
		t.Fatalf("expected chunk audio, got %+v", messages[3])
	}

	response := messages[5]
	if response.Response != "Hello there. How can I help?" {
		t.Fatalf("unexpected response %q", response.Response)
	}
	if !strings.HasPrefix(response.Audio, "UklGR") {
		t.Fatalf("expected base64 WAV audio, got %q", response.Audio)
	}

	if done := readMessage(t, conn); done.Type != typeProcessing || done.IsProcessing {
		t.Fatalf("expected processing to end, got %+v", done)
	}
}

func TestMalformedMessageReportsError(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	for _, payload := range []string{"not json", `{"text":"hello"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		if msg := readMessage(t, conn); msg.Type != typeError {
			t.Fatalf("expected error for %q, got %+v", payload, msg)
		}
	}
}

func TestAudioWithoutTranscriberReportsError(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0, 0, 1, 0}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != typeError || !strings.Contains(msg.Message, "audio") {
		t.Fatalf("expected audio error, got %+v", msg)
	}
}

func TestAudioIsTranscribedIntoTurn(t *testing.T) {
	server, _ := newTestServer(t, orchestration.WithSpeechToText(speechtotext.TranscriberFunc(
		func(_ context.Context, recording []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
			options := speechtotext.TranscriptionOptions{}
			for _, opt := range opts {
				opt(&options)
			}
			if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
				t.Errorf("expected default input encoding, got %+v", options.EncodingInfo)
			}
			return "that is all, I am done", nil
		})))
	conn := dial(t, server)

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 3200)); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	messages := readUntil(t, conn, typeAssistantResponse)
	if messages[0].Type != typeTranscript || messages[0].Transcript != "that is all, I am done" {
		t.Fatalf("expected transcript of the recording first, got %+v", messages[0])
	}
}

func TestActiveSessionsTracksConnections(t *testing.T) {
	server, handler := newTestServer(t)
	conn := dial(t, server)

	deadline := time.Now().Add(2 * time.Second)
	for handler.ActiveSessions() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected one active session, got %d", handler.ActiveSessions())
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for handler.ActiveSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected no active sessions, got %d", handler.ActiveSessions())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
