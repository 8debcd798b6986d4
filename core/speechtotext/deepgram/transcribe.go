package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "deepgram"

	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en-US"

	// Deepgram recommends frames between 20 and 250 ms.
	frameSize = 8000
)

// TranscriptionClient transcribes finished recordings over Deepgram's
// streaming endpoint, one connection per recording.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer
}

type ClientOption func(*TranscriptionClient)

// NewTranscriptionClient reads the API key from DEEPGRAM_API_KEY unless
// WithAPIKey is given.
func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	c := &TranscriptionClient{
		listenURL: defaultListenURL,
		model:     defaultModel,
		language:  defaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		c.apiKey = apiKey
	}
	return c, nil
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

// WithListenURL overrides the websocket endpoint, mostly for tests.
func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) {
		c.listenURL = listenURL
	}
}

// Transcribe streams the whole recording, asks Deepgram to close the stream
// and joins every final result into one transcript.
func (c *TranscriptionClient) Transcribe(ctx context.Context, recording []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()

	options := speechtotext.TranscriptionOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Language:     c.language,
	}
	for _, opt := range opts {
		opt(&options)
	}
	span.SetAttributes(attribute.Int("audio.bytes", len(recording)))

	transcript, err := c.transcribe(ctx, recording, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("transcript.length", len(transcript)))
	return transcript, nil
}

func (c *TranscriptionClient) transcribe(ctx context.Context, recording []byte, options speechtotext.TranscriptionOptions) (string, error) {
	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "invalid encoding", Cause: err}
	}

	conn, err := c.connect(ctx, *encoding, options.Language)
	if err != nil {
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "failed to open websocket", Cause: err}
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- sendRecording(conn, recording)
	}()

	transcript, readErr := readTranscript(conn)
	if err := errors.Join(<-writeErr, readErr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "transcription failed", Cause: err}
	}
	return transcript, nil
}

func (c *TranscriptionClient) connect(ctx context.Context, encoding encodingInfo, language string) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	query := listenURL.Query()
	encoding.setQuery(query)
	query.Set("model", c.model)
	query.Set("language", language)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	listenURL.RawQuery = query.Encode()

	conn, _, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func sendRecording(conn *websocket.Conn, recording []byte) error {
	for offset := 0; offset < len(recording); offset += frameSize {
		frame := recording[offset:min(offset+frameSize, len(recording))]
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// readTranscript reads until Deepgram closes the connection.
func readTranscript(conn *websocket.Conn) (string, error) {
	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return strings.Join(segments, " "), nil
			}
			return "", fmt.Errorf("failed to read deepgram message: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				logger.Warn("failed to unmarshal deepgram results", "error", err)
				continue
			}
			if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
				continue
			}
			if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
				segments = append(segments, transcript)
			}

		case api.TypeResponse("Error"):
			var errResp struct {
				Description string `json:"description"`
				Message     string `json:"message"`
			}
			_ = json.Unmarshal(msg, &errResp)
			return "", fmt.Errorf("deepgram error: %s %s", errResp.Message, errResp.Description)
		}
	}
}
