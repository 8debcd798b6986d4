package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName    = "deepgram"
	defaultSpeakURL = "wss://api.deepgram.com/v1/speak"
)

// TextToSpeechClient synthesizes one chunk of text per connection, so chunks
// can be synthesized in parallel without sharing a stream.
type TextToSpeechClient struct {
	apiKey     string
	speakURL   string
	voice      deepgramVoice
	sampleRate int
	dialer     *websocket.Dialer
}

type ClientOption func(*TextToSpeechClient)

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		speakURL:   defaultSpeakURL,
		voice:      defaultVoice,
		sampleRate: audio.DefaultOutputSampleRate,
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	if client.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", client.sampleRate)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}
	return client, nil
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.apiKey = apiKey
	}
}

func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) {
		c.voice = voice
	}
}

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *TextToSpeechClient) {
		c.sampleRate = sampleRate
	}
}

// WithSpeakURL overrides the websocket endpoint, mostly for tests.
func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.speakURL = speakURL
	}
}

func (c *TextToSpeechClient) Voice() deepgramVoice { return c.voice }

// Synthesize sends the text, flushes it and collects linear16 audio until
// Deepgram confirms the flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) (texttospeech.Waveform, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice", string(c.voice)),
		attribute.Int("text.length", len(text)),
	)

	waveform, err := c.synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return texttospeech.Waveform{}, err
	}
	span.SetAttributes(attribute.Int("audio.samples", len(waveform.Samples)))
	return waveform, nil
}

func (c *TextToSpeechClient) synthesize(ctx context.Context, text string) (texttospeech.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return texttospeech.Waveform{}, texttospeech.ErrEmptyText
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return texttospeech.Waveform{}, texttospeech.NewSynthesisError(providerName, text, "failed to open websocket", err, true)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		return texttospeech.Waveform{}, c.failure(ctx, text, "failed to send text", err)
	}
	if err := conn.WriteJSON(controlMessage{Type: "Flush"}); err != nil {
		return texttospeech.Waveform{}, c.failure(ctx, text, "failed to flush text", err)
	}

	pcm, err := readUntilFlushed(conn)
	if err != nil {
		return texttospeech.Waveform{}, c.failure(ctx, text, "failed to receive audio", err)
	}

	if err := conn.WriteJSON(controlMessage{Type: "Close"}); err != nil {
		logger.Debug("failed to close deepgram speak stream", "error", err)
	}

	if len(pcm) == 0 {
		return texttospeech.Waveform{}, texttospeech.ErrEmptyAudio
	}
	return texttospeech.Waveform{
		SampleRate: c.sampleRate,
		Samples:    audio.PCM16ToFloat32(pcm),
	}, nil
}

func (c *TextToSpeechClient) failure(ctx context.Context, text, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return texttospeech.NewSynthesisError(providerName, text, message, err, false)
}

func (c *TextToSpeechClient) connect(ctx context.Context) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	query := speakURL.Query()
	query.Set("encoding", audio.DefaultFormat)
	query.Set("sample_rate", strconv.Itoa(c.sampleRate))
	query.Set("model", string(c.voice))
	query.Set("container", "none")
	speakURL.RawQuery = query.Encode()

	conn, _, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type controlMessage struct {
	Type string `json:"type"`
}

func readUntilFlushed(conn *websocket.Conn) ([]byte, error) {
	var pcm []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		switch msgType {
		case websocket.BinaryMessage:
			pcm = append(pcm, msg...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				return pcm, nil
			case "Warning":
				logger.Warn("deepgram warning", "description", parsedMsg.Description)
			case "Error":
				return nil, fmt.Errorf("deepgram error: %s", parsedMsg.Description)
			}
		}
	}
}
