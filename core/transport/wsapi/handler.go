package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/speechtotext"
	"github.com/koscakluka/ema-turns/core/texttospeech"
)

const (
	defaultPingInterval    = 30 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultMaxMessageBytes = 4 << 20

	outboxSize     = 64
	audioQueueSize = 8
)

// Handler serves the assistant websocket. Every connection gets its own
// session on the coordinator.
type Handler struct {
	coordinator *orchestration.Coordinator
	upgrader    websocket.Upgrader

	pingInterval    time.Duration
	writeWait       time.Duration
	maxMessageBytes int64

	active atomic.Int64
}

type HandlerOption func(*Handler)

func NewHandler(coordinator *orchestration.Coordinator, opts ...HandlerOption) *Handler {
	h := &Handler{
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval:    defaultPingInterval,
		writeWait:       defaultWriteWait,
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func WithPingInterval(interval time.Duration) HandlerOption {
	return func(h *Handler) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

func WithMaxMessageBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxMessageBytes = limit
		}
	}
}

// WithCheckOrigin restricts which origins may connect. All origins are
// accepted by default.
func WithCheckOrigin(check func(*http.Request) bool) HandlerOption {
	return func(h *Handler) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// ActiveSessions is the number of open connections.
func (h *Handler) ActiveSessions() int64 {
	return h.active.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	h.active.Add(1)
	activeConnections.Add(r.Context(), 1)
	defer func() {
		h.active.Add(-1)
		activeConnections.Add(context.Background(), -1)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &connection{
		conn:         conn,
		outbox:       make(chan any, outboxSize),
		writerDone:   make(chan struct{}),
		pingInterval: h.pingInterval,
		writeWait:    h.writeWait,
	}
	session := h.coordinator.NewSession(ctx, orchestration.WithEventHandler(c.handleEvent))
	logger.InfoContext(ctx, "session opened", "session", session.ID(), "remote", r.RemoteAddr)

	go c.writePump(ctx)

	recordings := make(chan []byte, audioQueueSize)
	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		for recording := range recordings {
			h.coordinator.SubmitAudio(ctx, session, recording,
				speechtotext.WithEncodingInfo(audio.GetDefaultEncodingInfo()))
		}
	}()

	h.readLoop(ctx, c, session, recordings)

	session.Close()
	cancel()
	close(recordings)
	<-audioDone
	session.Wait()
	<-c.writerDone
	logger.InfoContext(ctx, "session closed", "session", session.ID())
}

func (h *Handler) readLoop(ctx context.Context, c *connection, session *orchestration.Session, recordings chan<- []byte) {
	c.conn.SetReadLimit(h.maxMessageBytes)
	pongWait := h.pingInterval * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.WarnContext(ctx, "websocket read failed", "session", session.ID(), "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msgType {
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Transcript == nil {
				c.send(newErrorMessage("invalid message: expected {\"transcript\": \"...\"}"))
				continue
			}
			h.coordinator.SubmitFragment(ctx, session, *msg.Transcript)

		case websocket.BinaryMessage:
			if !h.coordinator.CanTranscribe() {
				c.send(newErrorMessage("audio input is not supported"))
				continue
			}
			select {
			case recordings <- data:
			default:
				c.send(newErrorMessage("audio dropped, too many recordings pending"))
			}
		}
	}
}

// connection serializes every write through writePump.
type connection struct {
	conn         *websocket.Conn
	outbox       chan any
	writerDone   chan struct{}
	pingInterval time.Duration
	writeWait    time.Duration
}

func (c *connection) send(msg any) {
	select {
	case c.outbox <- msg:
	case <-c.writerDone:
	}
}

func (c *connection) writePump(ctx context.Context) {
	defer close(c.writerDone)

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.WarnContext(ctx, "websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				return
			}

		case <-ctx.Done():
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeWait))
			return
		}
	}
}

// flush writes whatever is still queued without blocking.
func (c *connection) flush() {
	for {
		select {
		case msg := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *connection) handleEvent(event events.Event) {
	switch event := event.(type) {
	case events.TurnBuffered:
		c.send(transcriptMessage{Type: typeTranscript, Transcript: event.Text, EOUScore: event.Probability})

	case events.TurnStarted:
		c.send(transcriptMessage{Type: typeTranscript, Transcript: event.Text, EOUScore: event.Probability, IsComplete: true})
		c.send(processingMessage{Type: typeProcessing, IsProcessing: true})

	case events.AssistantResponseFinal:
		c.send(assistantTextMessage{Type: typeAssistantText, Response: event.Text})

	case events.AssistantSpeechChunk:
		c.send(audioChunkMessage{
			Type:       typeAudioChunk,
			Index:      event.Index,
			Text:       event.Text,
			Audio:      audio.EncodeWAVBase64(event.Waveform.Samples, event.Waveform.SampleRate),
			SampleRate: event.Waveform.SampleRate,
			Skipped:    event.Skipped(),
		})

	case events.TurnCompleted:
		waveforms := make([]texttospeech.Waveform, 0, len(event.AudioChunks))
		for _, chunk := range event.AudioChunks {
			waveforms = append(waveforms, chunk.Waveform)
		}
		speech := texttospeech.JoinWaveforms(waveforms...)
		c.send(assistantResponseMessage{
			Type:     typeAssistantResponse,
			Response: event.ReplyText,
			Audio:    audio.EncodeWAVBase64(speech.Samples, speech.SampleRate),
		})
		c.send(processingMessage{Type: typeProcessing, IsProcessing: false})

	case events.TurnFailed:
		c.send(newErrorMessage(strings.TrimSpace(event.Reason)))
		if event.TurnID != "" {
			c.send(processingMessage{Type: typeProcessing, IsProcessing: false})
		}
	}
}
