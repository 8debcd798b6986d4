package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/llms"
)

var ErrSessionClosed = errors.New("session closed")

type sessionState int32

const (
	stateIdle sessionState = iota
	stateProcessing
)

// Session is the per-connection conversation state: committed history, the
// utterance being buffered and the single-flight guard for turns.
type Session struct {
	id    string
	state atomic.Int32

	mu        sync.Mutex
	history   turnHistory
	utterance *utteranceBuffer

	ctx    context.Context
	cancel context.CancelCauseFunc

	emit     eventEmitter
	inflight sync.WaitGroup
}

type sessionHandlers struct {
	onEvent       func(events.Event)
	onSpeechChunk func(events.AssistantSpeechChunk)
}

type sessionConfig struct {
	id              string
	maxHistoryTurns int
	seed            []llms.Turn
	handlers        sessionHandlers
}

type SessionOption func(*sessionConfig)

// WithEventHandler receives every event of the session, including the
// outcome of each fragment.
func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(c *sessionConfig) {
		c.handlers.onEvent = handler
	}
}

// WithSpeechChunkHandler receives synthesized chunks strictly in order, as
// soon as each one becomes deliverable.
func WithSpeechChunkHandler(handler func(events.AssistantSpeechChunk)) SessionOption {
	return func(c *sessionConfig) {
		c.handlers.onSpeechChunk = handler
	}
}

func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) {
		if id != "" {
			c.id = id
		}
	}
}

// WithSessionHistoryTurns caps the committed history at n user/assistant
// pairs.
func WithSessionHistoryTurns(n int) SessionOption {
	return func(c *sessionConfig) {
		if n > 0 {
			c.maxHistoryTurns = n
		}
	}
}

// WithInitialHistory seeds the session with an earlier conversation.
func WithInitialHistory(turns ...llms.Turn) SessionOption {
	return func(c *sessionConfig) {
		c.seed = append(c.seed, turns...)
	}
}

// NewSession starts a session that lives until Close is called or ctx ends.
func NewSession(ctx context.Context, opts ...SessionOption) *Session {
	config := sessionConfig{
		id:              uuid.NewString(),
		maxHistoryTurns: DefaultMaxHistoryTurns,
	}
	for _, opt := range opts {
		opt(&config)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	return &Session{
		id:        config.id,
		history:   newTurnHistory(config.maxHistoryTurns, config.seed...),
		utterance: newUtteranceBuffer(),
		ctx:       ctx,
		cancel:    cancel,
		emit:      newSessionEventEmitter(config.handlers),
	}
}

func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the committed turns, oldest first.
func (s *Session) History() []llms.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Snapshot()
}

// PendingUtterance is the buffered text not yet handed off as a turn.
func (s *Session) PendingUtterance() string {
	return s.utterance.String()
}

// IsBusy reports whether a turn is in flight.
func (s *Session) IsBusy() bool {
	return sessionState(s.state.Load()) == stateProcessing
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close abandons any turn in flight. History of an unfinished turn is never
// committed.
func (s *Session) Close() {
	s.cancel(ErrSessionClosed)
}

// Wait blocks until turns started in the background have finished.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) tryAcquire() bool {
	return s.state.CompareAndSwap(int32(stateIdle), int32(stateProcessing))
}

func (s *Session) release() {
	s.state.Store(int32(stateIdle))
}

// commit records a completed exchange and clears the utterance in one step.
func (s *Session) commit(userText, replyText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Commit(llms.UserTurn(userText), llms.AssistantTurn(replyText))
	s.utterance.Reset()
}
