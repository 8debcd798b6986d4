package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/core/speechtotext"
	"github.com/koscakluka/ema-turns/core/synthesis"
	"github.com/koscakluka/ema-turns/core/texttospeech"
	"github.com/koscakluka/ema-turns/core/turndetection"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var ErrTurnTimeout = errors.New("turn timed out")

const (
	reasonGeneration    = "reply generation failed"
	reasonSynthesis     = "speech synthesis failed"
	reasonTranscription = "transcription failed"
	reasonTimeout       = "timeout"
	reasonSessionClosed = "session closed"
	reasonCancelled     = "cancelled"
	reasonInternal      = "internal error"
)

// Coordinator runs the turn lifecycle for any number of sessions: it
// buffers fragments, asks the detector whether the user is done, generates
// and speaks the reply and commits the exchange to the session history.
type Coordinator struct {
	detector    *turndetection.Detector
	llm         llm
	synthesizer texttospeech.Synthesizer
	scheduler   *synthesis.Scheduler
	transcriber speechtotext.Transcriber

	synthesisWorkers int
	maxHistoryTurns  int
	turnTimeout      time.Duration
}

func NewCoordinator(opts ...CoordinatorOption) (*Coordinator, error) {
	c := defaultCoordinator()
	for _, opt := range opts {
		opt(c)
	}

	if c.detector == nil {
		return nil, fmt.Errorf("turn detector is required")
	}
	if c.llm.client == nil {
		return nil, errNoReplyGenerator
	}
	if c.synthesizer != nil {
		c.scheduler = synthesis.NewScheduler(c.synthesizer, synthesis.WithWorkers(c.synthesisWorkers))
	}

	return c, nil
}

// NewSession creates a session whose history is capped by the coordinator's
// history limit.
func (c *Coordinator) NewSession(ctx context.Context, opts ...SessionOption) *Session {
	return NewSession(ctx, append([]SessionOption{WithSessionHistoryTurns(c.maxHistoryTurns)}, opts...)...)
}

func (c *Coordinator) CanTranscribe() bool {
	return c.transcriber != nil
}

func (c *Coordinator) CanSpeak() bool {
	return c.scheduler != nil
}

// HandleFragment runs a fragment through the whole turn and returns its
// outcome. A blank fragment returns nil and changes nothing. The outcome and
// every intermediate event also go to the session handlers.
func (c *Coordinator) HandleFragment(ctx context.Context, session *Session, fragment string) events.ConversationEvent {
	text, rejection, admitted := c.admit(session, fragment)
	if !admitted {
		return rejection
	}

	return c.processTurn(ctx, session, text)
}

// SubmitFragment admits the fragment in the calling goroutine and finishes
// the turn in the background, reporting through the session handlers. It
// returns false when the fragment was blank or dropped.
func (c *Coordinator) SubmitFragment(ctx context.Context, session *Session, fragment string) bool {
	text, _, admitted := c.admit(session, fragment)
	if !admitted {
		return false
	}

	session.inflight.Add(1)
	go func() {
		defer session.inflight.Done()
		c.processTurn(ctx, session, text)
	}()
	return true
}

// SubmitAudio transcribes a finished recording and submits the transcript
// as a fragment. It blocks for the transcription only.
func (c *Coordinator) SubmitAudio(ctx context.Context, session *Session, recording []byte, opts ...speechtotext.TranscriptionOption) bool {
	if len(recording) == 0 {
		return false
	}
	if session.IsBusy() {
		c.reject(ctx, session, "")
		return false
	}
	if c.transcriber == nil {
		session.emit(events.NewTurnFailed("", reasonTranscription, errors.New("no transcriber configured")))
		return false
	}

	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()
	span.SetAttributes(attribute.Int("audio.bytes", len(recording)))

	var transcript string
	err := panicSafeNamedWorker("transcription", func(ctx context.Context) error {
		var err error
		transcript, err = c.transcriber.Transcribe(ctx, recording, opts...)
		return err
	})(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to transcribe audio", "session", session.ID(), "error", err)
		turnsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reasonTranscription)))
		session.emit(events.NewTurnFailed("", reasonTranscription, err))
		return false
	}

	if transcript = strings.TrimSpace(transcript); transcript == "" {
		return false
	}
	session.emit(events.NewUserTranscriptFinal(transcript))

	return c.SubmitFragment(ctx, session, transcript)
}

// admit performs the synchronous part of a turn: blank check, the
// single-flight guard and buffering. On success the guard is held and the
// whole utterance is returned.
func (c *Coordinator) admit(session *Session, fragment string) (string, events.ConversationEvent, bool) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil, false
	}
	if err := session.ctx.Err(); err != nil {
		return "", events.NewTurnFailed("", reasonSessionClosed, context.Cause(session.ctx)), false
	}
	if !session.tryAcquire() {
		return "", c.reject(session.ctx, session, fragment), false
	}

	return session.utterance.Append(fragment), nil, true
}

func (c *Coordinator) reject(ctx context.Context, session *Session, fragment string) events.ConversationEvent {
	busyRejections.Add(ctx, 1)
	logger.DebugContext(ctx, "dropping fragment, turn already in progress", "session", session.ID())

	event := events.NewTurnBusy(fragment)
	session.emit(event)
	return event
}

// processTurn runs with the guard held and releases it before the outcome
// is reported.
func (c *Coordinator) processTurn(ctx context.Context, session *Session, text string) events.ConversationEvent {
	ctx, span := tracer.Start(ctx, "handle fragment", trace.WithAttributes(
		attribute.String("session.id", session.ID()),
	))
	defer span.End()

	event := func() (event events.ConversationEvent) {
		defer session.release()
		defer func() {
			if recovered := recover(); recovered != nil {
				event = events.NewTurnFailed("", reasonInternal, fmt.Errorf("turn panicked: %v", recovered))
			}
		}()

		return c.runTurn(ctx, session, text)
	}()

	switch event := event.(type) {
	case events.TurnCompleted:
		turnsCompleted.Add(ctx, 1)
		span.SetAttributes(attribute.Int("chunks.skipped", event.SkippedChunks()))
	case events.TurnFailed:
		turnsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", event.Reason)))
		if event.Err != nil {
			span.RecordError(event.Err)
		}
		span.SetStatus(codes.Error, event.Reason)
		logger.WarnContext(ctx, "turn failed", "session", session.ID(), "reason", event.Reason, "error", event.Err)
	}
	span.SetAttributes(attribute.String("outcome", string(event.Kind())))

	session.emit(event)
	return event
}

func (c *Coordinator) runTurn(ctx context.Context, session *Session, text string) events.ConversationEvent {
	decision := c.detector.Evaluate(ctx, session.History(), text)
	if !decision.IsComplete {
		return events.NewTurnBuffered(text, decision.Probability)
	}

	turnID := uuid.NewString()
	ctx, cancel := c.turnContext(ctx, session)
	defer cancel()

	session.emit(events.NewTurnStarted(turnID, text, decision.Probability))

	conversation := append(session.History(), llms.UserTurn(text))
	reply, err := c.llm.generate(ctx, conversation)
	if err != nil {
		return events.NewTurnFailed(turnID, failureReason(ctx, reasonGeneration), err)
	}
	session.emit(events.NewAssistantResponseFinal(turnID, reply))

	chunks, err := c.speak(ctx, session, turnID, reply)
	if err != nil {
		return events.NewTurnFailed(turnID, failureReason(ctx, reasonSynthesis), err)
	}

	session.commit(text, reply)
	return events.NewTurnCompleted(turnID, text, decision.Probability, reply, chunks)
}

// turnContext ends when the caller's context does, when the session closes
// or when the turn timeout expires, recording which one it was.
func (c *Coordinator) turnContext(ctx context.Context, session *Session) (context.Context, context.CancelFunc) {
	ctx, cancelCause := context.WithCancelCause(ctx)
	stop := context.AfterFunc(session.ctx, func() {
		cancelCause(context.Cause(session.ctx))
	})

	cancel := func() {
		stop()
		cancelCause(context.Canceled)
	}
	if c.turnTimeout <= 0 {
		return ctx, cancel
	}

	ctx, cancelTimeout := context.WithTimeoutCause(ctx, c.turnTimeout, ErrTurnTimeout)
	return ctx, func() {
		cancelTimeout()
		cancel()
	}
}

// speak synthesizes the reply, forwarding every chunk to the session as soon
// as it is next in order. Failed chunks are skipped, only the end of ctx
// fails the whole reply.
func (c *Coordinator) speak(ctx context.Context, session *Session, turnID, reply string) ([]events.AssistantSpeechChunk, error) {
	if c.scheduler == nil {
		return nil, nil
	}

	var chunks []events.AssistantSpeechChunk
	_, err := c.scheduler.Stream(ctx, reply, func(result synthesis.Result) {
		chunk := events.NewAssistantSpeechChunk(turnID, result.Index, result.Text, result.Waveform, result.Err)
		chunks = append(chunks, chunk)
		session.emit(chunk)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func failureReason(ctx context.Context, stage string) string {
	if ctx.Err() == nil {
		return stage
	}

	switch cause := context.Cause(ctx); {
	case errors.Is(cause, ErrTurnTimeout), errors.Is(cause, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(cause, ErrSessionClosed):
		return reasonSessionClosed
	default:
		return reasonCancelled
	}
}
