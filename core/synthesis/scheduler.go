package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-turns/core/ordered"
	"github.com/koscakluka/ema-turns/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var ErrNoSynthesizer = errors.New("no synthesizer configured")

// Result is the synthesized audio for a chunk. A result with Err set is a
// skip marker and carries no audio.
type Result struct {
	Chunk
	Waveform texttospeech.Waveform
	Err      error
}

func (r Result) Skipped() bool {
	return r.Err != nil
}

// Scheduler synthesizes the sentences of a reply concurrently and hands them
// back in their original order.
type Scheduler struct {
	synthesizer texttospeech.Synthesizer
	workers     int
}

type SchedulerOption func(*Scheduler)

func NewScheduler(synthesizer texttospeech.Synthesizer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		synthesizer: synthesizer,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithWorkers bounds the number of chunks synthesized at the same time.
func WithWorkers(workers int) SchedulerOption {
	return func(s *Scheduler) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

func (s *Scheduler) Workers() int {
	return s.workers
}

// Stream splits text into sentences, synthesizes them with at most Workers
// calls in flight and calls deliver for each result strictly in sentence
// order, from the calling goroutine. A chunk that fails to synthesize is
// delivered as a skip marker. If ctx ends before every chunk was delivered
// the remaining work is abandoned and the context error is returned along
// with whatever was delivered.
func (s *Scheduler) Stream(ctx context.Context, text string, deliver func(Result)) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "synthesize reply")
	defer span.End()

	if s == nil || s.synthesizer == nil {
		span.SetStatus(codes.Error, ErrNoSynthesizer.Error())
		return nil, ErrNoSynthesizer
	}

	chunks := SplitSentences(text)
	span.SetAttributes(
		attribute.Int("chunks", len(chunks)),
		attribute.Int("workers", s.workers),
	)
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	buffer := ordered.NewBuffer[Result](len(chunks))
	go s.dispatch(ctx, chunks, buffer)

	results := make([]Result, 0, len(chunks))
	skipped := 0
	for _, result := range buffer.Drain(ctx) {
		if result.Skipped() {
			skipped++
		}
		results = append(results, result)
		if deliver != nil {
			deliver(result)
		}
	}
	span.SetAttributes(attribute.Int("skipped", skipped))

	if err := ctx.Err(); err != nil || !buffer.Done() {
		err = fmt.Errorf("synthesis interrupted after %d of %d chunks: %w", len(results), len(chunks), context.Cause(ctx))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return results, err
	}

	return results, nil
}

func (s *Scheduler) dispatch(ctx context.Context, chunks []Chunk, buffer *ordered.Buffer[Result]) {
	group := errgroup.Group{}
	group.SetLimit(s.workers)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		group.Go(func() error {
			result := s.synthesize(ctx, chunk)
			if err := buffer.Put(chunk.Index, result); err != nil {
				logger.WarnContext(ctx, "failed to buffer synthesized chunk", "index", chunk.Index, "error", err)
			}
			return nil
		})
	}

	_ = group.Wait()
}

func (s *Scheduler) synthesize(ctx context.Context, chunk Chunk) (result Result) {
	ctx, span := tracer.Start(ctx, "synthesize chunk")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk.index", chunk.Index))

	result = Result{Chunk: chunk}
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{Chunk: chunk, Err: fmt.Errorf("synthesizer panicked: %v", recovered)}
		}

		chunksSynthesized.Add(ctx, 1)
		chunkLatency.Record(ctx, time.Since(start).Seconds())
		if result.Err != nil {
			chunksSkipped.Add(ctx, 1)
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
			logger.WarnContext(ctx, "chunk synthesis failed, skipping", "index", chunk.Index, "error", result.Err)
		}
	}()

	waveform, err := s.synthesizer.Synthesize(ctx, chunk.Text)
	switch {
	case err != nil:
		result.Err = fmt.Errorf("chunk %d: %w", chunk.Index, err)
	case waveform.IsEmpty():
		result.Err = fmt.Errorf("chunk %d: %w", chunk.Index, texttospeech.ErrEmptyAudio)
	default:
		result.Waveform = waveform
	}
	return result
}
