package turndetection

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/koscakluka/ema-turns/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidProbability is recorded when a scorer answers with something
// that is not a probability.
var ErrInvalidProbability = errors.New("scorer returned a value outside [0, 1]")

// Scorer estimates how likely it is that the user finished their turn given
// the formatted dialogue.
type Scorer interface {
	Score(ctx context.Context, formattedContext string) (float64, error)
}

type ScorerFunc func(ctx context.Context, formattedContext string) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, formattedContext string) (float64, error) {
	return f(ctx, formattedContext)
}

// scorerAdapter formats the dialogue for the scorer and fails closed: any
// fault is logged and scored as 0.
type scorerAdapter struct {
	scorer           Scorer
	tokenizer        Tokenizer
	maxContextTokens int
}

func (a scorerAdapter) score(ctx context.Context, turns []llms.Turn) (probability float64) {
	ctx, span := tracer.Start(ctx, "score utterance")
	defer span.End()

	defer func() {
		if recovered := recover(); recovered != nil {
			probability = a.fault(ctx, span, fmt.Errorf("scorer panicked: %v", recovered))
		}
	}()

	if a.scorer == nil {
		return a.fault(ctx, span, errors.New("no scorer configured"))
	}

	formatted, err := FormatContext(turns)
	if err != nil {
		return a.fault(ctx, span, fmt.Errorf("failed to format context: %w", err))
	}
	formatted = truncateFromStart(a.tokenizer, formatted, a.maxContextTokens)
	span.SetAttributes(attribute.Int("context.length", len(formatted)))

	probability, err = a.scorer.Score(ctx, formatted)
	if err != nil {
		return a.fault(ctx, span, fmt.Errorf("failed to score context: %w", err))
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return a.fault(ctx, span, fmt.Errorf("%w: %v", ErrInvalidProbability, probability))
	}

	span.SetAttributes(attribute.Float64("probability", probability))
	return probability
}

func (a scorerAdapter) fault(ctx context.Context, span trace.Span, err error) float64 {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	scorerFaults.Add(ctx, 1)
	logger.WarnContext(ctx, "end of utterance scoring failed, treating utterance as incomplete", "error", err)
	return 0
}
