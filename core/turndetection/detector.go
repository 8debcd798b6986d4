package turndetection

import (
	"context"
	"strings"

	"github.com/koscakluka/ema-turns/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultThreshold        = 0.5
	DefaultMaxHistoryTurns  = 2
	DefaultMaxContextTokens = 512
)

// Decision is the outcome of evaluating a pending utterance.
type Decision struct {
	Probability float64
	IsComplete  bool
}

// Detector decides whether the user has finished speaking.
type Detector struct {
	adapter         scorerAdapter
	threshold       float64
	maxHistoryTurns int
}

type DetectorOption func(*Detector)

func NewDetector(scorer Scorer, opts ...DetectorOption) *Detector {
	d := &Detector{
		adapter: scorerAdapter{
			scorer:           scorer,
			tokenizer:        WhitespaceTokenizer{},
			maxContextTokens: DefaultMaxContextTokens,
		},
		threshold:       DefaultThreshold,
		maxHistoryTurns: DefaultMaxHistoryTurns,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithThreshold sets the probability at or above which a turn is complete.
func WithThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithMaxHistoryTurns sets how many of the most recent history entries are
// shown to the scorer in front of the pending utterance.
func WithMaxHistoryTurns(n int) DetectorOption {
	return func(d *Detector) {
		if n >= 0 {
			d.maxHistoryTurns = n
		}
	}
}

// WithMaxContextTokens bounds the formatted context. Older content is cut
// first. Zero disables truncation.
func WithMaxContextTokens(n int) DetectorOption {
	return func(d *Detector) {
		if n >= 0 {
			d.adapter.maxContextTokens = n
		}
	}
}

func WithTokenizer(tokenizer Tokenizer) DetectorOption {
	return func(d *Detector) {
		if tokenizer != nil {
			d.adapter.tokenizer = tokenizer
		}
	}
}

func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Evaluate scores pending against the tail of history. It never fails, a
// faulty scorer yields an incomplete decision with probability 0.
func (d *Detector) Evaluate(ctx context.Context, history []llms.Turn, pending string) Decision {
	if strings.TrimSpace(pending) == "" {
		return Decision{}
	}

	ctx, span := tracer.Start(ctx, "evaluate turn")
	defer span.End()

	window := append(llms.LastTurns(history, d.maxHistoryTurns), llms.UserTurn(pending))
	probability := d.adapter.score(ctx, window)
	decision := Decision{
		Probability: probability,
		IsComplete:  probability >= d.threshold,
	}

	probabilityHistogram.Record(ctx, probability)
	span.SetAttributes(
		attribute.Int("history.turns", len(window)-1),
		attribute.Float64("probability", decision.Probability),
		attribute.Bool("complete", decision.IsComplete),
	)
	return decision
}
