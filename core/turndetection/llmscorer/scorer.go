// Package llmscorer estimates end of utterance probability by asking a
// language model with structured output.
package llmscorer

import (
	"context"
	"fmt"
)

const defaultInstructions = `You judge turn taking in a spoken conversation.
The transcript is in chat markup and the last user message may be unfinished.
Estimate the probability that the user has finished speaking and expects a reply.
Trailing fillers, dangling conjunctions and incomplete clauses mean the user is
likely still talking.`

// StructuredPrompter is satisfied by groq.Client.
type StructuredPrompter interface {
	PromptJSONSchema(ctx context.Context, prompt string, systemPrompt string, output any) error
}

type estimate struct {
	Probability float64 `json:"probability" jsonschema:"minimum=0,maximum=1,description=Probability that the user finished their turn"`
}

type Scorer struct {
	llm          StructuredPrompter
	instructions string
}

type ScorerOption func(*Scorer)

func NewScorer(llm StructuredPrompter, opts ...ScorerOption) *Scorer {
	s := &Scorer{llm: llm, instructions: defaultInstructions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithInstructions(instructions string) ScorerOption {
	return func(s *Scorer) {
		if instructions != "" {
			s.instructions = instructions
		}
	}
}

func (s *Scorer) Score(ctx context.Context, formattedContext string) (float64, error) {
	var out estimate
	if err := s.llm.PromptJSONSchema(ctx, formattedContext, s.instructions, &out); err != nil {
		return 0, fmt.Errorf("failed to estimate end of utterance: %w", err)
	}
	return out.Probability, nil
}
