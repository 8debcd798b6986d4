// Package app builds the conversation coordinator and its providers from
// configuration.
package app

import (
	"fmt"

	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/core/llms/groq"
	"github.com/koscakluka/ema-turns/core/llms/ollama"
	sttdeepgram "github.com/koscakluka/ema-turns/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/ema-turns/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-turns/core/turndetection"
	"github.com/koscakluka/ema-turns/core/turndetection/llmscorer"
	"github.com/koscakluka/ema-turns/core/turndetection/remote"
	"github.com/koscakluka/ema-turns/core/turndetection/tiktoken"
	"github.com/koscakluka/ema-turns/internal/config"
)

// BuildCoordinator wires the detector, reply generator and the configured
// speech providers.
func BuildCoordinator(cfg config.Config) (*orchestration.Coordinator, error) {
	detector, err := BuildDetector(cfg.TurnDetection)
	if err != nil {
		return nil, err
	}
	replies, err := BuildReplyGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}

	opts := []orchestration.CoordinatorOption{
		orchestration.WithTurnDetector(detector),
		orchestration.WithLLM(replies),
		orchestration.WithSynthesisWorkers(cfg.Speech.Workers),
		orchestration.WithMaxHistoryTurns(cfg.Conversation.MaxHistoryTurns),
		orchestration.WithTurnTimeout(cfg.Conversation.TurnTimeout),
	}

	if cfg.Speech.TTSProvider == "deepgram" {
		voice, ok := ttsdeepgram.ParseVoice(cfg.Speech.Voice)
		if !ok {
			return nil, fmt.Errorf("unknown deepgram voice %q", cfg.Speech.Voice)
		}
		tts, err := ttsdeepgram.NewTextToSpeechClient(
			ttsdeepgram.WithVoice(voice),
			ttsdeepgram.WithSampleRate(cfg.Speech.SampleRate),
		)
		if err != nil {
			return nil, fmt.Errorf("text to speech: %w", err)
		}
		opts = append(opts, orchestration.WithTextToSpeech(tts))
	}

	if cfg.Speech.STTProvider == "deepgram" {
		stt, err := sttdeepgram.NewTranscriptionClient(sttdeepgram.WithLanguage(cfg.Speech.Language))
		if err != nil {
			return nil, fmt.Errorf("speech to text: %w", err)
		}
		opts = append(opts, orchestration.WithSpeechToText(stt))
	}

	return orchestration.NewCoordinator(opts...)
}

func BuildDetector(cfg config.TurnDetectionConfig) (*turndetection.Detector, error) {
	var scorer turndetection.Scorer
	switch cfg.Scorer {
	case "remote":
		scorer = remote.NewClient(cfg.ScorerURL, remote.WithTimeout(cfg.ScorerTimeout))
	case "llm":
		client, err := groq.NewClient()
		if err != nil {
			return nil, fmt.Errorf("llm scorer: %w", err)
		}
		scorer = llmscorer.NewScorer(client)
	default:
		return nil, fmt.Errorf("unknown scorer %q", cfg.Scorer)
	}

	opts := []turndetection.DetectorOption{
		turndetection.WithThreshold(cfg.Threshold),
		turndetection.WithMaxHistoryTurns(cfg.MaxHistoryTurns),
		turndetection.WithMaxContextTokens(cfg.MaxContextTokens),
	}
	if cfg.Tokenizer == "tiktoken" {
		tokenizer := tiktoken.NewTokenizer(cfg.TiktokenEncoding)
		if err := tokenizer.Load(); err != nil {
			return nil, err
		}
		opts = append(opts, turndetection.WithTokenizer(tokenizer))
	}

	return turndetection.NewDetector(scorer, opts...), nil
}

func BuildReplyGenerator(cfg config.LLMConfig) (llms.ReplyGenerator, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewClient(
			ollama.WithBaseURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
			ollama.WithSystemPrompt(cfg.SystemPrompt),
			ollama.WithNumPredict(cfg.MaxTokens),
		), nil
	case "groq":
		opts := []groq.ClientOption{
			groq.WithModel(cfg.Model),
			groq.WithInstructions(cfg.SystemPrompt),
			groq.WithMaxTokens(cfg.MaxTokens),
			groq.WithTemperature(cfg.Temperature),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(cfg.BaseURL))
		}
		client, err := groq.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("groq: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
