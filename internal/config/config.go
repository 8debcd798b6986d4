// Package config loads the server configuration from defaults, an optional
// YAML file and EMA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultSystemPrompt = "You are a friendly voice assistant. Reply in one or two short, natural sentences that sound good when spoken aloud."

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	TurnDetection TurnDetectionConfig `yaml:"turn_detection"`
	LLM           LLMConfig           `yaml:"llm"`
	Speech        SpeechConfig        `yaml:"speech"`
	Conversation  ConversationConfig  `yaml:"conversation"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

type TurnDetectionConfig struct {
	Threshold        float64 `yaml:"threshold"`
	MaxHistoryTurns  int     `yaml:"max_history_turns"`
	MaxContextTokens int     `yaml:"max_context_tokens"`

	// Scorer is "remote" (HTTP scoring service) or "llm" (structured
	// output from the Groq client).
	Scorer        string        `yaml:"scorer"`
	ScorerURL     string        `yaml:"scorer_url"`
	ScorerTimeout time.Duration `yaml:"scorer_timeout"`

	// Tokenizer is "whitespace" or "tiktoken".
	Tokenizer        string `yaml:"tokenizer"`
	TiktokenEncoding string `yaml:"tiktoken_encoding"`
}

type LLMConfig struct {
	// Provider is "ollama" or "groq".
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

type SpeechConfig struct {
	// TTSProvider and STTProvider are "deepgram" or "none".
	TTSProvider string `yaml:"tts_provider"`
	Voice       string `yaml:"voice"`
	SampleRate  int    `yaml:"sample_rate"`
	Workers     int    `yaml:"workers"`

	STTProvider string `yaml:"stt_provider"`
	Language    string `yaml:"language"`
}

type ConversationConfig struct {
	MaxHistoryTurns int           `yaml:"max_history_turns"`
	TurnTimeout     time.Duration `yaml:"turn_timeout"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			PingInterval:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxMessageBytes: 4 << 20,
		},
		TurnDetection: TurnDetectionConfig{
			Threshold:        0.5,
			MaxHistoryTurns:  2,
			MaxContextTokens: 512,
			Scorer:           "remote",
			ScorerURL:        "http://localhost:8001/score",
			ScorerTimeout:    2 * time.Second,
			Tokenizer:        "whitespace",
			TiktokenEncoding: "cl100k_base",
		},
		LLM: LLMConfig{
			Provider:     "ollama",
			SystemPrompt: DefaultSystemPrompt,
			MaxTokens:    64,
			Temperature:  0.7,
		},
		Speech: SpeechConfig{
			TTSProvider: "deepgram",
			Voice:       "aura-2-thalia-en",
			SampleRate:  24000,
			Workers:     4,
			STTProvider: "deepgram",
			Language:    "en-US",
		},
		Conversation: ConversationConfig{
			MaxHistoryTurns: 2,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	setString := func(key string, target *string) {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}
	setInt := func(key string, target *int) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	setFloat := func(key string, target *float64) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if value, ok := lookup(key); ok && value != "" {
			parsed, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*target = parsed
		}
	}

	setString("EMA_ADDR", &c.Server.Addr)

	setFloat("EMA_EOU_THRESHOLD", &c.TurnDetection.Threshold)
	setInt("EMA_EOU_MAX_HISTORY_TURNS", &c.TurnDetection.MaxHistoryTurns)
	setInt("EMA_EOU_MAX_CONTEXT_TOKENS", &c.TurnDetection.MaxContextTokens)
	setString("EMA_SCORER", &c.TurnDetection.Scorer)
	setString("EMA_SCORER_URL", &c.TurnDetection.ScorerURL)
	setDuration("EMA_SCORER_TIMEOUT", &c.TurnDetection.ScorerTimeout)
	setString("EMA_TOKENIZER", &c.TurnDetection.Tokenizer)

	setString("EMA_LLM_PROVIDER", &c.LLM.Provider)
	setString("EMA_LLM_MODEL", &c.LLM.Model)
	setString("EMA_LLM_BASE_URL", &c.LLM.BaseURL)
	setString("EMA_LLM_SYSTEM_PROMPT", &c.LLM.SystemPrompt)
	setInt("EMA_LLM_MAX_TOKENS", &c.LLM.MaxTokens)

	setString("EMA_TTS_PROVIDER", &c.Speech.TTSProvider)
	setString("EMA_TTS_VOICE", &c.Speech.Voice)
	setInt("EMA_SYNTHESIS_WORKERS", &c.Speech.Workers)
	setString("EMA_STT_PROVIDER", &c.Speech.STTProvider)
	setString("EMA_STT_LANGUAGE", &c.Speech.Language)

	setInt("EMA_MAX_HISTORY_TURNS", &c.Conversation.MaxHistoryTurns)
	setDuration("EMA_TURN_TIMEOUT", &c.Conversation.TurnTimeout)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.PingInterval <= 0 {
		errs = append(errs, errors.New("server.ping_interval must be positive"))
	}

	if c.TurnDetection.Threshold < 0 || c.TurnDetection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("turn_detection.threshold must be within [0, 1], got %v", c.TurnDetection.Threshold))
	}
	if c.TurnDetection.MaxHistoryTurns < 0 {
		errs = append(errs, errors.New("turn_detection.max_history_turns must not be negative"))
	}
	if c.TurnDetection.MaxContextTokens <= 0 {
		errs = append(errs, errors.New("turn_detection.max_context_tokens must be positive"))
	}
	switch c.TurnDetection.Scorer {
	case "remote":
		if c.TurnDetection.ScorerURL == "" {
			errs = append(errs, errors.New("turn_detection.scorer_url is required for the remote scorer"))
		}
	case "llm":
	default:
		errs = append(errs, fmt.Errorf("unknown turn_detection.scorer %q", c.TurnDetection.Scorer))
	}
	switch c.TurnDetection.Tokenizer {
	case "whitespace", "tiktoken":
	default:
		errs = append(errs, fmt.Errorf("unknown turn_detection.tokenizer %q", c.TurnDetection.Tokenizer))
	}

	switch c.LLM.Provider {
	case "ollama", "groq":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("llm.max_tokens must be positive"))
	}

	switch c.Speech.TTSProvider {
	case "deepgram", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown speech.tts_provider %q", c.Speech.TTSProvider))
	}
	switch c.Speech.STTProvider {
	case "deepgram", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown speech.stt_provider %q", c.Speech.STTProvider))
	}
	if c.Speech.Workers <= 0 {
		errs = append(errs, errors.New("speech.workers must be positive"))
	}

	if c.Conversation.MaxHistoryTurns <= 0 {
		errs = append(errs, errors.New("conversation.max_history_turns must be positive"))
	}
	if c.Conversation.TurnTimeout < 0 {
		errs = append(errs, errors.New("conversation.turn_timeout must not be negative"))
	}

	return errors.Join(errs...)
}
