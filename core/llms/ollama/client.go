package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-turns/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "ollama"

	defaultBaseURL    = "http://localhost:11434"
	defaultModel      = "qwen2.5-coder:7b"
	defaultNumPredict = 64
)

// Client calls a local Ollama server's chat endpoint without streaming.
type Client struct {
	baseURL    string
	model      string
	system     string
	numPredict int

	httpClient *http.Client
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		numPredict: defaultNumPredict,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return c
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSystemPrompt is sent both as the request's system field and as the
// leading system message.
func WithSystemPrompt(system string) ClientOption {
	return func(c *Client) {
		c.system = system
	}
}

// WithNumPredict caps the number of generated tokens.
func WithNumPredict(numPredict int) ClientOption {
	return func(c *Client) {
		if numPredict > 0 {
			c.numPredict = numPredict
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func (c *Client) Reply(ctx context.Context, turns []llms.Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	messages := make([]chatMessage, 0, len(turns)+1)
	if c.system != "" {
		messages = append(messages, chatMessage{Role: string(llms.TurnRoleSystem), Content: c.system})
	}
	for _, turn := range turns {
		if turn.IsEmpty() {
			continue
		}
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	reqBody := chatRequest{
		Model:    c.model,
		System:   c.system,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{NumPredict: c.numPredict},
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.messages", len(messages)),
	)

	reply, err := c.chat(ctx, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (c *Client) chat(ctx context.Context, reqBody chatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &llms.GenerationError{Provider: providerName, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("non-OK response from ollama", "status", resp.Status, "body", string(errorBody))
		return "", &llms.GenerationError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("non-OK HTTP status: %s", resp.Status),
		}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &llms.GenerationError{Provider: providerName, Message: "invalid response body", Cause: err}
	}
	if result.Error != "" {
		return "", &llms.GenerationError{Provider: providerName, Message: result.Error}
	}

	content := strings.TrimSpace(result.Message.Content)
	if content == "" {
		return "", llms.ErrEmptyReply
	}
	return content, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	System   string        `json:"system,omitempty"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}
