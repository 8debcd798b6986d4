package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-turns/core/llms"
	"github.com/koscakluka/ema-turns/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const providerName = "groq"

// Reply asks the model for the assistant's next message.
func (c *Client) Reply(ctx context.Context, turns []llms.Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	reqBody := requestBody{
		Model:       c.model,
		Messages:    toMessages(c.instructions, turns),
		Stream:      false,
		MaxTokens:   utils.Ptr(c.maxTokens),
		Temperature: c.temperature,
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.messages", len(reqBody.Messages)),
	)

	var respBody responseBody
	if err := c.post(ctx, reqBody, &respBody); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if respBody.Usage != nil {
		completionTokens.Add(ctx, int64(respBody.Usage.CompletionTokens))
		span.SetAttributes(attribute.Int("response.completion_tokens", respBody.Usage.CompletionTokens))
	}

	if len(respBody.Choices) == 0 {
		span.SetStatus(codes.Error, llms.ErrEmptyReply.Error())
		return "", llms.ErrEmptyReply
	}

	content := strings.TrimSpace(respBody.Choices[0].Message.Content)
	if content == "" {
		span.SetStatus(codes.Error, llms.ErrEmptyReply.Error())
		return "", llms.ErrEmptyReply
	}

	return content, nil
}

func (c *Client) post(ctx context.Context, body any, out any) error {
	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &llms.GenerationError{Provider: providerName, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("non-OK response from groq", "status", resp.Status, "body", string(errorBody))
		return &llms.GenerationError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("non-OK HTTP status: %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &llms.GenerationError{Provider: providerName, Message: "invalid response body", Cause: err}
	}
	return nil
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role         string  `json:"role,omitempty"`
			Content      string  `json:"content,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		QueueTime        float64 `json:"queue_time"`
		PromptTokens     int     `json:"prompt_tokens"`
		PromptTime       float64 `json:"prompt_time"`
		CompletionTokens int     `json:"completion_tokens"`
		CompletionTime   float64 `json:"completion_time"`
		TotalTokens      int     `json:"total_tokens"`
		TotalTime        float64 `json:"total_time"`
	} `json:"usage"`
}
