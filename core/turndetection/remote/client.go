// Package remote scores utterances with an end of utterance model served
// over HTTP.
//
// The service receives {"text": "<formatted context>"} and answers with
// {"probability": 0.73}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const scopeName = "github.com/koscakluka/ema-turns/core/turndetection/remote"

var tracer = otel.Tracer(scopeName)

const defaultTimeout = 2 * time.Second

type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

type ClientOption func(*Client)

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{url: url, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return c
}

// WithTimeout bounds every scoring request. Zero disables the bound.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Probability *float64 `json:"probability"`
	Error       string   `json:"error,omitempty"`
}

func (c *Client) Score(ctx context.Context, formattedContext string) (float64, error) {
	ctx, span := tracer.Start(ctx, "score remote")
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	probability, err := c.score(ctx, formattedContext)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Float64("probability", probability))
	return probability, nil
}

func (c *Client) score(ctx context.Context, formattedContext string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Text: formattedContext})
	if err != nil {
		return 0, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, bytes.TrimSpace(errorBody))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("error decoding response: %w", err)
	}
	if result.Error != "" {
		return 0, fmt.Errorf("scorer error: %s", result.Error)
	}
	if result.Probability == nil {
		return 0, fmt.Errorf("response is missing the probability")
	}
	return *result.Probability, nil
}
