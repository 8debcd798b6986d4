package groq

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL   = "https://api.groq.com/openai/v1"
	defaultModel     = "llama-3.1-8b-instant"
	defaultMaxTokens = 128
)

// Client talks to the Groq chat completions API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	instructions string
	maxTokens    int
	temperature  *float64

	httpClient *http.Client
}

type ClientOption func(*Client)

// NewClient reads the API key from GROQ_API_KEY unless WithAPIKey is
// given.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		apiKey, ok := os.LookupEnv("GROQ_API_KEY")
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("groq api key not found")
		}
		c.apiKey = apiKey
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}

	return c, nil
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithBaseURL points the client at any OpenAI compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithInstructions sets the system prompt sent ahead of the conversation.
func WithInstructions(instructions string) ClientOption {
	return func(c *Client) {
		c.instructions = instructions
	}
}

func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) {
		c.temperature = &temperature
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func (c *Client) completionsURL() string {
	return c.baseURL + "/chat/completions"
}
