// Package llm talks to an OpenAI-compatible chat-completions endpoint.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/seekerworks/jobpilot/internal/faults"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the completion request body.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response is the subset of the completion response the pipeline reads.
type Response struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Completion is the flattened result handed to callers.
type Completion struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client wraps resty over a retrying transport, the way the rest of the
// service reaches external HTTP APIs.
type Client struct {
	resty *resty.Client
}

// New creates a completion client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "jobpilot/1.0").
		SetTransport(retryClient.HTTPClient.Transport)
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	return &Client{resty: rc}
}

// Complete posts one chat-completion request. Failures come back tagged with
// the fault kind the governor and breaker dispatch on.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "llm.complete", err)
	}

	var body Response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, faults.Wrap(faults.KindUnknown, "llm.complete",
			fmt.Errorf("decode response: %w", err))
	}

	if resp.IsError() {
		kind := faults.ClassifyHTTPStatus(resp.StatusCode())
		msg := resp.Status()
		if body.Error != nil {
			msg = body.Error.Message
		}
		return nil, faults.Newf(kind, "llm.complete", "%s (status %d)", msg, resp.StatusCode())
	}
	if body.Error != nil {
		return nil, faults.Newf(faults.Classify(fmt.Errorf("%s", body.Error.Message)),
			"llm.complete", "%s", body.Error.Message)
	}
	if len(body.Choices) == 0 {
		return nil, faults.New(faults.KindValidation, "llm.complete", "response has no choices")
	}

	return &Completion{
		Content:      body.Choices[0].Message.Content,
		PromptTokens: body.Usage.PromptTokens,
		OutputTokens: body.Usage.CompletionTokens,
	}, nil
}

// EstimateTokens approximates the token count of a prompt for pre-call cost
// estimates. Four characters per token tracks the OpenAI tokenizers closely
// enough for budgeting.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
