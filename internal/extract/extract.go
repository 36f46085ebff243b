// Package extract turns a vendor reply into price, timeline and terms using
// an OpenAI-compatible chat completion endpoint.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gologme/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"

	systemPrompt = "You are an AI that extracts structured proposal data from email text. " +
		"Extract the price, timeline, and key terms. Return JSON with keys: price, timeline, terms."
)

// Fallback is returned whenever extraction cannot produce a usable result.
var Fallback = model.Extraction{
	Price:    "Unknown",
	Timeline: "Unknown",
	Terms:    "Check email",
}

// Extractor pulls structured fields out of reply text. Implementations never
// fail; they degrade to Fallback.
type Extractor interface {
	Extract(ctx context.Context, body string) model.Extraction
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
	MaxRetries    int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client calls the chat completion API. It is safe for concurrent use.
type Client struct {
	api        *openai.Client
	model      string
	hasKey     bool
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	log        *log.Logger
}

// New creates a Client from opts, filling in defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		model:      opts.Model,
		hasKey:     opts.APIKey != "",
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		limiter:    rate.NewLimiter(limit, 1),
		log:        opts.Logger,
	}
}

// Extract asks the model for the proposal fields. Any failure yields
// Fallback.
func (c *Client) Extract(ctx context.Context, body string) model.Extraction {
	if !c.hasKey {
		c.log.Warnf("extraction API key not configured, using fallback values")
		return Fallback
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		c.log.Warnf("extracting proposal details: %v", err)
		return Fallback
	}

	ext, err := Decode(content)
	if err != nil {
		c.log.Warnf("decoding extraction response: %v", err)
		return Fallback
	}
	return ext
}

// complete performs the chat completion, retrying rate-limit and server
// errors with a linear backoff.
func (c *Client) complete(ctx context.Context, body string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: body},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("response has no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
		c.log.Debugf("extraction attempt %d failed: %v", attempt+1, err)
	}

	return "", fmt.Errorf("calling chat completion: %w", lastErr)
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// Decode parses a model response into an Extraction. Markdown code fences
// around the JSON are tolerated, keys match case-insensitively and
// non-string values are rendered as text. Missing fields take their
// Fallback value; a response with none of the three fields is an error.
func Decode(content string) (model.Extraction, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return model.Extraction{}, fmt.Errorf("parsing JSON object: %w", err)
	}

	// Models sometimes capitalize keys; an exact lowercase key wins.
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		lower := strings.ToLower(k)
		if _, exact := raw[lower]; exact && lower != k {
			continue
		}
		fields[lower] = v
	}

	price, okPrice := text(fields["price"])
	timeline, okTimeline := text(fields["timeline"])
	terms, okTerms := text(fields["terms"])
	if !okPrice && !okTimeline && !okTerms {
		return model.Extraction{}, errors.New("response has no price, timeline or terms")
	}

	ext := Fallback
	if okPrice {
		ext.Price = price
	}
	if okTimeline {
		ext.Timeline = timeline
	}
	if okTerms {
		ext.Terms = terms
	}
	return ext, nil
}

// text renders a decoded JSON value as a field string.
func text(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
