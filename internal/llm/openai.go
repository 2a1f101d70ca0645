package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
// (OpenRouter, OpenAI, vLLM, and friends).
type OpenAIProvider struct {
	desc       Descriptor
	baseURL    string
	apiKey     string
	httpClient *http.Client

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// OpenAIOption customizes the provider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRetry overrides the retry schedule.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.retryAttempts = attempts
		p.retryBaseDelay = baseDelay
		p.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps happen (tests).
func WithSleeper(sleeper func(time.Duration)) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.sleeper = sleeper
	}
}

// NewOpenAIProvider constructs a chat-completion provider for the given
// endpoint.
func NewOpenAIProvider(desc Descriptor, baseURL, apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	p := &OpenAIProvider{
		desc:           desc,
		baseURL:        strings.TrimSpace(baseURL),
		apiKey:         strings.TrimSpace(apiKey),
		httpClient:     &http.Client{Timeout: timeout},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string           { return p.desc.Name }
func (p *OpenAIProvider) Descriptor() Descriptor { return p.desc }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		// Some gateways return the streaming schema even when stream=false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Complete issues a chat completion, retrying transient failures with
// exponential backoff and honoring Retry-After on 429 responses.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("chat request: api key required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("chat request: prompt required")
	}
	payload := chatCompletionRequest{
		Model:       p.desc.Model,
		Temperature: 0.7,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})

	attempts := p.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := p.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, retry := p.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if err := p.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("chat request: failed after %d attempts: %w", attempts, lastErr)
}

func (p *OpenAIProvider) sendOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat request: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat request: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("chat request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("chat request: empty content (snippet: %s)", summarizeSnippet(string(body)))
}

func (p *OpenAIProvider) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return p.capDelay(statusErr.RetryAfter), true
			}
			return p.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return p.backoffDelay(attempt), true
	}
	return 0, false
}

func (p *OpenAIProvider) backoffDelay(attempt int) time.Duration {
	delay := p.retryBaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		if delay > p.retryMaxDelay/2 {
			delay = p.retryMaxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p *OpenAIProvider) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.retryMaxDelay > 0 && delay > p.retryMaxDelay {
		return p.retryMaxDelay
	}
	return delay
}

func (p *OpenAIProvider) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
