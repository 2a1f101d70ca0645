package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider talks to a local Ollama daemon via its generate API.
type OllamaProvider struct {
	desc       Descriptor
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider constructs a provider for a local Ollama endpoint.
// An empty base URL falls back to the daemon's default port.
func NewOllamaProvider(desc Descriptor, baseURL string, opts ...OllamaOption) *OllamaProvider {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	p := &OllamaProvider{
		desc:       desc,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OllamaOption customizes the provider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient overrides the default HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

func (p *OllamaProvider) Name() string           { return p.desc.Name }
func (p *OllamaProvider) Descriptor() Descriptor { return p.desc }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Complete issues a non-streaming generate call. Ollama is local, so a
// single attempt suffices; the router's fallback chain covers failure.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("ollama request: prompt required")
	}
	payload := ollamaGenerateRequest{
		Model:  p.desc.Model,
		System: strings.TrimSpace(req.System),
		Prompt: req.Prompt,
		Stream: false,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama request: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("ollama request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama request: http %d: %s", resp.StatusCode, summarizeSnippet(string(body)))
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("ollama request: decode response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama request: api error: %s", decoded.Error)
	}
	content := strings.TrimSpace(decoded.Response)
	if content == "" {
		return "", errors.New("ollama request: empty response")
	}
	return content, nil
}
