// Package enrichment holds the optional post-generation collaborators:
// image sourcing and SEO metadata. Both degrade gracefully, so a task
// proceeds without them when a service is down or unconfigured.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quill/internal/config"
)

const defaultCollaboratorTimeout = 15 * time.Second

// ErrDisabled marks a collaborator that is not configured. Callers treat
// it the same as any other enrichment failure: skip and continue.
var ErrDisabled = errors.New("collaborator disabled")

// ImageClient sources a featured image reference for an article topic.
type ImageClient struct {
	enabled    bool
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewImageClient builds the image-sourcing client from configuration.
func NewImageClient(cfg config.Images) *ImageClient {
	timeout := defaultCollaboratorTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &ImageClient{
		enabled:    cfg.Enabled,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient overrides the HTTP client (tests).
func (c *ImageClient) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

type imageSearchResponse struct {
	Results []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"results"`
}

// FindImage returns a reference for the best matching image. The failure
// modes here are expected and non-fatal: the executor logs and moves on.
func (c *ImageClient) FindImage(ctx context.Context, topic string, tags []string) (string, error) {
	if !c.enabled || c.baseURL == "" {
		return "", ErrDisabled
	}
	query := strings.TrimSpace(topic)
	if len(tags) > 0 {
		query += " " + strings.Join(tags, " ")
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("image search: new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image search: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("image search: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image search: http %d", resp.StatusCode)
	}

	var decoded imageSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("image search: decode response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return "", fmt.Errorf("image search: no results for %q", query)
	}
	if ref := strings.TrimSpace(decoded.Results[0].URL); ref != "" {
		return ref, nil
	}
	return strings.TrimSpace(decoded.Results[0].ID), nil
}
