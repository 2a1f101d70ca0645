// Package publish pushes finished articles to the configured CMS. A
// publish failure blocks the published transition but never discards the
// generated content.
package publish

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

	"quill/internal/config"
	"quill/internal/task"
)

const defaultPublishTimeout = 30 * time.Second

// ErrDisabled marks an unconfigured publish target.
var ErrDisabled = errors.New("publish target disabled")

// Client is a REST client for the CMS publish endpoint.
type Client struct {
	enabled    bool
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds the publish client from configuration.
func New(cfg config.Publish) *Client {
	timeout := defaultPublishTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		enabled:    cfg.Enabled,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      strings.TrimSpace(cfg.APIToken),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient overrides the HTTP client (tests).
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// Enabled reports whether a publish target is configured.
func (c *Client) Enabled() bool {
	return c.enabled && c.baseURL != ""
}

type publishRequest struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Tags          []string          `json:"tags,omitempty"`
	Categories    []string          `json:"categories,omitempty"`
	FeaturedImage string            `json:"featured_image,omitempty"`
	SEO           *task.SEOMetadata `json:"seo,omitempty"`
}

type publishResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publish pushes the article to the CMS and returns a reference to the
// published target (URL or remote ID).
func (c *Client) Publish(ctx context.Context, t *task.Task) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if strings.TrimSpace(t.Content) == "" {
		return "", errors.New("publish: task has no content")
	}

	encoded, err := json.Marshal(publishRequest{
		Title:         t.Title,
		Content:       t.Content,
		Tags:          t.Tags,
		Categories:    t.Categories,
		FeaturedImage: t.FeaturedImageRef,
		SEO:           t.SEO,
	})
	if err != nil {
		return "", fmt.Errorf("publish: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("publish: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("publish: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("publish: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded publishResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("publish: decode response: %w", err)
	}
	if ref := strings.TrimSpace(decoded.URL); ref != "" {
		return ref, nil
	}
	if ref := strings.TrimSpace(decoded.ID); ref != "" {
		return ref, nil
	}
	return "", errors.New("publish: response carried no reference")
}
