package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"quill/internal/config"
	"quill/internal/task"
)

// SEOClient produces SEO metadata for a finished article. When the remote
// service is unconfigured or unreachable it derives metadata locally from
// the article itself, so the stage always yields something usable.
type SEOClient struct {
	enabled    bool
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSEOClient builds the SEO-metadata client from configuration.
func NewSEOClient(cfg config.SEO) *SEOClient {
	timeout := defaultCollaboratorTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &SEOClient{
		enabled:    cfg.Enabled,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient overrides the HTTP client (tests).
func (c *SEOClient) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

type seoRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type seoResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Metadata returns SEO metadata for the article, remote first, locally
// derived on any failure. It never returns a nil result with a nil error.
func (c *SEOClient) Metadata(ctx context.Context, title, content string, tags []string) (*task.SEOMetadata, error) {
	if c.enabled && c.baseURL != "" {
		meta, err := c.remoteMetadata(ctx, title, content, tags)
		if err == nil {
			return meta, nil
		}
		// Fall through to local derivation; the caller logs the error.
		return deriveMetadata(title, content, tags), err
	}
	return deriveMetadata(title, content, tags), nil
}

func (c *SEOClient) remoteMetadata(ctx context.Context, title, content string, tags []string) (*task.SEOMetadata, error) {
	encoded, err := json.Marshal(seoRequest{Title: title, Content: content, Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("seo request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/metadata", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("seo request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seo request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("seo request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seo request: http %d", resp.StatusCode)
	}

	var decoded seoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("seo request: decode response: %w", err)
	}
	meta := &task.SEOMetadata{
		Title:       strings.TrimSpace(decoded.Title),
		Description: strings.TrimSpace(decoded.Description),
		Keywords:    decoded.Keywords,
	}
	if meta.Title == "" {
		meta.Title = title
	}
	return meta, nil
}

const (
	maxDescriptionLength = 160
	maxKeywords          = 8
)

// deriveMetadata fabricates metadata from the article alone: first
// paragraph as description, most frequent long words as keywords.
func deriveMetadata(title, content string, tags []string) *task.SEOMetadata {
	return &task.SEOMetadata{
		Title:       strings.TrimSpace(title),
		Description: deriveDescription(content),
		Keywords:    deriveKeywords(content, tags),
	}
}

func deriveDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxDescriptionLength {
			return string(runes[:maxDescriptionLength-3]) + "..."
		}
		return line
	}
	return ""
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "their": {}, "there": {}, "these": {},
	"those": {}, "which": {}, "while": {}, "would": {}, "could": {},
	"should": {}, "where": {}, "because": {}, "between": {}, "through": {},
	"during": {}, "before": {}, "other": {}, "being": {}, "every": {},
}

func deriveKeywords(content string, tags []string) []string {
	keywords := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		keywords = append(keywords, tag)
	}

	counts := make(map[string]int)
	for _, field := range strings.Fields(strings.ToLower(content)) {
		word := strings.Trim(field, ".,;:!?\"'()[]#*")
		if len(word) < 5 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		counts[word]++
	}
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	for _, word := range words {
		if len(keywords) >= maxKeywords {
			break
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}
