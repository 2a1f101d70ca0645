package generation

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/llm"
)

const titleSystemPrompt = "You are a headline editor. Respond with a single " +
	"concise title for the article, no quotes, no commentary."

// Titler produces a headline for a finished draft.
type Titler struct {
	router Completer
}

// NewTitler builds a titler over the given router.
func NewTitler(router Completer) *Titler {
	return &Titler{router: router}
}

// Title generates a headline for the draft. A degraded or empty response
// falls back to a title derived from the topic, so this stage never fails
// a task.
func (t *Titler) Title(ctx context.Context, topic, draft string) (string, error) {
	result, _, err := t.router.Complete(ctx, llm.Request{
		System:  titleSystemPrompt,
		Prompt:  fmt.Sprintf("Article topic: %s\n\n%s", topic, truncateDraft(draft, 2000)),
		Purpose: llm.PurposeTitle,
		Topic:   topic,
	})
	if err != nil {
		return "", err
	}
	title := cleanTitle(result.Content)
	if title == "" {
		title = strings.TrimSpace(topic)
	}
	return title, nil
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	// Models sometimes wrap titles in quotes or emit a markdown heading.
	title = strings.TrimPrefix(title, "#")
	title = strings.Trim(title, ` "'`)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	return title
}

func truncateDraft(draft string, limit int) string {
	runes := []rune(draft)
	if len(runes) <= limit {
		return draft
	}
	return string(runes[:limit])
}
