package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"ChannelPublisher/internal/domain"
)

// MaxSnippetRunes bounds how much page text is sent to a model.
const MaxSnippetRunes = 3000

const defaultSystemPrompt = "You write short posts for a channel that shares useful websites and open-source projects."

func userPrompt(source, snippet string) string {
	return fmt.Sprintf(
		"Write a concise title and an engaging one-paragraph description for the following web content. "+
			"Source: %s. Reply with a JSON object with \"title\" and \"description\" fields.\n\nContent:\n%s",
		strings.TrimSpace(source), clip(snippet, MaxSnippetRunes))
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// decodeGenerated parses a model reply. Models sometimes wrap JSON in a
// markdown fence, which is stripped first.
func decodeGenerated(raw string) (domain.Generated, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out domain.Generated
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return domain.Generated{}, fmt.Errorf("decode model reply: %w", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	if out.Title == "" && out.Description == "" {
		return domain.Generated{}, fmt.Errorf("model reply has no title or description")
	}
	return out, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}
