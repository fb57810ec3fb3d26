package telegram

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"ChannelPublisher/internal/domain"
)

// MaxCaptionLen is Telegram's caption limit, counted on the rendered text.
const MaxCaptionLen = 1024

const markdownV2Reserved = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 backslash-escapes every character MarkdownV2 reserves.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeLinkURL escapes the only two characters that matter inside (...).
func escapeLinkURL(u string) string {
	u = strings.ReplaceAll(u, `\`, `\\`)
	return strings.ReplaceAll(u, `)`, `\)`)
}

// Caption pieces other than the description are capped so that a long title
// or tag list still leaves room for the link.
const (
	maxTitleLen = 256
	maxLabelLen = 64
)

// BuildCaption renders the album caption in MarkdownV2:
//
//	*title*
//
//	description
//
//	★ stars · language
//	#tag #tag
//	[label](url)
//
// Every visible piece is shortened so the text left after entity parsing
// never exceeds MaxCaptionLen.
func BuildCaption(post domain.Post, linkLabel string) string {
	if linkLabel == "" {
		linkLabel = "Visit site"
	}
	linkLabel = truncate(strings.TrimSpace(linkLabel), maxLabelLen)
	budget := MaxCaptionLen - runeLen(linkLabel)

	var stats string
	if repo := post.Metadata.Repository; repo != nil && !repo.Partial {
		stats = fmt.Sprintf("★ %d", repo.Stars)
		if repo.Language != "" {
			stats += " · " + repo.Language
		}
		budget -= runeLen(stats) + 1
	}

	title := truncate(strings.TrimSpace(post.Title), min(maxTitleLen, budget-2))
	if title != "" {
		budget -= runeLen(title) + 2
	}

	tags := fitTags(hashtags(post.Tags), budget/2-1)
	if tags != "" {
		budget -= runeLen(tags) + 1
	}

	desc := truncate(strings.TrimSpace(post.Description), budget-2)

	var b strings.Builder
	if title != "" {
		b.WriteString("*" + EscapeMarkdownV2(title) + "*\n\n")
	}
	if desc != "" {
		b.WriteString(EscapeMarkdownV2(desc) + "\n\n")
	}
	for _, line := range []string{stats, tags} {
		if line != "" {
			b.WriteString(EscapeMarkdownV2(line) + "\n")
		}
	}
	b.WriteString("[" + EscapeMarkdownV2(linkLabel) + "](" + escapeLinkURL(post.URL) + ")")
	return b.String()
}

// fitTags drops whole hashtags from the end until the line fits limit.
func fitTags(tags []string, limit int) string {
	line := strings.Join(tags, " ")
	for len(tags) > 0 && runeLen(line) > limit {
		tags = tags[:len(tags)-1]
		line = strings.Join(tags, " ")
	}
	return line
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func hashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		clean := strings.Trim(strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return '_'
		}, strings.TrimSpace(tag)), "_")
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "#"+clean)
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
