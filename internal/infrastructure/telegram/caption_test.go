package telegram

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"ChannelPublisher/internal/domain"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain words", "plain words"},
		{"v1.2-beta!", `v1\.2\-beta\!`},
		{"a_b*c[d]e(f)g~h`i>j#k+l=m|n{o}p", "a\\_b\\*c\\[d\\]e\\(f\\)g\\~h\\`i\\>j\\#k\\+l\\=m\\|n\\{o\\}p"},
		{`back\slash`, `back\\slash`},
		{"юникод.", `юникод\.`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeMarkdownV2(tt.in), tt.in)
	}
}

func TestBuildCaptionRepository(t *testing.T) {
	post := domain.Post{
		Title:       "go-rod/rod",
		Description: "A Devtools driver.",
		URL:         "https://github.com/go-rod/rod",
		Tags:        []string{"Go", "browser automation", "go"},
		Metadata: domain.LinkMetadata{
			Kind:       domain.LinkRepository,
			Repository: &domain.RepoMetadata{Stars: 5100, Language: "Go"},
		},
	}

	got := BuildCaption(post, "Open repo")
	want := "*go\\-rod/rod*\n\n" +
		"A Devtools driver\\.\n\n" +
		"★ 5100 · Go\n" +
		"\\#Go \\#browser\\_automation\n" +
		"[Open repo](https://github.com/go-rod/rod)"
	assert.Equal(t, want, got)
}

func TestBuildCaptionPartialRepoHidesStats(t *testing.T) {
	post := domain.Post{
		Title: "x",
		URL:   "https://github.com/a/b",
		Metadata: domain.LinkMetadata{
			Kind:       domain.LinkRepository,
			Repository: &domain.RepoMetadata{Owner: "a", Name: "b", Partial: true},
		},
	}
	got := BuildCaption(post, "")
	assert.NotContains(t, got, "★")
	assert.True(t, strings.HasSuffix(got, "[Visit site](https://github.com/a/b)"))
}

func TestBuildCaptionEscapesLinkTarget(t *testing.T) {
	got := BuildCaption(domain.Post{URL: "https://example.com/wiki/Go_(language)"}, "go")
	assert.Equal(t, `[go](https://example.com/wiki/Go_(language\))`, got)
}

func TestBuildCaptionTruncatesLongDescription(t *testing.T) {
	post := domain.Post{
		Title:       "Long",
		Description: strings.Repeat("word ", 400),
		URL:         "https://example.com",
	}
	got := BuildCaption(post, "")
	assert.Contains(t, got, "…")
	// Telegram counts the text left after entity parsing.
	visible := strings.NewReplacer(`\`, "", "*", "", "[", "", "](https://example.com)", "").Replace(got)
	assert.LessOrEqual(t, utf8.RuneCountInString(visible), MaxCaptionLen)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestBuildCaptionFitsWithOversizedTitleAndTags(t *testing.T) {
	tags := make([]string, 0, 300)
	for i := range 300 {
		tags = append(tags, fmt.Sprintf("topic%d", i))
	}
	post := domain.Post{
		Title:       strings.Repeat("T", 2000),
		Description: strings.Repeat("d", 2000),
		URL:         "https://example.com",
		Tags:        tags,
		Metadata: domain.LinkMetadata{
			Repository: &domain.RepoMetadata{Stars: 12, Language: "Go"},
		},
	}

	got := BuildCaption(post, strings.Repeat("L", 500))

	visible := strings.NewReplacer(`\`, "", "*", "", "[", "", "](https://example.com)", "").Replace(got)
	assert.LessOrEqual(t, utf8.RuneCountInString(visible), MaxCaptionLen)
	assert.True(t, strings.HasSuffix(got, "…](https://example.com)"), "link survives")
	assert.Contains(t, got, "#topic0 ")
	assert.Contains(t, got, "★ 12 · Go")
	assert.Contains(t, got, "d…")
}

func TestFitTagsDropsWholeTags(t *testing.T) {
	assert.Equal(t, "#a #bb", fitTags([]string{"#a", "#bb", "#ccc"}, 8))
	assert.Equal(t, "", fitTags([]string{"#toolong"}, 3))
}
