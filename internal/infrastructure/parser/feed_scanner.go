package parser

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/scanner"
)

// FeedScanner picks one configured feed at random and one entry from it.
type FeedScanner struct {
	client *http.Client
	pick   func(n int) int
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client; pick chooses an index in [0, n) and
// defaults to math/rand.
func NewFeedScanner(client *http.Client, pick func(n int) int) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if pick == nil {
		pick = rand.IntN
	}
	return &FeedScanner{client: client, pick: pick}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// Scan returns a single draft for a random entry of a random feed.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	if len(req.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: no feeds configured", domain.ErrSourceFetch)
	}
	endpoint := req.Endpoints[f.pick(len(req.Endpoints))]

	body, _, err := fetch(ctx, f.client, endpoint.URL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, sourceParseError(endpoint.URL, err)
	}

	items := make([]*gofeed.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item != nil && entryURL(item) != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptySource, endpoint.URL)
	}
	item := items[f.pick(len(items))]

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = endpoint.Name
	}

	tags := append([]string(nil), req.Tags...)
	tags = append(tags, item.Categories...)

	return []domain.Candidate{{
		Name:        strings.TrimSpace(item.Title),
		URL:         entryURL(item),
		Description: entryText(item),
		Tags:        tags,
		Source:      source,
	}}, nil
}

func entryURL(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(item.GUID); strings.HasPrefix(guid, "http") {
		return guid
	}
	return ""
}

// entryText prefers the summary over full content and flattens any markup.
func entryText(item *gofeed.Item) string {
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	return htmlToText(raw)
}

func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
