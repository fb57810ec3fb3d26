package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/scanner"
)

// CatalogEntry is one "name + link [+ description]" line of a curated list.
type CatalogEntry struct {
	Name        string
	URL         string
	Description string
	Section     string
}

// Catalog grammar, one entry per line:
//
//	entry   = bullet SP "[" name "]" "(" url ")" [ SP* sep* SP* description ]
//	bullet  = "-" | "*" | "+"
//	sep     = "-" | "–" | "—" | ":" | "：" | "|"
//	url     = ("http://" | "https://") non-space-non-paren+
//	heading = "#"{1,6} SP title        ; becomes Section of following entries
//
// Leading separators are stripped from the description; any other trailing
// text is kept as is. Anything else is ignored.
var (
	entryLine   = regexp.MustCompile(`^\s*[-*+]\s+\[([^\]]+)\]\((https?://[^\s)]+)\)(.*)$`)
	headingLine = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	linkSep     = regexp.MustCompile(`^[\s\-–—:：|]+`)
)

// ParseCatalogMarkdown reads a markdown list document line by line.
func ParseCatalogMarkdown(r io.Reader) ([]CatalogEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		entries []CatalogEntry
		section string
	)
	for sc.Scan() {
		line := sc.Text()
		if m := headingLine.FindStringSubmatch(line); m != nil {
			section = strings.TrimSpace(m[1])
			continue
		}
		m := entryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, CatalogEntry{
			Name:        strings.TrimSpace(m[1]),
			URL:         strings.TrimSpace(m[2]),
			Description: strings.TrimSpace(linkSep.ReplaceAllString(m[3], "")),
			Section:     section,
		})
	}
	return entries, sc.Err()
}

// ParseCatalogHTML applies the same rule to a rendered list: every <li> whose
// first link is absolute yields an entry, the rest of the item text is the
// description, and the closest preceding h1-h3 is the section.
func ParseCatalogHTML(r io.Reader) ([]CatalogEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var (
		entries []CatalogEntry
		section string
	)
	doc.Find("h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		if !s.Is("li") {
			section = strings.TrimSpace(s.Text())
			return
		}
		link := s.Find("a[href^='http']").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		desc := strings.TrimSpace(strings.TrimPrefix(text, name))
		entries = append(entries, CatalogEntry{
			Name:        name,
			URL:         strings.TrimSpace(href),
			Description: strings.TrimSpace(linkSep.ReplaceAllString(desc, "")),
			Section:     section,
		})
	})
	return entries, nil
}

// CatalogScanner fetches one large list document and returns a draft per entry.
type CatalogScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*CatalogScanner)(nil)

// NewCatalogScanner wires an HTTP client.
func NewCatalogScanner(client *http.Client) *CatalogScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &CatalogScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (c *CatalogScanner) Name() string {
	return "catalog"
}

// Scan fetches every endpoint; zero matches is an empty result, not an error.
func (c *CatalogScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Candidate, error) {
	var drafts []domain.Candidate
	for _, endpoint := range req.Endpoints {
		body, contentType, err := fetch(ctx, c.client, endpoint.URL)
		if err != nil {
			return nil, err
		}

		var entries []CatalogEntry
		if looksLikeHTML(contentType, body) {
			entries, err = ParseCatalogHTML(bytes.NewReader(body))
		} else {
			entries, err = ParseCatalogMarkdown(bytes.NewReader(body))
		}
		if err != nil {
			return nil, sourceParseError(endpoint.URL, err)
		}

		for _, e := range entries {
			tags := append([]string(nil), req.Tags...)
			if e.Section != "" {
				tags = append(tags, e.Section)
			}
			drafts = append(drafts, domain.Candidate{
				Name:        e.Name,
				URL:         e.URL,
				Description: e.Description,
				Tags:        tags,
				Source:      endpoint.Name,
			})
		}
	}
	return drafts, nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	head := bytes.TrimSpace(body)
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}
