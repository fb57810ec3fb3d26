// Package linkmeta classifies candidate links and fetches metadata for them.
// Lookups never fail the pipeline: a repository that cannot be queried
// degrades to what its URL path says, a page that cannot be read to nothing.
package linkmeta

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

// Path prefixes on repository hosts that look like owner/repo but are not.
var reservedOwners = map[string]struct{}{
	"about": {}, "apps": {}, "collections": {}, "enterprise": {}, "explore": {},
	"features": {}, "login": {}, "marketplace": {}, "orgs": {}, "pricing": {},
	"settings": {}, "sponsors": {}, "topics": {}, "trending": {}, "users": {},
}

// Resolver implements ports.MetadataFetcher.
type Resolver struct {
	hosts  map[string]struct{}
	github *github.Client
	http   *http.Client
	logger *zap.Logger
}

var _ ports.MetadataFetcher = (*Resolver)(nil)

// New builds a resolver. token may be empty for anonymous API access.
func New(cfg config.LinkMetaConfig, token string, httpClient *http.Client, logger *zap.Logger) (*Resolver, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("linkmeta api url: %w", err)
		}
		gh.BaseURL = base
	}

	hosts := map[string]struct{}{}
	for _, h := range cfg.RepositoryHosts {
		hosts[strings.ToLower(strings.TrimPrefix(h, "www."))] = struct{}{}
	}

	return &Resolver{
		hosts:  hosts,
		github: gh,
		http:   httpClient,
		logger: logging.OrNop(logger),
	}, nil
}

// Classify returns LinkRepository for host/owner/repo[...] URLs on a known
// repository host and LinkGeneric for everything else.
func (r *Resolver) Classify(raw string) domain.LinkKind {
	if _, _, ok := r.repoRef(raw); ok {
		return domain.LinkRepository
	}
	return domain.LinkGeneric
}

// Fetch returns type-specific metadata for raw.
func (r *Resolver) Fetch(ctx context.Context, raw string) domain.LinkMetadata {
	owner, name, ok := r.repoRef(raw)
	if !ok {
		return domain.LinkMetadata{Kind: domain.LinkGeneric, Page: r.page(ctx, raw)}
	}
	return domain.LinkMetadata{Kind: domain.LinkRepository, Repository: r.repository(ctx, owner, name)}
}

func (r *Resolver) repository(ctx context.Context, owner, name string) *domain.RepoMetadata {
	minimal := &domain.RepoMetadata{
		Owner:    owner,
		Name:     name,
		FullName: owner + "/" + name,
		Partial:  true,
	}

	repo, _, err := r.github.Repositories.Get(ctx, owner, name)
	if err != nil {
		r.logger.Warn("repository metadata unavailable, using url only",
			zap.String("repo", minimal.FullName), zap.Error(domain.Timeout("repository lookup", err)))
		return minimal
	}

	return &domain.RepoMetadata{
		Owner:       owner,
		Name:        name,
		FullName:    firstNonEmpty(repo.GetFullName(), minimal.FullName),
		Description: repo.GetDescription(),
		Language:    repo.GetLanguage(),
		Stars:       repo.GetStargazersCount(),
		Topics:      repo.Topics,
	}
}

func (r *Resolver) page(ctx context.Context, raw string) *domain.PageMetadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ChannelPublisher/1.0)")
	req.Header.Set("Accept", "text/html")

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Warn("page metadata unavailable", zap.String("url", raw), zap.Error(domain.Timeout("page lookup", err)))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("page metadata unavailable", zap.String("url", raw), zap.String("status", resp.Status))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		r.logger.Warn("page metadata unparsable", zap.String("url", raw), zap.Error(err))
		return nil
	}

	meta := &domain.PageMetadata{
		Title: firstNonEmpty(
			attr(doc, `meta[property="og:title"]`, "content"),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Description: firstNonEmpty(
			attr(doc, `meta[property="og:description"]`, "content"),
			attr(doc, `meta[name="description"]`, "content"),
		),
	}
	return meta
}

func (r *Resolver) repoRef(raw string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, known := r.hosts[host]; !known {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if _, reserved := reservedOwners[strings.ToLower(parts[0])]; reserved {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
