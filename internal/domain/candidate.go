package domain

import (
	"net/url"
	"strings"
	"time"
)

// MonthLayout names shard files and the Candidate.Month key.
const MonthLayout = "2006-01"

// Status is the publication state of a candidate.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
)

// Normalize folds case and surrounding whitespace so hand-edited shards still compare.
func (s Status) Normalize() Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsPending reports whether the status is pending after normalization.
func (s Status) IsPending() bool {
	return s.Normalize() == StatusPending
}

// Candidate is one publishable item tracked by the ledger.
type Candidate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Status      Status     `json:"status"`
	Source      string     `json:"source,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt"`
	Month       string     `json:"month"`
}

// ShardFile returns the shard file name the candidate belongs to.
func (c Candidate) ShardFile() string {
	month := c.Month
	if month == "" {
		month = c.CreatedAt.Format(MonthLayout)
	}
	return month + ".json"
}

// IsPublished reports whether the candidate went out already.
func (c Candidate) IsPublished() bool {
	return c.Status.Normalize() == StatusPublished
}

// Publish flips the candidate to published. publishedAt never precedes createdAt.
func (c *Candidate) Publish(at time.Time) {
	if at.Before(c.CreatedAt) {
		at = c.CreatedAt
	}
	at = at.UTC()
	c.Status = StatusPublished
	c.PublishedAt = &at
}

// ShardFileFor returns the shard file name for a moment in time.
func ShardFileFor(t time.Time) string {
	return t.Format(MonthLayout) + ".json"
}

// URLKey is the dedup key for a candidate URL: scheme and host lower-cased,
// fragment and trailing slash dropped.
func URLKey(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawPath = ""
	return parsed.String()
}

// Summary is the process-wide pointer document (data/config.json). It is a
// cache over the ledger and may be stale.
type Summary struct {
	CurrentPendingFile string     `json:"currentPendingFile"`
	LastPublishedID    string     `json:"lastPublishedId,omitempty"`
	LastPublishedAt    *time.Time `json:"lastPublishedAt,omitempty"`
	TotalPublished     int        `json:"totalPublished"`
	LastFetchTime      *time.Time `json:"lastFetchTime,omitempty"`
}
