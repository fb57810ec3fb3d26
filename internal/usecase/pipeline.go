package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

const (
	enrichConcurrency = 4
	maxTopicTags      = 5
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.CandidateSource
	Ledger     ports.CandidateLedger
	Metadata   ports.MetadataFetcher
	Capturer   ports.Capturer
	Publisher  ports.Publisher
	Summarizer ports.Summarizer
	Logger     *zap.Logger
	Now        func() time.Time

	// RefreshOnPublish runs an acquisition pass before picking a candidate.
	RefreshOnPublish bool
	AcquireTimeout   time.Duration
	SummarizeTimeout time.Duration
}

// Pipeline implements the fetch and publish workflows.
type Pipeline struct {
	source           ports.CandidateSource
	ledger           ports.CandidateLedger
	metadata         ports.MetadataFetcher
	capturer         ports.Capturer
	publisher        ports.Publisher
	summarizer       ports.Summarizer
	logger           *zap.Logger
	now              func() time.Time
	refreshOnPublish bool
	acquireTimeout   time.Duration
	summarizeTimeout time.Duration
}

// PublishResult describes one publish invocation. Candidate is nil when
// nothing was pending.
type PublishResult struct {
	Candidate   *domain.Candidate
	PublishedAt time.Time
	Inserted    int
}

// FetchResult describes one acquisition pass.
type FetchResult struct {
	Acquired int
	Inserted []domain.Candidate
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:           deps.Source,
		ledger:           deps.Ledger,
		metadata:         deps.Metadata,
		capturer:         deps.Capturer,
		publisher:        deps.Publisher,
		summarizer:       deps.Summarizer,
		logger:           logging.OrNop(deps.Logger),
		now:              now,
		refreshOnPublish: deps.RefreshOnPublish,
		acquireTimeout:   deps.AcquireTimeout,
		summarizeTimeout: deps.SummarizeTimeout,
	}
}

// Fetch acquires drafts, drops every url the ledger already holds and appends
// the rest to the current shard.
func (p *Pipeline) Fetch(ctx context.Context) (FetchResult, error) {
	if p.source == nil || p.ledger == nil {
		return FetchResult{}, fmt.Errorf("%w: fetch needs a source and a ledger", domain.ErrConfig)
	}
	p.ledger.Refresh()

	acquireCtx, cancel := withTimeout(ctx, p.acquireTimeout)
	drafts, err := p.source.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return FetchResult{}, fmt.Errorf("acquire: %w", domain.Timeout("acquire", err))
	}

	fresh, err := p.ledger.FilterNew(ctx, drafts)
	if err != nil {
		return FetchResult{}, fmt.Errorf("dedup: %w", err)
	}
	p.enrich(ctx, fresh)

	inserted, err := p.ledger.AppendUnique(ctx, fresh)
	if err != nil {
		return FetchResult{}, fmt.Errorf("append candidates: %w", err)
	}

	fetchedAt := p.now().UTC()
	shard := p.ledger.CurrentShard()
	p.updateSummary(ctx, func(s *domain.Summary) {
		s.LastFetchTime = &fetchedAt
		if len(inserted) > 0 {
			s.CurrentPendingFile = shard
		}
	})

	p.logger.Info("fetch finished",
		zap.Int("acquired", len(drafts)),
		zap.Int("new", len(fresh)),
		zap.Int("inserted", len(inserted)))
	return FetchResult{Acquired: len(drafts), Inserted: inserted}, nil
}

// Publish picks the earliest pending candidate, captures two images for it,
// posts the album and marks the candidate published.
func (p *Pipeline) Publish(ctx context.Context) (PublishResult, error) {
	if p.ledger == nil || p.publisher == nil || p.capturer == nil {
		return PublishResult{}, fmt.Errorf("%w: publish needs a ledger, a capturer and a publisher", domain.ErrConfig)
	}
	p.ledger.Refresh()

	var result PublishResult
	if p.refreshOnPublish && p.source != nil {
		fetched, err := p.Fetch(ctx)
		if err != nil {
			return PublishResult{}, err
		}
		result.Inserted = len(fetched.Inserted)
	}

	candidate, err := p.ledger.NextPending(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("next pending: %w", err)
	}
	if candidate == nil {
		p.logger.Info("no pending candidate")
		return result, nil
	}
	log := p.logger.With(zap.String("id", candidate.ID), zap.String("url", candidate.URL))

	kind := domain.LinkGeneric
	var meta domain.LinkMetadata
	if p.metadata != nil {
		kind = p.metadata.Classify(candidate.URL)
		meta = p.metadata.Fetch(ctx, candidate.URL)
	}

	images := p.capturer.Capture(ctx, candidate.URL, kind)
	post := buildPost(*candidate, meta, images)

	if err := p.publisher.PublishAlbum(ctx, post); err != nil {
		return PublishResult{}, fmt.Errorf("publish %s: %w", candidate.URL, err)
	}

	at := p.now()
	if err := p.ledger.MarkPublished(ctx, *candidate, at); err != nil {
		return PublishResult{}, fmt.Errorf("mark published %s: %w", candidate.ID, err)
	}
	published := *candidate
	published.Publish(at)
	log.Info("candidate published", zap.String("kind", string(kind)))

	total, countErr := p.ledger.CountPublished(ctx)
	if countErr != nil {
		log.Warn("count published", zap.Error(countErr))
	}
	p.updateSummary(ctx, func(s *domain.Summary) {
		s.LastPublishedID = published.ID
		s.LastPublishedAt = published.PublishedAt
		if countErr == nil {
			s.TotalPublished = total
		} else {
			s.TotalPublished++
		}
	})

	result.Candidate = &published
	result.PublishedAt = *published.PublishedAt
	return result, nil
}

// enrich replaces draft titles and descriptions with generated ones. Failures
// keep the source text.
func (p *Pipeline) enrich(ctx context.Context, drafts []domain.Candidate) {
	if p.summarizer == nil || len(drafts) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range drafts {
		g.Go(func() error {
			d := &drafts[i]
			sctx, cancel := withTimeout(ctx, p.summarizeTimeout)
			defer cancel()

			gen, err := p.summarizer.Summarize(sctx, sourceLabel(*d), d.Name+"\n\n"+d.Description)
			if err != nil {
				p.logger.Warn("summarize draft", zap.String("url", d.URL), zap.Error(err))
				return nil
			}
			if gen.Title != "" {
				d.Name = gen.Title
			}
			if gen.Description != "" {
				d.Description = gen.Description
			}
			return nil
		})
	}
	_ = g.Wait()
}

// updateSummary is best effort: the summary is a cache over the ledger.
func (p *Pipeline) updateSummary(ctx context.Context, mutate func(*domain.Summary)) {
	if err := p.ledger.UpdateSummary(ctx, mutate); err != nil {
		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.DebugLevel
		}
		p.logger.Log(level, "update summary", zap.Error(err))
	}
}

func buildPost(c domain.Candidate, meta domain.LinkMetadata, images []domain.Image) domain.Post {
	post := domain.Post{
		Title:       strings.TrimSpace(c.Name),
		Description: strings.TrimSpace(c.Description),
		URL:         c.URL,
		Tags:        append([]string(nil), c.Tags...),
		Metadata:    meta,
		Images:      images,
	}

	if repo := meta.Repository; repo != nil {
		if post.Title == "" {
			post.Title = repo.FullName
		}
		if post.Description == "" {
			post.Description = repo.Description
		}
		topics := repo.Topics
		if len(topics) > maxTopicTags {
			topics = topics[:maxTopicTags]
		}
		post.Tags = append(post.Tags, topics...)
	}
	if page := meta.Page; page != nil {
		if post.Title == "" {
			post.Title = page.Title
		}
		if post.Description == "" {
			post.Description = page.Description
		}
	}
	if post.Title == "" {
		post.Title = c.URL
	}
	return post
}

func sourceLabel(c domain.Candidate) string {
	if c.Source != "" {
		return c.Source
	}
	if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return c.URL
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
