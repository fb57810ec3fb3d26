package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
	"ChannelPublisher/internal/scanner"
)

// StrategySource implements CandidateSource via the scanner registered for
// the configured acquisition mode.
type StrategySource struct {
	registry *scanner.Registry
	cfg      config.AcquisitionConfig
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with the acquisition settings.
func NewStrategySource(reg *scanner.Registry, cfg config.AcquisitionConfig, log *zap.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logging.OrNop(log),
	}
}

// Acquire runs the mode's scanner and stamps drafts as new pending candidates.
func (s *StrategySource) Acquire(ctx context.Context) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("acquisition mode %s: %w", s.cfg.Mode, err)
	}

	req := scanner.Request{Endpoints: s.endpoints(), Tags: s.cfg.Tags}
	s.logger.Debug("acquire", zap.String("mode", s.cfg.Mode), zap.Int("endpoints", len(req.Endpoints)))

	drafts, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.cfg.Mode, err)
	}

	now := s.now().UTC()
	month := now.Format(domain.MonthLayout)
	for i := range drafts {
		d := &drafts[i]
		d.ID = s.newID()
		d.Status = domain.StatusPending
		d.CreatedAt = now
		d.PublishedAt = nil
		d.Month = month
		d.Tags = dedupTags(d.Tags)
		if d.Name == "" {
			d.Name = d.URL
		}
	}

	s.logger.Debug("acquire done", zap.String("mode", s.cfg.Mode), zap.Int("drafts", len(drafts)))
	return drafts, nil
}

func (s *StrategySource) endpoints() []scanner.Endpoint {
	switch s.cfg.Mode {
	case config.ModeFeed:
		endpoints := make([]scanner.Endpoint, 0, len(s.cfg.Feeds))
		for _, feed := range s.cfg.Feeds {
			endpoints = append(endpoints, scanner.Endpoint{Name: feed, URL: feed})
		}
		return endpoints
	case config.ModeCatalog:
		return []scanner.Endpoint{{Name: "catalog", URL: s.cfg.CatalogURL}}
	default:
		return nil
	}
}

func dedupTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
