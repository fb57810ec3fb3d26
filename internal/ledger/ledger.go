// Package ledger keeps the month-sharded candidate ledger and its summary
// document on top of the versioned document store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ChannelPublisher/internal/docstore"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

// Ledger is the append-only record of candidates.
type Ledger struct {
	store      *docstore.Client
	dataDir    string
	configPath string
	now        func() time.Time
	logger     *zap.Logger
}

var _ ports.CandidateLedger = (*Ledger)(nil)

// Options configure a Ledger.
type Options struct {
	DataDir    string
	ConfigPath string
	Now        func() time.Time
	Logger     *zap.Logger
}

// New wires a ledger over a document store client.
func New(store *docstore.Client, opts Options) *Ledger {
	if opts.DataDir == "" {
		opts.DataDir = "data/websites"
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "data/config.json"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:      store,
		dataDir:    strings.TrimSuffix(opts.DataDir, "/"),
		configPath: opts.ConfigPath,
		now:        opts.Now,
		logger:     logging.OrNop(opts.Logger),
	}
}

// Refresh starts a new invocation: cached shards and summary are discarded
// and re-read from the store on next use.
func (l *Ledger) Refresh() {
	l.store.Reset()
}

// CurrentShard is the shard new candidates are written to.
func (l *Ledger) CurrentShard() string {
	return domain.ShardFileFor(l.now().UTC())
}

// IsDuplicate scans every shard and reports whether any candidate has url.
func (l *Ledger) IsDuplicate(ctx context.Context, url string) (bool, error) {
	key := domain.URLKey(url)
	found := false
	err := l.eachShard(ctx, func(_ string, shard []domain.Candidate) bool {
		for _, c := range shard {
			if domain.URLKey(c.URL) == key {
				found = true
				return false
			}
		}
		return true
	})
	return found, err
}

// FilterNew drops drafts whose url is already in the ledger or repeated in
// the batch itself. All shards are loaded once for the whole batch.
func (l *Ledger) FilterNew(ctx context.Context, drafts []domain.Candidate) ([]domain.Candidate, error) {
	seen := map[string]struct{}{}
	err := l.eachShard(ctx, func(_ string, shard []domain.Candidate) bool {
		for _, c := range shard {
			seen[domain.URLKey(c.URL)] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	fresh := make([]domain.Candidate, 0, len(drafts))
	for _, d := range drafts {
		key := domain.URLKey(d.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, d)
	}
	return fresh, nil
}

// AppendUnique adds candidates to the current month's shard, skipping any url
// that shard already holds. A lost write race is retried once from a fresh
// read; a second conflict is returned.
func (l *Ledger) AppendUnique(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	file := l.CurrentShard()
	month := strings.TrimSuffix(file, ".json")

	var inserted []domain.Candidate
	err := l.retryOnConflict(ctx, file, func(shard []domain.Candidate) ([]domain.Candidate, bool) {
		existing := make(map[string]struct{}, len(shard))
		for _, c := range shard {
			existing[domain.URLKey(c.URL)] = struct{}{}
		}

		inserted = inserted[:0]
		for _, c := range candidates {
			key := domain.URLKey(c.URL)
			if _, dup := existing[key]; dup {
				continue
			}
			existing[key] = struct{}{}
			c.Month = month
			inserted = append(inserted, c)
		}
		if len(inserted) == 0 {
			return nil, false
		}
		return append(shard, inserted...), true
	}, "Add new sites to "+file)
	if err != nil {
		return nil, err
	}

	l.logger.Info("candidates appended", zap.String("shard", file), zap.Int("inserted", len(inserted)))
	return inserted, nil
}

// NextPending returns the earliest pending candidate of the target shard
// (from the summary, defaulting to the current month). When that shard has
// nothing pending the remaining shards are searched, oldest first.
func (l *Ledger) NextPending(ctx context.Context) (*domain.Candidate, error) {
	target := l.CurrentShard()
	if summary, _, err := l.readSummary(ctx); err == nil && summary.CurrentPendingFile != "" {
		target = summary.CurrentPendingFile
	}

	shard, err := l.readShard(ctx, target)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if next := earliestPending(shard); next != nil {
		return next, nil
	}

	var found *domain.Candidate
	err = l.eachShard(ctx, func(name string, shard []domain.Candidate) bool {
		if name == target {
			return true
		}
		found = earliestPending(shard)
		return found == nil
	})
	return found, err
}

// MarkPublished re-reads the candidate's shard and flips it to published.
// A candidate that vanished or was already published is left alone.
func (l *Ledger) MarkPublished(ctx context.Context, candidate domain.Candidate, at time.Time) error {
	file := candidate.ShardFile()
	l.store.Forget(l.shardPath(file))

	err := l.retryOnConflict(ctx, file, func(shard []domain.Candidate) ([]domain.Candidate, bool) {
		for i := range shard {
			if !sameCandidate(shard[i], candidate) {
				continue
			}
			if shard[i].IsPublished() {
				return nil, false
			}
			shard[i].Publish(at)
			return shard, true
		}
		l.logger.Warn("candidate not found while marking published", zap.String("id", candidate.ID), zap.String("shard", file))
		return nil, false
	}, fmt.Sprintf("Mark %s published", candidate.ID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// CountPublished walks every shard and counts published candidates.
func (l *Ledger) CountPublished(ctx context.Context) (int, error) {
	total := 0
	err := l.eachShard(ctx, func(_ string, shard []domain.Candidate) bool {
		for _, c := range shard {
			if c.IsPublished() {
				total++
			}
		}
		return true
	})
	return total, err
}

// UpdateSummary applies mutate to the summary document and commits it. A
// missing document starts from defaults.
func (l *Ledger) UpdateSummary(ctx context.Context, mutate func(*domain.Summary)) error {
	for attempt := 0; ; attempt++ {
		summary, version, err := l.readSummary(ctx)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if summary.CurrentPendingFile == "" {
			summary.CurrentPendingFile = l.CurrentShard()
		}
		mutate(&summary)

		_, err = l.store.Write(ctx, l.configPath, summary, version, "Update "+path.Base(l.configPath))
		if errors.Is(err, domain.ErrConflict) && attempt == 0 {
			l.store.Forget(l.configPath)
			continue
		}
		return err
	}
}

func (l *Ledger) readSummary(ctx context.Context) (domain.Summary, string, error) {
	var summary domain.Summary
	version, err := l.store.Read(ctx, l.configPath, &summary)
	return summary, version, err
}

// retryOnConflict runs a read-modify-write on one shard. mutate returns the
// new shard and whether to write it.
func (l *Ledger) retryOnConflict(ctx context.Context, file string, mutate func([]domain.Candidate) ([]domain.Candidate, bool), message string) error {
	p := l.shardPath(file)
	for attempt := 0; ; attempt++ {
		var shard []domain.Candidate
		version, err := l.store.Read(ctx, p, &shard)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("read shard %s: %w", file, err)
		}

		next, write := mutate(shard)
		if !write {
			return nil
		}

		_, err = l.store.Write(ctx, p, next, version, message)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrConflict) && attempt == 0 {
			l.logger.Info("shard write lost a race, retrying", zap.String("shard", file))
			l.store.Forget(p)
			continue
		}
		return fmt.Errorf("write shard %s: %w", file, err)
	}
}

func (l *Ledger) readShard(ctx context.Context, file string) ([]domain.Candidate, error) {
	var shard []domain.Candidate
	if _, err := l.store.Read(ctx, l.shardPath(file), &shard); err != nil {
		return nil, err
	}
	return shard, nil
}

// eachShard visits shards in ascending month order until visit returns false.
func (l *Ledger) eachShard(ctx context.Context, visit func(name string, shard []domain.Candidate) bool) error {
	names, err := l.store.List(ctx, l.dataDir)
	if err != nil {
		return fmt.Errorf("list shards: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		shard, err := l.readShard(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read shard %s: %w", name, err)
		}
		if !visit(name, shard) {
			return nil
		}
	}
	return nil
}

func (l *Ledger) shardPath(file string) string {
	return l.dataDir + "/" + file
}

func earliestPending(shard []domain.Candidate) *domain.Candidate {
	pending := make([]domain.Candidate, 0, len(shard))
	for _, c := range shard {
		if c.Status.IsPending() {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	next := pending[0]
	return &next
}

func sameCandidate(a, b domain.Candidate) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return domain.URLKey(a.URL) == domain.URLKey(b.URL)
}
