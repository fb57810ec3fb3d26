package ports

import (
	"context"
	"time"

	"ChannelPublisher/internal/domain"
)

// DocumentBackend is a remote versioned file store. Version tokens are opaque;
// an empty expected version means "create".
type DocumentBackend interface {
	Read(ctx context.Context, path string) (data []byte, version string, err error)
	Write(ctx context.Context, path string, data []byte, expectedVersion, message string) (string, error)
	List(ctx context.Context, dir string) ([]string, error)
}

// CandidateLedger is the deduplicating record of candidates and its summary.
type CandidateLedger interface {
	// Refresh discards anything read by a previous invocation.
	Refresh()
	CurrentShard() string
	FilterNew(ctx context.Context, drafts []domain.Candidate) ([]domain.Candidate, error)
	AppendUnique(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error)
	NextPending(ctx context.Context) (*domain.Candidate, error)
	MarkPublished(ctx context.Context, candidate domain.Candidate, at time.Time) error
	CountPublished(ctx context.Context) (int, error)
	UpdateSummary(ctx context.Context, mutate func(*domain.Summary)) error
}

// CandidateSource turns a raw upstream source into candidate drafts.
type CandidateSource interface {
	Acquire(ctx context.Context) ([]domain.Candidate, error)
}

// Summarizer writes a title and description for a snippet of text.
type Summarizer interface {
	Summarize(ctx context.Context, source, snippet string) (domain.Generated, error)
}

// ImageGenerator returns images for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, count int) ([]domain.Image, error)
}

// Renderer returns raster images of the states of a rendered page.
type Renderer interface {
	Render(ctx context.Context, url string, kind domain.LinkKind) ([][]byte, error)
}

// MetadataFetcher resolves type-specific metadata for a link.
type MetadataFetcher interface {
	Classify(url string) domain.LinkKind
	Fetch(ctx context.Context, url string) domain.LinkMetadata
}

// Capturer produces exactly two images for a candidate link.
type Capturer interface {
	Capture(ctx context.Context, url string, kind domain.LinkKind) []domain.Image
}

// Publisher posts an album to the messaging channel.
type Publisher interface {
	PublishAlbum(ctx context.Context, post domain.Post) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
