package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ChannelPublisher/internal/domain"
)

// Endpoint is one upstream document a strategy reads (a feed or a catalog page).
type Endpoint struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Endpoints []Endpoint
	Tags      []string
}

// Scanner captures a single acquisition strategy (feed, catalog, etc.).
// Drafts come back without id, status or timestamps; the caller stamps them.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns the scanner for an acquisition mode. An unknown mode is a
// configuration error.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("%w: no scanner for mode %q (have %s)", domain.ErrConfig, name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanners, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
