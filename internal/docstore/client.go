// Package docstore is the typed JSON client over a versioned document backend.
//
// Reads are cached per Client until Reset. Long-lived processes call Reset at
// the start of every invocation so other writers' commits become visible.
// Writes go through optimistic concurrency: the caller passes the version it
// read, and a stale version surfaces as domain.ErrConflict.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

type cachedDoc struct {
	data    []byte
	version string
}

// Client reads and writes JSON documents.
type Client struct {
	backend ports.DocumentBackend
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedDoc
}

// New wraps a backend with a fresh read cache.
func New(backend ports.DocumentBackend, logger *zap.Logger) *Client {
	return &Client{
		backend: backend,
		logger:  logging.OrNop(logger),
		cache:   map[string]cachedDoc{},
	}
}

// Read decodes the document at path into v and returns its version token.
// Missing documents return domain.ErrNotFound. Malformed JSON leaves v at its
// zero value and still returns the version so the document can be rewritten.
func (c *Client) Read(ctx context.Context, path string, v any) (string, error) {
	doc, err := c.load(ctx, path)
	if err != nil {
		return "", err
	}

	if len(doc.data) > 0 {
		if err := json.Unmarshal(doc.data, v); err != nil {
			c.logger.Warn("malformed document treated as empty", zap.String("path", path), zap.Error(err))
		}
	}
	return doc.version, nil
}

// Write encodes v to path. An empty expectedVersion creates the document.
func (c *Client) Write(ctx context.Context, path string, v any, expectedVersion, message string) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	payload = append(payload, '\n')

	c.invalidate(path)

	version, err := c.backend.Write(ctx, path, payload, expectedVersion, message)
	if err != nil {
		return "", domain.Timeout("write "+path, err)
	}

	c.mu.Lock()
	c.cache[path] = cachedDoc{data: payload, version: version}
	c.mu.Unlock()

	c.logger.Debug("document written", zap.String("path", path), zap.String("version", version))
	return version, nil
}

// List returns file names under dir. A missing directory is an empty list.
func (c *Client) List(ctx context.Context, dir string) ([]string, error) {
	names, err := c.backend.List(ctx, dir)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Timeout("list "+dir, err)
	}
	return names, nil
}

// Forget drops the cached copy of path so the next Read hits the backend.
func (c *Client) Forget(path string) {
	c.invalidate(path)
}

// Reset drops every cached document.
func (c *Client) Reset() {
	c.mu.Lock()
	c.cache = map[string]cachedDoc{}
	c.mu.Unlock()
}

func (c *Client) load(ctx context.Context, path string) (cachedDoc, error) {
	c.mu.Lock()
	doc, ok := c.cache[path]
	c.mu.Unlock()
	if ok {
		return doc, nil
	}

	data, version, err := c.backend.Read(ctx, path)
	if err != nil {
		return cachedDoc{}, domain.Timeout("read "+path, err)
	}

	doc = cachedDoc{data: data, version: version}
	c.mu.Lock()
	c.cache[path] = doc
	c.mu.Unlock()
	return doc, nil
}

func (c *Client) invalidate(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
}
