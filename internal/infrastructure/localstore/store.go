package localstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/ports"
)

// Store keeps documents under a local directory. The version token of a
// document is the sha256 of its bytes.
type Store struct {
	root string
	mu   sync.Mutex
}

var _ ports.DocumentBackend = (*Store)(nil)

// New roots the store at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Read returns the document bytes and their version.
func (s *Store) Read(ctx context.Context, path string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, version(data), nil
}

// Write stores data when expectedVersion matches the current version.
func (s *Store) Write(ctx context.Context, path string, data []byte, expectedVersion, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.abs(path)
	current, err := os.ReadFile(target)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case expectedVersion == "" && exists:
		return "", fmt.Errorf("%s already exists: %w", path, domain.ErrConflict)
	case expectedVersion != "" && !exists:
		return "", fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	case expectedVersion != "" && version(current) != expectedVersion:
		return "", fmt.Errorf("%s changed since %s: %w", path, short(expectedVersion), domain.ErrConflict)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".write-*")
	if err != nil {
		return "", fmt.Errorf("temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	return version(data), nil
}

// List returns the file names directly under dir, sorted.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func version(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func short(v string) string {
	if len(v) > 8 {
		return v[:8]
	}
	return v
}
