package githubstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/ports"
)

// Store keeps documents in a GitHub repository through the contents API. The
// blob SHA of a file is its version token.
type Store struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

var _ ports.DocumentBackend = (*Store)(nil)

// New builds a store from configuration. A non-empty APIBaseURL points the
// client at a GitHub Enterprise or test server.
func New(cfg config.StoreConfig, httpClient *http.Client) (*Store, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("store api url: %w", err)
		}
		client.BaseURL = base
	}

	return &Store{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: cfg.Branch,
	}, nil
}

// Read fetches a file at the configured branch.
func (s *Store) Read(ctx context.Context, filePath string) ([]byte, string, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, filePath, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		return nil, "", classify("read "+filePath, resp, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("read %s: path is a directory: %w", filePath, domain.ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", filePath, err)
	}
	return []byte(content), file.GetSHA(), nil
}

// Write creates or updates a file. The API rejects a stale SHA with 409 and a
// missing SHA for an existing file with 422; both surface as ErrConflict.
func (s *Store) Write(ctx context.Context, filePath string, data []byte, expectedVersion, message string) (string, error) {
	if message == "" {
		message = "Update " + path.Base(filePath)
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		Branch:  github.String(s.branch),
		Committer: &github.CommitAuthor{
			Name:  github.String("channel-publisher"),
			Email: github.String("channel-publisher@users.noreply.github.com"),
			Date:  &github.Timestamp{Time: time.Now().UTC()},
		},
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if expectedVersion == "" {
		res, resp, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, filePath, opts)
	} else {
		opts.SHA = github.String(expectedVersion)
		res, resp, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, filePath, opts)
	}
	if err != nil {
		return "", classify("write "+filePath, resp, err)
	}
	if res == nil || res.Content == nil {
		return "", fmt.Errorf("write %s: response without content", filePath)
	}
	return res.Content.GetSHA(), nil
}

// List returns the names of the files directly under dir, sorted.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	_, entries, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, dir, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		return nil, classify("list "+dir, resp, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		names = append(names, entry.GetName())
	}
	sort.Strings(names)
	return names, nil
}

func classify(op string, resp *github.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: rate limited until %s: %w", op, rateErr.Rate.Reset.Format(time.RFC3339), err)
	}
	return domain.Timeout(op, fmt.Errorf("%s: %w", op, err))
}
