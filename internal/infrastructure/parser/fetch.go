package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"ChannelPublisher/internal/domain"
)

const (
	userAgent    = "ChannelPublisher/1.0 (+https://github.com)"
	maxSourceLen = 8 << 20
)

// fetch GETs a source document. Transport failures and non-200 answers are
// ErrSourceFetch; deadline expiry additionally matches ErrTimeout.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request %s: %v", domain.ErrSourceFetch, url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", domain.Timeout("fetch "+url, fmt.Errorf("%w: %s: %w", domain.ErrSourceFetch, url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %s returned %s", domain.ErrSourceFetch, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceLen))
	if err != nil {
		return nil, "", domain.Timeout("read "+url, fmt.Errorf("%w: read %s: %w", domain.ErrSourceFetch, url, err))
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func sourceParseError(url string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrSourceParse, url, err)
}
