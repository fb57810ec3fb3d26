package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"ChannelPublisher/internal/domain"
)

// download fetches raw into a temp file, following at most maxRedirects
// redirects by hand. The returned release func removes the file; on error
// nothing is left behind.
func download(ctx context.Context, client *http.Client, raw string, maxRedirects int) (path string, release func(), err error) {
	current := raw
	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", domain.ErrDownload, current, err)
		}
		req.Header.Set("User-Agent", "ChannelPublisher/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return "", nil, domain.Timeout("download", fmt.Errorf("%w: %s: %w", domain.ErrDownload, current, err))
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()

			if location == "" {
				return "", nil, fmt.Errorf("%w: %s: redirect without location", domain.ErrDownload, current)
			}
			if hops >= maxRedirects {
				return "", nil, fmt.Errorf("%w: %s: more than %d hops", domain.ErrRedirectLoop, raw, maxRedirects)
			}
			next, err := resolve(current, location)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s: bad location %q", domain.ErrDownload, current, location)
			}
			current = next
			continue
		}

		path, err := saveBody(resp, current)
		if err != nil {
			return "", nil, err
		}
		return path, func() { _ = os.Remove(path) }, nil
	}
}

func saveBody(resp *http.Response, source string) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %s", domain.ErrDownload, source, resp.Status)
	}

	file, err := os.CreateTemp("", "channel-publisher-*.img")
	if err != nil {
		return "", fmt.Errorf("%w: temp file: %v", domain.ErrDownload, err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", domain.Timeout("download", fmt.Errorf("%w: %s: %w", domain.ErrDownload, source, err))
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("%w: close temp file: %v", domain.ErrDownload, err)
	}
	return file.Name(), nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolve(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
