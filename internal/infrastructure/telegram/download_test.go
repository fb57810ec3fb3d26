package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/domain"
)

func noFollow() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

// chain serves /hop/N redirecting to /hop/N-1 and /hop/0 serving the image.
func chain(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/hop/%d", &n); err != nil {
			http.NotFound(w, r)
			return
		}
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadFollowsRedirectBudget(t *testing.T) {
	srv := chain(t)

	path, release, err := download(context.Background(), noFollow(), srv.URL+"/hop/3", 3)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadRejectsTooManyRedirects(t *testing.T) {
	srv := chain(t)

	_, _, err := download(context.Background(), noFollow(), srv.URL+"/hop/4", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRedirectLoop)
}

func TestDownloadNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, _, err := download(context.Background(), noFollow(), srv.URL+"/img.png", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownload)
	assert.NotErrorIs(t, err, domain.ErrRedirectLoop)
}

func TestDownloadRedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	_, _, err := download(context.Background(), noFollow(), srv.URL, 3)
	assert.ErrorIs(t, err, domain.ErrDownload)
}

func TestResolveRelativeLocation(t *testing.T) {
	got, err := resolve("https://example.com/a/b.png", "../c.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/c.png", got)
}
