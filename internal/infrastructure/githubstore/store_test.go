package githubstore

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
)

// fakeContents is a tiny in-memory implementation of the contents API.
type fakeContents struct {
	mu    sync.Mutex
	files map[string][]byte
	refs  []string
}

func (f *fakeContents) sha(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/repos/owner/repo/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	p := strings.TrimPrefix(r.URL.Path, prefix)
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		f.refs = append(f.refs, r.URL.Query().Get("ref"))
		if data, ok := f.files[p]; ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":     "file",
				"name":     path.Base(p),
				"path":     p,
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString(data),
				"sha":      f.sha(data),
			})
			return
		}
		var entries []map[string]any
		for name := range f.files {
			if path.Dir(name) == p {
				entries = append(entries, map[string]any{"type": "file", "name": path.Base(name), "path": name})
			}
		}
		if len(entries) == 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(entries)
	case http.MethodPut:
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current, exists := f.files[p]
		switch {
		case body.SHA == "" && exists:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Invalid request.\n\n\"sha\" wasn't supplied."}`))
			return
		case body.SHA != "" && !exists:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		case body.SHA != "" && body.SHA != f.sha(current):
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"data/x.json does not match"}`))
			return
		}
		data, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.files[p] = data
		status := http.StatusOK
		if !exists {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"name": path.Base(p), "path": p, "sha": f.sha(data)},
			"commit":  map[string]any{"message": body.Message},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeContents) {
	t.Helper()

	fake := &fakeContents{files: map[string][]byte{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := New(config.StoreConfig{
		Owner:      "owner",
		Repo:       "repo",
		Branch:     "main",
		Token:      "secret",
		APIBaseURL: server.URL,
	}, server.Client())
	require.NoError(t, err)
	return store, fake
}

func TestStoreReadWriteConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, fake := newTestStore(t)

	_, _, err := store.Read(ctx, "data/config.json")
	require.ErrorIs(t, err, domain.ErrNotFound)

	v1, err := store.Write(ctx, "data/config.json", []byte(`{"totalPublished":1}`), "", "create config")
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	data, version, err := store.Read(ctx, "data/config.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalPublished":1}`, string(data))
	assert.Equal(t, v1, version)

	_, err = store.Write(ctx, "data/config.json", []byte(`{}`), "", "blind create")
	require.ErrorIs(t, err, domain.ErrConflict)

	v2, err := store.Write(ctx, "data/config.json", []byte(`{"totalPublished":2}`), v1, "bump")
	require.NoError(t, err)

	_, err = store.Write(ctx, "data/config.json", []byte(`{"totalPublished":3}`), v1, "stale")
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = store.Write(ctx, "data/websites/2030-01.json", []byte(`[]`), v2, "gone")
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Contains(t, fake.refs, "main")
}

func TestStoreList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, fake := newTestStore(t)
	fake.files["data/websites/2025-10.json"] = []byte(`[]`)
	fake.files["data/websites/2025-09.json"] = []byte(`[]`)
	fake.files["data/config.json"] = []byte(`{}`)

	names, err := store.List(ctx, "data/websites")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-09.json", "2025-10.json"}, names)

	_, err = store.List(ctx, "data/missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
