package docstore

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/infrastructure/localstore"
)

type countingBackend struct {
	*localstore.Store
	reads atomic.Int32
}

func (c *countingBackend) Read(ctx context.Context, path string) ([]byte, string, error) {
	c.reads.Add(1)
	return c.Store.Read(ctx, path)
}

func TestClientCachesReadsAndInvalidatesOnWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &countingBackend{Store: localstore.New(t.TempDir())}
	client := New(backend, nil)

	_, err := client.Read(ctx, "data/config.json", &domain.Summary{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	version, err := client.Write(ctx, "data/config.json", domain.Summary{TotalPublished: 3}, "", "create")
	require.NoError(t, err)

	var got domain.Summary
	readVersion, err := client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)
	assert.Equal(t, version, readVersion)
	assert.Equal(t, 3, got.TotalPublished)

	_, err = client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.reads.Load(), "only the initial miss reaches the backend")

	client.Forget("data/config.json")
	_, err = client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.reads.Load())
}

func TestClientResetDropsEveryCachedDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &countingBackend{Store: localstore.New(t.TempDir())}
	client := New(backend, nil)
	other := New(backend.Store, nil)

	version, err := other.Write(ctx, "data/config.json", domain.Summary{TotalPublished: 1}, "", "create")
	require.NoError(t, err)

	var got domain.Summary
	_, err = client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)

	_, err = other.Write(ctx, "data/config.json", domain.Summary{TotalPublished: 2}, version, "update")
	require.NoError(t, err)

	got = domain.Summary{}
	_, err = client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalPublished, "cached until reset")

	client.Reset()
	got = domain.Summary{}
	_, err = client.Read(ctx, "data/config.json", &got)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalPublished)
	assert.Equal(t, int32(2), backend.reads.Load())
}

func TestClientStaleVersionConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := localstore.New(t.TempDir())
	first := New(backend, nil)
	second := New(backend, nil)

	_, err := first.Write(ctx, "data/websites/2025-10.json", []domain.Candidate{}, "", "create")
	require.NoError(t, err)

	var shard []domain.Candidate
	stale, err := second.Read(ctx, "data/websites/2025-10.json", &shard)
	require.NoError(t, err)

	_, err = first.Write(ctx, "data/websites/2025-10.json", []domain.Candidate{{ID: "a"}}, stale, "race winner")
	require.NoError(t, err)

	_, err = second.Write(ctx, "data/websites/2025-10.json", []domain.Candidate{{ID: "b"}}, stale, "race loser")
	require.ErrorIs(t, err, domain.ErrConflict)

	fresh, err := second.Read(ctx, "data/websites/2025-10.json", &shard)
	require.NoError(t, err)
	_, err = second.Write(ctx, "data/websites/2025-10.json", append(shard, domain.Candidate{ID: "b"}), fresh, "retry")
	require.NoError(t, err)
}

func TestClientMalformedDocumentIsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := localstore.New(t.TempDir())
	_, err := backend.Write(ctx, "data/websites/2025-10.json", []byte(`[{"id": "trunc`), "", "corrupt")
	require.NoError(t, err)

	client := New(backend, nil)
	var shard []domain.Candidate
	version, err := client.Read(ctx, "data/websites/2025-10.json", &shard)
	require.NoError(t, err)
	assert.Empty(t, shard)
	assert.NotEmpty(t, version)

	_, err = client.Write(ctx, "data/websites/2025-10.json", []domain.Candidate{{ID: "ok"}}, version, "repair")
	require.NoError(t, err)
}

func TestClientListMissingDirectory(t *testing.T) {
	t.Parallel()

	client := New(localstore.New(t.TempDir()), nil)
	names, err := client.List(context.Background(), "data/websites")
	require.NoError(t, err)
	assert.Empty(t, names)
}
