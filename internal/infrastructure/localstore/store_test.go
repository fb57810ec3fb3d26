package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChannelPublisher/internal/domain"
)

func TestStoreOptimisticWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(t.TempDir())

	_, _, err := s.Read(ctx, "data/websites/2025-10.json")
	require.ErrorIs(t, err, domain.ErrNotFound)

	v1, err := s.Write(ctx, "data/websites/2025-10.json", []byte(`[]`), "", "create")
	require.NoError(t, err)

	_, err = s.Write(ctx, "data/websites/2025-10.json", []byte(`[1]`), "", "create again")
	require.ErrorIs(t, err, domain.ErrConflict)

	v2, err := s.Write(ctx, "data/websites/2025-10.json", []byte(`[1]`), v1, "update")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = s.Write(ctx, "data/websites/2025-10.json", []byte(`[2]`), v1, "stale")
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.Write(ctx, "data/websites/2025-11.json", []byte(`[]`), v1, "vanished")
	require.ErrorIs(t, err, domain.ErrNotFound)

	data, version, err := s.Read(ctx, "data/websites/2025-10.json")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(data))
	assert.Equal(t, v2, version)
}

func TestStoreList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.List(ctx, "data/websites")
	require.ErrorIs(t, err, domain.ErrNotFound)

	for _, name := range []string{"2025-11.json", "2025-09.json"} {
		_, err := s.Write(ctx, "data/websites/"+name, []byte(`[]`), "", "seed")
		require.NoError(t, err)
	}

	names, err := s.List(ctx, "data/websites")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-09.json", "2025-11.json"}, names)
}
