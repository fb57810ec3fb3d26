package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutWrapsDeadline(t *testing.T) {
	t.Parallel()

	err := Timeout("fetch feed", fmt.Errorf("do request: %w", context.DeadlineExceeded))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	plain := errors.New("boom")
	assert.Same(t, plain, Timeout("fetch feed", plain))
	assert.NoError(t, Timeout("fetch feed", nil))
}

func TestChannelErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("send album: %w", &ChannelError{Op: "sendMediaGroup", Description: "Bad Request: too many media", Kind: ErrPublish})
	assert.ErrorIs(t, err, ErrPublish)

	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, "Bad Request: too many media", chErr.Description)
	assert.Contains(t, err.Error(), "too many media")
}

func TestCandidatePublishNeverPrecedesCreation(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.October, 3, 12, 0, 0, 0, time.UTC)
	c := Candidate{Status: StatusPending, CreatedAt: created}

	c.Publish(created.Add(-time.Hour))
	require.NotNil(t, c.PublishedAt)
	assert.True(t, c.IsPublished())
	assert.False(t, c.PublishedAt.Before(c.CreatedAt))
}

func TestStatusNormalize(t *testing.T) {
	t.Parallel()

	assert.True(t, Status(" Pending ").IsPending())
	assert.True(t, Status("PENDING").IsPending())
	assert.False(t, Status("published").IsPending())
}

func TestURLKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, URLKey("https://x.test/a"), URLKey(" HTTPS://X.test/a/#readme "))
	assert.NotEqual(t, URLKey("https://x.test/a"), URLKey("https://x.test/b"))
	assert.Equal(t, "2025-10.json", Candidate{CreatedAt: time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)}.ShardFile())
}
