package redis_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	redisstore "github.com/gosuda/crewdeck/internal/store/redis"
)

func TestFeedChannel(t *testing.T) {
	t.Parallel()

	workspaceID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		got := redisstore.FeedChannel(workspaceID)
		assert.Equal(t, "feed:aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", got)
	})

	t.Run("nil UUID", func(t *testing.T) {
		t.Parallel()

		got := redisstore.FeedChannel(uuid.Nil)
		assert.Equal(t, "feed:00000000-0000-0000-0000-000000000000", got)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()

		got := redisstore.FeedChannel(workspaceID)
		assert.True(t, strings.HasPrefix(got, "feed:"), "expected prefix 'feed:', got %q", got)
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		a := redisstore.FeedChannel(workspaceID)
		b := redisstore.FeedChannel(workspaceID)
		assert.Equal(t, a, b)
	})

	t.Run("different inputs produce different outputs", func(t *testing.T) {
		t.Parallel()

		other := uuid.MustParse("11111111-2222-3333-4444-555555555555")
		a := redisstore.FeedChannel(workspaceID)
		b := redisstore.FeedChannel(other)
		assert.NotEqual(t, a, b)
	})
}

func TestRunChannel(t *testing.T) {
	t.Parallel()

	workspaceID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	runID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		got := redisstore.RunChannel(workspaceID, runID)
		assert.Equal(t, "feed:aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee:11111111-2222-3333-4444-555555555555", got)
	})

	t.Run("contains both UUIDs", func(t *testing.T) {
		t.Parallel()

		got := redisstore.RunChannel(workspaceID, runID)
		assert.Contains(t, got, workspaceID.String())
		assert.Contains(t, got, runID.String())
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		a := redisstore.RunChannel(workspaceID, runID)
		b := redisstore.RunChannel(workspaceID, runID)
		assert.Equal(t, a, b)
	})

	t.Run("different runs produce different outputs", func(t *testing.T) {
		t.Parallel()

		other := uuid.MustParse("99999999-8888-7777-6666-555544443333")
		a := redisstore.RunChannel(workspaceID, runID)
		b := redisstore.RunChannel(workspaceID, other)
		assert.NotEqual(t, a, b)
	})
}

func TestChannelFunctions_NoCollisionAcrossTypes(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	feed := redisstore.FeedChannel(id)
	run := redisstore.RunChannel(id, id)

	assert.NotEqual(t, feed, run, "feed and run channels must not collide")
}
