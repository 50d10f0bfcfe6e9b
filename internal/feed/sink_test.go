package feed_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/feed"
)

// recordingRepo captures appended feed entries.
type recordingRepo struct {
	entries   []*domain.FeedEntry
	appendErr error
}

func (r *recordingRepo) Append(_ context.Context, e *domain.FeedEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingRepo) ListByRun(context.Context, uuid.UUID, uuid.UUID, int, int) ([]*domain.FeedEntry, error) {
	return r.entries, nil
}

func (r *recordingRepo) CountByRun(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return int64(len(r.entries)), nil
}

func chatMessage() *domain.OutwardMessage {
	return &domain.OutwardMessage{
		ID:       uuid.New(),
		RunID:    uuid.New(),
		SenderID: "crew-1",
		Kind:     domain.MessageChat,
		Contents: []*domain.ContentNode{{
			ID:     uuid.New(),
			Kind:   domain.ContentText,
			Status: domain.StatusCompleted,
			Text:   &domain.TextContent{Text: "hello"},
		}},
		Timestamp: time.Now().Truncate(time.Second),
	}
}

func TestRecorder_Deliver(t *testing.T) {
	t.Parallel()

	t.Run("records the message with the bound project", func(t *testing.T) {
		t.Parallel()

		repo := &recordingRepo{}
		workspaceID := uuid.New()
		rec := feed.NewRecorder(repo, workspaceID, func() string { return "alpha" })
		msg := chatMessage()

		require.NoError(t, rec.Deliver(context.Background(), msg))

		require.Len(t, repo.entries, 1)
		entry := repo.entries[0]
		assert.Equal(t, workspaceID, entry.WorkspaceID)
		assert.Equal(t, "alpha", entry.Project)
		assert.Equal(t, msg.RunID, entry.RunID)
		assert.Equal(t, msg.ID, entry.MessageID)
		assert.Equal(t, domain.MessageChat, entry.Kind)
		assert.Equal(t, "crew-1", entry.SenderID)
		assert.Equal(t, msg.Timestamp, entry.CreatedAt)

		// The payload is the full message, replayable as-is.
		var replayed domain.OutwardMessage
		require.NoError(t, json.Unmarshal(entry.Payload, &replayed))
		assert.Equal(t, msg.ID, replayed.ID)
		require.Len(t, replayed.Contents, 1)
		assert.Equal(t, "hello", replayed.Contents[0].Text.Text)
	})

	t.Run("nil project func records empty project", func(t *testing.T) {
		t.Parallel()

		repo := &recordingRepo{}
		rec := feed.NewRecorder(repo, uuid.New(), nil)

		require.NoError(t, rec.Deliver(context.Background(), chatMessage()))

		require.Len(t, repo.entries, 1)
		assert.Empty(t, repo.entries[0].Project)
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		t.Parallel()

		repo := &recordingRepo{appendErr: errors.New("db down")}
		rec := feed.NewRecorder(repo, uuid.New(), nil)

		err := rec.Deliver(context.Background(), chatMessage())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestFanoutSink(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every child", func(t *testing.T) {
		t.Parallel()

		var first, second int
		fanout := feed.FanoutSink{
			feed.SinkFunc(func(context.Context, *domain.OutwardMessage) error { first++; return nil }),
			feed.SinkFunc(func(context.Context, *domain.OutwardMessage) error { second++; return nil }),
		}

		require.NoError(t, fanout.Deliver(context.Background(), chatMessage()))

		assert.Equal(t, 1, first)
		assert.Equal(t, 1, second)
	})

	t.Run("one failing child never starves the rest", func(t *testing.T) {
		t.Parallel()

		var delivered int
		failure := errors.New("history down")
		fanout := feed.FanoutSink{
			feed.SinkFunc(func(context.Context, *domain.OutwardMessage) error { return failure }),
			feed.SinkFunc(func(context.Context, *domain.OutwardMessage) error { delivered++; return nil }),
		}

		err := fanout.Deliver(context.Background(), chatMessage())

		require.Error(t, err)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 1, delivered)
	})
}
