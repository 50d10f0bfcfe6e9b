package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// FeedSink publishes outward messages onto the workspace and run channels,
// where websocket hubs fan them out to connected UIs. It satisfies
// feed.Sink.
type FeedSink struct {
	pubsub      *PubSub
	workspaceID uuid.UUID
}

func NewFeedSink(pubsub *PubSub, workspaceID uuid.UUID) *FeedSink {
	return &FeedSink{pubsub: pubsub, workspaceID: workspaceID}
}

func (s *FeedSink) Deliver(ctx context.Context, msg *domain.OutwardMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis.FeedSink.Deliver: marshal: %w", err)
	}

	if err := s.pubsub.Publish(ctx, FeedChannel(s.workspaceID), payload); err != nil {
		return fmt.Errorf("redis.FeedSink.Deliver: %w", err)
	}
	if err := s.pubsub.Publish(ctx, RunChannel(s.workspaceID, msg.RunID), payload); err != nil {
		return fmt.Errorf("redis.FeedSink.Deliver: %w", err)
	}
	return nil
}
