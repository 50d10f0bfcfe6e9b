package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// Recorder persists every delivered message as a feed entry so runs can be
// replayed later. It satisfies Sink and is a pure collaborator: conversion
// never reads the recorded history back.
type Recorder struct {
	repo        domain.FeedRepository
	workspaceID uuid.UUID
	project     func() string
}

// NewRecorder builds a history sink for one workspace. project reports the
// bound project at delivery time and may be nil.
func NewRecorder(repo domain.FeedRepository, workspaceID uuid.UUID, project func() string) *Recorder {
	return &Recorder{repo: repo, workspaceID: workspaceID, project: project}
}

func (r *Recorder) Deliver(ctx context.Context, msg *domain.OutwardMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("feed.Recorder.Deliver: marshal: %w", err)
	}

	var project string
	if r.project != nil {
		project = r.project()
	}

	entry := &domain.FeedEntry{
		ID:          uuid.New(),
		WorkspaceID: r.workspaceID,
		Project:     project,
		RunID:       msg.RunID,
		MessageID:   msg.ID,
		Kind:        msg.Kind,
		SenderID:    msg.SenderID,
		Payload:     payload,
		CreatedAt:   msg.Timestamp,
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("feed.Recorder.Deliver: %w", err)
	}

	return nil
}
