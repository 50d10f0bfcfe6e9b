package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ContextKeyWorkspaceID contextKey = "workspace_id"
	ContextKeyUserID      contextKey = "user_id"
	ContextKeyUserRole    contextKey = "role"
	ContextKeySenderID    contextKey = "sender_id"
)

func WorkspaceIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyWorkspaceID).(uuid.UUID)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}

// SenderIDFromContext returns the crew member identity an API key
// authenticated as.
func SenderIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeySenderID).(string)
	return v, ok
}
