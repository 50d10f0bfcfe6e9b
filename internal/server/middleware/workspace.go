package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Role constants define the supported principal roles. UI tokens are issued
// with admin or member; API key callers are always crew.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleCrew   = "crew"
)

// WorkspaceAllowed reports whether the authenticated principal may act in the
// given workspace. Crew API keys are operator provisioned and not bound to a
// single workspace; JWT callers must carry a matching workspace claim.
func WorkspaceAllowed(ctx context.Context, workspaceID uuid.UUID) bool {
	if _, crew := SenderIDFromContext(ctx); crew {
		return true
	}

	claimed, ok := WorkspaceIDFromContext(ctx)
	return ok && claimed != uuid.Nil && claimed == workspaceID
}

// IsAdmin reports whether the principal holds the admin role.
func IsAdmin(ctx context.Context) bool {
	role, ok := RoleFromContext(ctx)
	return ok && role == RoleAdmin
}
