package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Workspaces() domain.WorkspaceRepository
	Projects() domain.ProjectRepository
	Feed() domain.FeedRepository
}

// CrewService abstracts the crew session layer for handler testing.
// *crew.Service satisfies this interface.
type CrewService interface {
	Submit(ctx context.Context, workspaceID uuid.UUID, ev domain.ExecutionEvent) error
	RequestSwitch(workspaceID uuid.UUID, target string)
	Interrupt(ctx context.Context, workspaceID, runID uuid.UUID, reason string) error
	InstanceKeys() []domain.InstanceKey
	RemoveInstance(ctx context.Context, key domain.InstanceKey) bool
	ClearInstances(ctx context.Context)
}
