package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Workspace is one collaboration space. Its CurrentProject field is the
// single authoritative "live project" the sync coordinator consults; the
// repository read must always reflect the most recent write.
type Workspace struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	CurrentProject string    `json:"current_project,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewWorkspace creates a Workspace with validated required fields.
func NewWorkspace(name string) (*Workspace, error) {
	if name == "" {
		return nil, errors.New("workspace: name is required")
	}
	return &Workspace{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}, nil
}

// Project is one named project inside a workspace.
type Project struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewProject creates a Project with validated required fields and defaults.
func NewProject(workspaceID uuid.UUID, name, description string, settings json.RawMessage) (*Project, error) {
	if workspaceID == uuid.Nil {
		return nil, errors.New("project: workspace ID is required")
	}
	if name == "" {
		return nil, errors.New("project: name is required")
	}
	if settings == nil {
		settings = json.RawMessage("{}")
	}
	return &Project{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Description: description,
		Settings:    settings,
		CreatedAt:   time.Now(),
	}, nil
}

// InstanceKey is the composite identity caching one live agent session:
// workspace identity plus project name.
type InstanceKey struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Project     string    `json:"project"`
}

func (k InstanceKey) String() string {
	return k.WorkspaceID.String() + "/" + k.Project
}

// FeedEntry records one delivered OutwardMessage for replay, keyed by
// instance key and run id. Persistence is a collaborator of the core: the
// feed never reads its own history back during conversion.
type FeedEntry struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	Project     string          `json:"project"`
	RunID       uuid.UUID       `json:"run_id"`
	MessageID   uuid.UUID       `json:"message_id"`
	Kind        MessageKind     `json:"kind"`
	SenderID    string          `json:"sender_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

type WorkspaceRepository interface {
	Create(ctx context.Context, w *Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	List(ctx context.Context) ([]*Workspace, error)
	// CurrentProject returns the live current project name. It is the
	// authoritative source for lazy sync and must never serve a stale value.
	CurrentProject(ctx context.Context, id uuid.UUID) (string, error)
	SetCurrentProject(ctx context.Context, id uuid.UUID, project string) error
}

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	GetByName(ctx context.Context, workspaceID uuid.UUID, name string) (*Project, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]*Project, error)
	Delete(ctx context.Context, workspaceID uuid.UUID, name string) error
}

type FeedRepository interface {
	Append(ctx context.Context, e *FeedEntry) error
	ListByRun(ctx context.Context, workspaceID, runID uuid.UUID, limit, offset int) ([]*FeedEntry, error)
	CountByRun(ctx context.Context, workspaceID, runID uuid.UUID) (int64, error)
}
