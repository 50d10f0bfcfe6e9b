package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject sender identity into context for DoCtx
// ---------------------------------------------------------------------------

func senderCtx(senderID string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeySenderID, senderID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, middleware.RoleCrew)
	return ctx
}

func userCtx(workspaceID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyWorkspaceID, workspaceID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, uuid.New())
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, middleware.RoleMember)
	return ctx
}

func adminCtx() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyWorkspaceID, uuid.New())
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, uuid.New())
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, middleware.RoleAdmin)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	workspaces domain.WorkspaceRepository
	projects   domain.ProjectRepository
	feed       domain.FeedRepository
}

func (m *mockDataStore) Workspaces() domain.WorkspaceRepository { return m.workspaces }
func (m *mockDataStore) Projects() domain.ProjectRepository     { return m.projects }
func (m *mockDataStore) Feed() domain.FeedRepository            { return m.feed }

// ---------------------------------------------------------------------------
// Mock WorkspaceRepository
// ---------------------------------------------------------------------------

type mockWorkspaceRepo struct {
	createFunc            func(ctx context.Context, w *domain.Workspace) error
	getByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	listFunc              func(ctx context.Context) ([]*domain.Workspace, error)
	currentProjectFunc    func(ctx context.Context, id uuid.UUID) (string, error)
	setCurrentProjectFunc func(ctx context.Context, id uuid.UUID, project string) error
}

func (m *mockWorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	return m.createFunc(ctx, w)
}

func (m *mockWorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockWorkspaceRepo) List(ctx context.Context) ([]*domain.Workspace, error) {
	return m.listFunc(ctx)
}

func (m *mockWorkspaceRepo) CurrentProject(ctx context.Context, id uuid.UUID) (string, error) {
	return m.currentProjectFunc(ctx, id)
}

func (m *mockWorkspaceRepo) SetCurrentProject(ctx context.Context, id uuid.UUID, project string) error {
	return m.setCurrentProjectFunc(ctx, id, project)
}

// ---------------------------------------------------------------------------
// Mock ProjectRepository
// ---------------------------------------------------------------------------

type mockProjectRepo struct {
	createFunc    func(ctx context.Context, p *domain.Project) error
	getByNameFunc func(ctx context.Context, workspaceID uuid.UUID, name string) (*domain.Project, error)
	listFunc      func(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Project, error)
	deleteFunc    func(ctx context.Context, workspaceID uuid.UUID, name string) error
}

func (m *mockProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	return m.createFunc(ctx, p)
}

func (m *mockProjectRepo) GetByName(ctx context.Context, workspaceID uuid.UUID, name string) (*domain.Project, error) {
	return m.getByNameFunc(ctx, workspaceID, name)
}

func (m *mockProjectRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]*domain.Project, error) {
	return m.listFunc(ctx, workspaceID)
}

func (m *mockProjectRepo) Delete(ctx context.Context, workspaceID uuid.UUID, name string) error {
	return m.deleteFunc(ctx, workspaceID, name)
}

// ---------------------------------------------------------------------------
// Mock FeedRepository
// ---------------------------------------------------------------------------

type mockFeedRepo struct {
	appendFunc     func(ctx context.Context, e *domain.FeedEntry) error
	listByRunFunc  func(ctx context.Context, workspaceID, runID uuid.UUID, limit, offset int) ([]*domain.FeedEntry, error)
	countByRunFunc func(ctx context.Context, workspaceID, runID uuid.UUID) (int64, error)
}

func (m *mockFeedRepo) Append(ctx context.Context, e *domain.FeedEntry) error {
	return m.appendFunc(ctx, e)
}

func (m *mockFeedRepo) ListByRun(ctx context.Context, workspaceID, runID uuid.UUID, limit, offset int) ([]*domain.FeedEntry, error) {
	return m.listByRunFunc(ctx, workspaceID, runID, limit, offset)
}

func (m *mockFeedRepo) CountByRun(ctx context.Context, workspaceID, runID uuid.UUID) (int64, error) {
	return m.countByRunFunc(ctx, workspaceID, runID)
}

// ---------------------------------------------------------------------------
// Mock CrewService
// ---------------------------------------------------------------------------

type mockCrewService struct {
	submitFunc         func(ctx context.Context, workspaceID uuid.UUID, ev domain.ExecutionEvent) error
	requestSwitchFunc  func(workspaceID uuid.UUID, target string)
	interruptFunc      func(ctx context.Context, workspaceID, runID uuid.UUID, reason string) error
	instanceKeysFunc   func() []domain.InstanceKey
	removeInstanceFunc func(ctx context.Context, key domain.InstanceKey) bool
	clearInstancesFunc func(ctx context.Context)
}

func (m *mockCrewService) Submit(ctx context.Context, workspaceID uuid.UUID, ev domain.ExecutionEvent) error {
	return m.submitFunc(ctx, workspaceID, ev)
}

func (m *mockCrewService) RequestSwitch(workspaceID uuid.UUID, target string) {
	if m.requestSwitchFunc != nil {
		m.requestSwitchFunc(workspaceID, target)
	}
}

func (m *mockCrewService) Interrupt(ctx context.Context, workspaceID, runID uuid.UUID, reason string) error {
	return m.interruptFunc(ctx, workspaceID, runID, reason)
}

func (m *mockCrewService) InstanceKeys() []domain.InstanceKey {
	return m.instanceKeysFunc()
}

func (m *mockCrewService) RemoveInstance(ctx context.Context, key domain.InstanceKey) bool {
	return m.removeInstanceFunc(ctx, key)
}

func (m *mockCrewService) ClearInstances(ctx context.Context) {
	m.clearInstancesFunc(ctx)
}
