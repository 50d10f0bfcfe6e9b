package v1_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/crewdeck/internal/api/v1"
	"github.com/gosuda/crewdeck/internal/domain"
)

// guardedAPI wires the workspace guard plus the workspace routes the same way
// the server does, backed by mocks that record whether the handler ran.
func guardedAPI(t *testing.T) (humatest.TestAPI, *string) {
	t.Helper()

	_, api := humatest.New(t)
	v1.UseWorkspaceGuard(api)

	var persisted string
	store := &mockDataStore{
		workspaces: &mockWorkspaceRepo{
			setCurrentProjectFunc: func(_ context.Context, _ uuid.UUID, project string) error {
				persisted = project
				return nil
			},
			createFunc: func(_ context.Context, _ *domain.Workspace) error {
				return nil
			},
		},
		projects: &mockProjectRepo{
			getByNameFunc: func(_ context.Context, workspaceID uuid.UUID, name string) (*domain.Project, error) {
				return &domain.Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: name}, nil
			},
		},
	}
	v1.RegisterWorkspaceRoutes(api, store, &mockCrewService{})
	return api, &persisted
}

func TestWorkspaceGuard(t *testing.T) {
	t.Parallel()

	t.Run("matching_claim_passes", func(t *testing.T) {
		t.Parallel()

		wid := uuid.New()
		api, persisted := guardedAPI(t)

		resp := api.PutCtx(userCtx(wid), "/workspaces/"+wid.String()+"/current-project", map[string]any{
			"project": "beta",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "beta", *persisted)
	})

	t.Run("foreign_workspace_rejected", func(t *testing.T) {
		t.Parallel()

		api, persisted := guardedAPI(t)

		// Token issued for one workspace must not reach another.
		resp := api.PutCtx(userCtx(uuid.New()), "/workspaces/"+uuid.New().String()+"/current-project", map[string]any{
			"project": "beta",
		})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Empty(t, *persisted)
	})

	t.Run("missing_claims_rejected", func(t *testing.T) {
		t.Parallel()

		api, persisted := guardedAPI(t)

		resp := api.Put("/workspaces/"+uuid.New().String()+"/current-project", map[string]any{
			"project": "beta",
		})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Empty(t, *persisted)
	})

	t.Run("crew_api_key_spans_workspaces", func(t *testing.T) {
		t.Parallel()

		api, persisted := guardedAPI(t)

		resp := api.PutCtx(senderCtx("researcher"), "/workspaces/"+uuid.New().String()+"/current-project", map[string]any{
			"project": "beta",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "beta", *persisted)
	})

	t.Run("route_without_workspace_param_unguarded", func(t *testing.T) {
		t.Parallel()

		api, _ := guardedAPI(t)

		resp := api.Post("/workspaces", map[string]any{
			"name": "research-team",
		})

		assert.Equal(t, http.StatusOK, resp.Code)
	})
}
