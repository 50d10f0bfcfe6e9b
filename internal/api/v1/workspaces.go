package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

type CreateWorkspaceInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Workspace name"`
	}
}

type CreateWorkspaceOutput struct {
	Body *domain.Workspace
}

type ListWorkspacesInput struct{}

type ListWorkspacesOutput struct {
	Body []*domain.Workspace
}

type GetWorkspaceInput struct {
	ID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type GetWorkspaceOutput struct {
	Body *domain.Workspace
}

type GetCurrentProjectInput struct {
	ID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type GetCurrentProjectOutput struct {
	Body struct {
		Project string `json:"project" doc:"Current project name"`
	}
}

type SetCurrentProjectInput struct {
	ID   uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body struct {
		Project string `json:"project" minLength:"1" maxLength:"255" doc:"Project to make current"`
	}
}

type SetCurrentProjectOutput struct {
	Body struct {
		Project string `json:"project" doc:"Current project name"`
	}
}

func RegisterWorkspaceRoutes(api huma.API, store DataStore, crewSvc CrewService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-workspace",
		Method:      http.MethodPost,
		Path:        "/workspaces",
		Summary:     "Create a new workspace",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *CreateWorkspaceInput) (*CreateWorkspaceOutput, error) {
		w, err := domain.NewWorkspace(input.Body.Name)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if createErr := store.Workspaces().Create(ctx, w); createErr != nil {
			return nil, huma.Error500InternalServerError("failed to create workspace", createErr)
		}

		return &CreateWorkspaceOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workspaces",
		Method:      http.MethodGet,
		Path:        "/workspaces",
		Summary:     "List workspaces",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, _ *ListWorkspacesInput) (*ListWorkspacesOutput, error) {
		workspaces, err := store.Workspaces().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list workspaces", err)
		}

		return &ListWorkspacesOutput{Body: workspaces}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}",
		Summary:     "Get a workspace by ID",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *GetWorkspaceInput) (*GetWorkspaceOutput, error) {
		w, err := store.Workspaces().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, huma.Error500InternalServerError("failed to get workspace", err)
		}

		return &GetWorkspaceOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current-project",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/current-project",
		Summary:     "Get the workspace's current project",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *GetCurrentProjectInput) (*GetCurrentProjectOutput, error) {
		project, err := store.Workspaces().CurrentProject(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, huma.Error500InternalServerError("failed to get current project", err)
		}

		out := &GetCurrentProjectOutput{}
		out.Body.Project = project
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-current-project",
		Method:      http.MethodPut,
		Path:        "/workspaces/{workspaceID}/current-project",
		Summary:     "Switch the workspace's current project",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *SetCurrentProjectInput) (*SetCurrentProjectOutput, error) {
		_, err := store.Projects().GetByName(ctx, input.ID, input.Body.Project)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up project", err)
		}

		if setErr := store.Workspaces().SetCurrentProject(ctx, input.ID, input.Body.Project); setErr != nil {
			if errors.Is(setErr, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, huma.Error500InternalServerError("failed to set current project", setErr)
		}

		// The instance cache is not touched until the workspace's
		// session next syncs.
		crewSvc.RequestSwitch(input.ID, input.Body.Project)

		out := &SetCurrentProjectOutput{}
		out.Body.Project = input.Body.Project
		return out, nil
	})
}
