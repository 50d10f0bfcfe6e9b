package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

type CreateProjectInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body        struct {
		Name        string          `json:"name" minLength:"1" maxLength:"255" doc:"Project name"`
		Description string          `json:"description,omitempty" doc:"Project description"`
		Settings    json.RawMessage `json:"settings,omitempty" doc:"Project settings"`
	}
}

type CreateProjectOutput struct {
	Body *domain.Project
}

type ListProjectsInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
}

type ListProjectsOutput struct {
	Body []*domain.Project
}

type GetProjectInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Name        string    `path:"name" doc:"Project name"`
}

type GetProjectOutput struct {
	Body *domain.Project
}

type DeleteProjectInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Name        string    `path:"name" doc:"Project name"`
}

func RegisterProjectRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspaceID}/projects",
		Summary:     "Create a new project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *CreateProjectInput) (*CreateProjectOutput, error) {
		p, err := domain.NewProject(input.WorkspaceID, input.Body.Name, input.Body.Description, input.Body.Settings)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if createErr := store.Projects().Create(ctx, p); createErr != nil {
			return nil, huma.Error500InternalServerError("failed to create project", createErr)
		}

		return &CreateProjectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/projects",
		Summary:     "List projects in a workspace",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *ListProjectsInput) (*ListProjectsOutput, error) {
		projects, err := store.Projects().List(ctx, input.WorkspaceID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list projects", err)
		}

		return &ListProjectsOutput{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/projects/{name}",
		Summary:     "Get a project by name",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *GetProjectInput) (*GetProjectOutput, error) {
		p, err := store.Projects().GetByName(ctx, input.WorkspaceID, input.Name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to get project", err)
		}

		return &GetProjectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspaceID}/projects/{name}",
		Summary:     "Delete a project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *DeleteProjectInput) (*struct{}, error) {
		if err := store.Projects().Delete(ctx, input.WorkspaceID, input.Name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete project", err)
		}

		return nil, nil
	})
}
