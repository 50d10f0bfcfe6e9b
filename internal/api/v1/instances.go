package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/server/middleware"
)

type ListInstancesInput struct{}

type ListInstancesOutput struct {
	Body []domain.InstanceKey
}

type RemoveInstanceInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Project     string    `path:"project" doc:"Project name"`
}

type ClearInstancesInput struct{}

func RegisterInstanceRoutes(api huma.API, crewSvc CrewService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-instances",
		Method:      http.MethodGet,
		Path:        "/instances",
		Summary:     "List cached crew instance keys",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, _ *ListInstancesInput) (*ListInstancesOutput, error) {
		// Keys span every workspace, so this is an admin surface.
		if !middleware.IsAdmin(ctx) {
			return nil, huma.Error403Forbidden("admin role required")
		}

		return &ListInstancesOutput{Body: crewSvc.InstanceKeys()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-instance",
		Method:      http.MethodDelete,
		Path:        "/instances/{workspaceID}/{project}",
		Summary:     "Evict one cached crew instance",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *RemoveInstanceInput) (*struct{}, error) {
		key := domain.InstanceKey{WorkspaceID: input.WorkspaceID, Project: input.Project}
		if !crewSvc.RemoveInstance(ctx, key) {
			return nil, huma.Error404NotFound("instance not found")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-instances",
		Method:      http.MethodDelete,
		Path:        "/instances",
		Summary:     "Evict every cached crew instance",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, _ *ClearInstancesInput) (*struct{}, error) {
		if !middleware.IsAdmin(ctx) {
			return nil, huma.Error403Forbidden("admin role required")
		}

		crewSvc.ClearInstances(ctx)
		return nil, nil
	})
}
