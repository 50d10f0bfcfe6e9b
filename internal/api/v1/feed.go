package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

type ListRunFeedInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	RunID       uuid.UUID `path:"runID" doc:"Run ID"`
	Limit       int       `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Page size"`
	Offset      int       `query:"offset" default:"0" minimum:"0" doc:"Page offset"`
}

type ListRunFeedOutput struct {
	Body struct {
		Entries []*domain.FeedEntry `json:"entries"`
		Total   int64               `json:"total"`
	}
}

func RegisterFeedRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-run-feed",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspaceID}/runs/{runID}/feed",
		Summary:     "Replay the recorded feed for one run",
		Tags:        []string{"Feed"},
	}, func(ctx context.Context, input *ListRunFeedInput) (*ListRunFeedOutput, error) {
		entries, err := store.Feed().ListByRun(ctx, input.WorkspaceID, input.RunID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list feed entries", err)
		}

		total, err := store.Feed().CountByRun(ctx, input.WorkspaceID, input.RunID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count feed entries", err)
		}

		out := &ListRunFeedOutput{}
		out.Body.Entries = entries
		out.Body.Total = total
		return out, nil
	})
}
