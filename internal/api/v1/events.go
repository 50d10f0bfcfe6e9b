package v1

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/server/middleware"
)

type SubmitEventInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	Body        struct {
		Kind       domain.EventKind `json:"kind" minLength:"1" doc:"Execution event kind"`
		RunID      uuid.UUID        `json:"run_id" doc:"Run the event belongs to"`
		StepID     uint64           `json:"step_id" doc:"Monotonic step id within the run"`
		SenderID   string           `json:"sender_id,omitempty" doc:"Crew member id, defaulted from the API key"`
		SenderName string           `json:"sender_name,omitempty" doc:"Crew member display name"`
		Payload    map[string]any   `json:"payload,omitempty" doc:"Event payload under canonical field names"`
	}
}

type SubmitEventOutput struct {
	Body struct {
		Accepted bool `json:"accepted"`
	}
}

type InterruptRunInput struct {
	WorkspaceID uuid.UUID `path:"workspaceID" doc:"Workspace ID"`
	RunID       uuid.UUID `path:"runID" doc:"Run ID"`
	Body        struct {
		Reason string `json:"reason,omitempty" maxLength:"1024" doc:"Why the run is being cancelled"`
	}
}

type InterruptRunOutput struct {
	Body struct {
		Interrupted bool `json:"interrupted"`
	}
}

func RegisterEventRoutes(api huma.API, crewSvc CrewService) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-event",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspaceID}/events",
		Summary:     "Submit an execution event to the workspace feed",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *SubmitEventInput) (*SubmitEventOutput, error) {
		if !slices.Contains(domain.EventKinds(), input.Body.Kind) {
			return nil, huma.Error400BadRequest("unknown event kind")
		}
		if input.Body.RunID == uuid.Nil {
			return nil, huma.Error400BadRequest("run_id is required")
		}

		senderID := input.Body.SenderID
		if fromKey, ok := middleware.SenderIDFromContext(ctx); ok {
			senderID = fromKey
		}
		if senderID == "" {
			return nil, huma.Error400BadRequest("sender_id is required")
		}

		ev := domain.ExecutionEvent{
			Kind:       input.Body.Kind,
			RunID:      input.Body.RunID,
			StepID:     input.Body.StepID,
			SenderID:   senderID,
			SenderName: input.Body.SenderName,
			Legacy:     input.Body.Payload,
		}

		if err := crewSvc.Submit(ctx, input.WorkspaceID, ev); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, huma.Error503ServiceUnavailable("session unavailable")
			}
			return nil, huma.Error500InternalServerError("failed to submit event", err)
		}

		out := &SubmitEventOutput{}
		out.Body.Accepted = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "interrupt-run",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspaceID}/runs/{runID}/interrupt",
		Summary:     "Cancel a run and close its open content",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *InterruptRunInput) (*InterruptRunOutput, error) {
		if err := crewSvc.Interrupt(ctx, input.WorkspaceID, input.RunID, input.Body.Reason); err != nil {
			return nil, huma.Error500InternalServerError("failed to interrupt run", err)
		}

		out := &InterruptRunOutput{}
		out.Body.Interrupted = true
		return out, nil
	})
}
