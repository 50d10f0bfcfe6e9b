// Package feed converts raw execution events from crew members and skills
// into typed, lifecycle-tracked content and outward messages for the UI.
package feed

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// Factory builds and advances content nodes. It validates required fields
// per variant and guarantees content id uniqueness for its lifetime.
//
// A Factory is owned by one converter and is not safe for concurrent use;
// each session's event stream is consumed by a single cooperative task.
type Factory struct {
	issued map[uuid.UUID]struct{}
}

func NewFactory() *Factory {
	return &Factory{
		issued: make(map[uuid.UUID]struct{}),
	}
}

// Create constructs a node of the given kind from a typed payload, assigns a
// fresh unique content id and sets status Creating.
func (f *Factory) Create(kind domain.ContentKind, payload any) (*domain.ContentNode, error) {
	node := &domain.ContentNode{
		Kind:      kind,
		Status:    domain.StatusCreating,
		CreatedAt: time.Now(),
	}

	if err := f.fill(node, kind, payload); err != nil {
		return nil, err
	}

	id := uuid.New()
	if _, exists := f.issued[id]; exists {
		return nil, fmt.Errorf("feed.Factory.Create(%s): id %s: %w", kind, id, domain.ErrDuplicateContentID)
	}
	f.issued[id] = struct{}{}
	node.ID = id

	return node, nil
}

// Update merges a payload into an existing node and advances its status to
// Updating. Updating a terminal node is a no-op reported as ErrStaleUpdate
// so duplicate or late deliveries never corrupt state.
func (f *Factory) Update(node *domain.ContentNode, payload any) error {
	if node.Status.Terminal() {
		return fmt.Errorf("feed.Factory.Update(%s %s): %w", node.Kind, node.ID, domain.ErrStaleUpdate)
	}

	if payload != nil {
		if err := f.merge(node, payload); err != nil {
			return err
		}
	}

	if err := node.Advance(domain.StatusUpdating); err != nil {
		return fmt.Errorf("feed.Factory.Update(%s %s): %w", node.Kind, node.ID, domain.ErrStaleUpdate)
	}
	return nil
}

// Complete drives a node to the Completed terminal status. No-op (reported
// as ErrStaleUpdate) when the node is already terminal.
func (f *Factory) Complete(node *domain.ContentNode, result string) error {
	if node.Status.Terminal() {
		return fmt.Errorf("feed.Factory.Complete(%s %s): %w", node.Kind, node.ID, domain.ErrStaleUpdate)
	}

	switch node.Kind {
	case domain.ContentStep:
		if result != "" {
			node.Step.Result = result
		}
	case domain.ContentToolCall:
		node.ToolCall.ToolStatus = domain.ToolCallSucceeded
	}

	node.Status = domain.StatusCompleted
	return nil
}

// Fail drives a node to the Failed terminal status. No-op (reported as
// ErrStaleUpdate) when the node is already terminal.
func (f *Factory) Fail(node *domain.ContentNode, errMsg string) error {
	if node.Status.Terminal() {
		return fmt.Errorf("feed.Factory.Fail(%s %s): %w", node.Kind, node.ID, domain.ErrStaleUpdate)
	}

	switch node.Kind {
	case domain.ContentToolCall:
		node.ToolCall.ToolStatus = domain.ToolCallFailed
	case domain.ContentToolResponse:
		if errMsg != "" && node.ToolResponse.Error == "" {
			node.ToolResponse.Error = errMsg
		}
	case domain.ContentError:
		if errMsg != "" && node.Error.Message == "" {
			node.Error.Message = errMsg
		}
	}

	node.Status = domain.StatusFailed
	return nil
}

// fill validates and sets the variant data for a freshly created node.
func (f *Factory) fill(node *domain.ContentNode, kind domain.ContentKind, payload any) error {
	malformed := func(field string) error {
		return fmt.Errorf("feed.Factory.Create(%s): missing %s: %w", kind, field, domain.ErrMalformedPayload)
	}
	badType := fmt.Errorf("feed.Factory.Create(%s): unexpected payload type %T: %w", kind, payload, domain.ErrMalformedPayload)

	switch kind {
	case domain.ContentText:
		p, ok := payload.(*domain.TextPayload)
		if !ok {
			return badType
		}
		if p.Text == "" {
			return malformed("text")
		}
		node.Text = &domain.TextContent{Text: p.Text}

	case domain.ContentThinking:
		p, ok := payload.(*domain.ThinkingPayload)
		if !ok {
			return badType
		}
		if p.Thought == "" {
			return malformed("thought")
		}
		node.Thinking = &domain.ThinkingContent{Thought: p.Thought, StepLabel: p.StepLabel}

	case domain.ContentToolCall:
		p, ok := payload.(*domain.ToolStartPayload)
		if !ok {
			return badType
		}
		if p.Tool == "" {
			return malformed("tool")
		}
		node.ToolCall = &domain.ToolCallContent{
			Tool:       p.Tool,
			Arguments:  p.Arguments,
			ToolStatus: domain.ToolCallRunning,
		}

	case domain.ContentToolResponse:
		p, ok := payload.(*domain.ToolResultPayload)
		if !ok {
			return badType
		}
		if p.Tool == "" {
			return malformed("tool")
		}
		node.ToolResponse = &domain.ToolResponseContent{Tool: p.Tool, Result: p.Result, Error: p.Error}

	case domain.ContentProgress:
		p, ok := payload.(*domain.ToolProgressPayload)
		if !ok {
			return badType
		}
		if p.Message == "" {
			return malformed("message")
		}
		node.Progress = &domain.ProgressContent{Message: p.Message, Percent: p.Percent}

	case domain.ContentPlan:
		p, ok := payload.(*domain.PlanPayload)
		if !ok {
			return badType
		}
		if p.PlanID == "" {
			return malformed("plan_id")
		}
		node.Plan = &domain.PlanContent{
			PlanID:       p.PlanID,
			Steps:        p.Steps,
			CurrentIndex: p.CurrentIndex,
			PlanStatus:   p.Status,
		}

	case domain.ContentStep:
		p, ok := payload.(*domain.StepPayload)
		if !ok {
			return badType
		}
		if p.Number <= 0 {
			return malformed("number")
		}
		node.Step = &domain.StepContent{Number: p.Number, Description: p.Description, Result: p.Result}

	case domain.ContentSkill:
		p, ok := payload.(*domain.SkillPayload)
		if !ok {
			return badType
		}
		if p.Name == "" {
			return malformed("name")
		}
		node.Skill = &domain.SkillContent{Name: p.Name, Description: p.Description, Parameters: p.Parameters}

	case domain.ContentError:
		p, ok := payload.(*domain.ErrorPayload)
		if !ok {
			return badType
		}
		if p.Message == "" {
			return malformed("message")
		}
		node.Error = &domain.ErrorContent{Message: p.Message, Kind: p.Kind, Details: p.Details}

	case domain.ContentTaskList:
		p, ok := payload.(*domain.TaskListContent)
		if !ok {
			return badType
		}
		node.TaskList = p

	case domain.ContentMetadata:
		p, ok := payload.(*domain.MetadataContent)
		if !ok {
			return badType
		}
		if len(p.Values) == 0 {
			return malformed("values")
		}
		node.Metadata = p

	case domain.ContentMedia:
		p, ok := payload.(*domain.MediaContent)
		if !ok {
			return badType
		}
		if p.URL == "" {
			return malformed("url")
		}
		node.Media = p

	case domain.ContentTable:
		p, ok := payload.(*domain.TableContent)
		if !ok {
			return badType
		}
		if len(p.Columns) == 0 {
			return malformed("columns")
		}
		node.Table = p

	case domain.ContentChart:
		p, ok := payload.(*domain.ChartContent)
		if !ok {
			return badType
		}
		if p.ChartType == "" {
			return malformed("chart_type")
		}
		node.Chart = p

	case domain.ContentLink:
		p, ok := payload.(*domain.LinkContent)
		if !ok {
			return badType
		}
		if p.URL == "" {
			return malformed("url")
		}
		node.Link = p

	case domain.ContentForm:
		p, ok := payload.(*domain.FormContent)
		if !ok {
			return badType
		}
		if p.FormID == "" {
			return malformed("form_id")
		}
		node.Form = p

	case domain.ContentButton:
		p, ok := payload.(*domain.ButtonContent)
		if !ok {
			return badType
		}
		if p.Label == "" {
			return malformed("label")
		}
		node.Button = p

	default:
		return fmt.Errorf("feed.Factory.Create(%q): %w", kind, domain.ErrUnknownContentKind)
	}

	return nil
}

// merge applies variant-specific update semantics to a live node.
func (f *Factory) merge(node *domain.ContentNode, payload any) error {
	badType := fmt.Errorf("feed.Factory.Update(%s %s): unexpected payload type %T: %w",
		node.Kind, node.ID, payload, domain.ErrMalformedPayload)

	switch node.Kind {
	case domain.ContentText:
		p, ok := payload.(*domain.TextPayload)
		if !ok {
			return badType
		}
		node.Text.Text = p.Text

	case domain.ContentThinking:
		p, ok := payload.(*domain.ThinkingPayload)
		if !ok {
			return badType
		}
		if p.Thought != "" {
			node.Thinking.Thought += "\n" + p.Thought
		}
		if p.StepLabel != "" {
			node.Thinking.StepLabel = p.StepLabel
		}

	case domain.ContentToolCall:
		p, ok := payload.(*domain.ToolStartPayload)
		if !ok {
			return badType
		}
		if p.Arguments != nil {
			node.ToolCall.Arguments = p.Arguments
		}

	case domain.ContentProgress:
		p, ok := payload.(*domain.ToolProgressPayload)
		if !ok {
			return badType
		}
		if p.Message != "" {
			node.Progress.Message = p.Message
		}
		if p.Percent != nil {
			node.Progress.Percent = p.Percent
		}

	case domain.ContentPlan:
		p, ok := payload.(*domain.PlanPayload)
		if !ok {
			return badType
		}
		if len(p.Steps) > 0 {
			node.Plan.Steps = p.Steps
		}
		node.Plan.CurrentIndex = p.CurrentIndex
		if p.Status != "" {
			node.Plan.PlanStatus = p.Status
		}

	case domain.ContentStep:
		p, ok := payload.(*domain.StepPayload)
		if !ok {
			return badType
		}
		if p.Description != "" {
			node.Step.Description = p.Description
		}
		if p.Result != "" {
			node.Step.Result = p.Result
		}

	case domain.ContentSkill:
		p, ok := payload.(*domain.SkillPayload)
		if !ok {
			return badType
		}
		if p.Description != "" {
			node.Skill.Description = p.Description
		}
		if p.Parameters != nil {
			node.Skill.Parameters = p.Parameters
		}

	default:
		return fmt.Errorf("feed.Factory.Update(%s %s): kind not updatable: %w",
			node.Kind, node.ID, domain.ErrMalformedPayload)
	}

	return nil
}
