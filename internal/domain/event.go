package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind identifies one kind of execution event in the closed
// enumeration. Every kind has defined converter behavior; adding a kind
// without handling it is caught by the feed package's exhaustiveness test.
type EventKind string

const (
	EventReasoningStep EventKind = "reasoning_step"
	EventToolStarted   EventKind = "tool_started"
	EventToolProgress  EventKind = "tool_progress"
	EventToolFinished  EventKind = "tool_finished"
	EventSkillStarted  EventKind = "skill_started"
	EventSkillProgress EventKind = "skill_progress"
	EventSkillFinished EventKind = "skill_finished"
	EventPlanCreated   EventKind = "plan_created"
	EventPlanUpdated   EventKind = "plan_updated"
	EventStepStarted   EventKind = "step_started"
	EventStepFinished  EventKind = "step_finished"
	EventFinalAnswer   EventKind = "final_answer"
	EventError         EventKind = "error"
	EventUserTurn      EventKind = "user_turn"
	EventPaused        EventKind = "paused"
	EventResumed       EventKind = "resumed"
	EventInterrupted   EventKind = "interrupted"
	EventTimedOut      EventKind = "timed_out"
)

// EventKinds returns the full closed enumeration in declaration order.
func EventKinds() []EventKind {
	return []EventKind{
		EventReasoningStep,
		EventToolStarted, EventToolProgress, EventToolFinished,
		EventSkillStarted, EventSkillProgress, EventSkillFinished,
		EventPlanCreated, EventPlanUpdated,
		EventStepStarted, EventStepFinished,
		EventFinalAnswer, EventError, EventUserTurn,
		EventPaused, EventResumed, EventInterrupted, EventTimedOut,
	}
}

// Terminal reports whether this event kind closes its run.
func (k EventKind) Terminal() bool {
	switch k {
	case EventFinalAnswer, EventError, EventInterrupted, EventTimedOut:
		return true
	default:
		return false
	}
}

// ExecutionEvent is one unit of progress reported by a running crew member
// or skill. Within one run, step ids are strictly increasing as observed by
// the converter: all senders funnel through one ordered channel per run.
type ExecutionEvent struct {
	Kind       EventKind `json:"kind"`
	RunID      uuid.UUID `json:"run_id"`
	StepID     uint64    `json:"step_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`

	// Payload carries the typed per-kind payload. When nil, Legacy may carry
	// equivalent data under the canonical field names (single key set, no
	// fallback aliases).
	Payload EventPayload   `json:"payload,omitempty"`
	Legacy  map[string]any `json:"legacy,omitempty"`
}

// EventPayload is implemented by every typed event payload.
type EventPayload interface {
	isEventPayload()
}

// TextPayload carries plain text for user turns and final answers.
type TextPayload struct {
	Text string `json:"text"`
}

// ThinkingPayload carries one reasoning report.
type ThinkingPayload struct {
	Thought   string `json:"thought"`
	StepLabel string `json:"step_label,omitempty"`
}

// ToolStartPayload announces a tool invocation. CallID correlates later
// progress and result events to this invocation.
type ToolStartPayload struct {
	CallID    string          `json:"call_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolProgressPayload reports incremental tool progress.
type ToolProgressPayload struct {
	CallID  string   `json:"call_id"`
	Message string   `json:"message"`
	Percent *float64 `json:"percent,omitempty"`
}

// ToolResultPayload reports tool completion. A non-empty Error marks the
// invocation failed.
type ToolResultPayload struct {
	CallID string `json:"call_id"`
	Tool   string `json:"tool,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SkillPayload describes a sub-skill invocation and its lifecycle updates.
type SkillPayload struct {
	CallID      string          `json:"call_id"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PlanStepSpec is one ordered step inside a plan payload.
type PlanStepSpec struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// PlanPayload describes a plan creation or update.
type PlanPayload struct {
	PlanID       string         `json:"plan_id"`
	Steps        []PlanStepSpec `json:"steps,omitempty"`
	CurrentIndex int            `json:"current_index"`
	Status       string         `json:"status,omitempty"`
}

// StepPayload reports one plan step starting or finishing.
type StepPayload struct {
	PlanID      string `json:"plan_id,omitempty"`
	Number      int    `json:"number"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ErrorPayload reports a run- or scope-level failure.
type ErrorPayload struct {
	Message string         `json:"message"`
	Kind    string         `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (TextPayload) isEventPayload()         {}
func (ThinkingPayload) isEventPayload()     {}
func (ToolStartPayload) isEventPayload()    {}
func (ToolProgressPayload) isEventPayload() {}
func (ToolResultPayload) isEventPayload()   {}
func (SkillPayload) isEventPayload()        {}
func (PlanPayload) isEventPayload()         {}
func (StepPayload) isEventPayload()         {}
func (ErrorPayload) isEventPayload()        {}

// DecodeLegacy materializes the typed payload for an event that arrived with
// only the legacy free-form map. Field names are the canonical json tags of
// the typed payloads; no alias keys are consulted.
func DecodeLegacy(kind EventKind, legacy map[string]any) (EventPayload, error) {
	if legacy == nil {
		return nil, fmt.Errorf("domain.DecodeLegacy(%q): empty legacy payload: %w", kind, ErrMalformedPayload)
	}

	raw, err := json.Marshal(legacy)
	if err != nil {
		return nil, fmt.Errorf("domain.DecodeLegacy(%q): %w", kind, ErrMalformedPayload)
	}

	decode := func(dst EventPayload) (EventPayload, error) {
		if unmarshalErr := json.Unmarshal(raw, dst); unmarshalErr != nil {
			return nil, fmt.Errorf("domain.DecodeLegacy(%q): %w", kind, ErrMalformedPayload)
		}
		return dst, nil
	}

	switch kind {
	case EventUserTurn, EventFinalAnswer:
		return decode(&TextPayload{})
	case EventReasoningStep:
		return decode(&ThinkingPayload{})
	case EventToolStarted:
		return decode(&ToolStartPayload{})
	case EventToolProgress:
		return decode(&ToolProgressPayload{})
	case EventToolFinished:
		return decode(&ToolResultPayload{})
	case EventSkillStarted, EventSkillProgress, EventSkillFinished:
		return decode(&SkillPayload{})
	case EventPlanCreated, EventPlanUpdated:
		return decode(&PlanPayload{})
	case EventStepStarted, EventStepFinished:
		return decode(&StepPayload{})
	case EventError, EventInterrupted, EventTimedOut:
		return decode(&ErrorPayload{})
	case EventPaused, EventResumed:
		// Marker events carry no payload.
		return nil, nil
	default:
		return nil, fmt.Errorf("domain.DecodeLegacy(%q): %w", kind, ErrUnknownContentKind)
	}
}
