package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentStatus is the lifecycle state of a content node. Transitions are
// monotonic: Creating -> (Updating)* -> {Completed | Failed}, never backward
// and never out of a terminal state.
type ContentStatus string

const (
	StatusCreating  ContentStatus = "creating"
	StatusUpdating  ContentStatus = "updating"
	StatusCompleted ContentStatus = "completed"
	StatusFailed    ContentStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ContentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ContentKind identifies one variant in the closed content taxonomy.
type ContentKind string

const (
	ContentText         ContentKind = "text"
	ContentThinking     ContentKind = "thinking"
	ContentToolCall     ContentKind = "tool_call"
	ContentToolResponse ContentKind = "tool_response"
	ContentProgress     ContentKind = "progress"
	ContentPlan         ContentKind = "plan"
	ContentStep         ContentKind = "step"
	ContentTaskList     ContentKind = "task_list"
	ContentSkill        ContentKind = "skill"
	ContentError        ContentKind = "error"
	ContentMetadata     ContentKind = "metadata"
	ContentMedia        ContentKind = "media"
	ContentTable        ContentKind = "table"
	ContentChart        ContentKind = "chart"
	ContentLink         ContentKind = "link"
	ContentForm         ContentKind = "form"
	ContentButton       ContentKind = "button"
)

// ContentKinds returns the full closed taxonomy in declaration order.
func ContentKinds() []ContentKind {
	return []ContentKind{
		ContentText, ContentThinking, ContentToolCall, ContentToolResponse,
		ContentProgress, ContentPlan, ContentStep, ContentTaskList,
		ContentSkill, ContentError, ContentMetadata, ContentMedia,
		ContentTable, ContentChart, ContentLink, ContentForm, ContentButton,
	}
}

// ContentNode is one typed, lifecycle-tracked unit of reportable output.
// Exactly one variant pointer matching Kind is set. The UI reconciles
// repeated deliveries by ID.
type ContentNode struct {
	ID       uuid.UUID     `json:"id"`
	Kind     ContentKind   `json:"kind"`
	Status   ContentStatus `json:"status"`
	ParentID *uuid.UUID    `json:"parent_id,omitempty"`

	// Orphaned is set when the node cited a parent that was never
	// registered in its run; the node is delivered anyway.
	Orphaned  bool      `json:"orphaned,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Text         *TextContent         `json:"text,omitempty"`
	Thinking     *ThinkingContent     `json:"thinking,omitempty"`
	ToolCall     *ToolCallContent     `json:"tool_call,omitempty"`
	ToolResponse *ToolResponseContent `json:"tool_response,omitempty"`
	Progress     *ProgressContent     `json:"progress,omitempty"`
	Plan         *PlanContent         `json:"plan,omitempty"`
	Step         *StepContent         `json:"step,omitempty"`
	TaskList     *TaskListContent     `json:"task_list,omitempty"`
	Skill        *SkillContent        `json:"skill,omitempty"`
	Error        *ErrorContent        `json:"error,omitempty"`
	Metadata     *MetadataContent     `json:"metadata,omitempty"`
	Media        *MediaContent        `json:"media,omitempty"`
	Table        *TableContent        `json:"table,omitempty"`
	Chart        *ChartContent        `json:"chart,omitempty"`
	Link         *LinkContent         `json:"link,omitempty"`
	Form         *FormContent         `json:"form,omitempty"`
	Button       *ButtonContent       `json:"button,omitempty"`
}

// Advance moves the node's status forward. Returns ErrTerminalStatus when
// the node is already terminal or the transition would regress; the node is
// left unchanged in that case.
func (n *ContentNode) Advance(next ContentStatus) error {
	if n.Status.Terminal() {
		return fmt.Errorf("domain.ContentNode.Advance(%s -> %s): %w", n.Status, next, ErrTerminalStatus)
	}
	if next == StatusCreating {
		return fmt.Errorf("domain.ContentNode.Advance(%s -> %s): %w", n.Status, next, ErrTerminalStatus)
	}
	n.Status = next
	return nil
}

type TextContent struct {
	Text string `json:"text"`
}

type ThinkingContent struct {
	Thought   string `json:"thought"`
	StepLabel string `json:"step_label,omitempty"`
}

// ToolCallStatus mirrors the invocation lifecycle for display purposes.
type ToolCallStatus string

const (
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallSucceeded ToolCallStatus = "succeeded"
	ToolCallFailed    ToolCallStatus = "failed"
)

type ToolCallContent struct {
	Tool       string          `json:"tool"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	ToolStatus ToolCallStatus  `json:"tool_status"`
}

type ToolResponseContent struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ProgressContent struct {
	Message string   `json:"message"`
	Percent *float64 `json:"percent,omitempty"`
}

type PlanContent struct {
	PlanID       string         `json:"plan_id"`
	Steps        []PlanStepSpec `json:"steps"`
	CurrentIndex int            `json:"current_index"`
	PlanStatus   string         `json:"plan_status,omitempty"`
}

type StepContent struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Result      string `json:"result,omitempty"`
}

// TaskListItem is one entry in a task list content.
type TaskListItem struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

type TaskListContent struct {
	Tasks          []TaskListItem `json:"tasks"`
	CompletedCount int            `json:"completed_count"`
	TotalCount     int            `json:"total_count"`
}

type SkillContent struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type ErrorContent struct {
	Message string         `json:"message"`
	Kind    string         `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type MetadataContent struct {
	Values map[string]string `json:"values"`
}

type MediaContent struct {
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
}

type TableContent struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type ChartContent struct {
	ChartType string          `json:"chart_type"`
	Data      json.RawMessage `json:"data"`
}

type LinkContent struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type FormContent struct {
	FormID string          `json:"form_id"`
	Schema json.RawMessage `json:"schema"`
}

type ButtonContent struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}
