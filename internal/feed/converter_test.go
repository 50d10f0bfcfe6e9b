package feed_test

import (
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/feed"
)

type runFeed struct {
	conv  *feed.Converter
	runID uuid.UUID
	step  uint64
}

func newRunFeed() *runFeed {
	return &runFeed{
		conv:  feed.NewConverter(feed.NewFactory()),
		runID: uuid.New(),
	}
}

// send submits the next event in step order.
func (r *runFeed) send(t *testing.T, kind domain.EventKind, payload domain.EventPayload) (*domain.OutwardMessage, error) {
	t.Helper()
	r.step++
	return r.conv.Convert(domain.ExecutionEvent{
		Kind:     kind,
		RunID:    r.runID,
		StepID:   r.step,
		SenderID: "crew-1",
		Payload:  payload,
	})
}

func TestConverter_ToolLifecycle(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	started, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{
		CallID: "call-1",
		Tool:   "search",
	})
	require.NoError(t, err)
	require.Len(t, started.Contents, 1)
	call := started.Contents[0]
	assert.Equal(t, domain.ContentToolCall, call.Kind)
	assert.Equal(t, domain.StatusCreating, call.Status)
	assert.Equal(t, domain.MessageStatus, started.Kind)

	progress, err := r.send(t, domain.EventToolProgress, &domain.ToolProgressPayload{
		CallID:  "call-1",
		Message: "scanning",
	})
	require.NoError(t, err)
	require.Len(t, progress.Contents, 2)
	prog := progress.Contents[0]
	assert.Equal(t, domain.ContentProgress, prog.Kind)
	require.NotNil(t, prog.ParentID)
	assert.Equal(t, call.ID, *prog.ParentID)
	// The owning call advances while progress flows.
	assert.Equal(t, domain.StatusUpdating, progress.Contents[1].Status)

	// A second progress event updates the same node, never a new one.
	progress2, err := r.send(t, domain.EventToolProgress, &domain.ToolProgressPayload{
		CallID:  "call-1",
		Message: "halfway",
	})
	require.NoError(t, err)
	assert.Equal(t, prog.ID, progress2.Contents[0].ID)
	assert.Equal(t, "halfway", progress2.Contents[0].Progress.Message)

	finished, err := r.send(t, domain.EventToolFinished, &domain.ToolResultPayload{
		CallID: "call-1",
		Result: "3 hits",
	})
	require.NoError(t, err)
	resp := finished.Contents[0]
	assert.Equal(t, domain.ContentToolResponse, resp.Kind)
	require.NotNil(t, resp.ParentID)
	assert.Equal(t, call.ID, *resp.ParentID)
	assert.Equal(t, domain.StatusCompleted, resp.Status)
	// Tool name is filled from the tracked invocation.
	assert.Equal(t, "search", resp.ToolResponse.Tool)
	// Call and progress close with the invocation.
	assert.Equal(t, domain.StatusCompleted, call.Status)
	assert.Equal(t, domain.ToolCallSucceeded, call.ToolCall.ToolStatus)
	assert.Equal(t, domain.StatusCompleted, prog.Status)

	children := slices.Collect(r.conv.ChildrenOf(r.runID, call.ID))
	assert.Len(t, children, 2)
}

func TestConverter_ToolFailure(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	started, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{CallID: "c", Tool: "exec"})
	require.NoError(t, err)
	call := started.Contents[0]

	finished, err := r.send(t, domain.EventToolFinished, &domain.ToolResultPayload{
		CallID: "c",
		Error:  "exit status 2",
	})
	require.NoError(t, err)

	resp := finished.Contents[0]
	assert.Equal(t, domain.StatusFailed, resp.Status)
	assert.Equal(t, "exit status 2", resp.ToolResponse.Error)
	assert.Equal(t, domain.StatusFailed, call.Status)
	assert.Equal(t, domain.ToolCallFailed, call.ToolCall.ToolStatus)
}

func TestConverter_OrphanProgress(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	// Progress for a call that was never started: delivered, flagged, reported.
	msg, err := r.send(t, domain.EventToolProgress, &domain.ToolProgressPayload{
		CallID:  "ghost",
		Message: "working",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownParent)
	require.NotNil(t, msg)
	require.Len(t, msg.Contents, 1)
	assert.True(t, msg.Contents[0].Orphaned)
	assert.Nil(t, msg.Contents[0].ParentID)
}

func TestConverter_ThinkingAccumulates(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	first, err := r.send(t, domain.EventReasoningStep, &domain.ThinkingPayload{Thought: "hm"})
	require.NoError(t, err)
	node := first.Contents[0]
	assert.Equal(t, domain.ContentThinking, node.Kind)

	second, err := r.send(t, domain.EventReasoningStep, &domain.ThinkingPayload{Thought: "got it"})
	require.NoError(t, err)

	// Same sender keeps appending to one thinking node.
	assert.Equal(t, node.ID, second.Contents[0].ID)
	assert.Equal(t, "hm\ngot it", node.Thinking.Thought)
	assert.Equal(t, domain.StatusUpdating, node.Status)
}

func TestConverter_SkillScope(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	started, err := r.send(t, domain.EventSkillStarted, &domain.SkillPayload{
		CallID: "skill-1",
		Name:   "summarize",
	})
	require.NoError(t, err)
	skill := started.Contents[0]
	assert.Equal(t, domain.ContentSkill, skill.Kind)

	// A tool raised inside the skill becomes its child.
	toolMsg, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{CallID: "c1", Tool: "read"})
	require.NoError(t, err)
	call := toolMsg.Contents[0]
	require.NotNil(t, call.ParentID)
	assert.Equal(t, skill.ID, *call.ParentID)

	// Skill failure closes everything still open in its scope.
	finished, err := r.send(t, domain.EventSkillFinished, &domain.SkillPayload{
		CallID: "skill-1",
		Name:   "summarize",
		Error:  "context too large",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, call.Status)
	assert.Equal(t, domain.StatusFailed, skill.Status)
	// The skill node is the last content of the closing message.
	assert.Equal(t, skill.ID, finished.Contents[len(finished.Contents)-1].ID)

	children := slices.Collect(r.conv.ChildrenOf(r.runID, skill.ID))
	require.Len(t, children, 1)
	assert.Equal(t, call.ID, children[0].ID)
}

func TestConverter_PlanAndSteps(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	created, err := r.send(t, domain.EventPlanCreated, &domain.PlanPayload{
		PlanID: "plan-1",
		Steps:  []domain.PlanStepSpec{{Number: 1, Description: "fetch"}, {Number: 2, Description: "write"}},
	})
	require.NoError(t, err)
	plan := created.Contents[0]
	assert.Equal(t, domain.ContentPlan, plan.Kind)

	// plan_updated reconciles into the same node.
	updated, err := r.send(t, domain.EventPlanUpdated, &domain.PlanPayload{
		PlanID:       "plan-1",
		CurrentIndex: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.ID, updated.Contents[0].ID)
	assert.Equal(t, 1, plan.Plan.CurrentIndex)

	stepMsg, err := r.send(t, domain.EventStepStarted, &domain.StepPayload{
		PlanID: "plan-1",
		Number: 1,
	})
	require.NoError(t, err)
	step := stepMsg.Contents[0]
	require.NotNil(t, step.ParentID)
	assert.Equal(t, plan.ID, *step.ParentID)

	doneMsg, err := r.send(t, domain.EventStepFinished, &domain.StepPayload{
		PlanID: "plan-1",
		Number: 1,
		Result: "fetched",
	})
	require.NoError(t, err)
	assert.Equal(t, step.ID, doneMsg.Contents[0].ID)
	assert.Equal(t, domain.StatusCompleted, step.Status)
	assert.Equal(t, "fetched", step.Step.Result)
}

func TestConverter_FinalAnswerClosesRun(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	started, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{CallID: "c", Tool: "exec"})
	require.NoError(t, err)
	call := started.Contents[0]

	final, err := r.send(t, domain.EventFinalAnswer, &domain.TextPayload{Text: "done"})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageChat, final.Kind)
	// Still-open work ran to its natural end.
	assert.Equal(t, domain.StatusCompleted, call.Status)
	answer := final.Contents[len(final.Contents)-1]
	assert.Equal(t, domain.ContentText, answer.Kind)
	assert.Equal(t, domain.StatusCompleted, answer.Status)

	// Conversion state is gone and the run rejects further events.
	assert.Equal(t, 0, r.conv.OpenRuns())
	assert.Empty(t, slices.Collect(r.conv.ChildrenOf(r.runID, call.ID)))

	_, err = r.send(t, domain.EventReasoningStep, &domain.ThinkingPayload{Thought: "late"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunClosed)
}

func TestConverter_ErrorFailsOpenContent(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	started, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{CallID: "c", Tool: "exec"})
	require.NoError(t, err)
	call := started.Contents[0]

	alert, err := r.send(t, domain.EventError, &domain.ErrorPayload{Message: "agent crashed"})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageAlert, alert.Kind)
	assert.Equal(t, domain.StatusFailed, call.Status)
	errNode := alert.Contents[len(alert.Contents)-1]
	assert.Equal(t, domain.ContentError, errNode.Kind)
	assert.Equal(t, "agent crashed", errNode.Error.Message)
	assert.Equal(t, 0, r.conv.OpenRuns())
}

func TestConverter_InterruptedAndTimedOut(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		kind    domain.EventKind
		errKind string
	}{
		{domain.EventInterrupted, "interrupted"},
		{domain.EventTimedOut, "timed_out"},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()

			r := newRunFeed()
			_, err := r.send(t, domain.EventToolStarted, &domain.ToolStartPayload{CallID: "c", Tool: "exec"})
			require.NoError(t, err)

			alert, err := r.send(t, tc.kind, nil)
			require.NoError(t, err)

			assert.Equal(t, domain.MessageAlert, alert.Kind)
			errNode := alert.Contents[len(alert.Contents)-1]
			assert.Equal(t, domain.ContentError, errNode.Kind)
			assert.Equal(t, tc.errKind, errNode.Error.Kind)
		})
	}
}

func TestConverter_StaleStepSkipped(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	_, err := r.send(t, domain.EventReasoningStep, &domain.ThinkingPayload{Thought: "a"})
	require.NoError(t, err)

	// Duplicate delivery of the same step id.
	msg, err := r.conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventReasoningStep,
		RunID:    r.runID,
		StepID:   1,
		SenderID: "crew-1",
		Payload:  &domain.ThinkingPayload{Thought: "a"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleUpdate)
	assert.Nil(t, msg)
}

func TestConverter_TerminalExemptFromStaleCheck(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	_, err := r.send(t, domain.EventReasoningStep, &domain.ThinkingPayload{Thought: "a"})
	require.NoError(t, err)

	// An external cancellation reuses step 0 but must still close the run.
	alert, err := r.conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventInterrupted,
		RunID:    r.runID,
		StepID:   0,
		SenderID: "operator",
		Payload:  &domain.ErrorPayload{Message: "cancelled", Kind: "interrupted"},
	})

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 0, r.conv.OpenRuns())
}

func TestConverter_Suspension(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	paused, err := r.send(t, domain.EventPaused, nil)
	require.NoError(t, err)
	require.Len(t, paused.Contents, 1)
	marker := paused.Contents[0]
	assert.Equal(t, domain.ContentMetadata, marker.Kind)
	assert.Equal(t, "paused", marker.Metadata.Values["state"])

	resumed, err := r.send(t, domain.EventResumed, nil)
	require.NoError(t, err)
	assert.Equal(t, "resumed", resumed.Contents[0].Metadata.Values["state"])
}

func TestConverter_LegacyPayload(t *testing.T) {
	t.Parallel()

	r := newRunFeed()
	r.step++

	msg, err := r.conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventUserTurn,
		RunID:    r.runID,
		StepID:   r.step,
		SenderID: "user-1",
		Legacy:   map[string]any{"text": "hello from the old path"},
	})

	require.NoError(t, err)
	require.Len(t, msg.Contents, 1)
	assert.Equal(t, "hello from the old path", msg.Contents[0].Text.Text)
}

func TestConverter_UnknownKind(t *testing.T) {
	t.Parallel()

	r := newRunFeed()

	msg, err := r.conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventKind("telepathy"),
		RunID:    r.runID,
		StepID:   1,
		SenderID: "crew-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownContentKind)
	assert.Nil(t, msg)
}

func TestConverter_EveryKindHandled(t *testing.T) {
	t.Parallel()

	// Each kind in the closed enumeration must either produce a message or a
	// defined sentinel, never ErrUnknownContentKind.
	for _, kind := range domain.EventKinds() {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			r := newRunFeed()
			payload := payloadFor(kind)

			_, err := r.send(t, kind, payload)
			if err != nil {
				assert.NotErrorIs(t, err, domain.ErrUnknownContentKind)
			}
		})
	}
}

func TestConverter_ClosedRunWindowBounded(t *testing.T) {
	t.Parallel()

	conv := feed.NewConverter(feed.NewFactory())

	finish := func(runID uuid.UUID) {
		t.Helper()
		_, err := conv.Convert(domain.ExecutionEvent{
			Kind:     domain.EventFinalAnswer,
			RunID:    runID,
			StepID:   1,
			SenderID: "crew-1",
			Payload:  &domain.TextPayload{Text: "done"},
		})
		require.NoError(t, err)
	}

	oldest := uuid.New()
	finish(oldest)

	var newest uuid.UUID
	for range 1100 {
		newest = uuid.New()
		finish(newest)
	}

	// Recently terminated runs still refuse late events.
	_, err := conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventUserTurn,
		RunID:    newest,
		StepID:   2,
		SenderID: "crew-1",
		Payload:  &domain.TextPayload{Text: "late"},
	})
	require.ErrorIs(t, err, domain.ErrRunClosed)

	// The oldest tombstone aged out; its late event starts a fresh run
	// instead of growing the set without bound.
	msg, err := conv.Convert(domain.ExecutionEvent{
		Kind:     domain.EventUserTurn,
		RunID:    oldest,
		StepID:   1,
		SenderID: "crew-1",
		Payload:  &domain.TextPayload{Text: "late"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.LessOrEqual(t, conv.ClosedRuns(), 1024)
}

func payloadFor(kind domain.EventKind) domain.EventPayload {
	switch kind {
	case domain.EventUserTurn, domain.EventFinalAnswer:
		return &domain.TextPayload{Text: "t"}
	case domain.EventReasoningStep:
		return &domain.ThinkingPayload{Thought: "t"}
	case domain.EventToolStarted:
		return &domain.ToolStartPayload{CallID: "c", Tool: "t"}
	case domain.EventToolProgress:
		return &domain.ToolProgressPayload{CallID: "c", Message: "m"}
	case domain.EventToolFinished:
		return &domain.ToolResultPayload{CallID: "c", Tool: "t"}
	case domain.EventSkillStarted, domain.EventSkillProgress, domain.EventSkillFinished:
		return &domain.SkillPayload{CallID: "s", Name: "n"}
	case domain.EventPlanCreated, domain.EventPlanUpdated:
		return &domain.PlanPayload{PlanID: "p"}
	case domain.EventStepStarted, domain.EventStepFinished:
		return &domain.StepPayload{PlanID: "p", Number: 1}
	case domain.EventError:
		return &domain.ErrorPayload{Message: "boom"}
	default:
		return nil
	}
}
