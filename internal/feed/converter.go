package feed

import (
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/crewdeck/internal/domain"
)

// Converter is the single, centralized translation point from execution
// events to outward messages. Every kind in the closed event enumeration
// has defined behavior here — a message or an explicit, loggable no-op — so
// no class of events can silently fail to reach the UI.
//
// A Converter serves one session's runs and is driven by a single
// cooperative task; it requires no locking.
type Converter struct {
	factory *Factory
	runs    map[uuid.UUID]*runState

	// closed remembers recently terminated runs so their late events are
	// refused instead of reopening the run. The window is bounded; events
	// for runs that aged out of it are treated as a new run.
	closed      map[uuid.UUID]struct{}
	closedOrder []uuid.UUID
}

// closedRunWindow caps how many terminated runs keep a tombstone.
const closedRunWindow = 1024

// runState is the per-run conversion bookkeeping, discarded on the run's
// terminal event.
type runState struct {
	tracker  *Tracker
	lastStep uint64
	started  bool

	thinking map[string]uuid.UUID // sender id -> open thinking node
	calls    map[string]uuid.UUID // tool call id -> ToolCall node
	progress map[string]uuid.UUID // tool call id -> Progress node
	skills   map[string]uuid.UUID // skill call id -> Skill node
	plans    map[string]uuid.UUID // plan id -> Plan node
	steps    map[string]uuid.UUID // plan id + step number -> Step node
}

func NewConverter(factory *Factory) *Converter {
	return &Converter{
		factory: factory,
		runs:    make(map[uuid.UUID]*runState),
		closed:  make(map[uuid.UUID]struct{}),
	}
}

// Convert turns one execution event into zero or one outward message.
//
// Recoverable problems (malformed payloads, stale steps, unknown parents)
// are returned as errors for the caller to log, but never abort the run: a
// message may accompany a non-nil error when partial information could
// still be delivered.
func (c *Converter) Convert(ev domain.ExecutionEvent) (*domain.OutwardMessage, error) {
	if _, done := c.closed[ev.RunID]; done {
		log.Debug().Str("run_id", ev.RunID.String()).Str("kind", string(ev.Kind)).
			Msg("feed: event for closed run ignored")
		return nil, fmt.Errorf("feed.Converter.Convert(%s): %w", ev.Kind, domain.ErrRunClosed)
	}

	rs := c.runState(ev.RunID)

	// Step ids are strictly increasing within a run; anything at or below
	// the last observed step is a duplicate or late delivery. Terminal
	// kinds are exempt: an external cancellation must always close the run.
	if rs.started && ev.StepID <= rs.lastStep && !ev.Kind.Terminal() {
		log.Debug().Str("run_id", ev.RunID.String()).Uint64("step_id", ev.StepID).
			Uint64("last_step", rs.lastStep).Msg("feed: out-of-order event skipped")
		return nil, fmt.Errorf("feed.Converter.Convert(%s): step %d <= %d: %w",
			ev.Kind, ev.StepID, rs.lastStep, domain.ErrStaleUpdate)
	}
	rs.started = true
	rs.lastStep = ev.StepID

	payload, err := resolvePayload(ev)
	if err != nil {
		return nil, err
	}

	var (
		contents []*domain.ContentNode
		kind     domain.MessageKind
		convErr  error
	)

	switch ev.Kind {
	case domain.EventUserTurn:
		contents, convErr = c.convertText(rs, payload)
		kind = domain.MessageChat
	case domain.EventReasoningStep:
		contents, convErr = c.convertThinking(rs, ev.SenderID, payload)
		kind = domain.MessageChat
	case domain.EventToolStarted:
		contents, convErr = c.convertToolStarted(rs, payload)
		kind = domain.MessageStatus
	case domain.EventToolProgress:
		contents, convErr = c.convertToolProgress(rs, payload)
		kind = domain.MessageStatus
	case domain.EventToolFinished:
		contents, convErr = c.convertToolFinished(rs, payload)
		kind = domain.MessageStatus
	case domain.EventSkillStarted:
		contents, convErr = c.convertSkillStarted(rs, payload)
		kind = domain.MessageStatus
	case domain.EventSkillProgress:
		contents, convErr = c.convertSkillProgress(rs, payload)
		kind = domain.MessageStatus
	case domain.EventSkillFinished:
		contents, convErr = c.convertSkillFinished(rs, payload)
		kind = domain.MessageStatus
	case domain.EventPlanCreated, domain.EventPlanUpdated:
		contents, convErr = c.convertPlan(rs, payload)
		kind = domain.MessageStatus
	case domain.EventStepStarted:
		contents, convErr = c.convertStepStarted(rs, payload)
		kind = domain.MessageStatus
	case domain.EventStepFinished:
		contents, convErr = c.convertStepFinished(rs, payload)
		kind = domain.MessageStatus
	case domain.EventFinalAnswer:
		contents, convErr = c.convertFinalAnswer(rs, payload)
		kind = domain.MessageChat
		c.evict(ev.RunID, rs)
	case domain.EventError:
		contents, convErr = c.convertRunFailure(rs, payload, "error")
		kind = domain.MessageAlert
		c.evict(ev.RunID, rs)
	case domain.EventInterrupted:
		contents, convErr = c.convertRunFailure(rs, payload, "interrupted")
		kind = domain.MessageAlert
		c.evict(ev.RunID, rs)
	case domain.EventTimedOut:
		contents, convErr = c.convertRunFailure(rs, payload, "timed_out")
		kind = domain.MessageAlert
		c.evict(ev.RunID, rs)
	case domain.EventPaused:
		contents, convErr = c.convertSuspension(rs, "paused")
		kind = domain.MessageStatus
	case domain.EventResumed:
		contents, convErr = c.convertSuspension(rs, "resumed")
		kind = domain.MessageStatus
	default:
		// The enumeration is closed; reaching here means a new kind was
		// added without converter support. Surface it loudly.
		log.Error().Str("kind", string(ev.Kind)).Msg("feed: unhandled event kind")
		return nil, fmt.Errorf("feed.Converter.Convert(%q): %w", ev.Kind, domain.ErrUnknownContentKind)
	}

	if len(contents) == 0 {
		return nil, convErr
	}

	msg := &domain.OutwardMessage{
		ID:         uuid.New(),
		RunID:      ev.RunID,
		SenderID:   ev.SenderID,
		SenderName: ev.SenderName,
		Kind:       kind,
		Contents:   contents,
		Timestamp:  time.Now(),
	}
	return msg, convErr
}

// ChildrenOf exposes the run's hierarchy for aggregated display. After the
// run's terminal event the scope is evicted and the sequence is empty.
func (c *Converter) ChildrenOf(runID, contentID uuid.UUID) iter.Seq[*domain.ContentNode] {
	rs, ok := c.runs[runID]
	if !ok {
		return func(func(*domain.ContentNode) bool) {}
	}
	return rs.tracker.ChildrenOf(contentID)
}

// OpenRuns returns the number of runs with live conversion state.
func (c *Converter) OpenRuns() int {
	return len(c.runs)
}

// ClosedRuns returns the number of terminated runs still holding a tombstone.
func (c *Converter) ClosedRuns() int {
	return len(c.closed)
}

func (c *Converter) runState(runID uuid.UUID) *runState {
	rs, ok := c.runs[runID]
	if !ok {
		rs = &runState{
			tracker:  NewTracker(runID),
			thinking: make(map[string]uuid.UUID),
			calls:    make(map[string]uuid.UUID),
			progress: make(map[string]uuid.UUID),
			skills:   make(map[string]uuid.UUID),
			plans:    make(map[string]uuid.UUID),
			steps:    make(map[string]uuid.UUID),
		}
		c.runs[runID] = rs
	}
	return rs
}

func (c *Converter) evict(runID uuid.UUID, rs *runState) {
	rs.tracker.Close()
	delete(c.runs, runID)

	if _, dup := c.closed[runID]; dup {
		return
	}
	c.closed[runID] = struct{}{}
	c.closedOrder = append(c.closedOrder, runID)

	if len(c.closedOrder) > closedRunWindow {
		oldest := c.closedOrder[0]
		c.closedOrder = c.closedOrder[1:]
		delete(c.closed, oldest)
	}
}

func (c *Converter) convertText(rs *runState, payload any) ([]*domain.ContentNode, error) {
	node, err := c.factory.Create(domain.ContentText, payload)
	if err != nil {
		return nil, err
	}
	_ = c.factory.Complete(node, "")
	regErr := rs.tracker.Register(node)
	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertThinking(rs *runState, senderID string, payload any) ([]*domain.ContentNode, error) {
	if id, ok := rs.thinking[senderID]; ok {
		if node, live := rs.tracker.Node(id); live && !node.Status.Terminal() {
			if err := c.factory.Update(node, payload); err != nil {
				return nil, err
			}
			return []*domain.ContentNode{node}, nil
		}
	}

	node, err := c.factory.Create(domain.ContentThinking, payload)
	if err != nil {
		return nil, err
	}
	c.parentToScope(rs, node)
	regErr := rs.tracker.Register(node)
	rs.thinking[senderID] = node.ID
	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertToolStarted(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.ToolStartPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: tool_started requires call_id: %w", domain.ErrMalformedPayload)
	}

	node, err := c.factory.Create(domain.ContentToolCall, p)
	if err != nil {
		return nil, err
	}
	c.parentToScope(rs, node)
	regErr := rs.tracker.Register(node)
	rs.calls[p.CallID] = node.ID
	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertToolProgress(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.ToolProgressPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: tool_progress requires call_id: %w", domain.ErrMalformedPayload)
	}

	contents := make([]*domain.ContentNode, 0, 2)

	// Subsequent progress for the same invocation updates the existing
	// Progress node; the UI reconciles by content id.
	if id, tracked := rs.progress[p.CallID]; tracked {
		if node, live := rs.tracker.Node(id); live {
			if err := c.factory.Update(node, p); err != nil {
				return nil, err
			}
			contents = append(contents, node)
			if parent := c.touchCall(rs, p.CallID); parent != nil {
				contents = append(contents, parent)
			}
			return contents, nil
		}
	}

	node, err := c.factory.Create(domain.ContentProgress, p)
	if err != nil {
		return nil, err
	}

	var regErr error
	callNodeID, known := rs.calls[p.CallID]
	if known {
		parentID := callNodeID
		node.ParentID = &parentID
	} else {
		// The matching ToolCall was never registered in this run. Deliver
		// the orphan flagged parentless rather than dropping information.
		node.Orphaned = true
		regErr = fmt.Errorf("feed: tool_progress call %q: %w", p.CallID, domain.ErrUnknownParent)
	}

	if err := rs.tracker.Register(node); err != nil {
		regErr = err
	}
	rs.progress[p.CallID] = node.ID
	contents = append(contents, node)

	if parent := c.touchCall(rs, p.CallID); parent != nil {
		contents = append(contents, parent)
	}
	return contents, regErr
}

func (c *Converter) convertToolFinished(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.ToolResultPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: tool_finished requires call_id: %w", domain.ErrMalformedPayload)
	}

	var (
		callNode *domain.ContentNode
		regErr   error
	)
	if id, known := rs.calls[p.CallID]; known {
		callNode, _ = rs.tracker.Node(id)
	}

	// Fill the tool name from the tracked invocation when the result
	// payload omits it.
	if p.Tool == "" && callNode != nil {
		p.Tool = callNode.ToolCall.Tool
	}

	resp, err := c.factory.Create(domain.ContentToolResponse, p)
	if err != nil {
		return nil, err
	}

	if callNode != nil {
		parentID := callNode.ID
		resp.ParentID = &parentID
	} else {
		resp.Orphaned = true
		regErr = fmt.Errorf("feed: tool_finished call %q: %w", p.CallID, domain.ErrUnknownParent)
	}

	if p.Error != "" {
		_ = c.factory.Fail(resp, p.Error)
	} else {
		_ = c.factory.Complete(resp, "")
	}
	if err := rs.tracker.Register(resp); err != nil {
		regErr = err
	}

	contents := []*domain.ContentNode{resp}

	if callNode != nil {
		if p.Error != "" {
			_ = c.factory.Fail(callNode, p.Error)
		} else {
			_ = c.factory.Complete(callNode, "")
		}
		contents = append(contents, callNode)
	}

	// An open Progress child finishes with its invocation.
	if id, tracked := rs.progress[p.CallID]; tracked {
		if prog, live := rs.tracker.Node(id); live && !prog.Status.Terminal() {
			if p.Error != "" {
				_ = c.factory.Fail(prog, "")
			} else {
				_ = c.factory.Complete(prog, "")
			}
			contents = append(contents, prog)
		}
		delete(rs.progress, p.CallID)
	}
	delete(rs.calls, p.CallID)

	return contents, regErr
}

func (c *Converter) convertSkillStarted(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.SkillPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: skill_started requires call_id: %w", domain.ErrMalformedPayload)
	}

	node, err := c.factory.Create(domain.ContentSkill, p)
	if err != nil {
		return nil, err
	}
	c.parentToScope(rs, node)
	regErr := rs.tracker.Register(node)

	// Tool calls raised inside the skill become children of the skill node.
	rs.tracker.PushScope(node.ID)
	rs.skills[p.CallID] = node.ID

	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertSkillProgress(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.SkillPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: skill_progress requires call_id: %w", domain.ErrMalformedPayload)
	}

	id, known := rs.skills[p.CallID]
	if !known {
		return nil, fmt.Errorf("feed: skill_progress call %q: %w", p.CallID, domain.ErrUnknownParent)
	}
	node, live := rs.tracker.Node(id)
	if !live {
		return nil, fmt.Errorf("feed: skill_progress call %q: %w", p.CallID, domain.ErrUnknownParent)
	}

	if err := c.factory.Update(node, p); err != nil {
		return nil, err
	}
	return []*domain.ContentNode{node}, nil
}

func (c *Converter) convertSkillFinished(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.SkillPayload)
	if !ok || p.CallID == "" {
		return nil, fmt.Errorf("feed: skill_finished requires call_id: %w", domain.ErrMalformedPayload)
	}

	id, known := rs.skills[p.CallID]
	if !known {
		return nil, fmt.Errorf("feed: skill_finished call %q: %w", p.CallID, domain.ErrUnknownParent)
	}
	node, live := rs.tracker.Node(id)
	if !live {
		return nil, fmt.Errorf("feed: skill_finished call %q: %w", p.CallID, domain.ErrUnknownParent)
	}

	// Everything still open inside the skill's scope finishes with it.
	var contents []*domain.ContentNode
	for _, child := range rs.tracker.OpenInScope(node.ID) {
		if p.Error != "" {
			_ = c.factory.Fail(child, "")
		} else {
			_ = c.factory.Complete(child, "")
		}
		contents = append(contents, child)
	}
	rs.tracker.PopScope(node.ID)

	if p.Error != "" {
		_ = c.factory.Fail(node, p.Error)
	} else {
		_ = c.factory.Complete(node, "")
	}
	contents = append(contents, node)

	delete(rs.skills, p.CallID)
	return contents, nil
}

func (c *Converter) convertPlan(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.PlanPayload)
	if !ok {
		return nil, fmt.Errorf("feed: plan event payload: %w", domain.ErrMalformedPayload)
	}

	if id, known := rs.plans[p.PlanID]; known {
		if node, live := rs.tracker.Node(id); live {
			if err := c.factory.Update(node, p); err != nil {
				return nil, err
			}
			return []*domain.ContentNode{node}, nil
		}
	}

	node, err := c.factory.Create(domain.ContentPlan, p)
	if err != nil {
		return nil, err
	}
	regErr := rs.tracker.Register(node)
	rs.plans[p.PlanID] = node.ID
	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertStepStarted(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.StepPayload)
	if !ok {
		return nil, fmt.Errorf("feed: step_started payload: %w", domain.ErrMalformedPayload)
	}

	node, err := c.factory.Create(domain.ContentStep, p)
	if err != nil {
		return nil, err
	}

	var regErr error
	if planNodeID, known := rs.plans[p.PlanID]; known {
		parentID := planNodeID
		node.ParentID = &parentID
	} else if p.PlanID != "" {
		node.Orphaned = true
		regErr = fmt.Errorf("feed: step_started plan %q: %w", p.PlanID, domain.ErrUnknownParent)
	}

	if err := rs.tracker.Register(node); err != nil {
		regErr = err
	}
	rs.steps[stepKey(p)] = node.ID
	return []*domain.ContentNode{node}, regErr
}

func (c *Converter) convertStepFinished(rs *runState, payload any) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.StepPayload)
	if !ok {
		return nil, fmt.Errorf("feed: step_finished payload: %w", domain.ErrMalformedPayload)
	}

	id, known := rs.steps[stepKey(p)]
	if !known {
		return nil, fmt.Errorf("feed: step_finished step %d: %w", p.Number, domain.ErrUnknownParent)
	}
	node, live := rs.tracker.Node(id)
	if !live {
		return nil, fmt.Errorf("feed: step_finished step %d: %w", p.Number, domain.ErrUnknownParent)
	}

	if p.Error != "" {
		_ = c.factory.Fail(node, p.Error)
	} else {
		_ = c.factory.Complete(node, p.Result)
	}
	return []*domain.ContentNode{node}, nil
}

func (c *Converter) convertFinalAnswer(rs *runState, payload any) ([]*domain.ContentNode, error) {
	// The run finished naturally: whatever is still open ran to its end.
	contents := c.closeOpen(rs, domain.StatusCompleted)

	node, err := c.factory.Create(domain.ContentText, payload)
	if err != nil {
		return contents, err
	}
	_ = c.factory.Complete(node, "")
	regErr := rs.tracker.Register(node)
	contents = append(contents, node)
	return contents, regErr
}

// convertRunFailure handles error, interrupted and timed-out events: every
// still-open node is driven to Failed and an Error content summarizes the
// stop. The run is closed by the caller.
func (c *Converter) convertRunFailure(rs *runState, payload any, errKind string) ([]*domain.ContentNode, error) {
	p, ok := payload.(*domain.ErrorPayload)
	if !ok || p == nil {
		p = &domain.ErrorPayload{Message: "run " + errKind}
	}
	if p.Kind == "" {
		p.Kind = errKind
	}
	if p.Message == "" {
		p.Message = "run " + errKind
	}

	contents := c.closeOpen(rs, domain.StatusFailed)

	node, err := c.factory.Create(domain.ContentError, p)
	if err != nil {
		return contents, err
	}
	_ = c.factory.Fail(node, "")
	regErr := rs.tracker.Register(node)
	contents = append(contents, node)
	return contents, regErr
}

func (c *Converter) convertSuspension(rs *runState, state string) ([]*domain.ContentNode, error) {
	// No content node changes status here; a metadata marker makes the
	// transition observable in the feed.
	node, err := c.factory.Create(domain.ContentMetadata, &domain.MetadataContent{
		Values: map[string]string{"state": state},
	})
	if err != nil {
		return nil, err
	}
	_ = c.factory.Complete(node, "")
	regErr := rs.tracker.Register(node)
	return []*domain.ContentNode{node}, regErr
}

// closeOpen drives every still-open node of the run to the given terminal
// status and returns them so their final state reaches the UI.
func (c *Converter) closeOpen(rs *runState, terminal domain.ContentStatus) []*domain.ContentNode {
	var contents []*domain.ContentNode
	for _, node := range rs.tracker.Open() {
		if terminal == domain.StatusFailed {
			_ = c.factory.Fail(node, "")
		} else {
			_ = c.factory.Complete(node, "")
		}
		contents = append(contents, node)
	}
	return contents
}

// touchCall advances the parent ToolCall to Updating while progress flows.
func (c *Converter) touchCall(rs *runState, callID string) *domain.ContentNode {
	id, known := rs.calls[callID]
	if !known {
		return nil
	}
	node, live := rs.tracker.Node(id)
	if !live || node.Status.Terminal() {
		return nil
	}
	if node.Status == domain.StatusUpdating {
		return node
	}
	if err := node.Advance(domain.StatusUpdating); err != nil {
		return nil
	}
	return node
}

// parentToScope parents a top-level node under the innermost open skill.
func (c *Converter) parentToScope(rs *runState, node *domain.ContentNode) {
	if owner, ok := rs.tracker.ScopeOwner(); ok {
		parentID := owner
		node.ParentID = &parentID
	}
}

func resolvePayload(ev domain.ExecutionEvent) (any, error) {
	if ev.Payload != nil {
		return ev.Payload, nil
	}
	if ev.Legacy != nil {
		p, err := domain.DecodeLegacy(ev.Kind, ev.Legacy)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	// Marker kinds legitimately carry no payload.
	return nil, nil
}

func stepKey(p *domain.StepPayload) string {
	return fmt.Sprintf("%s#%d", p.PlanID, p.Number)
}
