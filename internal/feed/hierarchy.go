package feed

import (
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/domain"
)

// Tracker maintains parent->children links between content nodes within one
// run. Skill contents own nested scopes: nodes registered while a skill
// scope is open belong to that skill, so nested expand/collapse is a direct
// structural property rather than a flat-map convention.
//
// The tracker is scoped per run and discarded when the run reaches a
// terminal event, bounding memory. Not safe for concurrent use; one
// cooperative task per session owns it.
type Tracker struct {
	runID    uuid.UUID
	nodes    map[uuid.UUID]*domain.ContentNode
	children map[uuid.UUID][]uuid.UUID
	order    []uuid.UUID
	scopeOf  map[uuid.UUID]uuid.UUID // node id -> owning skill scope (uuid.Nil = run root)
	scopes   []uuid.UUID             // open skill scope stack, innermost last
	closed   bool
}

func NewTracker(runID uuid.UUID) *Tracker {
	return &Tracker{
		runID:    runID,
		nodes:    make(map[uuid.UUID]*domain.ContentNode),
		children: make(map[uuid.UUID][]uuid.UUID),
		scopeOf:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Register records the node and, when its parent id is set, appends it to
// the parent's child list. An unknown parent is a hierarchy violation
// reported as ErrUnknownParent, but the node is still registered (flagged
// parentless) so partial information is never lost. Re-registering the same
// node is the idempotent no-op required for duplicate deliveries.
func (t *Tracker) Register(node *domain.ContentNode) error {
	if t.closed {
		return fmt.Errorf("feed.Tracker.Register(%s): run %s: %w", node.ID, t.runID, domain.ErrRunClosed)
	}

	if existing, ok := t.nodes[node.ID]; ok {
		if existing == node {
			return nil
		}
		return fmt.Errorf("feed.Tracker.Register(%s): %w", node.ID, domain.ErrDuplicateContentID)
	}

	var regErr error
	if node.ParentID != nil {
		parentID := *node.ParentID
		if _, ok := t.nodes[parentID]; ok {
			t.children[parentID] = append(t.children[parentID], node.ID)
		} else {
			node.ParentID = nil
			node.Orphaned = true
			regErr = fmt.Errorf("feed.Tracker.Register(%s): parent %s: %w", node.ID, parentID, domain.ErrUnknownParent)
		}
	}

	t.nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	t.scopeOf[node.ID] = t.currentScope()

	return regErr
}

// ChildrenOf produces a lazy, finite, restartable sequence of the node's
// children in registration order. An unknown or evicted id yields nothing.
func (t *Tracker) ChildrenOf(contentID uuid.UUID) iter.Seq[*domain.ContentNode] {
	return func(yield func(*domain.ContentNode) bool) {
		if t.closed {
			return
		}
		for _, id := range t.children[contentID] {
			child, ok := t.nodes[id]
			if !ok {
				continue
			}
			if !yield(child) {
				return
			}
		}
	}
}

// Node returns the registered node for an id.
func (t *Tracker) Node(id uuid.UUID) (*domain.ContentNode, bool) {
	if t.closed {
		return nil, false
	}
	n, ok := t.nodes[id]
	return n, ok
}

// Open returns all registered nodes that have not reached a terminal status,
// in registration order.
func (t *Tracker) Open() []*domain.ContentNode {
	if t.closed {
		return nil
	}
	var open []*domain.ContentNode
	for _, id := range t.order {
		if n := t.nodes[id]; !n.Status.Terminal() {
			open = append(open, n)
		}
	}
	return open
}

// OpenInScope returns the non-terminal nodes registered inside the given
// skill scope, in registration order. The scope owner itself is excluded.
func (t *Tracker) OpenInScope(owner uuid.UUID) []*domain.ContentNode {
	if t.closed {
		return nil
	}
	var open []*domain.ContentNode
	for _, id := range t.order {
		if t.scopeOf[id] != owner {
			continue
		}
		if n := t.nodes[id]; !n.Status.Terminal() {
			open = append(open, n)
		}
	}
	return open
}

// PushScope opens a nested scope owned by a registered skill node. Nodes
// registered until the matching PopScope belong to that skill.
func (t *Tracker) PushScope(owner uuid.UUID) {
	t.scopes = append(t.scopes, owner)
}

// PopScope closes the given scope. Out-of-order pops close every scope
// nested inside the target as well, which matches a skill failing while its
// inner tool calls are still open.
func (t *Tracker) PopScope(owner uuid.UUID) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if t.scopes[i] == owner {
			t.scopes = t.scopes[:i]
			return
		}
	}
}

// ScopeOwner returns the innermost open skill scope, if any.
func (t *Tracker) ScopeOwner() (uuid.UUID, bool) {
	if len(t.scopes) == 0 {
		return uuid.Nil, false
	}
	return t.scopes[len(t.scopes)-1], true
}

// Close evicts all hierarchy state for the run. Subsequent queries return
// empty results and registrations fail with ErrRunClosed.
func (t *Tracker) Close() {
	t.closed = true
	t.nodes = nil
	t.children = nil
	t.order = nil
	t.scopeOf = nil
	t.scopes = nil
}

// Closed reports whether the run's hierarchy scope was evicted.
func (t *Tracker) Closed() bool {
	return t.closed
}

// Len returns the number of registered nodes.
func (t *Tracker) Len() int {
	return len(t.order)
}

func (t *Tracker) currentScope() uuid.UUID {
	if owner, ok := t.ScopeOwner(); ok {
		return owner
	}
	return uuid.Nil
}
