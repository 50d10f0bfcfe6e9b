package crew

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/crewdeck/internal/domain"
)

// ErrSyncFailed is returned when the registry could not produce an instance
// for the live project; the session stays in SwitchRequested and retries on
// next use, never silently falling back to a wrong instance.
var ErrSyncFailed = errors.New("crew: project sync failed") //nolint:gochecknoglobals // sentinel error

// ProjectSource is the single authoritative source of the live current
// project. It must be safe to call at any time and must return the true,
// live selection — the coordinator never caches it.
type ProjectSource interface {
	CurrentProject(ctx context.Context, workspaceID uuid.UUID) (string, error)
}

// BindState is the coordinator's per-session state.
type BindState string

const (
	// StateBound means the session's instance matches a known project.
	StateBound BindState = "bound"
	// StateSwitchRequested means a switch target was stored; the UI may
	// already reflect it, but the instance is untouched until next use.
	StateSwitchRequested BindState = "switch_requested"
	// StateSyncing means a sync against the live source is in flight.
	StateSyncing BindState = "syncing"
)

// Coordinator decouples "a project switch was requested" from "the session
// now uses the right project". Switching is cheap and never touches the
// registry; binding happens lazily on next use, resolved against the live
// project source at that moment. A stored target that went stale between
// the request and first use is discarded, because binding to it would
// silently route the user's messages to the wrong project's agent.
type Coordinator struct {
	workspaceID uuid.UUID
	source      ProjectSource
	registry    *Registry
	config      InstanceConfig

	mu     sync.Mutex
	state  BindState
	bound  string // project the live instance is bound to
	target string // last requested switch target, may be stale
}

func NewCoordinator(workspaceID uuid.UUID, source ProjectSource, registry *Registry, cfg InstanceConfig) *Coordinator {
	return &Coordinator{
		workspaceID: workspaceID,
		source:      source,
		registry:    registry,
		config:      cfg,
		state:       StateSwitchRequested, // nothing bound until first use
	}
}

// RequestSwitch stores the switch target and transitions to
// SwitchRequested. Cheap: the registry is never touched here.
func (c *Coordinator) RequestSwitch(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = target
	c.state = StateSwitchRequested
}

// NeedsSync reports whether the session must sync before its next use.
func (c *Coordinator) NeedsSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateBound
}

// State returns the current bind state.
func (c *Coordinator) State() BindState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BoundProject returns the project the session is currently bound to.
func (c *Coordinator) BoundProject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Sync binds the session to the live current project and returns its
// instance. This is the only coordinator operation allowed to touch the
// registry. It re-reads the authoritative source rather than trusting the
// stored target; when already bound to the live project with a cached
// instance it is a no-op.
func (c *Coordinator) Sync(ctx context.Context) (*Instance, error) {
	c.mu.Lock()
	if c.state == StateBound {
		key := domain.InstanceKey{WorkspaceID: c.workspaceID, Project: c.bound}
		if c.registry.Has(key) {
			c.mu.Unlock()
			return c.registry.GetOrCreate(ctx, key, c.config)
		}
	}
	c.state = StateSyncing
	target := c.target
	c.mu.Unlock()

	live, err := c.source.CurrentProject(ctx, c.workspaceID)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("crew.Coordinator.Sync: read live project: %w: %v", ErrSyncFailed, err)
	}

	if target != "" && target != live {
		log.Debug().Str("workspace_id", c.workspaceID.String()).
			Str("target", target).Str("live", live).
			Msg("crew: switch target went stale, binding to live project")
	}

	key := domain.InstanceKey{WorkspaceID: c.workspaceID, Project: live}

	inst, err := c.registry.GetOrCreate(ctx, key, c.config)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("crew.Coordinator.Sync(%s): %w: %v", key, ErrSyncFailed, err)
	}

	c.mu.Lock()
	c.bound = live
	c.target = ""
	c.state = StateBound
	c.mu.Unlock()

	return inst, nil
}

// fail returns the coordinator to SwitchRequested so the next use retries.
func (c *Coordinator) fail() {
	c.mu.Lock()
	c.state = StateSwitchRequested
	c.mu.Unlock()
}
