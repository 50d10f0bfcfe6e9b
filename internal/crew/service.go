package crew

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/feed"
)

// defaultEventBuffer bounds the per-session event channel.
const defaultEventBuffer = 256

// SinkFactory builds the delivery sink chain for one workspace's feed.
// boundProject reports the project the workspace's session is bound to at
// delivery time.
type SinkFactory func(workspaceID uuid.UUID, boundProject func() string) feed.Sink

// Service owns the instance registry and one session pump per workspace.
// It is the inbound edge for crew members and skills: they push execution
// events, the service routes them to the right session.
type Service struct {
	registry *Registry
	source   ProjectSource
	sinkFor  SinkFactory
	config   InstanceConfig

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(registry *Registry, source ProjectSource, sinkFor SinkFactory, cfg InstanceConfig) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry: registry,
		source:   source,
		sinkFor:  sinkFor,
		config:   cfg,
		sessions: make(map[uuid.UUID]*Session),
		runCtx:   ctx,
		cancel:   cancel,
	}
}

// Submit routes one execution event to the workspace's session, creating
// the session pump on first use.
func (s *Service) Submit(ctx context.Context, workspaceID uuid.UUID, ev domain.ExecutionEvent) error {
	sess := s.session(workspaceID)
	if err := sess.Submit(ctx, ev); err != nil {
		return fmt.Errorf("crew.Service.Submit: %w", err)
	}
	return nil
}

// RequestSwitch records a project switch for the workspace's session. Cheap:
// the registry is untouched until the session's next user turn.
func (s *Service) RequestSwitch(workspaceID uuid.UUID, target string) {
	s.session(workspaceID).RequestSwitch(target)
}

// Interrupt cancels a run in the workspace's session.
func (s *Service) Interrupt(ctx context.Context, workspaceID, runID uuid.UUID, reason string) error {
	if err := s.session(workspaceID).Interrupt(ctx, runID, reason); err != nil {
		return fmt.Errorf("crew.Service.Interrupt: %w", err)
	}
	return nil
}

// InstanceKeys lists the cached instance keys.
func (s *Service) InstanceKeys() []domain.InstanceKey {
	return s.registry.Keys()
}

// RemoveInstance evicts one cached instance.
func (s *Service) RemoveInstance(ctx context.Context, key domain.InstanceKey) bool {
	return s.registry.Remove(ctx, key)
}

// ClearInstances evicts every cached instance.
func (s *Service) ClearInstances(ctx context.Context) {
	s.registry.Clear(ctx)
}

// Shutdown stops all session pumps and disposes cached instances.
func (s *Service) Shutdown(ctx context.Context) {
	s.cancel()

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	s.wg.Wait()
	s.registry.Clear(ctx)
}

func (s *Service) session(workspaceID uuid.UUID) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[workspaceID]
	if ok {
		return sess
	}

	coordinator := NewCoordinator(workspaceID, s.source, s.registry, s.config)
	sess = NewSession(workspaceID, coordinator, s.sinkFor(workspaceID, coordinator.BoundProject), defaultEventBuffer)
	s.sessions[workspaceID] = sess

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := sess.Run(s.runCtx); err != nil && s.runCtx.Err() == nil {
			log.Error().Err(err).Str("workspace_id", workspaceID.String()).Msg("crew: session pump stopped")
		}
	}()

	return sess
}
