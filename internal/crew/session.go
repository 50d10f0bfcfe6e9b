package crew

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/feed"
)

// Session is one conversational session for a workspace. A single
// cooperative task consumes its ordered event channel: it suspends waiting
// for the next event, lazily syncs the project binding before each user
// turn, converts the event and pushes the resulting message to the sink.
type Session struct {
	workspaceID uuid.UUID
	coordinator *Coordinator
	converter   *feed.Converter
	sink        feed.Sink

	events chan domain.ExecutionEvent
	done   chan struct{}

	// instance is only touched by the pump goroutine.
	instance *Instance
}

func NewSession(workspaceID uuid.UUID, coordinator *Coordinator, sink feed.Sink, buffer int) *Session {
	return &Session{
		workspaceID: workspaceID,
		coordinator: coordinator,
		converter:   feed.NewConverter(feed.NewFactory()),
		sink:        sink,
		events:      make(chan domain.ExecutionEvent, buffer),
		done:        make(chan struct{}),
	}
}

// Submit pushes one execution event into the session's ordered channel.
// Events of one run must be submitted in step order; the converter treats
// regressions as stale.
func (s *Session) Submit(ctx context.Context, ev domain.ExecutionEvent) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return fmt.Errorf("crew.Session.Submit: session closed: %w", domain.ErrRunClosed)
	case <-ctx.Done():
		return fmt.Errorf("crew.Session.Submit: %w", ctx.Err())
	}
}

// Interrupt closes a run from outside (user cancel): every still-open
// content node is driven to a terminal status before the run is considered
// closed.
func (s *Session) Interrupt(ctx context.Context, runID uuid.UUID, reason string) error {
	ev := domain.ExecutionEvent{
		Kind:     domain.EventInterrupted,
		RunID:    runID,
		SenderID: "crewdeck",
		Payload:  &domain.ErrorPayload{Message: reason, Kind: "interrupted"},
	}
	return s.Submit(ctx, ev)
}

// RequestSwitch records a project switch for this session. The agent
// instance is untouched until the next user turn.
func (s *Session) RequestSwitch(target string) {
	s.coordinator.RequestSwitch(target)
}

// Run consumes events until the context is cancelled or the session is
// closed. It is the session's single cooperative task.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// Close stops the pump. Pending events in the channel are dropped.
func (s *Session) Close() {
	close(s.done)
}

func (s *Session) handle(ctx context.Context, ev domain.ExecutionEvent) {
	// A user turn is the point of use: bind to the live current project
	// before any conversion, so the turn can never land on a stale target.
	if ev.Kind == domain.EventUserTurn || s.coordinator.NeedsSync() {
		inst, err := s.coordinator.Sync(ctx)
		if err != nil {
			s.reportSyncFailure(ctx, ev, err)
			return
		}
		s.instance = inst
	}

	msg, err := s.converter.Convert(ev)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleUpdate), errors.Is(err, domain.ErrRunClosed):
			log.Debug().Err(err).Str("run_id", ev.RunID.String()).Msg("crew: event ignored")
		default:
			log.Warn().Err(err).Str("run_id", ev.RunID.String()).
				Str("kind", string(ev.Kind)).Msg("crew: event conversion problem")
		}
	}
	if msg == nil {
		return
	}

	if deliverErr := s.sink.Deliver(ctx, msg); deliverErr != nil {
		log.Error().Err(deliverErr).Str("message_id", msg.ID.String()).Msg("crew: message delivery failed")
	}

	if s.instance != nil {
		s.instance.AppendHistory(msg)
	}
}

// reportSyncFailure surfaces a registry/sync failure as an explicit alert
// closing the run; the coordinator stays in SwitchRequested for retry on
// the next use, and no message is ever routed to a wrong instance.
func (s *Session) reportSyncFailure(ctx context.Context, ev domain.ExecutionEvent, syncErr error) {
	log.Error().Err(syncErr).Str("workspace_id", s.workspaceID.String()).Msg("crew: project sync failed")

	msg, err := s.converter.Convert(domain.ExecutionEvent{
		Kind:     domain.EventError,
		RunID:    ev.RunID,
		StepID:   ev.StepID,
		SenderID: "crewdeck",
		Payload: &domain.ErrorPayload{
			Message: syncErr.Error(),
			Kind:    "sync_failure",
		},
	})
	if err != nil && msg == nil {
		return
	}
	if deliverErr := s.sink.Deliver(ctx, msg); deliverErr != nil {
		log.Error().Err(deliverErr).Str("run_id", ev.RunID.String()).Msg("crew: sync failure delivery failed")
	}
}
