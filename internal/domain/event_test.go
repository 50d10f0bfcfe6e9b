package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/crewdeck/internal/domain"
)

func TestEventKind_Terminal(t *testing.T) {
	t.Parallel()

	terminal := map[domain.EventKind]bool{
		domain.EventFinalAnswer: true,
		domain.EventError:       true,
		domain.EventInterrupted: true,
		domain.EventTimedOut:    true,
	}

	for _, kind := range domain.EventKinds() {
		assert.Equal(t, terminal[kind], kind.Terminal(), "kind %q", kind)
	}
}

func TestDecodeLegacy(t *testing.T) {
	t.Parallel()

	t.Run("user turn text", func(t *testing.T) {
		t.Parallel()

		payload, err := domain.DecodeLegacy(domain.EventUserTurn, map[string]any{"text": "hello"})
		require.NoError(t, err)

		text, ok := payload.(*domain.TextPayload)
		require.True(t, ok)
		assert.Equal(t, "hello", text.Text)
	})

	t.Run("tool started with arguments", func(t *testing.T) {
		t.Parallel()

		payload, err := domain.DecodeLegacy(domain.EventToolStarted, map[string]any{
			"call_id":   "call-1",
			"tool":      "exec",
			"arguments": map[string]any{"cmd": "ls"},
		})
		require.NoError(t, err)

		start, ok := payload.(*domain.ToolStartPayload)
		require.True(t, ok)
		assert.Equal(t, "call-1", start.CallID)
		assert.Equal(t, "exec", start.Tool)
		assert.JSONEq(t, `{"cmd":"ls"}`, string(start.Arguments))
	})

	t.Run("plan with steps", func(t *testing.T) {
		t.Parallel()

		payload, err := domain.DecodeLegacy(domain.EventPlanCreated, map[string]any{
			"plan_id": "p1",
			"steps": []map[string]any{
				{"number": 1, "description": "research"},
				{"number": 2, "description": "write"},
			},
		})
		require.NoError(t, err)

		plan, ok := payload.(*domain.PlanPayload)
		require.True(t, ok)
		require.Len(t, plan.Steps, 2)
		assert.Equal(t, "research", plan.Steps[0].Description)
	})

	t.Run("no alias keys", func(t *testing.T) {
		t.Parallel()

		// "message" is not a canonical field of TextPayload; the decode
		// succeeds but yields an empty text, never a fallback.
		payload, err := domain.DecodeLegacy(domain.EventUserTurn, map[string]any{"message": "hello"})
		require.NoError(t, err)

		text, ok := payload.(*domain.TextPayload)
		require.True(t, ok)
		assert.Empty(t, text.Text)
	})

	t.Run("markers decode to nothing", func(t *testing.T) {
		t.Parallel()

		for _, kind := range []domain.EventKind{domain.EventPaused, domain.EventResumed} {
			payload, err := domain.DecodeLegacy(kind, map[string]any{"ignored": true})
			require.NoError(t, err)
			assert.Nil(t, payload)
		}
	})

	t.Run("nil map is malformed", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeLegacy(domain.EventUserTurn, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	})

	t.Run("wrong field type is malformed", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeLegacy(domain.EventUserTurn, map[string]any{"text": 42})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeLegacy(domain.EventKind("made_up"), map[string]any{})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnknownContentKind)
	})

	t.Run("every kind decodes", func(t *testing.T) {
		t.Parallel()

		for _, kind := range domain.EventKinds() {
			_, err := domain.DecodeLegacy(kind, map[string]any{"call_id": "c", "plan_id": "p"})
			assert.NoError(t, err, "kind %q", kind)
		}
	})
}
