package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/crewdeck/internal/domain"
	"github.com/gosuda/crewdeck/internal/messenger"
)

// ErrPlatformNotFound is returned when a messenger platform is not registered.
var ErrPlatformNotFound = errors.New("notify: platform not found") //nolint:gochecknoglobals // sentinel error

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (messenger.Messenger, bool)
}

// Notifier pushes run outcomes to a chat channel. Only alerts and final
// chat answers are forwarded; intermediate feed traffic stays on the
// websocket path.
type Notifier struct {
	messengers MessengerRegistry
	platform   string
	channelID  string
}

// New creates a Notifier bound to one platform and channel.
func New(messengers MessengerRegistry, platform, channelID string) *Notifier {
	return &Notifier{
		messengers: messengers,
		platform:   platform,
		channelID:  channelID,
	}
}

// Deliver satisfies feed.Sink. Messages that are neither alerts nor carry a
// terminal text or error content are dropped silently.
func (n *Notifier) Deliver(ctx context.Context, msg *domain.OutwardMessage) error {
	text, ok := renderOutcome(msg)
	if !ok {
		return nil
	}

	m, found := n.messengers.Get(n.platform)
	if !found {
		return fmt.Errorf("notify.Notifier.Deliver: platform %q: %w", n.platform, ErrPlatformNotFound)
	}

	if _, err := m.SendMessage(ctx, n.channelID, text); err != nil {
		return fmt.Errorf("notify.Notifier.Deliver: send: %w", err)
	}

	log.Debug().
		Str("run_id", msg.RunID.String()).
		Str("platform", n.platform).
		Msg("notify: run outcome delivered")

	return nil
}

// renderOutcome flattens a terminal message into plain text. Returns false
// when the message carries nothing worth pushing.
func renderOutcome(msg *domain.OutwardMessage) (string, bool) {
	var parts []string

	for _, node := range msg.Contents {
		switch {
		case node.Kind == domain.ContentError && node.Error != nil:
			parts = append(parts, fmt.Sprintf("[%s] run failed: %s", msg.SenderName, node.Error.Message))
		case msg.Kind == domain.MessageAlert && node.Kind == domain.ContentText && node.Text != nil:
			parts = append(parts, fmt.Sprintf("[%s] %s", msg.SenderName, node.Text.Text))
		case msg.Kind == domain.MessageChat && node.Kind == domain.ContentText && node.Text != nil && node.Status == domain.StatusCompleted:
			parts = append(parts, fmt.Sprintf("[%s] %s", msg.SenderName, node.Text.Text))
		}
	}

	if len(parts) == 0 {
		return "", false
	}

	return strings.Join(parts, "\n"), true
}
