package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind is the role/purpose of an outward message, distinct from the
// content kinds it carries.
type MessageKind string

const (
	MessageChat   MessageKind = "chat"
	MessageStatus MessageKind = "status"
	MessageAlert  MessageKind = "alert"
)

// OutwardMessage is what the feed pushes to the UI sink. It is never mutated
// after delivery; status updates are expressed by emitting a new message
// that references the same content ids, which the UI reconciles.
type OutwardMessage struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	SenderID   string         `json:"sender_id"`
	SenderName string         `json:"sender_name,omitempty"`
	Kind       MessageKind    `json:"kind"`
	Contents   []*ContentNode `json:"contents"`
	Timestamp  time.Time      `json:"timestamp"`
}
