package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound = errors.New("domain: not found")
	ErrConflict = errors.New("domain: conflict")

	// ErrUnknownContentKind is returned when a content kind is outside the
	// closed taxonomy.
	ErrUnknownContentKind = errors.New("domain: unknown content kind")

	// ErrMalformedPayload is returned when an event payload is missing
	// required fields for its kind.
	ErrMalformedPayload = errors.New("domain: malformed payload")

	// ErrStaleUpdate marks a recoverable no-op: an update addressed to a
	// node that already reached a terminal status, or an event whose step id
	// is behind the run's last observed one. Callers log and continue.
	ErrStaleUpdate = errors.New("domain: stale update ignored")

	// ErrUnknownParent is reported when a child references a parent content
	// id that was never registered in its run. The child is still delivered,
	// flagged parentless.
	ErrUnknownParent = errors.New("domain: unknown parent content")

	// ErrDuplicateContentID is a programming-level defect: an issued content
	// id collided with an existing one. Surfaced loudly, never a silent
	// overwrite.
	ErrDuplicateContentID = errors.New("domain: duplicate content id")

	// ErrTerminalStatus is returned when a status transition would regress
	// or leave a terminal state.
	ErrTerminalStatus = errors.New("domain: content status is terminal")

	// ErrRunClosed is returned when an event arrives for a run whose
	// hierarchy scope was already evicted.
	ErrRunClosed = errors.New("domain: run closed")
)
