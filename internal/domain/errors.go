package domain

import "errors"

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidChannel    = errors.New("invalid channel: must be telegram, whatsapp, email, or in_app")
	ErrInvalidUserID     = errors.New("user id must not be empty")
	ErrInvalidType       = errors.New("notification type must not be empty")
	ErrInvalidMaxRetries = errors.New("max retries must not be negative")

	// Payload extraction failures. These are delivery failures, not request
	// validation failures: the item is already in the queue when they surface.
	ErrMissingDestination = errors.New("missing destination in payload")
	ErrMissingText        = errors.New("missing message text in payload")

	// ErrChannelNotImplemented is recorded verbatim for every item of a
	// channel that has no registered sender.
	ErrChannelNotImplemented = errors.New("channel not implemented")
)
