package api

import "errors"

var (
	// ErrRemote is returned when the provider call fails: transport error,
	// non-success status or cancellation.
	ErrRemote = errors.New("remote model call failed")
	// ErrEmptyPayload is returned when the provider answers without any text.
	ErrEmptyPayload = errors.New("model returned no content")
	// ErrUnavailable is returned when no usable completer is configured.
	ErrUnavailable = errors.New("model client unavailable")
)
