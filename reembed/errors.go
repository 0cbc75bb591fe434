package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts rejects a retry budget of zero or less.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
