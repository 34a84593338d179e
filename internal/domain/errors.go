package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the worker.
// The pool maps them to an ack/nack decision via ErrNonRetryable.
var (
	ErrMissingUserID         = errors.New("userId is required")
	ErrMissingOrganizationID = errors.New("organizationId is required")
	ErrMissingType           = errors.New("type is required")
	ErrEmptyTitle            = errors.New("title must not be empty")
	ErrEmptyMessage          = errors.New("message must not be empty")
	ErrMalformedJob          = errors.New("job payload is not valid JSON")
	ErrUnknownJobKind        = errors.New("no handler registered for job kind")
)

// ErrNonRetryable marks errors that redelivery cannot fix. The pool
// acknowledges (drops) jobs failing with it instead of routing them
// through the broker's retry topology.
var ErrNonRetryable = errors.New("non-retryable")

// NonRetryable wraps err so that errors.Is(_, ErrNonRetryable) holds while
// the original sentinel stays reachable through the chain.
func NonRetryable(err error) error {
	return fmt.Errorf("%w: %w", ErrNonRetryable, err)
}
