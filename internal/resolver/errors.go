package resolver

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError means the CRM has no entity for the given reference.
// Terminal for the entity; never retried.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity not found: %q", e.Ref)
}

// TransientError wraps network/timeout/rate-limit failures that are safe to
// retry with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient lookup error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedError wraps any terminal non-retriable failure: unexpected
// payload shapes, missing chain outputs, unclassified errors.
type MalformedError struct {
	Op  string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed response in %s: %v", e.Op, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransient reports whether err should be retried. Context deadline
// expiry counts as transient: the per-call timeout is part of the retry
// policy, not a terminal condition.
func IsTransient(err error) bool {
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
