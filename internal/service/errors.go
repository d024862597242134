package service

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---
// Error taxonomy of the completion engine. NotFound/Forbidden/AlreadyCompleted are
// raised by prechecks before any transaction is opened; ConcurrentCompletion and
// TransactionAborted can only arise from the transactional phase. Only
// TransactionAborted is safe to retry automatically: a ConcurrentCompletion loser's
// session has already been completed by the winner.
var (
	ErrSessionNotFound      = errors.New("workout session not found")
	ErrForbidden            = errors.New("workout session belongs to a different user")
	ErrAlreadyCompleted     = errors.New("workout session already reached a terminal status")
	ErrConcurrentCompletion = errors.New("lost completion race: another request finished this session")
	ErrTransactionAborted   = errors.New("transaction aborted by transient store failure")
)

// ValidationError reports malformed set data. Raised before any store round-trip.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
