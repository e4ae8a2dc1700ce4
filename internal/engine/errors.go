package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers branch on. The HTTP layer
// translates them to status codes; the CLI prints them as-is.
var (
	// ErrCapacityExceeded means the actor already holds the maximum number
	// of accepted missions.
	ErrCapacityExceeded = errors.New("accepted mission capacity exceeded")

	// ErrStaleState means the mission moved out of the expected status
	// between read and write, typically because another actor got there
	// first.
	ErrStaleState = errors.New("mission state changed; reload and retry")

	// ErrInvalidProposal means an opening negotiation bid undercut the
	// posted reward.
	ErrInvalidProposal = errors.New("opening bid must meet or exceed the posted reward")

	// ErrSubmissionInFlight means a submission for this mission is already
	// being verified.
	ErrSubmissionInFlight = errors.New("submission already in progress")
)

// ValidationError reports malformed or missing input on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
