package contracts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies core-internal failures for the audit trail and for
// callers that need to branch on failure class without string matching.
type ErrorKind string

const (
	// KindCollaboratorError: the advisory collaborator was unreachable or
	// returned output that could not be parsed. The turn aborts before
	// evaluation and nothing is written to the ledger.
	KindCollaboratorError ErrorKind = "CollaboratorError"
	// KindCollaboratorTimeout: same handling as KindCollaboratorError,
	// kept distinct for observability.
	KindCollaboratorTimeout ErrorKind = "CollaboratorTimeout"
	// KindUnknownActionType: an action named a type with no registered
	// handler. The whole batch rolls back.
	KindUnknownActionType ErrorKind = "UnknownActionType"
	// KindActionHandlerFailure: a registered handler failed (including
	// payload schema violations and missing target entities). The whole
	// batch rolls back.
	KindActionHandlerFailure ErrorKind = "ActionHandlerFailure"
)

var (
	ErrUnknownActionType = errors.New("unknown action type")
	ErrEntityNotFound    = errors.New("target entity not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTurnAbandoned     = errors.New("turn abandoned before evaluation")
)

// TurnError carries a classified failure out of the turn pipeline.
type TurnError struct {
	Kind ErrorKind
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// NewTurnError wraps err with a failure classification.
func NewTurnError(kind ErrorKind, err error) *TurnError {
	return &TurnError{Kind: kind, Err: err}
}

// KindOf extracts the classification from err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
