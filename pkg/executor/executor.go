package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/planning"
)

// Invalidator is called after a successful commit to mark cached aggregates
// stale. Fire-and-forget: failures are logged, never fatal, and repeated
// invalidation is harmless.
type Invalidator func(ctx context.Context) error

// Executor applies action batches. It is only ever invoked for approved
// validations; the orchestrator enforces that.
type Executor struct {
	store      planning.Store
	registry   *Registry
	invalidate Invalidator
	logger     *slog.Logger
}

func New(store planning.Store, registry *Registry, invalidate Invalidator, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, registry: registry, invalidate: invalidate, logger: logger}
}

// batchError carries the position and classification of the failing action
// out of the transaction closure.
type batchError struct {
	index int
	kind  contracts.ErrorKind
	err   error
}

func (b *batchError) Error() string { return b.err.Error() }
func (b *batchError) Unwrap() error { return b.err }

// Execute applies actions in order inside a single transaction.
// All-or-nothing: the first failure rolls back every prior effect and the
// outcome records the 0-based failing index and the failure class. An empty
// batch commits trivially.
func (e *Executor) Execute(ctx context.Context, validationID string, actions []contracts.Action) *contracts.ExecutionOutcome {
	outcome := &contracts.ExecutionOutcome{
		ValidationID:      validationID,
		Executed:          true,
		FailedActionIndex: -1,
	}

	if len(actions) > 0 {
		err := e.store.WithinTx(ctx, func(tx planning.Tx) error {
			for i, action := range actions {
				entry, err := e.registry.lookup(action.Type)
				if err != nil {
					return &batchError{index: i, kind: contracts.KindUnknownActionType, err: err}
				}
				if err := entry.validatePayload(action); err != nil {
					return &batchError{index: i, kind: contracts.KindActionHandlerFailure, err: err}
				}
				if err := entry.handler(ctx, tx, action); err != nil {
					return &batchError{index: i, kind: contracts.KindActionHandlerFailure, err: err}
				}
			}
			return nil
		})
		if err != nil {
			outcome.Executed = false
			var be *batchError
			if errors.As(err, &be) {
				outcome.FailedActionIndex = be.index
				outcome.ErrorKind = be.kind
				outcome.ErrorDetail = be.err.Error()
			} else {
				// Transaction mechanics failed (begin/commit).
				outcome.ErrorKind = contracts.KindActionHandlerFailure
				outcome.ErrorDetail = err.Error()
			}
			outcome.CompletedAt = time.Now().UTC()
			e.logger.Warn("action batch rolled back",
				"validation_id", validationID,
				"failed_index", outcome.FailedActionIndex,
				"error_kind", string(outcome.ErrorKind),
				"error", outcome.ErrorDetail)
			return outcome
		}
	}

	outcome.CompletedAt = time.Now().UTC()

	// Cache invalidation is outside the transactional boundary:
	// at-least-once, idempotent, non-fatal.
	if e.invalidate != nil {
		go func() {
			invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := e.invalidate(invCtx); err != nil {
				e.logger.Warn("alignment cache invalidation failed", "error", err)
			}
		}()
	}
	return outcome
}
