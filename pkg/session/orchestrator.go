// Package session sequences one conversational turn end to end: message in,
// recommendation from the advisor, rule evaluation, conditional execution,
// transcript and ledger persistence, combined result out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/compasshq/keel/pkg/advisor"
	"github.com/compasshq/keel/pkg/alignment"
	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/executor"
	"github.com/compasshq/keel/pkg/governance"
	"github.com/compasshq/keel/pkg/ledger"
	"github.com/compasshq/keel/pkg/observability"
	"github.com/compasshq/keel/pkg/transcript"
)

// DefaultAdvisorTimeout bounds the RecommendationObtained step. A slow
// advisor fails the turn with CollaboratorTimeout instead of hanging it.
const DefaultAdvisorTimeout = 30 * time.Second

// TurnResult is the combined outcome returned to the caller.
type TurnResult struct {
	SessionID           string                     `json:"session_id"`
	ValidationID        string                     `json:"validation_id"`
	Reply               string                     `json:"reply"`
	Disposition         contracts.ValidationStatus `json:"disposition"`
	Score               int                        `json:"score"`
	ViolatedRuleNumbers []int                      `json:"violated_rule_numbers"`
	Executed            bool                       `json:"executed"`
}

// Orchestrator drives the per-turn state machine. Safe for concurrent use;
// turns on the same session are serialized in submission order.
type Orchestrator struct {
	advisor        advisor.Advisor
	engines        *governance.Provider
	ledger         ledger.Ledger
	executor       *executor.Executor
	transcripts    transcript.Store
	alignment      *alignment.Aggregator
	obs            *observability.Provider
	logger         *slog.Logger
	advisorTimeout time.Duration
	locks          *sessionLocks
}

// Options carries the optional collaborators.
type Options struct {
	Observability  *observability.Provider
	Logger         *slog.Logger
	AdvisorTimeout time.Duration
}

func NewOrchestrator(adv advisor.Advisor, engines *governance.Provider, led ledger.Ledger, exec *executor.Executor, transcripts transcript.Store, agg *alignment.Aggregator, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.AdvisorTimeout
	if timeout <= 0 {
		timeout = DefaultAdvisorTimeout
	}
	return &Orchestrator{
		advisor:        adv,
		engines:        engines,
		ledger:         led,
		executor:       exec,
		transcripts:    transcripts,
		alignment:      agg,
		obs:            opts.Observability,
		logger:         logger,
		advisorTimeout: timeout,
		locks:          newSessionLocks(),
	}
}

// SubmitTurn processes one chat turn.
//
// Received → RecommendationObtained → Evaluated →
// {Approved→Executed | Approved→ExecutionFailed | Flagged | Rejected} → Persisted.
//
// Cancellation before evaluation abandons the turn with no ledger entry.
// Once the validation record is written the turn runs to a terminal state
// regardless of the caller's context.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	if sessionID == "" || strings.TrimSpace(userMessage) == "" {
		return nil, errors.New("session id and message are required")
	}

	release := o.locks.acquire(sessionID)
	defer release()

	start := time.Now()
	if o.obs != nil {
		var span trace.Span
		ctx, span = o.obs.StartTurnSpan(ctx, sessionID)
		defer span.End()
	}

	result, err := o.runTurn(ctx, sessionID, userMessage)

	if o.obs != nil {
		disposition := ""
		if result != nil {
			disposition = string(result.Disposition)
		}
		o.obs.RecordTurn(ctx, disposition, time.Since(start), err != nil)
	}
	return result, err
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	// Received: abandoned turns leave no trace at all.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrTurnAbandoned, err)
	}

	if err := o.transcripts.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	history, err := o.transcripts.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := o.transcripts.AppendMessage(ctx, sessionID, transcript.RoleUser, userMessage, time.Now()); err != nil {
		return nil, err
	}

	// RecommendationObtained: the advisor gets a bounded window. On
	// failure the turn ends here; the raw user message stays, nothing is
	// evaluated or recorded.
	advCtx, cancel := context.WithTimeout(ctx, o.advisorTimeout)
	rec, err := o.advisor.GetRecommendation(advCtx, toAdvisorHistory(history), userMessage)
	cancel()
	if err != nil {
		if contracts.KindOf(err) == "" {
			err = contracts.NewTurnError(contracts.KindCollaboratorError, err)
		}
		o.logger.Warn("turn aborted before evaluation",
			"session_id", sessionID, "error_kind", string(contracts.KindOf(err)), "error", err)
		return nil, err
	}

	// Last cancellation point: a disconnected caller abandons the turn
	// before anything is recorded.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrTurnAbandoned, err)
	}

	// Evaluated: one engine (snapshot + evaluator) for the whole turn.
	engine := o.engines.Current()
	if engine == nil {
		return nil, errors.New("no rule engine loaded")
	}
	violations := engine.Evaluator.Evaluate(*rec)
	status, score := governance.Decide(violations)

	// From here the turn runs to a terminal state even if the caller goes
	// away: a written validation record is never left dangling.
	persistCtx := context.WithoutCancel(ctx)

	record, err := o.ledger.Record(persistCtx, status, governance.RuleNumbers(violations), *rec)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		SessionID:           sessionID,
		ValidationID:        record.ID,
		Disposition:         status,
		Score:               score,
		ViolatedRuleNumbers: record.ViolatedRuleNumbers,
	}

	// Branch: only approved turns execute, and an empty action set
	// executes trivially.
	if status == contracts.StatusApproved {
		outcome := o.executor.Execute(persistCtx, record.ID, rec.ProposedActions)
		if err := o.ledger.RecordOutcome(persistCtx, *outcome); err != nil {
			return nil, err
		}
		result.Executed = outcome.Executed
		result.Reply = o.composeReply(rec, status, violations, outcome)
	} else {
		result.Reply = o.composeReply(rec, status, violations, nil)
	}

	// Persisted: the assistant reply lands in the transcript; terminal.
	if _, err := o.transcripts.AppendMessage(persistCtx, sessionID, transcript.RoleAssistant, result.Reply, time.Now()); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRecentValidations exposes the ledger's audit view, newest first.
func (o *Orchestrator) GetRecentValidations(ctx context.Context, limit int) ([]*contracts.ValidationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return o.ledger.Recent(ctx, limit)
}

// GetAlignmentScore exposes the aggregate alignment report.
func (o *Orchestrator) GetAlignmentScore(ctx context.Context) (*alignment.Report, error) {
	return o.alignment.Score(ctx)
}

func toAdvisorHistory(messages []transcript.Message) []advisor.Message {
	out := make([]advisor.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, advisor.Message{Role: m.Role, Content: m.Text})
	}
	return out
}

func (o *Orchestrator) composeReply(rec *contracts.Recommendation, status contracts.ValidationStatus, violations []contracts.NonNegotiable, outcome *contracts.ExecutionOutcome) string {
	var b strings.Builder

	switch status {
	case contracts.StatusRejected:
		b.WriteString("I can't recommend that: it conflicts with our non-negotiables.\n")
		writeViolations(&b, violations)
		return b.String()
	case contracts.StatusFlagged:
		b.WriteString(rec.Text)
		b.WriteString("\n\nNote: this advice is flagged for review against our principles.\n")
		writeViolations(&b, violations)
		return b.String()
	}

	b.WriteString(rec.Text)
	if outcome != nil && len(rec.ProposedActions) > 0 {
		if outcome.Executed {
			b.WriteString(fmt.Sprintf("\n\nApplied %d change(s) to the plan.", len(rec.ProposedActions)))
		} else {
			b.WriteString("\n\nThe advice stands, but applying the changes failed; no data was modified.")
		}
	}
	return b.String()
}

func writeViolations(b *strings.Builder, violations []contracts.NonNegotiable) {
	for _, v := range violations {
		fmt.Fprintf(b, "  - Rule %d: %s\n", v.RuleNumber, v.Title)
	}
}
