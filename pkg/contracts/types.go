// Package contracts defines the shared domain types for the recommendation
// governance core: the rule catalog, recommendations produced by the advisory
// collaborator, and the records the validation ledger persists.
package contracts

import (
	"encoding/json"
	"time"
)

// PhilosophyType categorizes a published philosophy document.
type PhilosophyType string

const (
	PhilosophyMission            PhilosophyType = "mission"
	PhilosophyValue              PhilosophyType = "value"
	PhilosophyGuidingPrinciple   PhilosophyType = "guiding_principle"
	PhilosophyOperatingPrinciple PhilosophyType = "operating_principle"
)

// PhilosophyItem is an immutable published philosophy document.
// Edits happen upstream by replacing the item, never in place.
type PhilosophyItem struct {
	ID      string         `json:"id" yaml:"id" validate:"required"`
	Type    PhilosophyType `json:"type" yaml:"type" validate:"required,oneof=mission value guiding_principle operating_principle"`
	Title   string         `json:"title" yaml:"title" validate:"required"`
	Content string         `json:"content" yaml:"content"`
}

// MatcherSpec configures the detection predicate for a non-negotiable.
// Strategy selects the matcher implementation; the remaining fields are
// strategy-specific and ignored by the others.
type MatcherSpec struct {
	Strategy   string   `json:"strategy" yaml:"strategy" validate:"required,oneof=keyword cel wasm"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Expression string   `json:"expression,omitempty" yaml:"expression,omitempty"`
	ModulePath string   `json:"module_path,omitempty" yaml:"module_path,omitempty"`
}

// NonNegotiable is an organizational rule a recommendation is checked against.
// RuleNumber is unique and immutable once assigned: historical validation
// records reference rules by number.
type NonNegotiable struct {
	ID          string      `json:"id" yaml:"id" validate:"required"`
	RuleNumber  int         `json:"rule_number" yaml:"rule_number" validate:"required,gt=0"`
	Title       string      `json:"title" yaml:"title" validate:"required"`
	Description string      `json:"description" yaml:"description"`
	AutoReject  bool        `json:"auto_reject" yaml:"auto_reject"`
	Matcher     MatcherSpec `json:"matcher" yaml:"matcher" validate:"required"`
}

// Action is a single proposed mutation of planning data. The payload is
// opaque here; the executor's registered handler for Type interprets it.
type Action struct {
	Type           string          `json:"type"`
	TargetEntityID string          `json:"target_entity_id"`
	Payload        json.RawMessage `json:"payload"`
}

// Recommendation is the ephemeral input to validation: advisory text plus
// zero or more proposed actions. It is never persisted as-is; the ledger
// keeps a canonical snapshot instead.
type Recommendation struct {
	Text            string   `json:"text"`
	ProposedActions []Action `json:"proposed_actions,omitempty"`
}

// ValidationStatus is the tri-state disposition of a validated recommendation.
type ValidationStatus string

const (
	StatusApproved ValidationStatus = "approved"
	StatusFlagged  ValidationStatus = "flagged"
	StatusRejected ValidationStatus = "rejected"
)

// ValidationRecord is one immutable entry in the validation ledger.
// Corrections are new records; the ledger exposes no update or delete.
type ValidationRecord struct {
	ID                  string           `json:"id"`
	CreatedAt           time.Time        `json:"created_at"`
	Status              ValidationStatus `json:"status"`
	ViolatedRuleNumbers []int            `json:"violated_rule_numbers"`
	Snapshot            json.RawMessage  `json:"recommendation_snapshot"`
	SnapshotHash        string           `json:"snapshot_hash"`
	Signature           string           `json:"signature,omitempty"`
}

// ExecutionOutcome records what happened when an approved recommendation's
// actions were applied. One-to-one with an approved ValidationRecord.
// FailedActionIndex is -1 unless a specific action failed.
type ExecutionOutcome struct {
	ValidationID      string    `json:"validation_id"`
	Executed          bool      `json:"executed"`
	FailedActionIndex int       `json:"failed_action_index"`
	ErrorKind         ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
	CompletedAt       time.Time `json:"completed_at"`
}
