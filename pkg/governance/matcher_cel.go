package governance

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/compasshq/keel/pkg/contracts"
)

// celMatcher evaluates a compiled CEL expression over the recommendation.
// Available attributes:
//
//	text            string       recommendation text
//	action_types    list(string) proposed action types, in order
//	action_targets  list(string) proposed target entity ids, in order
//
// The expression must produce a bool; anything else, or a runtime
// evaluation error, counts as "not violated".
type celMatcher struct {
	program cel.Program
}

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("text", types.StringType),
			decls.NewVariable("action_types", types.NewListType(types.StringType)),
			decls.NewVariable("action_targets", types.NewListType(types.StringType)),
		),
	)
}

// NewCELMatcher compiles the rule's CEL expression.
func NewCELMatcher(rule contracts.NonNegotiable) (RuleMatcher, error) {
	if rule.Matcher.Expression == "" {
		return nil, fmt.Errorf("cel matcher needs an expression")
	}
	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	ast, issues := env.Compile(rule.Matcher.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", rule.Matcher.Expression, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction failed: %w", err)
	}
	return &celMatcher{program: program}, nil
}

func (m *celMatcher) Name() string { return "cel" }

func (m *celMatcher) Matches(_ contracts.NonNegotiable, rec contracts.Recommendation) bool {
	actionTypes := make([]string, 0, len(rec.ProposedActions))
	actionTargets := make([]string, 0, len(rec.ProposedActions))
	for _, action := range rec.ProposedActions {
		actionTypes = append(actionTypes, action.Type)
		actionTargets = append(actionTargets, action.TargetEntityID)
	}

	out, _, err := m.program.Eval(map[string]any{
		"text":           rec.Text,
		"action_types":   actionTypes,
		"action_targets": actionTargets,
	})
	if err != nil {
		// A rule that cannot be matched is not violated.
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
