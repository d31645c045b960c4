package governance

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/compasshq/keel/pkg/contracts"
)

// keywordMatcher reports a violation when any configured keyword appears in
// the recommendation text or in the proposed actions (type, target, payload).
// Matching is Unicode case-folded and NFKC-normalized so "Layoff", "LAYOFF"
// and fullwidth variants all hit.
type keywordMatcher struct {
	keywords []string // pre-folded
}

var folder = cases.Fold()

func foldText(s string) string {
	return folder.String(norm.NFKC.String(s))
}

// NewKeywordMatcher compiles a keyword matcher from the rule's spec.
func NewKeywordMatcher(rule contracts.NonNegotiable) (RuleMatcher, error) {
	if len(rule.Matcher.Keywords) == 0 {
		return nil, fmt.Errorf("keyword matcher needs at least one keyword")
	}
	folded := make([]string, 0, len(rule.Matcher.Keywords))
	for _, kw := range rule.Matcher.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			return nil, fmt.Errorf("keyword matcher has an empty keyword")
		}
		folded = append(folded, foldText(kw))
	}
	return &keywordMatcher{keywords: folded}, nil
}

func (m *keywordMatcher) Name() string { return "keyword" }

func (m *keywordMatcher) Matches(_ contracts.NonNegotiable, rec contracts.Recommendation) bool {
	var b strings.Builder
	b.WriteString(rec.Text)
	for _, action := range rec.ProposedActions {
		b.WriteString("\n")
		b.WriteString(action.Type)
		b.WriteString(" ")
		b.WriteString(action.TargetEntityID)
		b.WriteString(" ")
		b.Write(action.Payload)
	}
	haystack := foldText(b.String())

	for _, kw := range m.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
