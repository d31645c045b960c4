// Package advisor defines the advisory collaborator boundary. The advisor
// is an opaque upstream: it returns a structured recommendation or fails;
// nothing about language understanding leaks into the core.
package advisor

import (
	"context"

	"github.com/compasshq/keel/pkg/contracts"
)

// Message is one conversational turn of context handed to the advisor.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Advisor produces a recommendation for the latest user message given the
// session history. Implementations classify their failures as
// contracts.KindCollaboratorError or contracts.KindCollaboratorTimeout.
type Advisor interface {
	GetRecommendation(ctx context.Context, history []Message, userMessage string) (*contracts.Recommendation, error)
}
