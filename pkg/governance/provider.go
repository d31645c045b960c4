package governance

import (
	"sync/atomic"

	"github.com/compasshq/keel/pkg/rulepack"
)

// Engine pairs a rule snapshot with the evaluator compiled from it.
// A turn takes one Engine at its start and uses it throughout, so an
// asynchronous rule-pack refresh never splits a turn across two rule sets.
type Engine struct {
	Snapshot  *rulepack.Snapshot
	Evaluator *Evaluator
}

// Provider holds the current Engine and swaps it atomically on refresh.
type Provider struct {
	matchers *Matchers
	current  atomic.Pointer[Engine]
}

// NewProvider creates a provider with no engine loaded; Swap must be
// called once before serving turns.
func NewProvider(matchers *Matchers) *Provider {
	return &Provider{matchers: matchers}
}

// Swap compiles an engine for snap and makes it current. On compile
// failure the previous engine stays in place. The old evaluator is not
// closed here: in-flight turns may still hold it. It is released by GC,
// except wasm matchers whose runtimes the caller closes on shutdown.
func (p *Provider) Swap(snap *rulepack.Snapshot) error {
	evaluator, err := NewEvaluator(snap, p.matchers)
	if err != nil {
		return err
	}
	p.current.Store(&Engine{Snapshot: snap, Evaluator: evaluator})
	return nil
}

// Current returns the engine in effect, or nil before the first Swap.
func (p *Provider) Current() *Engine {
	return p.current.Load()
}
