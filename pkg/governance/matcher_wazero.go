package governance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/compasshq/keel/pkg/contracts"
)

// wasmMatchTimeout bounds a single guest evaluation.
const wasmMatchTimeout = 2 * time.Second

// wasmMatcher runs a WebAssembly module as the detection predicate.
// Deny-by-default sandbox: no filesystem, no network, no env vars, no
// clock or randomness, so guest evaluation stays deterministic.
//
// Protocol: the module reads one JSON document from stdin,
//
//	{"rule": <NonNegotiable>, "recommendation": <Recommendation>}
//
// and writes {"matched": <bool>} to stdout.
type wasmMatcher struct {
	runtime wazero.Runtime
	module  wazero.CompiledModule
}

type wasmInput struct {
	Rule           contracts.NonNegotiable  `json:"rule"`
	Recommendation contracts.Recommendation `json:"recommendation"`
}

type wasmOutput struct {
	Matched bool `json:"matched"`
}

// NewWASMMatcher loads and compiles the module at the rule's module_path.
func NewWASMMatcher(rule contracts.NonNegotiable) (RuleMatcher, error) {
	if rule.Matcher.ModulePath == "" {
		return nil, fmt.Errorf("wasm matcher needs a module_path")
	}
	wasmBytes, err := os.ReadFile(rule.Matcher.ModulePath)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", rule.Matcher.ModulePath, err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile module %s: %w", rule.Matcher.ModulePath, err)
	}
	return &wasmMatcher{runtime: r, module: compiled}, nil
}

func (m *wasmMatcher) Name() string { return "wasm" }

func (m *wasmMatcher) Matches(rule contracts.NonNegotiable, rec contracts.Recommendation) bool {
	input, err := json.Marshal(wasmInput{Rule: rule, Recommendation: rec})
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), wasmMatchTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName(""). // anonymous, so repeated instantiation is allowed
		WithStartFunctions("_start").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	// Deliberately not wired: WithFSConfig, WithSysNanotime, WithRandSource.

	mod, err := m.runtime.InstantiateModule(ctx, m.module, cfg)
	if err != nil {
		// Guest trap or timeout: treated as not violated.
		return false
	}
	_ = mod.Close(ctx)

	var out wasmOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return false
	}
	return out.Matched
}

// Close releases the runtime. Evaluator.Close calls this.
func (m *wasmMatcher) Close() error {
	return m.runtime.Close(context.Background())
}
