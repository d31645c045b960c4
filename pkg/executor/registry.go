// Package executor applies an approved recommendation's proposed actions as
// one atomic batch against the planning store. Handlers are dispatched by
// action type; an unknown type fails the batch, it is never skipped.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/planning"
)

// Handler applies one action inside the batch transaction.
type Handler func(ctx context.Context, tx planning.Tx, action contracts.Action) error

type handlerEntry struct {
	handler Handler
	schema  *jsonschema.Schema
}

// Registry maps action types to their handlers and payload schemas.
// The set is openly registered: integrations may add types, but dispatch
// of an unregistered type is a first-class failure.
type Registry struct {
	handlers map[string]handlerEntry
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]handlerEntry)}
}

// Register adds a handler with a JSON Schema for its payload. The schema is
// compiled eagerly so a bad registration fails at startup.
func (r *Registry) Register(actionType, schemaJSON string, handler Handler) error {
	if _, exists := r.handlers[actionType]; exists {
		return fmt.Errorf("executor: action type %q already registered", actionType)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://keel.schemas.local/actions/%s.schema.json", actionType)
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("executor: schema for %q failed to load: %w", actionType, err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("executor: schema for %q failed to compile: %w", actionType, err)
	}
	r.handlers[actionType] = handlerEntry{handler: handler, schema: schema}
	return nil
}

// lookup returns the entry for actionType or a typed unknown-type error.
func (r *Registry) lookup(actionType string) (handlerEntry, error) {
	entry, ok := r.handlers[actionType]
	if !ok {
		return handlerEntry{}, fmt.Errorf("%w: %q", contracts.ErrUnknownActionType, actionType)
	}
	return entry, nil
}

// validatePayload checks the action payload against the registered schema.
func (e handlerEntry) validatePayload(action contracts.Action) error {
	payload := action.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := e.schema.Validate(decoded); err != nil {
		return fmt.Errorf("payload rejected by schema: %w", err)
	}
	return nil
}

// Builtin payload schemas.
const (
	kpiValueSchema = `{
		"type": "object",
		"properties": {"value": {"type": "number"}},
		"required": ["value"],
		"additionalProperties": false
	}`
	kpiTargetSchema = `{
		"type": "object",
		"properties": {"target": {"type": "number"}},
		"required": ["target"],
		"additionalProperties": false
	}`
	ogsmStatusSchema = `{
		"type": "object",
		"properties": {"status": {"type": "string", "minLength": 1}},
		"required": ["status"],
		"additionalProperties": false
	}`
)

// RegisterBuiltins wires the planning-data action types:
// updateKpiValue, updateKpiTarget, updateOgsmStatus, createKpiHistoryEntry.
func RegisterBuiltins(r *Registry) error {
	type kpiValuePayload struct {
		Value float64 `json:"value"`
	}
	type kpiTargetPayload struct {
		Target float64 `json:"target"`
	}
	type ogsmStatusPayload struct {
		Status string `json:"status"`
	}

	if err := r.Register("updateKpiValue", kpiValueSchema, func(ctx context.Context, tx planning.Tx, action contracts.Action) error {
		var p kpiValuePayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return err
		}
		return tx.SetKPIValue(ctx, action.TargetEntityID, p.Value)
	}); err != nil {
		return err
	}
	if err := r.Register("updateKpiTarget", kpiTargetSchema, func(ctx context.Context, tx planning.Tx, action contracts.Action) error {
		var p kpiTargetPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return err
		}
		return tx.SetKPITarget(ctx, action.TargetEntityID, p.Target)
	}); err != nil {
		return err
	}
	if err := r.Register("updateOgsmStatus", ogsmStatusSchema, func(ctx context.Context, tx planning.Tx, action contracts.Action) error {
		var p ogsmStatusPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return err
		}
		return tx.SetOGSMStatus(ctx, action.TargetEntityID, p.Status)
	}); err != nil {
		return err
	}
	return r.Register("createKpiHistoryEntry", kpiValueSchema, func(ctx context.Context, tx planning.Tx, action contracts.Action) error {
		var p kpiValuePayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return err
		}
		return tx.AddKPIHistory(ctx, action.TargetEntityID, p.Value)
	})
}
