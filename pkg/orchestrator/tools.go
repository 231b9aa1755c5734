package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultFunctionRegistry is a minimal, in-memory FunctionRegistry
// holding a small set of built-in tools, mirroring the original's
// `functionHandler.register_nessary_functions` default set. Callers
// extend it with Register for deployment-specific tools (change_role,
// device control, ...).
type DefaultFunctionRegistry struct {
	fns map[string]registeredFunc
}

type registeredFunc struct {
	spec FunctionSpec
	call func(ctx context.Context, conn *Session, args json.RawMessage) (string, bool, error)
}

// NewDefaultFunctionRegistry builds a registry pre-populated with
// get_time.
func NewDefaultFunctionRegistry() *DefaultFunctionRegistry {
	r := &DefaultFunctionRegistry{fns: make(map[string]registeredFunc)}
	r.Register(FunctionSpec{
		Name:        "get_time",
		Description: "Return the current local time.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	}, func(ctx context.Context, conn *Session, args json.RawMessage) (string, bool, error) {
		return time.Now().Format("15:04"), true, nil
	})
	return r
}

// Register adds or replaces a tool.
func (r *DefaultFunctionRegistry) Register(spec FunctionSpec, call func(ctx context.Context, conn *Session, args json.RawMessage) (string, bool, error)) {
	r.fns[spec.Name] = registeredFunc{spec: spec, call: call}
}

// Specs implements FunctionRegistry.
func (r *DefaultFunctionRegistry) Specs() []FunctionSpec {
	out := make([]FunctionSpec, 0, len(r.fns))
	for _, f := range r.fns {
		out = append(out, f.spec)
	}
	return out
}

// Call implements FunctionRegistry. followUp reports whether the result
// should trigger a recursive LLM re-entry (spec §4.5 step 6); all
// built-ins answer true.
func (r *DefaultFunctionRegistry) Call(ctx context.Context, conn *Session, name string, args json.RawMessage) (string, bool, error) {
	f, ok := r.fns[name]
	if !ok {
		return "", false, fmt.Errorf("%w: unknown function %q", ErrToolNotFound, name)
	}
	result, followUp, err := f.call(ctx, conn, args)
	if err != nil {
		return "", false, NewError(KindToolCall, conn.ID(), err)
	}
	return result, followUp, nil
}
