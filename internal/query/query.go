// Package query evaluates jq expressions over the JSON form of a flow.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/flowedit/pkg/schema"
)

// AllTasks yields every task object of a flow, nested ones included.
const AllTasks = `[.tasks[] | recurse(.subtasks // {} | .[][])]`

// Engine compiles and runs jq expressions. Compiled code is cached and
// reused across goroutines.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewEngine creates an Engine with an empty cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*gojq.Code)}
}

var defaultEngine = NewEngine()

// Run evaluates expression against doc using the shared engine.
func Run(ctx context.Context, expression string, doc schema.FlowAPI) ([]any, error) {
	return defaultEngine.Run(ctx, expression, doc)
}

// Run evaluates expression against the JSON form of doc and returns every
// output in order.
func (e *Engine) Run(ctx context.Context, expression string, doc schema.FlowAPI) ([]any, error) {
	input, err := toJQ(doc)
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx, expression, input)
}

// Eval evaluates expression against an already decoded JSON value.
func (e *Engine) Eval(ctx context.Context, expression string, input any) ([]any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}

	code, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input)
	results := []any{}
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeQuery,
				"jq evaluation failed for %q: %s", expression, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}
	return results, nil
}

// getOrCompile returns a cached compiled code or compiles and caches a new one.
func (e *Engine) getOrCompile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.cache[expression]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeQuery,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	// An empty environment keeps $ENV and env out of reach.
	code, err := gojq.Compile(parsed, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeQuery,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = code
	return code, nil
}

// toJQ converts doc to the plain maps, slices and float64s gojq expects.
func toJQ(doc schema.FlowAPI) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal flow: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return out, nil
}
