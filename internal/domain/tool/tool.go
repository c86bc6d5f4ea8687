package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/llm"
)

// Handler executes one tool call. Input is the raw JSON arguments produced by
// the model; the returned value is marshalled and fed back as the tool result.
type Handler func(ctx context.Context, input json.RawMessage) (interface{}, error)

// Registry maps tool names to their definitions and handlers. The registry is
// assembled once at startup and read-only afterwards.
type Registry struct {
	defs     []llm.ToolDefinition
	handlers map[string]Handler
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log.With().Str("component", "tool-registry").Logger(),
	}
}

// Register adds a tool. Re-registering a name replaces the handler but not
// the advertised definition order.
func (r *Registry) Register(def llm.ToolDefinition, h Handler) {
	name := def.Function.Name
	if _, exists := r.handlers[name]; !exists {
		r.defs = append(r.defs, def)
	}
	r.handlers[name] = h
}

// Definitions returns the tool definitions to advertise to the model.
func (r *Registry) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Call dispatches one tool invocation and returns the JSON-encoded result.
// Unknown tools and handler failures are reported as errors so the caller can
// surface an output-error tool state without aborting the turn.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	r.log.Debug().Str("tool", name).Msg("executing tool call")
	result, err := h(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return raw, nil
}
