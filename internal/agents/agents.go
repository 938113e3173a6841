package agents

import (
	"context"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/pkg/auth"
)

// Agent is one specialized responder. Execute verifies its own scope,
// runs the model, and writes its reply into the state accumulator.
// Auth denials and upstream failures are written into the state as
// explanatory text, never returned as errors.
type Agent interface {
	Name() AgentName
	RequiredScope() auth.Scope
	Execute(ctx context.Context, state *State, inv Invocation) error
}

// Options are the model parameters shared by the agents.
type Options struct {
	Model       string
	Temperature float64
}

func (o Options) chatRequest(messages []providers.Message) *providers.ChatRequest {
	return &providers.ChatRequest{
		Model:       o.Model,
		Messages:    messages,
		Temperature: providers.Float64Ptr(o.Temperature),
	}
}
