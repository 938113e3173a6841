package agents

import (
	"context"
	"sync"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/auth"
)

// stubProvider returns a canned reply and records every request.
type stubProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*providers.ChatRequest
}

func (p *stubProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{
		Choices: []providers.Choice{{Message: providers.Message{Role: "assistant", Content: p.reply}}},
	}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// stubVerifier grants every scope except those listed in denied.
type stubVerifier struct {
	denied map[auth.Scope]bool
	checks []auth.Scope
}

func (v *stubVerifier) VerifyScope(ctx context.Context, token string, required auth.Scope) error {
	v.checks = append(v.checks, required)
	if v.denied[required] {
		return auth.ErrMissingScope
	}
	return nil
}

// stubFetcher returns a fixed wearable snapshot.
type stubFetcher struct {
	metrics *wearable.Metrics
	calls   int
}

func (f *stubFetcher) Fetch(ctx context.Context, accessToken string) *wearable.Metrics {
	f.calls++
	if f.metrics != nil {
		return f.metrics
	}
	return &wearable.Metrics{}
}

func wearableWith(sleep, protein, weight *float64) *wearable.Metrics {
	return &wearable.Metrics{
		SleepHours: sleep,
		Protein:    protein,
		Weight:     weight,
	}
}

// stubAgent records invocations and writes a fixed reply.
type stubAgent struct {
	name  AgentName
	scope auth.Scope
	reply string
	calls int
}

func (a *stubAgent) Name() AgentName { return a.name }

func (a *stubAgent) RequiredScope() auth.Scope { return a.scope }

func (a *stubAgent) Execute(ctx context.Context, state *State, inv Invocation) error {
	a.calls++
	state.SetResponse(a.name, a.reply)
	return nil
}
