package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge/internal/agents"
	"github.com/fitforge/fitforge/internal/history"
	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/fitforge/fitforge/pkg/config"
)

type fakeProvider struct {
	reply string
}

func (p *fakeProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{
		Choices: []providers.Choice{{Message: providers.Message{Role: "assistant", Content: p.reply}}},
	}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

type allowAllVerifier struct{}

func (allowAllVerifier) VerifyScope(ctx context.Context, token string, required auth.Scope) error {
	return nil
}

type denyAllVerifier struct{}

func (denyAllVerifier) VerifyScope(ctx context.Context, token string, required auth.Scope) error {
	return auth.ErrMissingScope
}

type fakeFetcher struct {
	calls   int
	metrics *wearable.Metrics
}

func (f *fakeFetcher) Fetch(ctx context.Context, accessToken string) *wearable.Metrics {
	f.calls++
	if f.metrics != nil {
		return f.metrics
	}
	return &wearable.Metrics{}
}

type fixedClassifier struct {
	intent agents.Intent
}

func (c fixedClassifier) Classify(ctx context.Context, query, historyText string) agents.Intent {
	return c.intent
}

type fakeExchanger struct {
	tokens *wearable.TokenSet
	err    error
}

func (e *fakeExchanger) ExchangeCode(ctx context.Context, code, codeVerifier string) (*wearable.TokenSet, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.tokens, nil
}

func newTestGateway(t *testing.T, intent agents.Intent) *Gateway {
	t.Helper()
	return buildGateway(t, intent, nil, allowAllVerifier{}, nil)
}

func buildGateway(t *testing.T, intent agents.Intent, fetcher wearable.Fetcher, verifier auth.Verifier, mutate func(*config.Config)) *Gateway {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Monitoring.Prometheus.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	provider := &fakeProvider{reply: "stub reply"}
	opts := agents.Options{Model: "test-model"}

	trainer := agents.NewTrainerAgent(provider, verifier, opts)
	nutrition := agents.NewNutritionAgent(provider, verifier, opts)
	recovery := agents.NewRecoveryAgent(provider, verifier, fetcher, trainer, nutrition, opts)

	orch := agents.NewOrchestrator(fixedClassifier{intent: intent}, provider,
		history.NewMemoryStore(15), []agents.Agent{trainer, nutrition, recovery}, opts)

	return New(cfg, orch, verifier, &fakeExchanger{tokens: &wearable.TokenSet{AccessToken: "at"}}, nil)
}

func doJSON(t *testing.T, gw *Gateway, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := gw.App().Test(req)
	require.NoError(t, err)

	var parsed map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func TestHealthEndpoint(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	resp, body := doJSON(t, gw, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestAgentQueryRequiresBearer(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	resp, _ := doJSON(t, gw, http.MethodPost, "/agent_query", "", map[string]any{
		"user_id": "u1",
		"context": "hello",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAgentQueryCasual(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
		"user_id": "u1",
		"context": "hello",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, "casual", body["intent"])
	assert.Equal(t, "stub reply", body["message"])
	assert.NotContains(t, body, "trainer_response")
	assert.Contains(t, body, "invocation_log")
}

func TestAgentQueryConsentGate(t *testing.T) {
	gw := newTestGateway(t, agents.IntentTrainer)

	resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
		"user_id": "u1",
		"context": "leg day plan",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "consent", body["intent"])
	assert.Equal(t, true, body["consent_required"])
	assert.NotEmpty(t, body["agents"])
}

func TestAgentQueryConsented(t *testing.T) {
	gw := newTestGateway(t, agents.IntentTrainer)

	resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
		"user_id":         "u1",
		"context":         "leg day plan",
		"consent_granted": true,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "trainer", body["intent"])
	assert.Contains(t, body, "trainer_response")
}

func TestAgentQueryManualData(t *testing.T) {
	gw := newTestGateway(t, agents.IntentRecovery)

	resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
		"user_id":         "u1",
		"context":         "I feel very tired and slept 5 hours",
		"consent_granted": true,
		"manual_data":     map[string]any{"sleep_hours": 5},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "recovery_percent")
	assert.InDelta(t, 61.0, body["recovery_percent"].(float64), 1e-6)
}

func TestAgentQueryMissingFields(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	t.Run("missing user_id falls back to anonymous", func(t *testing.T) {
		resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
			"context": "hello",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "anonymous", body["user_id"])
	})

	t.Run("missing context is rejected", func(t *testing.T) {
		resp, _ := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
			"user_id": "u1",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAgentQueryFitbitToken(t *testing.T) {
	sleep := 5.0
	fetcher := &fakeFetcher{metrics: &wearable.Metrics{SleepHours: &sleep}}
	gw := buildGateway(t, agents.IntentRecovery, fetcher, allowAllVerifier{}, nil)

	resp, body := doJSON(t, gw, http.MethodPost, "/agent_query", "tok", map[string]any{
		"user_id":         "u1",
		"context":         "I feel very tired today",
		"consent_granted": true,
		"fitbit_token":    "fitbit-at",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, fetcher.calls)
	require.Contains(t, body, "message")
	assert.NotEmpty(t, body["message"])
	require.Contains(t, body, "recovery_percent")
	assert.InDelta(t, 61.0, body["recovery_percent"].(float64), 1e-6)
}

func TestFitbitCallback(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	t.Run("exchanges code without user jwt", func(t *testing.T) {
		resp, body := doJSON(t, gw, http.MethodPost, "/api/auth/verify/fitbit/callback", "", map[string]any{
			"fitbit_code": "abc", "code_verifier": "ver",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])
		tokens, ok := body["tokens"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "at", tokens["access_token"])
	})

	t.Run("requires code verifier", func(t *testing.T) {
		resp, _ := doJSON(t, gw, http.MethodPost, "/api/auth/verify/fitbit/callback", "", map[string]any{
			"fitbit_code": "abc",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("accepts valid user jwt", func(t *testing.T) {
		resp, body := doJSON(t, gw, http.MethodPost, "/api/auth/verify/fitbit/callback", "", map[string]any{
			"fitbit_code": "abc", "code_verifier": "ver", "user_jwt": "session",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("rejects user jwt without scope", func(t *testing.T) {
		denying := buildGateway(t, agents.IntentCasual, nil, denyAllVerifier{}, nil)
		resp, _ := doJSON(t, denying, http.MethodPost, "/api/auth/verify/fitbit/callback", "", map[string]any{
			"fitbit_code": "abc", "code_verifier": "ver", "user_jwt": "session",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestClearChat(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	resp, body := doJSON(t, gw, http.MethodPost, "/clear_chat", "", map[string]any{
		"user_id": "u1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = doJSON(t, gw, http.MethodPost, "/clear_chat", "", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", body["user_id"])
}

func TestCORSConfiguredOrigins(t *testing.T) {
	gw := buildGateway(t, agents.IntentCasual, nil, allowAllVerifier{}, func(cfg *config.Config) {
		cfg.Server.CORS.AllowedOrigins = []string{"https://app.fitforge.dev"}
	})

	t.Run("configured origin is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://app.fitforge.dev")
		resp, err := gw.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://app.fitforge.dev", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("default origin is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		resp, err := gw.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestExercisesWithoutCatalog(t *testing.T) {
	gw := newTestGateway(t, agents.IntentCasual)

	resp, _ := doJSON(t, gw, http.MethodGet, "/exercises", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
