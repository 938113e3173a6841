package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge/internal/history"
	"github.com/fitforge/fitforge/pkg/auth"
)

// stubClassifier returns a fixed intent.
type stubClassifier struct {
	intent Intent
}

func (c *stubClassifier) Classify(ctx context.Context, query, historyText string) Intent {
	return c.intent
}

func newOrchestratorFixture(intent Intent, provider *stubProvider) (*Orchestrator, *stubAgent, *stubAgent, *stubAgent, history.Store) {
	trainer := &stubAgent{name: AgentTrainer, scope: auth.ScopeTrainerSuggest, reply: "do squats"}
	nutrition := &stubAgent{name: AgentNutrition, scope: auth.ScopeNutritionDietPlan, reply: "eat protein"}
	recovery := &stubAgent{name: AgentRecovery, scope: auth.ScopeRecoveryCollect, reply: "rest well"}

	store := history.NewMemoryStore(MaxHistoryTurns)
	orch := NewOrchestrator(&stubClassifier{intent: intent}, provider, store,
		[]Agent{trainer, nutrition, recovery}, Options{Model: "test-model"})

	return orch, trainer, nutrition, recovery, store
}

func TestConsentGateBlocksAgents(t *testing.T) {
	provider := &stubProvider{reply: "hi"}
	orch, trainer, nutrition, recovery, store := newOrchestratorFixture(IntentRecovery, provider)

	result, err := orch.Handle(context.Background(), Request{
		UserID: "u1",
		Query:  "I feel tired",
		Token:  "tok",
	})

	require.NoError(t, err)
	assert.True(t, result.ConsentRequired)
	assert.Equal(t, IntentConsent, result.Intent)
	assert.Equal(t, []AgentName{AgentRecovery}, result.Agents)
	assert.True(t, result.FitbitRequired)
	assert.Contains(t, result.Message, "Recovery")

	// No agent runs and nothing is persisted before consent.
	assert.Zero(t, trainer.calls+nutrition.calls+recovery.calls)
	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestConsentGateFitbitFlag(t *testing.T) {
	provider := &stubProvider{reply: "hi"}
	orch, _, _, _, _ := newOrchestratorFixture(IntentRecovery, provider)

	result, err := orch.Handle(context.Background(), Request{
		UserID:      "u1",
		Query:       "I feel tired",
		Token:       "tok",
		FitbitToken: "fitbit-token",
	})

	require.NoError(t, err)
	assert.True(t, result.ConsentRequired)
	assert.False(t, result.FitbitRequired)
}

func TestConsentedFlowRunsAgents(t *testing.T) {
	provider := &stubProvider{reply: "hi"}
	orch, trainer, nutrition, _, store := newOrchestratorFixture(IntentBoth, provider)

	result, err := orch.Handle(context.Background(), Request{
		UserID:         "u1",
		Query:          "gym and meal plan please",
		Token:          "tok",
		ConsentGranted: true,
	})

	require.NoError(t, err)
	assert.False(t, result.ConsentRequired)
	assert.Equal(t, IntentBoth, result.Intent)
	assert.Equal(t, 1, trainer.calls)
	assert.Equal(t, 1, nutrition.calls)
	assert.Contains(t, result.Message, "TRAINER RESPONSE:")
	assert.Contains(t, result.Message, "NUTRITION RESPONSE:")

	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestAgentRepliesPersistAsAssistantTurns(t *testing.T) {
	provider := &stubProvider{reply: "hi"}
	orch, _, _, _, store := newOrchestratorFixture(IntentBoth, provider)

	_, err := orch.Handle(context.Background(), Request{
		UserID:         "u1",
		Query:          "gym and meal plan please",
		Token:          "tok",
		ConsentGranted: true,
	})
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)

	var assistant []string
	for _, msg := range stored {
		if msg.Role == "assistant" {
			assistant = append(assistant, msg.Content)
		}
	}
	assert.Contains(t, assistant, "do squats")
	assert.Contains(t, assistant, "eat protein")

	// A second run must not duplicate turns already in the history.
	_, err = orch.Handle(context.Background(), Request{
		UserID:         "u1",
		Query:          "same again",
		Token:          "tok",
		ConsentGranted: true,
	})
	require.NoError(t, err)

	stored, err = store.Get(context.Background(), "u1")
	require.NoError(t, err)
	count := 0
	for _, msg := range stored {
		if msg.Role == "assistant" && msg.Content == "do squats" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCasualFlowSkipsConsent(t *testing.T) {
	provider := &stubProvider{reply: "Hello there!"}
	orch, trainer, nutrition, recovery, store := newOrchestratorFixture(IntentCasual, provider)

	result, err := orch.Handle(context.Background(), Request{
		UserID: "u1",
		Query:  "hello",
		Token:  "tok",
	})

	require.NoError(t, err)
	assert.False(t, result.ConsentRequired)
	assert.Equal(t, "Hello there!", result.Message)
	assert.Zero(t, trainer.calls+nutrition.calls+recovery.calls)

	// Small talk never occupies an agent response slot.
	assert.Empty(t, result.State.TrainerResponse)
	assert.NotContains(t, result.State.Export(), "trainer_response")

	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "assistant", stored[1].Role)
}

func TestClearHistory(t *testing.T) {
	provider := &stubProvider{reply: "Hello!"}
	orch, _, _, _, store := newOrchestratorFixture(IntentCasual, provider)

	_, err := orch.Handle(context.Background(), Request{UserID: "u1", Query: "hello", Token: "tok"})
	require.NoError(t, err)

	require.NoError(t, orch.ClearHistory(context.Background(), "u1"))

	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAssembleResponse(t *testing.T) {
	t.Run("single response has no header", func(t *testing.T) {
		state := NewState("u1", "q", nil)
		state.TrainerResponse = "do squats"
		assert.Equal(t, "do squats", assembleResponse(state))
	})

	t.Run("multiple responses get headers", func(t *testing.T) {
		state := NewState("u1", "q", nil)
		state.TrainerResponse = "do squats"
		state.NutritionResponse = "eat protein"

		out := assembleResponse(state)
		assert.Contains(t, out, "TRAINER RESPONSE:\ndo squats")
		assert.Contains(t, out, "NUTRITION RESPONSE:\neat protein")
	})

	t.Run("duplicates collapse case-insensitively", func(t *testing.T) {
		state := NewState("u1", "q", nil)
		state.TrainerResponse = "Drink Water"
		state.NutritionResponse = "drink water"

		assert.Equal(t, "Drink Water", assembleResponse(state))
	})

	t.Run("empty assembly falls back", func(t *testing.T) {
		state := NewState("u1", "q", nil)
		assert.Equal(t, "Couldn't understand query.", assembleResponse(state))
	})
}

func TestLLMClassifier(t *testing.T) {
	t.Run("trims and lowercases the label", func(t *testing.T) {
		provider := &stubProvider{reply: " Trainer. "}
		c := NewLLMClassifier(provider, Options{Model: "test-model"})
		assert.Equal(t, IntentTrainer, c.Classify(context.Background(), "leg day plan", ""))
	})

	t.Run("unknown label defaults to casual", func(t *testing.T) {
		provider := &stubProvider{reply: "gibberish"}
		c := NewLLMClassifier(provider, Options{Model: "test-model"})
		assert.Equal(t, IntentCasual, c.Classify(context.Background(), "leg day plan", ""))
	})

	t.Run("provider failure defaults to casual", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("down")}
		c := NewLLMClassifier(provider, Options{Model: "test-model"})
		assert.Equal(t, IntentCasual, c.Classify(context.Background(), "leg day plan", ""))
	})
}
