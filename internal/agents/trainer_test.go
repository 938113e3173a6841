package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/fitforge/pkg/auth"
)

func TestTrainerAppendsExerciseLink(t *testing.T) {
	provider := &stubProvider{reply: "Do 3 sets of squats."}
	agent := NewTrainerAgent(provider, &stubVerifier{}, Options{Model: "test-model"})

	state := NewState("u1", "leg day plan", nil)
	err := agent.Execute(context.Background(), state, Invocation{Token: "tok", Caller: "orchestrator"})

	require.NoError(t, err)
	assert.Contains(t, state.TrainerResponse, "Do 3 sets of squats.")
	assert.Contains(t, state.TrainerResponse, MuscleWikiURL)

	// The reply lands in the conversation history.
	last := state.ChatHistory[len(state.ChatHistory)-1]
	assert.Equal(t, "assistant", last.Role)
	assert.Equal(t, state.TrainerResponse, last.Content)
}

func TestTrainerKeepsExistingLink(t *testing.T) {
	provider := &stubProvider{reply: "See " + MuscleWikiURL + " for form tips."}
	agent := NewTrainerAgent(provider, &stubVerifier{}, Options{Model: "test-model"})

	state := NewState("u1", "leg day plan", nil)
	require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))

	assert.Equal(t, 1, strings.Count(state.TrainerResponse, MuscleWikiURL))
}

func TestTrainerSanitizesReply(t *testing.T) {
	provider := &stubProvider{reply: "**Squats**: ## 3 sets"}
	agent := NewTrainerAgent(provider, &stubVerifier{}, Options{Model: "test-model"})

	state := NewState("u1", "leg day plan", nil)
	require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))

	assert.NotContains(t, state.TrainerResponse, "*")
	assert.NotContains(t, state.TrainerResponse, "#")
}

func TestTrainerAuthFailures(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		provider := &stubProvider{reply: "advice"}
		agent := NewTrainerAgent(provider, &stubVerifier{}, Options{})

		state := NewState("u1", "leg day plan", nil)
		require.NoError(t, agent.Execute(context.Background(), state, Invocation{}))
		assert.Equal(t, "Missing token", state.TrainerResponse)
		assert.Zero(t, provider.callCount())
	})

	t.Run("scope denied", func(t *testing.T) {
		provider := &stubProvider{reply: "advice"}
		verifier := &stubVerifier{denied: map[auth.Scope]bool{auth.ScopeTrainerSuggest: true}}
		agent := NewTrainerAgent(provider, verifier, Options{})

		state := NewState("u1", "leg day plan", nil)
		require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))
		assert.Contains(t, state.TrainerResponse, "Unauthorized")
		assert.Zero(t, provider.callCount())
	})
}

func TestTrainerLLMFailureDegrades(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	agent := NewTrainerAgent(provider, &stubVerifier{}, Options{})

	state := NewState("u1", "leg day plan", nil)
	require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))
	assert.Contains(t, state.TrainerResponse, "unavailable")
}

func TestNutritionAgent(t *testing.T) {
	t.Run("reply stays out of history", func(t *testing.T) {
		provider := &stubProvider{reply: "Eat 120g of protein daily."}
		agent := NewNutritionAgent(provider, &stubVerifier{}, Options{Model: "test-model"})

		state := NewState("u1", "meal plan", nil)
		turns := len(state.ChatHistory)

		require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))
		assert.Equal(t, "Eat 120g of protein daily.", state.NutritionResponse)
		assert.Len(t, state.ChatHistory, turns)
	})

	t.Run("scope denied", func(t *testing.T) {
		provider := &stubProvider{reply: "advice"}
		verifier := &stubVerifier{denied: map[auth.Scope]bool{auth.ScopeNutritionDietPlan: true}}
		agent := NewNutritionAgent(provider, verifier, Options{})

		state := NewState("u1", "meal plan", nil)
		require.NoError(t, agent.Execute(context.Background(), state, Invocation{Token: "tok"}))
		assert.Contains(t, state.NutritionResponse, "Unauthorized")
	})
}
