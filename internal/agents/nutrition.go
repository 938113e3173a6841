package agents

import (
	"context"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/rs/zerolog/log"
)

const nutritionSystemPrompt = "You are a certified nutritionist. You can give a diet plan too. " +
	"Provide accurate, concise dietary guidance: meal composition, macros, calories, hydration, and supplement basics. " +
	"Respond only with information directly related to nutrition and diet. " +
	"Do NOT provide workout routines or exercise programming; that is handled by the Trainer Agent. " +
	"Always ensure responses are safe, professional, and free of sensitive details. " +
	"Do not use emojis, markdown, bold formatting, or asterisks. " +
	"If the query includes training or exercise, only acknowledge it briefly and defer to the Trainer Agent."

// NutritionAgent answers diet and nutrition questions.
type NutritionAgent struct {
	provider providers.Provider
	verifier auth.Verifier
	opts     Options
}

// NewNutritionAgent creates the nutrition agent.
func NewNutritionAgent(provider providers.Provider, verifier auth.Verifier, opts Options) *NutritionAgent {
	return &NutritionAgent{provider: provider, verifier: verifier, opts: opts}
}

// Name returns the agent name.
func (a *NutritionAgent) Name() AgentName { return AgentNutrition }

// RequiredScope returns the scope gating this agent.
func (a *NutritionAgent) RequiredScope() auth.Scope { return auth.ScopeNutritionDietPlan }

// Execute verifies the nutrition scope, prompts the model with the
// sanitized conversation, and writes the reply into the state.
func (a *NutritionAgent) Execute(ctx context.Context, state *State, inv Invocation) error {
	log.Info().Str("caller", inv.Caller).Msg("nutrition agent invoked")

	if inv.Token == "" {
		state.NutritionResponse = "Missing token"
		return nil
	}

	if err := a.verifier.VerifyScope(ctx, inv.Token, a.RequiredScope()); err != nil {
		state.NutritionResponse = "Unauthorized: " + err.Error()
		log.Warn().Err(err).Msg("nutrition agent unauthorized")
		return nil
	}

	resp, err := a.provider.ChatCompletion(ctx, a.opts.chatRequest([]providers.Message{
		{Role: "system", Content: nutritionSystemPrompt},
		{Role: "user", Content: state.CombinedQuery()},
	}))
	if err != nil {
		log.Error().Err(err).Msg("nutrition completion failed")
		state.NutritionResponse = "The nutritionist is unavailable right now, please try again."
		return nil
	}

	state.NutritionResponse = SanitizeText(resp.Text())

	return nil
}
