package agents

import (
	"context"
	"strings"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/rs/zerolog/log"
)

// MuscleWikiURL is the exercise reference appended to trainer replies.
const MuscleWikiURL = "https://musclewiki.com"

const trainerSystemPrompt = "You are a professional and approachable gym trainer. You can give a training plan too. " +
	"Provide accurate, concise exercise and fitness guidance. " +
	"Respond only with information directly related to physical training, workouts, exercises, sets, reps, recovery, and muscle targeting. " +
	"Do NOT provide detailed nutritional, calorie, or meal plan information; that is handled by the Nutrition Agent. " +
	"If the user asks casual or small-talk questions, reply in a friendly but fitness-oriented way without adding nutrition advice. " +
	"Always ensure responses are safe, professional, and free of sensitive details. " +
	"Reference " + MuscleWikiURL + " when giving exercise suggestions. " +
	"Do not use emojis, markdown, bold formatting, or asterisks. " +
	"If the query includes nutrition or diet, only acknowledge it briefly and defer to the Nutrition Agent."

// TrainerAgent answers exercise and workout questions.
type TrainerAgent struct {
	provider providers.Provider
	verifier auth.Verifier
	opts     Options
}

// NewTrainerAgent creates the trainer agent.
func NewTrainerAgent(provider providers.Provider, verifier auth.Verifier, opts Options) *TrainerAgent {
	return &TrainerAgent{provider: provider, verifier: verifier, opts: opts}
}

// Name returns the agent name.
func (a *TrainerAgent) Name() AgentName { return AgentTrainer }

// RequiredScope returns the scope gating this agent.
func (a *TrainerAgent) RequiredScope() auth.Scope { return auth.ScopeTrainerSuggest }

// Execute verifies the trainer scope, prompts the model with the
// sanitized conversation, and writes the reply into the state.
func (a *TrainerAgent) Execute(ctx context.Context, state *State, inv Invocation) error {
	log.Info().Str("caller", inv.Caller).Msg("trainer agent invoked")

	if inv.Token == "" {
		state.TrainerResponse = "Missing token"
		return nil
	}

	if err := a.verifier.VerifyScope(ctx, inv.Token, a.RequiredScope()); err != nil {
		state.TrainerResponse = "Unauthorized: " + err.Error()
		log.Warn().Err(err).Msg("trainer agent unauthorized")
		return nil
	}

	resp, err := a.provider.ChatCompletion(ctx, a.opts.chatRequest([]providers.Message{
		{Role: "system", Content: trainerSystemPrompt},
		{Role: "user", Content: state.CombinedQuery()},
	}))
	if err != nil {
		log.Error().Err(err).Msg("trainer completion failed")
		state.TrainerResponse = "The trainer is unavailable right now, please try again."
		return nil
	}

	reply := appendMuscleWikiLink(SanitizeText(resp.Text()))
	state.TrainerResponse = reply
	state.AppendHistory("assistant", reply)

	return nil
}

// appendMuscleWikiLink adds the clickable exercise reference when the
// reply does not already mention it.
func appendMuscleWikiLink(response string) string {
	if strings.Contains(response, MuscleWikiURL) {
		return response
	}
	return response + "\n\nFor exercise references, visit: <a href=\"" + MuscleWikiURL + "\" target=\"_blank\">musclewiki.com</a>"
}
