package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitforge/fitforge/internal/providers"
	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/rs/zerolog/log"
)

// recoveryKeywords flag a query as recovery-specific when any of them
// appears as a substring of the lowercased conversation text.
var recoveryKeywords = []string{"recovery", "sleep", "rest", "fatigue", "recover", "tired"}

const recoverySystemPrompt = "You are a recovery and readiness coach. " +
	"Interpret the user's recovery metrics and give short, practical advice on rest, sleep, and training load. " +
	"If the recovery score is below 70, explicitly recommend reduced training intensity. " +
	"Do not use emojis, markdown, bold formatting, or asterisks."

const recoveryCompositePrompt = "You are a recovery coach coordinating with a trainer and a nutritionist. " +
	"Combine the delegate responses with the user's recovery score into one coherent, concise answer. " +
	"Do not use emojis, markdown, bold formatting, or asterisks."

// RecoveryAgent scores readiness from reconciled metrics and, for
// queries outside its own domain, delegates to the trainer and
// nutrition agents under its delegation scopes.
type RecoveryAgent struct {
	provider  providers.Provider
	verifier  auth.Verifier
	fetcher   wearable.Fetcher
	trainer   Agent
	nutrition Agent
	opts      Options
}

// NewRecoveryAgent creates the recovery agent. The trainer and
// nutrition agents are optional delegation targets; a nil target
// simply disables that delegation path.
func NewRecoveryAgent(provider providers.Provider, verifier auth.Verifier, fetcher wearable.Fetcher, trainer, nutrition Agent, opts Options) *RecoveryAgent {
	return &RecoveryAgent{
		provider:  provider,
		verifier:  verifier,
		fetcher:   fetcher,
		trainer:   trainer,
		nutrition: nutrition,
		opts:      opts,
	}
}

// Name returns the agent name.
func (a *RecoveryAgent) Name() AgentName { return AgentRecovery }

// RequiredScope returns the scope gating this agent.
func (a *RecoveryAgent) RequiredScope() auth.Scope { return auth.ScopeRecoveryCollect }

// IsRecoverySpecific reports whether the conversation text is about
// recovery itself rather than a general fitness question.
func IsRecoverySpecific(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range recoveryKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Execute verifies the collect scope, pulls wearable metrics when a
// token is available, reconciles the metric tiers, and either scores
// the recovery question directly or delegates and composes.
func (a *RecoveryAgent) Execute(ctx context.Context, state *State, inv Invocation) error {
	log.Info().Str("caller", inv.Caller).Msg("recovery agent invoked")

	if inv.Token == "" {
		state.RecoveryResponse = "Missing token"
		return nil
	}

	if err := a.verifier.VerifyScope(ctx, inv.Token, a.RequiredScope()); err != nil {
		state.RecoveryResponse = "Unauthorized: " + err.Error()
		log.Warn().Err(err).Msg("recovery agent unauthorized")
		return nil
	}

	if state.FitbitToken != "" && state.Wearable == nil && a.fetcher != nil {
		state.Wearable = a.fetcher.Fetch(ctx, state.FitbitToken)
	}

	metrics := resolveEffective(state).clampRanges()

	if IsRecoverySpecific(state.CombinedQuery()) {
		a.scoreAndAdvise(ctx, state, metrics)
		return nil
	}

	a.delegateAndCompose(ctx, state, inv, metrics)
	return nil
}

// scoreAndAdvise handles a recovery-specific query: protein grams are
// the nutrition signal and the reply interprets the score directly.
func (a *RecoveryAgent) scoreAndAdvise(ctx context.Context, state *State, m effectiveMetrics) {
	score := recoveryScore(m.SleepHours, m.ProteinGrams, 100, m.Mood, m.WeightKG)
	state.RecoveryPercent = &score

	prompt := fmt.Sprintf(
		"User question:\n%s\n\nRecovery metrics:\nSleep: %.1f hours\nProtein: %.1f grams\nMood: %.1f/10\nWeight: %.1f kg\nRecovery score: %.1f%%\n\nGive recovery advice based on these metrics. If the score is below 70, recommend reduced training intensity.",
		state.CombinedQuery(), m.SleepHours, m.ProteinGrams, m.Mood, m.WeightKG, score,
	)

	resp, err := a.provider.ChatCompletion(ctx, a.opts.chatRequest([]providers.Message{
		{Role: "system", Content: recoverySystemPrompt},
		{Role: "user", Content: prompt},
	}))
	if err != nil {
		log.Error().Err(err).Msg("recovery completion failed")
		state.RecoveryResponse = fmt.Sprintf("Your recovery score is %.1f%%.", score)
		return
	}

	state.RecoveryResponse = SanitizeText(resp.Text())
}

// delegateAndCompose handles a general query routed through recovery:
// diet quality is the nutrition signal, delegates fill in missing
// trainer and nutrition responses, and the reply composes all three.
func (a *RecoveryAgent) delegateAndCompose(ctx context.Context, state *State, inv Invocation, m effectiveMetrics) {
	score := recoveryScore(m.SleepHours, m.DietQuality, 10, m.Mood, m.WeightKG)
	state.RecoveryPercent = &score

	a.delegate(ctx, state, inv, a.trainer, auth.ScopeRecoveryInvokeTrainer)
	a.delegate(ctx, state, inv, a.nutrition, auth.ScopeRecoveryInvokeNutrition)

	trainerPart := state.TrainerResponse
	if trainerPart == "" {
		trainerPart = "None"
	}
	nutritionPart := state.NutritionResponse
	if nutritionPart == "" {
		nutritionPart = "None"
	}

	prompt := fmt.Sprintf(
		"User question:\n%s\n\nRecovery score: %.1f%%\n\nTrainer advice:\n%s\n\nNutrition advice:\n%s\n\nCombine these into one coherent answer for the user.",
		state.CombinedQuery(), score, trainerPart, nutritionPart,
	)

	resp, err := a.provider.ChatCompletion(ctx, a.opts.chatRequest([]providers.Message{
		{Role: "system", Content: recoveryCompositePrompt},
		{Role: "user", Content: prompt},
	}))
	if err != nil {
		log.Error().Err(err).Msg("recovery composite completion failed")
		state.RecoveryResponse = fmt.Sprintf("Your recovery score is %.1f%%.", score)
		return
	}

	state.RecoveryResponse = SanitizeText(resp.Text())
}

// delegate invokes a target agent once per request, gated on the
// delegation scope. A denied scope leaves an explanatory placeholder
// and never aborts the recovery flow.
func (a *RecoveryAgent) delegate(ctx context.Context, state *State, inv Invocation, target Agent, scope auth.Scope) {
	if target == nil {
		return
	}
	if state.Response(target.Name()) != "" || state.Visited(target.Name()) {
		return
	}

	if err := a.verifier.VerifyScope(ctx, inv.Token, scope); err != nil {
		state.SetResponse(target.Name(), "Unauthorized: missing "+string(scope)+" scope")
		log.Warn().Err(err).Str("target", string(target.Name())).Msg("delegation scope denied")
		return
	}

	state.MarkVisited(target.Name())
	state.LogDelegation(AgentRecovery, target.Name())
	log.Info().Str("delegation", titled(AgentRecovery)+"->"+titled(target.Name())).Msg("recovery delegating")

	if err := target.Execute(ctx, state, Invocation{Token: inv.Token, Caller: string(AgentRecovery)}); err != nil {
		log.Error().Err(err).Str("target", string(target.Name())).Msg("delegated agent failed")
	}
}
