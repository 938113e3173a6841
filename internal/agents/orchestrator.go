package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/fitforge/internal/history"
	"github.com/fitforge/fitforge/internal/providers"
)

// Intent is the classified purpose of a user query.
type Intent string

const (
	IntentTrainer   Intent = "trainer"
	IntentNutrition Intent = "nutrition"
	IntentRecovery  Intent = "recovery"
	IntentBoth      Intent = "both"
	IntentCasual    Intent = "casual"
	IntentConsent   Intent = "consent"
	IntentError     Intent = "error"
)

// intentFlows maps an intent to the ordered agent flow it triggers.
var intentFlows = map[Intent][]AgentName{
	IntentTrainer:   {AgentTrainer},
	IntentNutrition: {AgentNutrition},
	IntentRecovery:  {AgentRecovery},
	IntentBoth:      {AgentTrainer, AgentNutrition},
	IntentCasual:    {},
}

var (
	intentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitforge",
		Name:      "intent_classifications_total",
		Help:      "Query intent classifications by resolved intent",
	}, []string{"intent"})

	agentInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitforge",
		Name:      "agent_invocations_total",
		Help:      "Agent invocations by agent name and caller",
	}, []string{"agent", "caller"})
)

// Classifier resolves the intent of a query given the prior
// conversation.
type Classifier interface {
	Classify(ctx context.Context, query, historyText string) Intent
}

const classifierSystemPrompt = "You are an intent classifier for a fitness assistant. " +
	"Classify the user's query into exactly one of: trainer, nutrition, recovery, both, casual. " +
	"trainer: workouts, exercises, training plans. " +
	"nutrition: diet, meals, calories, macros. " +
	"recovery: sleep, rest, fatigue, readiness. " +
	"both: asks for training and nutrition together. " +
	"casual: greetings and small talk. " +
	"Answer with the single category word only."

// LLMClassifier classifies intent with one short model call. Any
// failure or unexpected answer resolves to casual.
type LLMClassifier struct {
	provider providers.Provider
	opts     Options
}

// NewLLMClassifier creates a model-backed intent classifier.
func NewLLMClassifier(provider providers.Provider, opts Options) *LLMClassifier {
	return &LLMClassifier{provider: provider, opts: opts}
}

// Classify returns the model's intent label, defaulting to casual.
func (c *LLMClassifier) Classify(ctx context.Context, query, historyText string) Intent {
	prompt := query
	if historyText != "" {
		prompt = "Conversation so far:\n" + historyText + "\n\nLatest query: " + query
	}

	resp, err := c.provider.ChatCompletion(ctx, c.opts.chatRequest([]providers.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: prompt},
	}))
	if err != nil {
		log.Warn().Err(err).Msg("intent classification failed, defaulting to casual")
		return IntentCasual
	}

	word := strings.ToLower(strings.TrimSpace(resp.Text()))
	if fields := strings.Fields(word); len(fields) > 0 {
		word = strings.Trim(fields[0], ".,:;\"'")
	}

	intent := Intent(word)
	if _, ok := intentFlows[intent]; !ok {
		log.Warn().Str("raw", word).Msg("unknown intent label, defaulting to casual")
		return IntentCasual
	}
	return intent
}

const casualSystemPrompt = "You are a friendly fitness assistant. " +
	"Reply warmly and briefly to casual conversation, steering gently toward fitness topics when natural. " +
	"Do not use emojis, markdown, bold formatting, or asterisks."

// Request carries one user query and its auth and metric context into
// the orchestrator.
type Request struct {
	UserID         string
	Query          string
	Token          string
	FitbitToken    string
	ConsentGranted bool

	ManualSleepHours   *float64
	ManualProteinGrams *float64
}

// Result is the orchestrator's answer: either a consent request naming
// the agents that would run, or the assembled response with the final
// state.
type Result struct {
	UserID          string
	Intent          Intent
	Message         string
	ConsentRequired bool
	Agents          []AgentName
	FitbitRequired  bool
	State           *State
}

// Orchestrator routes queries to the agent flows, enforces the consent
// gate, and assembles the final response.
type Orchestrator struct {
	classifier Classifier
	provider   providers.Provider
	store      history.Store
	agents     map[AgentName]Agent
	opts       Options
}

// NewOrchestrator wires the classifier, the casual-path provider, the
// history store, and the specialized agents.
func NewOrchestrator(classifier Classifier, provider providers.Provider, store history.Store, registered []Agent, opts Options) *Orchestrator {
	byName := make(map[AgentName]Agent, len(registered))
	for _, ag := range registered {
		byName[ag.Name()] = ag
	}
	return &Orchestrator{
		classifier: classifier,
		provider:   provider,
		store:      store,
		agents:     byName,
		opts:       opts,
	}
}

// Handle processes one query end to end. Agent-level failures degrade
// into explanatory response text; only infrastructure faults surface
// as errors.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	prior, err := o.store.Get(ctx, req.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("history load failed, starting fresh")
		prior = nil
	}

	state := NewState(req.UserID, req.Query, prior)
	state.FitbitToken = req.FitbitToken
	state.ManualSleepHours = req.ManualSleepHours
	state.ManualProteinGrams = req.ManualProteinGrams

	intent := o.classifier.Classify(ctx, req.Query, state.HistoryText())
	intentTotal.WithLabelValues(string(intent)).Inc()
	log.Info().Str("user_id", req.UserID).Str("intent", string(intent)).Msg("query classified")

	flow := intentFlows[intent]

	if len(flow) > 0 && !req.ConsentGranted {
		return o.consentRequest(req.UserID, intent, flow, req.FitbitToken == ""), nil
	}

	var message string
	if len(flow) == 0 {
		message = o.casualReply(ctx, state)
	} else {
		inv := Invocation{Token: req.Token, Caller: "orchestrator"}
		for _, name := range flow {
			ag, ok := o.agents[name]
			if !ok || !state.MarkVisited(name) {
				continue
			}
			agentInvocations.WithLabelValues(string(name), inv.Caller).Inc()
			if err := ag.Execute(ctx, state, inv); err != nil {
				log.Error().Err(err).Str("agent", string(name)).Msg("agent execution failed")
				state.SetResponse(name, "The "+string(name)+" agent is unavailable right now.")
			}
		}
		message = assembleResponse(state)
		for _, sec := range dedupedSections(state) {
			if !state.HasAssistantTurn(sec.text) {
				state.AppendHistory("assistant", sec.text)
			}
		}
	}

	if err := o.store.Set(ctx, req.UserID, state.ChatHistory); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("history persist failed")
	}

	return &Result{
		UserID:  req.UserID,
		Intent:  intent,
		Message: message,
		State:   state,
	}, nil
}

// ClearHistory removes a user's stored conversation.
func (o *Orchestrator) ClearHistory(ctx context.Context, userID string) error {
	return o.store.Clear(ctx, userID)
}

// consentRequest builds the consent gate response; no agent runs
// before the caller re-submits with consent granted.
func (o *Orchestrator) consentRequest(userID string, intent Intent, flow []AgentName, fitbitMissing bool) *Result {
	names := make([]string, len(flow))
	needsFitbit := false
	for i, name := range flow {
		names[i] = titled(name)
		if name == AgentRecovery {
			needsFitbit = fitbitMissing
		}
	}

	msg := fmt.Sprintf(
		"To answer this, the following agents would process your query: %s. Do you consent to sharing your query and health data with them?",
		strings.Join(names, ", "),
	)
	if needsFitbit {
		msg += " Connecting your Fitbit account would let the recovery agent use your real sleep and activity data."
	}

	return &Result{
		UserID:          userID,
		Intent:          IntentConsent,
		Message:         msg,
		ConsentRequired: true,
		Agents:          append([]AgentName{}, flow...),
		FitbitRequired:  needsFitbit,
	}
}

// casualReply answers small talk directly and records the exchange in
// the history so followup classification sees it. The reply stays out
// of the agent response slots.
func (o *Orchestrator) casualReply(ctx context.Context, state *State) string {
	reply := "Hi! Ask me anything about training, nutrition, or recovery."
	resp, err := o.provider.ChatCompletion(ctx, o.opts.chatRequest([]providers.Message{
		{Role: "system", Content: casualSystemPrompt},
		{Role: "user", Content: state.CombinedQuery()},
	}))
	if err != nil {
		log.Error().Err(err).Msg("casual completion failed")
	} else {
		reply = SanitizeText(resp.Text())
	}

	state.AppendHistory("assistant", reply)
	return reply
}

type section struct {
	header string
	text   string
}

// dedupedSections returns the non-empty agent responses in fixed order,
// dropping case-insensitive duplicate texts.
func dedupedSections(state *State) []section {
	parts := []section{
		{"TRAINER RESPONSE:", state.TrainerResponse},
		{"NUTRITION RESPONSE:", state.NutritionResponse},
		{"RECOVERY RESPONSE:", state.RecoveryResponse},
	}

	seen := make(map[string]bool)
	var out []section
	for _, p := range parts {
		text := strings.TrimSpace(p.text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, section{header: p.header, text: text})
	}
	return out
}

// assembleResponse stitches agent responses under section headers. An
// empty assembly falls back to a fixed message; a single section is
// returned without its header.
func assembleResponse(state *State) string {
	sections := dedupedSections(state)
	if len(sections) == 0 {
		return "Couldn't understand query."
	}
	if len(sections) == 1 {
		return sections[0].text
	}

	joined := make([]string, len(sections))
	for i, sec := range sections {
		joined[i] = sec.header + "\n" + sec.text
	}
	return strings.Join(joined, "\n\n")
}
