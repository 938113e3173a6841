package agents

import (
	"regexp"
	"strings"

	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/models"
)

// AgentName identifies one specialized agent.
type AgentName string

const (
	AgentTrainer   AgentName = "trainer"
	AgentNutrition AgentName = "nutrition"
	AgentRecovery  AgentName = "recovery"
)

// MaxHistoryTurns caps the chat history carried through a request.
const MaxHistoryTurns = 15

// Invocation is the auth context an agent runs under.
type Invocation struct {
	// Token is the caller's bearer credential; each agent re-verifies
	// its own scope against it.
	Token string
	// Caller names who triggered the agent ("orchestrator", "recovery").
	Caller string
}

// State is the per-request accumulator threaded through the agents.
// It is created fresh for every request and discarded after the
// response is serialized.
type State struct {
	UserID      string
	UserQuery   string
	ChatHistory []models.ChatMessage

	// FitbitToken, when present, enables the wearable fetch.
	FitbitToken string

	// Manual metric overrides supplied by the caller. Highest
	// precedence in the reconciliation chain.
	ManualSleepHours   *float64
	ManualProteinGrams *float64

	// Directly-set metric values (second precedence tier).
	SleepHours   *float64
	ProteinGrams *float64
	Mood         *float64
	DietQuality  *float64
	Weight       *float64

	// Wearable is the provenance-tagged snapshot from the metrics
	// fetcher; set once, never overwritten.
	Wearable *wearable.Metrics

	TrainerResponse   string
	NutritionResponse string
	RecoveryResponse  string

	RecoveryPercent *float64

	// InvocationLog records delegations as "A->B" markers.
	InvocationLog []string

	visited map[AgentName]bool
}

// NewState creates a request state seeded with prior history and the
// current query appended as the newest user turn.
func NewState(userID, query string, history []models.ChatMessage) *State {
	s := &State{
		UserID:      userID,
		UserQuery:   query,
		ChatHistory: append([]models.ChatMessage{}, history...),
		visited:     make(map[AgentName]bool),
	}
	s.AppendHistory("user", query)
	return s
}

// AppendHistory adds a turn and trims to the newest MaxHistoryTurns.
func (s *State) AppendHistory(role, content string) {
	s.ChatHistory = append(s.ChatHistory, models.ChatMessage{Role: role, Content: content})
	if len(s.ChatHistory) > MaxHistoryTurns {
		s.ChatHistory = s.ChatHistory[len(s.ChatHistory)-MaxHistoryTurns:]
	}
}

// HasAssistantTurn reports whether an assistant turn with this text is
// already in the history, ignoring case.
func (s *State) HasAssistantTurn(text string) bool {
	for _, msg := range s.ChatHistory {
		if msg.Role == "assistant" && strings.EqualFold(strings.TrimSpace(msg.Content), strings.TrimSpace(text)) {
			return true
		}
	}
	return false
}

// Visited reports whether the agent already ran in this request.
func (s *State) Visited(name AgentName) bool {
	return s.visited[name]
}

// MarkVisited records an agent invocation; it returns false when the
// agent was already marked, guarding against repeat invocation.
func (s *State) MarkVisited(name AgentName) bool {
	if s.visited[name] {
		return false
	}
	s.visited[name] = true
	return true
}

// LogDelegation appends an "A->B" marker to the invocation log.
func (s *State) LogDelegation(from, to AgentName) {
	s.InvocationLog = append(s.InvocationLog, titled(from)+"->"+titled(to))
}

func titled(name AgentName) string {
	switch name {
	case AgentTrainer:
		return "Trainer"
	case AgentNutrition:
		return "Nutrition"
	case AgentRecovery:
		return "Recovery"
	}
	return string(name)
}

// Response returns the stored response for an agent.
func (s *State) Response(name AgentName) string {
	switch name {
	case AgentTrainer:
		return s.TrainerResponse
	case AgentNutrition:
		return s.NutritionResponse
	case AgentRecovery:
		return s.RecoveryResponse
	}
	return ""
}

// SetResponse stores the response for an agent.
func (s *State) SetResponse(name AgentName, text string) {
	switch name {
	case AgentTrainer:
		s.TrainerResponse = text
	case AgentNutrition:
		s.NutritionResponse = text
	case AgentRecovery:
		s.RecoveryResponse = text
	}
}

// CombinedQuery joins the sanitized history and current query into the
// text the recovery classifier and the agent prompts operate on.
func (s *State) CombinedQuery() string {
	if len(s.ChatHistory) == 0 {
		return SanitizeText(s.UserQuery)
	}

	var b strings.Builder
	for _, msg := range s.ChatHistory {
		b.WriteString("User: ")
		b.WriteString(SanitizeText(msg.Content))
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(SanitizeText(s.UserQuery))
	return b.String()
}

// HistoryText renders the history as "role: text" lines for
// classification prompts.
func (s *State) HistoryText() string {
	lines := make([]string, len(s.ChatHistory))
	for i, msg := range s.ChatHistory {
		lines[i] = msg.Role + ": " + SanitizeText(msg.Content)
	}
	return strings.Join(lines, "\n")
}

// Export returns the state fields included in the HTTP response body.
func (s *State) Export() map[string]any {
	out := map[string]any{
		"user_query":   s.UserQuery,
		"chat_history": s.ChatHistory,
	}

	if s.TrainerResponse != "" {
		out["trainer_response"] = s.TrainerResponse
	}
	if s.NutritionResponse != "" {
		out["nutrition_response"] = s.NutritionResponse
	}
	if s.RecoveryResponse != "" {
		out["recovery_response"] = s.RecoveryResponse
	}
	if s.RecoveryPercent != nil {
		out["recovery_percent"] = *s.RecoveryPercent
	}

	log := s.InvocationLog
	if log == nil {
		log = []string{}
	}
	out["invocation_log"] = log

	return out
}

var sanitizePattern = regexp.MustCompile(`[*#]`)

// SanitizeText strips asterisk and hash characters only; no other
// content filtering is applied.
func SanitizeText(text string) string {
	return sanitizePattern.ReplaceAllString(text, "")
}
