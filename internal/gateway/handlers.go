package gateway

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/fitforge/internal/agents"
	"github.com/fitforge/fitforge/pkg/auth"
)

// AgentQueryRequest is the chat endpoint body. ManualData stays loose
// because clients send either plain or "manual_"-prefixed metric keys.
type AgentQueryRequest struct {
	UserID         string         `json:"user_id"`
	Context        string         `json:"context"`
	ConsentGranted bool           `json:"consent_granted"`
	FitbitToken    string         `json:"fitbit_token"`
	ManualData     map[string]any `json:"manual_data"`
}

// FitbitCallbackRequest carries the PKCE exchange inputs. UserJWT is
// optional; when present it is verified before the exchange.
type FitbitCallbackRequest struct {
	FitbitCode   string `json:"fitbit_code"`
	CodeVerifier string `json:"code_verifier"`
	UserJWT      string `json:"user_jwt"`
}

// ClearChatRequest names the user whose history to drop.
type ClearChatRequest struct {
	UserID string `json:"user_id"`
}

// bearerToken extracts the Authorization bearer credential, or "".
func bearerToken(c fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// manualFloat reads a numeric manual-data value under any of the
// given keys, tolerating float and int JSON forms.
func manualFloat(data map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		}
	}
	return nil
}

// handleAgentQuery is the main chat endpoint.
func (g *Gateway) handleAgentQuery(c fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing bearer token",
		})
	}

	var req AgentQueryRequest
	if err := c.Bind().Body(&req); err != nil {
		// Some clients post the bare query text; treat the raw body
		// as the context rather than rejecting it.
		req = AgentQueryRequest{Context: string(c.Body())}
	}

	if req.UserID == "" {
		if sub, err := auth.SubjectFromToken(token); err == nil {
			req.UserID = sub
		}
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.Context) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "context is required",
		})
	}

	result, err := g.orchestrator.Handle(c.Context(), agents.Request{
		UserID:             req.UserID,
		Query:              req.Context,
		Token:              token,
		FitbitToken:        req.FitbitToken,
		ConsentGranted:     req.ConsentGranted,
		ManualSleepHours:   manualFloat(req.ManualData, "sleep_hours", "manual_sleep_hours"),
		ManualProteinGrams: manualFloat(req.ManualData, "protein_grams", "manual_protein_grams"),
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("agent query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"user_id": req.UserID,
			"intent":  string(agents.IntentError),
			"message": "Something went wrong processing your query.",
		})
	}

	if result.ConsentRequired {
		return c.JSON(fiber.Map{
			"user_id":          result.UserID,
			"intent":           string(agents.IntentConsent),
			"consent_required": true,
			"message":          result.Message,
			"agents":           result.Agents,
			"fitbit_required":  result.FitbitRequired,
		})
	}

	body := fiber.Map{
		"user_id": result.UserID,
		"intent":  string(result.Intent),
		"message": result.Message,
	}
	for k, v := range result.State.Export() {
		body[k] = v
	}
	return c.JSON(body)
}

// handleFitbitCallback completes the PKCE authorization code exchange.
// The user JWT is optional; it is only checked when the caller sends
// one.
func (g *Gateway) handleFitbitCallback(c fiber.Ctx) error {
	var req FitbitCallbackRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.UserJWT != "" {
		if err := g.verifier.VerifyScope(c.Context(), req.UserJWT, auth.ScopeRecoveryCollect); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized: " + err.Error(),
			})
		}
	}

	if req.FitbitCode == "" || req.CodeVerifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "fitbit_code and code_verifier are required",
		})
	}

	tokens, err := g.exchanger.ExchangeCode(c.Context(), req.FitbitCode, req.CodeVerifier)
	if err != nil {
		log.Error().Err(err).Msg("fitbit token exchange failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "token exchange failed",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"tokens": tokens,
	})
}

// handleClearChat drops a user's stored conversation history. The
// user id comes from the body or, when absent, the bearer token
// subject.
func (g *Gateway) handleClearChat(c fiber.Ctx) error {
	var req ClearChatRequest
	if err := c.Bind().Body(&req); err != nil {
		req = ClearChatRequest{}
	}

	if req.UserID == "" {
		if sub, err := auth.SubjectFromToken(bearerToken(c)); err == nil {
			req.UserID = sub
		}
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	status, message := "ok", "Chat history cleared"
	if err := g.orchestrator.ClearHistory(c.Context(), req.UserID); err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("clear chat failed")
		status, message = "error", "Chat history could not be cleared"
	}

	return c.JSON(fiber.Map{
		"status":  status,
		"message": message,
		"user_id": req.UserID,
	})
}

// handleExercises serves the exercise catalog with optional filters.
func (g *Gateway) handleExercises(c fiber.Ctx) error {
	if g.catalog == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "exercise catalog not configured",
		})
	}

	exercises, err := g.catalog.Exercises(c.Context(), c.Query("muscle_group"), c.Query("difficulty"))
	if err != nil {
		log.Error().Err(err).Msg("exercise catalog lookup failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to fetch exercises",
		})
	}

	return c.JSON(fiber.Map{
		"exercises": exercises,
		"count":     len(exercises),
	})
}

// handleRoot returns basic service info.
func (g *Gateway) handleRoot(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "FitForge Gateway",
		"status":  "running",
	})
}

// handleHealth is the liveness probe.
func (g *Gateway) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
