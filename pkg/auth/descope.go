package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingToken indicates the caller supplied no bearer credential.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken indicates the session service rejected the credential.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingScope indicates a valid session without the required grant.
	ErrMissingScope = errors.New("missing required scope")
)

// Verifier validates a bearer credential against a required scope.
type Verifier interface {
	VerifyScope(ctx context.Context, token string, required Scope) error
}

// DescopeConfig configures the Descope session validation client.
type DescopeConfig struct {
	BaseURL   string
	ProjectID string
	Timeout   time.Duration
}

// DescopeVerifier validates session tokens against the Descope service
// and checks the granted scope list.
type DescopeVerifier struct {
	projectID  string
	httpClient *resty.Client
}

type sessionResponse struct {
	Valid bool     `json:"valid"`
	Scope []string `json:"scope"`
}

// NewDescopeVerifier creates a verifier backed by the Descope API.
func NewDescopeVerifier(cfg DescopeConfig) *DescopeVerifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		log.Debug().
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Descope session validation response")
		return nil
	})

	return &DescopeVerifier{
		projectID:  cfg.ProjectID,
		httpClient: client,
	}
}

// VerifyScope validates the session token and checks that the required
// scope is present in the granted list.
func (v *DescopeVerifier) VerifyScope(ctx context.Context, token string, required Scope) error {
	if token == "" {
		return ErrMissingToken
	}

	var session sessionResponse

	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+v.projectID+":"+token).
		SetResult(&session).
		Post("/v1/auth/validate")

	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if resp.IsError() || !session.Valid {
		log.Warn().
			Int("status", resp.StatusCode()).
			Str("scope", string(required)).
			Msg("session validation rejected")
		return ErrInvalidToken
	}

	for _, granted := range session.Scope {
		if granted == string(required) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrMissingScope, required)
}

// SubjectFromToken extracts the subject claim from a session token
// without re-verifying the signature. Callers must only use it after
// the token passed VerifyScope.
func SubjectFromToken(token string) (string, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}
