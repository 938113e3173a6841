package wearable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ErrTokenExchange indicates the provider rejected the code exchange.
var ErrTokenExchange = errors.New("token exchange failed")

// TokenSet is the token payload returned by the OAuth2 exchange.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// OAuthConfig configures the authorization-code exchange.
type OAuthConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

// OAuthExchanger swaps an authorization code for a token set.
type OAuthExchanger interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenSet, error)
}

// OAuthClient performs the OAuth2 PKCE code exchange against the
// wearable provider.
type OAuthClient struct {
	cfg        OAuthConfig
	httpClient *resty.Client
}

// NewOAuthClient creates an OAuth exchange client.
func NewOAuthClient(cfg OAuthConfig) *OAuthClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.fitbit.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &OAuthClient{cfg: cfg, httpClient: client}
}

// ExchangeCode performs the PKCE authorization-code grant.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenSet, error) {
	if codeVerifier == "" {
		return nil, fmt.Errorf("%w: missing code_verifier for PKCE", ErrTokenExchange)
	}

	var tokens TokenSet

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"client_id":     c.cfg.ClientID,
			"grant_type":    "authorization_code",
			"code":          code,
			"code_verifier": codeVerifier,
			"redirect_uri":  c.cfg.RedirectURI,
		}).
		SetResult(&tokens).
		Post("/oauth2/token")

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	if resp.IsError() {
		log.Error().
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Msg("wearable token exchange rejected")
		return nil, fmt.Errorf("%w: status %d", ErrTokenExchange, resp.StatusCode())
	}

	return &tokens, nil
}
