package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/fitforge/fitforge/pkg/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Catalog looks up exercises from the row store.
type Catalog interface {
	Exercises(ctx context.Context, muscleGroup, difficulty string) ([]models.Exercise, error)
}

// Config configures the Supabase PostgREST client.
type Config struct {
	URL            string
	ServiceRoleKey string
	Timeout        time.Duration
}

// Client queries the exercise catalog through the Supabase REST API.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates an exercise catalog client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.ServiceRoleKey).
		SetHeader("Authorization", "Bearer "+cfg.ServiceRoleKey).
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client}
}

// Exercises fetches exercises filtered by muscle group and difficulty;
// empty filters return all rows.
func (c *Client) Exercises(ctx context.Context, muscleGroup, difficulty string) ([]models.Exercise, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "*")

	if muscleGroup != "" {
		req.SetQueryParam("muscle_group", "eq."+muscleGroup)
	}
	if difficulty != "" {
		req.SetQueryParam("difficulty", "eq."+difficulty)
	}

	var exercises []models.Exercise

	resp, err := req.
		SetResult(&exercises).
		Get("/rest/v1/exercises")

	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}

	if resp.IsError() {
		log.Warn().
			Int("status", resp.StatusCode()).
			Str("muscle_group", muscleGroup).
			Str("difficulty", difficulty).
			Msg("catalog query rejected")
		return nil, fmt.Errorf("catalog query failed: status %d", resp.StatusCode())
	}

	return exercises, nil
}
