package wearable

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Fetcher assembles a best-effort metric snapshot for an access token.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken string) *Metrics
}

// Config configures the Fitbit API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches metrics from the Fitbit Web API. Every category is
// queried independently; a failed category leaves its metrics nil and
// never aborts the others.
type Client struct {
	httpClient *resty.Client
	now        func() time.Time
}

// NewClient creates a Fitbit metrics client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.fitbit.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		now:        time.Now,
	}
}

type sleepResponse struct {
	Sleep []struct {
		MinutesAsleep any `json:"minutesAsleep"`
		Duration      any `json:"duration"`
		Efficiency    any `json:"efficiency"`
	} `json:"sleep"`
}

type profileResponse struct {
	User struct {
		DisplayName string `json:"displayName"`
		Age         any    `json:"age"`
		Weight      any    `json:"weight"`
		Height      any    `json:"height"`
	} `json:"user"`
}

type activityResponse struct {
	Summary struct {
		Steps       any `json:"steps"`
		CaloriesOut any `json:"caloriesOut"`
		Distances   []struct {
			Activity string `json:"activity"`
			Distance any    `json:"distance"`
		} `json:"distances"`
		FairlyActiveMinutes any `json:"fairlyActiveMinutes"`
		VeryActiveMinutes   any `json:"veryActiveMinutes"`
	} `json:"summary"`
}

type heartResponse struct {
	ActivitiesHeart []struct {
		Value struct {
			RestingHeartRate any             `json:"restingHeartRate"`
			HeartRateZones   []HeartRateZone `json:"heartRateZones"`
		} `json:"value"`
	} `json:"activities-heart"`
}

type foodResponse struct {
	Summary struct {
		Calories      any `json:"calories"`
		Protein       any `json:"protein"`
		Carbohydrates any `json:"carbohydrates"`
		Fat           any `json:"fat"`
		Nutrients     struct {
			Protein       any `json:"protein"`
			Carbohydrates any `json:"carbohydrates"`
			Fat           any `json:"fat"`
		} `json:"nutrients"`
	} `json:"summary"`
}

type waterResponse struct {
	Summary struct {
		Water any `json:"water"`
	} `json:"summary"`
}

// Fetch queries all six data categories and returns whatever was
// observable. The returned snapshot is never nil.
func (c *Client) Fetch(ctx context.Context, accessToken string) *Metrics {
	metrics := &Metrics{}
	today := c.now().Format("2006-01-02")

	c.fetchSleep(ctx, accessToken, metrics)
	c.fetchProfile(ctx, accessToken, metrics)
	c.fetchActivity(ctx, accessToken, today, metrics)
	c.fetchHeart(ctx, accessToken, today, metrics)
	c.fetchFood(ctx, accessToken, today, metrics)
	c.fetchWater(ctx, accessToken, today, metrics)

	if metrics.Empty() {
		log.Info().Msg("no wearable data observed for any category")
	}

	return metrics
}

// fetchSleep sums per-session minutes asleep for today, retrying the
// previous day when today has no data, and stops at the first day with
// a positive total.
func (c *Client) fetchSleep(ctx context.Context, token string, m *Metrics) {
	days := []time.Time{c.now(), c.now().AddDate(0, 0, -1)}

	for _, day := range days {
		var body sleepResponse

		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetResult(&body).
			Get(fmt.Sprintf("/1.2/user/-/sleep/date/%s.json", day.Format("2006-01-02")))

		if err != nil || resp.IsError() {
			log.Warn().Err(err).Str("category", "sleep").Msg("wearable fetch failed")
			continue
		}

		totalMinutes := 0.0
		for _, session := range body.Sleep {
			if minutes, ok := toFloat(session.MinutesAsleep); ok && minutes > 0 {
				totalMinutes += minutes
			} else if durationMS, ok := toFloat(session.Duration); ok {
				totalMinutes += durationMS / 60000
			}
		}

		if totalMinutes > 0 {
			m.SleepHours = floatPtr(totalMinutes / 60)
			if eff, ok := toFloat(body.Sleep[0].Efficiency); ok {
				m.SleepEfficiency = floatPtr(eff)
			}
			return
		}
	}
}

func (c *Client) fetchProfile(ctx context.Context, token string, m *Metrics) {
	var body profileResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get("/1/user/-/profile.json")

	if err != nil || resp.IsError() {
		log.Warn().Err(err).Str("category", "profile").Msg("wearable fetch failed")
		return
	}

	if body.User.DisplayName != "" {
		m.Username = strPtr(body.User.DisplayName)
	}
	if age, ok := toInt(body.User.Age); ok && age > 0 {
		m.Age = intPtr(age)
	}
	if weight, ok := toFloat(body.User.Weight); ok && weight > 0 {
		m.Weight = floatPtr(weight)
	}
	if height, ok := toFloat(body.User.Height); ok && height > 0 {
		m.Height = floatPtr(height)
	}
}

func (c *Client) fetchActivity(ctx context.Context, token, date string, m *Metrics) {
	var body activityResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get(fmt.Sprintf("/1/user/-/activities/date/%s.json", date))

	if err != nil || resp.IsError() {
		log.Warn().Err(err).Str("category", "activity").Msg("wearable fetch failed")
		return
	}

	summary := body.Summary
	if steps, ok := toInt(summary.Steps); ok {
		m.Steps = intPtr(steps)
	}
	if calories, ok := toInt(summary.CaloriesOut); ok {
		m.CaloriesBurned = intPtr(calories)
	}

	// Prefer the "total" distance entry, falling back to the first.
	for _, d := range summary.Distances {
		if distance, ok := toFloat(d.Distance); ok {
			if d.Activity == "total" {
				m.Distance = floatPtr(distance)
				break
			}
			if m.Distance == nil {
				m.Distance = floatPtr(distance)
			}
		}
	}

	fairly, _ := toInt(summary.FairlyActiveMinutes)
	very, _ := toInt(summary.VeryActiveMinutes)
	m.ActiveMinutes = intPtr(fairly + very)
}

func (c *Client) fetchHeart(ctx context.Context, token, date string, m *Metrics) {
	var body heartResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get(fmt.Sprintf("/1/user/-/activities/heart/date/%s/1d.json", date))

	if err != nil || resp.IsError() {
		log.Warn().Err(err).Str("category", "heart").Msg("wearable fetch failed")
		return
	}

	if len(body.ActivitiesHeart) == 0 {
		return
	}

	value := body.ActivitiesHeart[0].Value
	if resting, ok := toInt(value.RestingHeartRate); ok && resting > 0 {
		m.RestingHeartRate = intPtr(resting)
	}
	if len(value.HeartRateZones) > 0 {
		m.HeartRateZones = value.HeartRateZones
	}
}

func (c *Client) fetchFood(ctx context.Context, token, date string, m *Metrics) {
	var body foodResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get(fmt.Sprintf("/1/user/-/foods/log/date/%s.json", date))

	if err != nil || resp.IsError() {
		log.Warn().Err(err).Str("category", "food").Msg("wearable fetch failed")
		return
	}

	summary := body.Summary
	if calories, ok := toInt(summary.Calories); ok {
		m.CaloriesConsumed = intPtr(calories)
	}

	// Nutrient totals may live on the summary or under "nutrients".
	if protein, ok := firstFloat(summary.Protein, summary.Nutrients.Protein); ok {
		m.Protein = floatPtr(protein)
	}
	if carbs, ok := firstFloat(summary.Carbohydrates, summary.Nutrients.Carbohydrates); ok {
		m.Carbs = floatPtr(carbs)
	}
	if fat, ok := firstFloat(summary.Fat, summary.Nutrients.Fat); ok {
		m.Fat = floatPtr(fat)
	}
}

// fetchWater normalizes the summary water value: readings below 20 are
// treated as liters and converted to milliliters.
func (c *Client) fetchWater(ctx context.Context, token, date string, m *Metrics) {
	var body waterResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&body).
		Get(fmt.Sprintf("/1/user/-/foods/log/water/date/%s.json", date))

	if err != nil || resp.IsError() {
		log.Warn().Err(err).Str("category", "water").Msg("wearable fetch failed")
		return
	}

	if water, ok := toFloat(body.Summary.Water); ok {
		if water < 20 {
			m.WaterML = intPtr(int(water * 1000))
		} else {
			m.WaterML = intPtr(int(water))
		}
	}
}

func firstFloat(values ...any) (float64, bool) {
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}
