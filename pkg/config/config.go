package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	History    HistoryConfig    `mapstructure:"history"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Descope    DescopeConfig    `mapstructure:"descope"`
	Fitbit     FitbitConfig     `mapstructure:"fitbit"`
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

// RedisConfig configures the optional Redis backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HistoryConfig configures the chat history store.
type HistoryConfig struct {
	// Backend is "memory" or "redis".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	// MaxTurns caps the retained history per user.
	MaxTurns int `mapstructure:"max_turns"`
}

// OpenAIConfig configures the LLM provider endpoint.
type OpenAIConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	ClassifierModel     string        `mapstructure:"classifier_model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	AgentTemperature    float64       `mapstructure:"agent_temperature"`
	ClassifyTemperature float64       `mapstructure:"classify_temperature"`
}

// DescopeConfig configures the session/scope verification service.
type DescopeConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	ProjectID string        `mapstructure:"project_id"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// FitbitConfig configures the wearable API and its OAuth exchange.
type FitbitConfig struct {
	APIBaseURL   string        `mapstructure:"api_base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURI  string        `mapstructure:"redirect_uri"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SupabaseConfig configures the exercise catalog row store.
type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	ServiceRoleKey string        `mapstructure:"service_role_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig configures metrics and logging.
type MonitoringConfig struct {
	Prometheus struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"prometheus"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// Load reads configuration from an optional YAML file plus environment
// variables, falling back to defaults for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FITFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// History defaults
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.ttl", "24h")
	v.SetDefault("history.max_turns", 15)

	// OpenAI defaults
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.classifier_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", "60s")
	v.SetDefault("openai.agent_temperature", 0.7)
	v.SetDefault("openai.classify_temperature", 0.0)

	// Descope defaults
	v.SetDefault("descope.base_url", "https://api.descope.com")
	v.SetDefault("descope.timeout", "10s")

	// Fitbit defaults
	v.SetDefault("fitbit.api_base_url", "https://api.fitbit.com")
	v.SetDefault("fitbit.timeout", "10s")

	// Supabase defaults
	v.SetDefault("supabase.timeout", "10s")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.History.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid history backend: %q", c.History.Backend)
	}

	if c.History.MaxTurns < 1 {
		return fmt.Errorf("history.max_turns must be positive, got %d", c.History.MaxTurns)
	}

	return nil
}
