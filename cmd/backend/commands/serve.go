package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fitforge/fitforge/internal/agents"
	"github.com/fitforge/fitforge/internal/catalog"
	"github.com/fitforge/fitforge/internal/gateway"
	"github.com/fitforge/fitforge/internal/history"
	"github.com/fitforge/fitforge/internal/providers/openai"
	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/fitforge/fitforge/pkg/config"
)

var (
	devMode bool
	verbose bool
)

// ServeCmd starts the FitForge gateway server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start FitForge gateway server",
	Long: `Start the FitForge gateway server.

This command starts the HTTP server that fronts the multi-agent
fitness assistant: intent classification, consent gating, scoped
agent invocation, and wearable metric integration.`,
	Example: `  # Start server with default settings
  fitforge serve

  # Start in development mode with verbose logging
  fitforge serve --dev --verbose

  # Start with custom config
  fitforge serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local .env overrides nothing already exported.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	setupLogger(verbose, devMode)

	log.Info().Msg("Starting FitForge Gateway")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("history_backend", cfg.History.Backend).
		Bool("dev_mode", devMode).
		Msg("Configuration loaded")

	store, err := buildHistoryStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}

	provider := openai.NewClient(openai.Config{
		Name:    "openai",
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Timeout: cfg.OpenAI.Timeout,
	})

	verifier := auth.NewDescopeVerifier(auth.DescopeConfig{
		BaseURL:   cfg.Descope.BaseURL,
		ProjectID: cfg.Descope.ProjectID,
		Timeout:   cfg.Descope.Timeout,
	})

	fetcher := wearable.NewClient(wearable.Config{
		BaseURL: cfg.Fitbit.APIBaseURL,
		Timeout: cfg.Fitbit.Timeout,
	})

	exchanger := wearable.NewOAuthClient(wearable.OAuthConfig{
		BaseURL:      cfg.Fitbit.APIBaseURL,
		ClientID:     cfg.Fitbit.ClientID,
		ClientSecret: cfg.Fitbit.ClientSecret,
		RedirectURI:  cfg.Fitbit.RedirectURI,
		Timeout:      cfg.Fitbit.Timeout,
	})

	var cat catalog.Catalog
	if cfg.Supabase.URL != "" {
		cat = catalog.NewClient(catalog.Config{
			URL:            cfg.Supabase.URL,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			Timeout:        cfg.Supabase.Timeout,
		})
	} else {
		log.Warn().Msg("Supabase not configured, exercise catalog disabled")
	}

	agentOpts := agents.Options{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.AgentTemperature,
	}

	trainer := agents.NewTrainerAgent(provider, verifier, agentOpts)
	nutrition := agents.NewNutritionAgent(provider, verifier, agentOpts)
	recovery := agents.NewRecoveryAgent(provider, verifier, fetcher, trainer, nutrition, agentOpts)

	classifier := agents.NewLLMClassifier(provider, agents.Options{
		Model:       cfg.OpenAI.ClassifierModel,
		Temperature: cfg.OpenAI.ClassifyTemperature,
	})

	orch := agents.NewOrchestrator(classifier, provider, store,
		[]agents.Agent{trainer, nutrition, recovery}, agentOpts)

	gw := gateway.New(cfg, orch, verifier, exchanger, cat)

	go func() {
		if err := gw.Start(); err != nil {
			log.Fatal().Err(err).Msg("Gateway failed to start")
		}
	}()

	log.Info().Msgf("Gateway running on http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Msgf("Health check: http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	if cfg.Monitoring.Prometheus.Enabled {
		log.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.Host, cfg.Server.Port)
	}
	log.Info().Msg("Press Ctrl+C to stop")

	return waitForShutdown(gw, store)
}

func buildHistoryStore(cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "redis":
		store, err := history.NewRedisStore(history.RedisConfig{
			Host:     cfg.Redis.Host,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.History.TTL,
			MaxTurns: cfg.History.MaxTurns,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.Redis.Host).Msg("History store: redis")
		return store, nil
	default:
		log.Info().Msg("History store: in-memory")
		return history.NewMemoryStore(cfg.History.MaxTurns), nil
	}
}

func waitForShutdown(gw *gateway.Gateway, store history.Store) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing history store")
		}
	}

	log.Info().Msg("FitForge Gateway stopped cleanly")
	return nil
}

func setupLogger(verbose, dev bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}
}
