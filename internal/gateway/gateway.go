package gateway

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/fitforge/internal/agents"
	"github.com/fitforge/fitforge/internal/catalog"
	"github.com/fitforge/fitforge/internal/wearable"
	"github.com/fitforge/fitforge/pkg/auth"
	"github.com/fitforge/fitforge/pkg/config"
	"github.com/fitforge/fitforge/pkg/middleware"
)

// Gateway is the HTTP surface in front of the agent orchestrator.
type Gateway struct {
	config       *config.Config
	app          *fiber.App
	orchestrator *agents.Orchestrator
	verifier     auth.Verifier
	exchanger    wearable.OAuthExchanger
	catalog      catalog.Catalog
}

// New creates the gateway and wires its middlewares and routes.
func New(cfg *config.Config, orch *agents.Orchestrator, verifier auth.Verifier, exchanger wearable.OAuthExchanger, cat catalog.Catalog) *Gateway {
	app := fiber.New(fiber.Config{
		AppName:      "FitForge Gateway",
		ServerHeader: "FitForge/1.0",
		ErrorHandler: errorHandler,
	})

	gw := &Gateway{
		config:       cfg,
		app:          app,
		orchestrator: orch,
		verifier:     verifier,
		exchanger:    exchanger,
		catalog:      cat,
	}

	gw.setupMiddlewares()
	gw.setupRoutes()

	return gw
}

// errorHandler shapes unhandled errors into the gateway's JSON form.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}

func (g *Gateway) setupMiddlewares() {
	// Recovery first so it catches panics from everything below.
	g.app.Use(middleware.Recovery())
	g.app.Use(middleware.RequestID())
	cors := middleware.DefaultCORSConfig()
	if len(g.config.Server.CORS.AllowedOrigins) > 0 {
		cors.AllowedOrigins = g.config.Server.CORS.AllowedOrigins
	}
	g.app.Use(middleware.CORS(cors))
	g.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/health"},
	}))
	g.app.Use(middleware.Metrics(middleware.MetricsConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))
}

func (g *Gateway) setupRoutes() {
	g.app.Get("/", g.handleRoot)
	g.app.Get("/health", g.handleHealth)

	if g.config.Monitoring.Prometheus.Enabled {
		g.app.Get("/metrics", middleware.PrometheusHandler())
	}

	g.app.Post("/agent_query", g.handleAgentQuery)
	g.app.Post("/clear_chat", g.handleClearChat)
	g.app.Get("/exercises", g.handleExercises)

	authGroup := g.app.Group("/api/auth")
	authGroup.Post("/verify/fitbit/callback", g.handleFitbitCallback)
}

// Start begins serving on the configured address.
func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	log.Info().Str("addr", addr).Msg("gateway listening")
	return g.app.Listen(addr)
}

// Shutdown drains the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if err := g.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	log.Info().Msg("gateway shutdown completed")
	return nil
}

// App exposes the fiber app for tests.
func (g *Gateway) App() *fiber.App {
	return g.app
}
