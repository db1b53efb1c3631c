package server

import (
	"context"
	"time"

	"second-brain/internal/bootstrap"
	"second-brain/internal/controller"
	"second-brain/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	app       *fiber.App
	container *bootstrap.Container
}

func New(container *bootstrap.Container) *Server {
	cfg := container.Config

	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024, // 1MB, prompts only
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger, controller.ErrorMappings()...))

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse[any]("ok", nil))
	})

	registerRoutes(app, container)

	return &Server{
		app:       app,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	addr := ":" + s.container.Config.App.Port
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	s.container.Logger.Info("Server", "listening", map[string]interface{}{"addr": addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.container.Logger.Info("Server", "shutting down", nil)
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	}
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")
	auth := serverutils.NewJwtMiddleware(c.Config.App.JwtSecret)

	c.JournalController.RegisterRoutes(api, auth)
	c.ChatbotController.RegisterRoutes(api, auth)
}
