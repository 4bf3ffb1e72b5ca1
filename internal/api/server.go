package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	"github.com/orgball2608/ephemeral-feed/pkg/config"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Feed     FeedService
	Settings SettingsStore
	Media    media.Store
	Logger   logger.Logger
	Config   *config.Config
}

// Server is the local HTTP surface the UI shell drives the feed engine through.
type Server struct {
	App    *fiber.App
	logger logger.Logger
	port   int
}

func NewServer(opts Opts) *Server {
	log := opts.Logger.WithComponent("API")

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		BodyLimit:             int(opts.Config.Media.MaxVideoBytes) + 1<<20,
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))

	RegisterRoutes(app, opts.Feed, opts.Settings, opts.Media)

	return &Server{
		App:    app,
		logger: log,
		port:   opts.Config.App.Port,
	}
}

func requestLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start).String(),
		)
		return err
	}
}

func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info(fmt.Sprintf("Starting server on %s", addr))

	go func() {
		if err := s.App.Listen(addr); err != nil {
			s.logger.Error("Server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}

var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(ctx)
		},
	})
}
