package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	inthttp "github.com/tovald/pageflow/internal/http/handler"
	"github.com/tovald/pageflow/internal/http/middleware"
	"go.uber.org/zap"
)

// Tracking payloads are small; anything bigger than this is not a browser.
const bodyLimit = 32 * 1024

// Dependencies bundles what the HTTP server needs. Redis is optional: without
// it the rate limiter is skipped.
type Dependencies struct {
	Logger *zap.Logger
	Redis  *redis.Client
	Ingest inthttp.Ingestor

	// PublicEndpoint is baked into the served tracking snippet.
	PublicEndpoint string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() error {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS(inthttp.CacheHeader))

	if s.deps.Redis != nil {
		s.app.Use("/api/send", middleware.RateLimit(
			s.deps.Redis,
			middleware.DefaultRateLimitConfig(),
			s.deps.Logger,
		))
	}

	sendHandler := inthttp.NewSendHandler(inthttp.SendDeps{
		Logger: s.deps.Logger,
		Ingest: s.deps.Ingest,
	})
	sendHandler.Register(s.app)

	scriptHandler, err := inthttp.NewScriptHandler(inthttp.ScriptDeps{
		Logger:         s.deps.Logger,
		PublicEndpoint: s.deps.PublicEndpoint,
	})
	if err != nil {
		return err
	}
	scriptHandler.Register(s.app)

	return nil
}
