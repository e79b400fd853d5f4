package status

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/health"
	"github.com/p-blackswan/autodev/internal/metrics"
)

// Server serves health, metrics and session state.
type Server struct {
	app    *fiber.App
	addr   string
	ln     net.Listener
	logger zerolog.Logger
}

// NewServer builds the Fiber app. A nil checker reports ready; nil metrics
// serve an empty registry.
func NewServer(addr string, tracker *Tracker, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "status_server").Logger()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		if checker == nil {
			return c.JSON(fiber.Map{"status": "ready"})
		}
		results := checker.RunAll(c.UserContext())
		if !health.Ready(results) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	})

	if m == nil {
		m = metrics.New()
	}
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := app.Group("/api/v1")
	v1.Get("/session", func(c *fiber.Ctx) error {
		if tracker == nil {
			return fiber.NewError(fiber.StatusNotFound, "no session")
		}
		return c.JSON(tracker.View())
	})

	return &Server{app: app, addr: addr, logger: logger}
}

// Listen binds the server address so a taken port is reported before any
// work starts. Run calls it when it has not been called.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("status server starting")
		errCh <- s.app.Listener(s.ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("status server shutting down")
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
