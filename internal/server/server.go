// Package server exposes the on-demand sync trigger over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gologme/log"
	"golang.org/x/time/rate"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/sync"
)

// Queries are the read-only store lookups served alongside the trigger.
type Queries interface {
	ListProposals(ctx context.Context, requestID string) ([]model.Proposal, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// Options tunes the server.
type Options struct {
	// SyncPerMinute caps sync triggers across all clients. Zero disables
	// the limit.
	SyncPerMinute int

	// AccessLog receives one line per request. Nil disables access logs.
	AccessLog io.Writer

	Logger *log.Logger
}

// Server is the HTTP surface.
type Server struct {
	app     *fiber.App
	runner  sync.Runner
	queries Queries
	limiter *rate.Limiter
	log     *log.Logger
}

// New builds the routes. queries may be nil, in which case the listing
// routes are not registered.
func New(runner sync.Runner, queries Queries, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	s := &Server{runner: runner, queries: queries, log: opts.Logger}
	if opts.SyncPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.SyncPerMinute)), opts.SyncPerMinute)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				s.log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Post("/rfps/sync", s.handleSync)
	if queries != nil {
		api.Get("/rfps/:id/proposals", s.handleProposals)
		api.Get("/sync/runs", s.handleRuns)
	}

	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleSync runs one ingestion run and returns its summary. Skipped and
// failed runs are still 200; the status field carries the outcome.
func (s *Server) handleSync(c *fiber.Ctx) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "sync rate limit exceeded, try again later",
		})
	}

	summary := s.runner.Run(c.UserContext())
	return c.JSON(summary)
}

func (s *Server) handleProposals(c *fiber.Ctx) error {
	proposals, err := s.queries.ListProposals(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	return c.JSON(proposals)
}

func (s *Server) handleRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 500 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	runs, err := s.queries.ListRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	return c.JSON(runs)
}
