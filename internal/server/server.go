// Package server hosts the JSON API on Fiber.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

// Routes is implemented by modules that expose API endpoints.
type Routes interface {
	RegisterRoutes(api fiber.Router)
}

// Config holds server settings.
type Config struct {
	AppName      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the Fiber application.
type Server struct {
	app *fiber.App
	api fiber.Router
	cfg Config
	log logger.LoggerInterface
}

// New builds the application with recovery, request ids, access logging and
// AppError rendering. Routes are mounted under /api/v1.
func New(cfg Config, log logger.LoggerInterface) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(RequestID())
	app.Use(AccessLog(log))

	s := &Server{app: app, cfg: cfg, log: log}
	s.api = app.Group("/api/v1")

	s.api.Get("/ping", ping)
	s.api.Get("/health", ping)

	return s
}

func ping(c *fiber.Ctx) error {
	reqID, _ := c.Locals(requestIDHeader).(string)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     "ok",
		"request_id": reqID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Mount registers the routes of each module.
func (s *Server) Mount(routes ...Routes) {
	for _, r := range routes {
		r.RegisterRoutes(s.api)
	}
}

// App exposes the Fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "api server listening", "port", s.cfg.Port)
		errCh <- s.app.Listen(":" + strconv.Itoa(s.cfg.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

// errorHandler renders AppErrors as their JSON envelope with the mapped
// status; Fiber errors keep their own status.
func errorHandler(log logger.LoggerInterface) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr, ok := apperror.As(err); ok {
			if appErr.StatusCode >= http.StatusInternalServerError {
				log.Error(c.UserContext(), "request failed", "path", c.Path(), "error", appErr)
			}
			return c.Status(appErr.StatusCode).JSON(appErr.ToResponse(c.UserContext()))
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fiber.Map{"message": fe.Message}})
		}

		log.Error(c.UserContext(), "unhandled request error", "path", c.Path(), "error", err)
		internal := apperror.New(apperror.CodeInternalError, apperror.WithCause(err))
		return c.Status(internal.StatusCode).JSON(internal.ToResponse(c.UserContext()))
	}
}
