// Package opsserver serves health and Prometheus metrics for a running bridge.
package opsserver

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wagiedev/workerbridge/internal/supervisor"
)

// Status reports bridge health.
type Status interface {
	State() supervisor.State
	Pending() int
}

// Server provides /health and /metrics.
type Server struct {
	echo   *echo.Echo
	status Status
	log    *slog.Logger
	addr   string
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Pending int    `json:"pending"`
}

// New creates an ops server listening on addr. Metrics are served from
// gatherer; a nil gatherer uses the default Prometheus registry.
func New(status Status, gatherer prometheus.Gatherer, log *slog.Logger, addr string) (*Server, error) {
	if status == nil {
		return nil, fmt.Errorf("status cannot be nil")
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	log = log.With("component", "opsserver")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Debug("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		status: status,
		log:    log,
		addr:   addr,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s, nil
}

// handleHealth reports 200 while a worker is ready and 503 otherwise.
func (s *Server) handleHealth(c echo.Context) error {
	state := s.status.State()

	resp := HealthResponse{
		Status:  "ok",
		State:   state.String(),
		Pending: s.status.Pending(),
	}

	code := http.StatusOK
	if state != supervisor.StateReady {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, resp)
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("starting ops server", "addr", s.addr)

	if err := s.echo.Start(s.addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down ops server")

	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}
