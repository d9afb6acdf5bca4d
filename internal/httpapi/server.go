// Package httpapi provides the HTTP API for finrag.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/llm"
)

// tokenBuffer bounds the answer token channel so a stalled client
// applies backpressure to generation instead of growing memory.
const tokenBuffer = 64

// Answerer runs the query pipeline, streaming answer tokens through fn.
type Answerer interface {
	AnswerStream(ctx context.Context, query string, fn llm.TokenFunc) string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the HTTP endpoints for finrag.
type Server struct {
	echo      *echo.Echo
	assistant Answerer
	logger    *zap.Logger
	config    *Config
	registry  *prometheus.Registry
}

// NewServer creates a new HTTP server.
func NewServer(assistant Answerer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if assistant == nil {
		return nil, fmt.Errorf("assistant cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(registry)
	e.Use(metrics.Middleware())

	s := &Server{
		echo:      e,
		assistant: assistant,
		logger:    logger,
		config:    cfg,
		registry:  registry,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.echo.POST("/query", s.handleQuery)
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleQuery runs the answer pipeline and streams the response body as
// plain text chunks, flushed per token.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	ctx := c.Request().Context()
	tokens := make(chan string, tokenBuffer)

	go func() {
		defer close(tokens)

		streamed := false
		response := s.assistant.AnswerStream(ctx, req.Query, func(token string) error {
			select {
			case tokens <- token:
				streamed = true
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		// Pipelines that never reach token generation (classification
		// errors, apologetic fallbacks) still produce a final response.
		if !streamed && response != "" {
			select {
			case tokens <- response:
			case <-ctx.Done():
			}
		}
	}()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	resp.WriteHeader(http.StatusOK)

	for token := range tokens {
		if _, err := resp.Write([]byte(token)); err != nil {
			s.logger.Debug("client disconnected mid-stream", zap.Error(err))
			// Drain so the generation goroutine can exit.
			for range tokens {
			}
			return nil
		}
		resp.Flush()
	}

	return nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
