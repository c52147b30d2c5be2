// Package server exposes the orchestration pipeline over HTTP. Every
// endpoint speaks JSON; pipeline errors are translated into stable error
// bodies so callers never see raw vendor failures.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/codemarcinu/ageny/internal/config"
	"github.com/codemarcinu/ageny/llmrouter"
	"github.com/codemarcinu/ageny/tutor"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	idleTimeout         = 120 * time.Second
	pingTimeout         = 5 * time.Second

	// statusClientClosedRequest is the non-standard nginx code for a caller
	// that went away before the pipeline finished.
	statusClientClosedRequest = 499
)

// RecordStore is the durable view of cost records. The SQLite ledger
// implements it; when absent the in-memory tracker serves record reads.
type RecordStore interface {
	Recent(ctx context.Context, limit int) ([]llmrouter.CostRecord, error)
}

// Server wires the router client, the tutor machine, and the cost surfaces
// behind an echo application.
type Server struct {
	cfg     config.Config
	client  *llmrouter.Client
	tutor   *tutor.Machine
	records RecordStore
	logger  *log.Logger
	app     *echo.Echo
	cron    *cron.Cron
	address string
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithRecordStore attaches a durable cost record source. Without it the
// records endpoint reads from the in-memory tracker.
func WithRecordStore(rs RecordStore) Option {
	return func(s *Server) { s.records = rs }
}

// WithLogger sets the server logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, client *llmrouter.Client, machine *tutor.Machine, opts ...Option) (*Server, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	if client.Tracker() == nil {
		return nil, errors.New("client must carry a cost tracker")
	}
	if machine == nil {
		return nil, errors.New("tutor machine must not be nil")
	}

	srv := &Server{
		cfg:     cfg,
		client:  client,
		tutor:   machine,
		logger:  log.New(io.Discard),
		address: cfg.Server.Addr(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apiErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			srv.logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	srv.app = e

	srv.cron = cron.New()
	if _, err := srv.cron.AddFunc("@daily", srv.logSpendSummary); err != nil {
		return nil, fmt.Errorf("scheduling spend summary: %w", err)
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.address)

	s.cron.Start()
	defer s.cron.Stop()

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  s.cfg.Server.ReadTimeout(),
		WriteTimeout: s.cfg.Server.WriteTimeout(),
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// logSpendSummary runs on the @daily schedule and reports the tracker state.
func (s *Server) logSpendSummary() {
	summary := s.client.Tracker().Summary()
	s.logger.Info("daily spend summary",
		"month", summary.Month,
		"month_spend", summary.MonthSpend,
		"total_cost", summary.TotalCost,
		"total_tokens", summary.TotalTokens,
		"over_budget", summary.OverBudget,
	)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status   int
	Message  string
	Type     string
	Code     string
	Attempts []llmrouter.Attempt
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message  string              `json:"message"`
		Type     string              `json:"type"`
		Code     string              `json:"code,omitempty"`
		Attempts []llmrouter.Attempt `json:"attempts,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, reqErr requestError) error {
	var payload errorBody
	payload.Error.Message = reqErr.Message
	payload.Error.Type = reqErr.Type
	payload.Error.Code = reqErr.Code
	payload.Error.Attempts = reqErr.Attempts
	return c.JSON(reqErr.Status, payload)
}

func apiErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr)
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, requestError{
			Status:  echoErr.Code,
			Message: fmt.Sprintf("%v", echoErr.Message),
			Type:    "invalid_request_error",
		})
		return
	}

	_ = writeError(c, requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	})
}

// toHTTPError maps the pipeline taxonomy onto HTTP statuses. Validation
// failures are the caller's fault, configuration gaps mean the deployment
// cannot serve the capability, exhaustion reports every attempt in priority
// order, and budget stops ask the caller to back off.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var (
		validation *llmrouter.ProviderValidationError
		budget     *llmrouter.BudgetExceededError
		configErr  *llmrouter.ConfigurationError
		exhausted  *llmrouter.AllProvidersFailedError
		abort      *llmrouter.AbortError
	)
	switch {
	case errors.As(err, &validation):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: validation.Error(),
			Type:    "invalid_request_error",
		}
	case errors.As(err, &budget):
		return requestError{
			Status:  http.StatusTooManyRequests,
			Message: budget.Error(),
			Type:    "budget_exceeded",
		}
	case errors.As(err, &configErr):
		return requestError{
			Status:  http.StatusServiceUnavailable,
			Message: configErr.Error(),
			Type:    "configuration_error",
		}
	case errors.As(err, &exhausted):
		return requestError{
			Status:   http.StatusBadGateway,
			Message:  exhausted.Error(),
			Type:     "all_providers_failed",
			Attempts: exhausted.Attempts,
		}
	case errors.As(err, &abort):
		return requestError{
			Status:  statusClientClosedRequest,
			Message: abort.Error(),
			Type:    "request_aborted",
		}
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	}
}
