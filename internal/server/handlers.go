package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codemarcinu/ageny/llmrouter"
)

const (
	maxBatchSize       = 64
	defaultRecordLimit = 50
	maxRecordLimit     = 500
)

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/chat", s.handleChat)
	s.app.POST("/v1/chat/batch", s.handleChatBatch)
	s.app.POST("/v1/embeddings", s.handleEmbeddings)
	s.app.GET("/v1/providers", s.handleProviders)
	s.app.GET("/v1/costs", s.handleCosts)
	s.app.GET("/v1/costs/records", s.handleCostRecords)
	s.app.POST("/v1/tutor/reset", s.handleTutorReset)
}

// handleHealth answers liveness probes. The plain form lists configured
// provider names; ?deep=true additionally pings every configured provider
// that supports a cheap reachability check.
func (s *Server) handleHealth(c echo.Context) error {
	if c.QueryParam("deep") != "true" {
		configured := []string{}
		for _, desc := range s.client.Registry().Descriptors() {
			if desc.Configured {
				configured = append(configured, desc.Name)
			}
		}
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "providers": configured})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	status := http.StatusOK
	probes := map[string]string{}
	registry := s.client.Registry()
	for _, desc := range registry.Descriptors() {
		if !desc.Configured {
			probes[desc.Name] = "unconfigured"
			continue
		}
		adapter, ok := registry.Adapter(desc.Name)
		if !ok {
			continue
		}
		pinger, ok := adapter.(llmrouter.Pinger)
		if !ok {
			probes[desc.Name] = "skipped"
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			probes[desc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		probes[desc.Name] = "ok"
	}

	body := map[string]any{"status": "ok", "providers": probes}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	return c.JSON(status, body)
}

// handleChat serves single completions. With tutor_mode set the request runs
// through the coaching machine instead of the plain fallback loop.
func (s *Server) handleChat(c echo.Context) error {
	var req llmrouter.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.TutorMode {
		result, err := s.tutor.Turn(ctx, req)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, result.ChatResponse())
	}

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, llmrouter.ChatResponse{NormalizedResponse: *resp})
}

type batchChatRequest struct {
	Requests []llmrouter.ChatRequest `json:"requests"`
}

type batchChatEntry struct {
	Index    int                           `json:"index"`
	Response *llmrouter.NormalizedResponse `json:"response,omitempty"`
	Error    *entryError                   `json:"error,omitempty"`
}

type entryError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func entryErrorFor(err error) *entryError {
	var reqErr requestError
	if !errors.As(toHTTPError(err), &reqErr) {
		return &entryError{Message: err.Error(), Type: "server_error"}
	}
	return &entryError{Message: reqErr.Message, Type: reqErr.Type}
}

// handleChatBatch runs up to maxBatchSize completions concurrently. Results
// are positional: entry i always answers request i, and one entry failing
// never disturbs its neighbors.
func (s *Server) handleChatBatch(c echo.Context) error {
	var req batchChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Requests) == 0 {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "requests must not be empty",
			Type:    "invalid_request_error",
		}
	}
	if len(req.Requests) > maxBatchSize {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("batch size %d exceeds the limit of %d", len(req.Requests), maxBatchSize),
			Type:    "invalid_request_error",
		}
	}

	results := s.client.CompleteBatch(c.Request().Context(), req.Requests)
	entries := make([]batchChatEntry, len(results))
	for i, res := range results {
		entries[i] = batchChatEntry{Index: res.Index, Response: res.Response}
		if res.Err != nil {
			entries[i].Error = entryErrorFor(res.Err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"results": entries})
}

type embeddingsRequest struct {
	Text     string   `json:"text,omitempty"`
	Texts    []string `json:"texts,omitempty"`
	Model    string   `json:"model,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

type embedBatchEntry struct {
	Index    int                      `json:"index"`
	Response *llmrouter.EmbedResponse `json:"response,omitempty"`
	Error    *entryError              `json:"error,omitempty"`
}

// handleEmbeddings serves a single vector for "text" or a positional batch
// for "texts". The two fields are mutually exclusive.
func (s *Server) handleEmbeddings(c echo.Context) error {
	var req embeddingsRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	switch {
	case req.Text != "" && len(req.Texts) > 0:
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "text and texts are mutually exclusive",
			Type:    "invalid_request_error",
		}
	case req.Text == "" && len(req.Texts) == 0:
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "either text or texts is required",
			Type:    "invalid_request_error",
		}
	}

	ctx := c.Request().Context()
	if req.Text != "" {
		resp, err := s.client.Embed(ctx, llmrouter.EmbedRequest{
			Text:     req.Text,
			Model:    req.Model,
			Provider: req.Provider,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, resp)
	}

	if len(req.Texts) > maxBatchSize {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("batch size %d exceeds the limit of %d", len(req.Texts), maxBatchSize),
			Type:    "invalid_request_error",
		}
	}
	embedReqs := make([]llmrouter.EmbedRequest, len(req.Texts))
	for i, text := range req.Texts {
		embedReqs[i] = llmrouter.EmbedRequest{Text: text, Model: req.Model, Provider: req.Provider}
	}
	results := s.client.EmbedBatch(ctx, embedReqs)
	entries := make([]embedBatchEntry, len(results))
	for i, res := range results {
		entries[i] = embedBatchEntry{Index: res.Index, Response: res.Response}
		if res.Err != nil {
			entries[i].Error = entryErrorFor(res.Err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"results": entries})
}

// handleProviders lists every registered provider, configured or not.
func (s *Server) handleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"providers": s.client.Registry().Descriptors(),
	})
}

// handleCosts reports the tracker snapshot: running totals, per-provider
// breakdown, and the current month against the budget.
func (s *Server) handleCosts(c echo.Context) error {
	return c.JSON(http.StatusOK, s.client.Tracker().Summary())
}

// handleCostRecords returns recent cost records, newest first. The SQLite
// ledger serves reads when attached; otherwise the in-memory tracker does.
func (s *Server) handleCostRecords(c echo.Context) error {
	limit := defaultRecordLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "limit must be a positive integer",
				Type:    "invalid_request_error",
			}
		}
		if n > maxRecordLimit {
			n = maxRecordLimit
		}
		limit = n
	}

	if s.records != nil {
		recs, err := s.records.Recent(c.Request().Context(), limit)
		if err != nil {
			s.logger.Error("reading ledger records", "error", err)
			return requestError{
				Status:  http.StatusInternalServerError,
				Message: "cost ledger unavailable",
				Type:    "server_error",
			}
		}
		return c.JSON(http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
	}

	recs := s.client.Tracker().Records(limit)
	// The tracker hands back chronological order; reverse to newest first so
	// both sources present the same way.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return c.JSON(http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

type tutorResetRequest struct {
	ConversationID string `json:"conversation_id"`
}

// handleTutorReset discards a coaching conversation's collected state.
func (s *Server) handleTutorReset(c echo.Context) error {
	var req tutorResetRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "conversation_id is required",
			Type:    "invalid_request_error",
		}
	}
	reset := s.tutor.Reset(req.ConversationID)
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": req.ConversationID,
		"reset":           reset,
	})
}
