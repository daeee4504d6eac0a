// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pathgen

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RegenerateRequest is the body of POST /levels/:id/regenerate.
type RegenerateRequest struct {
	Trigger string       `json:"trigger"`
	Seed    sampler.Seed `json:"seed"`
}

// GenerateResponse wraps a path. Error is set only in strict mode, when a
// critical failure happened and the minimal fallback path is attached.
type GenerateResponse struct {
	Path  *engine.Path `json:"path"`
	Error string       `json:"error,omitempty"`
}

// HistoryResponse is the body of GET /levels/:id/history.
type HistoryResponse struct {
	LevelID int            `json:"level_id"`
	Paths   []*engine.Path `json:"paths"`
}

// LevelsResponse is the body of GET /levels.
type LevelsResponse struct {
	Levels []levels.LevelConfig `json:"levels"`
}

// Handlers contains the HTTP handlers for the path service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{svc: svc, logger: logger.With(slog.String("component", "http"))}
}

// HandleHealth handles GET /v1/pathforge/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleGenerate handles POST /v1/pathforge/generate.
//
// Request Body:
//
//	engine.Request
//
// Response:
//
//	200 OK: GenerateResponse (fallback paths included; see metadata.fallback_tier)
//	400 Bad Request: body is not valid JSON
//	500 Internal Server Error: strict-mode critical failure
func (h *Handlers) HandleGenerate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGenerate")

	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	p, err := h.svc.Generate(c.Request.Context(), req)
	h.respondPath(c, logger, p, err)
}

// HandleCurrentPath handles GET /v1/pathforge/levels/:id/path.
//
// Response:
//
//	200 OK: GenerateResponse
//	400 Bad Request: id is not an integer
//	404 Not Found: unknown level
func (h *Handlers) HandleCurrentPath(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCurrentPath")

	id, ok := levelParam(c)
	if !ok {
		return
	}
	p, err := h.svc.CurrentPath(c.Request.Context(), id)
	h.respondPath(c, logger, p, err)
}

// HandleRegenerate handles POST /v1/pathforge/levels/:id/regenerate.
//
// Response:
//
//	200 OK: GenerateResponse
//	404 Not Found: unknown level
//	429 Too Many Requests: regeneration budget for the level spent
func (h *Handlers) HandleRegenerate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRegenerate")

	id, ok := levelParam(c)
	if !ok {
		return
	}
	var req RegenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}
	p, err := h.svc.Regenerate(c.Request.Context(), id, req.Trigger, req.Seed)
	h.respondPath(c, logger, p, err)
}

// HandleHistory handles GET /v1/pathforge/levels/:id/history?limit=N.
func (h *Handlers) HandleHistory(c *gin.Context) {
	id, ok := levelParam(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer", Code: "INVALID_LIMIT"})
		return
	}
	paths, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("History failed", "level_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "ARCHIVE_FAILED"})
		return
	}
	if paths == nil {
		paths = []*engine.Path{}
	}
	c.JSON(http.StatusOK, HistoryResponse{LevelID: id, Paths: paths})
}

// HandlePreview handles GET /v1/pathforge/levels/:id/preview.
//
// Query Parameters:
//
//	themes: comma separated theme names (optional, default all)
//	modes: comma separated path modes (optional, default all)
//	seed: integer seed (optional, default the level id)
func (h *Handlers) HandlePreview(c *gin.Context) {
	id, ok := levelParam(c)
	if !ok {
		return
	}
	opts := engine.PreviewOptions{Themes: splitList(c.Query("themes"))}
	for _, m := range splitList(c.Query("modes")) {
		mode := engine.PathMode(m)
		if !mode.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown path mode " + m, Code: "INVALID_MODE"})
			return
		}
		opts.Modes = append(opts.Modes, mode)
	}
	if raw := c.Query("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "seed must be an integer", Code: "INVALID_SEED"})
			return
		}
		opts.Seed = sampler.SeedOf(v)
	}

	cands, err := h.svc.Preview(c.Request.Context(), id, opts)
	if err != nil {
		status, code := classify(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, cands)
}

// HandleLevels handles GET /v1/pathforge/levels.
func (h *Handlers) HandleLevels(c *gin.Context) {
	ids := h.svc.Levels()
	out := make([]levels.LevelConfig, 0, len(ids))
	for _, id := range ids {
		if l, ok := h.svc.Level(id); ok {
			out = append(out, l)
		}
	}
	c.JSON(http.StatusOK, LevelsResponse{Levels: out})
}

// HandleDiagnostics handles GET /v1/pathforge/diagnostics.
func (h *Handlers) HandleDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Diagnostics())
}

// HandleResetDiagnostics handles POST /v1/pathforge/diagnostics/reset.
func (h *Handlers) HandleResetDiagnostics(c *gin.Context) {
	h.svc.ResetDiagnostics()
	c.Status(http.StatusNoContent)
}

func (h *Handlers) respondPath(c *gin.Context, logger *slog.Logger, p *engine.Path, err error) {
	if err != nil {
		status, code := classify(err)
		logger.Warn("Generation request failed", "error", err, "code", code)
		if p != nil {
			c.JSON(status, GenerateResponse{Path: p, Error: err.Error()})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Path: p})
}

// classify maps service errors to HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, levels.ErrLevelNotFound):
		return http.StatusNotFound, "LEVEL_NOT_FOUND"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, engine.ErrGenerationInFlight):
		return http.StatusConflict, "GENERATION_IN_FLIGHT"
	default:
		return http.StatusInternalServerError, "GENERATION_FAILED"
	}
}

func levelParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "level id must be a positive integer", Code: "INVALID_LEVEL"})
		return 0, false
	}
	return id, true
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
