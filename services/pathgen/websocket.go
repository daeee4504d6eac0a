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
	"context"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket actions.
const (
	ActionSessionCreated = "session_created"
	ActionGenerate       = "generate"
	ActionProgress       = "progress"
	ActionResult         = "result"
	ActionError          = "error"
)

// WSRequest is a client frame.
type WSRequest struct {
	Action  string         `json:"action"`
	Request engine.Request `json:"request"`
}

// WSResponse is a server frame. Exactly one of Progress, Path or Error is
// set, depending on Action.
type WSResponse struct {
	Action    string           `json:"action"`
	SessionID string           `json:"session_id,omitempty"`
	Progress  *engine.Progress `json:"progress,omitempty"`
	Path      *engine.Path     `json:"path,omitempty"`
	Error     string           `json:"error,omitempty"`
	Code      string           `json:"code,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket handles GET /v1/pathforge/ws.
//
// # Description
//
// Each "generate" frame starts an async generation. The server streams a
// "progress" frame per checkpoint followed by one "result" frame. A
// generate frame arriving while another generation runs on the engine is
// answered with an "error" frame (code GENERATION_IN_FLIGHT); the
// connection stays open.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	sessionID := uuid.NewString()
	logger := h.logger.With("session_id", sessionID)
	logger.Info("websocket session started")

	if err := sendJSON(ws, logger, WSResponse{Action: ActionSessionCreated, SessionID: sessionID}); err != nil {
		return
	}

	for {
		var req WSRequest
		if err := ws.ReadJSON(&req); err != nil {
			logger.Info("websocket client disconnected", "error", err.Error())
			return
		}
		if req.Action != ActionGenerate {
			if err := sendJSON(ws, logger, WSResponse{
				Action: ActionError, Error: "unknown action " + req.Action, Code: "INVALID_ACTION",
			}); err != nil {
				return
			}
			continue
		}
		if err := h.streamGeneration(c.Request.Context(), ws, logger, req.Request); err != nil {
			return
		}
	}
}

// streamGeneration runs one async generation and writes its frames. Only
// a write failure is returned.
func (h *Handlers) streamGeneration(ctx context.Context, ws *websocket.Conn, logger *slog.Logger, req engine.Request) error {
	// Four checkpoints per run; the buffer keeps the engine goroutine from
	// ever blocking on a slow client.
	progress := make(chan engine.Progress, 8)
	task, err := h.svc.GenerateAsync(ctx, req, func(p engine.Progress) {
		progress <- p
	})
	if err != nil {
		_, code := classify(err)
		return sendJSON(ws, logger, WSResponse{Action: ActionError, Error: err.Error(), Code: code})
	}

	for {
		select {
		case p := <-progress:
			if err := sendJSON(ws, logger, WSResponse{Action: ActionProgress, Progress: &p}); err != nil {
				return err
			}
		case <-task.Done():
			for drained := false; !drained; {
				select {
				case p := <-progress:
					if err := sendJSON(ws, logger, WSResponse{Action: ActionProgress, Progress: &p}); err != nil {
						return err
					}
				default:
					drained = true
				}
			}
			path, _, genErr := task.Result()
			resp := WSResponse{Action: ActionResult, Path: path}
			if genErr != nil {
				resp.Error = genErr.Error()
				_, resp.Code = classify(genErr)
			}
			return sendJSON(ws, logger, resp)
		}
	}
}

func sendJSON(ws *websocket.Conn, logger *slog.Logger, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		logger.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}
