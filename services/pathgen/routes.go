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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers all path service routes with the router.
//
// Description:
//
//	Registers all /v1/pathforge/* endpoints with the given Gin router group.
//
// Endpoints:
//
//	GET  /v1/pathforge/health - Health check
//	POST /v1/pathforge/generate - Ad-hoc generation
//	GET  /v1/pathforge/levels - Level table
//	GET  /v1/pathforge/levels/:id/path - Current path (generated on demand)
//	POST /v1/pathforge/levels/:id/regenerate - Event-driven regeneration
//	GET  /v1/pathforge/levels/:id/history - Superseded paths
//	GET  /v1/pathforge/levels/:id/preview - Theme × mode candidates
//	GET  /v1/pathforge/diagnostics - Engine diagnostics
//	POST /v1/pathforge/diagnostics/reset - Clear diagnostics
//	GET  /v1/pathforge/ws - Async generation with progress frames
//
// Example:
//
//	handlers := pathgen.NewHandlers(svc, logger)
//	v1 := router.Group("/v1")
//	pathgen.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	pf := rg.Group("/pathforge")
	{
		pf.GET("/health", handlers.HandleHealth)
		pf.POST("/generate", handlers.HandleGenerate)

		lv := pf.Group("/levels")
		{
			lv.GET("", handlers.HandleLevels)
			lv.GET("/:id/path", handlers.HandleCurrentPath)
			lv.POST("/:id/regenerate", handlers.HandleRegenerate)
			lv.GET("/:id/history", handlers.HandleHistory)
			lv.GET("/:id/preview", handlers.HandlePreview)
		}

		pf.GET("/diagnostics", handlers.HandleDiagnostics)
		pf.POST("/diagnostics/reset", handlers.HandleResetDiagnostics)

		pf.GET("/ws", handlers.HandleWebSocket)
	}
}

// NewRouter builds the complete HTTP router: recovery, tracing middleware,
// the /v1/pathforge routes and a Prometheus /metrics endpoint.
func NewRouter(svc *Service, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pathforge"))

	RegisterRoutes(router.Group("/v1"), NewHandlers(svc, logger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
