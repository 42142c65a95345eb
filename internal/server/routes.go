package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Command surface (elevated)
	s.echo.POST("/api/zones/:id/enter", s.handleEnterZone, s.requireAdmin)
	s.echo.GET("/api/sessions", s.handleListSessions, s.requireAdmin)
	s.echo.POST("/api/admin/catalog/reload", s.handleCatalogReload, s.requireAdmin)

	// Host lifecycle webhooks (the simulation host calls these)
	s.echo.POST("/events/disconnect", s.handleDisconnect, s.requireAdmin)
	s.echo.POST("/events/reconnect", s.handleReconnect, s.requireAdmin)
}
