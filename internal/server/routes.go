package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/reload-emote-sentiments", s.handleReloadSentiments)

	// Dashboard WebSocket
	s.echo.GET("/ws/:channel", s.handleWebSocket)
}
