// Package server exposes the HTTP API and the dashboard WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/broadcast"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/catalog"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/config"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/emotes"
	apperrors "github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/errors"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/session"
)

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	hub        *broadcast.Hub
	supervisor *session.Supervisor
	catalog    *catalog.Catalog
	directory  *emotes.Directory
	limits     *ConnectionLimits
	upgrader   websocket.Upgrader
	startTime  time.Time
}

func NewServer(cfg *config.Config, hub *broadcast.Hub, supervisor *session.Supervisor, cat *catalog.Catalog, directory *emotes.Directory) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	e.HTTPErrorHandler = errorHandler

	srv := &Server{
		echo:       e,
		config:     cfg,
		hub:        hub,
		supervisor: supervisor,
		catalog:    cat,
		directory:  directory,
		limits:     NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
		upgrader:   newUpgrader(cfg.AllowedOrigins),
		startTime:  time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorHandler maps structured errors onto HTTP responses. Echo's own errors
// (404, method not allowed) pass through untouched.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if httpErr, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(httpErr.Code, map[string]any{"error": fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	structured := apperrors.AsStructuredError(err)
	if structured.Type == apperrors.TypeInternal {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}
	_ = c.JSON(structured.HTTPStatus(), structured.ToResponse())
}
