package server

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	apperrors "github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/errors"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// Twitch login names: 1-25 word characters.
var channelNamePattern = regexp.MustCompile(`^\w{1,25}$`)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

func (s *Server) handleWebSocket(c echo.Context) error {
	channel := domain.NormalizeChannel(c.Param("channel"))
	if !channelNamePattern.MatchString(channel) {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return apperrors.ValidationError("invalid channel name")
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "channel", channel, "ip", ip, "reason", reason)
		return apperrors.UnavailableError("connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	// Blocks until the channel's ingestion session is running. On failure the
	// hub has already delivered an error event and closed the connection.
	if err := s.hub.Subscribe(channel, conn); err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		slog.Warn("Subscriber activation failed", "channel", channel, "error", err)
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()

	// Read pump. The dashboard never sends application messages; reading
	// drives pong handling and detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unsubscribe(channel, conn)
	return nil
}
