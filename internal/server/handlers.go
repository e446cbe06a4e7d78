package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Twitch Chat Analyzer Backend is running",
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	channels := s.supervisor.ActiveChannels()
	return c.JSON(http.StatusOK, map[string]any{
		"message":               "Twitch Chat Analyzer Backend Status",
		"active_analysis_count": len(channels),
		"analyzing_streamers":   channels,
	})
}

// handleReloadSentiments re-reads the sentiment catalog from disk and drops
// the cached global emote mapping so new sessions pick up fresh data.
func (s *Server) handleReloadSentiments(c echo.Context) error {
	count, err := s.catalog.Reload()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"message":     fmt.Sprintf("Failed to reload emote sentiment scores: %v", err),
			"success":     false,
			"emote_count": 0,
		})
	}

	s.directory.InvalidateGlobal()

	return c.JSON(http.StatusOK, map[string]any{
		"message":     fmt.Sprintf("Successfully reloaded %d emote sentiment scores", count),
		"success":     true,
		"emote_count": count,
	})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.supervisor.Count(),
		"catalog_entries": s.catalog.Size(),
	})
}
