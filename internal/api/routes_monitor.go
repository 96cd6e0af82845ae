package api

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/pulse/internal/util"
)

const (
	defaultAlertCount = 20
	maxAlertCount     = 500
)

// handleGetVariables returns the host variable store. Without a store the
// variables of the last snapshot are returned.
func (s *Server) handleGetVariables(c *gin.Context) {
	if s.history != nil {
		vars, err := s.history.Variables(c.Request.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to read variables")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read variables"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"variables": vars})
		return
	}

	last, ok := s.plugin.Poller().Last()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no poll completed yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variables": last.Snapshot.Variables()})
}

// handleGetAlerts returns the most recent alerts, newest first.
func (s *Server) handleGetAlerts(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert history unavailable"})
		return
	}

	count := defaultAlertCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		count = min(n, maxAlertCount)
	}

	alerts, err := s.history.RecentAlerts(c.Request.Context(), count)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleGetPlayers returns the player counts and, when the query protocol
// supplied one, the player list.
func (s *Server) handleGetPlayers(c *gin.Context) {
	last, ok := s.plugin.Poller().Last()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no poll completed yet"})
		return
	}

	snap := last.Snapshot
	c.JSON(http.StatusOK, gin.H{
		"online":      snap.Online,
		"players":     snap.PlayersOnline,
		"max_players": snap.PlayersMax,
		"player_list": snap.PlayerList,
		"polled_at":   snap.PolledAt,
	})
}

// handleGetSystem returns host information and current load.
func (s *Server) handleGetSystem(c *gin.Context) {
	dataDir := filepath.Dir(s.cfg.GetApplicationData().Database.Path)
	c.JSON(http.StatusOK, gin.H{
		"system": util.GetSystemInfo(),
		"usage":  util.GetResourceUsage(dataDir),
	})
}
