package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pulse",
		"version": s.version,
	})
}

// handleGetVersion returns the Pulse version.
func (s *Server) handleGetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": s.version,
		"name":    "Pulse",
	})
}

// handleGetStatus returns the latest snapshot of the monitored server.
func (s *Server) handleGetStatus(c *gin.Context) {
	poller := s.plugin.Poller()
	last, ok := poller.Last()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "no poll completed yet",
			"active": poller.Active(),
		})
		return
	}

	resp := gin.H{
		"server":   s.cfg.GetMonitorData().Label(),
		"active":   poller.Active(),
		"polls":    poller.Polls(),
		"snapshot": last.Snapshot,
		"full":     last.Snapshot.Full(),
		"duration": last.Duration.String(),
	}
	if last.PingErr != nil {
		resp["ping_error"] = last.PingErr.Error()
	}
	if last.QueryErr != nil {
		resp["query_error"] = last.QueryErr.Error()
	}

	c.JSON(http.StatusOK, resp)
}
