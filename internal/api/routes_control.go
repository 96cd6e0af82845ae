package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/pulse/internal/events"
)

type alertView struct {
	Type    events.EventType `json:"type"`
	Summary string           `json:"summary"`
	Payload interface{}      `json:"payload"`
}

// handlePoll runs one poll immediately and returns its result. The poll
// outlives a client that hangs up; the clients' own timeouts bound it.
func (s *Server) handlePoll(c *gin.Context) {
	snap, evts := s.plugin.PollNow(context.WithoutCancel(c.Request.Context()))

	alerts := make([]alertView, len(evts))
	for i, e := range evts {
		alerts[i] = alertView{Type: e.Type, Summary: e.Summary(), Payload: e.Payload}
	}

	s.logger.Info().Int("events", len(evts)).Msg("API: manual poll")

	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"events":   alerts,
	})
}

// handleStartPolling starts the poller.
func (s *Server) handleStartPolling(c *gin.Context) {
	if err := s.plugin.StartPolling(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info().Msg("API: polling started")
	c.JSON(http.StatusOK, gin.H{"active": s.plugin.Poller().Active()})
}

// handleStopPolling stops the poller.
func (s *Server) handleStopPolling(c *gin.Context) {
	s.plugin.StopPolling()

	s.logger.Info().Msg("API: polling stopped")
	c.JSON(http.StatusOK, gin.H{"active": s.plugin.Poller().Active()})
}
