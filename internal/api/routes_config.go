package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/pulse/internal/config"
)

const redacted = "********"

// handleGetConfig returns the current configuration with secrets masked.
func (s *Server) handleGetConfig(c *gin.Context) {
	app := s.cfg.GetApplicationData()
	if app.API.AuthToken != "" {
		app.API.AuthToken = redacted
	}
	if app.MQTT.Password != "" {
		app.MQTT.Password = redacted
	}
	if app.Discord.WebhookURL != "" {
		app.Discord.WebhookURL = redacted
	}

	c.JSON(http.StatusOK, gin.H{
		"monitor_data":     s.cfg.GetMonitorData(),
		"application_data": app,
	})
}

// handleSetMonitorData applies new monitor settings. Fields missing from
// the request body keep their current value.
func (s *Server) handleSetMonitorData(c *gin.Context) {
	data := s.cfg.GetMonitorData()
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if result := config.ValidateMonitorData(data); !result.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "invalid monitor settings",
			"errors":   result.Errors,
			"warnings": result.Warnings,
		})
		return
	}

	if err := s.plugin.OnSettingsUpdate(c.Request.Context(), data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info().Str("server", data.Label()).Msg("API: monitor settings updated")

	c.JSON(http.StatusOK, gin.H{
		"status": "updated",
		"data":   s.cfg.GetMonitorData(),
	})
}
