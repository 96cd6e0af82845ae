// Package connector delivers monitor alerts to external chat services.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/util"
)

const (
	webhookTimeout = 10 * time.Second
	queueSize      = 64
	footerText     = "Pulse Server Monitor"
)

// Embed colours per alert type.
var alertColors = map[events.EventType]int{
	events.EventServerOnline:        0x2ECC71,
	events.EventServerOffline:       0xE74C3C,
	events.EventPlayerJoined:        0x3498DB,
	events.EventPlayerLeft:          0x95A5A6,
	events.EventPopulationMilestone: 0x9B59B6,
	events.EventServerFull:          0xF39C12,
}

// DiscordNotifier posts lifecycle alerts to a Discord webhook. Alerts are
// queued by the bus handler and delivered by Run so a slow webhook never
// holds up a poll.
type DiscordNotifier struct {
	cfg    *config.Config
	client *http.Client
	queue  chan events.Event
	logger zerolog.Logger
}

// NewDiscordNotifier creates a notifier and subscribes it to alert events.
func NewDiscordNotifier(cfg *config.Config, eventBus *events.EventBus) *DiscordNotifier {
	dn := &DiscordNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: webhookTimeout},
		queue:  make(chan events.Event, queueSize),
		logger: util.ComponentLogger("discord"),
	}

	eventBus.SubscribeMany(events.AlertTypes, "discord.alert", dn.onAlert)

	return dn
}

// Run delivers queued alerts until ctx is cancelled.
func (dn *DiscordNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-dn.queue:
			if err := dn.Send(ctx, e); err != nil {
				dn.logger.Warn().Err(err).Str("event", string(e.Type)).Msg("Discord notification failed")
			}
		}
	}
}

// onAlert queues alerts that are enabled in the alert configuration.
func (dn *DiscordNotifier) onAlert(ctx context.Context, event events.Event) error {
	app := dn.cfg.GetApplicationData()
	if !app.Discord.Enabled || app.Discord.WebhookURL == "" || !app.Alerts.Enabled(event.Type) {
		return nil
	}

	select {
	case dn.queue <- event:
	default:
		dn.logger.Warn().Str("event", string(event.Type)).Msg("Discord queue full, dropping alert")
	}
	return nil
}

// Send posts one alert to the configured webhook.
func (dn *DiscordNotifier) Send(ctx context.Context, event events.Event) error {
	app := dn.cfg.GetApplicationData()
	server := dn.cfg.GetMonitorData().Label()

	payload := map[string]interface{}{
		"username": app.Discord.Username,
		"embeds": []map[string]interface{}{
			{
				"title":       server,
				"description": event.Summary(),
				"color":       alertColors[event.Type],
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
				"footer": map[string]string{
					"text": footerText,
				},
			},
		},
	}
	// The owner is pinged when the server goes down.
	if event.Type == events.EventServerOffline && app.Discord.OwnerID != "" {
		payload["content"] = fmt.Sprintf("<@%s>", app.Discord.OwnerID)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, app.Discord.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dn.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	dn.logger.Debug().Str("event", string(event.Type)).Msg("Discord webhook notification sent")
	return nil
}
