package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
)

type webhookBody struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	Embeds   []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       int    `json:"color"`
	} `json:"embeds"`
}

func TestDiscordNotifierDeliversEnabledAlerts(t *testing.T) {
	received := make(chan webhookBody, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.MonitorData.DisplayName = "Survival"
	cfg.ApplicationData.Discord.Enabled = true
	cfg.ApplicationData.Discord.WebhookURL = srv.URL
	cfg.ApplicationData.Discord.OwnerID = "42"
	cfg.ApplicationData.Alerts.PlayerLeft = false

	bus := events.NewEventBus()
	defer bus.Stop()
	dn := NewDiscordNotifier(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dn.Run(ctx)

	bus.EmitSync(ctx, events.Event{Type: events.EventPlayerLeft, Payload: events.PlayerPayload{Name: "bob"}})
	bus.EmitSync(ctx, events.Event{Type: events.EventServerOffline, Payload: events.ServerOfflinePayload{}})

	select {
	case body := <-received:
		if body.Username != "Pulse" || body.Content != "<@42>" {
			t.Errorf("body = %+v", body)
		}
		if len(body.Embeds) != 1 || body.Embeds[0].Title != "Survival" || body.Embeds[0].Description != "Server went offline" {
			t.Errorf("embeds = %+v", body.Embeds)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}

	select {
	case body := <-received:
		t.Errorf("unexpected second webhook call: %+v", body)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDiscordSendReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.ApplicationData.Discord.WebhookURL = srv.URL

	bus := events.NewEventBus()
	defer bus.Stop()
	dn := NewDiscordNotifier(cfg, bus)

	err := dn.Send(context.Background(), events.Event{Type: events.EventServerOnline, Payload: events.ServerOnlinePayload{Version: "1.20.4"}})
	if err == nil {
		t.Fatal("Send succeeded on HTTP 429")
	}
}
