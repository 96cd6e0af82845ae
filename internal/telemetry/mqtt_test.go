package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/util"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	body     map[string]interface{}
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	msgs      []published
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var body map[string]interface{}
	json.Unmarshal(payload.([]byte), &body)
	c.mu.Lock()
	c.msgs = append(c.msgs, published{topic: topic, retained: retained, body: body})
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func newTestHandler(t *testing.T, prefix string, connected bool) (*MQTTHandler, *fakeClient, *events.EventBus) {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	cfg := config.MQTTConfig{TopicPrefix: prefix}
	h := newHandler(cfg, "survival", bus, "test", util.SystemInfo{Hostname: "box"})
	client := &fakeClient{connected: connected}
	h.client = client
	h.Attach()
	return h, client, bus
}

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix string
		levels []string
		want   string
	}{
		{"pulse", []string{"variables"}, "pulse/variables"},
		{"/site/mc/", []string{"alerts", "player_joined"}, "site/mc/alerts/player_joined"},
		{"", []string{"heartbeat"}, "pulse/heartbeat"},
	}
	for _, tt := range tests {
		h := &MQTTHandler{cfg: config.MQTTConfig{TopicPrefix: tt.prefix}}
		if got := h.Topic(tt.levels...); got != tt.want {
			t.Errorf("Topic(%q, %v) = %q, want %q", tt.prefix, tt.levels, got, tt.want)
		}
	}
}

func TestPublishesBusEvents(t *testing.T) {
	_, client, bus := newTestHandler(t, "pulse", true)
	ctx := context.Background()

	bus.EmitSync(ctx, events.Event{
		Type:    events.EventVariablesUpdated,
		Payload: events.VariablesPayload{Variables: events.Variables{"online": true}},
	})
	bus.EmitSync(ctx, events.Event{
		Type:    events.EventPlayerJoined,
		Source:  "monitor",
		Payload: events.PlayerPayload{Name: "alice", OnlineCount: 1, MaxPlayers: 20},
	})

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}

	vars := msgs[0]
	if vars.topic != "pulse/variables" || !vars.retained {
		t.Errorf("variables message = %+v", vars)
	}
	if vars.body["hostname"] != "box" || vars.body["server"] != "survival" {
		t.Errorf("metadata missing: %v", vars.body)
	}
	if p, _ := vars.body["payload"].(map[string]interface{}); p["online"] != true {
		t.Errorf("variables payload = %v", vars.body["payload"])
	}

	alert := msgs[1]
	if alert.topic != "pulse/alerts/player_joined" || alert.retained {
		t.Errorf("alert message = %+v", alert)
	}
	if p, _ := alert.body["payload"].(map[string]interface{}); p["summary"] != "alice joined (1/20)" {
		t.Errorf("alert payload = %v", alert.body["payload"])
	}
}

func TestSkipsWhenDisconnected(t *testing.T) {
	h, client, _ := newTestHandler(t, "pulse", false)
	h.PublishShutdown()
	if n := len(client.messages()); n != 0 {
		t.Errorf("published %d messages while disconnected", n)
	}
}
