package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
)

func newTestPlugin(t *testing.T, pinger StatusPinger) (*Plugin, *events.EventBus, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), config.DefaultConfigFile))
	cfg.MonitorData.ServerHost = "mc.example.com"
	cfg.MonitorData.PollIntervalSec = 300

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	return NewPlugin(cfg, bus, pinger, nil), bus, cfg
}

func TestPluginLifecycle(t *testing.T) {
	pinger := &fakePinger{resp: pingResp(1, 20)}
	plugin, bus, _ := newTestPlugin(t, pinger)

	var mu sync.Mutex
	var seen []events.EventType
	record := func(ctx context.Context, e events.Event) error {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		return nil
	}
	bus.Subscribe(events.EventVariablesUpdated, "test", record)
	bus.SubscribeMany(events.AlertTypes, "test", record)

	if err := plugin.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	if !plugin.Poller().Active() || pinger.Calls() != 1 {
		t.Fatalf("after OnLoad active=%v calls=%d", plugin.Poller().Active(), pinger.Calls())
	}

	pinger.set(nil, context.DeadlineExceeded)
	plugin.PollNow(context.Background())

	mu.Lock()
	got := append([]events.EventType(nil), seen...)
	mu.Unlock()
	want := []events.EventType{events.EventVariablesUpdated, events.EventVariablesUpdated, events.EventServerOffline}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	if err := plugin.OnUnload(context.Background()); err != nil {
		t.Fatalf("OnUnload: %v", err)
	}
	if plugin.Poller().Active() {
		t.Error("poller active after OnUnload")
	}
}

func TestPluginSettingsUpdate(t *testing.T) {
	pinger := &fakePinger{resp: pingResp(1, 20)}
	plugin, _, cfg := newTestPlugin(t, pinger)

	if err := plugin.OnLoad(context.Background()); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	defer plugin.OnUnload(context.Background())

	md := cfg.GetMonitorData()
	md.PollIntervalSec = 5
	if err := plugin.OnSettingsUpdate(context.Background(), md); err == nil {
		t.Fatal("accepted poll interval below minimum")
	}

	md.PollIntervalSec = 60
	md.ServerHost = "other.example.com"
	if err := plugin.OnSettingsUpdate(context.Background(), md); err != nil {
		t.Fatalf("OnSettingsUpdate: %v", err)
	}

	pc := plugin.Poller().Config()
	if pc.Host != "other.example.com" || pc.Interval != time.Minute {
		t.Errorf("poller config = %+v", pc)
	}
	if cfg.GetMonitorData().ServerHost != "other.example.com" {
		t.Error("config not updated")
	}
	if !plugin.Poller().Active() {
		t.Error("poller not restarted")
	}
	// The restart polled the new target once and took a fresh baseline.
	if pinger.Calls() != 2 {
		t.Errorf("ping calls = %d, want 2", pinger.Calls())
	}
	st := plugin.Engine().State()
	if !st.HasBaseline || st.Last.PolledAt.IsZero() {
		t.Errorf("state after restart = %+v", st)
	}
}
