package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/db"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/monitor"
	"github.com/energizer-project/pulse/internal/protocol"
)

type stubPinger struct {
	resp *protocol.PingResponse
	err  error
}

func (p *stubPinger) Ping(ctx context.Context, host string, port uint16) (*protocol.PingResponse, error) {
	return p.resp, p.err
}

type stubHistory struct {
	alerts []db.Alert
	limit  int
}

func (h *stubHistory) RecentAlerts(ctx context.Context, limit int) ([]db.Alert, error) {
	h.limit = limit
	return h.alerts, nil
}

func newTestCLI(t *testing.T, pinger *stubPinger, history AlertHistory) (*CLI, *bytes.Buffer, *events.EventBus, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), config.DefaultConfigFile))
	cfg.MonitorData.ServerHost = "mc.example.com"

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	plugin := monitor.NewPlugin(cfg, bus, pinger, nil)
	t.Cleanup(func() { plugin.OnUnload(context.Background()) })

	c := NewCLI(cfg, bus, plugin, history)
	out := &bytes.Buffer{}
	c.out = out
	return c, out, bus, cfg
}

func TestStatusAndPoll(t *testing.T) {
	pinger := &stubPinger{resp: &protocol.PingResponse{
		VersionName:     "1.20.4",
		ProtocolVersion: 765,
		PlayersOnline:   3,
		PlayersMax:      20,
		Description:     "Hello",
	}}
	c, out, _, _ := newTestCLI(t, pinger, nil)
	ctx := context.Background()

	c.Execute(ctx, "status")
	if !strings.Contains(out.String(), "No poll completed yet") {
		t.Errorf("status before poll = %q", out.String())
	}

	out.Reset()
	c.Execute(ctx, "poll")
	for _, want := range []string{"3/20", "1.20.4 (protocol 765)", "No changes"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("poll output missing %q:\n%s", want, out.String())
		}
	}

	pinger.err = errors.New("refused")
	out.Reset()
	c.Execute(ctx, "poll")
	if !strings.Contains(out.String(), "Server went offline") {
		t.Errorf("offline poll output:\n%s", out.String())
	}

	out.Reset()
	c.Execute(ctx, "players")
	if !strings.Contains(out.String(), "Server is offline") {
		t.Errorf("players output = %q", out.String())
	}
}

func TestSetConfig(t *testing.T) {
	c, _, _, cfg := newTestCLI(t, &stubPinger{resp: &protocol.PingResponse{}}, nil)
	ctx := context.Background()

	tests := []struct {
		line    string
		wantErr bool
	}{
		{"setconfig poll_interval_sec 60", false},
		{"setconfig use_query true", false},
		{"setconfig display_name My Server", false},
		{"setconfig poll_interval_sec 1", true},
		{"setconfig no_such_key 1", true},
		{"setconfig server_port abc", true},
		{"setconfig poll_interval_sec", true},
	}
	for _, tt := range tests {
		err := c.Execute(ctx, tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.line, err, tt.wantErr)
		}
	}

	md := cfg.GetMonitorData()
	if md.PollIntervalSec != 60 || !md.UseQuery || md.DisplayName != "My Server" {
		t.Errorf("monitor data = %+v", md)
	}
}

func TestAlertsCommand(t *testing.T) {
	history := &stubHistory{alerts: []db.Alert{
		{Type: "player_joined", Message: "alice joined (1/20)", CreatedAt: time.Now()},
	}}
	c, out, _, _ := newTestCLI(t, &stubPinger{}, history)
	ctx := context.Background()

	if err := c.Execute(ctx, "alerts 5"); err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if history.limit != 5 || !strings.Contains(out.String(), "alice joined (1/20)") {
		t.Errorf("limit=%d output:\n%s", history.limit, out.String())
	}
	if err := c.Execute(ctx, "alerts -1"); err == nil {
		t.Error("accepted negative count")
	}
}

func TestQuitEmitsShutdown(t *testing.T) {
	c, _, bus, _ := newTestCLI(t, &stubPinger{}, nil)

	var mu sync.Mutex
	got := false
	bus.Subscribe(events.EventShutdown, "test", func(ctx context.Context, e events.Event) error {
		mu.Lock()
		got = true
		mu.Unlock()
		return nil
	})

	c.Execute(context.Background(), "quit")
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !got {
		t.Error("shutdown event not emitted")
	}
}

func TestStartReadsUntilEOF(t *testing.T) {
	c, out, _, _ := newTestCLI(t, &stubPinger{}, nil)
	c.in = strings.NewReader("help\nbogus\n")

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return at EOF")
	}
	if !strings.Contains(out.String(), "Pulse CLI Commands") || !strings.Contains(out.String(), "Unknown command: 'bogus'") {
		t.Errorf("output:\n%s", out.String())
	}
}
