package health

import (
	"context"
	"testing"
	"time"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/monitor"
	"github.com/energizer-project/pulse/internal/util"
)

type fakePoller struct {
	active bool
	last   *monitor.PollResult
}

func (f *fakePoller) Active() bool { return f.active }

func (f *fakePoller) Last() (monitor.PollResult, bool) {
	if f.last == nil {
		return monitor.PollResult{}, false
	}
	return *f.last, true
}

func newTestManager(p *fakePoller, now time.Time) (*Manager, *events.EventBus) {
	cfg := config.DefaultConfig()
	cfg.MonitorData.PollIntervalSec = 30
	bus := events.NewEventBus()
	m := NewManager(cfg, bus, p)
	m.now = func() time.Time { return now }
	m.Usage = func(string) util.ResourceUsage {
		return util.ResourceUsage{CPUPercent: 12.5, MemoryPercent: 40}
	}
	return m, bus
}

func TestPollStaleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		poller fakePoller
		want   bool
	}{
		{"inactive", fakePoller{active: false, last: &monitor.PollResult{Snapshot: monitor.Snapshot{PolledAt: now.Add(-time.Hour)}}}, false},
		{"no poll yet", fakePoller{active: true}, false},
		{"recent", fakePoller{active: true, last: &monitor.PollResult{Snapshot: monitor.Snapshot{PolledAt: now.Add(-45 * time.Second)}}}, false},
		{"at limit", fakePoller{active: true, last: &monitor.PollResult{Snapshot: monitor.Snapshot{PolledAt: now.Add(-90 * time.Second)}}}, false},
		{"stale", fakePoller{active: true, last: &monitor.PollResult{Snapshot: monitor.Snapshot{PolledAt: now.Add(-91 * time.Second)}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, bus := newTestManager(&tt.poller, now)
			defer bus.Stop()
			if got, _ := m.PollStaleness(); got != tt.want {
				t.Errorf("stale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeartbeatEmitted(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &fakePoller{active: true, last: &monitor.PollResult{Snapshot: monitor.Snapshot{Online: true, PolledAt: at}}}
	m, bus := newTestManager(p, at)

	got := make(chan events.HeartbeatPayload, 1)
	bus.Subscribe(events.EventHeartbeat, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.HeartbeatPayload)
		return nil
	})

	m.emitHeartbeat(context.Background())
	bus.Stop()

	select {
	case hb := <-got:
		if !hb.PollerActive || !hb.ServerOnline || !hb.LastPoll.Equal(at) {
			t.Errorf("heartbeat = %+v", hb)
		}
		if hb.CPUPercent != 12.5 || hb.MemoryPercent != 40 {
			t.Errorf("usage = %v/%v", hb.CPUPercent, hb.MemoryPercent)
		}
	default:
		t.Fatal("no heartbeat emitted")
	}
}
