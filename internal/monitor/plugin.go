package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/util"
)

// LifecycleHandler is the hook set a host calls as the monitor is loaded,
// unloaded and reconfigured.
type LifecycleHandler interface {
	OnLoad(ctx context.Context) error
	OnUnload(ctx context.Context) error
	OnSettingsUpdate(ctx context.Context, data config.MonitorData) error
}

var _ LifecycleHandler = (*Plugin)(nil)

// Plugin owns the poller and diff engine for one monitored server and
// wires their output onto the event bus.
type Plugin struct {
	cfg    *config.Config
	bus    *events.EventBus
	engine *DiffEngine
	poller *Poller
	logger zerolog.Logger

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
}

// PollerConfigFrom converts the stored monitor settings.
func PollerConfigFrom(md config.MonitorData) PollerConfig {
	return PollerConfig{
		Host:      md.ServerHost,
		Port:      uint16(md.ServerPort),
		QueryPort: uint16(md.QueryPort),
		UseQuery:  md.UseQuery,
		Interval:  md.PollInterval(),
	}
}

// NewPlugin creates the monitor plugin. Nothing runs until OnLoad.
func NewPlugin(cfg *config.Config, bus *events.EventBus, pinger StatusPinger, querier StatQuerier) *Plugin {
	engine := NewDiffEngine(nil)
	p := &Plugin{
		cfg:    cfg,
		bus:    bus,
		engine: engine,
		logger: util.ComponentLogger("monitor"),
	}
	p.poller = NewPoller(PollerConfigFrom(cfg.GetMonitorData()), pinger, querier, engine,
		events.NewBusSink(bus, eventSource))
	p.poller.OnPoll = p.onPoll
	return p
}

// Poller returns the plugin's poller.
func (p *Plugin) Poller() *Poller {
	return p.poller
}

// Engine returns the plugin's diff engine.
func (p *Plugin) Engine() *DiffEngine {
	return p.engine
}

// OnLoad starts polling. The first poll completes before OnLoad returns.
func (p *Plugin) OnLoad(ctx context.Context) error {
	p.mu.Lock()
	p.runCtx, p.cancel = context.WithCancel(ctx)
	runCtx := p.runCtx
	p.mu.Unlock()

	md := p.cfg.GetMonitorData()
	p.logger.Info().
		Str("server", md.Label()).
		Bool("use_query", md.UseQuery).
		Int("interval_sec", md.PollIntervalSec).
		Msg("monitor loaded")

	if err := p.poller.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	return nil
}

// OnUnload stops polling and cancels any in-flight exchange.
func (p *Plugin) OnUnload(ctx context.Context) error {
	p.poller.Stop()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.logger.Info().Msg("monitor unloaded")
	return nil
}

// OnSettingsUpdate validates and applies new monitor settings. Changing
// the target server drops the diff baseline. An active poller is
// restarted so the new interval applies immediately.
func (p *Plugin) OnSettingsUpdate(ctx context.Context, data config.MonitorData) error {
	result := config.ValidateMonitorData(data)
	if !result.IsValid() {
		return fmt.Errorf("invalid monitor settings: %w", result.Errors[0])
	}

	next := PollerConfigFrom(data)
	prev := p.poller.Config()
	wasActive := p.poller.Active()

	targetChanged := next.Host != prev.Host || next.Port != prev.Port ||
		next.queryPort() != prev.queryPort() || next.UseQuery != prev.UseQuery

	p.poller.Stop()
	if err := p.poller.Reconfigure(next, targetChanged); err != nil {
		return err
	}
	if targetChanged {
		p.logger.Info().Str("server", data.Label()).Msg("monitor target changed, baseline reset")
	}

	p.cfg.SetMonitorData(data)
	if err := p.cfg.Save(); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist monitor settings")
	}

	p.bus.Emit(ctx, events.Event{
		Type:    events.EventConfigChanged,
		Source:  eventSource,
		Payload: events.ConfigChangedPayload{Section: "monitor_data"},
	})

	if wasActive {
		return p.StartPolling()
	}
	return nil
}

// StartPolling starts the poller under the plugin's lifetime context.
func (p *Plugin) StartPolling() error {
	return p.poller.Start(p.lifetime())
}

// StopPolling stops the poller without unloading the plugin.
func (p *Plugin) StopPolling() {
	p.poller.Stop()
}

// PollNow runs one poll immediately, outside the timer schedule.
func (p *Plugin) PollNow(ctx context.Context) (Snapshot, []events.Event) {
	return p.poller.PollOnce(ctx)
}

func (p *Plugin) lifetime() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runCtx == nil {
		return context.Background()
	}
	return p.runCtx
}

func (p *Plugin) onPoll(r PollResult) {
	p.bus.Emit(context.Background(), events.Event{
		Type:   events.EventPollCompleted,
		Source: eventSource,
		Payload: events.PollCompletedPayload{
			Online:      r.Snapshot.Online,
			Players:     r.Snapshot.PlayersOnline,
			MaxPlayers:  r.Snapshot.PlayersMax,
			QueryFailed: r.QueryErr != nil,
			Events:      len(r.Events),
			Duration:    r.Duration,
			PolledAt:    r.Snapshot.PolledAt,
		},
	})
}
