// Package health runs periodic self checks and the heartbeat for Pulse:
// poll staleness, disk utilization of the data directory, and host load.
package health

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/monitor"
	"github.com/energizer-project/pulse/internal/util"
)

// StaleAfterIntervals is how many poll intervals may pass without a
// completed poll before the poller is reported stale.
const StaleAfterIntervals = 3

// PollerState is the view of the poller the health checks need.
type PollerState interface {
	Active() bool
	Last() (monitor.PollResult, bool)
}

// Manager runs periodic health checks and emits heartbeats.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	poller   PollerState
	logger   zerolog.Logger

	// Usage samples host load; replaced in tests.
	Usage func(diskPath string) util.ResourceUsage
	now   func() time.Time
}

// NewManager creates a new health check manager.
func NewManager(cfg *config.Config, eventBus *events.EventBus, poller PollerState) *Manager {
	return &Manager{
		cfg:      cfg,
		eventBus: eventBus,
		poller:   poller,
		logger:   util.ComponentLogger("health"),
		Usage:    util.GetResourceUsage,
		now:      time.Now,
	}
}

// Start launches the health check goroutines and blocks until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	timers := m.cfg.GetApplicationData().Timers

	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"poll_staleness", timers.HealthCheckInterval, m.checkPollStaleness},
		{"disk_utilization", timers.HealthCheckInterval, m.checkDiskUtilization},
		{"heartbeat", timers.HeartbeatInterval, m.emitHeartbeat},
	}

	started := 0
	for _, check := range checks {
		check := check
		if check.interval <= 0 {
			continue
		}
		started++

		go func() {
			ticker := time.NewTicker(time.Duration(check.interval) * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					check.fn(ctx)
				}
			}
		}()
	}

	m.logger.Info().Int("checks", started).Msg("health check manager started")

	<-ctx.Done()
	m.logger.Info().Msg("health check manager stopped")
}

// PollStaleness reports whether an active poller has gone more than
// StaleAfterIntervals poll intervals without completing a poll, and how old
// the last poll is. An inactive poller is never stale.
func (m *Manager) PollStaleness() (bool, time.Duration) {
	if !m.poller.Active() {
		return false, 0
	}
	last, ok := m.poller.Last()
	if !ok {
		return false, 0
	}

	age := m.now().Sub(last.Snapshot.PolledAt)
	limit := StaleAfterIntervals * m.cfg.GetMonitorData().PollInterval()
	return age > limit, age
}

func (m *Manager) checkPollStaleness(ctx context.Context) {
	stale, age := m.PollStaleness()
	if stale {
		m.logger.Warn().
			Dur("since_last_poll", age).
			Msg("poller is active but no poll completed recently")
	}
}

// checkDiskUtilization warns when the filesystem holding the database is
// filling up.
func (m *Manager) checkDiskUtilization(ctx context.Context) {
	dir := filepath.Dir(m.cfg.GetApplicationData().Database.Path)
	usage := m.Usage(dir)

	var level zerolog.Level
	switch {
	case usage.DiskPercent >= 95:
		level = zerolog.ErrorLevel
	case usage.DiskPercent >= 90:
		level = zerolog.WarnLevel
	default:
		m.logger.Debug().Float64("used_percent", usage.DiskPercent).Msg("disk utilization")
		return
	}

	m.logger.WithLevel(level).
		Str("path", dir).
		Msgf("disk usage at %.1f%%", usage.DiskPercent)
}

// Heartbeat builds the current heartbeat payload.
func (m *Manager) Heartbeat() events.HeartbeatPayload {
	usage := m.Usage("")
	hb := events.HeartbeatPayload{
		Uptime:        util.Uptime(),
		CPUPercent:    usage.CPUPercent,
		MemoryPercent: usage.MemoryPercent,
		PollerActive:  m.poller.Active(),
	}
	if last, ok := m.poller.Last(); ok {
		hb.LastPoll = last.Snapshot.PolledAt
		hb.ServerOnline = last.Snapshot.Online
	}
	return hb
}

func (m *Manager) emitHeartbeat(ctx context.Context) {
	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventHeartbeat,
		Source:  "health",
		Payload: m.Heartbeat(),
	})
}
