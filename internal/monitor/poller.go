package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/protocol"
	"github.com/energizer-project/pulse/internal/util"
)

// StatusPinger performs the TCP status exchange.
type StatusPinger interface {
	Ping(ctx context.Context, host string, port uint16) (*protocol.PingResponse, error)
}

// StatQuerier performs the UDP query exchange.
type StatQuerier interface {
	Query(ctx context.Context, host string, port uint16) (*protocol.QueryResponse, error)
}

// Variables is the flat variable set published after every poll.
type Variables = events.Variables

// Sink receives the output of every poll.
type Sink interface {
	PublishVariables(ctx context.Context, vars Variables) error
	PublishAlert(ctx context.Context, event events.Event) error
}

// PollerConfig is the part of the monitor configuration the poller uses.
type PollerConfig struct {
	Host      string
	Port      uint16
	QueryPort uint16 // 0 selects Port
	UseQuery  bool
	Interval  time.Duration
}

func (c PollerConfig) queryPort() uint16 {
	if c.QueryPort == 0 {
		return c.Port
	}
	return c.QueryPort
}

func (c PollerConfig) validate() error {
	if c.Host == "" {
		return errors.New("poller: host is required")
	}
	if c.Port == 0 {
		return errors.New("poller: port is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("poller: invalid interval %v", c.Interval)
	}
	return nil
}

// PollResult describes one finished poll cycle.
type PollResult struct {
	Snapshot Snapshot
	Events   []events.Event
	Duration time.Duration
	PingErr  error
	QueryErr error
}

// Poller drives the ping and query clients on a timer and feeds the
// results through the diff engine into the sink.
//
// Polls never overlap: the timer is re-armed only after a poll settles,
// and manual polls share the same lock.
type Poller struct {
	pinger  StatusPinger
	querier StatQuerier
	engine  *DiffEngine
	sink    Sink
	logger  zerolog.Logger

	// OnPoll, when set, is called after every poll cycle.
	OnPoll func(PollResult)

	pollMu sync.Mutex // serializes poll cycles

	mu         sync.Mutex // guards the fields below
	cfg        PollerConfig
	active     bool
	generation uint64
	timer      *time.Timer
	last       *PollResult
	polls      uint64
}

// NewPoller creates an idle poller. querier may be nil when the query
// protocol is never used.
func NewPoller(cfg PollerConfig, pinger StatusPinger, querier StatQuerier, engine *DiffEngine, sink Sink) *Poller {
	return &Poller{
		cfg:     cfg,
		pinger:  pinger,
		querier: querier,
		engine:  engine,
		sink:    sink,
		logger:  util.ComponentLogger("poller"),
	}
}

// Start runs one poll synchronously and then keeps polling at the
// configured interval until Stop is called or ctx is cancelled. Calling
// Start on an active poller does nothing.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return nil
	}
	if err := p.cfg.validate(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.active = true
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	p.logger.Info().
		Str("host", p.Config().Host).
		Dur("interval", p.Config().Interval).
		Msg("poller started")

	p.PollOnce(ctx)
	p.arm(ctx, gen)
	return nil
}

// Stop disarms the timer. A poll already in flight completes and its
// events are still delivered.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	p.active = false
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.logger.Info().Msg("poller stopped")
}

// arm schedules the next tick if the poller is still in generation gen.
func (p *Poller) arm(ctx context.Context, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || p.generation != gen {
		return
	}
	if ctx.Err() != nil {
		p.active = false
		p.generation++
		p.logger.Info().Msg("poller context done, stopping")
		return
	}
	p.timer = time.AfterFunc(p.cfg.Interval, func() {
		p.mu.Lock()
		current := p.active && p.generation == gen
		p.mu.Unlock()
		if !current {
			return
		}
		p.PollOnce(ctx)
		p.arm(ctx, gen)
	})
}

// Active reports whether the timer is armed.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Config returns the current poller configuration.
func (p *Poller) Config() PollerConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Reconfigure swaps the configuration between poll cycles. It waits for a
// poll in flight to settle, so that poll can never land on a reset
// baseline. With resetBaseline the next poll starts a new baseline.
func (p *Poller) Reconfigure(cfg PollerConfig, resetBaseline bool) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()

	if resetBaseline {
		p.engine.Reset()
	}
	return nil
}

// Last returns the most recent poll result.
func (p *Poller) Last() (PollResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return PollResult{}, false
	}
	r := *p.last
	r.Snapshot = r.Snapshot.Clone()
	return r, true
}

// Polls returns the number of completed poll cycles.
func (p *Poller) Polls() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// PollOnce runs one full cycle: ping, optional query, diff, publish.
//
// A cycle whose exchange fails because ctx was cancelled is discarded: the
// diff engine and sink never see it, and PollOnce returns the last settled
// snapshot with no events.
func (p *Poller) PollOnce(ctx context.Context) (Snapshot, []events.Event) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	cfg := p.Config()
	start := time.Now()

	snap, pingErr, queryErr := p.collect(ctx, cfg, start)
	if (pingErr != nil || queryErr != nil) && ctx.Err() != nil {
		p.logger.Info().
			Err(ctx.Err()).
			Str("host", cfg.Host).
			Msg("poll cancelled, result discarded")
		if last, ok := p.Last(); ok {
			return last.Snapshot, nil
		}
		return Snapshot{}, nil
	}

	evts := p.engine.Apply(snap)
	// Delivery of an applied cycle must not be cut short by the caller.
	p.publish(context.WithoutCancel(ctx), snap, evts)

	result := PollResult{
		Snapshot: snap,
		Events:   evts,
		Duration: time.Since(start),
		PingErr:  pingErr,
		QueryErr: queryErr,
	}

	p.mu.Lock()
	p.last = &result
	p.polls++
	p.mu.Unlock()

	p.logger.Debug().
		Bool("online", snap.Online).
		Int("players", snap.PlayersOnline).
		Int("events", len(evts)).
		Dur("took", result.Duration).
		Msg("poll completed")

	if p.OnPoll != nil {
		p.OnPoll(result)
	}

	return snap, evts
}

// collect gathers one snapshot. A ping failure yields an offline snapshot
// and skips the query. A query failure keeps the ping data.
func (p *Poller) collect(ctx context.Context, cfg PollerConfig, at time.Time) (Snapshot, error, error) {
	resp, err := p.pinger.Ping(ctx, cfg.Host, cfg.Port)
	if err != nil && ctx.Err() != nil {
		return Snapshot{}, err, nil
	}
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("host", cfg.Host).
			Uint16("port", cfg.Port).
			Msg("ping failed, treating server as offline")
		return OfflineSnapshot(at), err, nil
	}

	snap := snapshotFromPing(resp, at)
	if !cfg.UseQuery || p.querier == nil {
		return snap, nil, nil
	}

	qresp, err := p.querier.Query(ctx, cfg.Host, cfg.queryPort())
	if err != nil && ctx.Err() != nil {
		return snap, nil, err
	}
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("host", cfg.Host).
			Uint16("port", cfg.queryPort()).
			Msg("query failed, using ping data only")
		return snap, nil, err
	}

	snap.mergeQuery(qresp)
	return snap, nil, nil
}

func (p *Poller) publish(ctx context.Context, snap Snapshot, evts []events.Event) {
	if p.sink == nil {
		return
	}
	if err := p.sink.PublishVariables(ctx, snap.Variables()); err != nil {
		p.logger.Error().Err(err).Msg("failed to publish variables")
	}
	for _, e := range evts {
		if err := p.sink.PublishAlert(ctx, e); err != nil {
			p.logger.Error().Err(err).Str("event", string(e.Type)).Msg("failed to publish alert")
		}
	}
}
