package monitor

import (
	"slices"
	"sync"

	"github.com/energizer-project/pulse/internal/events"
)

// DefaultMilestones are the population thresholds announced as the server
// fills up. They must be ascending.
var DefaultMilestones = []int{5, 10, 25, 50, 100, 250, 500, 1000}

// GenericPlayerLabel names a player whose identity is unknown because only
// the player count changed.
const GenericPlayerLabel = "A player"

// eventSource tags every event produced by the diff engine.
const eventSource = "monitor"

// DiffState is everything the engine remembers between snapshots.
type DiffState struct {
	HasBaseline       bool
	Last              *Snapshot
	PreviousPlayers   []string
	MilestonesReached map[int]bool
}

// DiffEngine compares consecutive snapshots and emits lifecycle events.
type DiffEngine struct {
	mu         sync.Mutex
	state      DiffState
	milestones []int
}

// NewDiffEngine creates an engine with the given thresholds. Nil selects
// DefaultMilestones.
func NewDiffEngine(milestones []int) *DiffEngine {
	if milestones == nil {
		milestones = DefaultMilestones
	}
	m := slices.Clone(milestones)
	slices.Sort(m)
	return &DiffEngine{
		milestones: slices.Compact(m),
		state:      DiffState{MilestonesReached: make(map[int]bool)},
	}
}

// State returns a deep copy of the current state.
func (d *DiffEngine) State() DiffState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := DiffState{
		HasBaseline:       d.state.HasBaseline,
		PreviousPlayers:   slices.Clone(d.state.PreviousPlayers),
		MilestonesReached: make(map[int]bool, len(d.state.MilestonesReached)),
	}
	if d.state.Last != nil {
		last := d.state.Last.Clone()
		st.Last = &last
	}
	for k, v := range d.state.MilestonesReached {
		st.MilestonesReached[k] = v
	}
	return st
}

// Reset forgets the baseline; the next snapshot establishes a new one.
func (d *DiffEngine) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DiffState{MilestonesReached: make(map[int]bool)}
}

// Apply records s and returns the events caused by the change from the
// previous snapshot, in this order: online/offline edge, joins, leaves,
// milestones, server full. The first snapshot only sets the baseline.
func (d *DiffEngine) Apply(s Snapshot) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	s = s.Clone()
	st := &d.state

	if !st.HasBaseline {
		if s.Online {
			st.PreviousPlayers = uniquePlayers(s.PlayerList)
			d.markMilestones(s.PlayersOnline)
		}
		st.Last = &s
		st.HasBaseline = true
		return nil
	}

	prev := *st.Last
	var out []events.Event

	switch {
	case !prev.Online && s.Online:
		out = append(out, newEvent(events.EventServerOnline, events.ServerOnlinePayload{
			Version:    s.Version,
			MOTD:       s.MOTD,
			MaxPlayers: s.PlayersMax,
		}))
		st.PreviousPlayers = uniquePlayers(s.PlayerList)
	case prev.Online && !s.Online:
		out = append(out, newEvent(events.EventServerOffline, events.ServerOfflinePayload{}))
		st.PreviousPlayers = nil
		clear(st.MilestonesReached)
	}

	if prev.Online && s.Online {
		out = append(out, d.membershipEvents(prev, s)...)
	}

	if s.Online {
		out = append(out, d.milestoneEvents(s)...)

		if s.Full() && !prev.Full() {
			out = append(out, newEvent(events.EventServerFull, events.ServerFullPayload{
				OnlineCount: s.PlayersOnline,
				MaxPlayers:  s.PlayersMax,
			}))
		}
	}

	st.Last = &s
	return out
}

// membershipEvents diffs player names when either snapshot carries a list,
// and falls back to the count delta otherwise.
func (d *DiffEngine) membershipEvents(prev, s Snapshot) []events.Event {
	st := &d.state
	var out []events.Event

	if len(prev.PlayerList) == 0 && len(s.PlayerList) == 0 {
		delta := s.PlayersOnline - prev.PlayersOnline
		typ := events.EventPlayerJoined
		if delta < 0 {
			typ = events.EventPlayerLeft
			delta = -delta
		}
		for i := 0; i < delta; i++ {
			out = append(out, newPlayerEvent(typ, GenericPlayerLabel, true, s))
		}
		return out
	}

	current := uniquePlayers(s.PlayerList)
	for _, name := range current {
		if !slices.Contains(st.PreviousPlayers, name) {
			out = append(out, newPlayerEvent(events.EventPlayerJoined, name, false, s))
		}
	}
	for _, name := range st.PreviousPlayers {
		if !slices.Contains(current, name) {
			out = append(out, newPlayerEvent(events.EventPlayerLeft, name, false, s))
		}
	}
	st.PreviousPlayers = current
	return out
}

// milestoneEvents announces newly crossed thresholds and re-arms the ones
// the population has dropped below.
func (d *DiffEngine) milestoneEvents(s Snapshot) []events.Event {
	var out []events.Event
	for _, th := range d.milestones {
		reached := d.state.MilestonesReached[th]
		switch {
		case th <= s.PlayersOnline && !reached:
			d.state.MilestonesReached[th] = true
			out = append(out, newEvent(events.EventPopulationMilestone, events.MilestonePayload{
				Threshold:   th,
				OnlineCount: s.PlayersOnline,
				MaxPlayers:  s.PlayersMax,
			}))
		case th > s.PlayersOnline && reached:
			delete(d.state.MilestonesReached, th)
		}
	}
	return out
}

func (d *DiffEngine) markMilestones(count int) {
	for _, th := range d.milestones {
		if th <= count {
			d.state.MilestonesReached[th] = true
		}
	}
}

func uniquePlayers(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func newEvent(t events.EventType, payload interface{}) events.Event {
	return events.Event{Type: t, Source: eventSource, Payload: payload}
}

func newPlayerEvent(t events.EventType, name string, generic bool, s Snapshot) events.Event {
	return newEvent(t, events.PlayerPayload{
		Name:        name,
		Generic:     generic,
		OnlineCount: s.PlayersOnline,
		MaxPlayers:  s.PlayersMax,
	})
}
