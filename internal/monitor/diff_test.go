package monitor

import (
	"testing"

	"github.com/energizer-project/pulse/internal/events"
)

func online(count, max int, players ...string) Snapshot {
	return Snapshot{
		Online:        true,
		PlayersOnline: count,
		PlayersMax:    max,
		Version:       "1.8.9",
		MOTD:          "hello",
		PlayerList:    players,
	}
}

func offline() Snapshot {
	return OfflineSnapshot(testTime)
}

func types(evts []events.Event) []events.EventType {
	out := make([]events.EventType, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func assertTypes(t *testing.T, got []events.Event, want ...events.EventType) {
	t.Helper()
	gt := types(got)
	if len(gt) != len(want) {
		t.Fatalf("events = %v, want %v", gt, want)
	}
	for i := range want {
		if gt[i] != want[i] {
			t.Fatalf("events = %v, want %v", gt, want)
		}
	}
}

func TestBaselineEmitsNothing(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"offline", offline()},
		{"online_empty", online(0, 20)},
		{"online_full", online(20, 20)},
		{"online_with_players", online(2, 20, "A", "B")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDiffEngine(nil)
			if evts := d.Apply(tc.snap); len(evts) != 0 {
				t.Fatalf("baseline emitted %v", types(evts))
			}
			st := d.State()
			if !st.HasBaseline {
				t.Error("HasBaseline = false after first snapshot")
			}
			if st.Last == nil {
				t.Error("Last not stored")
			}
		})
	}
}

func TestOfflineToFullServer(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(offline())

	evts := d.Apply(online(10, 10))
	assertTypes(t, evts,
		events.EventServerOnline,
		events.EventPopulationMilestone,
		events.EventPopulationMilestone,
		events.EventServerFull,
	)

	if p := evts[0].Payload.(events.ServerOnlinePayload); p.MaxPlayers != 10 || p.Version != "1.8.9" {
		t.Errorf("online payload = %+v", p)
	}
	if p := evts[1].Payload.(events.MilestonePayload); p.Threshold != 5 {
		t.Errorf("first milestone = %d, want 5", p.Threshold)
	}
	if p := evts[2].Payload.(events.MilestonePayload); p.Threshold != 10 {
		t.Errorf("second milestone = %d, want 10", p.Threshold)
	}
}

func TestPlayerMembership(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(online(2, 20, "A", "B"))

	evts := d.Apply(online(2, 20, "B", "C"))
	assertTypes(t, evts, events.EventPlayerJoined, events.EventPlayerLeft)

	joined := evts[0].Payload.(events.PlayerPayload)
	left := evts[1].Payload.(events.PlayerPayload)
	if joined.Name != "C" || joined.Generic {
		t.Errorf("joined = %+v, want C", joined)
	}
	if left.Name != "A" || left.Generic {
		t.Errorf("left = %+v, want A", left)
	}

	if got := d.State().PreviousPlayers; len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("PreviousPlayers = %v, want [B C]", got)
	}
}

func TestCountDeltaFallback(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(online(3, 20))

	evts := d.Apply(online(5, 20))

	var joins int
	for _, e := range evts {
		if e.Type != events.EventPlayerJoined {
			continue
		}
		joins++
		p := e.Payload.(events.PlayerPayload)
		if !p.Generic || p.Name != GenericPlayerLabel {
			t.Errorf("join payload = %+v, want generic", p)
		}
	}
	if joins != 2 {
		t.Errorf("joins = %d, want 2 (events %v)", joins, types(evts))
	}

	evts = d.Apply(online(2, 20))
	var leaves int
	for _, e := range evts {
		if e.Type == events.EventPlayerLeft {
			leaves++
		}
	}
	if leaves != 3 {
		t.Errorf("leaves = %d, want 3 (events %v)", leaves, types(evts))
	}
}

func TestOfflineResetsState(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(online(6, 20, "A", "B", "C", "D", "E", "F"))

	evts := d.Apply(offline())
	assertTypes(t, evts, events.EventServerOffline)

	st := d.State()
	if len(st.PreviousPlayers) != 0 {
		t.Errorf("PreviousPlayers = %v, want empty", st.PreviousPlayers)
	}
	if len(st.MilestonesReached) != 0 {
		t.Errorf("MilestonesReached = %v, want empty", st.MilestonesReached)
	}

	// Coming back with the same population announces the milestone again
	// but no joins, since membership is reseeded on the online edge.
	evts = d.Apply(online(6, 20, "A", "B", "C", "D", "E", "F"))
	assertTypes(t, evts, events.EventServerOnline, events.EventPopulationMilestone)
}

func TestOfflineStaysQuiet(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(offline())
	if evts := d.Apply(offline()); len(evts) != 0 {
		t.Errorf("offline->offline emitted %v", types(evts))
	}
}

func TestMilestoneRearm(t *testing.T) {
	d := NewDiffEngine([]int{5})
	d.Apply(online(0, 100))

	assertTypes(t, d.Apply(online(5, 100)), append(repeat(events.EventPlayerJoined, 5), events.EventPopulationMilestone)...)
	// Staying above the threshold does not repeat it.
	assertTypes(t, d.Apply(online(6, 100)), events.EventPlayerJoined)
	// Dropping below re-arms silently.
	assertTypes(t, d.Apply(online(4, 100)), repeat(events.EventPlayerLeft, 2)...)
	assertTypes(t, d.Apply(online(5, 100)), events.EventPlayerJoined, events.EventPopulationMilestone)
}

func TestBaselineMarksReachedMilestones(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(online(30, 100))

	evts := d.Apply(online(31, 100))
	assertTypes(t, evts, events.EventPlayerJoined)
}

func TestServerFullIsEdgeTriggered(t *testing.T) {
	d := NewDiffEngine([]int{})
	d.Apply(online(1, 2, "A"))

	assertTypes(t, d.Apply(online(2, 2, "A", "B")), events.EventPlayerJoined, events.EventServerFull)
	assertTypes(t, d.Apply(online(2, 2, "A", "B")))
	assertTypes(t, d.Apply(online(1, 2, "A")), events.EventPlayerLeft)
	assertTypes(t, d.Apply(online(2, 2, "A", "C")), events.EventPlayerJoined, events.EventServerFull)
}

func TestServerFullIgnoresZeroMax(t *testing.T) {
	d := NewDiffEngine([]int{})
	d.Apply(offline())
	assertTypes(t, d.Apply(online(0, 0)), events.EventServerOnline)
}

func TestQueryListDropsToEmpty(t *testing.T) {
	d := NewDiffEngine([]int{})
	d.Apply(online(2, 20, "A", "B"))

	// The list disappearing while the previous one was populated is
	// still a name-based diff.
	evts := d.Apply(online(2, 20))
	assertTypes(t, evts, events.EventPlayerLeft, events.EventPlayerLeft)
}

func TestReset(t *testing.T) {
	d := NewDiffEngine(nil)
	d.Apply(offline())
	d.Reset()

	if d.State().HasBaseline {
		t.Fatal("HasBaseline survived Reset")
	}
	if evts := d.Apply(online(10, 10)); len(evts) != 0 {
		t.Errorf("first snapshot after Reset emitted %v", types(evts))
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	d := NewDiffEngine(nil)
	players := []string{"A", "B"}
	d.Apply(online(2, 20, players...))

	players[0] = "Z"
	if got := d.State().Last.PlayerList[0]; got != "A" {
		t.Errorf("stored snapshot changed to %q through caller slice", got)
	}
}

func repeat(t events.EventType, n int) []events.EventType {
	out := make([]events.EventType, n)
	for i := range out {
		out[i] = t
	}
	return out
}
