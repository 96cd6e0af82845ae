// Package monitor turns periodic ping and query results into snapshots and
// edge-triggered lifecycle events.
package monitor

import (
	"strings"
	"time"

	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/protocol"
)

// Snapshot is one point-in-time view of the server merged from both
// protocols. When Online is false every other field is zero.
type Snapshot struct {
	Online          bool     `json:"online"`
	PlayersOnline   int      `json:"players_online"`
	PlayersMax      int      `json:"players_max"`
	Version         string   `json:"version"`
	ProtocolVersion int      `json:"protocol_version"`
	MOTD            string   `json:"motd"`
	PlayerList      []string `json:"player_list"`
	Map             string   `json:"map"`
	GameType        string   `json:"game_type"`

	PolledAt time.Time `json:"polled_at"`
}

// OfflineSnapshot returns the snapshot recorded when the ping fails.
func OfflineSnapshot(at time.Time) Snapshot {
	return Snapshot{PlayerList: []string{}, PolledAt: at}
}

// snapshotFromPing builds the ping-derived part of an online snapshot.
func snapshotFromPing(resp *protocol.PingResponse, at time.Time) Snapshot {
	return Snapshot{
		Online:          true,
		PlayersOnline:   resp.PlayersOnline,
		PlayersMax:      resp.PlayersMax,
		Version:         resp.VersionName,
		ProtocolVersion: resp.ProtocolVersion,
		MOTD:            resp.Description,
		PlayerList:      []string{},
		PolledAt:        at,
	}
}

// mergeQuery copies the query-only fields into s.
func (s *Snapshot) mergeQuery(resp *protocol.QueryResponse) {
	s.PlayerList = append([]string{}, resp.Players...)
	s.Map, _ = resp.Get(protocol.QueryKeyMap)
	s.GameType, _ = resp.Get(protocol.QueryKeyGameType)
}

// Full reports whether the server is online and at capacity.
func (s Snapshot) Full() bool {
	return s.Online && s.PlayersMax > 0 && s.PlayersOnline >= s.PlayersMax
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	s.PlayerList = append([]string{}, s.PlayerList...)
	return s
}

// Variables flattens the snapshot into the host variable set.
func (s Snapshot) Variables() events.Variables {
	return events.Variables{
		"online":           s.Online,
		"players_online":   s.PlayersOnline,
		"players_max":      s.PlayersMax,
		"version":          s.Version,
		"protocol_version": s.ProtocolVersion,
		"motd":             s.MOTD,
		"player_list":      strings.Join(s.PlayerList, ", "),
		"map":              s.Map,
		"game_type":        s.GameType,
	}
}
