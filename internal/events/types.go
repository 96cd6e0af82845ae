// Package events defines event types and payloads for the Pulse event system.
package events

import (
	"strconv"
	"time"
)

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Server lifecycle events produced by the diff engine
	EventServerOnline        EventType = "server_online"
	EventServerOffline       EventType = "server_offline"
	EventPlayerJoined        EventType = "player_joined"
	EventPlayerLeft          EventType = "player_left"
	EventPopulationMilestone EventType = "population_milestone"
	EventServerFull          EventType = "server_full"

	// Poll events
	EventVariablesUpdated EventType = "variables_updated"
	EventPollCompleted    EventType = "poll_completed"

	// System events
	EventHeartbeat     EventType = "heartbeat"
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// AlertTypes lists the lifecycle event types that are published as alerts.
var AlertTypes = []EventType{
	EventServerOnline,
	EventServerOffline,
	EventPlayerJoined,
	EventPlayerLeft,
	EventPopulationMilestone,
	EventServerFull,
}

// IsAlert reports whether t is one of the lifecycle alert types.
func (t EventType) IsAlert() bool {
	for _, a := range AlertTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType   `json:"type"`
	Source  string      `json:"source"`
	Payload interface{} `json:"payload"`
}

// ServerOnlinePayload is carried by EventServerOnline.
type ServerOnlinePayload struct {
	Version    string `json:"version"`
	MOTD       string `json:"motd"`
	MaxPlayers int    `json:"max_players"`
}

// ServerOfflinePayload is carried by EventServerOffline.
type ServerOfflinePayload struct{}

// PlayerPayload is carried by EventPlayerJoined and EventPlayerLeft.
// Generic is set when the player name is unknown and Name holds a
// placeholder label.
type PlayerPayload struct {
	Name        string `json:"name"`
	Generic     bool   `json:"generic"`
	OnlineCount int    `json:"online_count"`
	MaxPlayers  int    `json:"max_players"`
}

// MilestonePayload is carried by EventPopulationMilestone.
type MilestonePayload struct {
	Threshold   int `json:"threshold"`
	OnlineCount int `json:"online_count"`
	MaxPlayers  int `json:"max_players"`
}

// ServerFullPayload is carried by EventServerFull.
type ServerFullPayload struct {
	OnlineCount int `json:"online_count"`
	MaxPlayers  int `json:"max_players"`
}

// Variables is the flat host-variable view of the latest snapshot.
type Variables map[string]interface{}

// VariablesPayload is carried by EventVariablesUpdated.
type VariablesPayload struct {
	Variables Variables `json:"variables"`
}

// PollCompletedPayload is carried by EventPollCompleted.
type PollCompletedPayload struct {
	Online      bool          `json:"online"`
	Players     int           `json:"players"`
	MaxPlayers  int           `json:"max_players"`
	QueryFailed bool          `json:"query_failed"`
	Events      int           `json:"events"`
	Duration    time.Duration `json:"duration"`
	PolledAt    time.Time     `json:"polled_at"`
}

// HeartbeatPayload is carried by EventHeartbeat.
type HeartbeatPayload struct {
	Uptime        time.Duration `json:"uptime"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	PollerActive  bool          `json:"poller_active"`
	LastPoll      time.Time     `json:"last_poll"`
	ServerOnline  bool          `json:"server_online"`
}

// ConfigChangedPayload is carried by EventConfigChanged.
type ConfigChangedPayload struct {
	Section string `json:"section"`
}

// Summary renders a one-line human readable description of a lifecycle event.
func (e Event) Summary() string {
	switch p := e.Payload.(type) {
	case ServerOnlinePayload:
		return "Server is online (" + p.Version + ")"
	case ServerOfflinePayload:
		return "Server went offline"
	case PlayerPayload:
		verb := " joined"
		if e.Type == EventPlayerLeft {
			verb = " left"
		}
		return p.Name + verb + " (" + strconv.Itoa(p.OnlineCount) + "/" + strconv.Itoa(p.MaxPlayers) + ")"
	case MilestonePayload:
		return strconv.Itoa(p.Threshold) + " players online"
	case ServerFullPayload:
		return "Server is full (" + strconv.Itoa(p.OnlineCount) + "/" + strconv.Itoa(p.MaxPlayers) + ")"
	default:
		return string(e.Type)
	}
}
