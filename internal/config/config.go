// Package config handles configuration loading, validation, and persistence
// for the Pulse server monitor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/pulse/internal/events"
)

const (
	DefaultConfigDir    = "config"
	DefaultConfigFile   = "config.json"
	DefaultAPIPort      = 5080
	DefaultServerPort   = 25565
	DefaultPollInterval = 30
	MinPollInterval     = 10
	MaxPollInterval     = 300
)

// Config is the root configuration structure for Pulse.
type Config struct {
	mu   sync.RWMutex
	path string

	MonitorData     MonitorData     `json:"monitor_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// MonitorData describes the monitored server and how it is polled.
type MonitorData struct {
	DisplayName string `json:"display_name"`
	ServerHost  string `json:"server_host"`
	ServerPort  int    `json:"server_port"`

	// QueryPort 0 means the query protocol shares ServerPort.
	QueryPort int  `json:"query_port"`
	UseQuery  bool `json:"use_query"`

	PollIntervalSec int `json:"poll_interval_sec"`
}

// EffectiveQueryPort returns the UDP port the query client should use.
func (m MonitorData) EffectiveQueryPort() int {
	if m.QueryPort == 0 {
		return m.ServerPort
	}
	return m.QueryPort
}

// PollInterval returns the poll interval as a duration.
func (m MonitorData) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSec) * time.Second
}

// Label returns the display name, falling back to host:port.
func (m MonitorData) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return fmt.Sprintf("%s:%d", m.ServerHost, m.ServerPort)
}

// ApplicationData contains monitor application configuration.
type ApplicationData struct {
	Timers    TimerConfig     `json:"timers"`
	Alerts    AlertConfig     `json:"alerts"`
	Retention RetentionConfig `json:"retention"`
	Discord   DiscordConfig   `json:"discord"`
	MQTT      MQTTConfig      `json:"mqtt"`
	API       APIConfig       `json:"api"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
}

// TimerConfig holds health check and task interval settings.
type TimerConfig struct {
	HeartbeatInterval   int    `json:"heartbeat_interval_sec"`
	HealthCheckInterval int    `json:"health_check_interval_sec"`
	SummaryTime         string `json:"summary_time"`
}

// AlertConfig selects which lifecycle events are forwarded to notifiers.
type AlertConfig struct {
	ServerOnline        bool `json:"server_online"`
	ServerOffline       bool `json:"server_offline"`
	PlayerJoined        bool `json:"player_joined"`
	PlayerLeft          bool `json:"player_left"`
	PopulationMilestone bool `json:"population_milestone"`
	ServerFull          bool `json:"server_full"`
}

// Enabled reports whether alerts of type t should be delivered.
func (a AlertConfig) Enabled(t events.EventType) bool {
	switch t {
	case events.EventServerOnline:
		return a.ServerOnline
	case events.EventServerOffline:
		return a.ServerOffline
	case events.EventPlayerJoined:
		return a.PlayerJoined
	case events.EventPlayerLeft:
		return a.PlayerLeft
	case events.EventPopulationMilestone:
		return a.PopulationMilestone
	case events.EventServerFull:
		return a.ServerFull
	default:
		return false
	}
}

// RetentionConfig holds alert history cleanup settings.
type RetentionConfig struct {
	Enabled       bool   `json:"enabled"`
	CleanupTime   string `json:"cleanup_time"`
	RetentionDays int    `json:"retention_days"`
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
	Username   string `json:"username"`
	OwnerID    string `json:"owner_id"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// APIConfig holds REST API and security settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	AuthToken      string   `json:"auth_token"`
	MetricsEnabled bool     `json:"metrics_enabled"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MonitorData: MonitorData{
			ServerPort:      DefaultServerPort,
			PollIntervalSec: DefaultPollInterval,
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				HeartbeatInterval:   60,
				HealthCheckInterval: 30,
				SummaryTime:         "00:05",
			},
			Alerts: AlertConfig{
				ServerOnline:        true,
				ServerOffline:       true,
				PlayerJoined:        true,
				PlayerLeft:          true,
				PopulationMilestone: true,
				ServerFull:          true,
			},
			Retention: RetentionConfig{
				Enabled:       true,
				CleanupTime:   "04:00",
				RetentionDays: 30,
			},
			Discord: DiscordConfig{
				Username: "Pulse",
			},
			MQTT: MQTTConfig{
				Port:        1883,
				TopicPrefix: "pulse",
			},
			API: APIConfig{
				Enabled:        true,
				Port:           DefaultAPIPort,
				RateLimitRPS:   100,
				MetricsEnabled: true,
			},
			Database: DatabaseConfig{
				Path: filepath.Join("data", "pulse.db"),
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file. A missing file is created
// from defaults.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Persist any default fields the file did not have yet.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetMonitorData returns a copy of the monitor configuration.
func (c *Config) GetMonitorData() MonitorData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MonitorData
}

// SetMonitorData replaces the monitor configuration.
func (c *Config) SetMonitorData(data MonitorData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MonitorData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateMonitorField sets one monitor_data field by its JSON key and
// returns the resulting monitor configuration. The stored configuration is
// left untouched when the key is unknown or the value has the wrong type.
func (c *Config) UpdateMonitorField(key string, value interface{}) (MonitorData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := ApplyMonitorField(c.MonitorData, key, value)
	if err != nil {
		return c.MonitorData, err
	}
	c.MonitorData = next
	return next, nil
}

// ApplyMonitorField returns a copy of data with the field named by its JSON
// key set to value.
func ApplyMonitorField(data MonitorData, key string, value interface{}) (MonitorData, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return data, fmt.Errorf("failed to marshal monitor data: %w", err)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(raw, &m); err != nil {
		return data, fmt.Errorf("failed to decode monitor data: %w", err)
	}

	if _, ok := m[key]; !ok {
		return data, fmt.Errorf("unknown monitor field %q", key)
	}
	m[key] = value

	updated, err := json.Marshal(m)
	if err != nil {
		return data, fmt.Errorf("failed to update field %s: %w", key, err)
	}
	next := data
	if err := json.Unmarshal(updated, &next); err != nil {
		return data, fmt.Errorf("failed to update field %s: %w", key, err)
	}
	return next, nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// SetPath overrides where Save writes the configuration.
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MonitorData.ServerHost == ""
}
