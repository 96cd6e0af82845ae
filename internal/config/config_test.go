package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/energizer-project/pulse/internal/events"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.MonitorData.ServerHost = "mc.example.com"
	return cfg
}

func hasField(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestDefaultConfigNeedsHost(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsFirstRun() {
		t.Error("IsFirstRun = false for default config")
	}

	result := Validate(cfg)
	if !hasField(result.Errors, "monitor_data.server_host") {
		t.Errorf("errors = %+v, want server_host error", result.Errors)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %+v, want only the host error", result.Errors)
	}
}

func TestValidateMonitorData(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MonitorData)
		field   string
		wantErr bool
		wantWrn bool
	}{
		{"valid", func(m *MonitorData) {}, "", false, false},
		{"port_zero", func(m *MonitorData) { m.ServerPort = 0 }, "monitor_data.server_port", true, false},
		{"port_high", func(m *MonitorData) { m.ServerPort = 70000 }, "monitor_data.server_port", true, false},
		{"query_port_bad", func(m *MonitorData) { m.UseQuery = true; m.QueryPort = -1 }, "monitor_data.query_port", true, false},
		{"query_port_unused", func(m *MonitorData) { m.QueryPort = 25566 }, "monitor_data.query_port", false, true},
		{"interval_low", func(m *MonitorData) { m.PollIntervalSec = 9 }, "monitor_data.poll_interval_sec", true, false},
		{"interval_high", func(m *MonitorData) { m.PollIntervalSec = 301 }, "monitor_data.poll_interval_sec", true, false},
		{"interval_min", func(m *MonitorData) { m.PollIntervalSec = 10 }, "", false, false},
		{"interval_max", func(m *MonitorData) { m.PollIntervalSec = 300 }, "", false, false},
		{"host_with_space", func(m *MonitorData) { m.ServerHost = "bad host" }, "monitor_data.server_host", true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			md := validConfig().MonitorData
			tc.mutate(&md)
			result := ValidateMonitorData(md)

			if tc.wantErr != hasField(result.Errors, tc.field) && tc.field != "" {
				t.Errorf("errors = %+v", result.Errors)
			}
			if tc.wantWrn != hasField(result.Warnings, tc.field) && tc.field != "" {
				t.Errorf("warnings = %+v", result.Warnings)
			}
			if tc.field == "" && !result.IsValid() {
				t.Errorf("unexpected errors: %+v", result.Errors)
			}
		})
	}
}

func TestValidateApplicationData(t *testing.T) {
	cfg := validConfig()
	cfg.ApplicationData.MQTT.Enabled = true
	cfg.ApplicationData.Discord.Enabled = true
	cfg.ApplicationData.Discord.WebhookURL = "http://insecure.example.com/hook"
	cfg.ApplicationData.Retention.CleanupTime = "25:99"
	cfg.ApplicationData.API.IPWhitelist = []string{"10.0.0.0/8", "not-an-ip"}

	result := Validate(cfg)
	for _, field := range []string{
		"application_data.mqtt.broker_url",
		"application_data.discord.webhook_url",
		"application_data.retention.cleanup_time",
		"application_data.api.ip_whitelist",
	} {
		if !hasField(result.Errors, field) {
			t.Errorf("missing error for %s in %+v", field, result.Errors)
		}
	}
}

func TestEffectiveQueryPort(t *testing.T) {
	md := MonitorData{ServerPort: 25565}
	if got := md.EffectiveQueryPort(); got != 25565 {
		t.Errorf("EffectiveQueryPort = %d, want 25565", got)
	}
	md.QueryPort = 25575
	if got := md.EffectiveQueryPort(); got != 25575 {
		t.Errorf("EffectiveQueryPort = %d, want 25575", got)
	}
}

func TestLoadCreatesAndOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load (create): %v", err)
	}
	if cfg.GetMonitorData().ServerPort != DefaultServerPort {
		t.Errorf("ServerPort = %d", cfg.GetMonitorData().ServerPort)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	partial := `{"monitor_data":{"server_host":"play.example.net","use_query":true}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("Load (overlay): %v", err)
	}
	md := cfg.GetMonitorData()
	if md.ServerHost != "play.example.net" || !md.UseQuery {
		t.Errorf("monitor data = %+v", md)
	}
	if md.PollIntervalSec != DefaultPollInterval {
		t.Errorf("PollIntervalSec = %d, want default %d", md.PollIntervalSec, DefaultPollInterval)
	}
	if cfg.GetApplicationData().Retention.RetentionDays != 30 {
		t.Error("application defaults not applied")
	}
}

func TestUpdateMonitorField(t *testing.T) {
	cfg := validConfig()

	md, err := cfg.UpdateMonitorField("server_port", 25570)
	if err != nil {
		t.Fatalf("UpdateMonitorField: %v", err)
	}
	if md.ServerPort != 25570 || cfg.GetMonitorData().ServerPort != 25570 {
		t.Errorf("ServerPort = %d", cfg.GetMonitorData().ServerPort)
	}

	if _, err := cfg.UpdateMonitorField("no_such_field", 1); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := cfg.UpdateMonitorField("server_port", "not a number"); err == nil {
		t.Error("expected error for wrong type")
	}
	if cfg.GetMonitorData().ServerPort != 25570 {
		t.Error("failed update modified the configuration")
	}
}

func TestAlertConfigEnabled(t *testing.T) {
	a := AlertConfig{PlayerJoined: true}
	if !a.Enabled(events.EventPlayerJoined) {
		t.Error("player_joined should be enabled")
	}
	if a.Enabled(events.EventPlayerLeft) {
		t.Error("player_left should be disabled")
	}
	if a.Enabled(events.EventHeartbeat) {
		t.Error("non-alert types are never enabled")
	}
}

func TestRunSetupWizard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), DefaultConfigFile))

	answers := strings.Join([]string{
		"Lobby",          // display name
		"mc.example.com", // host
		"",               // port (default)
		"60",             // interval
		"yes",            // use query
		"25575",          // query port
		"",               // discord webhook
		"no",             // mqtt
		"secret",         // api token
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := RunSetupWizard(cfg, strings.NewReader(answers), &out); err != nil {
		t.Fatalf("RunSetupWizard: %v\n%s", err, out.String())
	}

	md := cfg.GetMonitorData()
	if md.ServerHost != "mc.example.com" || md.ServerPort != DefaultServerPort {
		t.Errorf("server = %s:%d", md.ServerHost, md.ServerPort)
	}
	if md.PollIntervalSec != 60 || !md.UseQuery || md.QueryPort != 25575 {
		t.Errorf("monitor data = %+v", md)
	}
	if cfg.GetApplicationData().API.AuthToken != "secret" {
		t.Error("auth token not stored")
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Errorf("config not saved: %v", err)
	}
}
