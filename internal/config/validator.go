package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	md := cfg.GetMonitorData()
	app := cfg.GetApplicationData()
	validateMonitorData(&md, result)
	validateApplicationData(&app, result)

	return result
}

// ValidateMonitorData validates only the monitor section.
func ValidateMonitorData(data MonitorData) *ValidationResult {
	result := &ValidationResult{}
	validateMonitorData(&data, result)
	return result
}

func validateMonitorData(data *MonitorData, result *ValidationResult) {
	host := strings.TrimSpace(data.ServerHost)
	if host == "" {
		result.AddError("monitor_data.server_host", "server host is required")
	} else if strings.ContainsAny(host, " /") {
		result.AddError("monitor_data.server_host",
			fmt.Sprintf("invalid host %q", data.ServerHost))
	}

	validatePort(data.ServerPort, "monitor_data.server_port", result)

	if data.QueryPort != 0 {
		validatePort(data.QueryPort, "monitor_data.query_port", result)
		if !data.UseQuery {
			result.AddWarning("monitor_data.query_port", "query port is set but use_query is disabled")
		}
	}

	if data.PollIntervalSec < MinPollInterval || data.PollIntervalSec > MaxPollInterval {
		result.AddError("monitor_data.poll_interval_sec",
			fmt.Sprintf("poll interval %d out of range (%d-%d)",
				data.PollIntervalSec, MinPollInterval, MaxPollInterval))
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	validateTimers(&data.Timers, result)

	if data.Retention.Enabled {
		if data.Retention.RetentionDays < 1 {
			result.AddError("application_data.retention.retention_days",
				"retention days must be at least 1")
		}
		validateClock(data.Retention.CleanupTime, "application_data.retention.cleanup_time", result)
	}

	// MQTT
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
		if data.MQTT.UseTLS && (data.MQTT.CertFile == "") != (data.MQTT.KeyFile == "") {
			result.AddError("application_data.mqtt.cert_file",
				"client certificate and key must be set together")
		}
	}

	// API
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
		if data.API.TLSEnabled {
			if strings.TrimSpace(data.API.TLSCertFile) == "" {
				result.AddError("application_data.api.tls_cert_file",
					"TLS certificate file is required when TLS is enabled")
			}
			if strings.TrimSpace(data.API.TLSKeyFile) == "" {
				result.AddError("application_data.api.tls_key_file",
					"TLS key file is required when TLS is enabled")
			}
		}
		if data.API.RateLimitRPS < 1 {
			result.AddWarning("application_data.api.rate_limit_rps",
				"rate limit is disabled (0 RPS), this may expose the API to abuse")
		}
		if data.API.AuthToken == "" {
			result.AddWarning("application_data.api.auth_token",
				"no auth token set, control and configure routes are unauthenticated")
		}
		for _, ip := range data.API.IPWhitelist {
			if net.ParseIP(ip) == nil {
				if _, _, err := net.ParseCIDR(ip); err != nil {
					result.AddError("application_data.api.ip_whitelist",
						fmt.Sprintf("invalid IP or CIDR: %s", ip))
				}
			}
		}
	}

	// Discord
	if data.Discord.Enabled {
		u, err := url.Parse(data.Discord.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			result.AddError("application_data.discord.webhook_url",
				"a valid https webhook URL is required when Discord is enabled")
		}
	}
	if data.Discord.OwnerID != "" {
		if len(data.Discord.OwnerID) < 17 || len(data.Discord.OwnerID) > 20 {
			result.AddWarning("application_data.discord.owner_id",
				"Discord owner ID appears invalid (expected 17-20 digit snowflake)")
		}
	}

	if strings.TrimSpace(data.Database.Path) == "" {
		result.AddError("application_data.database.path", "database path is required")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.HeartbeatInterval < 10 {
		result.AddWarning("timers.heartbeat_interval_sec",
			"heartbeat interval less than 10s may cause excessive traffic")
	}
	if timers.HealthCheckInterval < 1 {
		result.AddError("timers.health_check_interval_sec", "health check interval must be positive")
	}
	if timers.SummaryTime != "" {
		validateClock(timers.SummaryTime, "timers.summary_time", result)
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
	}
}

func validateClock(value, field string, result *ValidationResult) {
	if _, err := time.Parse("15:04", value); err != nil {
		result.AddError(field, fmt.Sprintf("invalid time of day %q (expected HH:MM)", value))
	}
}
