package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration, reading
// answers from in and writing prompts to out.
func RunSetupWizard(cfg *Config, in io.Reader, out io.Writer) error {
	return runSetupWizard(cfg, bufio.NewReader(in), out)
}

func runSetupWizard(cfg *Config, reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║            Pulse - First Run Setup           ║")
	fmt.Fprintln(out, "╠══════════════════════════════════════════════╣")
	fmt.Fprintln(out, "║  Tell Pulse which server to watch.           ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	md := cfg.GetMonitorData()
	app := cfg.GetApplicationData()

	fmt.Fprintln(out, "── Server ──")

	md.DisplayName = promptString(reader, out, "Display name (optional)", md.DisplayName)
	md.ServerHost = promptString(reader, out, "Server host", md.ServerHost)
	md.ServerPort = promptInt(reader, out, "Server port", md.ServerPort)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Polling ──")

	md.PollIntervalSec = promptInt(reader, out,
		fmt.Sprintf("Poll interval in seconds (%d-%d)", MinPollInterval, MaxPollInterval), md.PollIntervalSec)
	md.UseQuery = promptBool(reader, out, "Use the query protocol for player names", md.UseQuery)
	if md.UseQuery {
		md.QueryPort = promptInt(reader, out, "Query port (0 = same as server port)", md.QueryPort)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Discord Alerts ──")

	app.Discord.WebhookURL = promptString(reader, out,
		"Discord webhook URL (leave blank to disable)", app.Discord.WebhookURL)
	app.Discord.Enabled = app.Discord.WebhookURL != ""

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── MQTT Telemetry ──")

	app.MQTT.Enabled = promptBool(reader, out, "Enable MQTT telemetry", app.MQTT.Enabled)
	if app.MQTT.Enabled {
		app.MQTT.BrokerURL = promptString(reader, out, "MQTT broker host", app.MQTT.BrokerURL)
		app.MQTT.Port = promptInt(reader, out, "MQTT broker port", app.MQTT.Port)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── REST API ──")

	app.API.AuthToken = promptString(reader, out,
		"API bearer token for control routes (leave blank for none)", app.API.AuthToken)

	cfg.SetMonitorData(md)
	cfg.SetApplicationData(app)

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		fmt.Fprint(out, "  Would you like to try again? (yes/no) [yes]: ")
		input, err := reader.ReadString('\n')
		retry := strings.TrimSpace(input)
		if err != nil && retry == "" {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if retry == "" || strings.ToLower(retry) == "yes" {
			return runSetupWizard(cfg, reader, out)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved successfully!")
	fmt.Fprintf(out, "  Pulse will now watch %s.\n", md.Label())
	fmt.Fprintln(out)

	return nil
}

func promptString(reader *bufio.Reader, out io.Writer, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(out, "  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, out io.Writer, prompt string, defaultVal int) int {
	fmt.Fprintf(out, "  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, out io.Writer, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
