// Package cli implements the interactive command-line interface for Pulse
// and the table renderers used by the one-shot probe commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/db"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/monitor"
)

const defaultAlertCount = 10

// AlertHistory is the part of the store the alerts command reads.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]db.Alert, error)
}

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	plugin   *monitor.Plugin
	history  AlertHistory

	in  io.Reader
	out io.Writer
}

// NewCLI creates a CLI reading stdin and writing stdout. history may be nil.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, plugin *monitor.Plugin, history AlertHistory) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		plugin:   plugin,
		history:  history,
		in:       os.Stdin,
		out:      os.Stdout,
	}
}

// Start runs the command loop until ctx is cancelled or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nPulse CLI ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, "─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "pulse> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.Execute(ctx, line); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// Execute runs a single command line.
func (c *CLI) Execute(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "players", "p":
		c.printPlayers()
	case "poll":
		c.cmdPoll(ctx)
	case "alerts":
		return c.cmdAlerts(ctx, args)
	case "start":
		return c.cmdStart()
	case "stop":
		c.plugin.StopPolling()
		fmt.Fprintln(c.out, "Polling stopped")
	case "setconfig":
		return c.cmdSetConfig(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down Pulse...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.out, "║                      Pulse CLI Commands                      ║")
	fmt.Fprintln(c.out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(c.out, "║  status             Show the latest server snapshot          ║")
	fmt.Fprintln(c.out, "║  players            List players from the latest poll        ║")
	fmt.Fprintln(c.out, "║  poll               Poll the server now                      ║")
	fmt.Fprintln(c.out, "║  alerts [n]         Show the n most recent alerts            ║")
	fmt.Fprintln(c.out, "║  start              Start periodic polling                   ║")
	fmt.Fprintln(c.out, "║  stop               Stop periodic polling                    ║")
	fmt.Fprintln(c.out, "║  setconfig <k> <v>  Update a monitor setting                 ║")
	fmt.Fprintln(c.out, "║  quit               Shutdown Pulse                           ║")
	fmt.Fprintln(c.out, "║  help               Show this help message                   ║")
	fmt.Fprintln(c.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.out)
}

// printStatus displays the latest snapshot in a table.
func (c *CLI) printStatus() {
	poller := c.plugin.Poller()
	last, ok := poller.Last()
	if !ok {
		fmt.Fprintf(c.out, "No poll completed yet (polling active: %v)\n", poller.Active())
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  Server:  %s\n", c.cfg.GetMonitorData().Label())
	fmt.Fprintf(c.out, "  Polling: %v (%d polls)\n", poller.Active(), poller.Polls())
	RenderSnapshot(c.out, last.Snapshot)
	if last.PingErr != nil {
		fmt.Fprintf(c.out, "  Ping error:  %v\n", last.PingErr)
	}
	if last.QueryErr != nil {
		fmt.Fprintf(c.out, "  Query error: %v\n", last.QueryErr)
	}
	fmt.Fprintln(c.out)
}

// printPlayers lists the players from the latest poll.
func (c *CLI) printPlayers() {
	last, ok := c.plugin.Poller().Last()
	if !ok {
		fmt.Fprintln(c.out, "No poll completed yet")
		return
	}
	snap := last.Snapshot
	if !snap.Online {
		fmt.Fprintln(c.out, "Server is offline")
		return
	}

	fmt.Fprintf(c.out, "%d/%d players online\n", snap.PlayersOnline, snap.PlayersMax)
	if len(snap.PlayerList) == 0 {
		if !c.cfg.GetMonitorData().UseQuery {
			fmt.Fprintln(c.out, "(enable use_query to see player names)")
		}
		return
	}
	for _, name := range snap.PlayerList {
		fmt.Fprintf(c.out, "  - %s\n", name)
	}
}

func (c *CLI) cmdPoll(ctx context.Context) {
	snap, evts := c.plugin.PollNow(ctx)
	RenderSnapshot(c.out, snap)
	if len(evts) == 0 {
		fmt.Fprintln(c.out, "No changes")
		return
	}
	for _, e := range evts {
		fmt.Fprintf(c.out, "  * %s\n", e.Summary())
	}
}

func (c *CLI) cmdAlerts(ctx context.Context, args []string) error {
	if c.history == nil {
		return fmt.Errorf("alert history is not available")
	}

	count := defaultAlertCount
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		count = n
	}

	alerts, err := c.history.RecentAlerts(ctx, count)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(c.out, "No alerts recorded")
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Time", "Type", "Message"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, a := range alerts {
		tw.Append([]string{
			a.CreatedAt.Local().Format(time.DateTime),
			a.Type,
			a.Message,
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdStart() error {
	if err := c.plugin.StartPolling(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Polling started")
	return nil
}

func (c *CLI) cmdSetConfig(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	raw := strings.Join(args[1:], " ")

	data, err := config.ApplyMonitorField(c.cfg.GetMonitorData(), key, parseValue(raw))
	if err != nil {
		return err
	}
	if err := c.plugin.OnSettingsUpdate(ctx, data); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config updated: %s = %s\n", key, raw)
	return nil
}

// parseValue interprets numbers and booleans; anything else is a string.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case float64, bool:
			return v
		}
	}
	return raw
}
