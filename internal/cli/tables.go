package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/pulse/internal/monitor"
	"github.com/energizer-project/pulse/internal/protocol"
)

func newKVTable(w io.Writer) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	return tw
}

// RenderSnapshot prints a monitor snapshot as a two-column table.
func RenderSnapshot(w io.Writer, s monitor.Snapshot) {
	tw := newKVTable(w)
	if !s.Online {
		tw.Append([]string{"Online", "no"})
		tw.Append([]string{"Polled", s.PolledAt.Local().Format(time.DateTime)})
		tw.Render()
		return
	}

	tw.Append([]string{"Online", "yes"})
	tw.Append([]string{"Players", fmt.Sprintf("%d/%d", s.PlayersOnline, s.PlayersMax)})
	tw.Append([]string{"Version", fmt.Sprintf("%s (protocol %d)", s.Version, s.ProtocolVersion)})
	tw.Append([]string{"MOTD", s.MOTD})
	if s.Map != "" {
		tw.Append([]string{"Map", s.Map})
	}
	if s.GameType != "" {
		tw.Append([]string{"Game type", s.GameType})
	}
	if len(s.PlayerList) > 0 {
		tw.Append([]string{"Player list", strings.Join(s.PlayerList, ", ")})
	}
	tw.Append([]string{"Polled", s.PolledAt.Local().Format(time.DateTime)})
	tw.Render()
}

// RenderPing prints a status ping response.
func RenderPing(w io.Writer, target string, resp *protocol.PingResponse, rtt time.Duration) {
	tw := newKVTable(w)
	tw.SetHeader([]string{"Field", "Value"})
	tw.Append([]string{"Server", target})
	tw.Append([]string{"Version", resp.VersionName})
	tw.Append([]string{"Protocol", strconv.Itoa(resp.ProtocolVersion)})
	tw.Append([]string{"Players", fmt.Sprintf("%d/%d", resp.PlayersOnline, resp.PlayersMax)})
	tw.Append([]string{"MOTD", resp.Description})
	if len(resp.Sample) > 0 {
		names := make([]string, len(resp.Sample))
		for i, p := range resp.Sample {
			names[i] = p.Name
		}
		tw.Append([]string{"Sample", strings.Join(names, ", ")})
	}
	tw.Append([]string{"Round trip", rtt.Round(time.Millisecond).String()})
	tw.Render()
}

// RenderQuery prints every key/value of a full stat response followed by
// the player list.
func RenderQuery(w io.Writer, target string, resp *protocol.QueryResponse) {
	tw := newKVTable(w)
	tw.SetHeader([]string{"Key", "Value"})
	tw.Append([]string{"server", target})
	for _, kv := range resp.Fields {
		tw.Append([]string{kv.Key, kv.Value})
	}
	tw.Render()

	if len(resp.Players) == 0 {
		fmt.Fprintln(w, "No players online")
		return
	}
	pt := tablewriter.NewWriter(w)
	pt.SetHeader([]string{"#", "Player"})
	pt.SetBorder(true)
	for i, name := range resp.Players {
		pt.Append([]string{strconv.Itoa(i + 1), name})
	}
	pt.Render()
}
