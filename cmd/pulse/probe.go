package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/energizer-project/pulse/internal/cli"
	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/network"
	"github.com/energizer-project/pulse/internal/util"
)

type probeOptions struct {
	timeout  time.Duration
	asJSON   bool
	logLevel string
}

func (o *probeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVarP(&o.timeout, "timeout", "t", network.DefaultTimeout, "Timeout for the whole exchange")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print the raw response as JSON")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
}

func pingCmd() *cobra.Command {
	opts := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "ping <host[:port]>",
		Short: "Query a server's status over TCP once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			util.InitConsoleLogger(opts.logLevel, cmd.ErrOrStderr())

			host, port, err := parseTarget(args[0], config.DefaultServerPort)
			if err != nil {
				return err
			}

			client := network.NewPingClient(opts.timeout)
			start := time.Now()
			resp, err := client.Ping(cmd.Context(), host, port)
			if err != nil {
				return err
			}
			rtt := time.Since(start)

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			cli.RenderPing(cmd.OutOrStdout(), net.JoinHostPort(host, strconv.Itoa(int(port))), resp, rtt)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func queryCmd() *cobra.Command {
	opts := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "query <host[:port]>",
		Short: "Fetch full stats over the UDP query protocol once",
		Long: `Fetch full stats over the UDP query protocol once.

The server must have enable-query=true. The port defaults to 25565.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			util.InitConsoleLogger(opts.logLevel, cmd.ErrOrStderr())

			host, port, err := parseTarget(args[0], config.DefaultServerPort)
			if err != nil {
				return err
			}

			client := network.NewQueryClient(opts.timeout)
			resp, err := client.Query(cmd.Context(), host, port)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			cli.RenderQuery(cmd.OutOrStdout(), net.JoinHostPort(host, strconv.Itoa(int(port))), resp)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

// parseTarget splits host[:port]. Bracketed and bare IPv6 literals are
// accepted.
func parseTarget(target string, defaultPort int) (string, uint16, error) {
	host, portStr := target, ""
	if h, p, err := net.SplitHostPort(target); err == nil {
		host, portStr = h, p
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid target %q: missing host", target)
	}

	port := defaultPort
	if portStr != "" {
		n, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || n == 0 {
			return "", 0, fmt.Errorf("invalid target %q: bad port %q", target, portStr)
		}
		port = int(n)
	}
	return host, uint16(port), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
