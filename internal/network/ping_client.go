package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/protocol"
	"github.com/energizer-project/pulse/internal/util"
)

// readChunkSize is the size of a single socket read. Responses larger than
// this arrive over several reads and are reassembled.
const readChunkSize = 4096

// PingClient performs the TCP status exchange against a server.
type PingClient struct {
	Timeout time.Duration
	logger  zerolog.Logger
}

// NewPingClient creates a ping client. A zero timeout selects DefaultTimeout.
func NewPingClient(timeout time.Duration) *PingClient {
	return &PingClient{
		Timeout: timeout,
		logger:  util.ComponentLogger("ping"),
	}
}

// Ping connects to host:port, sends the handshake and status request, and
// returns the decoded status. The connection is closed before Ping returns.
func (c *PingClient) Ping(ctx context.Context, host string, port uint16) (*protocol.PingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, effectiveTimeout(c.Timeout))
	defer cancel()

	addr := hostPort(host, port)
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyNetError(ctx, "dial "+addr, err)
	}
	defer conn.Close()

	detach := bindDeadline(ctx, conn)
	defer detach()

	req := protocol.BuildHandshake(host, port)
	req = append(req, protocol.BuildStatusRequest()...)
	if _, err := conn.Write(req); err != nil {
		return nil, classifyNetError(ctx, "write status request", err)
	}

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	reads := 0
	for {
		n, readErr := conn.Read(chunk)
		if n > 0 {
			reads++
			buf = append(buf, chunk[:n]...)

			body, complete, err := protocol.ReadStatusResponse(buf)
			if err != nil {
				return nil, fmt.Errorf("parse status response: %w", err)
			}
			if complete {
				c.logger.Debug().
					Str("addr", addr).
					Int("bytes", len(buf)).
					Int("reads", reads).
					Msg("status response received")
				return protocol.ParsePingResponse(body)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil, fmt.Errorf("%w: connection closed after %d bytes",
					protocol.ErrTruncatedResponse, len(buf))
			}
			return nil, classifyNetError(ctx, "read status response", readErr)
		}
	}
}
