package network

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/protocol"
	"github.com/energizer-project/pulse/internal/util"
)

// QueryClient performs the two-step UDP query exchange against a server.
type QueryClient struct {
	Timeout time.Duration

	// SessionID generates the session id sent in the handshake. It is
	// masked before use. Nil selects a pseudo-random source.
	SessionID func() int32

	logger zerolog.Logger
}

// NewQueryClient creates a query client. A zero timeout selects DefaultTimeout.
func NewQueryClient(timeout time.Duration) *QueryClient {
	return &QueryClient{
		Timeout: timeout,
		logger:  util.ComponentLogger("query"),
	}
}

func (c *QueryClient) nextSessionID() int32 {
	if c.SessionID != nil {
		return protocol.MaskSessionID(c.SessionID())
	}
	return protocol.MaskSessionID(rand.Int31())
}

// Query runs handshake and full stat over one UDP socket and returns the
// decoded stat response. The socket is closed before Query returns.
func (c *QueryClient) Query(ctx context.Context, host string, port uint16) (*protocol.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, effectiveTimeout(c.Timeout))
	defer cancel()

	addr := hostPort(host, port)
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, classifyNetError(ctx, "dial "+addr, err)
	}
	defer conn.Close()

	detach := bindDeadline(ctx, conn)
	defer detach()

	buf := make([]byte, protocol.MaxDatagramSize)

	sessionID := c.nextSessionID()
	if _, err := conn.Write(protocol.BuildQueryHandshake(sessionID)); err != nil {
		return nil, classifyNetError(ctx, "write handshake", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, classifyNetError(ctx, "read handshake", err)
	}

	sessionID, token, err := protocol.ParseHandshakeResponse(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("parse handshake: %w", err)
	}

	if _, err := conn.Write(protocol.BuildStatRequest(sessionID, token)); err != nil {
		return nil, classifyNetError(ctx, "write stat request", err)
	}
	n, err = conn.Read(buf)
	if err != nil {
		return nil, classifyNetError(ctx, "read stat", err)
	}

	resp, err := protocol.ParseStatResponse(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("parse stat: %w", err)
	}

	c.logger.Debug().
		Str("addr", addr).
		Int("fields", len(resp.Fields)).
		Int("players", len(resp.Players)).
		Msg("query response received")

	return resp, nil
}
