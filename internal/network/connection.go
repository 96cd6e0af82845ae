// Package network implements the TCP status (ping) and UDP query clients
// used to probe a game server.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/energizer-project/pulse/internal/protocol"
)

// DefaultTimeout bounds one whole ping or query exchange.
const DefaultTimeout = 5 * time.Second

// dialer is shared by both clients. Dial time counts against the exchange
// timeout through the context, so the dialer itself has no timeout.
var dialer net.Dialer

func hostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// bindDeadline applies the context deadline to conn and moves the deadline
// to now once ctx is done, which unblocks any pending Read or Write. The
// returned func detaches the watcher. It never closes conn.
func bindDeadline(ctx context.Context, conn net.Conn) func() {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	return func() { stop() }
}

// classifyNetError maps a socket error onto the protocol error taxonomy.
// Deadline expiry becomes ErrConnectionTimeout, a refused connection
// becomes ErrConnectionRefused, explicit cancellation is reported as is.
func classifyNetError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w", op, protocol.ErrConnectionTimeout)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%s: %w", op, protocol.ErrConnectionRefused)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
