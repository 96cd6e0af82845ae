package network

import (
	"fmt"
	"net"
	"syscall"
)

// ReuseAddrListenConfig returns a listen config that sets SO_REUSEADDR
// before bind where the platform supports it, so a restarted daemon can
// rebind the API port while the old socket sits in TIME_WAIT.
func ReuseAddrListenConfig() net.ListenConfig {
	if setReuseAddr == nil {
		return net.ListenConfig{}
	}
	return net.ListenConfig{Control: reuseAddrControl}
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = setReuseAddr(fd)
	}); err != nil {
		return fmt.Errorf("control %s socket for %s: %w", network, address, err)
	}
	if sockErr != nil {
		return fmt.Errorf("set SO_REUSEADDR for %s: %w", address, sockErr)
	}
	return nil
}
