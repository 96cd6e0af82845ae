//go:build linux || darwin

package network

import "syscall"

var setReuseAddr = func(fd uintptr) error {
	return syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
