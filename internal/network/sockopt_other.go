//go:build !linux && !darwin && !windows

package network

// Nil: the default listen config is used.
var setReuseAddr func(fd uintptr) error
