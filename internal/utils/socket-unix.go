//go:build linux || darwin

package utils

import (
	"errors"
	"syscall"
)

// tuneSocket disables Nagle and sizes the kernel buffers for segment fetches.
func tuneSocket(fd uintptr, bufSize int) error {
	return errors.Join(
		syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1),
		syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, bufSize),
		syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, bufSize),
	)
}
