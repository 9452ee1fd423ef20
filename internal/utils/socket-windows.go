//go:build windows

package utils

import (
	"errors"
	"syscall"
)

// tuneSocket disables Nagle and sizes the kernel buffers for segment fetches.
func tuneSocket(fd uintptr, bufSize int) error {
	h := syscall.Handle(fd)
	return errors.Join(
		syscall.SetsockoptInt(h, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1),
		syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_RCVBUF, bufSize),
		syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_SNDBUF, bufSize),
	)
}
