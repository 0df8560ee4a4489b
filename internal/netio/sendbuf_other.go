//go:build windows

package netio

import "syscall"

const defaultSendBufferSize = 64 * 1024

type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// SendBufferSize always returns the design-value default on platforms
// where reading SO_SNDBUF via golang.org/x/sys/unix isn't available.
func SendBufferSize(sc syscallConn) int { return defaultSendBufferSize }
