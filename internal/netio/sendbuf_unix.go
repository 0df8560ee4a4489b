//go:build !windows

package netio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// defaultSendBufferSize caps what the acceptor reports: the OS
// send-buffer size is read once and bounded to a reasonable maximum
// rather than trusting an arbitrarily large kernel default.
const defaultSendBufferSize = 64 * 1024

// syscallConn is satisfied by both *net.TCPConn and *net.TCPListener,
// letting SendBufferSize read SO_SNDBUF straight off the listening
// socket.
type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// SendBufferSize reads sc's SO_SNDBUF via getsockopt, bounded to
// defaultSendBufferSize. Any failure (non-TCP socket, syscall error)
// falls back to the default rather than failing startup over an
// optimization.
func SendBufferSize(sc syscallConn) int {
	raw, err := sc.SyscallConn()
	if err != nil {
		return defaultSendBufferSize
	}

	var size int
	var sockErr error
	if ctlErr := raw.Control(func(fd uintptr) {
		size, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
	}); ctlErr != nil || sockErr != nil || size <= 0 {
		return defaultSendBufferSize
	}
	if size > defaultSendBufferSize {
		return defaultSendBufferSize
	}
	return size
}
