package obsbot

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotConnected is returned by a socket that has no live connection.
	ErrNotConnected = errors.New("socket is not connected")

	// ErrDecode marks an inbound message whose arguments do not have the
	// shape its address promises.
	ErrDecode = errors.New("unexpected message payload")
)

var errorReasons = []struct {
	target error
	reason string
}{
	{syscall.EADDRNOTAVAIL, "The requested address is not available on this machine"},
	{syscall.ECONNREFUSED, "Connection refused by the device"},
	{syscall.EADDRINUSE, "The listen port is already in use"},
	{syscall.ETIMEDOUT, "Connection timed out"},
	{syscall.ECONNRESET, "Connection reset by the device"},
	{syscall.EHOSTUNREACH, "Device is unreachable"},
	{syscall.ENETUNREACH, "Network is unreachable"},
	{io.EOF, "Connection closed by the device"},
}

// describeError maps transport errors onto a message a user can act on. The
// second result is false for errors of unknown shape, whose text is returned
// verbatim.
func describeError(err error) (string, bool) {
	for _, r := range errorReasons {
		if errors.Is(err, r.target) {
			return r.reason, true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "Could not resolve device address " + dnsErr.Name, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Connection timed out", true
	}

	return err.Error(), false
}
