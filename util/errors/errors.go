package errors

import (
	"errors"
	"net"
	"os"
)

// ErrTimeout is returned by Wait when none of the requested events became
// ready before the timeout elapsed.
var ErrTimeout = errors.New("timeout")

// IsDeadlineError reports whether err is a wait timeout or an expired
// deadline reported by a net.Conn or *os.File.
func IsDeadlineError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	err = errors.Unwrap(err)
	if err == nil {
		return false
	}
	return err.Error() == "i/o timeout"
}
