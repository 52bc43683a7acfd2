package stream

import (
	"io"
	"syscall"

	"github.com/pkg/errors"

	uerrors "stream-toolkit/util/errors"
)

// ErrWouldBlock is the category of every would-block outcome. It is a
// control signal, not a failure: retry once the resource becomes ready.
var ErrWouldBlock = errors.New("stream: would block")

// WouldBlockError carries the readiness event to wait for before retrying.
type WouldBlockError struct {
	Events Events
}

func (e *WouldBlockError) Error() string {
	return "stream: would block waiting to become " + e.Events.String()
}

func (e *WouldBlockError) Is(target error) bool {
	return target == ErrWouldBlock
}

var (
	ErrWouldBlockRead  error = &WouldBlockError{Events: EventReadable}
	ErrWouldBlockWrite error = &WouldBlockError{Events: EventWritable}
)

// Wait expiry, re-exported so callers need not import util/errors.
var ErrTimeout = uerrors.ErrTimeout

// ErrInterrupted is reported by resources whose operation was interrupted
// before making progress. The blocking layer retries it.
var ErrInterrupted = errors.New("stream: interrupted")

// Capability misuse.
var (
	ErrClosed       = errors.New("stream: closed stream")
	ErrNotReadable  = errors.New("stream: not opened for reading")
	ErrNotWritable  = errors.New("stream: not opened for writing")
	ErrNotSeekable  = errors.New("stream: not seekable")
	ErrNotSupported = errors.New("stream: operation not supported")
	ErrReadClosed   = errors.New("stream: read side already closed")
	ErrWriteClosed  = errors.New("stream: write side already closed")
)

// ErrBufferFull is returned when pushed-back bytes do not fit the buffer.
var ErrBufferFull = errors.New("stream: buffer capacity exceeded")

var misuse = []error{
	ErrClosed,
	ErrNotReadable,
	ErrNotWritable,
	ErrNotSeekable,
	ErrNotSupported,
	ErrReadClosed,
	ErrWriteClosed,
}

func IsWouldBlock(err error) bool { return errors.Is(err, ErrWouldBlock) }

func IsEndOfData(err error) bool { return errors.Is(err, io.EOF) }

// IsInterrupted reports ErrInterrupted as well as a raw EINTR.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, syscall.EINTR)
}

// IsMisuse reports whether err signals an operation the stream cannot
// perform in its current state.
func IsMisuse(err error) bool {
	for _, m := range misuse {
		if errors.Is(err, m) {
			return true
		}
	}
	return false
}

// WaitEvents returns the events a would-block error asks to wait for, or
// zero if err is not a would-block error.
func WaitEvents(err error) Events {
	var wb *WouldBlockError
	if errors.As(err, &wb) {
		return wb.Events
	}
	if errors.Is(err, ErrWouldBlock) {
		return EventReadable | EventWritable
	}
	return 0
}
