// Package stream defines the capability-checked interface shared by every
// layer of the adapter stack, together with the owned-delegate layer the
// other layers are built from.
package stream

import (
	"io"
	"time"
)

// Events is a bitmask of readiness conditions passed to and returned by Wait.
type Events uint8

const (
	EventReadable Events = 1 << iota
	EventPriority
	EventWritable
)

// NoTimeout makes Wait block until one of the events is ready.
const NoTimeout time.Duration = -1

func (e Events) Has(events Events) bool {
	return e&events != 0
}

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if e.Has(EventReadable) {
		add("readable")
	}
	if e.Has(EventPriority) {
		add("priority")
	}
	if e.Has(EventWritable) {
		add("writable")
	}
	return s
}

// Stream is the primitive interface every layer consumes and exposes.
//
// Read returns between 1 and len(p) bytes, ErrWouldBlockRead when nothing is
// available yet, or io.EOF once no data will ever become available. Unlike
// io.Writer, Write may accept fewer than len(p) bytes without an error and
// callers loop (see util/io.WriteFull); ErrWouldBlockWrite means nothing was
// accepted. Close is idempotent and may ask to be retried with a would-block
// error. Wait blocks for at most timeout (NoTimeout for ever) and reports
// ErrTimeout when nothing became ready.
//
// Operations a resource cannot perform fail with a typed error
// (ErrNotSeekable, ErrNotSupported, ...) instead of being left out, and the
// capability queries never fail.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	Flush() error
	Wait(events Events, timeout time.Duration) (Events, error)
	Dup() (Stream, error)
	Available() (int, error)
	Fd() (uintptr, error)
	IsTerminal() bool

	Readable() bool
	Writable() bool
	Seekable() bool
	Closed() bool
}

// Unsupported provides the rejecting defaults for the optional parts of
// Stream. Resource adapters embed it and override what they support.
type Unsupported struct{}

func (Unsupported) Seek(int64, int) (int64, error) { return 0, ErrNotSeekable }

func (Unsupported) Flush() error { return nil }

func (Unsupported) Dup() (Stream, error) { return nil, ErrNotSupported }

func (Unsupported) Available() (int, error) { return 0, ErrNotSupported }

func (Unsupported) Fd() (uintptr, error) { return 0, ErrNotSupported }

func (Unsupported) IsTerminal() bool { return false }

func (Unsupported) Seekable() bool { return false }
