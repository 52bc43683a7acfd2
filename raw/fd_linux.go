//go:build linux
// +build linux

package raw

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"stream-toolkit/stream"
	uatomic "stream-toolkit/util/atomic"
)

// FD adapts an operating system descriptor. The descriptor is switched to
// non-blocking mode so reads and writes report would-block instead of
// parking the calling goroutine.
type FD struct {
	fd       int
	access   Access
	seekable bool
	closed   uatomic.Bool
}

var _ stream.Stream = (*FD)(nil)

// NewFD takes ownership of fd.
func NewFD(fd int, access Access) (*FD, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errors.Wrap(err, "unable to set descriptor non-blocking")
	}
	_, err := unix.Seek(fd, 0, io.SeekCurrent)
	return &FD{
		fd:       fd,
		access:   access,
		seekable: err == nil,
	}, nil
}

// FromFile adapts a duplicate of f's descriptor; f stays usable and must
// still be closed by the caller.
func FromFile(f *os.File, access Access) (*FD, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, "unable to duplicate descriptor")
	}
	s, err := NewFD(fd, access)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func (s *FD) Read(p []byte) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if !s.access.Readable() {
		return 0, stream.ErrNotReadable
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(s.fd, p)
	switch {
	case err == unix.EAGAIN:
		return 0, stream.ErrWouldBlockRead
	case err == unix.EINTR:
		return 0, stream.ErrInterrupted
	case err != nil:
		return 0, errors.Wrap(err, "unable to read descriptor")
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

func (s *FD) Write(p []byte) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if !s.access.Writable() {
		return 0, stream.ErrNotWritable
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Write(s.fd, p)
	switch {
	case err == unix.EAGAIN:
		return 0, stream.ErrWouldBlockWrite
	case err == unix.EINTR:
		return 0, stream.ErrInterrupted
	case err != nil:
		return 0, errors.Wrap(err, "unable to write descriptor")
	}
	return n, nil
}

func (s *FD) Flush() error {
	return s.check()
}

func (s *FD) Seek(offset int64, whence int) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	pos, err := unix.Seek(s.fd, offset, whence)
	switch {
	case err == unix.ESPIPE:
		return 0, stream.ErrNotSeekable
	case err != nil:
		return 0, errors.Wrap(err, "unable to seek descriptor")
	}
	return pos, nil
}

func (s *FD) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// EINTR still releases the descriptor on Linux.
	if err := unix.Close(s.fd); err != nil && err != unix.EINTR {
		return errors.Wrap(err, "unable to close descriptor")
	}
	return nil
}

func (s *FD) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var pollEvents int16
	if events.Has(stream.EventReadable) {
		pollEvents |= unix.POLLIN
	}
	if events.Has(stream.EventPriority) {
		pollEvents |= unix.POLLPRI
	}
	if events.Has(stream.EventWritable) {
		pollEvents |= unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: pollEvents}}
	n, err := unix.Poll(fds, pollTimeout(timeout))
	switch {
	case err == unix.EINTR:
		return 0, stream.ErrInterrupted
	case err != nil:
		return 0, errors.Wrap(err, "unable to poll descriptor")
	case n == 0:
		return 0, stream.ErrTimeout
	}
	revents := fds[0].Revents
	var ready stream.Events
	// Hang-ups and errors are reported as readiness; the next operation
	// surfaces the condition.
	if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 && events.Has(stream.EventReadable) {
		ready |= stream.EventReadable
	}
	if revents&unix.POLLPRI != 0 {
		ready |= stream.EventPriority
	}
	if revents&(unix.POLLOUT|unix.POLLERR) != 0 && events.Has(stream.EventWritable) {
		ready |= stream.EventWritable
	}
	return ready, nil
}

func pollTimeout(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}

func (s *FD) Dup() (stream.Stream, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	fd, err := unix.Dup(s.fd)
	if err != nil {
		return nil, errors.Wrap(err, "unable to duplicate descriptor")
	}
	return &FD{fd: fd, access: s.access, seekable: s.seekable}, nil
}

func (s *FD) Available() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	n, err := unix.IoctlGetInt(s.fd, unix.TIOCINQ)
	if err != nil {
		return 0, errors.Wrap(err, "unable to query readable bytes")
	}
	return n, nil
}

func (s *FD) Fd() (uintptr, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return uintptr(s.fd), nil
}

func (s *FD) IsTerminal() bool {
	return !s.closed.Get() && isatty.IsTerminal(uintptr(s.fd))
}

func (s *FD) Readable() bool { return s.access.Readable() }

func (s *FD) Writable() bool { return s.access.Writable() }

func (s *FD) Seekable() bool { return s.seekable }

func (s *FD) Closed() bool { return s.closed.Get() }

func (s *FD) check() error {
	if s.closed.Get() {
		return stream.ErrClosed
	}
	return nil
}
