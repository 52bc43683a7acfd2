// Package duplex joins a read stream and a write stream into one stream
// whose halves can be closed independently.
package duplex

import (
	"time"

	"stream-toolkit/stream"
)

// Stream routes reads to one delegate and writes to another. The two may
// be the same resource, in which case closing either half closes it.
type Stream struct {
	reader *stream.Delegate
	writer *stream.Delegate
}

var _ stream.Stream = (*Stream)(nil)

// New combines reader and writer. A nil writer, or one equal to reader,
// makes a non-duplex stream over a single resource. When owns is set,
// closing a half closes the matching resource.
func New(reader, writer stream.Stream, owns bool) *Stream {
	r := stream.NewDelegate(reader, owns)
	w := r
	if writer != nil && writer != reader {
		w = stream.NewDelegate(writer, owns)
	}
	return &Stream{reader: r, writer: w}
}

// IsDuplex reports whether the halves are distinct resources.
func (s *Stream) IsDuplex() bool {
	return s.reader != s.writer
}

func (s *Stream) Reader() stream.Stream {
	return s.reader.Inner()
}

func (s *Stream) Writer() stream.Stream {
	return s.writer.Inner()
}

func (s *Stream) ClosedRead() bool {
	return s.reader.Closed()
}

func (s *Stream) ClosedWrite() bool {
	return s.writer.Closed()
}

func (s *Stream) Closed() bool {
	return s.ClosedRead() && s.ClosedWrite()
}

func (s *Stream) checkRead() error {
	switch {
	case s.Closed():
		return stream.ErrClosed
	case s.ClosedRead():
		return stream.ErrReadClosed
	}
	return nil
}

func (s *Stream) checkWrite() error {
	switch {
	case s.Closed():
		return stream.ErrClosed
	case s.ClosedWrite():
		return stream.ErrWriteClosed
	}
	return nil
}

// either is the half used by operations with no direction.
func (s *Stream) either() *stream.Delegate {
	if s.ClosedRead() {
		return s.writer
	}
	return s.reader
}

func (s *Stream) Read(p []byte) (int, error) {
	if err := s.checkRead(); err != nil {
		return 0, err
	}
	return s.reader.Read(p)
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.checkRead(); err != nil {
		return 0, err
	}
	return s.reader.Seek(offset, whence)
}

func (s *Stream) Available() (int, error) {
	if err := s.checkRead(); err != nil {
		return 0, err
	}
	return s.reader.Available()
}

func (s *Stream) Write(p []byte) (int, error) {
	if err := s.checkWrite(); err != nil {
		return 0, err
	}
	return s.writer.Write(p)
}

func (s *Stream) Flush() error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	return s.writer.Flush()
}

// Wait asks the reader for readability and the writer for writability.
// When both are requested from distinct resources, the reader is polled
// first without blocking.
func (s *Stream) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if s.Closed() {
		return 0, stream.ErrClosed
	}
	if !s.IsDuplex() {
		return s.reader.Wait(events, timeout)
	}
	readEvents := events &^ stream.EventWritable
	writeEvents := events & stream.EventWritable
	if s.ClosedRead() {
		readEvents = 0
	}
	if s.ClosedWrite() {
		writeEvents = 0
	}
	switch {
	case readEvents == 0 && writeEvents == 0:
		if events.Has(stream.EventWritable) {
			return 0, stream.ErrWriteClosed
		}
		return 0, stream.ErrReadClosed
	case writeEvents == 0:
		return s.reader.Wait(readEvents, timeout)
	case readEvents == 0:
		return s.writer.Wait(writeEvents, timeout)
	}
	ready, err := s.reader.Wait(readEvents, 0)
	if err == nil && ready != 0 {
		return ready, nil
	}
	if err != nil && !stream.IsMisuse(err) && err != stream.ErrTimeout {
		return 0, err
	}
	return s.writer.Wait(writeEvents, timeout)
}

func (s *Stream) Fd() (uintptr, error) {
	if s.Closed() {
		return 0, stream.ErrClosed
	}
	return s.either().Fd()
}

func (s *Stream) IsTerminal() bool {
	return !s.Closed() && s.either().IsTerminal()
}

func (s *Stream) Readable() bool {
	return !s.ClosedRead() && s.reader.Readable()
}

func (s *Stream) Writable() bool {
	return !s.ClosedWrite() && s.writer.Writable()
}

func (s *Stream) Seekable() bool {
	return s.reader.Seekable()
}

// CloseRead closes the read half. On a non-duplex stream it closes the
// whole stream.
func (s *Stream) CloseRead() error {
	if s.ClosedRead() {
		return stream.ErrReadClosed
	}
	return s.reader.Close()
}

// CloseWrite closes the write half. On a non-duplex stream it closes the
// whole stream.
func (s *Stream) CloseWrite() error {
	if s.ClosedWrite() {
		return stream.ErrWriteClosed
	}
	return s.writer.Close()
}

// Close closes the write half, then the read half, skipping halves that
// are already closed. A would-block from the write half stops before the
// read half; any other failure still closes the read half and the first
// error is returned.
func (s *Stream) Close() error {
	var first error
	if !s.ClosedWrite() {
		if err := s.CloseWrite(); err != nil {
			if stream.IsWouldBlock(err) {
				return err
			}
			first = err
		}
	}
	if !s.ClosedRead() {
		if err := s.CloseRead(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dup duplicates each distinct open resource into a new owning stream.
func (s *Stream) Dup() (stream.Stream, error) {
	if s.Closed() {
		return nil, stream.ErrClosed
	}
	if !s.IsDuplex() {
		r, err := s.reader.DupInner()
		if err != nil {
			return nil, err
		}
		return New(r, nil, true), nil
	}
	if s.ClosedRead() || s.ClosedWrite() {
		return nil, stream.ErrNotSupported
	}
	r, err := s.reader.DupInner()
	if err != nil {
		return nil, err
	}
	w, err := s.writer.DupInner()
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return New(r, w, true), nil
}
