// Package buffer implements the buffering layer: one fixed-capacity buffer
// that holds either unread input or unflushed output, never both.
package buffer

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"stream-toolkit/stream"
	umath "stream-toolkit/util/math"
)

// Mode tells what the buffer currently holds.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeRead
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "none"
	}
}

// Engine buffers reads and writes over a wrapped stream it owns.
//
// buf[start:end] is the buffer content. In read mode the first pushed bytes
// of it came from Unread and have no counterpart in the wrapped stream; seek
// arithmetic ignores them. capacity is len(buf) except while an unbuffered
// operation runs, when it is zero.
type Engine struct {
	*stream.Delegate

	cfg Config
	log *logrus.Entry

	buf      []byte
	start    int
	end      int
	capacity int
	mode     Mode
	pushed   int
}

var _ stream.Stream = (*Engine)(nil)

func New(s stream.Stream, cfg Config) *Engine {
	cfg = sanitizeConfig(cfg)
	buf := cfg.Buffer
	if buf == nil {
		buf = make([]byte, cfg.BufferSize)
	}
	return &Engine{
		Delegate: stream.NewDelegate(s, true),
		cfg:      cfg,
		log:      cfg.Logger.WithField("layer", "buffer"),
		buf:      buf,
		capacity: len(buf),
	}
}

func (e *Engine) Mode() Mode {
	return e.mode
}

func (e *Engine) Cap() int {
	return len(e.buf)
}

// Buffered returns the number of unread bytes held in the buffer.
func (e *Engine) Buffered() int {
	if e.mode != ModeRead {
		return 0
	}
	return e.end - e.start
}

func (e *Engine) ReadBufferEmpty() bool {
	return e.Buffered() == 0
}

func (e *Engine) WriteBufferEmpty() bool {
	return e.mode != ModeWrite || e.start == e.end
}

// Available counts buffered bytes plus what the wrapped stream reports.
func (e *Engine) Available() (int, error) {
	if err := e.CheckOpen(); err != nil {
		return 0, err
	}
	n := e.Buffered()
	m, err := e.Delegate.Available()
	if err != nil {
		if n > 0 {
			return n, nil
		}
		return 0, err
	}
	return n + m, nil
}

func (e *Engine) Read(p []byte) (int, error) {
	if err := e.CheckOpen(); err != nil {
		return 0, err
	}
	if !e.Readable() {
		return 0, stream.ErrNotReadable
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.setReadMode(); err != nil {
		return 0, err
	}
	if e.start == e.end {
		if e.capacity == 0 {
			return e.Delegate.Read(p)
		}
		if err := e.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, e.buf[e.start:e.end])
	e.consume(n)
	return n, nil
}

// fill refills the empty read buffer with a single read of the whole
// capacity.
func (e *Engine) fill() error {
	n, err := e.Delegate.Read(e.buf[:e.capacity])
	if n > 0 {
		e.start, e.end, e.pushed = 0, n, 0
		e.log.WithField("op", "fill").Tracef("Buffered %d bytes", n)
		return nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return err
}

func (e *Engine) consume(n int) {
	e.start += n
	if e.pushed > 0 {
		if n > e.pushed {
			n = e.pushed
		}
		e.pushed -= n
	}
	if e.start == e.end {
		e.reset()
	}
}

func (e *Engine) reset() {
	e.start, e.end, e.pushed = 0, 0, 0
}

// ReadBytes reads up to n bytes, refilling as often as needed. A short
// result means the stream ended; the following call reports io.EOF.
func (e *Engine) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, umath.MinInt(n, len(e.buf)))
	for len(out) < n {
		chunk := make([]byte, umath.MinInt(n-len(out), len(e.buf)))
		m, err := e.Read(chunk)
		out = append(out, chunk[:m]...)
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ReadAll reads until the stream ends. Reaching the end is not an error.
func (e *Engine) ReadAll() ([]byte, error) {
	if err := e.CheckOpen(); err != nil {
		return nil, err
	}
	if !e.Readable() {
		return nil, stream.ErrNotReadable
	}
	var out []byte
	for {
		if err := e.setReadMode(); err != nil {
			return out, err
		}
		if e.start == e.end {
			if err := e.fill(); err != nil {
				if err == io.EOF {
					return out, nil
				}
				return out, err
			}
		}
		out = append(out, e.buf[e.start:e.end]...)
		e.consume(e.end - e.start)
	}
}

func (e *Engine) setReadMode() error {
	if e.mode == ModeWrite {
		if err := e.Flush(); err != nil {
			return err
		}
	}
	e.mode = ModeRead
	return nil
}

// Write absorbs as much of p as fits in the buffer, flushing first when
// the buffer is full, and returns the number of bytes absorbed.
func (e *Engine) Write(p []byte) (int, error) {
	if err := e.CheckOpen(); err != nil {
		return 0, err
	}
	if !e.Writable() {
		return 0, stream.ErrNotWritable
	}
	if len(p) == 0 {
		return 0, nil
	}
	if e.capacity == 0 {
		if err := e.flushPending(); err != nil {
			return 0, err
		}
		return e.Delegate.Write(p)
	}
	if err := e.setWriteMode(); err != nil {
		return 0, err
	}
	if e.end == e.capacity && e.start > 0 {
		e.end = copy(e.buf, e.buf[e.start:e.end])
		e.start = 0
	}
	if e.end == e.capacity {
		if err := e.Flush(); err != nil {
			return 0, err
		}
		e.mode = ModeWrite
	}
	n := copy(e.buf[e.end:e.capacity], p)
	e.end += n
	return n, nil
}

// setWriteMode drops unread input. On a seekable stream the wrapped
// position is first moved back over the bytes that were read ahead.
func (e *Engine) setWriteMode() error {
	if e.mode == ModeRead {
		if ahead := e.end - e.start - e.pushed; ahead > 0 && e.Seekable() {
			if _, err := e.Delegate.Seek(int64(-ahead), io.SeekCurrent); err != nil {
				return err
			}
		}
		e.reset()
	}
	e.mode = ModeWrite
	return nil
}

// Flush writes out every buffered byte. Partial progress is kept when the
// wrapped stream fails, so a retried Flush resumes where it stopped.
func (e *Engine) Flush() error {
	if err := e.CheckOpen(); err != nil {
		return err
	}
	if err := e.flushPending(); err != nil {
		return err
	}
	return e.Delegate.Flush()
}

func (e *Engine) flushPending() error {
	if e.mode != ModeWrite {
		return nil
	}
	for e.start < e.end {
		n, err := e.Delegate.Write(e.buf[e.start:e.end])
		e.start += n
		if err != nil {
			e.log.WithError(err).WithField("op", "flush").Debugf("Flush stopped with %d bytes pending", e.end-e.start)
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	e.reset()
	e.mode = ModeNone
	return nil
}

// Seek positions the engine in terms of the wrapped stream, ignoring bytes
// pushed back with Unread.
func (e *Engine) Seek(offset int64, whence int) (int64, error) {
	if err := e.CheckOpen(); err != nil {
		return 0, err
	}
	if whence == io.SeekCurrent && offset == 0 {
		return e.tell()
	}
	if whence == io.SeekCurrent && offset > 0 && e.mode == ModeRead && e.capacity > 0 {
		e.consume(e.pushed)
		if offset <= int64(e.end-e.start) {
			pos, err := e.tell()
			if err != nil {
				return 0, err
			}
			e.consume(int(offset))
			return pos + offset, nil
		}
	}
	switch e.mode {
	case ModeWrite:
		if err := e.flushPending(); err != nil {
			return 0, err
		}
	case ModeRead:
		if whence == io.SeekCurrent {
			offset -= int64(e.end - e.start - e.pushed)
		}
		e.reset()
		e.mode = ModeNone
	}
	return e.Delegate.Seek(offset, whence)
}

func (e *Engine) tell() (int64, error) {
	pos, err := e.Delegate.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	switch e.mode {
	case ModeRead:
		pos -= int64(e.end - e.start - e.pushed)
	case ModeWrite:
		pos += int64(e.end - e.start)
	}
	return pos, nil
}

// Unread pushes p back in front of the unread input, so that the next
// reads return p first.
func (e *Engine) Unread(p []byte) error {
	if err := e.CheckOpen(); err != nil {
		return err
	}
	if !e.Readable() {
		return stream.ErrNotReadable
	}
	if err := e.setReadMode(); err != nil {
		return err
	}
	unread := e.end - e.start
	if unread+len(p) > len(e.buf) {
		return stream.ErrBufferFull
	}
	if e.start < len(p) {
		tail := len(e.buf) - unread
		copy(e.buf[tail:], e.buf[e.start:e.end])
		e.start, e.end = tail, len(e.buf)
	}
	e.start -= len(p)
	copy(e.buf[e.start:], p)
	e.pushed += len(p)
	return nil
}

// UnbufferedRead reads straight from the wrapped stream unless unread
// input is buffered, which is served first. Pending output is flushed.
func (e *Engine) UnbufferedRead(p []byte) (n int, err error) {
	e.unbuffered(func() { n, err = e.Read(p) })
	return
}

// UnbufferedWrite flushes pending output and writes p straight to the
// wrapped stream, leaving buffered input alone.
func (e *Engine) UnbufferedWrite(p []byte) (n int, err error) {
	e.unbuffered(func() { n, err = e.Write(p) })
	return
}

// UnbufferedSeek flushes pending output and seeks the wrapped stream
// directly, leaving buffered input alone.
func (e *Engine) UnbufferedSeek(offset int64, whence int) (pos int64, err error) {
	e.unbuffered(func() {
		if err = e.CheckOpen(); err != nil {
			return
		}
		if err = e.flushPending(); err != nil {
			return
		}
		pos, err = e.Delegate.Seek(offset, whence)
	})
	return
}

func (e *Engine) unbuffered(fn func()) {
	e.capacity = 0
	defer func() { e.capacity = len(e.buf) }()
	fn()
}

// Wait reports readability right away while unread input is buffered.
func (e *Engine) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if err := e.CheckOpen(); err != nil {
		return 0, err
	}
	if events.Has(stream.EventReadable) && e.Buffered() > 0 {
		return stream.EventReadable, nil
	}
	return e.Delegate.Wait(events, timeout)
}

// Close flushes pending output before closing the wrapped stream. A flush
// that would block is returned and the engine stays open.
func (e *Engine) Close() error {
	if e.Closed() {
		return nil
	}
	ferr := e.flushPending()
	if stream.IsWouldBlock(ferr) {
		return ferr
	}
	if ferr != nil {
		e.log.WithError(ferr).Warn("Discarding unflushed output on close")
	}
	cerr := e.Delegate.Close()
	if stream.IsWouldBlock(cerr) {
		return cerr
	}
	e.reset()
	e.mode = ModeNone
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Dup flushes and returns an engine with its own buffer over a duplicate
// of the wrapped stream.
func (e *Engine) Dup() (stream.Stream, error) {
	if err := e.Flush(); err != nil {
		return nil, err
	}
	inner, err := e.DupInner()
	if err != nil {
		return nil, err
	}
	cfg := e.cfg
	cfg.Buffer = nil
	return New(inner, cfg), nil
}
