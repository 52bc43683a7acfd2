package raw

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"stream-toolkit/stream"
	uerrors "stream-toolkit/util/errors"
)

// Conn adapts a net.Conn. Go connections block inside Read, so readiness
// is probed by Wait: it reads a single byte under a deadline and keeps it
// for the next Read.
type Conn struct {
	stream.Unsupported

	conn   net.Conn
	peek   []byte
	eof    bool
	closed bool
}

var _ stream.Stream = (*Conn)(nil)

func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		peek: make([]byte, 0, 1),
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.closed {
		return 0, stream.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.peek) > 0 {
		n := copy(p, c.peek)
		c.peek = c.peek[:0]
		return n, nil
	}
	if c.eof {
		return 0, io.EOF
	}
	n, err := c.conn.Read(p)
	if n > 0 {
		if err == io.EOF {
			c.eof = true
		}
		return n, nil
	}
	switch {
	case err == io.EOF:
		c.eof = true
		return 0, io.EOF
	case err != nil:
		return 0, errors.Wrap(err, "unable to read connection")
	}
	return 0, stream.ErrWouldBlockRead
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, stream.ErrClosed
	}
	n, err := c.conn.Write(p)
	if n > 0 {
		return n, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "unable to write connection")
	}
	return 0, nil
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "unable to close connection")
	}
	return nil
}

func (c *Conn) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if c.closed {
		return 0, stream.ErrClosed
	}
	var ready stream.Events
	if events.Has(stream.EventWritable) {
		ready |= stream.EventWritable
	}
	if !events.Has(stream.EventReadable) {
		return ready, nil
	}
	if len(c.peek) > 0 || c.eof {
		return ready | stream.EventReadable, nil
	}
	if ready != 0 {
		return ready, nil
	}
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, errors.Wrap(err, "unable to set read deadline")
	}
	defer c.conn.SetReadDeadline(time.Time{})
	var one [1]byte
	n, err := c.conn.Read(one[:])
	if n > 0 {
		c.peek = append(c.peek, one[0])
		return stream.EventReadable, nil
	}
	switch {
	case err == io.EOF:
		c.eof = true
		return stream.EventReadable, nil
	case uerrors.IsDeadlineError(err):
		return 0, stream.ErrTimeout
	case err != nil:
		return 0, errors.Wrap(err, "unable to wait for connection")
	}
	return 0, stream.ErrTimeout
}

func (c *Conn) Available() (int, error) {
	if c.closed {
		return 0, stream.ErrClosed
	}
	return len(c.peek), nil
}

func (c *Conn) Readable() bool { return true }

func (c *Conn) Writable() bool { return true }

func (c *Conn) Closed() bool { return c.closed }
