package stream

import (
	"time"

	uatomic "stream-toolkit/util/atomic"
)

// Delegate forwards every operation to exactly one wrapped Stream after
// checking its own open flag. Owns controls whether Close cascades to the
// wrapped stream (autoclose). Other layers embed a *Delegate and override
// the operations they change.
type Delegate struct {
	inner  Stream
	owns   bool
	closed uatomic.Bool
}

var _ Stream = (*Delegate)(nil)

func NewDelegate(inner Stream, owns bool) *Delegate {
	return &Delegate{
		inner: inner,
		owns:  owns,
	}
}

func (d *Delegate) Inner() Stream {
	return d.inner
}

func (d *Delegate) Owns() bool {
	return d.owns
}

func (d *Delegate) SetOwns(owns bool) {
	d.owns = owns
}

// CheckOpen returns ErrClosed once the delegate has been closed.
func (d *Delegate) CheckOpen() error {
	if d.closed.Get() {
		return ErrClosed
	}
	return nil
}

func (d *Delegate) Read(p []byte) (int, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Read(p)
}

func (d *Delegate) Write(p []byte) (int, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Write(p)
}

func (d *Delegate) Flush() error {
	if err := d.CheckOpen(); err != nil {
		return err
	}
	return d.inner.Flush()
}

func (d *Delegate) Seek(offset int64, whence int) (int64, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Seek(offset, whence)
}

func (d *Delegate) Wait(events Events, timeout time.Duration) (Events, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Wait(events, timeout)
}

func (d *Delegate) Available() (int, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Available()
}

func (d *Delegate) Fd() (uintptr, error) {
	if err := d.CheckOpen(); err != nil {
		return 0, err
	}
	return d.inner.Fd()
}

func (d *Delegate) IsTerminal() bool {
	return !d.closed.Get() && d.inner.IsTerminal()
}

func (d *Delegate) Readable() bool {
	return d.inner.Readable()
}

func (d *Delegate) Writable() bool {
	return d.inner.Writable()
}

func (d *Delegate) Seekable() bool {
	return d.inner.Seekable()
}

func (d *Delegate) Closed() bool {
	return d.closed.Get()
}

// Close closes the wrapped stream first when owning it. A would-block
// outcome from the wrapped stream leaves the delegate open so the close can
// be retried; any other error still marks it closed.
func (d *Delegate) Close() error {
	if d.closed.Get() {
		return nil
	}
	if d.owns {
		if err := d.inner.Close(); err != nil {
			if IsWouldBlock(err) {
				return err
			}
			d.closed.Set(true)
			return err
		}
	}
	d.closed.Set(true)
	return nil
}

// Dup returns a new owning delegate over a duplicate of the wrapped handle.
func (d *Delegate) Dup() (Stream, error) {
	inner, err := d.DupInner()
	if err != nil {
		return nil, err
	}
	return NewDelegate(inner, true), nil
}

// DupInner duplicates the wrapped handle. Layers embedding a Delegate use it
// to rebuild themselves around the duplicate.
func (d *Delegate) DupInner() (Stream, error) {
	if err := d.CheckOpen(); err != nil {
		return nil, err
	}
	return d.inner.Dup()
}
