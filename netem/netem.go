// Package netem emulates an unreliable resource underneath any stream:
// short reads and writes, spurious would-block outcomes and interrupted
// calls, injected at a configurable cadence.
package netem

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"stream-toolkit/stream"
)

type Config struct {
	// The maximum number of bytes handed out by a single read.
	// Zero value means no emulation of fragmentation.
	ReadFragmentSize int
	// Read at every nth call reports would-block without touching the stream.
	// Zero value means no emulation.
	ReadWouldBlockNth int
	// Read at every nth call reports an interruption.
	// Zero value means no emulation.
	ReadInterruptNth int

	// The maximum number of bytes accepted by a single write.
	// Zero value means no emulation of fragmentation.
	WriteFragmentSize int
	// Write at every nth call reports would-block without touching the stream.
	// Zero value means no emulation.
	WriteWouldBlockNth int

	// Close at every nth call reports would-block and leaves the stream open.
	// Zero value means no emulation.
	CloseWouldBlockNth int
}

// Netem owns the wrapped stream; every operation it does not disturb is
// forwarded unchanged.
type Netem struct {
	*stream.Delegate

	readFragmentSize  uint32
	readWouldBlockNth uint32
	readInterruptNth  uint32
	readCounter       uint32

	writeFragmentSize  uint32
	writeWouldBlockNth uint32
	writeCounter       uint32

	closeWouldBlockNth uint32
	closeCounter       uint32
}

var _ stream.Stream = (*Netem)(nil)

func New(s stream.Stream, cfg Config) *Netem {
	ne := &Netem{Delegate: stream.NewDelegate(s, true)}
	ne.Update(cfg)
	return ne
}

func (ne *Netem) Read(b []byte) (int, error) {
	if err := ne.CheckOpen(); err != nil {
		return 0, err
	}
	rc := atomic.AddUint32(&ne.readCounter, 1)
	logFields := logrus.Fields{
		"op":      "read",
		"counter": rc,
	}
	if nth(rc, &ne.readWouldBlockNth) {
		log.WithFields(logFields).Debug("Simulating would-block")
		return 0, stream.ErrWouldBlockRead
	}
	if nth(rc, &ne.readInterruptNth) {
		log.WithFields(logFields).Debug("Simulating interruption")
		return 0, stream.ErrInterrupted
	}
	// Simulate fragmentation on reader side
	fs := int(atomic.LoadUint32(&ne.readFragmentSize))
	if fs > 0 && fs < len(b) {
		b = b[:fs]
	}
	n, err := ne.Delegate.Read(b)
	if n > 0 {
		log.WithFields(logFields).Debugf("Read %d bytes", n)
	}
	return n, err
}

func (ne *Netem) Write(b []byte) (int, error) {
	if err := ne.CheckOpen(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return ne.Delegate.Write(b)
	}
	wc := atomic.AddUint32(&ne.writeCounter, 1)
	logFields := logrus.Fields{
		"op":      "write",
		"counter": wc,
	}
	if nth(wc, &ne.writeWouldBlockNth) {
		log.WithFields(logFields).Debug("Simulating would-block")
		return 0, stream.ErrWouldBlockWrite
	}
	fs := int(atomic.LoadUint32(&ne.writeFragmentSize))
	if fs > 0 && fs < len(b) {
		b = b[:fs]
	}
	n, err := ne.Delegate.Write(b)
	if n > 0 {
		log.WithFields(logFields).Debugf("Wrote %d bytes", n)
	}
	return n, err
}

func (ne *Netem) Close() error {
	if ne.Closed() {
		return nil
	}
	cc := atomic.AddUint32(&ne.closeCounter, 1)
	if nth(cc, &ne.closeWouldBlockNth) {
		log.WithFields(logrus.Fields{
			"op":      "close",
			"counter": cc,
		}).Debug("Simulating would-block")
		return stream.ErrWouldBlockWrite
	}
	return ne.Delegate.Close()
}

// Dup duplicates the wrapped stream with the same emulation settings.
func (ne *Netem) Dup() (stream.Stream, error) {
	inner, err := ne.DupInner()
	if err != nil {
		return nil, err
	}
	return New(inner, ne.Config()), nil
}

// Update the config for emulation.
// May take effect on the next read/write operations.
func (ne *Netem) Update(cfg Config) {
	atomic.StoreUint32(&ne.readFragmentSize, uint32(cfg.ReadFragmentSize))
	atomic.StoreUint32(&ne.readWouldBlockNth, uint32(cfg.ReadWouldBlockNth))
	atomic.StoreUint32(&ne.readInterruptNth, uint32(cfg.ReadInterruptNth))
	atomic.StoreUint32(&ne.writeFragmentSize, uint32(cfg.WriteFragmentSize))
	atomic.StoreUint32(&ne.writeWouldBlockNth, uint32(cfg.WriteWouldBlockNth))
	atomic.StoreUint32(&ne.closeWouldBlockNth, uint32(cfg.CloseWouldBlockNth))
	atomic.StoreUint32(&ne.readCounter, 0)
	atomic.StoreUint32(&ne.writeCounter, 0)
	atomic.StoreUint32(&ne.closeCounter, 0)
}

func (ne *Netem) Reset() {
	ne.Update(Config{})
}

func (ne *Netem) Config() Config {
	return Config{
		ReadFragmentSize:   int(atomic.LoadUint32(&ne.readFragmentSize)),
		ReadWouldBlockNth:  int(atomic.LoadUint32(&ne.readWouldBlockNth)),
		ReadInterruptNth:   int(atomic.LoadUint32(&ne.readInterruptNth)),
		WriteFragmentSize:  int(atomic.LoadUint32(&ne.writeFragmentSize)),
		WriteWouldBlockNth: int(atomic.LoadUint32(&ne.writeWouldBlockNth)),
		CloseWouldBlockNth: int(atomic.LoadUint32(&ne.closeWouldBlockNth)),
	}
}

func nth(counter uint32, n *uint32) bool {
	v := atomic.LoadUint32(n)
	return v > 0 && counter%v == 0
}
