package raw

import (
	"io"
	"sync"
	"time"

	"stream-toolkit/stream"
	"stream-toolkit/util"
)

const minPipeCapacity = 1

// pipe is shared by both ends; the ends may be driven from different
// goroutines, so it is the one place with locking.
type pipe struct {
	mu       sync.Mutex
	buf      []byte
	capacity int

	readClosed  bool
	writeClosed bool

	readNotify  chan struct{}
	writeNotify chan struct{}
}

// PipeReader is the non-blocking read end of an in-memory pipe.
type PipeReader struct {
	stream.Unsupported
	p *pipe
}

// PipeWriter is the non-blocking write end of an in-memory pipe.
type PipeWriter struct {
	stream.Unsupported
	p *pipe
}

var (
	_ stream.Stream = (*PipeReader)(nil)
	_ stream.Stream = (*PipeWriter)(nil)
)

// Pipe creates a non-blocking pipe holding at most capacity bytes in
// flight. Reads of an empty pipe and writes to a full one report
// would-block; the reader sees io.EOF once the writer is closed and
// drained.
func Pipe(capacity int) (*PipeReader, *PipeWriter) {
	if capacity < minPipeCapacity {
		capacity = minPipeCapacity
	}
	p := &pipe{
		buf:         make([]byte, 0, capacity),
		capacity:    capacity,
		readNotify:  make(chan struct{}, 1),
		writeNotify: make(chan struct{}, 1),
	}
	return &PipeReader{p: p}, &PipeWriter{p: p}
}

func (r *PipeReader) Read(b []byte) (int, error) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readClosed {
		return 0, stream.ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if len(p.buf) == 0 {
		if p.writeClosed {
			return 0, io.EOF
		}
		return 0, stream.ErrWouldBlockRead
	}
	n := copy(b, p.buf)
	p.buf = p.buf[:copy(p.buf, p.buf[n:])]
	util.AsyncNotify(p.writeNotify)
	return n, nil
}

func (r *PipeReader) Write([]byte) (int, error) {
	return 0, stream.ErrNotWritable
}

func (r *PipeReader) Close() error {
	p := r.p
	p.mu.Lock()
	p.readClosed = true
	p.mu.Unlock()
	util.AsyncNotify(p.readNotify)
	util.AsyncNotify(p.writeNotify)
	return nil
}

func (r *PipeReader) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	return r.p.wait(events, timeout, func() (stream.Events, error) {
		if r.p.readClosed {
			return 0, stream.ErrClosed
		}
		if events.Has(stream.EventReadable) && (len(r.p.buf) > 0 || r.p.writeClosed) {
			return stream.EventReadable, nil
		}
		return 0, nil
	}, r.p.readNotify)
}

func (r *PipeReader) Available() (int, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	if r.p.readClosed {
		return 0, stream.ErrClosed
	}
	return len(r.p.buf), nil
}

func (r *PipeReader) Readable() bool { return true }

func (r *PipeReader) Writable() bool { return false }

func (r *PipeReader) Closed() bool {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	return r.p.readClosed
}

func (w *PipeWriter) Read([]byte) (int, error) {
	return 0, stream.ErrNotReadable
}

func (w *PipeWriter) Write(b []byte) (int, error) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeClosed {
		return 0, stream.ErrClosed
	}
	if p.readClosed {
		return 0, io.ErrClosedPipe
	}
	if len(b) == 0 {
		return 0, nil
	}
	free := p.capacity - len(p.buf)
	if free == 0 {
		return 0, stream.ErrWouldBlockWrite
	}
	if len(b) > free {
		b = b[:free]
	}
	p.buf = append(p.buf, b...)
	util.AsyncNotify(p.readNotify)
	return len(b), nil
}

func (w *PipeWriter) Close() error {
	p := w.p
	p.mu.Lock()
	p.writeClosed = true
	p.mu.Unlock()
	util.AsyncNotify(p.readNotify)
	util.AsyncNotify(p.writeNotify)
	return nil
}

func (w *PipeWriter) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	return w.p.wait(events, timeout, func() (stream.Events, error) {
		if w.p.writeClosed {
			return 0, stream.ErrClosed
		}
		if events.Has(stream.EventWritable) && (len(w.p.buf) < w.p.capacity || w.p.readClosed) {
			return stream.EventWritable, nil
		}
		return 0, nil
	}, w.p.writeNotify)
}

func (w *PipeWriter) Available() (int, error) {
	return 0, stream.ErrNotReadable
}

func (w *PipeWriter) Readable() bool { return false }

func (w *PipeWriter) Writable() bool { return true }

func (w *PipeWriter) Closed() bool {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	return w.p.writeClosed
}

// wait polls ready under the lock until it reports events or an error,
// sleeping on notify in between.
func (p *pipe) wait(events stream.Events, timeout time.Duration, ready func() (stream.Events, error), notify <-chan struct{}) (stream.Events, error) {
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		p.mu.Lock()
		ev, err := ready()
		p.mu.Unlock()
		if err != nil || ev != 0 {
			return ev, err
		}
		select {
		case <-notify:
		case <-deadline:
			return 0, stream.ErrTimeout
		}
	}
}
