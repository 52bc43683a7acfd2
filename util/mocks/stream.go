package mocks

import (
	"io"
	"time"

	"stream-toolkit/stream"
)

// Step is one scripted outcome. For reads, Data is handed out (possibly
// over several calls if the caller's buffer is smaller) before Err is
// reported. For writes, N caps the bytes accepted (0 accepts everything)
// and Err is returned instead of accepting anything.
type Step struct {
	Data []byte
	N    int
	Err  error
}

// Stream is a scripted stream.Stream double that records what reaches it.
type Stream struct {
	Reads     []Step
	Writes    []Step
	Closes    []error
	WaitReady stream.Events
	WaitErr   error
	SeekFunc  func(offset int64, whence int) (int64, error)
	DupFunc   func() (stream.Stream, error)
	Terminal  bool
	NoRead    bool
	NoWrite   bool

	Written    []byte
	ReadCalls  int
	WriteCalls int
	WaitCalls  int
	CloseCalls int
	FlushCalls int

	closed bool
}

var _ stream.Stream = (*Stream)(nil)

// Reader returns a mock whose reads hand out chunks in order, then io.EOF.
func Reader(chunks ...string) *Stream {
	s := &Stream{NoWrite: true}
	for _, c := range chunks {
		s.Reads = append(s.Reads, Step{Data: []byte(c)})
	}
	return s
}

func (s *Stream) Read(p []byte) (int, error) {
	s.ReadCalls++
	if s.closed {
		return 0, stream.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.Reads) > 0 {
		step := &s.Reads[0]
		if len(step.Data) > 0 {
			n := copy(p, step.Data)
			step.Data = step.Data[n:]
			if len(step.Data) == 0 && step.Err == nil {
				s.Reads = s.Reads[1:]
			}
			return n, nil
		}
		s.Reads = s.Reads[1:]
		if step.Err != nil {
			return 0, step.Err
		}
	}
	return 0, io.EOF
}

func (s *Stream) Write(p []byte) (int, error) {
	s.WriteCalls++
	if s.closed {
		return 0, stream.ErrClosed
	}
	n := len(p)
	if len(s.Writes) > 0 {
		step := s.Writes[0]
		s.Writes = s.Writes[1:]
		if step.Err != nil {
			return 0, step.Err
		}
		if step.N > 0 && step.N < n {
			n = step.N
		}
	}
	s.Written = append(s.Written, p[:n]...)
	return n, nil
}

func (s *Stream) Flush() error {
	s.FlushCalls++
	return nil
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, stream.ErrClosed
	}
	if s.SeekFunc == nil {
		return 0, stream.ErrNotSeekable
	}
	return s.SeekFunc(offset, whence)
}

func (s *Stream) Close() error {
	s.CloseCalls++
	if len(s.Closes) > 0 {
		err := s.Closes[0]
		s.Closes = s.Closes[1:]
		if err != nil {
			return err
		}
	}
	s.closed = true
	return nil
}

func (s *Stream) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	s.WaitCalls++
	if s.closed {
		return 0, stream.ErrClosed
	}
	if s.WaitErr != nil {
		return 0, s.WaitErr
	}
	ready := s.WaitReady
	if ready == 0 {
		ready = stream.EventReadable | stream.EventWritable
	}
	if ready&events == 0 {
		return 0, stream.ErrTimeout
	}
	return ready & events, nil
}

func (s *Stream) Dup() (stream.Stream, error) {
	if s.DupFunc == nil {
		return nil, stream.ErrNotSupported
	}
	return s.DupFunc()
}

func (s *Stream) Available() (int, error) {
	if len(s.Reads) == 0 {
		return 0, nil
	}
	return len(s.Reads[0].Data), nil
}

func (s *Stream) Fd() (uintptr, error) { return 0, stream.ErrNotSupported }

func (s *Stream) IsTerminal() bool { return s.Terminal }

func (s *Stream) Readable() bool { return !s.NoRead }

func (s *Stream) Writable() bool { return !s.NoWrite }

func (s *Stream) Seekable() bool { return s.SeekFunc != nil }

func (s *Stream) Closed() bool { return s.closed }
