package raw

import (
	"io"
	"time"

	"stream-toolkit/stream"
)

type memFile struct {
	data []byte
	pos  int64
}

// Memory is a seekable in-memory file. Duplicates share contents and
// position, the way duplicated descriptors share a file offset.
type Memory struct {
	stream.Unsupported

	file   *memFile
	access Access
	closed bool
}

var _ stream.Stream = (*Memory)(nil)

func NewMemory(data []byte, access Access) *Memory {
	return &Memory{
		file:   &memFile{data: data},
		access: access,
	}
}

// Bytes returns the current contents.
func (m *Memory) Bytes() []byte {
	return m.file.data
}

// Pos returns the shared position without going through Seek.
func (m *Memory) Pos() int64 {
	return m.file.pos
}

func (m *Memory) Read(p []byte) (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	if !m.access.Readable() {
		return 0, stream.ErrNotReadable
	}
	if len(p) == 0 {
		return 0, nil
	}
	f := m.file
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (m *Memory) Write(p []byte) (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	if !m.access.Writable() {
		return 0, stream.ErrNotWritable
	}
	f := m.file
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	f := m.file
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = int64(len(f.data)) + offset
	default:
		return 0, errInvalidSeek
	}
	if pos < 0 {
		return 0, errInvalidSeek
	}
	f.pos = pos
	return pos, nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

func (m *Memory) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	var ready stream.Events
	if m.access.Readable() {
		ready |= stream.EventReadable
	}
	if m.access.Writable() {
		ready |= stream.EventWritable
	}
	if ready&events == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, stream.ErrTimeout
	}
	return ready & events, nil
}

func (m *Memory) Dup() (stream.Stream, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return &Memory{file: m.file, access: m.access}, nil
}

func (m *Memory) Available() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	n := int64(len(m.file.data)) - m.file.pos
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

func (m *Memory) Readable() bool { return m.access.Readable() }

func (m *Memory) Writable() bool { return m.access.Writable() }

func (m *Memory) Seekable() bool { return true }

func (m *Memory) Closed() bool { return m.closed }

func (m *Memory) check() error {
	if m.closed {
		return stream.ErrClosed
	}
	return nil
}
