package buffer

import (
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stream-toolkit/raw"
	"stream-toolkit/stream"
	uio "stream-toolkit/util/io"
	"stream-toolkit/util/mocks"
)

func newEngine(s stream.Stream, size int) *Engine {
	cfg := DefaultConfig()
	cfg.BufferSize = size
	return New(s, cfg)
}

func TestRead(t *testing.T) {
	t.Run("short read then end of data", func(t *testing.T) {
		require := require.New(t)
		m := mocks.Reader("barbarbar")
		e := newEngine(m, 3)
		buf := make([]byte, 2)

		n, err := e.Read(buf[:1])
		require.Nil(err)
		require.Equal("b", string(buf[:n]))
		n, err = e.Read(buf[:2])
		require.Nil(err)
		require.Equal("ar", string(buf[:n]))
		require.Equal(1, m.ReadCalls)

		b, err := e.ReadBytes(100)
		require.Nil(err)
		require.Equal("barbar", string(b))
		_, err = e.ReadBytes(100)
		require.Equal(io.EOF, err)
		_, err = e.Read(buf)
		require.Equal(io.EOF, err)
	})

	t.Run("refill uses full capacity", func(t *testing.T) {
		require := require.New(t)
		m := mocks.Reader("abcdefgh")
		e := newEngine(m, 4)
		n, err := e.Read(make([]byte, 1))
		require.Nil(err)
		require.Equal(1, n)
		require.Equal(3, e.Buffered())
		n, err = e.Read(make([]byte, 16))
		require.Nil(err)
		require.Equal(3, n)
		require.True(e.ReadBufferEmpty())
	})

	t.Run("read all", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(mocks.Reader("Hello, ", "world!"), 4)
		b, err := e.ReadAll()
		require.Nil(err)
		require.Equal("Hello, world!", string(b))
		b, err = e.ReadAll()
		require.Nil(err)
		require.Empty(b)
	})

	t.Run("would block propagates", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Reads: []mocks.Step{
			{Err: stream.ErrWouldBlockRead},
			{Data: []byte("x")},
		}}
		e := newEngine(m, 4)
		buf := make([]byte, 4)
		_, err := e.Read(buf)
		require.Equal(stream.ErrWouldBlockRead, err)
		n, err := e.Read(buf)
		require.Nil(err)
		require.Equal(1, n)
	})

	t.Run("write only", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(&mocks.Stream{NoRead: true}, 4)
		_, err := e.Read(make([]byte, 1))
		require.Equal(stream.ErrNotReadable, err)
		require.Equal(stream.ErrNotReadable, e.Unread([]byte("a")))
	})
}

func TestUnread(t *testing.T) {
	t.Run("served before the wrapped stream", func(t *testing.T) {
		require := require.New(t)
		m := mocks.Reader()
		e := newEngine(m, DefaultBufferSize)
		require.Nil(e.Unread([]byte("bar")))
		buf := make([]byte, 3)
		n, err := e.Read(buf)
		require.Nil(err)
		require.Equal("bar", string(buf[:n]))
		require.Zero(m.ReadCalls)
	})

	t.Run("round trip keeps position", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("hello world"), raw.ReadOnly)
		e := newEngine(mem, 64)
		buf := make([]byte, 5)
		_, err := e.Read(buf)
		require.Nil(err)
		require.Equal(int64(11), mem.Pos())

		require.Nil(e.Unread([]byte("xyz")))
		pos, err := e.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(5), pos)

		n, err := e.Read(buf[:3])
		require.Nil(err)
		require.Equal("xyz", string(buf[:n]))
		require.Equal(int64(11), mem.Pos())
		n, err = e.Read(buf)
		require.Nil(err)
		require.Equal(" worl", string(buf[:n]))
	})

	t.Run("shifts content toward the tail", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(mocks.Reader("abcd"), 6)
		buf := make([]byte, 1)
		_, err := e.Read(buf)
		require.Nil(err)
		require.Nil(e.Unread([]byte("XY")))
		b, err := e.ReadAll()
		require.Nil(err)
		require.Equal("XYbcd", string(b))
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(mocks.Reader(), 4)
		require.Nil(e.Unread([]byte("abc")))
		require.Equal(stream.ErrBufferFull, e.Unread([]byte("de")))
		require.Nil(e.Unread([]byte("d")))
		require.Equal(4, e.Buffered())
	})

	t.Run("pushed back bytes are skipped by seeks", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("0123456789"), raw.ReadOnly)
		e := newEngine(mem, 16)
		buf := make([]byte, 2)
		_, err := e.Read(buf)
		require.Nil(err)
		require.Nil(e.Unread([]byte("zz")))
		pos, err := e.Seek(1, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(3), pos)
		n, err := e.Read(buf[:1])
		require.Nil(err)
		require.Equal("3", string(buf[:n]))
	})
}

func TestWrite(t *testing.T) {
	t.Run("partial absorb then flush", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{}
		e := newEngine(m, 2)
		n, err := e.Write([]byte("foo"))
		require.Nil(err)
		require.Equal(2, n)
		require.Empty(m.Written)

		n, err = e.Write([]byte("o"))
		require.Nil(err)
		require.Equal(1, n)
		require.Equal("fo", string(m.Written))
		require.Nil(e.Flush())
		require.Equal("foo", string(m.Written))
		require.True(e.WriteBufferEmpty())
		require.Equal(ModeNone, e.Mode())
	})

	t.Run("flush resumes after would block", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Writes: []mocks.Step{
			{N: 1},
			{Err: stream.ErrWouldBlockWrite},
		}}
		e := newEngine(m, 8)
		require.Nil(uio.WriteString(e, "abc"))
		require.Equal(stream.ErrWouldBlockWrite, e.Flush())
		require.False(e.WriteBufferEmpty())
		require.Equal("a", string(m.Written))
		require.Nil(e.Flush())
		require.Equal("abc", string(m.Written))
		require.Equal(1, m.FlushCalls)
	})

	t.Run("read to write rewinds a seekable stream", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("abcdef"), raw.ReadWrite)
		e := newEngine(mem, 16)
		buf := make([]byte, 2)
		_, err := e.Read(buf)
		require.Nil(err)
		n, err := e.Write([]byte("XY"))
		require.Nil(err)
		require.Equal(2, n)
		pos, err := e.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(4), pos)
		require.Nil(e.Flush())
		require.Equal("abXYef", string(mem.Bytes()))
	})

	t.Run("read to write discards on a non-seekable stream", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Reads: []mocks.Step{{Data: []byte("abc")}}}
		e := newEngine(m, 16)
		_, err := e.Read(make([]byte, 1))
		require.Nil(err)
		_, err = e.Write([]byte("x"))
		require.Nil(err)
		require.True(e.ReadBufferEmpty())
		require.Nil(e.Flush())
		require.Equal("x", string(m.Written))
	})

	t.Run("read only", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(mocks.Reader("a"), 4)
		_, err := e.Write([]byte("a"))
		require.Equal(stream.ErrNotWritable, err)
	})
}

func TestSeek(t *testing.T) {
	t.Run("forward within the buffer", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("0123456789"), raw.ReadOnly)
		e := newEngine(mem, 16)
		buf := make([]byte, 2)
		_, err := e.Read(buf)
		require.Nil(err)
		pos, err := e.Seek(3, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(5), pos)
		require.Equal(int64(10), mem.Pos())
		n, err := e.Read(buf[:1])
		require.Nil(err)
		require.Equal("5", string(buf[:n]))
	})

	t.Run("beyond the buffer", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("0123456789"), raw.ReadOnly)
		e := newEngine(mem, 4)
		buf := make([]byte, 1)
		_, err := e.Read(buf)
		require.Nil(err)
		pos, err := e.Seek(5, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(6), pos)
		require.True(e.ReadBufferEmpty())
		_, err = e.Read(buf)
		require.Nil(err)
		require.Equal("6", string(buf))

		pos, err = e.Seek(-2, io.SeekEnd)
		require.Nil(err)
		require.Equal(int64(8), pos)
		b, err := e.ReadAll()
		require.Nil(err)
		require.Equal("89", string(b))
	})

	t.Run("flushes pending output", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory(nil, raw.ReadWrite)
		e := newEngine(mem, 16)
		require.Nil(uio.WriteString(e, "hello"))
		pos, err := e.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(5), pos)
		require.Empty(mem.Bytes())
		pos, err = e.Seek(1, io.SeekStart)
		require.Nil(err)
		require.Equal(int64(1), pos)
		require.Equal("hello", string(mem.Bytes()))
	})

	t.Run("not seekable", func(t *testing.T) {
		require := require.New(t)
		e := newEngine(mocks.Reader("abc"), 4)
		_, err := e.Seek(0, io.SeekStart)
		require.Equal(stream.ErrNotSeekable, err)
	})
}

func TestUnbuffered(t *testing.T) {
	t.Run("write leaves buffered input alone", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("abcdef"), raw.ReadWrite)
		e := newEngine(mem, 8)
		buf := make([]byte, 1)
		_, err := e.Read(buf)
		require.Nil(err)
		n, err := e.UnbufferedWrite([]byte("Z"))
		require.Nil(err)
		require.Equal(1, n)
		require.Equal("abcdefZ", string(mem.Bytes()))
		_, err = e.Read(buf)
		require.Nil(err)
		require.Equal("b", string(buf))
		require.Equal(8, e.Cap())
	})

	t.Run("read flushes and bypasses the buffer", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Reads: []mocks.Step{{Data: []byte("xyz")}}}
		e := newEngine(m, 8)
		_, err := e.Write([]byte("hi"))
		require.Nil(err)
		buf := make([]byte, 2)
		n, err := e.UnbufferedRead(buf)
		require.Nil(err)
		require.Equal("xy", string(buf[:n]))
		require.Equal("hi", string(m.Written))
		require.Zero(e.Buffered())
		n, err = e.Read(buf)
		require.Nil(err)
		require.Equal("z", string(buf[:n]))
	})

	t.Run("seek", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("abcdef"), raw.ReadWrite)
		e := newEngine(mem, 8)
		_, err := e.Write([]byte("AB"))
		require.Nil(err)
		pos, err := e.UnbufferedSeek(4, io.SeekStart)
		require.Nil(err)
		require.Equal(int64(4), pos)
		require.Equal("ABcdef", string(mem.Bytes()))
		require.Equal(int64(4), mem.Pos())
	})
}

func TestEngine(t *testing.T) {
	t.Run("wait reports buffered input", func(t *testing.T) {
		require := require.New(t)
		m := mocks.Reader("abc")
		e := newEngine(m, 8)
		_, err := e.Read(make([]byte, 1))
		require.Nil(err)
		ev, err := e.Wait(stream.EventReadable, time.Second)
		require.Nil(err)
		require.Equal(stream.EventReadable, ev)
		require.Zero(m.WaitCalls)
		avail, err := e.Available()
		require.Nil(err)
		require.Equal(2, avail)
	})

	t.Run("close flushes", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{}
		e := newEngine(m, 8)
		require.Nil(uio.WriteString(e, "abc"))
		require.Nil(e.Close())
		require.Equal("abc", string(m.Written))
		require.True(m.Closed())
		require.True(e.Closed())
		require.Nil(e.Close())
		_, err := e.Write([]byte("a"))
		require.Equal(stream.ErrClosed, err)
	})

	t.Run("close retries a blocked flush", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Writes: []mocks.Step{{Err: stream.ErrWouldBlockWrite}}}
		e := newEngine(m, 8)
		require.Nil(uio.WriteString(e, "abc"))
		require.Equal(stream.ErrWouldBlockWrite, e.Close())
		require.False(e.Closed())
		require.Nil(e.Close())
		require.Equal("abc", string(m.Written))
	})

	t.Run("dup", func(t *testing.T) {
		require := require.New(t)
		dup := mocks.Reader("dup")
		m := &mocks.Stream{DupFunc: func() (stream.Stream, error) { return dup, nil }}
		e := newEngine(m, 8)
		require.Nil(uio.WriteString(e, "abc"))
		d, err := e.Dup()
		require.Nil(err)
		require.Equal("abc", string(m.Written))
		de := d.(*Engine)
		require.Equal(8, de.Cap())
		b, err := de.ReadAll()
		require.Nil(err)
		require.Equal("dup", string(b))
	})

	t.Run("pre-allocated buffer", func(t *testing.T) {
		require := require.New(t)
		buf := make([]byte, 5)
		e := New(mocks.Reader("abc"), Config{Buffer: buf})
		require.Equal(5, e.Cap())
		_, err := e.Read(make([]byte, 1))
		require.Nil(err)
		require.Equal("abc", string(buf[:3]))
	})
}

// TestModel drives an engine over an in-memory file with random operations
// and checks every result against a plain byte slice.
func TestModel(t *testing.T) {
	require := require.New(t)
	rand := rand.New(rand.NewSource(0))
	var model []byte
	var pos int

	mem := raw.NewMemory(nil, raw.ReadWrite)
	e := newEngine(mem, 7)
	buf := make([]byte, 32)

	for i := 0; i < 2000; i++ {
		switch rand.Intn(5) {
		case 0, 1:
			k := rand.Intn(len(buf)) + 1
			n, err := e.Read(buf[:k])
			if pos >= len(model) {
				require.Equal(io.EOF, err)
				continue
			}
			require.Nil(err)
			require.NotZero(n)
			require.Equal(model[pos:pos+n], buf[:n])
			pos += n
		case 2:
			p := make([]byte, rand.Intn(20)+1)
			_, err := io.ReadFull(rand, p)
			require.Nil(err)
			require.Nil(uio.WriteFull(e, p))
			if end := pos + len(p); end > len(model) {
				model = append(model, make([]byte, end-len(model))...)
			}
			copy(model[pos:], p)
			pos += len(p)
		case 3:
			target := rand.Intn(len(model) + 1)
			got, err := e.Seek(int64(target), io.SeekStart)
			require.Nil(err)
			require.Equal(int64(target), got)
			pos = target
		case 4:
			got, err := e.Seek(0, io.SeekCurrent)
			require.Nil(err)
			require.Equal(int64(pos), got)
		}
		require.False(e.Buffered() > 0 && !e.WriteBufferEmpty())
	}
	require.Nil(e.Flush())
	require.Equal(model, mem.Bytes())
}
