package raw

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"stream-toolkit/stream"
)

func TestMemory(t *testing.T) {
	t.Run("read write seek", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory(nil, ReadWrite)
		n, err := m.Write([]byte("Hello, world!"))
		require.Nil(err)
		require.Equal(13, n)

		pos, err := m.Seek(7, io.SeekStart)
		require.Nil(err)
		require.Equal(int64(7), pos)
		buf := make([]byte, 16)
		n, err = m.Read(buf)
		require.Nil(err)
		require.Equal("world!", string(buf[:n]))
		_, err = m.Read(buf)
		require.Equal(io.EOF, err)

		pos, err = m.Seek(-6, io.SeekEnd)
		require.Nil(err)
		require.Equal(int64(7), pos)
		_, err = m.Write([]byte("there!!"))
		require.Nil(err)
		require.Equal("Hello, there!!", string(m.Bytes()))

		_, err = m.Seek(-1, io.SeekStart)
		require.NotNil(err)
	})

	t.Run("access", func(t *testing.T) {
		require := require.New(t)
		r := NewMemory([]byte("abc"), ReadOnly)
		_, err := r.Write([]byte("x"))
		require.Equal(stream.ErrNotWritable, err)
		require.False(r.Writable())

		w := NewMemory(nil, WriteOnly)
		_, err = w.Read(make([]byte, 1))
		require.Equal(stream.ErrNotReadable, err)
		_, err = w.Wait(stream.EventReadable, 0)
		require.Equal(stream.ErrTimeout, err)
		ev, err := w.Wait(stream.EventReadable|stream.EventWritable, 0)
		require.Nil(err)
		require.Equal(stream.EventWritable, ev)
	})

	t.Run("dup shares position", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory([]byte("abcdef"), ReadOnly)
		d, err := m.Dup()
		require.Nil(err)
		buf := make([]byte, 2)
		_, err = m.Read(buf)
		require.Nil(err)
		n, err := d.Read(buf)
		require.Nil(err)
		require.Equal("cd", string(buf[:n]))
		require.Nil(m.Close())
		require.True(m.Closed())
		require.False(d.Closed())
		avail, err := d.Available()
		require.Nil(err)
		require.Equal(2, avail)
	})

	t.Run("closed", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory([]byte("abc"), ReadWrite)
		require.Nil(m.Close())
		require.Nil(m.Close())
		_, err := m.Read(make([]byte, 1))
		require.Equal(stream.ErrClosed, err)
		_, err = m.Seek(0, io.SeekStart)
		require.Equal(stream.ErrClosed, err)
		_, err = m.Dup()
		require.Equal(stream.ErrClosed, err)
		require.True(m.Seekable())
	})
}
