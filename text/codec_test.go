package text

import (
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"stream-toolkit/buffer"
	"stream-toolkit/raw"
	"stream-toolkit/stream"
	"stream-toolkit/util/mocks"
)

func newEngine(s stream.Stream, size int) *buffer.Engine {
	return buffer.New(s, buffer.Config{BufferSize: size})
}

func readChars(require *require.Assertions, c *Codec) []string {
	var chars []string
	for {
		ch, err := c.ReadChar()
		if err == io.EOF {
			return chars
		}
		require.Nil(err)
		chars = append(chars, string(ch))
	}
}

func TestLookup(t *testing.T) {
	require := require.New(t)
	for _, name := range []string{"utf-8", "UTF8", "binary", "ASCII-8BIT", "us-ascii"} {
		_, err := Lookup(name)
		require.Nil(err, name)
	}
	sjis, err := Lookup("Shift_JIS")
	require.Nil(err)
	require.Equal("Shift_JIS", sjis.Name())
	require.Equal(2, sjis.MaxWidth())

	cp, err := Lookup("windows-1252")
	require.Nil(err)
	require.Equal(1, cp.MaxWidth())

	_, err = Lookup("no-such-encoding")
	require.True(errors.Is(err, ErrUnknownEncoding))

	require.True(UTF8.Is(UTF8))
	require.False(UTF8.Is(Binary))
}

func TestReadChar(t *testing.T) {
	t.Run("character delivered one byte at a time", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("\xe3", "\x81", "\x82"), 16), UTF8)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("\xe3\x81\x82", string(ch))
		_, err = c.ReadChar()
		require.Equal(io.EOF, err)
	})

	t.Run("any split point", func(t *testing.T) {
		content := "aあ𝄞b"
		for i := 1; i < len(content); i++ {
			for j := i; j < len(content); j++ {
				require := require.New(t)
				m := mocks.Reader(content[:i], content[i:j], content[j:])
				c := NewPassthrough(newEngine(m, 64), UTF8)
				require.Equal([]string{"a", "あ", "𝄞", "b"}, readChars(require, c))
			}
		}
	})

	t.Run("invalid bytes", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("a\xffb"), 64), UTF8)
		require.Equal([]string{"a", "\xff", "b"}, readChars(require, c))
	})

	t.Run("truncated at end of data", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("a\xe3\x81"), 64), UTF8)
		require.Equal([]string{"a", "\xe3\x81"}, readChars(require, c))
	})

	t.Run("binary", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("\xe3\x81"), 64), nil)
		require.Equal([]string{"\xe3", "\x81"}, readChars(require, c))
		require.Equal(Binary, c.Encoding())
	})

	t.Run("multi-byte external encoding", func(t *testing.T) {
		require := require.New(t)
		sjis, err := Lookup("Shift_JIS")
		require.Nil(err)
		c := NewPassthrough(newEngine(mocks.Reader("a\x82", "\xa0b"), 64), sjis)
		require.Equal([]string{"a", "\x82\xa0", "b"}, readChars(require, c))
	})

	t.Run("would block keeps partial characters", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Reads: []mocks.Step{
			{Data: []byte("\xe3\x81")},
			{Err: stream.ErrWouldBlockRead},
			{Data: []byte("\x82")},
		}}
		c := NewPassthrough(newEngine(m, 64), UTF8)
		_, err := c.ReadChar()
		require.Equal(stream.ErrWouldBlockRead, err)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("あ", string(ch))
	})
}

func TestTranscoder(t *testing.T) {
	sjis, err := Lookup("Shift_JIS")
	require.Nil(t, err)

	t.Run("decode", func(t *testing.T) {
		require := require.New(t)
		c, err := New(newEngine(mocks.Reader("\x82", "\xa0\n"), 64), Options{External: sjis, Internal: UTF8})
		require.Nil(err)
		require.True(c.Transcoding())
		require.Equal([]string{"あ", "\n"}, readChars(require, c))
	})

	t.Run("encode", func(t *testing.T) {
		require := require.New(t)
		c, err := New(newEngine(mocks.Reader("あa"), 64), Options{External: UTF8, Internal: sjis})
		require.Nil(err)
		require.Equal([]string{"\x82\xa0", "a"}, readChars(require, c))
	})

	t.Run("utf-16", func(t *testing.T) {
		require := require.New(t)
		le, err := Lookup("UTF-16LE")
		require.Nil(err)
		c, err := New(newEngine(mocks.Reader("A\x00", "\x42", "\x30"), 64), Options{External: le, Internal: UTF8})
		require.Nil(err)
		require.Equal([]string{"A", "あ"}, readChars(require, c))
	})

	t.Run("universal newline", func(t *testing.T) {
		require := require.New(t)
		c, err := New(newEngine(mocks.Reader("a\r", "\nb\rc\n\r"), 64), Options{External: UTF8, UniversalNewline: true})
		require.Nil(err)
		b, err := c.ReadAll()
		require.Nil(err)
		require.Equal("a\nb\nc\n\n", string(b))
	})

	t.Run("universal newline position", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("a\r\nb"), raw.ReadOnly)
		c, err := New(newEngine(mem, 64), Options{External: UTF8, UniversalNewline: true})
		require.Nil(err)
		line, err := c.ReadLine(LineOptions{Separator: Literal("\n")})
		require.Nil(err)
		require.Equal("a\n", string(line))
		pos, err := c.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(3), pos)
	})

	t.Run("invalid policies", func(t *testing.T) {
		require := require.New(t)
		opts := Options{External: UTF8, UniversalNewline: true, Invalid: InvalidReplace}
		c, err := New(newEngine(mocks.Reader("a\xffb"), 64), opts)
		require.Nil(err)
		require.Equal([]string{"a", "�", "b"}, readChars(require, c))

		opts.Invalid = InvalidError
		c, err = New(newEngine(mocks.Reader("a\xffb\xe3"), 64), opts)
		require.Nil(err)
		_, err = c.ReadChar()
		require.Nil(err)
		_, err = c.ReadChar()
		var de *DecodeError
		require.True(errors.As(err, &de))
		require.Equal(InvalidSequence, de.Kind)
		require.Equal([]byte{0xff}, de.Bytes)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("b", string(ch))
		_, err = c.ReadChar()
		require.True(errors.As(err, &de))
		require.Equal(IncompleteSequence, de.Kind)
	})

	t.Run("undefined conversion", func(t *testing.T) {
		require := require.New(t)
		c, err := New(newEngine(mocks.Reader("aé"), 64), Options{External: UTF8, Internal: ASCII})
		require.Nil(err)
		_, err = c.ReadChar()
		require.Nil(err)
		_, err = c.ReadChar()
		var de *DecodeError
		require.True(errors.As(err, &de))
		require.Equal(UndefinedConversion, de.Kind)

		c, err = New(newEngine(mocks.Reader("aé"), 64), Options{External: UTF8, Internal: ASCII, Undefined: UndefinedReplace})
		require.Nil(err)
		require.Equal([]string{"a", "?"}, readChars(require, c))
	})

	t.Run("binary cannot convert", func(t *testing.T) {
		require := require.New(t)
		_, err := New(newEngine(mocks.Reader(), 64), Options{External: Binary, Internal: UTF8})
		require.True(errors.Is(err, ErrNoConverter))
	})

	t.Run("write", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{}
		c, err := New(newEngine(m, 64), Options{External: sjis, Internal: UTF8, WriteNewline: NewlineCRLF})
		require.Nil(err)
		n, err := c.Write([]byte("あ\nb"))
		require.Nil(err)
		require.Equal(5, n)
		require.Nil(c.Flush())
		require.Equal("\x82\xa0\r\nb", string(m.Written))
		require.Nil(c.Close())
		require.True(m.Closed())
	})

	t.Run("write newline only", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{}
		c, err := New(newEngine(m, 64), Options{External: UTF8, WriteNewline: NewlineCR})
		require.Nil(err)
		_, err = c.Write([]byte("a\nb\n"))
		require.Nil(err)
		require.Nil(c.Close())
		require.Equal("a\rb\r", string(m.Written))
	})
}

func TestCodec(t *testing.T) {
	t.Run("unread", func(t *testing.T) {
		require := require.New(t)
		m := mocks.Reader()
		c := NewPassthrough(newEngine(m, 4), UTF8)
		require.Nil(c.Unread([]byte("あb")))
		require.Equal([]string{"あ", "b"}, readChars(require, c))
		require.Equal(1, m.ReadCalls)

		require.Equal(stream.ErrBufferFull, c.Unread([]byte("abcde")))
		require.Nil(c.Unread([]byte("abcd")))
		require.Equal(stream.ErrBufferFull, c.Unread([]byte("x")))
	})

	t.Run("unread limited by a small engine", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader(), 16), UTF8)
		require.Equal(stream.ErrBufferFull, c.Unread(make([]byte, 17)))
		require.Nil(c.Unread(make([]byte, 16)))
	})

	t.Run("unread up to the engine capacity", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader(), 256), UTF8)
		require.Nil(c.Unread(make([]byte, 200)))
		require.Equal(stream.ErrBufferFull, c.Unread(make([]byte, 57)))
	})

	t.Run("unread goes before read-ahead", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("abc"), 64), UTF8)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Nil(c.Unread(ch))
		b, err := c.ReadAll()
		require.Nil(err)
		require.Equal("abc", string(b))
	})

	t.Run("seek", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("héllo\nworld"), raw.ReadOnly)
		c := NewPassthrough(newEngine(mem, 64), UTF8)
		_, err := c.ReadChar()
		require.Nil(err)
		pos, err := c.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(1), pos)
		_, err = c.ReadChar()
		require.Nil(err)
		require.Nil(c.Unread([]byte("x")))
		pos, err = c.Seek(0, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(3), pos)

		pos, err = c.Seek(1, io.SeekCurrent)
		require.Nil(err)
		require.Equal(int64(4), pos)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("l", string(ch))

		_, err = c.Seek(0, io.SeekStart)
		require.Nil(err)
		line, err := c.ReadLine(LineOptions{Separator: Literal("\n")})
		require.Nil(err)
		require.Equal("héllo\n", string(line))
	})

	t.Run("write after read", func(t *testing.T) {
		require := require.New(t)
		mem := raw.NewMemory([]byte("abcdef"), raw.ReadWrite)
		c := NewPassthrough(newEngine(mem, 64), UTF8)
		_, err := c.ReadChar()
		require.Nil(err)
		_, err = c.Write([]byte("XY"))
		require.Nil(err)
		require.Nil(c.Flush())
		require.Equal("aXYdef", string(mem.Bytes()))
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("d", string(ch))
	})

	t.Run("write larger than the buffer", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{Writes: []mocks.Step{{N: 3}, {N: 5}}}
		c := NewPassthrough(newEngine(m, 16), UTF8)
		payload := strings.Repeat("0123456789\n", 10)
		n, err := c.Write([]byte(payload))
		require.Nil(err)
		require.Equal(len(payload), n)
		require.Nil(c.Flush())
		require.Equal(payload, string(m.Written))
	})

	t.Run("read bytes", func(t *testing.T) {
		require := require.New(t)
		c := NewPassthrough(newEngine(mocks.Reader("hello"), 64), UTF8)
		ch, err := c.ReadChar()
		require.Nil(err)
		require.Equal("h", string(ch))
		buf := make([]byte, 2)
		n, err := c.Read(buf)
		require.Nil(err)
		require.Equal("el", string(buf[:n]))
		avail, err := c.Available()
		require.Nil(err)
		require.Equal(2, avail)
		ev, err := c.Wait(stream.EventReadable, 0)
		require.Nil(err)
		require.Equal(stream.EventReadable, ev)
	})

	t.Run("dup and close", func(t *testing.T) {
		require := require.New(t)
		m := &mocks.Stream{DupFunc: func() (stream.Stream, error) { return mocks.Reader("dup"), nil }}
		c := NewPassthrough(newEngine(m, 64), UTF8)
		d, err := c.Dup()
		require.Nil(err)
		b, err := d.(*Codec).ReadAll()
		require.Nil(err)
		require.Equal("dup", string(b))
		require.Nil(c.Close())
		require.True(m.Closed())
		_, err = c.ReadChar()
		require.Equal(stream.ErrClosed, err)
		require.Nil(c.Close())
	})
}
