// Package text reads characters and lines from a buffered stream and
// optionally converts between encodings on the way in and out.
package text

import (
	"bytes"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"stream-toolkit/buffer"
	"stream-toolkit/stream"
	uio "stream-toolkit/util/io"
)

// minChunk is the refill size.
const minChunk = 128

var ErrNoConverter = errors.New("text: no converter between encodings")

// unit is one character as handed to readers.
type unit struct {
	b []byte
	// External bytes the character was decoded from. Zero for pushed back
	// characters.
	src   int
	valid bool
	// Set when the character must be reported instead of returned.
	err error
}

// Codec splits a buffered stream into characters and lines. It owns the
// engine it reads from.
type Codec struct {
	*stream.Delegate

	engine *buffer.Engine
	opts   Options
	ext    *Encoding
	target *Encoding

	transcode bool
	same      bool
	split     splitter
	encoder   transform.Transformer
	writer    *transform.Writer

	newline     []byte
	replacement []byte

	chunk     []byte
	tail      []byte
	units     []unit
	carry     []byte
	carrySrc  int
	pendingCR int
	eof       bool

	lineno int
}

var _ stream.Stream = (*Codec)(nil)

// New returns a pass-through codec when opts require no conversion and a
// transcoding one otherwise.
func New(e *buffer.Engine, opts Options) (*Codec, error) {
	if !opts.transcoding() {
		return NewPassthrough(e, opts.external()), nil
	}
	return NewTranscoder(e, opts)
}

// NewPassthrough splits the external encoding into characters without
// converting anything.
func NewPassthrough(e *buffer.Engine, ext *Encoding) *Codec {
	if ext == nil {
		ext = Binary
	}
	opts := Options{External: ext}
	c := newCodec(e, opts)
	c.newline = encodeOr(ext, "\n", []byte("\n"))
	return c
}

// NewTranscoder decodes the external encoding, normalizes newlines if
// asked to and hands out characters in the internal encoding.
func NewTranscoder(e *buffer.Engine, opts Options) (*Codec, error) {
	c := newCodec(e, opts)
	c.transcode = true
	c.same = c.target.Is(c.ext)
	if !c.same && (c.ext.kind == kindBinary || c.target.kind == kindBinary) {
		return nil, errors.Wrapf(ErrNoConverter, "%s to %s", c.ext, c.target)
	}
	c.encoder = c.target.encoder(opts.Undefined)
	c.newline = encodeOr(c.target, "\n", []byte("\n"))
	c.replacement = encodeOr(c.target, string(replacementChar), encodeOr(c.target, "?", []byte("?")))

	if !c.same || opts.WriteNewline != NewlineLF {
		var chain []transform.Transformer
		if c.target.kind == kindXText {
			chain = append(chain, c.target.decoder())
		}
		if opts.WriteNewline != NewlineLF {
			chain = append(chain, newlineEncoder{newline: opts.WriteNewline.bytes()})
		}
		if enc := c.ext.encoder(opts.Undefined); enc != nil && (!c.same || c.ext.kind == kindXText) {
			chain = append(chain, enc)
		}
		if len(chain) > 0 {
			c.writer = transform.NewWriter(uio.FullWriter(e), transform.Chain(chain...))
		}
	}
	return c, nil
}

func newCodec(e *buffer.Engine, opts Options) *Codec {
	ext := opts.external()
	return &Codec{
		Delegate: stream.NewDelegate(e, true),
		engine:   e,
		opts:     opts,
		ext:      ext,
		target:   opts.internal(),
		split:    ext.newSplitter(),
		chunk:    make([]byte, minChunk),
	}
}

func encodeOr(e *Encoding, s string, fallback []byte) []byte {
	b, err := e.encode([]byte(s))
	if err != nil || len(b) == 0 {
		return fallback
	}
	return b
}

func (c *Codec) Engine() *buffer.Engine {
	return c.engine
}

// Encoding returns the external encoding.
func (c *Codec) Encoding() *Encoding {
	return c.ext
}

// InternalEncoding returns the encoding characters are handed out in.
func (c *Codec) InternalEncoding() *Encoding {
	return c.target
}

func (c *Codec) Transcoding() bool {
	return c.transcode
}

func (c *Codec) Lineno() int {
	return c.lineno
}

func (c *Codec) SetLineno(n int) {
	c.lineno = n
}

func (c *Codec) checkRead() error {
	if err := c.CheckOpen(); err != nil {
		return err
	}
	if !c.Readable() {
		return stream.ErrNotReadable
	}
	return nil
}

// fill pulls one chunk from the engine and turns it into characters.
func (c *Codec) fill() error {
	n, err := c.engine.Read(c.chunk)
	if n > 0 {
		c.tail = append(c.tail, c.chunk[:n]...)
		c.decode(false)
		return nil
	}
	if err == io.EOF {
		c.eof = true
		c.decode(true)
		return nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return err
}

func (c *Codec) decode(atEOF bool) {
	for len(c.tail) > 0 {
		p, ok := c.split.split(c.tail, atEOF)
		if !ok {
			break
		}
		raw := c.tail[:p.n]
		if c.transcode {
			c.emitConverted(raw, p)
		} else {
			c.emitRaw(raw, p)
		}
		c.tail = c.tail[p.n:]
	}
	if len(c.tail) == 0 {
		c.tail = c.tail[:0]
	}
	if !atEOF {
		return
	}
	if c.pendingCR > 0 {
		c.push(unit{b: c.newline, src: c.pendingCR, valid: true})
		c.pendingCR = 0
	}
	if len(c.carry) > 0 {
		c.push(unit{b: c.carry, src: len(c.carry), valid: true})
		c.carry = nil
	}
	c.carrySrc = 0
}

func (c *Codec) push(u unit) {
	c.units = append(c.units, u)
}

// emitRaw queues raw bytes. Bytes that decode to nothing, such as a byte
// order mark, are glued to the following character.
func (c *Codec) emitRaw(raw []byte, p piece) {
	if p.valid && len(p.decoded) == 0 {
		c.carry = append(c.carry, raw...)
		return
	}
	b := make([]byte, 0, len(c.carry)+len(raw))
	b = append(append(b, c.carry...), raw...)
	c.carry = nil
	c.push(unit{b: b, src: len(b), valid: p.valid})
}

func (c *Codec) emitConverted(raw []byte, p piece) {
	src := len(raw) + c.carrySrc
	if p.valid && len(p.decoded) == 0 {
		c.carrySrc = src
		return
	}
	c.carrySrc = 0
	if !p.valid {
		c.flushCR()
		c.push(c.invalid(raw, src, p.incomplete))
		return
	}
	if c.opts.UniversalNewline {
		switch {
		case len(p.decoded) == 1 && p.decoded[0] == '\r':
			c.flushCR()
			c.pendingCR = src
			return
		case len(p.decoded) == 1 && p.decoded[0] == '\n' && c.pendingCR > 0:
			c.push(unit{b: c.newline, src: c.pendingCR + src, valid: true})
			c.pendingCR = 0
			return
		}
		c.flushCR()
	}
	if c.same {
		c.push(unit{b: append([]byte(nil), raw...), src: src, valid: true})
		return
	}
	b := append([]byte(nil), p.decoded...)
	if c.encoder != nil {
		out, _, err := transform.Bytes(c.encoder, p.decoded)
		if err != nil {
			c.push(unit{src: src, err: &DecodeError{
				Kind:   UndefinedConversion,
				Bytes:  append([]byte(nil), raw...),
				Source: c.ext.name,
				Target: c.target.name,
			}})
			return
		}
		b = out
	}
	c.push(unit{b: b, src: src, valid: true})
}

func (c *Codec) flushCR() {
	if c.pendingCR > 0 {
		c.push(unit{b: c.newline, src: c.pendingCR, valid: true})
		c.pendingCR = 0
	}
}

func (c *Codec) invalid(raw []byte, src int, incomplete bool) unit {
	switch c.opts.Invalid {
	case InvalidReplace:
		return unit{b: c.replacement, src: src, valid: true}
	case InvalidError:
		kind := InvalidSequence
		if incomplete {
			kind = IncompleteSequence
		}
		return unit{src: src, err: &DecodeError{
			Kind:   kind,
			Bytes:  append([]byte(nil), raw...),
			Source: c.ext.name,
			Target: c.target.name,
		}}
	default:
		return unit{b: append([]byte(nil), raw...), src: src}
	}
}

// more makes sure at least one character is queued. It reports io.EOF
// once per end of stream.
func (c *Codec) more() error {
	for len(c.units) == 0 {
		if c.eof {
			c.eof = false
			return io.EOF
		}
		if err := c.fill(); err != nil {
			return err
		}
	}
	return nil
}

// drained reports whether no further character can be had without
// waiting for the stream.
func (c *Codec) drained() bool {
	if len(c.units) > 0 {
		return false
	}
	if c.eof {
		return true
	}
	ev, err := c.engine.Wait(stream.EventReadable, 0)
	return err != nil || !ev.Has(stream.EventReadable)
}

func (c *Codec) next() (unit, error) {
	if err := c.more(); err != nil {
		return unit{}, err
	}
	u := c.units[0]
	c.units = c.units[1:]
	return u, nil
}

func (c *Codec) pushFront(units []unit) {
	if len(units) == 0 {
		return
	}
	c.units = append(append(make([]unit, 0, len(units)+len(c.units)), units...), c.units...)
}

// pending counts bytes read from the engine or pushed back but not yet
// handed out.
func (c *Codec) pending() int {
	n := len(c.tail) + len(c.carry)
	for _, u := range c.units {
		n += len(u.b)
	}
	return n
}

// pendingSrc counts external bytes read from the engine but not yet
// handed out.
func (c *Codec) pendingSrc() int {
	n := len(c.tail) + len(c.carry) + c.carrySrc + c.pendingCR
	for _, u := range c.units {
		n += u.src
	}
	return n
}

func (c *Codec) discard() {
	c.units = nil
	c.tail = c.tail[:0]
	c.carry = nil
	c.carrySrc = 0
	c.pendingCR = 0
	c.eof = false
	c.split.reset()
}

// ReadChar returns the next character. A sequence that is not valid in
// the external encoding comes back as-is unless the invalid policy says
// otherwise.
func (c *Codec) ReadChar() ([]byte, error) {
	if err := c.checkRead(); err != nil {
		return nil, err
	}
	u, err := c.next()
	if err != nil {
		return nil, err
	}
	if u.err != nil {
		return nil, u.err
	}
	return u.b, nil
}

// Read hands out bytes in the internal encoding.
func (c *Codec) Read(p []byte) (int, error) {
	if err := c.checkRead(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !c.transcode && !c.eof && len(c.units) == 0 && len(c.tail) == 0 && len(c.carry) == 0 {
		return c.engine.Read(p)
	}
	if err := c.more(); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) && len(c.units) > 0 {
		u := &c.units[0]
		if u.err != nil {
			if n > 0 {
				break
			}
			err := u.err
			c.units = c.units[1:]
			return 0, err
		}
		m := copy(p[n:], u.b)
		n += m
		if m < len(u.b) {
			u.b = u.b[m:]
			break
		}
		c.units = c.units[1:]
	}
	return n, nil
}

// ReadAll returns everything up to the end of the stream. Reaching the
// end is not an error.
func (c *Codec) ReadAll() ([]byte, error) {
	if err := c.checkRead(); err != nil {
		return nil, err
	}
	var out []byte
	for {
		u, err := c.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if u.err != nil {
			return out, u.err
		}
		out = append(out, u.b...)
	}
}

// Unread pushes p, in the internal encoding, back in front of everything
// not yet read. At most the engine's capacity may be pending at once.
func (c *Codec) Unread(p []byte) error {
	if err := c.checkRead(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	if c.pending()+len(p) > c.engine.Cap() {
		return stream.ErrBufferFull
	}
	s := c.target.newSplitter()
	var units []unit
	for rest := p; len(rest) > 0; {
		piece, _ := s.split(rest, true)
		units = append(units, unit{b: append([]byte(nil), rest[:piece.n]...), valid: piece.valid})
		rest = rest[piece.n:]
	}
	c.pushFront(units)
	return nil
}

// Write accepts all of p or fails, converting it from the internal encoding
// when transcoding. Read-ahead is dropped first, moving a seekable stream
// back to the read position.
func (c *Codec) Write(p []byte) (int, error) {
	if err := c.CheckOpen(); err != nil {
		return 0, err
	}
	if !c.Writable() {
		return 0, stream.ErrNotWritable
	}
	if err := c.dropReadAhead(); err != nil {
		return 0, err
	}
	if c.writer == nil {
		if err := uio.WriteFull(c.engine, p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return c.writer.Write(p)
}

func (c *Codec) dropReadAhead() error {
	if len(c.units) == 0 && c.pendingSrc() == 0 {
		return nil
	}
	if !c.Seekable() {
		c.discard()
		return nil
	}
	pos, err := c.tell()
	if err != nil {
		return err
	}
	c.discard()
	_, err = c.engine.Seek(pos, io.SeekStart)
	return err
}

func (c *Codec) Flush() error {
	if err := c.CheckOpen(); err != nil {
		return err
	}
	return c.engine.Flush()
}

// Seek drops every decoded character. Positions are those of the external
// bytes; pushed back characters do not count.
func (c *Codec) Seek(offset int64, whence int) (int64, error) {
	if err := c.CheckOpen(); err != nil {
		return 0, err
	}
	if whence == io.SeekCurrent && offset == 0 {
		return c.tell()
	}
	if whence == io.SeekCurrent {
		offset -= int64(c.pendingSrc())
	}
	c.discard()
	return c.engine.Seek(offset, whence)
}

func (c *Codec) tell() (int64, error) {
	pos, err := c.engine.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return pos - int64(c.pendingSrc()), nil
}

// Wait reports readability right away while characters are queued.
func (c *Codec) Wait(events stream.Events, timeout time.Duration) (stream.Events, error) {
	if err := c.CheckOpen(); err != nil {
		return 0, err
	}
	if events.Has(stream.EventReadable) && len(c.units) > 0 {
		return stream.EventReadable, nil
	}
	return c.engine.Wait(events, timeout)
}

func (c *Codec) Available() (int, error) {
	if err := c.CheckOpen(); err != nil {
		return 0, err
	}
	n := c.pending()
	m, err := c.engine.Available()
	if err != nil {
		if n > 0 {
			return n, nil
		}
		return 0, err
	}
	return n + m, nil
}

// Close writes out whatever the converter still holds, then closes the
// engine.
func (c *Codec) Close() error {
	if c.Closed() {
		return nil
	}
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			return err
		}
		c.writer = nil
	}
	if err := c.Delegate.Close(); err != nil {
		return err
	}
	c.discard()
	return nil
}

// Dup returns a codec with the same options over a duplicate of the
// engine. Characters already decoded stay with the original.
func (c *Codec) Dup() (stream.Stream, error) {
	if err := c.CheckOpen(); err != nil {
		return nil, err
	}
	inner, err := c.engine.Dup()
	if err != nil {
		return nil, err
	}
	e := inner.(*buffer.Engine)
	if !c.transcode {
		return NewPassthrough(e, c.ext), nil
	}
	d, err := NewTranscoder(e, c.opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Codec) isNewline(u unit) bool {
	return u.err == nil && bytes.Equal(u.b, c.newline)
}
