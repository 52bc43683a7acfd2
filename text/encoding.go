package text

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MaxCharBound is the most bytes ever collected while looking for the end
// of one character.
const MaxCharBound = 16

var ErrUnknownEncoding = errors.New("text: unknown encoding")

type kind uint8

const (
	kindBinary kind = iota
	kindASCII
	kindUTF8
	kindXText
)

// Encoding is a character encoding the codec can split and convert.
type Encoding struct {
	name string
	kind kind
	enc  encoding.Encoding
	// Used for encoding when it differs from enc.
	out      encoding.Encoding
	maxWidth int
}

var (
	// Binary treats every byte as one character and converts to nothing.
	Binary = &Encoding{name: "ASCII-8BIT", kind: kindBinary, maxWidth: 1}
	ASCII  = &Encoding{name: "US-ASCII", kind: kindASCII, maxWidth: 1}
	UTF8   = &Encoding{name: "UTF-8", kind: kindUTF8, maxWidth: 4}
)

var builtins = map[string]*Encoding{
	"BINARY":     Binary,
	"ASCII-8BIT": Binary,
	"US-ASCII":   ASCII,
	"ASCII":      ASCII,
	"UTF-8":      UTF8,
	"UTF8":       UTF8,
}

// Widest characters of the multi-byte encodings golang.org/x/text knows.
var maxWidths = map[string]int{
	"UTF-16":      4,
	"UTF-16BE":    4,
	"UTF-16LE":    4,
	"Shift_JIS":   2,
	"windows-31j": 2,
	"EUC-JP":      3,
	"ISO-2022-JP": 3,
	"EUC-KR":      2,
	"GBK":         2,
	"GB2312":      2,
	"GB18030":     4,
	"Big5":        2,
	"HZ-GB-2312":  2,
}

// Lookup finds an encoding by IANA or WHATWG name.
func Lookup(name string) (*Encoding, error) {
	if e, ok := builtins[strings.ToUpper(name)]; ok {
		return e, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(name)
	}
	if err != nil || enc == nil {
		return nil, errors.Wrapf(ErrUnknownEncoding, "%q", name)
	}
	return FromEncoding(enc), nil
}

// FromEncoding wraps an x/text encoding.
func FromEncoding(enc encoding.Encoding) *Encoding {
	if enc == unicode.UTF8 {
		return UTF8
	}
	name, err := ianaindex.IANA.Name(enc)
	if err != nil || name == "" {
		if name, err = htmlindex.Name(enc); err != nil {
			name = "unknown"
		}
	}
	width, ok := maxWidths[name]
	if _, single := enc.(*charmap.Charmap); single {
		width = 1
	} else if !ok {
		width = MaxCharBound
	}
	e := &Encoding{name: name, kind: kindXText, enc: enc, maxWidth: width}
	if name == "UTF-16" {
		// Reads honour a byte order mark; writes never emit one, so that
		// characters can be encoded one at a time.
		e.out = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	return e
}

func (e *Encoding) String() string {
	return e.name
}

func (e *Encoding) Name() string {
	return e.name
}

// MaxWidth returns the widest character of the encoding in bytes.
func (e *Encoding) MaxWidth() int {
	return e.maxWidth
}

// Is reports whether both describe the same encoding.
func (e *Encoding) Is(other *Encoding) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e == other || (e.kind == other.kind && e.name == other.name)
}

// bound is how many bytes may be collected for one character.
func (e *Encoding) bound() int {
	if e.maxWidth < MaxCharBound {
		return e.maxWidth
	}
	return MaxCharBound
}

// utf8Compatible reports whether decoding to UTF-8 leaves valid input as is.
func (e *Encoding) utf8Compatible() bool {
	return e.kind == kindUTF8 || e.kind == kindASCII
}

func (e *Encoding) newSplitter() splitter {
	switch e.kind {
	case kindUTF8:
		return utf8Splitter{}
	case kindXText:
		return &xtextSplitter{dec: e.enc.NewDecoder(), bound: e.bound()}
	default:
		return byteSplitter{ascii: e.kind == kindASCII}
	}
}

// decoder converts the encoding to UTF-8, or is nil when nothing has to
// change.
func (e *Encoding) decoder() transform.Transformer {
	if e.kind == kindXText {
		return e.enc.NewDecoder()
	}
	return nil
}

// encoder converts UTF-8 to the encoding, or is nil when nothing has to
// change.
func (e *Encoding) encoder(undefined UndefinedPolicy) transform.Transformer {
	switch e.kind {
	case kindASCII:
		return asciiEncoder{replace: undefined == UndefinedReplace}
	case kindXText:
		out := e.enc
		if e.out != nil {
			out = e.out
		}
		enc := out.NewEncoder()
		if undefined == UndefinedReplace {
			enc = encoding.ReplaceUnsupported(enc)
		}
		return enc
	}
	return nil
}

// encode converts a single UTF-8 character.
func (e *Encoding) encode(b []byte) ([]byte, error) {
	t := e.encoder(UndefinedError)
	if t == nil {
		return b, nil
	}
	out, _, err := transform.Bytes(t, b)
	return out, err
}

var errUndefined = errors.New("text: character not representable")

// asciiEncoder passes 7-bit input and rejects or replaces the rest.
type asciiEncoder struct {
	transform.NopResetter
	replace bool
}

func (t asciiEncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		c := src[nSrc]
		if c < 0x80 {
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}
		if !t.replace {
			return nDst, nSrc, errUndefined
		}
		// Swallow the whole UTF-8 sequence behind one '?'.
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		_, n := utf8.DecodeRune(src[nSrc:])
		dst[nDst] = '?'
		nDst++
		nSrc += n
	}
	return nDst, nSrc, nil
}
