package text

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// piece describes the first character of a byte sequence.
type piece struct {
	// Source bytes the character occupies.
	n int
	// The character as UTF-8, only valid until the next split. For
	// binary input it is the raw byte.
	decoded []byte

	valid      bool
	incomplete bool
}

// splitter finds character boundaries. split returns false when src ends
// inside a character and more input may complete it; with atEOF set it
// always makes progress.
type splitter interface {
	split(src []byte, atEOF bool) (piece, bool)
	reset()
}

type byteSplitter struct {
	ascii bool
}

func (s byteSplitter) split(src []byte, atEOF bool) (piece, bool) {
	return piece{
		n:       1,
		decoded: src[:1],
		valid:   !s.ascii || src[0] < utf8.RuneSelf,
	}, true
}

func (byteSplitter) reset() {}

type utf8Splitter struct{}

func (utf8Splitter) split(src []byte, atEOF bool) (piece, bool) {
	if !utf8.FullRune(src) {
		if !atEOF {
			return piece{}, false
		}
		return piece{n: len(src), decoded: src, incomplete: true}, true
	}
	r, size := utf8.DecodeRune(src)
	if r == utf8.RuneError && size == 1 {
		return piece{n: 1, decoded: src[:1]}, true
	}
	return piece{n: size, decoded: src[:size], valid: true}, true
}

func (utf8Splitter) reset() {}

var replacementChar = []byte(string(utf8.RuneError))

// xtextSplitter feeds a golang.org/x/text decoder one more byte at a time
// until it produces a character. The decoder is kept across calls since
// some encodings carry state (byte order marks, shift sequences).
type xtextSplitter struct {
	dec   transform.Transformer
	bound int
	buf   [64]byte
}

func (s *xtextSplitter) split(src []byte, atEOF bool) (piece, bool) {
	limit := len(src)
	if limit > s.bound {
		limit = s.bound
	}
	for k := 1; k <= limit; k++ {
		nDst, nSrc, err := s.dec.Transform(s.buf[:], src[:k], false)
		if nSrc == 0 {
			if err == transform.ErrShortSrc {
				continue
			}
			return piece{n: 1, decoded: src[:1]}, true
		}
		decoded := s.buf[:nDst]
		return piece{
			n:       nSrc,
			decoded: decoded,
			valid:   !bytes.Equal(decoded, replacementChar),
		}, true
	}
	if len(src) < s.bound && !atEOF {
		return piece{}, false
	}
	return piece{
		n:          limit,
		decoded:    src[:limit],
		incomplete: len(src) < s.bound,
	}, true
}

func (s *xtextSplitter) reset() {
	s.dec.Reset()
}
