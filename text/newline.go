package text

import (
	"bytes"

	"golang.org/x/text/transform"
)

// newlineEncoder rewrites every "\n" of UTF-8 input as newline.
type newlineEncoder struct {
	transform.NopResetter
	newline []byte
}

func (t newlineEncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		i := bytes.IndexByte(src[nSrc:], '\n')
		if i < 0 {
			i = len(src) - nSrc
		}
		n := copy(dst[nDst:], src[nSrc:nSrc+i])
		nDst += n
		nSrc += n
		if n < i {
			return nDst, nSrc, transform.ErrShortDst
		}
		if nSrc == len(src) {
			break
		}
		if len(dst)-nDst < len(t.newline) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], t.newline)
		nSrc++
	}
	return nDst, nSrc, nil
}
