package io

import (
	"io"

	"stream-toolkit/stream"
)

// WriteFull keeps writing until every byte of buf has been accepted by w.
// Writers in this module may accept fewer bytes than offered without an
// error, so callers that need all-or-error semantics go through here.
func WriteFull(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// WriteString is WriteFull for strings.
func WriteString(w io.Writer, s string) error {
	return WriteFull(w, []byte(s))
}

type fullWriter struct {
	w io.Writer
}

// FullWriter returns an io.Writer that honours the io.Writer contract on
// top of a stream that accepts partial writes.
func FullWriter(w io.Writer) io.Writer {
	return fullWriter{w}
}

func (fw fullWriter) Write(p []byte) (int, error) {
	if err := WriteFull(fw.w, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Copy moves everything readable from src into dst until src reports end
// of data. Would-block outcomes are returned to the caller untouched.
func Copy(dst stream.Stream, src stream.Stream, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, 4096)
	}
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := WriteFull(dst, buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
