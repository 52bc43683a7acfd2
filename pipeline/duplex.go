package pipeline

import (
	"stream-toolkit/duplex"
	"stream-toolkit/stream"
	"stream-toolkit/text"
)

// Duplex joins a reading and a writing pipeline. Character and line reads
// go to the reading one.
type Duplex struct {
	*duplex.Stream

	reader *Pipeline
	writer *Pipeline
}

var _ stream.Stream = (*Duplex)(nil)

// NewDuplex builds one pipeline per direction. A nil writer, or one equal
// to reader, gives a single pipeline used both ways.
func NewDuplex(reader, writer stream.Stream, cfg Config) (*Duplex, error) {
	r, err := New(reader, cfg)
	if err != nil {
		return nil, err
	}
	w := r
	if writer != nil && writer != reader {
		if w, err = New(writer, cfg); err != nil {
			r.Close()
			return nil, err
		}
	}
	return &Duplex{
		Stream: duplex.New(r, w, true),
		reader: r,
		writer: w,
	}, nil
}

func (d *Duplex) Reader() *Pipeline {
	return d.reader
}

func (d *Duplex) Writer() *Pipeline {
	return d.writer
}

func (d *Duplex) checkRead() error {
	if d.Closed() {
		return stream.ErrClosed
	}
	if d.ClosedRead() {
		return stream.ErrReadClosed
	}
	return nil
}

func (d *Duplex) ReadChar() ([]byte, error) {
	if err := d.checkRead(); err != nil {
		return nil, err
	}
	return d.reader.ReadChar()
}

func (d *Duplex) ReadLine(opts text.LineOptions) ([]byte, error) {
	if err := d.checkRead(); err != nil {
		return nil, err
	}
	return d.reader.ReadLine(opts)
}
