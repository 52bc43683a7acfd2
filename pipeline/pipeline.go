// Package pipeline assembles the canonical stack: text codec over buffer
// engine over blocking adapter over a raw stream.
package pipeline

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"stream-toolkit/blocking"
	"stream-toolkit/buffer"
	"stream-toolkit/stream"
	"stream-toolkit/text"
	"stream-toolkit/util"
)

var idg util.IDGenerator

// Pipeline is the outermost layer of the stack. Closing it closes every
// layer down to the raw stream.
type Pipeline struct {
	*text.Codec

	id       uint64
	raw      stream.Stream
	blocking *blocking.Stream
	engine   *buffer.Engine

	pool *util.BufferPool
	buf  []byte
	log  *logrus.Entry
}

var _ stream.Stream = (*Pipeline)(nil)

func New(raw stream.Stream, cfg Config) (*Pipeline, error) {
	cfg = sanitizeConfig(cfg)
	opts, err := cfg.TextOptions()
	if err != nil {
		return nil, err
	}
	id := idg.Next()
	log := cfg.Logger.WithField("stream", id)

	b := blocking.New(raw, blocking.Config{
		WaitTimeout: cfg.WaitTimeout,
		Logger:      log,
	})
	bcfg := buffer.Config{
		BufferSize: int(cfg.BufferSize),
		Logger:     log,
	}
	var buf []byte
	if cfg.Pool != nil {
		buf = cfg.Pool.Get()
		bcfg.Buffer = buf
	}
	e := buffer.New(b, bcfg)
	c, err := text.New(e, opts)
	if err != nil {
		if buf != nil {
			cfg.Pool.Put(buf)
		}
		return nil, err
	}

	p := assemble(c, id, log)
	p.pool, p.buf = cfg.Pool, buf
	p.log.WithField("assembled", idg.Last()).Debugf("Assembled pipeline with %s buffer, encoding %s", humanize.IBytes(uint64(e.Cap())), c.Encoding())
	return p, nil
}

func assemble(c *text.Codec, id uint64, log *logrus.Entry) *Pipeline {
	e := c.Engine()
	b := e.Inner().(*blocking.Stream)
	return &Pipeline{
		Codec:    c,
		id:       id,
		raw:      b.Inner(),
		blocking: b,
		engine:   e,
		log:      log.WithField("layer", "pipeline"),
	}
}

func (p *Pipeline) ID() uint64 {
	return p.id
}

func (p *Pipeline) Raw() stream.Stream {
	return p.raw
}

func (p *Pipeline) Blocking() *blocking.Stream {
	return p.blocking
}

func (p *Pipeline) Buffered() *buffer.Engine {
	return p.engine
}

func (p *Pipeline) Text() *text.Codec {
	return p.Codec
}

// Close flushes and closes every layer. A pooled buffer goes back to its
// pool once the engine is closed.
func (p *Pipeline) Close() error {
	if p.Closed() {
		return nil
	}
	err := p.Codec.Close()
	if err != nil {
		p.log.WithError(err).Warn("Close failed")
	}
	if p.Closed() && p.buf != nil {
		p.pool.Put(p.buf)
		p.buf = nil
	}
	return err
}

// Dup duplicates the raw stream and builds a new pipeline over it with a
// fresh buffer.
func (p *Pipeline) Dup() (stream.Stream, error) {
	s, err := p.Codec.Dup()
	if err != nil {
		return nil, err
	}
	id := idg.Next()
	return assemble(s.(*text.Codec), id, p.log.WithField("stream", id)), nil
}
