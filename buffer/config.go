package buffer

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBufferSize = 64 * 1024

	minBufferSize = 1
)

type Config struct {
	// Capacity of the engine's buffer, shared by reads and writes.
	BufferSize int
	// Optional pre-allocated buffer. When set, BufferSize is its length.
	Buffer []byte

	// Optional logger for debugging purposes
	Logger *logrus.Entry
}

var discardLogger = logrus.NewEntry(&logrus.Logger{
	Out:       ioutil.Discard,
	Formatter: new(logrus.TextFormatter),
	Level:     logrus.PanicLevel,
})

func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		Logger:     discardLogger,
	}
}

func sanitizeConfig(cfg Config) Config {
	if len(cfg.Buffer) > 0 {
		cfg.BufferSize = len(cfg.Buffer)
	} else {
		cfg.Buffer = nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.BufferSize < minBufferSize {
		cfg.BufferSize = minBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}
	return cfg
}
