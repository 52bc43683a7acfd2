package pipeline

import (
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"stream-toolkit/blocking"
	"stream-toolkit/buffer"
	"stream-toolkit/text"
	"stream-toolkit/util"
)

// ByteSize is a buffer size that also accepts human-friendly values such
// as "64KiB" or "1 MB".
type ByteSize uint64

func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

func (s *ByteSize) Set(v string) error {
	return s.UnmarshalText([]byte(v))
}

func (s ByteSize) Type() string {
	return "size"
}

func (s ByteSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ByteSize) UnmarshalText(b []byte) error {
	n, err := humanize.ParseBytes(strings.TrimSpace(string(b)))
	if err != nil {
		return errors.Wrapf(err, "invalid size %q", b)
	}
	*s = ByteSize(n)
	return nil
}

func (s *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	return s.UnmarshalText([]byte(value.Value))
}

type Config struct {
	// Encoding of the bytes in the stream. Empty means binary.
	Encoding string `yaml:"encoding"`
	// Encoding characters are handed out in. Empty means Encoding.
	InternalEncoding string `yaml:"internalEncoding"`
	UniversalNewline bool   `yaml:"universalNewline"`
	// One of "lf", "crlf" or "cr".
	WriteNewline string `yaml:"writeNewline"`
	// One of "return", "replace" or "error".
	Invalid string `yaml:"invalid"`
	// One of "error" or "replace".
	Undefined string `yaml:"undefined"`

	BufferSize  ByteSize      `yaml:"bufferSize"`
	WaitTimeout time.Duration `yaml:"waitTimeout"`

	// Optional pool the engine buffers are taken from. Its buffer size
	// overrides BufferSize.
	Pool *util.BufferPool `yaml:"-"`

	// Optional logger for debugging purposes
	Logger *logrus.Entry `yaml:"-"`
}

var discardLogger = logrus.NewEntry(&logrus.Logger{
	Out:       ioutil.Discard,
	Formatter: new(logrus.TextFormatter),
	Level:     logrus.PanicLevel,
})

func DefaultConfig() Config {
	return Config{
		BufferSize:  buffer.DefaultBufferSize,
		WaitTimeout: blocking.DefaultWaitTimeout,
		Logger:      discardLogger,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = buffer.DefaultBufferSize
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = blocking.DefaultWaitTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}
	return cfg
}

// LoadConfig reads a YAML pipeline config. Fields left out keep their
// default values and unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "unable to open config")
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "unable to parse config %s", path)
	}
	return cfg, nil
}

// TextOptions resolves the encoding and policy names.
func (cfg Config) TextOptions() (text.Options, error) {
	var opts text.Options
	var err error
	if cfg.Encoding != "" {
		if opts.External, err = text.Lookup(cfg.Encoding); err != nil {
			return opts, err
		}
	}
	if cfg.InternalEncoding != "" {
		if opts.Internal, err = text.Lookup(cfg.InternalEncoding); err != nil {
			return opts, err
		}
	}
	opts.UniversalNewline = cfg.UniversalNewline

	switch strings.ToLower(cfg.WriteNewline) {
	case "", "lf":
		opts.WriteNewline = text.NewlineLF
	case "crlf":
		opts.WriteNewline = text.NewlineCRLF
	case "cr":
		opts.WriteNewline = text.NewlineCR
	default:
		return opts, errors.Errorf("unknown newline %q", cfg.WriteNewline)
	}

	switch strings.ToLower(cfg.Invalid) {
	case "", "return":
		opts.Invalid = text.InvalidReturn
	case "replace":
		opts.Invalid = text.InvalidReplace
	case "error":
		opts.Invalid = text.InvalidError
	default:
		return opts, errors.Errorf("unknown invalid policy %q", cfg.Invalid)
	}

	switch strings.ToLower(cfg.Undefined) {
	case "", "error":
		opts.Undefined = text.UndefinedError
	case "replace":
		opts.Undefined = text.UndefinedReplace
	default:
		return opts, errors.Errorf("unknown undefined policy %q", cfg.Undefined)
	}
	return opts, nil
}
