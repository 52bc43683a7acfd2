package blocking

import (
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultWaitTimeout bounds each wait so that a close issued by another
	// owner is noticed by the retry loop.
	DefaultWaitTimeout = time.Second

	minWaitTimeout = time.Millisecond
)

type Config struct {
	// Upper bound of a single wait between retries.
	WaitTimeout time.Duration

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
		WaitTimeout: DefaultWaitTimeout,
		Logger:      discardLogger,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.WaitTimeout < minWaitTimeout {
		cfg.WaitTimeout = minWaitTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger
	}
	return cfg
}
