package shared

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger logs to stderr so that it never mixes with program output.
func NewLogger(debug bool) *logrus.Logger {
	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	return &logrus.Logger{
		Out:   os.Stderr,
		Level: level,
		Formatter: &logrus.TextFormatter{
			FullTimestamp: true,
		},
	}
}
