package netem

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = &logrus.Logger{
	Out:   os.Stderr,
	Level: logrus.WarnLevel,
	Formatter: &logrus.TextFormatter{
		FullTimestamp: true,
	},
}

// SetLogLevel controls how much of the injected behavior gets logged.
// Debug logs every disturbed operation.
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}
