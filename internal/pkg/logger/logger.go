package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger and returns it.
// Debug mode gets a human readable text formatter, everything else JSON.
func Setup(level string, debug bool) *logrus.Logger {
	return Configure(logrus.StandardLogger(), os.Stdout, level, debug)
}

func Configure(l *logrus.Logger, out io.Writer, level string, debug bool) *logrus.Logger {
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if debug {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}
