// Package applog constructs the process-wide logrus logger. Callers
// receive a *logrus.Logger through Deps rather than reaching for a
// package-level global.
package applog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a text-formatted logger writing to stderr at the given
// level ("debug", "info", "warn", "error"); an unparseable level
// falls back to "info".
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
