// Package alog is the structured logger shared by every Aether
// component. It wraps a single logrus.Logger the way the teacher's
// pkg/logger wrapped the standard library's log.Logger: one
// package-level instance, a handful of level helpers, and a banner for
// the process entrypoint. Structured fields (peer, seq, component)
// replace the teacher's ANSI-colored format strings since this logger
// is meant to be embedded in a library rather than printed to a human
// terminal only.
package alog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the minimum level logged by every caller of this
// package, by name ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	base.SetLevel(parsed)
	return nil
}

// For returns a logger scoped to one component, e.g. alog.For("link").
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Banner prints the process identification line once at startup. It
// intentionally bypasses structured fields since it is meant to be
// read by a human watching stderr, not parsed.
func Banner(name, version string) {
	base.Infof("%s %s starting", name, version)
}
