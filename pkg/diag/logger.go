// Package diag builds the diagnostic channel shared by scoregrid components.
// Diagnostics never go to the primary output stream.
package diag

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Field keys used on every entry.
const (
	FieldComp = "comp"
	FieldCode = "code"
)

// NewLogger returns a logger writing to w (stderr when nil) at the given
// level ("debug", "info", "warn", "error") in "text" or "json" format.
func NewLogger(level, format string, w io.Writer) (*logrus.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "log level %q", level)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Wrapf(ErrConfig, "log format %q", format)
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// For scopes a logger to one component. A nil logger yields a discarding one.
func For(l logrus.FieldLogger, comp string) logrus.FieldLogger {
	if l == nil {
		l = Nop()
	}
	return l.WithField(FieldComp, comp)
}

// Strange logs a broken internal assumption.
func Strange(l logrus.FieldLogger, format string, args ...interface{}) {
	l.WithField(FieldCode, CodeInternal).Errorf("strange error: "+format, args...)
}

// Malformed logs a locally recovered input problem.
func Malformed(l logrus.FieldLogger, format string, args ...interface{}) {
	l.WithField(FieldCode, CodeInput).Errorf(format, args...)
}
