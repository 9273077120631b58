// Package logger provides tagged, levelled logging on top of logrus.
//
// Every line carries a short upper-case tag naming the subsystem that wrote
// it (SIM, NET, HTTP, LOAD, OUT, DB) so runs can be filtered by component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = newBase(os.Stdout)

func newBase(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the level ("debug", "info", "warn", "error") and format
// ("text" or "json"). A nil out keeps the current writer.
func Configure(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	base.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	if out != nil {
		base.SetOutput(out)
	}
	return nil
}

// Logger returns the shared logrus logger.
func Logger() *logrus.Logger { return base }

// WithTag returns an entry tagged for structured fields.
func WithTag(tag string) *logrus.Entry { return base.WithField("tag", tag) }

// Info logs msg under tag.
func Info(tag, msg string) { WithTag(tag).Info(msg) }

// Warn logs msg under tag at warning level.
func Warn(tag, msg string) { WithTag(tag).Warn(msg) }

// Error logs msg under tag at error level.
func Error(tag, msg string) { WithTag(tag).Error(msg) }

// Debug logs msg under tag at debug level.
func Debug(tag, msg string) { WithTag(tag).Debug(msg) }

// Success logs a completed operation at info level.
func Success(tag, msg string) { WithTag(tag).WithField("ok", true).Info(msg) }

// Banner logs the program name and version at startup.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	base.WithField("version", version).Info("roadsim")
}

// Section marks the start of a phase of the run.
func Section(title string) { base.WithField("section", title).Info("== " + title + " ==") }

// Stats logs a single named figure.
func Stats(key string, value any) { base.WithField(key, value).Info("stat") }
