// Package logging wraps logrus the way rclone's fs.Debugf/fs.Logf wrap
// their own logger: a package-level logger plus leveled helper
// functions, so the rest of the tree never imports logrus directly.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel parses and applies a logrus level name ("debug", "info",
// "warn", "error").
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) { log.SetOutput(w) }

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

// WithFields opens a structured entry for attaching branch/path/errno
// context to a single log line (mirrors
// rclone's fs.Debugf(f, "...", args...) pattern of always naming the
// subject first).
func WithFields(fields logrus.Fields) *logrus.Entry { return log.WithFields(fields) }

// fuseLogWriter adapts the package logger to the io.Writer go-fuse's
// fuse.MountOptions.Logger (a *log.Logger) ultimately writes through,
// the same adapter shape as GoogleCloudPlatform-gcsfuse's
// logger.NewLegacyLogger feeding fuse.MountConfig.DebugLogger.
type fuseLogWriter struct{}

func (fuseLogWriter) Write(p []byte) (int, error) {
	log.Debug(string(p))
	return len(p), nil
}

// NewFuseWriter returns an io.Writer suitable for go-fuse's debug log
// sink, routing kernel-protocol trace lines through the same logger and
// level discipline as the rest of the filesystem's logging.
func NewFuseWriter() io.Writer { return fuseLogWriter{} }
