// Package logging configures logrus and carries request-scoped entries
// through context.Context.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Setup configures the standard logrus logger.  Development keeps the text
// formatter; every other environment logs JSON.
func Setup(env, level string) {
	logrus.SetOutput(os.Stdout)
	if env == "dev" || env == "test" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// ToContext stores a log entry on the context.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by ToContext, or a bare entry on the
// standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return e
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
