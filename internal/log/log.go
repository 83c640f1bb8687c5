// Package log provides the process-wide zap logger used by every service.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	sugar       *zap.SugaredLogger
	base        *zap.Logger
	defaultOnce sync.Once
)

// Init replaces the package logger. debug selects the development encoder.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	base = l
	sugar = l.Sugar()
	return nil
}

// SetLogger installs an already built logger, mostly for tests (zap.NewNop()).
func SetLogger(l *zap.Logger) {
	base = l.WithOptions(zap.AddCallerSkip(1))
	sugar = base.Sugar()
}

// GetSugaredLogger returns the sugared logger, creating a production one on first use.
func GetSugaredLogger() *zap.SugaredLogger {
	defaultOnce.Do(func() {
		if sugar == nil {
			base, _ = zap.NewProduction(zap.AddCallerSkip(1))
			sugar = base.Sugar()
		}
	})
	return sugar
}

// Sync flushes buffered entries.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Warnw(msg, keysAndValues...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}
