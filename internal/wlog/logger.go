// Package wlog is the compiler's logging facade. It defaults to a no-op
// logger so library users pay nothing unless they opt in.
package wlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package-wide logger, defaulting to a no-op implementation.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package-wide logger. Call before compiling.
func SetLogger(l *zap.Logger) {
	logger = l
}
