package symgo

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// The package is silent by default; applications that want to trace the
// engine's strategy decisions install their own logger.
var activeLogger atomic.Pointer[zap.SugaredLogger]

func init() { activeLogger.Store(zap.NewNop().Sugar()) }

// SetLogger installs the logger used for engine tracing. Passing nil
// restores the silent default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		activeLogger.Store(zap.NewNop().Sugar())
		return
	}
	activeLogger.Store(l.Sugar())
}

func logger() *zap.SugaredLogger { return activeLogger.Load() }
