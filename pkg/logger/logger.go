// Package logger holds the process wide zap logger and hands out named
// children of it.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	once sync.Once
	root *zap.Logger
)

func build() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("build logger: %v", err))
	}
	return l
}

func base() *zap.Logger {
	once.Do(func() {
		if root == nil {
			root = build()
		}
	})
	return root
}

// SetLevel changes the level of every logger handed out so far.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// Replace swaps the root logger. Tests use it with zaptest or observer
// loggers; it must be called before any MustNamed.
func Replace(l *zap.Logger) {
	once.Do(func() {})
	root = l
}

func MustNamed(name string) *zap.SugaredLogger {
	return base().Named(name).Sugar()
}

func Sync() {
	_ = base().Sync()
}
