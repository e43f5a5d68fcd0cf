// Package xlog provides the module's structured logger. It mirrors the
// call shape the teacher's packages use throughout (Debugf/Infof/
// Warnf/Errorf, New(name)), backed by a real zap.SugaredLogger rather
// than a stub.
package xlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the module.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	Named(name string) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

var base *zap.Logger = zap.NewNop()

// Configure sets up the process-wide base logger. level is one of
// "debug", "info", "warn", "error". If file is non-empty, output is
// additionally written to that path.
func Configure(level string, file string) error {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), lvl),
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), lvl))
	}

	base = zap.New(zapcore.NewTee(cores...))
	return nil
}

// New creates a named logger, in the teacher's logging.New(name) shape.
func New(name string) Logger {
	return &zapLogger{s: base.Named(name).Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...any) { l.s.Fatalf(format, args...) }
func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{s: l.s.Desugar().Named(name).Sugar()}
}
