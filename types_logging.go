package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the leveled, structured logging contract used across the package.
// It aliases the glog interface so applications can hand loggers straight from
// go-logger without writing adapters.
type Logger = glog.Logger

// LoggerProvider resolves named child loggers. glog.BaseLogger and
// glog.ProviderFromLogger both satisfy it.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LegacyLogger is the four level contract older integrations expose.
type LegacyLogger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// FormattedLogger matches printf style loggers.
type FormattedLogger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ResolveLogger resolves a scoped logger from the provider when available,
// falling back to the given logger, and finally to the package default. It
// always returns a usable (provider, logger) pair.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	if fallback == nil {
		fallback = defaultLogger()
	}

	return singleLoggerProvider{logger: fallback}, fallback
}

type singleLoggerProvider struct {
	logger Logger
}

func (p singleLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func defaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Trace(msg string, args ...any) { d.print("TRC", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

// Fatal logs at the highest level but does not exit; the default logger is a
// last resort and must stay safe inside tests and request handlers.
func (d defLogger) Fatal(msg string, args ...any) { d.print("FTL", msg, args...) }

func (d defLogger) WithContext(context.Context) Logger { return d }

func (d defLogger) print(level, msg string, args ...any) {
	if len(args) > 0 {
		fmt.Printf("[%s] AUTH %s %v\n", level, msg, args)
		return
	}
	fmt.Printf("[%s] AUTH %s\n", level, msg)
}

type noopLogger struct{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithContext(context.Context) Logger { return n }

// FromLegacyLogger adapts a four level logger to the Logger contract. Trace
// maps to Debug and Fatal maps to Error since legacy loggers lack both.
func FromLegacyLogger(legacy LegacyLogger) Logger {
	if legacy == nil {
		return noopLogger{}
	}
	return legacyAdapter{legacy: legacy}
}

type legacyAdapter struct {
	legacy LegacyLogger
}

func (a legacyAdapter) Trace(msg string, args ...any) { a.legacy.Debug(msg, args...) }
func (a legacyAdapter) Debug(msg string, args ...any) { a.legacy.Debug(msg, args...) }
func (a legacyAdapter) Info(msg string, args ...any)  { a.legacy.Info(msg, args...) }
func (a legacyAdapter) Warn(msg string, args ...any)  { a.legacy.Warn(msg, args...) }
func (a legacyAdapter) Error(msg string, args ...any) { a.legacy.Error(msg, args...) }
func (a legacyAdapter) Fatal(msg string, args ...any) { a.legacy.Error(msg, args...) }

func (a legacyAdapter) WithContext(context.Context) Logger { return a }

// FromFormattedLogger adapts a printf style logger to the Logger contract.
func FromFormattedLogger(formatted FormattedLogger) Logger {
	if formatted == nil {
		return noopLogger{}
	}
	return formattedSourceAdapter{formatted: formatted}
}

type formattedSourceAdapter struct {
	formatted FormattedLogger
}

func (a formattedSourceAdapter) Trace(msg string, args ...any) { a.formatted.Debugf(msg, args...) }
func (a formattedSourceAdapter) Debug(msg string, args ...any) { a.formatted.Debugf(msg, args...) }
func (a formattedSourceAdapter) Info(msg string, args ...any)  { a.formatted.Infof(msg, args...) }
func (a formattedSourceAdapter) Warn(msg string, args ...any)  { a.formatted.Warnf(msg, args...) }
func (a formattedSourceAdapter) Error(msg string, args ...any) { a.formatted.Errorf(msg, args...) }
func (a formattedSourceAdapter) Fatal(msg string, args ...any) { a.formatted.Errorf(msg, args...) }

func (a formattedSourceAdapter) WithContext(context.Context) Logger { return a }

// ToFormattedLogger exposes a Logger through printf style methods, rendering
// the format before handing the message off.
func ToFormattedLogger(logger Logger) FormattedLogger {
	if logger == nil {
		logger = defaultLogger()
	}
	return formattedTargetAdapter{logger: logger}
}

type formattedTargetAdapter struct {
	logger Logger
}

func (a formattedTargetAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a formattedTargetAdapter) Infof(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

func (a formattedTargetAdapter) Warnf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a formattedTargetAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

var _ LoggerProvider = singleLoggerProvider{}
