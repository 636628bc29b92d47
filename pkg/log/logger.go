package log

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetupLogger installs a zerolog provider at the given level as the global
// provider and routes pkg/errors warnings through it.
func SetupLogger(loglevel string, w io.Writer) (*ZerologProvider, error) {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return nil, err
	}
	provider := NewZerologProviderWithWriter(w, level)
	SetGlobalProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	tferrors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), "warning", warning)
	})
	return provider, nil
}

// SetGlobalProvider replaces the provider returned by GetProvider.
func SetGlobalProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetProvider returns the global provider.
func GetProvider() LoggerProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the global default logger.
func GetLogger() Logger {
	return GetProvider().GetLogger()
}

// GetLoggerWithName returns a named logger from the global provider.
func GetLoggerWithName(name string) Logger {
	return GetProvider().GetLoggerWithName(name)
}

// ToLogLevel converts a level name. It panics on unknown names; use
// ParseLevel for user input.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.Newf("invalid log level: %s", level)
	}
}

// Stacktrace returns the innermost stack recorded on err by cockroachdb/errors,
// or "" if none was recorded.
func Stacktrace(err error) string {
	if err == nil {
		return ""
	}
	var trace string
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if st := errors.GetReportableStackTrace(e); st != nil && len(st.Frames) > 0 {
			var b strings.Builder
			for i := len(st.Frames) - 1; i >= 0; i-- {
				f := st.Frames[i]
				fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.AbsPath, f.Lineno)
			}
			trace = b.String()
		}
	}
	return trace
}
