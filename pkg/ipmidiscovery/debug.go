// Package ipmidiscovery: Debug logging support.
package ipmidiscovery

import "sync"

// DebugLevel represents the verbosity level for debug logging.
type DebugLevel int

const (
	// DebugOff disables all debug logging.
	DebugOff DebugLevel = iota
	// DebugBasic logs scan stages and per-host tier decisions.
	DebugBasic
	// DebugVerbose also logs every probe attempt from the subpackages.
	DebugVerbose
)

// DebugLogger is a callback function for debug logging.
// The method parameter indicates which stage generated the message.
type DebugLogger func(method Method, format string, args ...interface{})

var (
	debugLogger DebugLogger
	debugLevel  DebugLevel
	debugMu     sync.RWMutex
)

// SetDebugLogger sets a custom debug logger callback.
// Pass nil to disable debug logging.
func SetDebugLogger(logger DebugLogger) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLogger = logger
}

// SetDebugLevel sets the debug verbosity level.
func SetDebugLevel(level DebugLevel) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugLevel = level
}

// GetDebugLevel returns the current debug level.
func GetDebugLevel() DebugLevel {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugLevel
}

func logAt(threshold DebugLevel, method Method, format string, args ...interface{}) {
	debugMu.RLock()
	logger := debugLogger
	level := debugLevel
	debugMu.RUnlock()

	if logger != nil && level >= threshold {
		logger(method, format, args...)
	}
}

// debugLog logs a message if debug logging is enabled.
func debugLog(method Method, format string, args ...interface{}) {
	logAt(DebugBasic, method, format, args...)
}

// debugLogVerbose logs a message only at DebugVerbose.
func debugLogVerbose(method Method, format string, args ...interface{}) {
	logAt(DebugVerbose, method, format, args...)
}
