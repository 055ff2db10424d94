// Package ping provides the liveness check that gates every other probe.
// A host that fails the check is dropped silently; it is never reported.
package ping

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultCount is the number of echo requests per host.
	DefaultCount = 1
	// DefaultTimeout is the per-request reply timeout.
	DefaultTimeout = 1 * time.Second
)

// Mode selects the ping implementation.
type Mode string

const (
	// ModeExec runs the operating system ping utility.
	ModeExec Mode = "exec"
	// ModeICMP sends echo requests from this process.
	ModeICMP Mode = "icmp"
)

// ErrUnknownMode is returned by New for an unrecognised Mode.
var ErrUnknownMode = errors.New("unknown ping mode")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ping operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Prober reports whether a host answers a liveness check.
type Prober interface {
	Alive(ctx context.Context, ip string) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, ip string) bool

// Alive calls f.
func (f ProberFunc) Alive(ctx context.Context, ip string) bool { return f(ctx, ip) }

// New returns the Prober for mode with the given count and timeout.
func New(mode Mode, count int, timeout time.Duration) (Prober, error) {
	switch mode {
	case "", ModeExec:
		p := NewExecPinger()
		if count > 0 {
			p.Count = count
		}
		if timeout > 0 {
			p.Timeout = timeout
		}
		return p, nil
	case ModeICMP:
		p := NewICMPPinger()
		if count > 0 {
			p.Count = count
		}
		if timeout > 0 {
			p.Timeout = timeout
		}
		return p, nil
	}
	return nil, ErrUnknownMode
}

// Chain returns a Prober that reports alive as soon as any of probers does,
// trying them in order.
func Chain(probers ...Prober) Prober {
	return ProberFunc(func(ctx context.Context, ip string) bool {
		for _, p := range probers {
			if p != nil && p.Alive(ctx, ip) {
				return true
			}
		}
		return false
	})
}
