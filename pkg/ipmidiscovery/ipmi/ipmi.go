// Package ipmi establishes IPMI v2.0 (RMCP+) sessions to confirm that a host
// runs a baseboard management controller. The session handshake itself is
// delegated to github.com/bougou/go-ipmi.
package ipmi

import (
	"context"
	"errors"
	"fmt"
	"time"

	goipmi "github.com/bougou/go-ipmi"
)

const (
	// Port is the IPMI over LAN port.
	Port = 623
	// DefaultTimeout bounds one session handshake.
	DefaultTimeout = 3 * time.Second
)

// ErrTimeout is returned when a handshake does not finish in time.
var ErrTimeout = errors.New("ipmi handshake timed out")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from IPMI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Credentials for session establishment.
type Credentials struct {
	Username string
	Password string
}

// Handshaker attempts session establishment against host:port. A nil error
// means an authenticated session was opened (and closed again).
type Handshaker interface {
	Handshake(ctx context.Context, host string, port int, creds Credentials) error
}

// HandshakerFunc adapts a function to Handshaker.
type HandshakerFunc func(ctx context.Context, host string, port int, creds Credentials) error

// Handshake calls f.
func (f HandshakerFunc) Handshake(ctx context.Context, host string, port int, creds Credentials) error {
	return f(ctx, host, port, creds)
}

// LanplusClient opens lanplus sessions with go-ipmi.
type LanplusClient struct {
	Timeout time.Duration
}

// NewLanplusClient creates a LanplusClient with defaults.
func NewLanplusClient() *LanplusClient {
	return &LanplusClient{Timeout: DefaultTimeout}
}

// Handshake runs the RMCP+ open session and RAKP exchange. The call blocks
// inside go-ipmi; callers that must not wait past a deadline run it through
// an Executor.
func (c *LanplusClient) Handshake(ctx context.Context, host string, port int, creds Credentials) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := goipmi.NewClient(host, port, creds.Username, creds.Password)
	if err != nil {
		return fmt.Errorf("new ipmi client: %w", err)
	}
	client.WithInterface(goipmi.InterfaceLanplus)
	client.WithTimeout(timeout)

	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Connect(hsCtx); err != nil {
		debugLog("%s:%d: session failed: %v", host, port, err)
		return fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	debugLog("%s:%d: session established", host, port)

	if err := client.Close(hsCtx); err != nil {
		// the session was established; a failed close does not change that
		debugLog("%s:%d: close session: %v", host, port, err)
	}
	return nil
}
