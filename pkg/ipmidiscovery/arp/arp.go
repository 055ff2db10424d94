//go:build linux || darwin || freebsd || netbsd || openbsd

// Package arp resolves hardware addresses with ARP requests. The scanner uses
// it as an optional liveness fallback for hosts that drop ICMP (many BMC
// network stacks do) and to fetch the MAC of discovered controllers.
// Note: sending ARP requests needs raw socket privileges.
// Platform support: Linux and BSD only (not Windows).
package arp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/j-keck/arping"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/pool"
)

const (
	// DefaultTimeout is the default timeout for ARP lookups.
	DefaultTimeout = 1 * time.Second
	// DefaultWorkers bounds concurrent lookups; the OS may rate-limit ARP.
	DefaultWorkers = pool.DefaultWorkers
)

// Errors
var (
	// ErrNotSupported is returned when ARP is called on unsupported platforms.
	ErrNotSupported = errors.New("ARP discovery is not supported on this platform")
	// ErrInvalidIP is returned when an invalid IP address is provided.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ARP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// arping keeps its timeout in a package global.
var timeoutMu sync.Mutex

// pingFunc is swapped out in tests.
var pingFunc = func(ip net.IP, timeout time.Duration) (net.HardwareAddr, time.Duration, error) {
	timeoutMu.Lock()
	arping.SetTimeout(timeout)
	timeoutMu.Unlock()
	return arping.Ping(ip)
}

// Result contains the result of an ARP lookup.
type Result struct {
	IP         string
	MACAddress string
	IsUp       bool
	Duration   time.Duration
	Error      error
}

// Discovery performs ARP lookups.
type Discovery struct {
	Timeout time.Duration
	Workers int
}

// NewDiscovery creates a new ARP discovery helper with defaults.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout, Workers: DefaultWorkers}
}

// LookupAddr sends an ARP request for ip and returns the responder's MAC.
func (a *Discovery) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	result := &Result{IP: ip}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		result.Error = ErrInvalidIP
		return result, ErrInvalidIP
	}
	if parsedIP.To4() == nil {
		result.Error = ErrIPv6NotSupported
		return result, ErrIPv6NotSupported
	}

	debugLog("Looking up ARP for %s", ip)
	start := time.Now()

	type arpResponse struct {
		mac net.HardwareAddr
		dur time.Duration
		err error
	}
	responseChan := make(chan arpResponse, 1)

	go func() {
		mac, dur, err := pingFunc(parsedIP, a.Timeout)
		responseChan <- arpResponse{mac: mac, dur: dur, err: err}
	}()

	select {
	case <-ctx.Done():
		result.Duration = time.Since(start)
		result.Error = ctx.Err()
		debugLog("%s: context cancelled", ip)
		return result, ctx.Err()
	case resp := <-responseChan:
		result.Duration = resp.dur
		if resp.err != nil {
			result.Error = resp.err
			debugLog("%s: error: %v", ip, resp.err)
			return result, resp.err
		}
		result.MACAddress = resp.mac.String()
		result.IsUp = true
		debugLog("%s -> MAC: %s (%.2fms)", ip, result.MACAddress, float64(resp.dur.Microseconds())/1000)
		return result, nil
	}
}

// Alive reports whether ip answered an ARP request. It satisfies ping.Prober.
func (a *Discovery) Alive(ctx context.Context, ip string) bool {
	r, err := a.LookupAddr(ctx, ip)
	return err == nil && r.IsUp
}

// LookupMultiple performs ARP lookups on multiple IPs concurrently and
// returns only the hosts that answered, keyed by IP.
func (a *Discovery) LookupMultiple(ctx context.Context, ips []string) map[string]*Result {
	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	found := make(map[string]*Result)
	for r := range pool.Run(ctx, workers, ips, a.LookupAddr) {
		found[r.IP] = r
	}
	debugLog("ARP lookups complete: %d/%d hosts responded", len(found), len(ips))
	return found
}

// PingMAC performs an ARP lookup and returns just the MAC address.
func (a *Discovery) PingMAC(ctx context.Context, ip string) (string, error) {
	result, err := a.LookupAddr(ctx, ip)
	if err != nil {
		return "", err
	}
	return result.MACAddress, nil
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return true
}
