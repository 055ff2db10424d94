//go:build windows

// Package arp resolves hardware addresses with ARP requests.
// This file provides stubs for Windows where raw ARP is not available.
package arp

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultTimeout is the default timeout for ARP lookups.
	DefaultTimeout = 1 * time.Second
	// DefaultWorkers bounds concurrent lookups.
	DefaultWorkers = 32
)

// Errors
var (
	// ErrNotSupported is returned when ARP is called on unsupported platforms.
	ErrNotSupported = errors.New("ARP discovery is not supported on Windows")
	// ErrInvalidIP is returned when an invalid IP address is provided.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrIPv6NotSupported is returned when attempting ARP on an IPv6 address.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
var DebugLogger func(format string, args ...interface{})

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

// NewDiscovery creates a new ARP discovery helper.
// On Windows every lookup fails with ErrNotSupported.
func NewDiscovery() *Discovery {
	return &Discovery{Timeout: DefaultTimeout, Workers: DefaultWorkers}
}

// LookupAddr always returns ErrNotSupported on Windows.
func (a *Discovery) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	return &Result{IP: ip, Error: ErrNotSupported}, ErrNotSupported
}

// Alive always reports false on Windows.
func (a *Discovery) Alive(ctx context.Context, ip string) bool {
	return false
}

// LookupMultiple returns no results on Windows.
func (a *Discovery) LookupMultiple(ctx context.Context, ips []string) map[string]*Result {
	return map[string]*Result{}
}

// PingMAC always returns ErrNotSupported on Windows.
func (a *Discovery) PingMAC(ctx context.Context, ip string) (string, error) {
	return "", ErrNotSupported
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return false
}
