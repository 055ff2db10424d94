// Package ipmidiscovery finds IPMI baseboard management controllers on an
// IPv4 range. Every target is pinged first; responsive hosts are then
// escalated through an RMCP+ session handshake and, failing that, UDP and
// TCP probes of the IPMI ports. Each host ends in exactly one Tier.
//
// The per-stage building blocks live in subpackages:
//   - network: target enumeration and address ordering
//   - pool: bounded concurrent execution
//   - ping: liveness (OS ping utility or in-process ICMP)
//   - ipmi: session handshake and the executor it runs on
//   - rmcp: lightweight port probes and Presence Pong decoding
//   - arp, oui, dns: optional MAC, vendor and hostname annotation
//   - report: tier buckets and output
package ipmidiscovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/arp"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/dns"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ipmi"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/network"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/oui"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ping"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/pool"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/rmcp"
)

var errNotAlive = errors.New("host did not answer")

// Options configures a scan.
type Options struct {
	// Subnet is the first three octets, e.g. "192.168.1". Ignored when CIDR is set.
	Subnet string
	// Start and End bound the last octet, inclusive.
	Start int
	End   int
	// CIDR, when set, replaces Subnet/Start/End with the usable hosts of a network.
	CIDR string

	// Workers caps in-flight operations in every stage.
	Workers int
	// HandshakeWorkers sizes the executor that runs blocking handshakes.
	HandshakeWorkers int

	Credentials ipmi.Credentials

	PingMode         ping.Mode
	PingCount        int
	PingTimeout      time.Duration
	ProbeTimeout     time.Duration
	HandshakeTimeout time.Duration

	// ARPFallback treats an ARP reply as alive when ping fails.
	ARPFallback bool
	// Annotate adds MAC, vendor and PTR name to every result.
	Annotate bool
}

// DefaultOptions returns the documented defaults: 192.168.1.1-255, 32
// workers, root/root.
func DefaultOptions() Options {
	return Options{
		Subnet:           "192.168.1",
		Start:            1,
		End:              255,
		Workers:          DefaultWorkers,
		HandshakeWorkers: DefaultHandshakeWorkers,
		Credentials:      ipmi.Credentials{Username: "root", Password: "root"},
		PingMode:         ping.ModeExec,
		PingCount:        ping.DefaultCount,
		PingTimeout:      DefaultPingTimeout,
		ProbeTimeout:     DefaultProbeTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// PortProber runs the lightweight checks against one host.
type PortProber interface {
	Probe(ctx context.Context, ip string) (rmcp.Evidence, bool)
}

// PortProberFunc adapts a function to PortProber.
type PortProberFunc func(ctx context.Context, ip string) (rmcp.Evidence, bool)

// Probe calls f.
func (f PortProberFunc) Probe(ctx context.Context, ip string) (rmcp.Evidence, bool) {
	return f(ctx, ip)
}

// Scanner runs the discovery pipeline. The zero values of the collaborator
// fields select the real implementations built from Options.
type Scanner struct {
	Options Options

	Pinger     ping.Prober
	Handshaker ipmi.Handshaker
	Prober     PortProber

	ARP    *arp.Discovery
	DNS    *dns.Discovery
	Vendor func(mac string) string
}

// NewScanner creates a Scanner for opts.
func NewScanner(opts Options) *Scanner {
	return &Scanner{Options: opts}
}

// Targets enumerates the configured addresses. Invalid bounds yield a
// *ConfigError.
func (s *Scanner) Targets() ([]string, error) {
	if s.Options.CIDR != "" {
		return network.EnumerateIPStrings(s.Options.CIDR)
	}
	return network.EnumerateRange(s.Options.Subnet, s.Options.Start, s.Options.End)
}

func (s *Scanner) pinger() (ping.Prober, error) {
	p := s.Pinger
	if p == nil {
		var err error
		p, err = ping.New(s.Options.PingMode, s.Options.PingCount, s.Options.PingTimeout)
		if err != nil {
			return nil, &ConfigError{Field: "ping-mode", Message: fmt.Sprintf("%q: %v", s.Options.PingMode, err)}
		}
	}
	if s.Options.ARPFallback {
		p = ping.Chain(p, s.arp())
	}
	return p, nil
}

func (s *Scanner) portProber() PortProber {
	if s.Prober != nil {
		return s.Prober
	}
	p := rmcp.NewProber()
	if s.Options.ProbeTimeout > 0 {
		p.Timeout = s.Options.ProbeTimeout
	}
	return p
}

func (s *Scanner) handshakeTimeout() time.Duration {
	if s.Options.HandshakeTimeout > 0 {
		return s.Options.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func (s *Scanner) handshaker() ipmi.Handshaker {
	if s.Handshaker != nil {
		return s.Handshaker
	}
	return &ipmi.LanplusClient{Timeout: s.handshakeTimeout()}
}

func (s *Scanner) arp() *arp.Discovery {
	if s.ARP == nil {
		s.ARP = arp.NewDiscovery()
		if s.Options.Workers > 0 {
			s.ARP.Workers = s.Options.Workers
		}
	}
	return s.ARP
}

func (s *Scanner) dns() *dns.Discovery {
	if s.DNS == nil {
		s.DNS = dns.NewDiscovery()
		if s.Options.Workers > 0 {
			s.DNS.Workers = s.Options.Workers
		}
	}
	return s.DNS
}

func (s *Scanner) vendor(mac string) string {
	if s.Vendor != nil {
		return s.Vendor(mac)
	}
	return oui.LookupName(mac)
}

// Scan runs every stage over the configured targets and returns one Result
// per responsive host. Configuration errors are returned before any probe
// is sent; per-host failures never surface as errors.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	targets, err := s.Targets()
	if err != nil {
		return nil, err
	}
	pinger, err := s.pinger()
	if err != nil {
		return nil, err
	}

	workers := s.Options.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	handshakeWorkers := s.Options.HandshakeWorkers
	if handshakeWorkers <= 0 {
		handshakeWorkers = DefaultHandshakeWorkers
	}
	// Every evaluation in flight can hold a handshake.
	handshakeWorkers = max(handshakeWorkers, workers)

	debugLog(MethodPing, "pinging %d targets with %d workers", len(targets), workers)
	alive := s.aliveHosts(ctx, workers, targets, pinger)
	debugLog(MethodPing, "%d of %d targets alive", len(alive), len(targets))
	if len(alive) == 0 {
		return ScanResult{}, nil
	}

	exec := ipmi.NewExecutor(handshakeWorkers)
	defer exec.Close()
	hs := ipmi.Offloaded(s.handshaker(), exec, s.handshakeTimeout())
	prober := s.portProber()

	results := make(ScanResult, len(alive))
	evaluate := func(ctx context.Context, ip string) (*Result, error) {
		return s.evaluate(ctx, ip, hs, prober), nil
	}
	for r := range pool.Run(ctx, workers, alive, evaluate) {
		results[r.IP] = r
	}

	if s.Options.Annotate {
		s.annotate(ctx, results)
	}
	return results, nil
}

// aliveHosts returns the targets that pass the liveness check, in completion
// order.
func (s *Scanner) aliveHosts(ctx context.Context, workers int, targets []string, p ping.Prober) []string {
	check := func(ctx context.Context, ip string) (string, error) {
		if p.Alive(ctx, ip) {
			return ip, nil
		}
		return "", errNotAlive
	}

	var alive []string
	for ip := range pool.Run(ctx, workers, targets, check) {
		alive = append(alive, ip)
	}
	return alive
}

// Evaluate classifies a single host that is already known to be alive,
// using the configured collaborators.
func (s *Scanner) Evaluate(ctx context.Context, ip string) *Result {
	exec := ipmi.NewExecutor(1)
	defer exec.Close()
	hs := ipmi.Offloaded(s.handshaker(), exec, s.handshakeTimeout())
	return s.evaluate(ctx, ip, hs, s.portProber())
}

// evaluate stops at the first step that succeeds: handshake, then port
// probes, else NonMatching.
func (s *Scanner) evaluate(ctx context.Context, ip string, hs ipmi.Handshaker, prober PortProber) *Result {
	err := hs.Handshake(ctx, ip, ipmi.Port, s.Options.Credentials)
	if err == nil {
		debugLog(MethodIPMI, "%s: confirmed", ip)
		return &Result{IP: ip, Tier: Confirmed, Method: MethodIPMI, Port: ipmi.Port}
	}
	debugLogVerbose(MethodIPMI, "%s: handshake failed: %v", ip, err)

	if ev, ok := prober.Probe(ctx, ip); ok {
		debugLog(MethodUDP, "%s: possible via %s/%d", ip, ev.Network, ev.Port)
		return &Result{IP: ip, Tier: Possible, Method: Method(ev.Network), Port: ev.Port, Pong: ev.Pong}
	}

	debugLog(MethodPing, "%s: no IPMI evidence", ip)
	return &Result{IP: ip, Tier: NonMatching, Method: MethodNone}
}

// annotate fills MAC, Vendor and Hostname. Lookups that fail leave the
// fields empty.
func (s *Scanner) annotate(ctx context.Context, results ScanResult) {
	ips := make([]string, 0, len(results))
	for ip := range results {
		ips = append(ips, ip)
	}

	if arp.IsSupported() {
		for ip, r := range s.arp().LookupMultiple(ctx, ips) {
			res := results[ip]
			res.MAC = r.MACAddress
			res.Vendor = s.vendor(r.MACAddress)
		}
	} else {
		debugLog(MethodARP, "ARP not supported on this platform, skipping MAC annotation")
	}

	for ip, r := range s.dns().LookupMultiple(ctx, ips) {
		results[ip].Hostname = r.Hostname
	}
}
