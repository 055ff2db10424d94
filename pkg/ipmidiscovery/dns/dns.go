// Package dns provides reverse DNS (PTR) lookups for discovered hosts.
// Queries are built and sent with github.com/miekg/dns against the
// nameservers from resolv.conf; when none are known the system resolver
// is used instead.
package dns

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/pool"
)

// DefaultTimeout is the default timeout for DNS lookups.
const DefaultTimeout = 2 * time.Second

// DefaultWorkers is the default number of concurrent lookups.
const DefaultWorkers = pool.DefaultWorkers

// ResolvConf is read by NewDiscovery for nameservers.
var ResolvConf = "/etc/resolv.conf"

// ErrNoAnswer is returned when the server had no PTR record for the address.
var ErrNoAnswer = errors.New("no PTR record")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from DNS operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Result contains the result of a reverse DNS lookup.
type Result struct {
	IP       string
	Hostname string   // Primary hostname (first result)
	All      []string // All returned hostnames
	Error    error
}

// Discovery performs reverse DNS lookups.
type Discovery struct {
	Timeout time.Duration
	Workers int
	// Servers are host:port nameserver addresses. Empty means the system resolver.
	Servers []string
}

// NewDiscovery creates a new DNS discovery helper with the nameservers from
// ResolvConf.
func NewDiscovery() *Discovery {
	d := &Discovery{
		Timeout: DefaultTimeout,
		Workers: DefaultWorkers,
	}
	if cfg, err := mdns.ClientConfigFromFile(ResolvConf); err == nil {
		for _, s := range cfg.Servers {
			d.Servers = append(d.Servers, net.JoinHostPort(s, cfg.Port))
		}
	} else {
		debugLog("reading %s: %v", ResolvConf, err)
	}
	return d
}

// LookupAddr performs a reverse DNS (PTR) lookup for the given IP address.
func (d *Discovery) LookupAddr(ctx context.Context, ip string) (*Result, error) {
	res := &Result{IP: ip}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var names []string
	var err error
	if len(d.Servers) == 0 {
		names, err = (&net.Resolver{}).LookupAddr(lookupCtx, ip)
	} else {
		names, err = d.queryPTR(lookupCtx, ip, timeout)
	}
	if err == nil && len(names) == 0 {
		err = ErrNoAnswer
	}
	if err != nil {
		res.Error = err
		debugLog("%s: lookup failed: %v", ip, err)
		return res, err
	}

	for i, name := range names {
		names[i] = strings.TrimSuffix(name, ".")
	}
	res.All = names
	res.Hostname = names[0]
	debugLog("%s -> %s", ip, res.Hostname)
	return res, nil
}

func (d *Discovery) queryPTR(ctx context.Context, ip string, timeout time.Duration) ([]string, error) {
	arpa, err := mdns.ReverseAddr(ip)
	if err != nil {
		return nil, err
	}

	msg := new(mdns.Msg)
	msg.SetQuestion(arpa, mdns.TypePTR)
	client := &mdns.Client{Timeout: timeout}

	var lastErr error
	for _, server := range d.Servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != mdns.RcodeSuccess {
			lastErr = errors.New(mdns.RcodeToString[resp.Rcode])
			continue
		}
		var names []string
		for _, rr := range resp.Answer {
			if ptr, ok := rr.(*mdns.PTR); ok {
				names = append(names, ptr.Ptr)
			}
		}
		return names, nil
	}
	return nil, lastErr
}

// LookupMultiple resolves several IPs concurrently and returns the ones that
// have a name, keyed by IP.
func (d *Discovery) LookupMultiple(ctx context.Context, ips []string) map[string]*Result {
	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	found := make(map[string]*Result)
	for r := range pool.Run(ctx, workers, ips, d.LookupAddr) {
		found[r.IP] = r
	}
	return found
}
