package ipmidiscovery

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/arp"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/dns"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ipmi"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ping"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/pool"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/rmcp"
)

var errRefused = errors.New("refused")

// fakes records calls made by the scanner and answers from fixed sets.
type fakes struct {
	alive     map[string]bool
	handshake map[string]bool
	udp       map[string]bool
	tcp       map[string]bool

	pings      atomic.Int32
	handshakes atomic.Int32
	mu         sync.Mutex
	probed     []string
}

func (f *fakes) scanner(opts Options) *Scanner {
	s := NewScanner(opts)
	s.Pinger = ping.ProberFunc(func(_ context.Context, ip string) bool {
		f.pings.Add(1)
		return f.alive[ip]
	})
	s.Handshaker = ipmi.HandshakerFunc(func(_ context.Context, host string, port int, creds ipmi.Credentials) error {
		f.handshakes.Add(1)
		if port != ipmi.Port || creds.Username != opts.Credentials.Username {
			return errRefused
		}
		if f.handshake[host] {
			return nil
		}
		return errRefused
	})
	s.Prober = PortProberFunc(func(_ context.Context, ip string) (rmcp.Evidence, bool) {
		f.mu.Lock()
		f.probed = append(f.probed, ip)
		f.mu.Unlock()
		switch {
		case f.udp[ip]:
			return rmcp.Evidence{Network: "udp", Port: rmcp.Port}, true
		case f.tcp[ip]:
			return rmcp.Evidence{Network: "tcp", Port: rmcp.SecurePort}, true
		}
		return rmcp.Evidence{}, false
	})
	return s
}

func testOptions(subnet string, start, end, workers int) Options {
	opts := DefaultOptions()
	opts.Subnet = subnet
	opts.Start = start
	opts.End = end
	opts.Workers = workers
	opts.HandshakeWorkers = 2
	return opts
}

func TestScan_EndToEnd(t *testing.T) {
	f := &fakes{
		alive:     map[string]bool{"10.0.0.1": true, "10.0.0.2": true},
		handshake: map[string]bool{"10.0.0.1": true},
		udp:       map[string]bool{"10.0.0.2": true},
	}
	s := f.scanner(testOptions("10.0.0", 1, 3, 2))

	results, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, Confirmed, results["10.0.0.1"].Tier)
	assert.Equal(t, MethodIPMI, results["10.0.0.1"].Method)
	assert.Equal(t, Possible, results["10.0.0.2"].Tier)
	assert.Equal(t, MethodUDP, results["10.0.0.2"].Method)
	assert.Equal(t, rmcp.Port, results["10.0.0.2"].Port)
	assert.NotContains(t, results, "10.0.0.3")

	assert.EqualValues(t, 3, f.pings.Load())
	assert.EqualValues(t, 2, f.handshakes.Load())
	// Port probes only run for hosts whose handshake failed.
	assert.Equal(t, []string{"10.0.0.2"}, f.probed)
}

func TestScan_NonMatchingAndTCP(t *testing.T) {
	f := &fakes{
		alive: map[string]bool{"10.0.0.4": true, "10.0.0.5": true},
		tcp:   map[string]bool{"10.0.0.5": true},
	}
	s := f.scanner(testOptions("10.0.0", 4, 6, 4))

	results, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, NonMatching, results["10.0.0.4"].Tier)
	assert.Equal(t, MethodNone, results["10.0.0.4"].Method)
	assert.Equal(t, Possible, results["10.0.0.5"].Tier)
	assert.Equal(t, MethodTCP, results["10.0.0.5"].Method)
	assert.Equal(t, rmcp.SecurePort, results["10.0.0.5"].Port)
}

func TestScan_NothingAlive(t *testing.T) {
	f := &fakes{}
	s := f.scanner(testOptions("10.0.0", 1, 5, 2))

	results, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, f.handshakes.Load())
	assert.Empty(t, f.probed)
}

func TestScan_InvalidRange(t *testing.T) {
	f := &fakes{alive: map[string]bool{"10.0.0.1": true}}
	s := f.scanner(testOptions("10.0.0", 10, 1, 2))

	results, err := s.Scan(context.Background())
	assert.Nil(t, results)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, f.pings.Load())
	assert.Zero(t, f.handshakes.Load())
	assert.Empty(t, f.probed)
}

func TestScan_UnknownPingMode(t *testing.T) {
	opts := testOptions("10.0.0", 1, 2, 2)
	opts.PingMode = "carrier-pigeon"
	s := NewScanner(opts)

	_, err := s.Scan(context.Background())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ping-mode", cfgErr.Field)
}

func TestScan_CIDR(t *testing.T) {
	f := &fakes{alive: map[string]bool{"10.1.0.1": true, "10.1.0.2": true}}
	opts := testOptions("ignored", 1, 1, 2)
	opts.CIDR = "10.1.0.0/30"
	s := f.scanner(opts)

	results, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.EqualValues(t, 2, f.pings.Load())
}

func TestScan_HandshakeTimeoutFallsThrough(t *testing.T) {
	f := &fakes{
		alive: map[string]bool{"10.0.0.7": true},
		udp:   map[string]bool{"10.0.0.7": true},
	}
	opts := testOptions("10.0.0", 7, 7, 1)
	opts.HandshakeTimeout = 20 * time.Millisecond
	s := f.scanner(opts)

	release := make(chan struct{})
	s.Handshaker = ipmi.HandshakerFunc(func(context.Context, string, int, ipmi.Credentials) error {
		<-release
		return nil
	})
	time.AfterFunc(200*time.Millisecond, func() { close(release) })

	results, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Possible, results["10.0.0.7"].Tier)
}

func TestScan_SlowHandshakeDoesNotStarveOthers(t *testing.T) {
	f := &fakes{
		alive: map[string]bool{"10.0.0.1": true, "10.0.0.2": true},
		udp:   map[string]bool{"10.0.0.1": true, "10.0.0.2": true},
	}
	opts := testOptions("10.0.0", 1, 2, 2)
	opts.HandshakeWorkers = 1
	opts.HandshakeTimeout = 300 * time.Millisecond
	s := f.scanner(opts)

	var attempted sync.Map
	s.Handshaker = ipmi.HandshakerFunc(func(ctx context.Context, host string, _ int, _ ipmi.Credentials) error {
		attempted.Store(host, true)
		if host == "10.0.0.1" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	results, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, Possible, results["10.0.0.1"].Tier)
	assert.Equal(t, Confirmed, results["10.0.0.2"].Tier)
	assert.Equal(t, MethodIPMI, results["10.0.0.2"].Method)
	_, ok := attempted.Load("10.0.0.2")
	assert.True(t, ok, "handshake for 10.0.0.2 was never attempted")
}

func TestScan_WorkerBudget(t *testing.T) {
	alive := map[string]bool{}
	for i := 1; i <= 40; i++ {
		alive["10.0.0."+strconv.Itoa(i)] = true
	}
	f := &fakes{alive: alive}
	s := f.scanner(testOptions("10.0.0", 1, 40, 3))

	var inFlight, peak atomic.Int32
	inner := s.Pinger
	s.Pinger = ping.ProberFunc(func(ctx context.Context, ip string) bool {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return inner.Alive(ctx, ip)
	})

	results, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 40)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPinger_ARPFallbackKeepsPrimary(t *testing.T) {
	opts := testOptions("10.0.0", 1, 1, 1)
	opts.ARPFallback = true
	s := NewScanner(opts)
	s.ARP = &arp.Discovery{Timeout: 10 * time.Millisecond, Workers: 1}

	var primary atomic.Int32
	s.Pinger = ping.ProberFunc(func(context.Context, string) bool {
		primary.Add(1)
		return true
	})

	p, err := s.pinger()
	require.NoError(t, err)
	assert.True(t, p.Alive(context.Background(), "10.0.0.1"))
	assert.EqualValues(t, 1, primary.Load())
}

func TestEvaluate(t *testing.T) {
	f := &fakes{handshake: map[string]bool{"10.0.0.1": true}}
	s := f.scanner(testOptions("10.0.0", 1, 1, 1))

	r := s.Evaluate(context.Background(), "10.0.0.1")
	assert.Equal(t, Confirmed, r.Tier)
	assert.Equal(t, ipmi.Port, r.Port)

	r = s.Evaluate(context.Background(), "10.0.0.9")
	assert.Equal(t, NonMatching, r.Tier)
}

func TestScan_Annotate(t *testing.T) {
	if !arp.IsSupported() {
		t.Skip("ARP not supported on this platform")
	}
	f := &fakes{alive: map[string]bool{"10.0.0.1": true}}
	opts := testOptions("10.0.0", 1, 1, 1)
	opts.Annotate = true
	s := f.scanner(opts)
	s.ARP = &arp.Discovery{Timeout: 10 * time.Millisecond, Workers: 1}
	s.DNS = &dns.Discovery{Timeout: 10 * time.Millisecond, Workers: 1, Servers: []string{"127.0.0.1:1"}}
	s.Vendor = func(string) string { return "unused" }

	results, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Contains(t, results, "10.0.0.1")
	assert.Empty(t, results["10.0.0.1"].Hostname)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "192.168.1", opts.Subnet)
	assert.Equal(t, 1, opts.Start)
	assert.Equal(t, 255, opts.End)
	assert.Equal(t, 32, opts.Workers)
	assert.Equal(t, pool.DefaultWorkers, opts.Workers)
	assert.Equal(t, ipmi.DefaultExecutorWorkers, opts.HandshakeWorkers)
	assert.Equal(t, "root", opts.Credentials.Username)
	assert.Equal(t, "root", opts.Credentials.Password)
	assert.Equal(t, 3*time.Second, opts.HandshakeTimeout)
	assert.Equal(t, time.Second, opts.ProbeTimeout)
	assert.Equal(t, time.Second, opts.PingTimeout)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "possible", Possible.String())
	assert.Equal(t, "non_matching", NonMatching.String())
}
