// Package rmcp provides the lightweight presence probes for IPMI management
// controllers: an ASF Presence Ping over UDP and a plain TCP connect, each
// on the RMCP (623) and secure RMCP (664) ports.
//
// These probes are a heuristic. Any UDP reply or accepted TCP connection on
// those ports counts as evidence, so an unrelated service listening there
// produces a false positive. A decoded Presence Pong is reported alongside
// the evidence but does not make the check stricter.
package rmcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// Port is the primary RMCP port.
	Port = 623
	// SecurePort is the secure RMCP port.
	SecurePort = 664
	// DefaultTimeout bounds every single probe.
	DefaultTimeout = 1 * time.Second

	// ASFIANA is the IANA enterprise number of the ASF (Alerting Standards Forum).
	ASFIANA = 4542

	rmcpVersion      = 0x06
	rmcpNoAckSeq     = 0xff
	rmcpClassASF     = 0x06
	asfPresencePing  = 0x80
	asfPresencePong  = 0x40
	pongLength       = 28
	entityIPMIBit    = 0x80
	entityASFv1Bit   = 0x01
	interactSecurity = 0x80
)

// PresencePing is the 12 byte ASF Presence Ping datagram.
var PresencePing = []byte{
	rmcpVersion, 0x00, rmcpNoAckSeq, rmcpClassASF,
	0x00, 0x00, 0x11, 0xbe, // IANA 4542
	asfPresencePing, 0x00, 0x00, 0x00,
}

// ErrNotPong is returned by ParsePong for datagrams that are not a Presence Pong.
var ErrNotPong = errors.New("not an ASF presence pong")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from RMCP probes.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Pong holds the decoded fields of an ASF Presence Pong.
type Pong struct {
	Enterprise    uint32
	OEM           uint32
	IPMISupported bool
	ASFv1         bool
	RMCPSecurity  bool
}

// String formats the pong for reports.
func (p *Pong) String() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("iana=%d ipmi=%v", p.Enterprise, p.IPMISupported)
}

// ParsePong decodes an ASF Presence Pong.
func ParsePong(b []byte) (*Pong, error) {
	if len(b) < pongLength {
		return nil, ErrNotPong
	}
	if b[0] != rmcpVersion || b[3]&0x0f != rmcpClassASF || b[8] != asfPresencePong {
		return nil, ErrNotPong
	}
	if binary.BigEndian.Uint32(b[4:8]) != ASFIANA {
		return nil, ErrNotPong
	}
	data := b[12:pongLength]
	return &Pong{
		Enterprise:    binary.BigEndian.Uint32(data[0:4]),
		OEM:           binary.BigEndian.Uint32(data[4:8]),
		IPMISupported: data[8]&entityIPMIBit != 0,
		ASFv1:         data[8]&entityASFv1Bit != 0,
		RMCPSecurity:  data[9]&interactSecurity != 0,
	}, nil
}

// Evidence describes the probe that got an answer.
type Evidence struct {
	Network string // "udp" or "tcp"
	Port    int
	Pong    *Pong // set when a UDP reply decoded as a Presence Pong
}

// Prober runs the lightweight checks.
type Prober struct {
	Timeout  time.Duration
	UDPPorts []int
	TCPPorts []int
	Payload  []byte
}

// NewProber creates a Prober covering UDP and TCP on 623 and 664.
func NewProber() *Prober {
	return &Prober{
		Timeout:  DefaultTimeout,
		UDPPorts: []int{Port, SecurePort},
		TCPPorts: []int{Port, SecurePort},
		Payload:  PresencePing,
	}
}

type outcome struct {
	ev  Evidence
	err error
}

// Probe runs every configured check concurrently and returns the evidence of
// the first one that succeeds; the remaining checks are cancelled. ok is
// false when no check got an answer.
func (p *Prober) Probe(ctx context.Context, ip string) (ev Evidence, ok bool) {
	total := len(p.UDPPorts) + len(p.TCPPorts)
	if total == 0 {
		return Evidence{}, false
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, total)
	for _, port := range p.UDPPorts {
		go func(port int) {
			pong, err := p.ProbeUDP(probeCtx, ip, port)
			results <- outcome{ev: Evidence{Network: "udp", Port: port, Pong: pong}, err: err}
		}(port)
	}
	for _, port := range p.TCPPorts {
		go func(port int) {
			err := p.ProbeTCP(probeCtx, ip, port)
			results <- outcome{ev: Evidence{Network: "tcp", Port: port}, err: err}
		}(port)
	}

	for i := 0; i < total; i++ {
		r := <-results
		if r.err != nil {
			debugLog("%s: %s/%d: %v", ip, r.ev.Network, r.ev.Port, r.err)
			continue
		}
		if !ok {
			ev, ok = r.ev, true
			debugLog("%s: %s/%d responded", ip, r.ev.Network, r.ev.Port)
			cancel()
		}
	}
	return ev, ok
}

// ProbeUDP sends the probe datagram to ip:port and waits for any reply. The
// returned Pong is nil when the reply is not a Presence Pong; that is still a
// success.
func (p *Prober) ProbeUDP(ctx context.Context, ip string, port int) (*Pong, error) {
	timeout := p.timeout()
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(probeCtx, "udp4", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(probeCtx, func() { _ = conn.Close() })
	defer stop()

	deadline, _ := probeCtx.Deadline()
	_ = conn.SetDeadline(deadline)

	payload := p.Payload
	if len(payload) == 0 {
		payload = PresencePing
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, err
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	pong, _ := ParsePong(buf[:n])
	return pong, nil
}

// ProbeTCP reports whether ip:port accepts a TCP connection.
func (p *Prober) ProbeTCP(ctx context.Context, ip string, port int) error {
	d := net.Dialer{Timeout: p.timeout()}
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	if err := conn.Close(); err != nil {
		debugLog("%s: tcp/%d close: %v", ip, port, err)
	}
	return nil
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}
