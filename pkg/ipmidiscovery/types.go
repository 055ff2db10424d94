// Package ipmidiscovery: Core types shared by the scanner and its consumers.
package ipmidiscovery

import (
	"time"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ipmi"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/network"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/pool"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/rmcp"
)

// Tier is the confidence that a host is an IPMI management controller.
type Tier int

const (
	// NonMatching hosts answered ping but showed no IPMI evidence.
	NonMatching Tier = iota
	// Possible hosts answered on an IPMI port without completing a handshake.
	Possible
	// Confirmed hosts completed an IPMI session handshake.
	Confirmed
)

func (t Tier) String() string {
	switch t {
	case Confirmed:
		return "confirmed"
	case Possible:
		return "possible"
	default:
		return "non_matching"
	}
}

// Method identifies the escalation step that decided a host's tier.
type Method string

const (
	MethodIPMI Method = "ipmi" // RMCP+ session handshake
	MethodUDP  Method = "udp"  // reply to an RMCP datagram
	MethodTCP  Method = "tcp"  // TCP connect on an IPMI port
	MethodNone Method = "none" // nothing answered
	MethodPing Method = "ping" // liveness stage
	MethodARP  Method = "arp"  // ARP liveness fallback and MAC annotation
	MethodDNS  Method = "dns"  // PTR annotation
	MethodOUI  Method = "oui"  // vendor annotation
)

// Result is the outcome of evaluating one responsive host.
type Result struct {
	IP     string
	Tier   Tier
	Method Method
	Port   int        // port of the deciding probe, 0 for MethodNone
	Pong   *rmcp.Pong // decoded Presence Pong, display only

	// Filled by the annotation pass.
	MAC      string
	Vendor   string
	Hostname string
}

// ScanResult maps each evaluated address to its Result.
type ScanResult map[string]*Result

// ConfigError reports an invalid scan configuration.
type ConfigError = network.ConfigError

// DefaultWorkers is the default number of concurrent probes.
const DefaultWorkers = pool.DefaultWorkers

// DefaultHandshakeWorkers is the default size of the handshake executor.
const DefaultHandshakeWorkers = ipmi.DefaultExecutorWorkers

// Default per-operation timeouts.
const (
	DefaultPingTimeout      = 1 * time.Second
	DefaultProbeTimeout     = 1 * time.Second
	DefaultHandshakeTimeout = 3 * time.Second
)
