// Package ipmidiscovery: Debug logging wiring for subpackages.
package ipmidiscovery

import (
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/arp"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/dns"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ipmi"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/oui"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ping"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/rmcp"
)

// Subpackages log through their own DebugLogger hooks; route them all to
// debugLogVerbose tagged with the matching Method.
func init() {
	ping.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodPing, format, args...)
	}
	ipmi.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodIPMI, format, args...)
	}
	rmcp.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodUDP, format, args...)
	}
	arp.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodARP, format, args...)
	}
	dns.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodDNS, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodOUI, format, args...)
	}
}
