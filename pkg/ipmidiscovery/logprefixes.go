// Package ipmidiscovery: Log prefix constants for consistent log tagging.
// These constants are exported so consumers can use them for consistent logging,
// but they are not required - consumers can use their own prefixes via SetDebugLogger.
package ipmidiscovery

// Log prefix constants for scan stages and annotation sources.
// Format follows [Component] or [Component:Subcomponent] pattern.
const (
	// Main discovery prefix
	LogPrefixDiscovery = "[Discovery]"

	// Stage prefixes
	LogPrefixPing = "[Discovery:Ping]"
	LogPrefixIPMI = "[Discovery:IPMI]"
	LogPrefixRMCP = "[Discovery:RMCP]"

	// Annotation prefixes
	LogPrefixARP = "[Discovery:ARP]"
	LogPrefixDNS = "[Discovery:DNS]"
	LogPrefixOUI = "[Discovery:OUI]"

	// Debug prefix - use as "[DEBUG][Discovery:*]" format
	LogPrefixDebug = "[DEBUG]"
)

// MethodToPrefix returns the log prefix for a given method.
// This can be used by consumers who want consistent prefixes in their debug logger callback.
func MethodToPrefix(method Method) string {
	switch method {
	case MethodPing:
		return LogPrefixPing
	case MethodIPMI:
		return LogPrefixIPMI
	case MethodUDP, MethodTCP:
		return LogPrefixRMCP
	case MethodARP:
		return LogPrefixARP
	case MethodDNS:
		return LogPrefixDNS
	case MethodOUI:
		return LogPrefixOUI
	default:
		return LogPrefixDiscovery
	}
}
