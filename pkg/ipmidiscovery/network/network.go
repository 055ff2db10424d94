// Package network provides target enumeration and IPv4 address utilities.
package network

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// ConfigError reports an invalid scan configuration. It is returned before
// any network activity takes place.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return "invalid configuration: " + e.Field + ": " + e.Message
}

// EnumerateRange returns the addresses prefix.start through prefix.end
// inclusive, in ascending order. The prefix is used verbatim; a trailing dot
// is tolerated.
func EnumerateRange(prefix string, start, end int) ([]string, error) {
	if start < 0 || start > 255 {
		return nil, &ConfigError{Field: "start", Message: fmt.Sprintf("%d is outside 0-255", start)}
	}
	if end < 0 || end > 255 {
		return nil, &ConfigError{Field: "end", Message: fmt.Sprintf("%d is outside 0-255", end)}
	}
	if start > end {
		return nil, &ConfigError{Field: "start", Message: fmt.Sprintf("start (%d) must not exceed end (%d)", start, end)}
	}
	prefix = strings.TrimSuffix(prefix, ".")

	res := make([]string, 0, end-start+1)
	for octet := start; octet <= end; octet++ {
		res = append(res, fmt.Sprintf("%s.%d", prefix, octet))
	}
	return res, nil
}

// EnumerateIPs returns all usable host IPs in a CIDR (excludes network and broadcast).
func EnumerateIPs(cidr string) ([]net.IP, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, &ConfigError{Field: "cidr", Message: err.Error()}
	}
	if ipnet.IP.To4() == nil {
		return nil, &ConfigError{Field: "cidr", Message: "only IPv4 ranges are supported"}
	}
	return enumerateIPsFromNet(ipnet), nil
}

// EnumerateIPStrings returns all usable host IPs in a CIDR as strings.
func EnumerateIPStrings(cidr string) ([]string, error) {
	ips, err := EnumerateIPs(cidr)
	if err != nil {
		return nil, err
	}
	result := make([]string, len(ips))
	for i, ip := range ips {
		result[i] = ip.String()
	}
	return result, nil
}

func enumerateIPsFromNet(n *net.IPNet) []net.IP {
	var res []net.IP
	base := n.IP.To4()
	if base == nil {
		return res
	}
	mask := net.IP(n.Mask).To4()
	if mask == nil {
		return res
	}
	network := ipToUint32(base) & ipToUint32(mask)
	broadcast := network | ^ipToUint32(mask)
	if broadcast-network < 2 {
		// /31 and /32 have no network/broadcast pair to skip
		for u := network; ; u++ {
			res = append(res, uint32ToIP(u))
			if u == broadcast {
				break
			}
		}
		return res
	}
	for u := network + 1; u < broadcast; u++ {
		res = append(res, uint32ToIP(u))
	}
	return res
}

// CompareIPs orders two address strings numerically when both parse as IPv4
// and falls back to plain string comparison otherwise.
func CompareIPs(a, b string) int {
	ia, ib := net.ParseIP(a).To4(), net.ParseIP(b).To4()
	if ia == nil || ib == nil {
		return strings.Compare(a, b)
	}
	ua, ub := ipToUint32(ia), ipToUint32(ib)
	switch {
	case ua < ub:
		return -1
	case ua > ub:
		return 1
	}
	return 0
}

// SortNumeric sorts addresses in place by numeric IPv4 value.
func SortNumeric(ips []string) {
	sort.SliceStable(ips, func(i, j int) bool { return CompareIPs(ips[i], ips[j]) < 0 })
}

// SortLexical sorts addresses in place as plain strings, so "10.0.0.10"
// comes before "10.0.0.9".
func SortLexical(ips []string) {
	sort.Strings(ips)
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(u uint32) net.IP {
	return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
