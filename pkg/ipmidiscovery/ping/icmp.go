package ping

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPPinger sends echo requests from this process instead of spawning the
// ping utility. On Linux and macOS it uses unprivileged datagram ICMP
// sockets; Linux needs net.ipv4.ping_group_range to cover the caller's group.
type ICMPPinger struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
}

// NewICMPPinger creates an ICMPPinger with defaults.
func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{
		Count:      DefaultCount,
		Timeout:    DefaultTimeout,
		Privileged: runtime.GOOS == "windows",
	}
}

// Alive reports whether at least one echo reply arrived.
func (p *ICMPPinger) Alive(ctx context.Context, ip string) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		debugLog("%s: failed to create pinger: %v", ip, err)
		return false
	}

	count := p.Count
	if count <= 0 {
		count = DefaultCount
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pinger.Count = count
	pinger.Interval = timeout / time.Duration(count)
	pinger.Timeout = time.Duration(count) * timeout
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		debugLog("%s: icmp ping failed: %v", ip, err)
		return false
	}

	stats := pinger.Statistics()
	debugLog("%s: icmp sent=%d recv=%d", ip, stats.PacketsSent, stats.PacketsRecv)
	return stats.PacketsRecv > 0
}
