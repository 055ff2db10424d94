package ping

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// failureMarkers appear in ping output when no reply arrived even though the
// utility may still exit 0 (Windows does this for "Destination host unreachable").
var failureMarkers = []string{
	"timed out",
	"unreachable",
	"0 received",
	"100% packet loss",
}

// CommandRunner runs a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExecPinger checks liveness with the platform ping utility.
type ExecPinger struct {
	Count   int
	Timeout time.Duration
	// GOOS selects the argument shape; defaults to runtime.GOOS.
	GOOS string
	// Run executes the ping process; defaults to os/exec.
	Run CommandRunner
}

// NewExecPinger creates an ExecPinger with defaults.
func NewExecPinger() *ExecPinger {
	return &ExecPinger{
		Count:   DefaultCount,
		Timeout: DefaultTimeout,
		GOOS:    runtime.GOOS,
		Run:     runCommand,
	}
}

// Alive runs ping against ip. The host counts as alive only when the process
// exits successfully with non-empty output that carries no failure marker.
func (p *ExecPinger) Alive(ctx context.Context, ip string) bool {
	count := p.Count
	if count <= 0 {
		count = DefaultCount
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	goos := p.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	run := p.Run
	if run == nil {
		run = runCommand
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(count)*timeout+time.Second)
	defer cancel()

	out, err := run(runCtx, "ping", Args(goos, ip, count, timeout)...)
	if err != nil {
		debugLog("%s: ping failed: %v", ip, err)
		return false
	}
	alive := OutputIndicatesAlive(string(out))
	debugLog("%s: alive=%v", ip, alive)
	return alive
}

// Args returns the ping arguments for goos.
func Args(goos, ip string, count int, timeout time.Duration) []string {
	n := strconv.Itoa(count)
	switch goos {
	case "windows":
		return []string{"-n", n, "-w", strconv.FormatInt(timeout.Milliseconds(), 10), ip}
	case "darwin", "freebsd", "netbsd", "openbsd":
		// BSD ping takes -W in milliseconds
		return []string{"-c", n, "-W", strconv.FormatInt(timeout.Milliseconds(), 10), ip}
	default:
		secs := int(timeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return []string{"-c", n, "-W", strconv.Itoa(secs), ip}
	}
}

// OutputIndicatesAlive reports whether ping output shows a reply.
func OutputIndicatesAlive(out string) bool {
	if strings.TrimSpace(out) == "" {
		return false
	}
	lower := strings.ToLower(out)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}
