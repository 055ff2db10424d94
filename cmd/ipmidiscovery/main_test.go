package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-ipmidiscovery/internal/config"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_InvalidRange(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--subnet", "10.0.0", "--start", "20", "--end", "10")

	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "invalid configuration")
	assert.Contains(t, stderr, "start")
}

func TestRun_InvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--end", "256"},
		{"--format", "xml"},
		{"--sort", "shuffle"},
		{"--ping-mode", "arp"},
		{"--cidr", "not-a-cidr"},
		{"--no-such-flag"},
	} {
		code, stdout, _ := runCLI(t, args...)
		assert.Equal(t, 2, code, strings.Join(args, " "))
		assert.Empty(t, stdout)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, ipmidiscovery.VersionInfo()+"\n", stdout)
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "--help")
	assert.Equal(t, 0, code)
	for _, name := range []string{"subnet", "start", "end", "workers", "user", "password"} {
		assert.Contains(t, stderr, "-"+name)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("start: 9\nend: 3\n"), 0o600))
	code, _, stderr := runCLI(t, "--config", bad)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid configuration")

	// An explicit flag repairs the file's range, so validation passes and the
	// run only stops at the missing OUI file.
	code, _, stderr = runCLI(t, "--config", bad, "--start", "1", "--oui-db", filepath.Join(dir, "oui.txt"))
	assert.Equal(t, 2, code)
	assert.NotContains(t, stderr, "invalid configuration")
	assert.Contains(t, stderr, "OUI database")

	code, _, stderr = runCLI(t, "--config", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "read config")
}

func TestRun_MissingOUIDatabase(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--subnet", "10.0.0", "--start", "1", "--end", "1",
		"--oui-db", filepath.Join(t.TempDir(), "oui.txt"))
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "OUI database")
}

func TestDescribeTargets(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "192.168.1.1-255", describeTargets(cfg))
	cfg.CIDR = "10.0.0.0/24"
	assert.Equal(t, "10.0.0.0/24", describeTargets(cfg))
}

func TestWireDebug(t *testing.T) {
	t.Cleanup(func() {
		ipmidiscovery.SetDebugLogger(nil)
		ipmidiscovery.SetDebugLevel(ipmidiscovery.DebugOff)
	})

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)
	wireDebug(log, true)
	assert.Equal(t, ipmidiscovery.DebugOff, ipmidiscovery.GetDebugLevel())

	wireDebug(log.Level(zerolog.DebugLevel), false)
	assert.Equal(t, ipmidiscovery.DebugBasic, ipmidiscovery.GetDebugLevel())

	wireDebug(log.Level(zerolog.DebugLevel), true)
	assert.Equal(t, ipmidiscovery.DebugVerbose, ipmidiscovery.GetDebugLevel())
}
