// Package config loads scanner settings from a YAML file and merges them
// with command-line flags. Flags given explicitly on the command line take
// precedence over file values, which take precedence over defaults.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcuoli/go-ipmidiscovery/internal/logger"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ipmi"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/network"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/ping"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/report"
)

// Duration is a time.Duration written as a string ("1s", "250ms") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// PingConfig configures the liveness stage.
type PingConfig struct {
	Mode    string   `yaml:"mode"`
	Count   int      `yaml:"count"`
	Timeout Duration `yaml:"timeout"`
}

// Config holds every scanner setting.
type Config struct {
	Subnet string `yaml:"subnet"`
	Start  int    `yaml:"start"`
	End    int    `yaml:"end"`
	CIDR   string `yaml:"cidr"`

	Workers          int `yaml:"workers"`
	HandshakeWorkers int `yaml:"handshake_workers"`

	User     string `yaml:"user"`
	Password string `yaml:"password"`

	Ping             PingConfig `yaml:"ping"`
	ProbeTimeout     Duration   `yaml:"probe_timeout"`
	HandshakeTimeout Duration   `yaml:"handshake_timeout"`

	ARPFallback bool   `yaml:"arp_fallback"`
	Annotate    bool   `yaml:"annotate"`
	OUIDatabase string `yaml:"oui_database"`

	Sort   string `yaml:"sort"`
	Format string `yaml:"format"`

	Log logger.Config `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	opts := ipmidiscovery.DefaultOptions()
	return &Config{
		Subnet:           opts.Subnet,
		Start:            opts.Start,
		End:              opts.End,
		Workers:          opts.Workers,
		HandshakeWorkers: opts.HandshakeWorkers,
		User:             opts.Credentials.Username,
		Password:         opts.Credentials.Password,
		Ping: PingConfig{
			Mode:    string(opts.PingMode),
			Count:   opts.PingCount,
			Timeout: Duration(opts.PingTimeout),
		},
		ProbeTimeout:     Duration(opts.ProbeTimeout),
		HandshakeTimeout: Duration(opts.HandshakeTimeout),
		Sort:             string(report.OrderLexical),
		Format:           string(report.FormatText),
		Log:              logger.Config{Level: "info", Output: "stderr"},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that can be checked without touching the
// network.
func (c *Config) Validate() error {
	if c.CIDR != "" {
		if _, _, err := net.ParseCIDR(c.CIDR); err != nil {
			return &network.ConfigError{Field: "cidr", Message: err.Error()}
		}
	} else {
		if c.Subnet == "" {
			return &network.ConfigError{Field: "subnet", Message: "must not be empty"}
		}
		if _, err := network.EnumerateRange(c.Subnet, c.Start, c.End); err != nil {
			return err
		}
	}

	switch ping.Mode(c.Ping.Mode) {
	case ping.ModeExec, ping.ModeICMP:
	default:
		return &network.ConfigError{Field: "ping-mode", Message: fmt.Sprintf("%q is not exec or icmp", c.Ping.Mode)}
	}
	if _, err := report.ParseOrder(c.Sort); err != nil {
		return &network.ConfigError{Field: "sort", Message: err.Error()}
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return &network.ConfigError{Field: "format", Message: err.Error()}
	}
	if c.HandshakeTimeout < 0 || c.ProbeTimeout < 0 || c.Ping.Timeout < 0 {
		return &network.ConfigError{Field: "timeout", Message: "must not be negative"}
	}
	return nil
}

// ScanOptions converts c to scanner options.
func (c *Config) ScanOptions() ipmidiscovery.Options {
	return ipmidiscovery.Options{
		Subnet:           c.Subnet,
		Start:            c.Start,
		End:              c.End,
		CIDR:             c.CIDR,
		Workers:          c.Workers,
		HandshakeWorkers: c.HandshakeWorkers,
		Credentials:      ipmi.Credentials{Username: c.User, Password: c.Password},
		PingMode:         ping.Mode(c.Ping.Mode),
		PingCount:        c.Ping.Count,
		PingTimeout:      time.Duration(c.Ping.Timeout),
		ProbeTimeout:     time.Duration(c.ProbeTimeout),
		HandshakeTimeout: time.Duration(c.HandshakeTimeout),
		ARPFallback:      c.ARPFallback,
		Annotate:         c.Annotate,
	}
}

// ReportOptions converts c to report options. Call Validate first.
func (c *Config) ReportOptions() report.Options {
	order, _ := report.ParseOrder(c.Sort)
	format, _ := report.ParseFormat(c.Format)
	return report.Options{Format: format, Order: order, Annotate: c.Annotate}
}

// copiers maps each flag name to the field it sets.
var copiers = map[string]func(dst, src *Config){
	"subnet":            func(d, s *Config) { d.Subnet = s.Subnet },
	"start":             func(d, s *Config) { d.Start = s.Start },
	"end":               func(d, s *Config) { d.End = s.End },
	"cidr":              func(d, s *Config) { d.CIDR = s.CIDR },
	"workers":           func(d, s *Config) { d.Workers = s.Workers },
	"handshake-workers": func(d, s *Config) { d.HandshakeWorkers = s.HandshakeWorkers },
	"user":              func(d, s *Config) { d.User = s.User },
	"password":          func(d, s *Config) { d.Password = s.Password },
	"ping-mode":         func(d, s *Config) { d.Ping.Mode = s.Ping.Mode },
	"ping-count":        func(d, s *Config) { d.Ping.Count = s.Ping.Count },
	"ping-timeout":      func(d, s *Config) { d.Ping.Timeout = s.Ping.Timeout },
	"probe-timeout":     func(d, s *Config) { d.ProbeTimeout = s.ProbeTimeout },
	"handshake-timeout": func(d, s *Config) { d.HandshakeTimeout = s.HandshakeTimeout },
	"arp-fallback":      func(d, s *Config) { d.ARPFallback = s.ARPFallback },
	"annotate":          func(d, s *Config) { d.Annotate = s.Annotate },
	"oui-db":            func(d, s *Config) { d.OUIDatabase = s.OUIDatabase },
	"sort":              func(d, s *Config) { d.Sort = s.Sort },
	"format":            func(d, s *Config) { d.Format = s.Format },
	"log-level":         func(d, s *Config) { d.Log.Level = s.Log.Level },
	"debug":             func(d, s *Config) { d.Log.Debug = s.Log.Debug },
}

// BindFlags registers one flag per setting on fs, writing into c. c's
// current values become the flag defaults.
func BindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Subnet, "subnet", c.Subnet, "First three octets of the range to scan (e.g. 192.168.1)")
	fs.IntVar(&c.Start, "start", c.Start, "First last-octet value, inclusive")
	fs.IntVar(&c.End, "end", c.End, "Last last-octet value, inclusive")
	fs.StringVar(&c.CIDR, "cidr", c.CIDR, "Scan the usable hosts of a CIDR instead of subnet/start/end")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Maximum concurrent probes")
	fs.IntVar(&c.HandshakeWorkers, "handshake-workers", c.HandshakeWorkers, "Goroutines dedicated to IPMI handshakes")
	fs.StringVar(&c.User, "user", c.User, "IPMI username")
	fs.StringVar(&c.Password, "password", c.Password, "IPMI password")
	fs.StringVar(&c.Ping.Mode, "ping-mode", c.Ping.Mode, "Liveness check: exec (system ping) or icmp")
	fs.IntVar(&c.Ping.Count, "ping-count", c.Ping.Count, "Echo requests per host")
	fs.DurationVar((*time.Duration)(&c.Ping.Timeout), "ping-timeout", time.Duration(c.Ping.Timeout), "Per-request ping timeout")
	fs.DurationVar((*time.Duration)(&c.ProbeTimeout), "probe-timeout", time.Duration(c.ProbeTimeout), "UDP/TCP probe timeout")
	fs.DurationVar((*time.Duration)(&c.HandshakeTimeout), "handshake-timeout", time.Duration(c.HandshakeTimeout), "IPMI handshake timeout")
	fs.BoolVar(&c.ARPFallback, "arp-fallback", c.ARPFallback, "Treat an ARP reply as alive when ping fails")
	fs.BoolVar(&c.Annotate, "annotate", c.Annotate, "Add MAC, vendor and reverse DNS name to the report")
	fs.StringVar(&c.OUIDatabase, "oui-db", c.OUIDatabase, "Path to an IEEE oui.txt for vendor names")
	fs.StringVar(&c.Sort, "sort", c.Sort, "Address order within a section: lexical or numeric")
	fs.StringVar(&c.Format, "format", c.Format, "Output format: text or json")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.Log.Debug, "debug", c.Log.Debug, "Enable debug logging of every probe")
}

// ApplyFlags copies into dst the settings whose flags were set explicitly
// on fs, taking their values from src (the Config bound with BindFlags).
func ApplyFlags(fs *flag.FlagSet, dst, src *Config) {
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := copiers[f.Name]; ok {
			apply(dst, src)
		}
	})
}
