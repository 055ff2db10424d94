// Package report partitions scan results into confidence tiers and renders
// them as a grouped text listing or JSON.
//
// Addresses are ordered as plain strings by default, so "10.0.0.10" sorts
// before "10.0.0.9". OrderNumeric selects numeric IPv4 order instead.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/network"
)

// Section headers of the text report.
const (
	HeaderConfirmed   = "Confirmed IPMI devices:"
	HeaderPossible    = "Possible IPMI devices (port responded, no handshake):"
	HeaderNonMatching = "Responsive hosts without IPMI evidence:"

	// NoHostsMessage replaces the report when every bucket is empty.
	NoHostsMessage = "No hosts responded in the scanned range."
)

// Order selects how addresses are sorted within a bucket.
type Order string

const (
	OrderLexical Order = "lexical"
	OrderNumeric Order = "numeric"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	ErrUnknownOrder  = errors.New("unknown sort order")
	ErrUnknownFormat = errors.New("unknown output format")
)

// ParseOrder validates s as an Order. Empty means OrderLexical.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "", OrderLexical:
		return OrderLexical, nil
	case OrderNumeric:
		return OrderNumeric, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOrder, s)
}

// ParseFormat validates s as a Format. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Buckets holds the results of each tier, sorted.
type Buckets struct {
	Confirmed   []*ipmidiscovery.Result
	Possible    []*ipmidiscovery.Result
	NonMatching []*ipmidiscovery.Result
}

// Empty reports whether no host landed in any tier.
func (b Buckets) Empty() bool {
	return len(b.Confirmed) == 0 && len(b.Possible) == 0 && len(b.NonMatching) == 0
}

// IPs returns the addresses of tier t in bucket order.
func (b Buckets) IPs(t ipmidiscovery.Tier) []string {
	var list []*ipmidiscovery.Result
	switch t {
	case ipmidiscovery.Confirmed:
		list = b.Confirmed
	case ipmidiscovery.Possible:
		list = b.Possible
	default:
		list = b.NonMatching
	}
	ips := make([]string, len(list))
	for i, r := range list {
		ips[i] = r.IP
	}
	return ips
}

// Classify partitions results by tier and sorts each bucket by order.
func Classify(results ipmidiscovery.ScanResult, order Order) Buckets {
	ips := make([]string, 0, len(results))
	for ip := range results {
		ips = append(ips, ip)
	}
	if order == OrderNumeric {
		network.SortNumeric(ips)
	} else {
		network.SortLexical(ips)
	}

	var b Buckets
	for _, ip := range ips {
		r := results[ip]
		switch r.Tier {
		case ipmidiscovery.Confirmed:
			b.Confirmed = append(b.Confirmed, r)
		case ipmidiscovery.Possible:
			b.Possible = append(b.Possible, r)
		default:
			b.NonMatching = append(b.NonMatching, r)
		}
	}
	return b
}

// Options controls rendering.
type Options struct {
	Format   Format
	Order    Order
	Annotate bool // add MAC, vendor, hostname and probe columns
}

// Write classifies results and renders them to w.
func Write(w io.Writer, results ipmidiscovery.ScanResult, opts Options) error {
	b := Classify(results, opts.Order)
	if opts.Format == FormatJSON {
		return WriteJSON(w, b)
	}
	return WriteText(w, b, opts.Annotate)
}

// WriteText renders each non-empty bucket under its header, one address per
// line, or NoHostsMessage when there is nothing to show.
func WriteText(w io.Writer, b Buckets, annotate bool) error {
	if b.Empty() {
		_, err := fmt.Fprintln(w, NoHostsMessage)
		return err
	}

	sections := []struct {
		header  string
		results []*ipmidiscovery.Result
	}{
		{HeaderConfirmed, b.Confirmed},
		{HeaderPossible, b.Possible},
		{HeaderNonMatching, b.NonMatching},
	}

	first := true
	for _, s := range sections {
		if len(s.results) == 0 {
			continue
		}
		if !first {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		first = false

		if _, err := fmt.Fprintln(w, s.header); err != nil {
			return err
		}
		if err := writeSection(w, s.results, annotate); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(w io.Writer, results []*ipmidiscovery.Result, annotate bool) error {
	if !annotate {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "  %s\n", r.IP); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			r.IP, orDash(r.MAC), orDash(r.Vendor), orDash(r.Hostname), detail(r))
	}
	return tw.Flush()
}

func detail(r *ipmidiscovery.Result) string {
	if r.Method == "" || r.Method == ipmidiscovery.MethodNone {
		return "-"
	}
	s := string(r.Method)
	if r.Port != 0 {
		s = fmt.Sprintf("%s/%d", r.Method, r.Port)
	}
	if r.Pong != nil {
		s += " " + r.Pong.String()
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type jsonPong struct {
	Enterprise    uint32 `json:"enterprise"`
	IPMISupported bool   `json:"ipmi_supported"`
}

type jsonHost struct {
	IP       string    `json:"ip"`
	Method   string    `json:"method"`
	Port     int       `json:"port,omitempty"`
	MAC      string    `json:"mac,omitempty"`
	Vendor   string    `json:"vendor,omitempty"`
	Hostname string    `json:"hostname,omitempty"`
	Pong     *jsonPong `json:"pong,omitempty"`
}

type jsonReport struct {
	Confirmed   []jsonHost `json:"confirmed"`
	Possible    []jsonHost `json:"possible"`
	NonMatching []jsonHost `json:"non_matching"`
}

func toJSON(results []*ipmidiscovery.Result) []jsonHost {
	hosts := make([]jsonHost, 0, len(results))
	for _, r := range results {
		h := jsonHost{
			IP:       r.IP,
			Method:   string(r.Method),
			Port:     r.Port,
			MAC:      r.MAC,
			Vendor:   r.Vendor,
			Hostname: r.Hostname,
		}
		if h.Method == "" {
			h.Method = string(ipmidiscovery.MethodNone)
		}
		if r.Pong != nil {
			h.Pong = &jsonPong{Enterprise: r.Pong.Enterprise, IPMISupported: r.Pong.IPMISupported}
		}
		hosts = append(hosts, h)
	}
	return hosts
}

// WriteJSON renders the buckets as a single indented JSON object. Empty
// buckets are encoded as empty arrays.
func WriteJSON(w io.Writer, b Buckets) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Confirmed:   toJSON(b.Confirmed),
		Possible:    toJSON(b.Possible),
		NonMatching: toJSON(b.NonMatching),
	})
}
