package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/rmcp"
)

func sample() ipmidiscovery.ScanResult {
	return ipmidiscovery.ScanResult{
		"10.0.0.9":  {IP: "10.0.0.9", Tier: ipmidiscovery.Confirmed, Method: ipmidiscovery.MethodIPMI, Port: 623},
		"10.0.0.10": {IP: "10.0.0.10", Tier: ipmidiscovery.Confirmed, Method: ipmidiscovery.MethodIPMI, Port: 623},
		"10.0.0.2":  {IP: "10.0.0.2", Tier: ipmidiscovery.Possible, Method: ipmidiscovery.MethodUDP, Port: 623},
		"10.0.0.3":  {IP: "10.0.0.3", Tier: ipmidiscovery.NonMatching, Method: ipmidiscovery.MethodNone},
	}
}

func TestClassify_LexicalOrder(t *testing.T) {
	b := Classify(sample(), OrderLexical)

	assert.Equal(t, []string{"10.0.0.10", "10.0.0.9"}, b.IPs(ipmidiscovery.Confirmed))
	assert.Equal(t, []string{"10.0.0.2"}, b.IPs(ipmidiscovery.Possible))
	assert.Equal(t, []string{"10.0.0.3"}, b.IPs(ipmidiscovery.NonMatching))
}

func TestClassify_NumericOrder(t *testing.T) {
	b := Classify(sample(), OrderNumeric)
	assert.Equal(t, []string{"10.0.0.9", "10.0.0.10"}, b.IPs(ipmidiscovery.Confirmed))
}

func TestClassify_EachAddressInOneBucket(t *testing.T) {
	b := Classify(sample(), OrderLexical)
	seen := map[string]int{}
	for _, tier := range []ipmidiscovery.Tier{ipmidiscovery.Confirmed, ipmidiscovery.Possible, ipmidiscovery.NonMatching} {
		for _, ip := range b.IPs(tier) {
			seen[ip]++
		}
	}
	assert.Len(t, seen, 4)
	for ip, n := range seen {
		assert.Equal(t, 1, n, ip)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{}))

	want := strings.Join([]string{
		HeaderConfirmed,
		"  10.0.0.10",
		"  10.0.0.9",
		"",
		HeaderPossible,
		"  10.0.0.2",
		"",
		HeaderNonMatching,
		"  10.0.0.3",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteText_SkipsEmptyBuckets(t *testing.T) {
	results := ipmidiscovery.ScanResult{
		"10.0.0.2": {IP: "10.0.0.2", Tier: ipmidiscovery.Possible, Method: ipmidiscovery.MethodTCP, Port: 664},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, results, Options{}))

	assert.Equal(t, HeaderPossible+"\n  10.0.0.2\n", buf.String())
	assert.NotContains(t, buf.String(), HeaderConfirmed)
	assert.NotContains(t, buf.String(), HeaderNonMatching)
}

func TestWriteText_NoHosts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, ipmidiscovery.ScanResult{}, Options{}))
	assert.Equal(t, NoHostsMessage+"\n", buf.String())
}

func TestWriteText_Annotated(t *testing.T) {
	results := ipmidiscovery.ScanResult{
		"10.0.0.1": {
			IP: "10.0.0.1", Tier: ipmidiscovery.Possible, Method: ipmidiscovery.MethodUDP, Port: 623,
			MAC: "0c:c4:7a:00:00:01", Vendor: "Super Micro Computer, Inc.", Hostname: "bmc1.lab",
			Pong: &rmcp.Pong{Enterprise: 4542, IPMISupported: true},
		},
		"10.0.0.3": {IP: "10.0.0.3", Tier: ipmidiscovery.NonMatching, Method: ipmidiscovery.MethodNone},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, results, Options{Annotate: true}))

	out := buf.String()
	assert.Contains(t, out, "0c:c4:7a:00:00:01")
	assert.Contains(t, out, "Super Micro Computer, Inc.")
	assert.Contains(t, out, "bmc1.lab")
	assert.Contains(t, out, "udp/623 iana=4542 ipmi=true")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "  10.0.0.3"), last)
	assert.Equal(t, 4, strings.Count(last, "-"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{Format: FormatJSON}))

	var got struct {
		Confirmed   []map[string]interface{} `json:"confirmed"`
		Possible    []map[string]interface{} `json:"possible"`
		NonMatching []map[string]interface{} `json:"non_matching"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	require.Len(t, got.Confirmed, 2)
	assert.Equal(t, "10.0.0.10", got.Confirmed[0]["ip"])
	assert.Equal(t, "ipmi", got.Confirmed[0]["method"])
	require.Len(t, got.Possible, 1)
	assert.Equal(t, "udp", got.Possible[0]["method"])
	require.Len(t, got.NonMatching, 1)
	assert.Equal(t, "none", got.NonMatching[0]["method"])
	assert.NotContains(t, got.NonMatching[0], "port")
}

func TestWriteJSON_EmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, Options{Format: FormatJSON}))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"confirmed", "possible", "non_matching"} {
		assert.JSONEq(t, "[]", string(raw[key]), key)
	}
}

func TestParseOrderAndFormat(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderLexical, o)

	o, err = ParseOrder("NUMERIC")
	require.NoError(t, err)
	assert.Equal(t, OrderNumeric, o)

	_, err = ParseOrder("random")
	assert.ErrorIs(t, err, ErrUnknownOrder)

	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
