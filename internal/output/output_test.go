package output

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/events"
	"github.com/dmagro/novax/internal/receipt"
	"github.com/dmagro/novax/internal/stats"
)

func init() {
	color.NoColor = true
}

func testContract(t *testing.T) address.Address {
	t.Helper()
	b := make([]byte, 32)
	b[8] = 0x05
	b[31] = 0x01
	a, err := address.FromBytes(b)
	require.NoError(t, err)
	return a
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Terminal, false},
		{"terminal", Terminal, false},
		{"JSON", JSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue(t *testing.T) {
	a := testContract(t)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "<none>"},
		{"big", big.NewInt(5), "5"},
		{"bytes", []byte{0xca, 0xfe}, "0xcafe"},
		{"string", "ok", `"ok"`},
		{"address", a, a.Bech32()},
		{"raw parts", [][]byte{{1}, {}}, "[0x01, 0x]"},
		{"list", []any{uint64(1), true, big.NewInt(2)}, "[1, true, 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestRenderQuery(t *testing.T) {
	qd := &QueryDisplay{Contract: testContract(t), Function: "getSum", Backend: "mock", Value: big.NewInt(5), Latency: 3 * time.Millisecond}

	var term bytes.Buffer
	RenderQueryTerminal(&term, qd)
	assert.Contains(t, term.String(), "Query getSum")
	assert.Contains(t, term.String(), "Result:    5")
	assert.Contains(t, term.String(), "mock (3ms)")

	var js bytes.Buffer
	require.NoError(t, RenderQueryJSON(&js, qd))
	var got JSONQuery
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.Equal(t, "5", got.Result)
	assert.Equal(t, int64(3), got.LatencyMs)
}

func TestRenderCall(t *testing.T) {
	r := &receipt.Receipt{
		Hash:   "abcdef0123456789abcdef",
		Status: receipt.StatusFail,
		Logs: &receipt.Logs{Events: []receipt.Event{{
			Identifier: receipt.EventSignalError,
			Topics:     [][]byte{{1}, []byte("out of funds")},
		}}},
	}
	cd := &CallDisplay{Contract: testContract(t), Function: "add", Backend: "network", Receipt: r}

	var term bytes.Buffer
	RenderCallTerminal(&term, cd)
	out := term.String()
	assert.Contains(t, out, "Call add")
	assert.Contains(t, out, "✗ fail")
	assert.Contains(t, out, "out of funds")
	assert.Contains(t, out, "signalError")

	var js bytes.Buffer
	require.NoError(t, RenderCallJSON(&js, cd))
	var got JSONCall
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Equal(t, "out of funds", got.Error)
}

func TestRenderDeploy(t *testing.T) {
	addr := testContract(t)
	cd := &CallDisplay{
		Backend:  "mock",
		Deployed: &addr,
		Receipt: &receipt.Receipt{
			Hash:                 "h",
			Status:               receipt.StatusSuccess,
			SmartContractResults: []receipt.SmartContractResult{{Hash: "s", Data: "@6f6b"}},
		},
	}
	var term bytes.Buffer
	RenderCallTerminal(&term, cd)
	assert.Contains(t, term.String(), "Deploy")
	assert.Contains(t, term.String(), addr.Bech32())
	assert.Contains(t, term.String(), "@6f6b")

	var js bytes.Buffer
	require.NoError(t, RenderCallJSON(&js, cd))
	assert.Contains(t, js.String(), `"deployed": "`+addr.Bech32()+`"`)
	assert.NotContains(t, js.String(), `"contract"`)
}

func TestRenderEvents(t *testing.T) {
	records := []events.Record[events.Raw]{{
		Event: events.Raw{Fields: [][]byte{{0x2a}}, Data: []byte{0x01}},
		Metadata: events.Metadata{
			TxHash:     "tx1",
			Timestamp:  time.Unix(1700000000, 0).UTC(),
			Address:    testContract(t),
			Identifier: "swap",
			Order:      3,
		},
	}}

	var term bytes.Buffer
	RenderEventsTerminal(&term, records)
	assert.Contains(t, term.String(), "2023-11-14 22:13:20")
	assert.Contains(t, term.String(), "2a")
	assert.Contains(t, term.String(), "1 event(s)")

	term.Reset()
	RenderEventsTerminal(&term, nil)
	assert.Contains(t, term.String(), "no events found")

	var js bytes.Buffer
	require.NoError(t, RenderEventsJSON(&js, records))
	var got []JSONEvent
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, []string{"2a"}, got[0].Fields)
	assert.Equal(t, "01", got[0].Data)
}

func TestRenderLatency(t *testing.T) {
	s := stats.Summarize([]time.Duration{time.Millisecond, 3 * time.Millisecond})
	s.Errors = 1

	var term bytes.Buffer
	RenderLatencyTerminal(&term, s)
	assert.Contains(t, term.String(), "p95")
	assert.Contains(t, term.String(), "3ms")

	var js bytes.Buffer
	require.NoError(t, RenderLatencyJSON(&js, s))
	var got JSONLatency
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.Equal(t, 2, got.Runs)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 2.0, got.Mean)
}
