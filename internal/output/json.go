package output

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/dmagro/novax/internal/events"
	"github.com/dmagro/novax/internal/receipt"
	"github.com/dmagro/novax/internal/stats"
)

// JSONQuery is the machine-readable form of a query result.
type JSONQuery struct {
	Contract  string `json:"contract"`
	Function  string `json:"function"`
	Backend   string `json:"backend"`
	Result    any    `json:"result"`
	LatencyMs int64  `json:"latency_ms"`
}

// JSONCall is the machine-readable form of a transaction outcome.
type JSONCall struct {
	Contract  string           `json:"contract,omitempty"`
	Function  string           `json:"function,omitempty"`
	Deployed  string           `json:"deployed,omitempty"`
	Backend   string           `json:"backend"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	Result    any              `json:"result,omitempty"`
	Receipt   *receipt.Receipt `json:"receipt,omitempty"`
	LatencyMs int64            `json:"latency_ms"`
}

// JSONEvent is the machine-readable form of an event record.
type JSONEvent struct {
	TxHash     string    `json:"tx_hash"`
	Timestamp  time.Time `json:"timestamp"`
	Address    string    `json:"address"`
	Identifier string    `json:"identifier"`
	Order      uint64    `json:"order"`
	Fields     []string  `json:"fields"`
	Data       string    `json:"data,omitempty"`
}

// JSONLatency holds latency percentiles in milliseconds.
type JSONLatency struct {
	Runs   int     `json:"runs"`
	Errors int     `json:"errors"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
}

// RenderQueryJSON writes a query result as JSON.
func RenderQueryJSON(w io.Writer, qd *QueryDisplay) error {
	return writeJSON(w, JSONQuery{
		Contract:  qd.Contract.Bech32(),
		Function:  qd.Function,
		Backend:   qd.Backend,
		Result:    jsonValue(qd.Value),
		LatencyMs: qd.Latency.Milliseconds(),
	})
}

// RenderCallJSON writes a transaction outcome as JSON.
func RenderCallJSON(w io.Writer, cd *CallDisplay) error {
	out := JSONCall{
		Function:  cd.Function,
		Backend:   cd.Backend,
		Result:    jsonValue(cd.Value),
		Receipt:   cd.Receipt,
		LatencyMs: cd.Latency.Milliseconds(),
	}
	if cd.Deployed != nil {
		out.Deployed = cd.Deployed.Bech32()
	} else {
		out.Contract = cd.Contract.Bech32()
	}
	if cd.Receipt != nil {
		out.Success = receipt.IsSuccess(cd.Receipt)
		out.Error = receipt.ErrorMessage(cd.Receipt)
	}
	return writeJSON(w, out)
}

// RenderEventsJSON writes event records as a JSON array.
func RenderEventsJSON(w io.Writer, records []events.Record[events.Raw]) error {
	out := make([]JSONEvent, len(records))
	for i, rec := range records {
		fields := make([]string, len(rec.Event.Fields))
		for j, f := range rec.Event.Fields {
			fields[j] = hex.EncodeToString(f)
		}
		out[i] = JSONEvent{
			TxHash:     rec.Metadata.TxHash,
			Timestamp:  rec.Metadata.Timestamp,
			Address:    rec.Metadata.Address.Bech32(),
			Identifier: rec.Metadata.Identifier,
			Order:      rec.Metadata.Order,
			Fields:     fields,
			Data:       hex.EncodeToString(rec.Event.Data),
		}
	}
	return writeJSON(w, out)
}

// RenderLatencyJSON writes a latency summary as JSON.
func RenderLatencyJSON(w io.Writer, s stats.Summary) error {
	return writeJSON(w, JSONLatency{
		Runs:   s.Count,
		Errors: s.Errors,
		Min:    toMs(s.Min),
		Mean:   toMs(s.Mean),
		P50:    toMs(s.P50),
		P95:    toMs(s.P95),
		P99:    toMs(s.P99),
		Max:    toMs(s.Max),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
