package output

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/events"
	"github.com/dmagro/novax/internal/receipt"
	"github.com/dmagro/novax/internal/stats"
)

// Colors for status indicators
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// QueryDisplay holds a query result for rendering.
type QueryDisplay struct {
	Contract address.Address
	Function string
	Backend  string
	Value    any
	Latency  time.Duration
}

// CallDisplay holds a transaction outcome for rendering.
type CallDisplay struct {
	Contract address.Address
	Function string
	Backend  string
	Receipt  *receipt.Receipt
	Value    any
	// Deployed is set for deploys.
	Deployed *address.Address
	Latency  time.Duration
}

// RenderQueryTerminal writes a query result.
func RenderQueryTerminal(w io.Writer, qd *QueryDisplay) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("Query %s", qd.Function)))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s  %s\n", cyan("Contract:"), qd.Contract.Bech32())
	fmt.Fprintf(w, "  %s    %s\n", cyan("Result:"), color.New(color.FgGreen, color.Bold).Sprint(Value(qd.Value)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s       %s (%s)\n", cyan("Via:"), qd.Backend, formatDuration(qd.Latency))
	fmt.Fprintln(w)
}

// RenderCallTerminal writes a transaction outcome with its result entries
// and events.
func RenderCallTerminal(w io.Writer, cd *CallDisplay) {
	title := "Call " + cd.Function
	if cd.Deployed != nil {
		title = "Deploy"
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", bold(title))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	if cd.Deployed != nil {
		fmt.Fprintf(w, "  %s   %s\n", cyan("Address:"), green(cd.Deployed.Bech32()))
	} else {
		fmt.Fprintf(w, "  %s  %s\n", cyan("Contract:"), cd.Contract.Bech32())
	}

	r := cd.Receipt
	if r != nil {
		fmt.Fprintf(w, "  %s      %s\n", cyan("Hash:"), r.Hash)
		fmt.Fprintf(w, "  %s    %s\n", cyan("Status:"), formatStatus(r))
		if msg := receipt.ErrorMessage(r); msg != "" {
			fmt.Fprintf(w, "  %s     %s\n", cyan("Error:"), red(msg))
		}
	}
	if cd.Value != nil {
		fmt.Fprintf(w, "  %s    %s\n", cyan("Result:"), color.New(color.FgGreen, color.Bold).Sprint(Value(cd.Value)))
	}
	fmt.Fprintln(w)

	if r != nil && len(r.SmartContractResults) > 0 {
		fmt.Fprintln(w, bold("Smart contract results"))
		tbl := newTable(w, "Hash", "Receiver", "Data", "Refund")
		for _, scr := range r.SmartContractResults {
			refund := ""
			if scr.IsRefund {
				refund = yellow("yes")
			}
			tbl.AddRow(truncateHash(scr.Hash), truncateHash(scr.Receiver), scr.Data, refund)
		}
		tbl.Print()
		fmt.Fprintln(w)
	}
	if r != nil && r.Logs != nil && len(r.Logs.Events) > 0 {
		fmt.Fprintln(w, bold("Events"))
		tbl := newTable(w, "Identifier", "Address", "Topics")
		for _, e := range r.Logs.Events {
			tbl.AddRow(e.Identifier, truncateHash(e.Address), hexList(e.Topics))
		}
		tbl.Print()
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  %s       %s (%s)\n", cyan("Via:"), cd.Backend, formatDuration(cd.Latency))
	fmt.Fprintln(w)
}

// RenderEventsTerminal writes event records as a table.
func RenderEventsTerminal(w io.Writer, records []events.Record[events.Raw]) {
	if len(records) == 0 {
		fmt.Fprintf(w, "\n  %s no events found\n\n", yellow("⚠"))
		return
	}
	fmt.Fprintln(w)
	tbl := newTable(w, "Timestamp", "Tx", "Order", "Fields", "Data")
	for _, rec := range records {
		tbl.AddRow(
			rec.Metadata.Timestamp.Format("2006-01-02 15:04:05"),
			truncateHash(rec.Metadata.TxHash),
			rec.Metadata.Order,
			hexList(rec.Event.Fields),
			hex.EncodeToString(rec.Event.Data),
		)
	}
	tbl.Print()
	fmt.Fprintf(w, "\n  %d event(s)\n\n", len(records))
}

// RenderLatencyTerminal writes the latency distribution of repeated runs.
func RenderLatencyTerminal(w io.Writer, s stats.Summary) {
	fmt.Fprintln(w, bold("Latency"))
	tbl := newTable(w, "Runs", "Errors", "Min", "Mean", "p50", "p95", "p99", "Max")
	errs := fmt.Sprint(s.Errors)
	if s.Errors > 0 {
		errs = red(errs)
	}
	tbl.AddRow(s.Count, errs,
		formatDuration(s.Min), formatDuration(s.Mean),
		formatDuration(s.P50), formatDuration(s.P95), formatDuration(s.P99),
		formatDuration(s.Max))
	tbl.Print()
	fmt.Fprintln(w)
}

func newTable(w io.Writer, columns ...any) table.Table {
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	return table.New(columns...).WithHeaderFormatter(headerFmt).WithWriter(w)
}

func formatStatus(r *receipt.Receipt) string {
	switch {
	case receipt.IsSuccess(r):
		return green("✓ " + r.Status)
	case receipt.IsFinal(r.Status):
		return red("✗ " + r.Status)
	default:
		return yellow(r.Status)
	}
}

func hexList(parts [][]byte) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = hex.EncodeToString(p)
	}
	return strings.Join(out, " ")
}

// DisableColors turns off color output (for non-TTY or --no-color)
func DisableColors() {
	color.NoColor = true
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
