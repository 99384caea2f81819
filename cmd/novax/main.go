// Command novax calls MultiversX smart contracts: queries, transactions,
// simulations and deploys against a gateway or an in-memory mock ledger,
// plus event searches and ledger snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "novax",
		Short: "Call MultiversX smart contracts",
		Long: `novax builds contract calls, normalizes their payments, runs them on a
network gateway, a simulation endpoint or an in-memory mock ledger, and
decodes the results.

Examples:
  novax query erd1qqqqqqqqqqqqqpgq... getSum --type BigUint
  novax query erd1qqqqqqqqqqqqqpgq... getSum --mock world.json
  novax call erd1qqqqqqqqqqqqqpgq... add int:3 --gas-limit 5000000
  novax events erd1qqqqqqqqqqqqqpgq... swap --size 20 --sort timestamp:desc`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file path (defaults apply when empty)")
	pf.StringVar(&a.flags.envPath, "env", "", "Environment file loaded before the config (default .env)")
	pf.StringVar(&a.flags.mockPath, "mock", "", "Run against the mock ledger stored in this snapshot file")
	pf.StringVar(&a.flags.format, "format", "terminal", "Output format: terminal|json")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level, overrides the config")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		queryCmd(a),
		callCmd(a),
		simulateCmd(a),
		deployCmd(a),
		eventsCmd(a),
		snapshotCmd(a),
	)
	return root
}
