package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/mock"
)

func snapshotCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "snapshot <address[=codeid]>... -o <file>",
		Short: "Capture gateway accounts into a mock snapshot",
		Long: `Fetch the nonce, balance, storage and owner of each address from the
gateway and write them as a snapshot usable with --mock.

A contract address needs the id of the registered mock contract that runs
its code, given as ADDRESS=CODEID.

Examples:
  novax snapshot erd1qqqqqqqqqqqqqpgq...=adder erd1... -o world.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), a, args, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Snapshot file to write")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runSnapshot(ctx context.Context, a *app, args []string, outPath string) error {
	addrs := make([]address.Address, 0, len(args))
	codeIDs := map[address.Address]string{}
	for _, arg := range args {
		raw, codeID, _ := strings.Cut(arg, "=")
		addr, err := address.FromBech32(raw)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", raw, err)
		}
		if codeID != "" {
			codeIDs[addr] = codeID
		}
		addrs = append(addrs, addr)
	}

	snap, err := mock.FetchSnapshot(ctx, a.client(), addrs, codeIDs)
	if err != nil {
		return err
	}
	if err := writeSnapshot(outPath, snap); err != nil {
		return err
	}
	a.logger.Info().Int("accounts", len(snap.Accounts)).Str("file", outPath).Msg("snapshot written")
	return nil
}
