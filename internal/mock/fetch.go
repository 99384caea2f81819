package mock

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/gateway"
)

// FetchAccount reads the nonce, balance, storage, owner and code metadata of
// addr from a gateway. The gateway does not expose contract code as a
// registered id, so codeID names the contract to run for it; pass "" for a
// user account. Token balances are not fetched.
func FetchAccount(ctx context.Context, client *gateway.Client, addr address.Address, codeID string) (*SnapshotAccount, error) {
	var (
		acc     *gateway.Account
		storage map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acc, err = client.GetAccount(gctx, addr.Bech32())
		return err
	})
	g.Go(func() error {
		var err error
		storage, err = client.GetStorage(gctx, addr.Bech32())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", addr, err)
	}

	balance, err := acc.BalanceInt()
	if err != nil {
		return nil, err
	}
	sa := &SnapshotAccount{
		Address: addr,
		Nonce:   acc.Nonce,
		Balance: balance.String(),
		Code:    codeID,
	}
	if codeID != "" && len(acc.CodeMetadata) == 2 {
		sa.CodeMetadata = hex.EncodeToString(acc.CodeMetadata)
	}
	if acc.OwnerAddress != "" {
		owner, err := address.FromBech32(acc.OwnerAddress)
		if err != nil {
			return nil, fmt.Errorf("owner of %s: %w", addr, err)
		}
		sa.Owner = &owner
	}
	if len(storage) > 0 {
		sa.Storage = make(map[string]string, len(storage))
		for k, v := range storage {
			sa.Storage[strings.ToLower(k)] = strings.ToLower(v)
		}
	}
	return sa, nil
}

// FetchSnapshot fetches every address into one snapshot. codeIDs maps a
// contract address to the code id it runs.
func FetchSnapshot(ctx context.Context, client *gateway.Client, addrs []address.Address, codeIDs map[address.Address]string) (*Snapshot, error) {
	accounts := make([]SnapshotAccount, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, a := range addrs {
		g.Go(func() error {
			sa, err := FetchAccount(gctx, client, a, codeIDs[a])
			if err != nil {
				return err
			}
			accounts[i] = *sa
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Snapshot{Accounts: accounts}, nil
}
