package mock

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/executor"
)

// Snapshot is the JSON form of a world state.
type Snapshot struct {
	Accounts []SnapshotAccount `json:"accounts"`
}

// SnapshotAccount is the JSON form of an Account. Storage keys and values
// are hex, as is the two-byte code metadata.
type SnapshotAccount struct {
	Address      address.Address   `json:"address"`
	Nonce        uint64            `json:"nonce"`
	Balance      string            `json:"balance"`
	Tokens       []SnapshotToken   `json:"tokens,omitempty"`
	Storage      map[string]string `json:"storage,omitempty"`
	Code         string            `json:"code,omitempty"`
	CodeMetadata string            `json:"codeMetadata,omitempty"`
	Owner        *address.Address  `json:"owner,omitempty"`
}

// SnapshotToken is one token balance of a SnapshotAccount.
type SnapshotToken struct {
	Identifier string `json:"identifier"`
	Nonce      uint64 `json:"nonce"`
	Amount     string `json:"amount"`
}

// LoadSnapshot reads a JSON snapshot.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &s, nil
}

// LoadSnapshotFile reads a JSON snapshot from path.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// Save writes s as indented JSON.
func (s *Snapshot) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// World builds a world holding the snapshot accounts.
func (s *Snapshot) World(registry *Registry) (*World, error) {
	w := NewWorld(registry)
	for i, sa := range s.Accounts {
		acc, err := sa.account()
		if err != nil {
			return nil, fmt.Errorf("account %d (%s): %w", i, sa.Address, err)
		}
		if acc.IsContract() {
			if _, err := w.registry.Lookup(acc.CodeID); err != nil {
				return nil, fmt.Errorf("account %d (%s): %w", i, sa.Address, err)
			}
		}
		w.SetAccount(*acc)
	}
	return w, nil
}

// Snapshot captures the world state, accounts in address order.
func (w *World) Snapshot() *Snapshot {
	var s Snapshot
	for _, addr := range w.Addresses() {
		acc, ok := w.Account(addr)
		if !ok {
			continue
		}
		s.Accounts = append(s.Accounts, snapshotOf(&acc))
	}
	return &s
}

func (sa SnapshotAccount) account() (*Account, error) {
	acc := (&Account{Address: sa.Address, Nonce: sa.Nonce, CodeID: sa.Code}).clone()
	if sa.Owner != nil {
		acc.Owner = *sa.Owner
	}
	if sa.CodeMetadata != "" {
		b, err := hex.DecodeString(sa.CodeMetadata)
		if err != nil {
			return nil, fmt.Errorf("code metadata %q: %w", sa.CodeMetadata, err)
		}
		if acc.CodeMetadata, err = executor.ParseCodeMetadata(b); err != nil {
			return nil, err
		}
	}
	if sa.Balance != "" {
		if _, ok := acc.Balance.SetString(sa.Balance, 10); !ok {
			return nil, fmt.Errorf("invalid balance %q", sa.Balance)
		}
	}
	for _, t := range sa.Tokens {
		amount, ok := new(big.Int).SetString(t.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q for %s", t.Amount, t.Identifier)
		}
		if amount.Sign() > 0 {
			acc.Tokens[TokenKey{t.Identifier, t.Nonce}] = amount
		}
	}
	for k, v := range sa.Storage {
		key, err := hex.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("storage key %q: %w", k, err)
		}
		value, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("storage value of %q: %w", k, err)
		}
		if len(value) > 0 {
			acc.Storage[string(key)] = value
		}
	}
	return acc, nil
}

func snapshotOf(acc *Account) SnapshotAccount {
	sa := SnapshotAccount{
		Address: acc.Address,
		Nonce:   acc.Nonce,
		Balance: acc.Balance.String(),
		Code:    acc.CodeID,
	}
	if acc.IsContract() {
		meta := acc.CodeMetadata.Bytes()
		sa.CodeMetadata = hex.EncodeToString(meta[:])
	}
	if !acc.Owner.IsZero() {
		owner := acc.Owner
		sa.Owner = &owner
	}
	if len(acc.Storage) > 0 {
		sa.Storage = make(map[string]string, len(acc.Storage))
		for k, v := range acc.Storage {
			sa.Storage[hex.EncodeToString([]byte(k))] = hex.EncodeToString(v)
		}
	}
	for k, v := range acc.Tokens {
		sa.Tokens = append(sa.Tokens, SnapshotToken{Identifier: k.Identifier, Nonce: k.Nonce, Amount: v.String()})
	}
	sort.Slice(sa.Tokens, func(i, j int) bool {
		if sa.Tokens[i].Identifier != sa.Tokens[j].Identifier {
			return sa.Tokens[i].Identifier < sa.Tokens[j].Identifier
		}
		return sa.Tokens[i].Nonce < sa.Tokens[j].Nonce
	})
	return sa
}
