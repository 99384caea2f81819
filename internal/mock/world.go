// Package mock is an in-memory backend. It executes normalized calls against
// a simulated ledger of accounts whose contracts are Go values, and produces
// receipts shaped like the network's so the same result extraction applies.
package mock

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/executor"
)

var (
	// ErrUnknownAccount is returned when a call involves an address that is
	// not in the world.
	ErrUnknownAccount = errors.New("mock: unknown account")

	// ErrInsufficientFunds is returned when a sender cannot cover a transfer.
	ErrInsufficientFunds = errors.New("mock: insufficient funds")

	// ErrNotAContract is returned when a function is called on an account
	// without code.
	ErrNotAContract = errors.New("mock: account has no code")
)

// TokenKey identifies a token balance.
type TokenKey struct {
	Identifier string
	Nonce      uint64
}

// Account is the state of one address.
type Account struct {
	Address address.Address
	Nonce   uint64
	Balance *big.Int
	Tokens  map[TokenKey]*big.Int
	// Storage maps raw keys to raw values.
	Storage map[string][]byte
	// CodeID names the registered contract run by the account, "" for a
	// user account.
	CodeID       string
	CodeMetadata executor.CodeMetadata
	Owner        address.Address
}

// IsContract reports whether the account runs code.
func (a Account) IsContract() bool { return a.CodeID != "" }

func (a *Account) clone() *Account {
	c := &Account{
		Address:      a.Address,
		Nonce:        a.Nonce,
		Balance:      new(big.Int),
		Tokens:       make(map[TokenKey]*big.Int, len(a.Tokens)),
		Storage:      make(map[string][]byte, len(a.Storage)),
		CodeID:       a.CodeID,
		CodeMetadata: a.CodeMetadata,
		Owner:        a.Owner,
	}
	if a.Balance != nil {
		c.Balance.Set(a.Balance)
	}
	for k, v := range a.Tokens {
		c.Tokens[k] = new(big.Int).Set(v)
	}
	for k, v := range a.Storage {
		c.Storage[k] = append([]byte(nil), v...)
	}
	return c
}

// TokenBalance returns the balance of a token, zero when absent.
func (a Account) TokenBalance(id string, nonce uint64) *big.Int {
	if v, ok := a.Tokens[TokenKey{id, nonce}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// state is a set of accounts. It is not safe for concurrent use; World
// guards it.
type state struct {
	accounts map[address.Address]*Account
}

func newState() *state {
	return &state{accounts: make(map[address.Address]*Account)}
}

func (s *state) clone() *state {
	c := &state{accounts: make(map[address.Address]*Account, len(s.accounts))}
	for k, v := range s.accounts {
		c.accounts[k] = v.clone()
	}
	return c
}

func (s *state) get(addr address.Address) (*Account, error) {
	acc, ok := s.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	return acc, nil
}

// getOrCreate returns the account, creating an empty user account for an
// address that received funds for the first time.
func (s *state) getOrCreate(addr address.Address) *Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = (&Account{Address: addr}).clone()
		s.accounts[addr] = acc
	}
	return acc
}

func (s *state) moveEgld(from, to address.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	src, err := s.get(from)
	if err != nil {
		return err
	}
	if src.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, src.Balance, amount)
	}
	dst := s.getOrCreate(to)
	src.Balance.Sub(src.Balance, amount)
	dst.Balance.Add(dst.Balance, amount)
	return nil
}

func (s *state) moveToken(from, to address.Address, key TokenKey, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	src, err := s.get(from)
	if err != nil {
		return err
	}
	have, ok := src.Tokens[key]
	if !ok || have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has not enough %s-%d", ErrInsufficientFunds, from, key.Identifier, key.Nonce)
	}
	dst := s.getOrCreate(to)
	have.Sub(have, amount)
	if have.Sign() == 0 {
		delete(src.Tokens, key)
	}
	if cur, ok := dst.Tokens[key]; ok {
		cur.Add(cur, amount)
	} else {
		dst.Tokens[key] = new(big.Int).Set(amount)
	}
	return nil
}

// World is the simulated ledger. It is safe for concurrent use.
type World struct {
	mu       sync.RWMutex
	state    *state
	registry *Registry
}

// NewWorld creates an empty world running contracts from registry.
func NewWorld(registry *Registry) *World {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &World{state: newState(), registry: registry}
}

// SetAccount stores a copy of acc, replacing any account at its address.
func (w *World) SetAccount(acc Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.accounts[acc.Address] = acc.clone()
}

// Account returns a copy of the account at addr.
func (w *World) Account(addr address.Address) (Account, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	acc, ok := w.state.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return *acc.clone(), true
}

// Addresses returns every address in the world in byte order.
func (w *World) Addresses() []address.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]address.Address, 0, len(w.state.accounts))
	for a := range w.state.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}

// view runs fn on a copy of the state that is then discarded.
func (w *World) view(fn func(s *state) error) error {
	w.mu.RLock()
	working := w.state.clone()
	w.mu.RUnlock()
	return fn(working)
}

// update applies pre to the state, then runs fn on a copy that is kept only
// when fn succeeds. Changes made by pre are kept even when fn fails. The
// write lock is held throughout, so updates are serialized.
func (w *World) update(pre func(s *state) error, fn func(s *state) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if pre != nil {
		if err := pre(w.state); err != nil {
			return err
		}
	}
	working := w.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	w.state = working
	return nil
}
