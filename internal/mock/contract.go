package mock

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/payment"
)

// ErrUnknownFunction is returned by contracts for a function they do not
// implement.
var ErrUnknownFunction = errors.New("mock: unknown function")

// ErrUnknownCode is returned when deploy code names no registered contract.
var ErrUnknownCode = errors.New("mock: unknown code")

// InitFunction is called on deploy with the deploy arguments.
const InitFunction = "init"

// Contract is contract code written in Go. Contracts keep no state of their
// own: everything persistent goes through the Context storage.
type Contract interface {
	Call(ctx *Context, function string, args [][]byte) ([][]byte, error)
}

// ContractFunc adapts a function to Contract.
type ContractFunc func(ctx *Context, function string, args [][]byte) ([][]byte, error)

// Call implements Contract.
func (f ContractFunc) Call(ctx *Context, function string, args [][]byte) ([][]byte, error) {
	return f(ctx, function, args)
}

// UserError is a failure raised by contract logic, reported as the
// transaction error message.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Fail returns a UserError with a formatted message.
func Fail(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// Context is what a contract sees while it runs: its own account, the
// caller and the payments of the call.
type Context struct {
	state    *state
	self     *Account
	caller   address.Address
	egld     *big.Int
	payments []payment.TokenTransfer
	readOnly bool
}

// Self returns the address of the running contract.
func (c *Context) Self() address.Address { return c.self.Address }

// Owner returns the owner of the running contract.
func (c *Context) Owner() address.Address { return c.self.Owner }

// Caller returns the address that called the contract.
func (c *Context) Caller() address.Address { return c.caller }

// EgldValue returns the native amount received with the call.
func (c *Context) EgldValue() *big.Int { return new(big.Int).Set(c.egld) }

// Payments returns the token transfers received with the call.
func (c *Context) Payments() []payment.TokenTransfer {
	return append([]payment.TokenTransfer(nil), c.payments...)
}

// ReadOnly reports whether the call is a query, whose changes are dropped.
func (c *Context) ReadOnly() bool { return c.readOnly }

// Get reads a storage value, nil when unset.
func (c *Context) Get(key string) []byte {
	v, ok := c.self.Storage[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

// Set writes a storage value. An empty value clears the key.
func (c *Context) Set(key string, value []byte) {
	if len(value) == 0 {
		delete(c.self.Storage, key)
		return
	}
	c.self.Storage[key] = append([]byte(nil), value...)
}

// Balance returns the native balance of the running contract.
func (c *Context) Balance() *big.Int { return new(big.Int).Set(c.self.Balance) }

// SendEgld pays amount from the contract to another account.
func (c *Context) SendEgld(to address.Address, amount *big.Int) error {
	return c.state.moveEgld(c.self.Address, to, amount)
}

// SendToken pays a token from the contract to another account.
func (c *Context) SendToken(to address.Address, tr payment.TokenTransfer) error {
	return c.state.moveToken(c.self.Address, to, TokenKey{tr.Identifier, tr.Nonce}, tr.Amount)
}

// Registry maps code ids to contracts. Deploy code is looked up as a code
// id.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]Contract)}
}

// DefaultRegistry holds the built-in contracts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(AdderCodeID, Adder{})
	return r
}

// Register binds id to c, replacing any previous binding.
func (r *Registry) Register(id string, c Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[id] = c
}

// Lookup returns the contract bound to id.
func (r *Registry) Lookup(id string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCode, id)
	}
	return c, nil
}

// IDs returns the registered code ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
