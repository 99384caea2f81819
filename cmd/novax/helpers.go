package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/caching"
	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/config"
	"github.com/dmagro/novax/internal/env"
	"github.com/dmagro/novax/internal/executor"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/logging"
	"github.com/dmagro/novax/internal/mock"
	"github.com/dmagro/novax/internal/output"
	"github.com/dmagro/novax/internal/payment"
	"github.com/dmagro/novax/internal/wallet"
)

type globalFlags struct {
	configPath string
	envPath    string
	mockPath   string
	format     string
	logLevel   string
	noColor    bool
}

// app is the state shared by every command.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	format output.Format
	logger zerolog.Logger
	pool   *gateway.Pool
	out    io.Writer

	closers []func() error
}

func (a *app) init(cmd *cobra.Command) error {
	if err := env.Load(a.flags.envPath); err != nil {
		return err
	}

	if a.flags.configPath != "" {
		cfg, err := config.Load(a.flags.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Default()
	}

	level := a.cfg.LogLevel
	if a.flags.logLevel != "" {
		level = a.flags.logLevel
	}
	if err := logging.SetLevel(level); err != nil {
		return err
	}
	a.logger = logging.Logger

	format, err := output.ParseFormat(a.flags.format)
	if err != nil {
		return err
	}
	a.format = format
	if a.flags.noColor || format == output.JSON || !output.IsTerminal() {
		output.DisableColors()
	}

	a.out = cmd.OutOrStdout()
	a.pool = gateway.NewPool()
	return nil
}

// onClose registers fn to run after the command.
func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) usingMock() bool { return a.flags.mockPath != "" }

func (a *app) client() *gateway.Client {
	return a.pool.GetOrCreate(gateway.ClientConfig{
		URL:        a.cfg.Gateway.URL,
		Timeout:    a.cfg.Gateway.Timeout,
		MaxRetries: a.cfg.Gateway.MaxRetries,
		Logger:     a.logger,
	})
}

func (a *app) wallet() (*wallet.KeyWallet, error) {
	if a.cfg.Wallet.PEM == "" {
		return nil, fmt.Errorf("wallet.pem is not configured")
	}
	return wallet.LoadPEM(a.cfg.Wallet.PEM)
}

// sender resolves the transaction sender: the explicit flag, else the
// configured wallet.
func (a *app) sender(flag string) (address.Address, error) {
	if flag != "" {
		return address.FromBech32(flag)
	}
	w, err := a.wallet()
	if err != nil {
		return address.Address{}, fmt.Errorf("no --sender given and %w", err)
	}
	return w.Address(), nil
}

func (a *app) mockWorld() (*mock.World, error) {
	snap, err := mock.LoadSnapshotFile(a.flags.mockPath)
	if err != nil {
		return nil, err
	}
	return snap.World(nil)
}

// saveWorld writes the mock ledger back to its snapshot file.
func (a *app) saveWorld(w *mock.World) error {
	return writeSnapshot(a.flags.mockPath, w.Snapshot())
}

func writeSnapshot(path string, snap *mock.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := snap.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// cache builds the configured query cache. Its background work stops when
// the command ends.
func (a *app) cache(ctx context.Context) (caching.Strategy, error) {
	c := a.cfg.Cache
	var policy caching.Expiration
	if c.Duration > 0 {
		policy = caching.For(c.Duration)
	} else {
		policy = caching.UntilNextBlock(a.blockClock())
	}

	newLocal := func() *caching.Local {
		l := caching.NewLocal(policy, caching.WithSweepInterval(c.SweepInterval), caching.WithLogger(a.logger))
		l.Start(ctx)
		a.onClose(l.Close)
		return l
	}

	switch c.Kind {
	case config.CacheLocal:
		return newLocal(), nil
	case config.CacheLocked:
		return caching.NewLocked(newLocal()), nil
	case config.CacheMulti:
		r, err := caching.NewRedis(ctx, caching.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		}, policy)
		if err != nil {
			return nil, err
		}
		a.onClose(r.Close)
		return caching.NewLocked(caching.NewMulti(newLocal(), r)), nil
	default:
		return caching.None{}, nil
	}
}

// blockClock uses the configured chain start when set. Otherwise a gateway
// run reads the round timing from the network config.
func (a *app) blockClock() caching.BlockClock {
	n := a.cfg.Network
	if n.GenesisTime != 0 || a.usingMock() {
		return caching.RoundClock{Genesis: n.Genesis(), Round: n.ChainRound}
	}
	return gateway.NewNetworkClock(a.client())
}

// queryBackend returns the query executor: the mock ledger or the gateway,
// behind the configured cache.
func (a *app) queryBackend(ctx context.Context) (executor.QueryExecutor, string, error) {
	var (
		inner executor.QueryExecutor
		name  string
		id    string
	)
	if a.usingMock() {
		world, err := a.mockWorld()
		if err != nil {
			return nil, "", err
		}
		inner = mock.NewExecutor(world, address.Zero, mock.WithLogger(a.logger))
		name, id = "mock", "mock:"+a.flags.mockPath
	} else {
		client := a.client()
		inner = executor.NewSimulation(client, address.Zero, executor.SimulationOptions{
			GasPrice: a.cfg.Network.GasPrice,
			Logger:   a.logger,
		})
		name, id = client.URL(), client.URL()
	}

	cache, err := a.cache(ctx)
	if err != nil {
		return nil, "", err
	}
	return executor.NewCachedQuery(inner, cache, id), name, nil
}

// parseArg parses one call argument:
//
//	erd1...     address
//	int:N       unsigned integer
//	str:S       UTF-8 bytes
//	0xHEX, HEX  raw bytes
func parseArg(s string) ([]byte, error) {
	switch {
	case strings.HasPrefix(s, address.HRP+"1"):
		a, err := address.FromBech32(s)
		if err != nil {
			return nil, err
		}
		return a.Bytes(), nil
	case strings.HasPrefix(s, "int:"):
		v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "int:"), 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer argument %q", s)
		}
		return codec.EncodeBigUint(v)
	case strings.HasPrefix(s, "str:"):
		return []byte(strings.TrimPrefix(s, "str:")), nil
	default:
		return parseHex(s)
	}
}

func parseArgs(raw []string) ([][]byte, error) {
	args := make([][]byte, len(raw))
	for i, s := range raw {
		b, err := parseArg(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args[i] = b
	}
	return args, nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex argument %q", s)
	}
	return b, nil
}

// parseTransfer parses ID:NONCE:AMOUNT, or ID:AMOUNT for a fungible token.
func parseTransfer(s string) (payment.TokenTransfer, error) {
	parts := strings.Split(s, ":")
	var tr payment.TokenTransfer
	switch len(parts) {
	case 2:
		tr.Identifier = parts[0]
	case 3:
		tr.Identifier = parts[0]
		nonce, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return tr, fmt.Errorf("invalid nonce in %q: %w", s, err)
		}
		tr.Nonce = nonce
	default:
		return tr, fmt.Errorf("invalid transfer %q (expected ID:AMOUNT or ID:NONCE:AMOUNT)", s)
	}
	amount, ok := new(big.Int).SetString(parts[len(parts)-1], 10)
	if !ok || amount.Sign() <= 0 {
		return tr, fmt.Errorf("invalid amount in %q", s)
	}
	if tr.Identifier == "" {
		return tr, fmt.Errorf("empty token identifier in %q", s)
	}
	tr.Amount = amount
	return tr, nil
}

func parseTransfers(raw []string) ([]payment.TokenTransfer, error) {
	var out []payment.TokenTransfer
	for _, s := range raw {
		tr, err := parseTransfer(s)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

func parseValue(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// parseShape looks up an ABI type name. Without one, results stay as raw
// return-data parts.
func parseShape(name string) (codec.Type, error) {
	if name == "" {
		return codec.Raw, nil
	}
	return codec.Lookup(name)
}

// paymentFlags are the payment flags of calls and queries.
type paymentFlags struct {
	value string
	esdts []string
}

func (p *paymentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.value, "value", "", "Native amount to send, in atomic units")
	cmd.Flags().StringArrayVar(&p.esdts, "esdt", nil, "Token transfer ID:AMOUNT or ID:NONCE:AMOUNT (repeatable)")
}

func (p *paymentFlags) parse() (*big.Int, []payment.TokenTransfer, error) {
	value, err := parseValue(p.value)
	if err != nil {
		return nil, nil, err
	}
	transfers, err := parseTransfers(p.esdts)
	if err != nil {
		return nil, nil, err
	}
	return value, transfers, nil
}
