package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/caching"
	"github.com/dmagro/novax/internal/config"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/logging"
	"github.com/dmagro/novax/internal/mock"
)

func testAddress(t *testing.T, prefix []byte, fill byte) address.Address {
	t.Helper()
	b := append([]byte(nil), prefix...)
	for len(b) < 32 {
		b = append(b, fill)
	}
	a, err := address.FromBytes(b)
	require.NoError(t, err)
	return a
}

// writeWorld writes a snapshot with a funded user and an adder holding 5.
func writeWorld(t *testing.T) (path string, user, contract address.Address) {
	t.Helper()
	user = testAddress(t, nil, 0x01)
	contract = testAddress(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x05, 0x00}, 0x07)
	snap := fmt.Sprintf(`{"accounts": [
		{"address": %q, "nonce": 1, "balance": "1000"},
		{"address": %q, "nonce": 0, "balance": "0", "code": "adder", "storage": {"73756d": "05"}}
	]}`, user.Bech32(), contract.Bech32())
	path = filepath.Join(t.TempDir(), "world.json")
	require.NoError(t, os.WriteFile(path, []byte(snap), 0o600))
	return path, user, contract
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryMock(t *testing.T) {
	path, _, contract := writeWorld(t)

	out, err := run(t, "query", contract.Bech32(), "getSum", "--type", "BigUint", "--mock", path, "--format", "json")
	require.NoError(t, err)

	var got struct {
		Function string `json:"function"`
		Backend  string `json:"backend"`
		Result   string `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "getSum", got.Function)
	assert.Equal(t, "mock", got.Backend)
	assert.Equal(t, "5", got.Result)
}

func TestQueryMockRepeat(t *testing.T) {
	path, _, contract := writeWorld(t)
	out, err := run(t, "query", contract.Bech32(), "getSum", "--type", "BigUint", "--mock", path, "--repeat", "5", "--parallel")
	require.NoError(t, err)
	assert.Contains(t, out, "5")
	assert.Contains(t, out, "p99")
}

func TestCallMockPersists(t *testing.T) {
	path, user, contract := writeWorld(t)

	_, err := run(t, "call", contract.Bech32(), "add", "int:3", "--mock", path, "--sender", user.Bech32())
	require.NoError(t, err)

	snap, err := mock.LoadSnapshotFile(path)
	require.NoError(t, err)
	world, err := snap.World(nil)
	require.NoError(t, err)

	acc, ok := world.Account(user)
	require.True(t, ok)
	assert.Equal(t, uint64(2), acc.Nonce)

	out, err := run(t, "query", contract.Bech32(), "getSum", "--type", "BigUint", "--mock", path)
	require.NoError(t, err)
	assert.Contains(t, out, "8")
}

func TestCallMockFailure(t *testing.T) {
	path, user, contract := writeWorld(t)

	out, err := run(t, "call", contract.Bech32(), "add", "--mock", path, "--sender", user.Bech32())
	require.Error(t, err)
	assert.Contains(t, out, "add expects 1 argument")

	snap, err := mock.LoadSnapshotFile(path)
	require.NoError(t, err)
	world, err := snap.World(nil)
	require.NoError(t, err)
	acc, _ := world.Account(user)
	assert.Equal(t, uint64(2), acc.Nonce)
}

func TestDeployMock(t *testing.T) {
	path, user, _ := writeWorld(t)

	out, err := run(t, "deploy", mock.AdderCodeID, "int:42", "--mock", path, "--sender", user.Bech32(), "--format", "json")
	require.NoError(t, err)

	var got struct {
		Deployed string `json:"deployed"`
		Success  bool   `json:"success"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Success)
	assert.Equal(t, mock.ContractAddress(user, 1).Bech32(), got.Deployed)

	out, err = run(t, "query", got.Deployed, "getSum", "--type", "BigUint", "--mock", path)
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestCommandErrors(t *testing.T) {
	path, _, contract := writeWorld(t)
	tests := []struct {
		name string
		args []string
	}{
		{"bad contract", []string{"query", "erd1nope", "getSum", "--mock", path}},
		{"bad argument", []string{"query", contract.Bech32(), "getSum", "zz", "--mock", path}},
		{"unknown type", []string{"query", contract.Bech32(), "getSum", "--type", "Nope", "--mock", path}},
		{"bad format", []string{"query", contract.Bech32(), "getSum", "--format", "xml", "--mock", path}},
		{"missing mock file", []string{"query", contract.Bech32(), "getSum", "--mock", filepath.Join(t.TempDir(), "none.json")}},
		{"simulate with mock", []string{"simulate", contract.Bech32(), "add", "int:1", "--mock", path, "--sender", contract.Bech32()}},
		{"events without index", []string{"events", contract.Bech32(), "swap"}},
		{"call without sender", []string{"call", contract.Bech32(), "add", "int:1", "--mock", path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
		})
	}
}

func TestParseArg(t *testing.T) {
	user := testAddress(t, nil, 0x01)
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"int:0", []byte{}, false},
		{"int:256", []byte{0x01, 0x00}, false},
		{"str:ab", []byte("ab"), false},
		{"0x0a0b", []byte{0x0a, 0x0b}, false},
		{"abc", []byte{0x0a, 0xbc}, false},
		{user.Bech32(), user.Bytes(), false},
		{"int:-1", nil, true},
		{"int:x", nil, true},
		{"zz", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseArg(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTransfer(t *testing.T) {
	tr, err := parseTransfer("WEGLD-abcdef:1000")
	require.NoError(t, err)
	assert.Equal(t, "WEGLD-abcdef", tr.Identifier)
	assert.Equal(t, uint64(0), tr.Nonce)
	assert.Equal(t, big.NewInt(1000), tr.Amount)

	tr, err = parseTransfer("NFT-123456:7:1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tr.Nonce)
	assert.Equal(t, big.NewInt(1), tr.Amount)

	for _, bad := range []string{"WEGLD", "WEGLD:0", ":5", "NFT:x:1", "A:1:2:3"} {
		_, err := parseTransfer(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFilterAndTime(t *testing.T) {
	f, err := parseFilter("1:0x2a")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Position)
	assert.Equal(t, []byte{0x2a}, f.Value)

	for _, bad := range []string{"1", "-1:2a", "x:2a", "0:zz"} {
		_, err := parseFilter(bad)
		assert.Error(t, err, bad)
	}

	ts, err := parseTime("1700000000")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0), ts)

	ts, err = parseTime("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts)

	ts, err = parseTime("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestBlockClock(t *testing.T) {
	tests := []struct {
		name      string
		genesis   int64
		mockPath  string
		wantRound bool
	}{
		{"gateway without genesis", 0, "", false},
		{"configured genesis", 1600000000, "", true},
		{"mock ledger", 0, "world.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{cfg: config.Default(), pool: gateway.NewPool(), logger: logging.Nop()}
			a.cfg.Network.GenesisTime = tt.genesis
			a.flags.mockPath = tt.mockPath

			clock := a.blockClock()
			if !tt.wantRound {
				assert.IsType(t, &gateway.NetworkClock{}, clock)
				return
			}
			rc, ok := clock.(caching.RoundClock)
			require.True(t, ok)
			assert.Equal(t, time.Unix(tt.genesis, 0), rc.Genesis)
			assert.Equal(t, a.cfg.Network.ChainRound, rc.Round)
		})
	}
}
