package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/codec"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/receipt"
)

func newSimulation(t *testing.T, f *fakeGateway) *Simulation {
	t.Helper()
	client := startGateway(t, f)
	return NewSimulation(client, testWallet(t).Address(), SimulationOptions{Logger: zerolog.Nop()})
}

func TestSimulationCall(t *testing.T) {
	f := &fakeGateway{
		nonce: 9,
		simulationJSON: `{"result":{"status":"success","hash":"sim1","scResults":{
			"r1":{"nonce":10,"data":"","isRefund":true},
			"r2":{"nonce":10,"data":"@6f6b@2a"}
		},"logs":{"address":"erd1x","events":[{"identifier":"completedTxEvent","topics":[]}]}}}`,
	}
	sim := newSimulation(t, f)

	res, err := sim.ExecuteCall(context.Background(), &CallRequest{
		Contract: testContract(t),
		Function: "add",
	}, codec.BigUint)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), res.Result)
	assert.Equal(t, "sim1", res.Receipt.Hash)
	require.Len(t, res.Receipt.SmartContractResults, 2)
	assert.Equal(t, "r1", res.Receipt.SmartContractResults[0].Hash)
	require.NotNil(t, res.Receipt.Logs)
	assert.Equal(t, "erd1x", res.Receipt.Logs.Address)

	simulated := f.simulatedTransactions()
	require.Len(t, simulated, 1)
	tx := simulated[0]
	assert.Equal(t, uint64(9), tx.Nonce)
	assert.Empty(t, tx.Signature)
	assert.Equal(t, uint64(defaultSimulationGasLimit), tx.GasLimit)
	assert.Empty(t, f.sentTransactions(), "simulation never submits")
}

func TestSimulationFailure(t *testing.T) {
	sim := newSimulation(t, &fakeGateway{
		simulationJSON: `{"result":{"status":"fail","hash":"sim2","failReason":"out of gas"}}`,
	})

	_, err := sim.ExecuteCall(context.Background(), &CallRequest{Contract: testContract(t), Function: "add"}, codec.BigUint)
	var tfe *TransactionFailedError
	require.True(t, errors.As(err, &tfe))
	assert.Equal(t, "fail", tfe.Status)
	assert.Equal(t, "out of gas", tfe.Message)
}

func TestSimulationCrossShard(t *testing.T) {
	contract := testContract(t)
	topic := base64.StdEncoding.EncodeToString(contract.Bytes())
	sim := newSimulation(t, &fakeGateway{
		simulationJSON: `{
			"senderShard":{"status":"success","hash":"s1","scResults":{}},
			"receiverShard":{"status":"success","logs":{"events":[{"identifier":"SCDeploy","topics":["` + topic + `"]}]}}
		}`,
	})

	addr, res, err := sim.ExecuteDeploy(context.Background(), &DeployRequest{Code: []byte{1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, contract, addr)
	assert.Equal(t, "s1", res.Receipt.Hash)
}

func TestParseSimulation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		status  string
		wantErr error
	}{
		{"invalid json", `{`, "", gateway.ErrParse},
		{"no result", `{"other":{}}`, "", gateway.ErrParse},
		{"no status", `{"result":{}}`, "", gateway.ErrParse},
		{"bad scr", `{"result":{"status":"success","scResults":{"a":{"nonce":"x"}}}}`, "", gateway.ErrParse},
		{"receiver fails", `{"senderShard":{"status":"success"},"receiverShard":{"status":"fail"}}`, "fail", nil},
		{"odd logs ignored", `{"result":{"status":"success","logs":"none"}}`, receipt.StatusSuccess, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseSimulation([]byte(tt.raw), zerolog.Nop())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, r.Status)
		})
	}
}
