package gateway

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// envelope wraps every gateway response.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// codeSuccessful is the envelope code of an accepted request.
const codeSuccessful = "successful"

// Account is the on-chain state of an address.
type Account struct {
	Address      string `json:"address"`
	Nonce        uint64 `json:"nonce"`
	Balance      string `json:"balance"`
	Code         string `json:"code,omitempty"`
	CodeHash     []byte `json:"codeHash,omitempty"`
	RootHash     []byte `json:"rootHash,omitempty"`
	CodeMetadata []byte `json:"codeMetadata,omitempty"`
	OwnerAddress string `json:"ownerAddress,omitempty"`
}

// BalanceInt parses the decimal balance.
func (a *Account) BalanceInt() (*big.Int, error) {
	if a.Balance == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(a.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("%w: balance %q", ErrParse, a.Balance)
	}
	return v, nil
}

// NetworkConfig holds the fee and protocol parameters of a network.
type NetworkConfig struct {
	ChainID               string `json:"erd_chain_id"`
	MinGasPrice           uint64 `json:"erd_min_gas_price"`
	MinGasLimit           uint64 `json:"erd_min_gas_limit"`
	GasPerDataByte        uint64 `json:"erd_gas_per_data_byte"`
	MinTransactionVersion uint32 `json:"erd_min_transaction_version"`
	RoundDuration         int64  `json:"erd_round_duration"`
	StartTime             int64  `json:"erd_start_time"`
	NumShards             uint32 `json:"erd_num_shards_without_meta"`
}

// Round returns the block duration.
func (c *NetworkConfig) Round() time.Duration {
	return time.Duration(c.RoundDuration) * time.Millisecond
}

// Genesis returns the start time of round zero.
func (c *NetworkConfig) Genesis() time.Time {
	return time.Unix(c.StartTime, 0)
}

// Transaction is the wire form of a transaction submitted to the gateway.
// Field order is the order used for the signing payload.
type Transaction struct {
	Nonce     uint64 `json:"nonce"`
	Value     string `json:"value"`
	Receiver  string `json:"receiver"`
	Sender    string `json:"sender"`
	GasPrice  uint64 `json:"gasPrice"`
	GasLimit  uint64 `json:"gasLimit"`
	Data      []byte `json:"data,omitempty"`
	ChainID   string `json:"chainID"`
	Version   uint32 `json:"version"`
	Signature string `json:"signature,omitempty"`
}

// SigningPayload returns the serialized transaction without its signature.
func (tx Transaction) SigningPayload() ([]byte, error) {
	tx.Signature = ""
	return json.Marshal(tx)
}

// VMQuery is the body of a read-only contract query.
type VMQuery struct {
	ScAddress string   `json:"scAddress"`
	FuncName  string   `json:"funcName"`
	Caller    string   `json:"caller,omitempty"`
	Value     string   `json:"value,omitempty"`
	Args      []string `json:"args"`
}

// VMQueryResult is the outcome of a contract query.
type VMQueryResult struct {
	ReturnData    [][]byte `json:"returnData"`
	ReturnCode    string   `json:"returnCode"`
	ReturnMessage string   `json:"returnMessage"`
}

// returnCodeOK is the VM return code of a successful execution.
const returnCodeOK = "ok"
