package payment

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
)

var (
	sender   = address.MustFromBech32("erd1qyu5wthldzr8wx5c9ucg8kjagg0jfs53s8nr3zpz3hypefsdd8ssycr6th")
	receiver = contractAddress(1)
)

func contractAddress(last byte) address.Address {
	var a address.Address
	a[8], a[9], a[31] = 0x05, 0x00, last
	return a
}

func hexOf(s string) string { return hex.EncodeToString([]byte(s)) }

func TestNormalizeRejectsEgldWithTransfers(t *testing.T) {
	call := CanonicalCall{
		Sender:        sender,
		Receiver:      receiver.Bech32(),
		Function:      "deposit",
		EgldValue:     big.NewInt(1),
		EsdtTransfers: []TokenTransfer{{Identifier: "WEGLD-abcdef", Amount: big.NewInt(10)}},
	}

	_, err := call.Normalize()
	assert.ErrorIs(t, err, ErrEgldAndEsdtPaymentsDetected)
}

func TestNormalizeWithoutTransfersPassesThrough(t *testing.T) {
	call := CanonicalCall{
		Sender:    sender,
		Receiver:  receiver.Bech32(),
		Function:  "add",
		Arguments: [][]byte{{0x05}},
		EgldValue: big.NewInt(42),
	}

	out, err := call.Normalize()
	require.NoError(t, err)
	assert.Equal(t, call.Receiver, out.Receiver)
	assert.Equal(t, "add", out.Function)
	assert.Equal(t, call.Arguments, out.Arguments)
	assert.Equal(t, "42", out.EgldValue.String())
	assert.Equal(t, "add@05", out.TransactionData())
}

func TestNormalizeNilAmountIsZero(t *testing.T) {
	out, err := CanonicalCall{Sender: sender, Receiver: receiver.Bech32(), Function: "ping"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 0, out.EgldValue.Sign())
	assert.Equal(t, "ping", out.TransactionData())
}

func TestSingleFungibleTransfer(t *testing.T) {
	call := CanonicalCall{
		Sender:        sender,
		Receiver:      receiver.Bech32(),
		Function:      "swap",
		Arguments:     [][]byte{{0x01}, {0x02}},
		EsdtTransfers: []TokenTransfer{{Identifier: "WEGLD-abcdef", Amount: big.NewInt(1000)}},
	}

	out, err := call.Normalize()
	require.NoError(t, err)
	assert.Equal(t, receiver.Bech32(), out.Receiver)
	assert.Equal(t, ESDTTransferFunc, out.Function)
	assert.Empty(t, out.EsdtTransfers)

	want := "ESDTTransfer@" + hexOf("WEGLD-abcdef") + "@03e8@" + hexOf("swap") + "@01@02"
	assert.Equal(t, want, out.TransactionData())
}

func TestSingleNonFungibleTransfer(t *testing.T) {
	call := CanonicalCall{
		Sender:        sender,
		Receiver:      receiver.Bech32(),
		Function:      "stake",
		EsdtTransfers: []TokenTransfer{{Identifier: "NFT-123456", Nonce: 10, Amount: big.NewInt(1)}},
	}

	out, err := call.Normalize()
	require.NoError(t, err)
	assert.Equal(t, sender.Bech32(), out.Receiver, "non-fungible transfers are self calls")

	want := "ESDTNFTTransfer@" + hexOf("NFT-123456") + "@0a@01@" + receiver.Hex() + "@" + hexOf("stake")
	assert.Equal(t, want, out.TransactionData())
}

func TestMultiTransfer(t *testing.T) {
	call := CanonicalCall{
		Sender:   sender,
		Receiver: receiver.Bech32(),
		Function: "addLiquidity",
		EsdtTransfers: []TokenTransfer{
			{Identifier: "WEGLD-abcdef", Nonce: 0, Amount: big.NewInt(500)},
			{Identifier: "LP-123456", Nonce: 3, Amount: big.NewInt(7)},
		},
	}

	out, err := call.Normalize()
	require.NoError(t, err)
	assert.Equal(t, sender.Bech32(), out.Receiver)
	assert.Equal(t, MultiESDTNFTTransferFunc, out.Function)

	want := "MultiESDTNFTTransfer@" + receiver.Hex() + "@02@" +
		hexOf("WEGLD-abcdef") + "@@01f4@" +
		hexOf("LP-123456") + "@03@07@" +
		hexOf("addLiquidity")
	assert.Equal(t, want, out.TransactionData())
}

func TestTransferWithoutFunction(t *testing.T) {
	call := CanonicalCall{
		Sender:        sender,
		Receiver:      receiver.Bech32(),
		EsdtTransfers: []TokenTransfer{{Identifier: "WEGLD-abcdef", Amount: big.NewInt(1)}},
	}

	out, err := call.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "ESDTTransfer@"+hexOf("WEGLD-abcdef")+"@01", out.TransactionData())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	calls := []CanonicalCall{
		{Sender: sender, Receiver: receiver.Bech32(), Function: "add", Arguments: [][]byte{{5}}, EgldValue: big.NewInt(3)},
		{Sender: sender, Receiver: receiver.Bech32(), Function: "swap",
			EsdtTransfers: []TokenTransfer{{Identifier: "A-000001", Amount: big.NewInt(1)}}},
		{Sender: sender, Receiver: receiver.Bech32(), Function: "swap",
			EsdtTransfers: []TokenTransfer{{Identifier: "A-000001", Amount: big.NewInt(1)}, {Identifier: "B-000002", Nonce: 2, Amount: big.NewInt(2)}}},
	}

	for _, c := range calls {
		once, err := c.Normalize()
		require.NoError(t, err)
		assert.Empty(t, once.EsdtTransfers)

		twice, err := once.Normalize()
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeDoesNotAliasInput(t *testing.T) {
	args := [][]byte{{0x01}}
	call := CanonicalCall{Sender: sender, Receiver: receiver.Bech32(), Function: "f", Arguments: args}

	out, err := call.Normalize()
	require.NoError(t, err)
	out.Arguments[0][0] = 0xff
	assert.Equal(t, byte(0x01), args[0][0])
}

func TestNormalizeInvalidReceiver(t *testing.T) {
	call := CanonicalCall{
		Sender:        sender,
		Receiver:      "not-bech32",
		EsdtTransfers: []TokenTransfer{{Identifier: "NFT-123456", Nonce: 1, Amount: big.NewInt(1)}},
	}

	_, err := call.Normalize()
	assert.ErrorIs(t, err, address.ErrInvalidAddress)
}

func TestTransactionDataEmptyArgument(t *testing.T) {
	call := CanonicalCall{Function: "f", Arguments: [][]byte{{}, {0xab}}}
	assert.Equal(t, "f@@ab", call.TransactionData())

	assert.Equal(t, "f", CanonicalCall{Function: "f"}.TransactionData())
}
