package rpcserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brc20-prog/brc20-programmable-module/engine"
)

func rpcCall(t *testing.T, h *Handler, method string, params ...interface{}) (interface{}, *RPCError) {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.dispatch(&JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: 1})
}

func TestEthChainIdAndClientVersion(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "eth_chainId")
	require.Nil(t, rpcErr)
	require.Equal(t, NewHexNumber(engine.ChainID), result)

	result, rpcErr = rpcCall(t, h, "web3_clientVersion")
	require.Nil(t, rpcErr)
	require.Equal(t, clientVersion, result)
}

func TestBlockNumberStartsAtZero(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "eth_blockNumber")
	require.Nil(t, rpcErr)
	require.Equal(t, NewHexNumber(0), result)
}

func TestBrc20MineAdvancesBlockNumber(t *testing.T) {
	h := newTestHandler(t, false)
	_, rpcErr := rpcCall(t, h, "brc20_mine", "0x3", "0x0")
	require.Nil(t, rpcErr)

	result, rpcErr := rpcCall(t, h, "eth_blockNumber")
	require.Nil(t, rpcErr)
	require.Equal(t, NewHexNumber(3), result)
}

func TestGetBlockByNumberRoundTripsAfterMining(t *testing.T) {
	h := newTestHandler(t, false)
	_, rpcErr := rpcCall(t, h, "brc20_mine", "0x1", "0x64")
	require.Nil(t, rpcErr)

	result, rpcErr := rpcCall(t, h, "eth_getBlockByNumber", "0x1")
	require.Nil(t, rpcErr)
	block, ok := result.(*Block)
	require.True(t, ok)
	require.Equal(t, NewHexNumber(1), block.Number)
}

func TestGetBlockByNumberReturnsNilForUnknownHeight(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "eth_getBlockByNumber", "0x99")
	require.Nil(t, rpcErr)
	require.Nil(t, result)
}

func TestBrc20DeployThenGetTransactionReceipt(t *testing.T) {
	h := newTestHandler(t, false)
	_, rpcErr := rpcCall(t, h, "brc20_mine", "0x1", "0x0")
	require.Nil(t, rpcErr)

	from := "0x1111111111111111111111111111111111111111"
	blockHash := "0x" + repeatHex("ab", 32)
	result, rpcErr := rpcCall(t, h, "brc20_deploy", from, "0x600160005260206000f3", "0x0", blockHash)
	require.Nil(t, rpcErr)
	receipt, ok := result.(*Receipt)
	require.True(t, ok)
	require.NotEmpty(t, receipt.TransactionHash)

	_, rpcErr = rpcCall(t, h, "brc20_finaliseBlock", "0x0", blockHash, "0x1")
	require.Nil(t, rpcErr)

	result, rpcErr = rpcCall(t, h, "eth_getTransactionReceipt", receipt.TransactionHash)
	require.Nil(t, rpcErr)
	require.NotNil(t, result)
}

func TestEthGetCodeUnknownAddressReturnsEmpty(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "eth_getCode", "0x2222222222222222222222222222222222222222", "latest")
	require.Nil(t, rpcErr)
	require.Equal(t, HexBytes("0x"), result)
}

func TestBrc20CommitAndClearCaches(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "brc20_commitToDatabase")
	require.Nil(t, rpcErr)
	require.Equal(t, true, result)

	result, rpcErr = rpcCall(t, h, "brc20_clearCaches")
	require.Nil(t, rpcErr)
	require.Equal(t, true, result)
}

func TestBrc20InitialiseIsOneShotOverRPC(t *testing.T) {
	h := newTestHandler(t, false)
	result, rpcErr := rpcCall(t, h, "brc20_initialise")
	require.Nil(t, rpcErr)
	require.Equal(t, true, result)

	_, rpcErr = rpcCall(t, h, "brc20_initialise")
	require.NotNil(t, rpcErr)
}

func TestBrc20ReorgRejectsFutureHeight(t *testing.T) {
	h := newTestHandler(t, false)
	_, rpcErr := rpcCall(t, h, "brc20_mine", "0x1", "0x0")
	require.Nil(t, rpcErr)

	_, rpcErr = rpcCall(t, h, "brc20_reorg", "0x5")
	require.NotNil(t, rpcErr)
}

func repeatHex(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}
