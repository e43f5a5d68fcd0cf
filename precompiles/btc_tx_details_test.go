package precompiles

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/brc20-prog/brc20-programmable-module/bitcoinrpc/mocks"
)

const fixtureTxid = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33"
const fixtureBlockHash = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26"

func TestBTCTxDetailsRunPacksVinVoutAndHeight(t *testing.T) {
	ctrl := gomock.NewController(t)
	rpc := mocks.NewMockClient(ctrl)

	rpc.EXPECT().GetRawTransactionVerbose(gomock.Any()).Return(&btcjson.TxRawResult{
		Txid:      fixtureTxid,
		BlockHash: fixtureBlockHash,
		Vin: []btcjson.Vin{
			{Txid: fixtureTxid, Vout: 0},
		},
		Vout: []btcjson.Vout{
			{Value: 0.5, ScriptPubKey: btcjson.ScriptPubKeyResult{Hex: "76a914deadbeef88ac"}},
		},
	}, nil)
	rpc.EXPECT().GetBlockVerbose(gomock.Any()).Return(&btcjson.GetBlockVerboseResult{Height: 700000}, nil)

	p := &btcTxDetailsPrecompile{rpc: rpc, network: &chaincfg.MainNetParams}
	require.Equal(t, gasBTCTxDetailsBase+gasBTCTxDetailsPerOutput, p.RequiredGas(nil))

	packed, err := btcTxDetailsInputArgs.Pack(fixtureTxid)
	require.NoError(t, err)

	out, err := p.Run(selectorPad(packed))
	require.NoError(t, err)
	require.NotEmpty(t, out)

	values, err := btcTxDetailsOutputArgs.Unpack(out)
	require.NoError(t, err)
	require.Equal(t, uint64(700000), values[0].(uint64))
}

func TestBTCTxDetailsRunRejectsInvalidTxid(t *testing.T) {
	ctrl := gomock.NewController(t)
	rpc := mocks.NewMockClient(ctrl)
	p := &btcTxDetailsPrecompile{rpc: rpc, network: &chaincfg.MainNetParams}

	packed, err := btcTxDetailsInputArgs.Pack("not-a-txid")
	require.NoError(t, err)

	_, err = p.Run(selectorPad(packed))
	require.Error(t, err)
}
