package precompiles

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/brc20-prog/brc20-programmable-module/bitcoinrpc"
)

// gasBTCTxDetailsBase and gasBTCTxDetailsPerOutput give this
// precompile's variable gas cost: a lookup fee plus a per-word fee
// times len(input)/32+1, where input is the call input. The cost does
// not depend on the looked-up transaction's vin/vout count.
const (
	gasBTCTxDetailsBase      uint64 = 30_000
	gasBTCTxDetailsPerOutput uint64 = 1_000
)

var (
	btcTxDetailsInputArgs  = mustArguments("string")
	vinArrayType           = mustTupleArrayType([]abi.ArgumentMarshaling{
		{Name: "txid", Type: "string"},
		{Name: "vout", Type: "uint32"},
	})
	voutArrayType = mustTupleArrayType([]abi.ArgumentMarshaling{
		{Name: "value", Type: "uint256"},
		{Name: "pkScript", Type: "string"},
	})
	btcTxDetailsOutputArgs = abi.Arguments{
		{Type: mustType("uint64")},
		{Type: vinArrayType},
		{Type: voutArrayType},
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func mustTupleArrayType(components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType("tuple[]", "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

// btcTxDetailsPrecompile implements
// getTxDetails(string txid) returns (uint64 blockHeight, Vin[] vin,
// Vout[] vout), looking the transaction up via the bitcoinrpc client
// package — grounded on precompiles.rs's BtcTxDetails dispatch arm and
// btc_utils.rs's get_raw_transaction_info.
type btcTxDetailsPrecompile struct {
	rpc     bitcoinrpc.Client
	network *chaincfg.Params
}

func (p *btcTxDetailsPrecompile) RequiredGas(input []byte) uint64 {
	return gasBTCTxDetailsBase + gasBTCTxDetailsPerOutput*uint64(len(input)/32+1)
}

func (p *btcTxDetailsPrecompile) Run(input []byte) ([]byte, error) {
	values, err := decodeArgs("btc_tx_details", input, btcTxDetailsInputArgs)
	if err != nil {
		return nil, err
	}
	txidHex := values[0].(string)

	txid, err := chainhash.NewHashFromStr(txidHex)
	if err != nil {
		return nil, decodeError("btc_tx_details", err)
	}

	tx, err := p.rpc.GetRawTransactionVerbose(txid)
	if err != nil {
		return nil, err
	}

	var blockHeight uint64
	if tx.BlockHash != "" {
		blockHash, err := chainhash.NewHashFromStr(tx.BlockHash)
		if err == nil {
			if block, err := p.rpc.GetBlockVerbose(blockHash); err == nil {
				blockHeight = uint64(block.Height)
			}
		}
	}

	vins := make([]txVin, len(tx.Vin))
	for i, in := range tx.Vin {
		vins[i] = txVin{Txid: in.Txid, Vout: uint32(in.Vout)}
	}
	vouts := make([]txVout, len(tx.Vout))
	for i, out := range tx.Vout {
		sats := new(big.Int).SetUint64(uint64(out.Value*1e8 + 0.5))
		vouts[i] = txVout{Value: sats, PkScript: out.ScriptPubKey.Hex}
	}

	return btcTxDetailsOutputArgs.Pack(blockHeight, vins, vouts)
}

// txVin and txVout mirror the ABI tuple shapes returned by
// getTxDetails's vin/vout arrays.
type txVin struct {
	Txid string
	Vout uint32
}

type txVout struct {
	Value    *big.Int
	PkScript string
}
