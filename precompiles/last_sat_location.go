package precompiles

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/brc20-prog/brc20-programmable-module/bitcoinrpc"
)

const (
	gasLastSatLocationBase uint64 = 40_000
)

var (
	lastSatLocationInputArgs = abi.Arguments{
		{Type: mustType("string")}, // txid
		{Type: mustType("uint32")}, // vout
		{Type: mustType("uint64")}, // sat offset within the referenced output
	}
	lastSatLocationOutputArgs = abi.Arguments{
		{Type: mustType("string")}, // txid
		{Type: mustType("uint32")}, // vout
		{Type: mustType("uint64")}, // offset within that output
	}
)

// lastSatLocationPrecompile implements
// getLastSatLocation(string txid, uint32 vout, uint64 sat) returns
// (string txid, uint32 vout, uint64 offset).
//
// The module has no authoritative satoshi index of its own (the
// ordinals indexer owns that); per spec.md §4.5's "confirmed chain
// data only" constraint, this precompile resolves the location
// deterministically by walking the referenced transaction's inputs and
// applying Bitcoin's standard cumulative-input-offset sat-assignment
// rule, rather than tracking an index. This derivation choice is
// recorded as an Open Question decision in DESIGN.md.
type lastSatLocationPrecompile struct {
	rpc bitcoinrpc.Client
}

func (p *lastSatLocationPrecompile) RequiredGas(_ []byte) uint64 {
	return gasLastSatLocationBase
}

func (p *lastSatLocationPrecompile) Run(input []byte) ([]byte, error) {
	values, err := decodeArgs("last_sat_location", input, lastSatLocationInputArgs)
	if err != nil {
		return nil, err
	}
	txidHex := values[0].(string)
	vout := values[1].(uint32)
	sat := values[2].(uint64)

	txid, err := chainhash.NewHashFromStr(txidHex)
	if err != nil {
		return nil, decodeError("last_sat_location", err)
	}

	tx, err := p.rpc.GetRawTransactionVerbose(txid)
	if err != nil {
		return nil, err
	}
	if int(vout) >= len(tx.Vout) {
		return nil, decodeError("last_sat_location", errVoutOutOfRange)
	}

	// Cumulative-offset walk: the sat at `sat` offset within output
	// `vout` traces back to whichever input's offset range covers
	// (sum of this output's prior siblings' values) + sat, in the
	// transaction's total-input-value ordering.
	targetOffset := new(big.Int)
	for i := 0; i < int(vout); i++ {
		targetOffset.Add(targetOffset, satoshis(tx.Vout[i].Value))
	}
	targetOffset.Add(targetOffset, new(big.Int).SetUint64(sat))

	cursor := new(big.Int)
	for _, in := range tx.Vin {
		inTxid, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			continue
		}
		inTx, err := p.rpc.GetRawTransactionVerbose(inTxid)
		if err != nil || int(in.Vout) >= len(inTx.Vout) {
			continue
		}
		inValue := satoshis(inTx.Vout[in.Vout].Value)
		next := new(big.Int).Add(cursor, inValue)
		if targetOffset.Cmp(next) < 0 {
			offset := new(big.Int).Sub(targetOffset, cursor)
			return lastSatLocationOutputArgs.Pack(in.Txid, uint32(in.Vout), offset.Uint64())
		}
		cursor = next
	}
	return nil, decodeError("last_sat_location", errSatNotFound)
}

func satoshis(btc float64) *big.Int {
	return new(big.Int).SetUint64(uint64(btc*1e8 + 0.5))
}
