package precompiles

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestLockedPkscriptRunProducesValidTaprootOutput(t *testing.T) {
	p := &lockedPkscriptPrecompile{network: &chaincfg.MainNetParams}
	require.Equal(t, gasLockedPkscript, p.RequiredGas(nil))

	packed, err := lockedPkscriptInputArgs.Pack("0x76a914000000000000000000000000000000000000000088ac", big.NewInt(144))
	require.NoError(t, err)

	out, err := p.Run(selectorPad(packed))
	require.NoError(t, err)

	values, err := lockedPkscriptOutputArgs.Unpack(out)
	require.NoError(t, err)
	lockedHex := values[0].(string)
	require.True(t, len(lockedHex) > 2 && lockedHex[:2] == "0x")

	lockedScript, err := decodeHexString(lockedHex)
	require.NoError(t, err)
	class := txscript.GetScriptClass(lockedScript)
	require.Equal(t, txscript.WitnessV1TaprootTy, class)
}

func TestLockedPkscriptRunIsDeterministic(t *testing.T) {
	p := &lockedPkscriptPrecompile{network: &chaincfg.MainNetParams}
	packed, err := lockedPkscriptInputArgs.Pack("0x76a914aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa88ac", big.NewInt(10))
	require.NoError(t, err)

	out1, err := p.Run(selectorPad(packed))
	require.NoError(t, err)
	out2, err := p.Run(selectorPad(packed))
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}
