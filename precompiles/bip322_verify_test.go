package precompiles

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestBIP322VerifyReturnsFalseRatherThanErrorOnGarbageSignature(t *testing.T) {
	p := &bip322VerifyPrecompile{network: &chaincfg.SigNetParams}
	require.Equal(t, gasBIP322Verify, p.RequiredGas(nil))

	packed, err := bip322VerifyArgs.Pack(
		"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
		"Hello World",
		"bm90LWEtcmVhbC1zaWduYXR1cmU=",
	)
	require.NoError(t, err)

	out, err := p.Run(selectorPad(packed))
	require.NoError(t, err)

	values, err := boolArgs.Unpack(out)
	require.NoError(t, err)
	require.False(t, values[0].(bool))
}

func TestBIP322VerifyRejectsMalformedInput(t *testing.T) {
	p := &bip322VerifyPrecompile{network: &chaincfg.SigNetParams}
	_, err := p.Run([]byte{0x01})
	require.Error(t, err)
}
