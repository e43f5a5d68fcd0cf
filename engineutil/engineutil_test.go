package engineutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetGasLimit(t *testing.T) {
	require.Equal(t, uint64(384_000), GetGasLimit(0))
	require.Equal(t, uint64(384_000), GetGasLimit(10))
	require.Equal(t, uint64(1_200_000), GetGasLimit(100))
}

func TestGetEVMAddressDeterministic(t *testing.T) {
	a1 := GetEVMAddress([]byte("pkscript-a"))
	a2 := GetEVMAddress([]byte("pkscript-a"))
	a3 := GetEVMAddress([]byte("pkscript-b"))
	require.Equal(t, a1, a2)
	require.NotEqual(t, a1, a3)
}
