// Package engineutil holds small, widely-shared helpers the execution
// engine and precompiles both need: gas-limit policy and the
// pkscript-to-EVM-address derivation. Grounded on spec.md §4.7 and
// original_source/src/evm/utils.rs.
package engineutil

import (
	"golang.org/x/crypto/sha3"
)

// minGasLimit is the floor GetGasLimit never goes below, regardless of
// how small the inscription payload is.
const minGasLimit = 384_000

// gasPerInputByte is the per-byte gas allotment used to scale the
// block/transaction gas limit with inscription size.
const gasPerInputByte = 12_000

// GetGasLimit implements spec.md §4.7's gas policy:
// GetGasLimit(n) = max(n*12000, 384000).
func GetGasLimit(inputLen int) uint64 {
	scaled := uint64(inputLen) * gasPerInputByte
	if scaled < minGasLimit {
		return minGasLimit
	}
	return scaled
}

// GetEVMAddress derives the deterministic EVM address for a Bitcoin
// output script: keccak256(pkscript)[12:32].
func GetEVMAddress(pkscript []byte) [20]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(pkscript)
	sum := h.Sum(nil)
	var addr [20]byte
	copy(addr[:], sum[12:32])
	return addr
}
