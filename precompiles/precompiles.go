// Package precompiles implements the module's five custom EVM
// precompiles (BRC20 balance lookup, BIP-322 signature verification,
// Bitcoin transaction/lock-script introspection) at the fixed
// addresses spec.md §4.5 assigns them, grounded on
// original_source/src/engine/precompiles/precompiles.rs's
// BRC20Precompiles provider and its PrecompileCall/use_gas/
// precompile_error helpers.
package precompiles

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/brc20-prog/brc20-programmable-module/balanceoracle"
	"github.com/brc20-prog/brc20-programmable-module/bitcoinrpc"
)

// Fixed addresses, one per custom precompile, chosen just below the
// 0x100 boundary reserved by go-ethereum's standard set.
var (
	AddressBRC20Balance    = common.HexToAddress("0xff")
	AddressBIP322Verify    = common.HexToAddress("0xfe")
	AddressBTCTxDetails    = common.HexToAddress("0xfd")
	AddressLastSatLocation = common.HexToAddress("0xfc")
	AddressLockedPkscript  = common.HexToAddress("0xfb")
)

// PrecompileError is returned by Run when the input cannot be ABI
// decoded; the caller has already been charged RequiredGas, and no
// further gas is consumed beyond that — mirroring
// precompiles.rs's precompile_error helper.
type PrecompileError struct {
	Precompile string
	Reason     string
}

func (e *PrecompileError) Error() string {
	return fmt.Sprintf("precompiles: %s: %s", e.Precompile, e.Reason)
}

func decodeError(precompile string, err error) error {
	return &PrecompileError{Precompile: precompile, Reason: err.Error()}
}

// Config bundles the external clients the height/chain-data-dependent
// precompiles need.
type Config struct {
	BitcoinRPC     bitcoinrpc.Client
	BalanceOracle  balanceoracle.Client
	Network        *chaincfg.Params
}

// Build returns the five custom precompiles keyed by their fixed
// addresses, ready to be passed as engine.New's extraPrecompiles.
func Build(cfg Config) map[common.Address]vm.PrecompiledContract {
	return map[common.Address]vm.PrecompiledContract{
		AddressBRC20Balance:    &brc20BalancePrecompile{oracle: cfg.BalanceOracle},
		AddressBIP322Verify:    &bip322VerifyPrecompile{network: cfg.Network},
		AddressBTCTxDetails:    &btcTxDetailsPrecompile{rpc: cfg.BitcoinRPC, network: cfg.Network},
		AddressLastSatLocation: &lastSatLocationPrecompile{rpc: cfg.BitcoinRPC},
		AddressLockedPkscript:  &lockedPkscriptPrecompile{network: cfg.Network},
	}
}
