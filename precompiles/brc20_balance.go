package precompiles

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/brc20-prog/brc20-programmable-module/balanceoracle"
)

// gasBRC20Balance is the fixed cost of a balanceOf call, matching
// original_source/src/engine/precompiles/brc20_balance_precompile.rs's
// GAS constant.
const gasBRC20Balance uint64 = 100_000

var brc20BalanceArgs = mustArguments("bytes", "bytes")
var uint256Args = mustArguments("uint256")

// brc20BalancePrecompile implements balanceOf(bytes ticker, bytes
// pkscript) returns (uint256), delegating to the external balance
// oracle since ledger balances live outside EVM state entirely.
type brc20BalancePrecompile struct {
	oracle balanceoracle.Client
}

func (p *brc20BalancePrecompile) RequiredGas(_ []byte) uint64 {
	return gasBRC20Balance
}

func (p *brc20BalancePrecompile) Run(input []byte) ([]byte, error) {
	values, err := decodeArgs("brc20_balance", input, brc20BalanceArgs)
	if err != nil {
		return nil, err
	}
	ticker := values[0].([]byte)
	pkscript := values[1].([]byte)

	balance, err := p.oracle.BalanceOf(ticker, pkscript)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = new(big.Int)
	}
	return uint256Args.Pack(balance)
}

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

// decodeArgs strips the 4-byte Solidity method selector a facade
// interface contract's external call always prepends, then ABI-decodes
// the remainder, mapping failure to a PrecompileError per
// precompiles.rs's precompile_error convention.
func decodeArgs(name string, input []byte, args abi.Arguments) ([]interface{}, error) {
	if len(input) < 4 {
		return nil, decodeError(name, errTooShort)
	}
	values, err := args.Unpack(input[4:])
	if err != nil {
		return nil, decodeError(name, err)
	}
	return values, nil
}
