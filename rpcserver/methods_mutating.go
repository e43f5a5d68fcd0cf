package rpcserver

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/brc20-prog/brc20-programmable-module/engine"
	"github.com/brc20-prog/brc20-programmable-module/engineutil"
)

// brc20ControllerAddress aliases engine.BRC20ControllerAddress, which
// engine.Initialise asserts a real deploy actually lands on. The
// mutating methods that call it do not check that Initialise has run.
var brc20ControllerAddress = engine.BRC20ControllerAddress

func (h *Handler) brc20Mine(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 2)
	if perr != nil {
		return nil, perr
	}
	var count, startTimestamp uint64
	if perr := decodeHexParam(p[0], &count); perr != nil {
		return nil, perr
	}
	if perr := decodeHexParam(p[1], &startTimestamp); perr != nil {
		return nil, perr
	}
	blocks, err := h.engine.MineBlock(count, startTimestamp)
	if err != nil {
		return nil, rpcErrorFromEngine("brc20_mine failed", err)
	}
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		out[i] = newBlock(b)
	}
	return out, nil
}

func (h *Handler) brc20Deploy(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 4)
	if perr != nil {
		return nil, perr
	}
	var fromStr, dataStr, hashStr string
	var timestamp uint64
	if perr := decodeParam(p[0], &fromStr); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[1], &dataStr); perr != nil {
		return nil, perr
	}
	if perr := decodeHexParam(p[2], &timestamp); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[3], &hashStr); perr != nil {
		return nil, perr
	}

	from, err := ParseAddress(fromStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid from address", err.Error())
	}
	data, err := HexBytes(dataStr).ToBytes()
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid contract bytecode", err.Error())
	}
	blockHash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid block hash", err.Error())
	}

	receipt, aerr := h.engine.AddTxToBlock(timestamp, blockHash, engine.TxInput{From: from, Input: data})
	if aerr != nil {
		return nil, rpcErrorFromEngine("brc20_deploy failed", aerr)
	}
	return newReceipt(receipt, from, nil), nil
}

func (h *Handler) brc20Call(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 5)
	if perr != nil {
		return nil, perr
	}
	var fromStr, toStr, dataStr, hashStr string
	var timestamp uint64
	if perr := decodeParam(p[0], &fromStr); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[1], &toStr); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[2], &dataStr); perr != nil {
		return nil, perr
	}
	if perr := decodeHexParam(p[3], &timestamp); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[4], &hashStr); perr != nil {
		return nil, perr
	}

	from, err := ParseAddress(fromStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid from address", err.Error())
	}
	to, err := ParseAddress(toStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid to address", err.Error())
	}
	data, err := HexBytes(dataStr).ToBytes()
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid call data", err.Error())
	}
	blockHash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid block hash", err.Error())
	}

	receipt, aerr := h.engine.AddTxToBlock(timestamp, blockHash, engine.TxInput{From: from, To: &to, Input: data})
	if aerr != nil {
		return nil, rpcErrorFromEngine("brc20_call failed", aerr)
	}
	return newReceipt(receipt, from, &to), nil
}

type balanceOpParams struct {
	ticker, pkscriptHex string
	amount              *big.Int
	timestamp           uint64
	blockHash           common.Hash
}

func decodeBalanceOpParams(raw json.RawMessage) (balanceOpParams, *RPCError) {
	var out balanceOpParams
	p, perr := params(raw, 5)
	if perr != nil {
		return out, perr
	}
	var amountStr, hashStr string
	if perr := decodeParam(p[0], &out.ticker); perr != nil {
		return out, perr
	}
	if perr := decodeParam(p[1], &out.pkscriptHex); perr != nil {
		return out, perr
	}
	if perr := decodeParam(p[2], &amountStr); perr != nil {
		return out, perr
	}
	if perr := decodeHexParam(p[3], &out.timestamp); perr != nil {
		return out, perr
	}
	if perr := decodeParam(p[4], &hashStr); perr != nil {
		return out, perr
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return out, NewRPCError(InvalidParams, "invalid amount", amountStr)
	}
	out.amount = amount
	hash, err := ParseHash(hashStr)
	if err != nil {
		return out, NewRPCError(InvalidParams, "invalid block hash", err.Error())
	}
	out.blockHash = hash
	return out, nil
}

// balanceOpSelectors are the BRC20 controller's mint/burn entry points,
// mint(bytes,address,uint256)/burn(bytes,address,uint256), grounded on
// original_source/src/brc20_controller/brc20_controller.rs. The holder
// is addressed the same way the EVM addresses a pkscript everywhere
// else in this module: keccak256(pkscript)[12:32], via
// engineutil.GetEVMAddress.
var (
	balanceOpArgs = abi.Arguments{{Type: mustBytesType()}, {Type: mustAddressType()}, {Type: mustUint256Type()}}
	mintSelector  = crypto.Keccak256([]byte("mint(bytes,address,uint256)"))[:4]
	burnSelector  = crypto.Keccak256([]byte("burn(bytes,address,uint256)"))[:4]
)

func mustBytesType() abi.Type {
	t, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func mustAddressType() abi.Type {
	t, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func mustUint256Type() abi.Type {
	t, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func encodeBalanceOpCalldata(selector []byte, ticker []byte, holder common.Address, amount *big.Int) ([]byte, error) {
	packed, err := balanceOpArgs.Pack(ticker, holder, amount)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selector...), packed...), nil
}

// brc20Deposit credits ticker balance to pkscript by calling the BRC20
// controller's mint entry point, `from` fixed to the indexer address,
// spec.md §6.
func (h *Handler) brc20Deposit(raw json.RawMessage) (interface{}, *RPCError) {
	op, perr := decodeBalanceOpParams(raw)
	if perr != nil {
		return nil, perr
	}
	pkscript, err := HexBytes(op.pkscriptHex).ToBytes()
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid pkscript", err.Error())
	}
	holder := common.Address(engineutil.GetEVMAddress(pkscript))
	calldata, err := encodeBalanceOpCalldata(mintSelector, []byte(op.ticker), holder, op.amount)
	if err != nil {
		return nil, NewRPCError(InternalError, "failed to encode mint calldata", err.Error())
	}
	receipt, aerr := h.engine.AddTxToBlock(op.timestamp, op.blockHash,
		engine.TxInput{From: indexerAddress, To: &brc20ControllerAddress, Input: calldata})
	if aerr != nil {
		return nil, rpcErrorFromEngine("brc20_deposit failed", aerr)
	}
	return newReceipt(receipt, indexerAddress, &brc20ControllerAddress), nil
}

// brc20Withdraw debits ticker balance from pkscript, mirroring
// brc20Deposit via the controller's burn entry point.
func (h *Handler) brc20Withdraw(raw json.RawMessage) (interface{}, *RPCError) {
	op, perr := decodeBalanceOpParams(raw)
	if perr != nil {
		return nil, perr
	}
	pkscript, err := HexBytes(op.pkscriptHex).ToBytes()
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid pkscript", err.Error())
	}
	holder := common.Address(engineutil.GetEVMAddress(pkscript))
	calldata, err := encodeBalanceOpCalldata(burnSelector, []byte(op.ticker), holder, op.amount)
	if err != nil {
		return nil, NewRPCError(InternalError, "failed to encode burn calldata", err.Error())
	}
	receipt, aerr := h.engine.AddTxToBlock(op.timestamp, op.blockHash,
		engine.TxInput{From: indexerAddress, To: &brc20ControllerAddress, Input: calldata})
	if aerr != nil {
		return nil, rpcErrorFromEngine("brc20_withdraw failed", aerr)
	}
	return newReceipt(receipt, indexerAddress, &brc20ControllerAddress), nil
}

// brc20Initialise deploys the BRC20 controller as the engine's
// genesis transaction and asserts its CREATE address, failing loudly
// on mismatch; an indexer calls this once before its first block. See
// engine.Initialise.
func (h *Handler) brc20Initialise(raw json.RawMessage) (interface{}, *RPCError) {
	if err := h.engine.Initialise(); err != nil {
		return nil, rpcErrorFromEngine("brc20_initialise failed", err)
	}
	return true, nil
}

func (h *Handler) brc20FinaliseBlock(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 3)
	if perr != nil {
		return nil, perr
	}
	var hashStr string
	var timestamp, expectedTxCount uint64
	if perr := decodeHexParam(p[0], &timestamp); perr != nil {
		return nil, perr
	}
	if perr := decodeParam(p[1], &hashStr); perr != nil {
		return nil, perr
	}
	if perr := decodeHexParam(p[2], &expectedTxCount); perr != nil {
		return nil, perr
	}
	blockHash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid block hash", err.Error())
	}
	rec, aerr := h.engine.FinaliseBlock(timestamp, blockHash, int(expectedTxCount))
	if aerr != nil {
		return nil, rpcErrorFromEngine("brc20_finaliseBlock failed", aerr)
	}
	return newBlock(rec), nil
}

func (h *Handler) brc20Reorg(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var latestValidHeight uint64
	if perr := decodeHexParam(p[0], &latestValidHeight); perr != nil {
		return nil, perr
	}
	if err := h.engine.Reorg(latestValidHeight); err != nil {
		return nil, rpcErrorFromEngine("brc20_reorg failed", err)
	}
	return true, nil
}

func (h *Handler) brc20CommitToDatabase(raw json.RawMessage) (interface{}, *RPCError) {
	if err := h.engine.CommitToDatabase(); err != nil {
		return nil, rpcErrorFromEngine("brc20_commitToDatabase failed", err)
	}
	return true, nil
}

func (h *Handler) brc20ClearCaches(raw json.RawMessage) (interface{}, *RPCError) {
	if err := h.engine.ClearCaches(); err != nil {
		return nil, rpcErrorFromEngine("brc20_clearCaches failed", err)
	}
	return true, nil
}

// decodeHexParam accepts both a 0x-prefixed hex quantity and a plain
// JSON number, since indexers are observed sending counts either way.
func decodeHexParam(raw json.RawMessage, out *uint64) *RPCError {
	var asNumber uint64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		*out = asNumber
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return NewRPCError(InvalidParams, "invalid numeric parameter", err.Error())
	}
	n, err := HexNumber(asString).ToUint64()
	if err != nil {
		return NewRPCError(InvalidParams, "invalid numeric parameter", err.Error())
	}
	*out = n
	return nil
}
