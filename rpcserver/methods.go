package rpcserver

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/brc20-prog/brc20-programmable-module/engine"
)

// params unmarshals a JSON-RPC params array into count positional
// json.RawMessage slots. Missing trailing slots decode as "null".
func params(raw json.RawMessage, count int) ([]json.RawMessage, *RPCError) {
	if len(raw) == 0 {
		raw = []byte("[]")
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, NewRPCError(InvalidParams, "params must be a JSON array", err.Error())
	}
	for len(arr) < count {
		arr = append(arr, json.RawMessage("null"))
	}
	return arr, nil
}

func decodeParam(raw json.RawMessage, out interface{}) *RPCError {
	if err := json.Unmarshal(raw, out); err != nil {
		return NewRPCError(InvalidParams, "invalid parameter", err.Error())
	}
	return nil
}

// ---- read methods ----

func (h *Handler) getBlockByNumber(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var tag string
	if perr := decodeParam(p[0], &tag); perr != nil {
		return nil, perr
	}
	height, ok := resolveBlockTag(h.engine, tag)
	if !ok {
		return nil, nil
	}
	rec, ok := h.engine.GetBlockByNumber(height)
	if !ok {
		return nil, nil
	}
	return newBlock(rec), nil
}

func (h *Handler) getBlockByHash(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var hashStr string
	if perr := decodeParam(p[0], &hashStr); perr != nil {
		return nil, perr
	}
	hash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid block hash", err.Error())
	}
	rec, ok := h.engine.GetBlockByHash(hash)
	if !ok {
		return nil, nil
	}
	return newBlock(rec), nil
}

func (h *Handler) getTransactionByHash(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var hashStr string
	if perr := decodeParam(p[0], &hashStr); perr != nil {
		return nil, perr
	}
	hash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction hash", err.Error())
	}
	tx, ok := h.engine.GetTransactionByHash(hash)
	if !ok {
		return nil, nil
	}
	return newTransaction(tx), nil
}

func (h *Handler) getTransactionReceipt(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var hashStr string
	if perr := decodeParam(p[0], &hashStr); perr != nil {
		return nil, perr
	}
	hash, err := ParseHash(hashStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction hash", err.Error())
	}
	receipt, ok := h.engine.GetReceiptByTxHash(hash)
	if !ok {
		return nil, nil
	}
	tx, _ := h.engine.GetTransactionByHash(hash)
	var to *common.Address
	if tx.To != nil {
		c := tx.To.Common()
		to = &c
	}
	return newReceipt(receipt, tx.From.Common(), to), nil
}

func (h *Handler) getCode(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 2)
	if perr != nil {
		return nil, perr
	}
	var addrStr string
	if perr := decodeParam(p[0], &addrStr); perr != nil {
		return nil, perr
	}
	addr, err := ParseAddress(addrStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, "invalid address", err.Error())
	}
	return NewHexBytes(h.engine.GetCode(addr)), nil
}

type logFilter struct {
	FromBlock string   `json:"fromBlock"`
	ToBlock   string   `json:"toBlock"`
	Address   *string  `json:"address"`
	Topics    []string `json:"topics"`
}

func (h *Handler) getLogs(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var filter logFilter
	if perr := decodeParam(p[0], &filter); perr != nil {
		return nil, perr
	}

	from, ok := resolveBlockTag(h.engine, filter.FromBlock)
	if !ok {
		from = 0
	}
	to, ok := resolveBlockTag(h.engine, filter.ToBlock)
	if !ok {
		to = h.engine.LatestHeight()
	}

	var addr *common.Address
	if filter.Address != nil {
		a, err := ParseAddress(*filter.Address)
		if err != nil {
			return nil, NewRPCError(InvalidParams, "invalid log address filter", err.Error())
		}
		addr = &a
	}
	var topics []common.Hash
	for _, t := range filter.Topics {
		th, err := ParseHash(t)
		if err != nil {
			return nil, NewRPCError(InvalidParams, "invalid log topic filter", err.Error())
		}
		topics = append(topics, th)
	}

	recs := h.engine.GetLogs(from, to, addr, topics)
	out := make([]*Log, len(recs))
	for i, r := range recs {
		out[i] = newLog(r)
	}
	return out, nil
}

type callObject struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
}

func (c callObject) toTxInput() (engine.TxInput, *RPCError) {
	var in engine.TxInput
	if c.From != "" {
		addr, err := ParseAddress(c.From)
		if err != nil {
			return in, NewRPCError(InvalidParams, "invalid from address", err.Error())
		}
		in.From = addr
	}
	if c.To != "" {
		addr, err := ParseAddress(c.To)
		if err != nil {
			return in, NewRPCError(InvalidParams, "invalid to address", err.Error())
		}
		in.To = &addr
	}
	if c.Data != "" {
		data, err := HexBytes(c.Data).ToBytes()
		if err != nil {
			return in, NewRPCError(InvalidParams, "invalid call data", err.Error())
		}
		in.Input = data
	}
	return in, nil
}

func (h *Handler) call(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var obj callObject
	if perr := decodeParam(p[0], &obj); perr != nil {
		return nil, perr
	}
	tx, perr := obj.toTxInput()
	if perr != nil {
		return nil, perr
	}
	result, err := h.engine.CallContract(tx)
	if err != nil {
		return nil, rpcErrorFromEngine("eth_call failed", err)
	}
	if result.Err != nil {
		return nil, NewRPCError(CodeStateMachine, "execution reverted", result.Err.Error())
	}
	return NewHexBytes(result.ReturnData), nil
}

func (h *Handler) estimateGas(raw json.RawMessage) (interface{}, *RPCError) {
	p, perr := params(raw, 1)
	if perr != nil {
		return nil, perr
	}
	var obj callObject
	if perr := decodeParam(p[0], &obj); perr != nil {
		return nil, perr
	}
	tx, perr := obj.toTxInput()
	if perr != nil {
		return nil, perr
	}
	result, err := h.engine.CallContract(tx)
	if err != nil {
		return nil, rpcErrorFromEngine("eth_estimateGas failed", err)
	}
	if result.Err != nil {
		return nil, NewRPCError(CodeStateMachine, "execution reverted", result.Err.Error())
	}
	return NewHexNumber(result.UsedGas), nil
}

// resolveBlockTag supports a hex block number (the 0x prefix is
// optional, so a bare number is read as hex) or the "latest", "earliest" and
// "pending" tags: there is no pending pool, so "pending" resolves to
// the latest height, and "earliest" resolves to height 0.
func resolveBlockTag(e *engine.Engine, tag string) (uint64, bool) {
	switch tag {
	case "", "latest":
		return e.LatestHeight(), true
	case "earliest":
		return 0, true
	case "pending":
		return e.LatestHeight(), true
	default:
		n, err := HexNumber(tag).ToUint64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
}
