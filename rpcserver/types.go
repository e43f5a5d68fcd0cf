// Package rpcserver is the module's JSON-RPC 2.0 HTTP surface: the ten
// mutating brc20_* block-lifecycle methods plus a read-only subset of
// Ethereum JSON-RPC, grounded on the teacher's rpc/handler.go (method
// dispatch switch), rpc/server.go (http.Server Start/Stop wrapper) and
// rpc/types.go (hex-string wire types), generalised from the teacher's
// hotstuff.Hash/txpool.Address wire types to this module's encoding
// package and go-ethereum's common.Hash/common.Address.
package rpcserver

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope; exactly one of
// Result/Error is populated.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object, with Data carrying the
// underlying error's message (for apperrors failures, prefixed with
// the error's Kind) when there is one.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Standard JSON-RPC 2.0 codes, plus the module's own BadRequest/
// StateMachine/ReorgTooDeep/InternalInvariant codes from spec.md §7,
// carved out of the unreserved server-error range.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	CodeBadRequest         = -32000
	CodeStateMachine       = -32001
	CodeReorgTooDeep       = -32002
	CodeInternalInvariant  = -32003
	CodeTransportExternal  = -32004
	CodeConfigMismatch     = -32005
)

func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// HexNumber is a hex-encoded (0x-prefixed) quantity, Ethereum
// JSON-RPC's "quantity" encoding.
type HexNumber string

func NewHexNumber(n uint64) HexNumber {
	return HexNumber("0x" + strconv.FormatUint(n, 16))
}

func NewHexNumberFromBig(n *big.Int) HexNumber {
	if n == nil {
		return "0x0"
	}
	return HexNumber("0x" + n.Text(16))
}

func (h HexNumber) ToUint64() (uint64, error) {
	s := strings.TrimPrefix(string(h), "0x")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

// HexBytes is a hex-encoded (0x-prefixed) byte string.
type HexBytes string

func NewHexBytes(data []byte) HexBytes {
	if len(data) == 0 {
		return "0x"
	}
	return HexBytes("0x" + hex.EncodeToString(data))
}

func (h HexBytes) ToBytes() ([]byte, error) {
	s := strings.TrimPrefix(string(h), "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// ParseAddress parses a 0x-prefixed 20-byte address string.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 40 {
		return common.Address{}, fmt.Errorf("invalid address length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

// ParseHash parses a 0x-prefixed 32-byte hash string.
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return common.Hash{}, fmt.Errorf("invalid hash length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}
