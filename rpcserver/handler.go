package rpcserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/engine"
	"github.com/brc20-prog/brc20-programmable-module/internal/xlog"
)

// indexerAddress aliases engine.IndexerAddress so the mutating methods
// below don't carry a second copy of spec.md §6's fixed `from`.
var indexerAddress = engine.IndexerAddress

// clientVersion is reported by web3_clientVersion.
const clientVersion = "brc20-programmable-module/1.0.0"

// mutatingMethods is the set gated by HTTP basic auth when enabled,
// spec.md §6.
var mutatingMethods = map[string]bool{
	"brc20_mine":             true,
	"brc20_deploy":           true,
	"brc20_call":             true,
	"brc20_deposit":          true,
	"brc20_withdraw":         true,
	"brc20_initialise":       true,
	"brc20_finaliseBlock":    true,
	"brc20_reorg":            true,
	"brc20_commitToDatabase": true,
	"brc20_clearCaches":      true,
}

// Handler implements the module's JSON-RPC API directly against an
// *engine.Engine, in the teacher's Handler{service, logger}/ServeHTTP
// shape, but without an intermediate Service interface: this module
// has exactly one implementation of the engine, so the indirection the
// teacher introduced for pluggable consensus backends buys nothing
// here.
type Handler struct {
	engine  *engine.Engine
	logger  xlog.Logger
	authUser, authPass string
	authEnabled bool
}

// NewHandler constructs a Handler. authUser/authPass are ignored when
// authEnabled is false.
func NewHandler(e *engine.Engine, authEnabled bool, authUser, authPass string) *Handler {
	return &Handler{
		engine:      e,
		logger:      xlog.New("rpcserver"),
		authEnabled: authEnabled,
		authUser:    authUser,
		authPass:    authPass,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, nil, NewRPCError(MethodNotFound, "method not found", nil))
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, NewRPCError(ParseError, "parse error", err.Error()))
		return
	}

	if h.authEnabled && mutatingMethods[req.Method] {
		user, pass, ok := r.BasicAuth()
		if !ok || user != h.authUser || pass != h.authPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="brc20prog"`)
			h.writeError(w, req.ID, NewRPCError(InvalidRequest, "unauthorized", nil))
			return
		}
	}

	result, rpcErr := h.dispatch(&req)
	if rpcErr != nil {
		h.writeError(w, req.ID, rpcErr)
		return
	}

	resp := JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Errorf("failed to encode response: %v", err)
	}
}

// dispatch routes a decoded request to its method handler.
func (h *Handler) dispatch(req *JSONRPCRequest) (interface{}, *RPCError) {
	h.logger.Debugf("rpc call: %s", req.Method)

	switch req.Method {
	// Network identification
	case "eth_chainId":
		return NewHexNumber(engine.ChainID), nil
	case "net_version":
		return NewHexNumber(engine.ChainID).toDecimalString(), nil
	case "web3_clientVersion":
		return clientVersion, nil

	// Read methods
	case "eth_blockNumber":
		return NewHexNumber(h.engine.LatestHeight()), nil
	case "eth_getBlockByNumber":
		return h.getBlockByNumber(req.Params)
	case "eth_getBlockByHash":
		return h.getBlockByHash(req.Params)
	case "eth_getTransactionByHash":
		return h.getTransactionByHash(req.Params)
	case "eth_getTransactionReceipt":
		return h.getTransactionReceipt(req.Params)
	case "eth_getCode":
		return h.getCode(req.Params)
	case "eth_getLogs":
		return h.getLogs(req.Params)
	case "eth_call":
		return h.call(req.Params)
	case "eth_estimateGas":
		return h.estimateGas(req.Params)

	// Mutating methods
	case "brc20_mine":
		return h.brc20Mine(req.Params)
	case "brc20_deploy":
		return h.brc20Deploy(req.Params)
	case "brc20_call":
		return h.brc20Call(req.Params)
	case "brc20_deposit":
		return h.brc20Deposit(req.Params)
	case "brc20_withdraw":
		return h.brc20Withdraw(req.Params)
	case "brc20_initialise":
		return h.brc20Initialise(req.Params)
	case "brc20_finaliseBlock":
		return h.brc20FinaliseBlock(req.Params)
	case "brc20_reorg":
		return h.brc20Reorg(req.Params)
	case "brc20_commitToDatabase":
		return h.brc20CommitToDatabase(req.Params)
	case "brc20_clearCaches":
		return h.brc20ClearCaches(req.Params)

	default:
		return nil, NewRPCError(MethodNotFound, "method "+req.Method+" not found", nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	resp := JSONRPCResponse{JSONRPC: "2.0", Error: rpcErr, ID: id}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Errorf("failed to encode error response: %v", err)
	}
}

func (n HexNumber) toDecimalString() string {
	v, err := n.ToUint64()
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(v, 10)
}

// rpcErrorFromEngine maps the module's apperrors taxonomy onto stable
// JSON-RPC error codes, spec.md §7's propagation policy.
func rpcErrorFromEngine(context string, err error) *RPCError {
	if err == nil {
		return nil
	}
	switch {
	case apperrors.Is(err, apperrors.KindBadRequest):
		return NewRPCError(CodeBadRequest, context, err.Error())
	case apperrors.Is(err, apperrors.KindStateMachine):
		return NewRPCError(CodeStateMachine, context, err.Error())
	case apperrors.Is(err, apperrors.KindReorgTooDeep):
		return NewRPCError(CodeReorgTooDeep, context, err.Error())
	case apperrors.Is(err, apperrors.KindTransportExternal):
		return NewRPCError(CodeTransportExternal, context, err.Error())
	case apperrors.Is(err, apperrors.KindConfigMismatch):
		return NewRPCError(CodeConfigMismatch, context, err.Error())
	default:
		return NewRPCError(CodeInternalInvariant, context, err.Error())
	}
}
