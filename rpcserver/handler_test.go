package rpcserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/cache"
	"github.com/brc20-prog/brc20-programmable-module/engine"
	"github.com/brc20-prog/brc20-programmable-module/internal/xlog"
	"github.com/brc20-prog/brc20-programmable-module/kvstore"
)

func newTestHandler(t *testing.T, authEnabled bool) *Handler {
	t.Helper()
	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	versioned := cache.NewVersionedStore(store, "accounts", "code", "storage")
	e := engine.New(store, versioned, nil, xlog.New("rpcserver-test"))
	return NewHandler(e, authEnabled, "user", "pass")
}

func doRPC(t *testing.T, h *Handler, req JSONRPCRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestServeHTTPHandlesOptionsPreflight(t *testing.T) {
	h := newTestHandler(t, false)
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeHTTPRejectsNonPostNonOptions(t *testing.T) {
	h := newTestHandler(t, false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestServeHTTPRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(t, false)
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, ParseError, resp.Error.Code)
}

func TestServeHTTPDispatchesUnknownMethod(t *testing.T) {
	h := newTestHandler(t, false)
	w := doRPC(t, h, JSONRPCRequest{JSONRPC: "2.0", Method: "brc20_bogus", ID: 1})

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestServeHTTPGatesMutatingMethodsWithBasicAuth(t *testing.T) {
	h := newTestHandler(t, true)
	body, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", Method: "brc20_commitToDatabase", ID: 1})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestServeHTTPAllowsMutatingMethodsWithValidBasicAuth(t *testing.T) {
	h := newTestHandler(t, true)
	body, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", Method: "brc20_commitToDatabase", ID: 1})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	r.SetBasicAuth("user", "pass")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.Equal(t, true, resp.Result)
}

func TestServeHTTPDoesNotGateReadMethodsWhenAuthEnabled(t *testing.T) {
	h := newTestHandler(t, true)
	w := doRPC(t, h, JSONRPCRequest{JSONRPC: "2.0", Method: "eth_chainId", ID: 1})

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
}

func TestRPCErrorFromEngineMapsKindsToCodes(t *testing.T) {
	require.Nil(t, rpcErrorFromEngine("ctx", nil))
	require.Equal(t, CodeBadRequest, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindBadRequest, "x")).Code)
	require.Equal(t, CodeStateMachine, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindStateMachine, "x")).Code)
	require.Equal(t, CodeReorgTooDeep, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindReorgTooDeep, "x")).Code)
	require.Equal(t, CodeTransportExternal, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindTransportExternal, "x")).Code)
	require.Equal(t, CodeConfigMismatch, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindConfigMismatch, "x")).Code)
	require.Equal(t, CodeInternalInvariant, rpcErrorFromEngine("ctx", apperrors.New(apperrors.KindInternalInvariant, "x")).Code)
}
