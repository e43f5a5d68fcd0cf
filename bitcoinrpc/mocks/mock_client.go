// Package mocks provides a hand-maintained gomock-shaped fake for
// bitcoinrpc.Client, in the layout go.uber.org/mock/mockgen produces.
package mocks

import (
	reflect "reflect"

	btcjson "github.com/btcsuite/btcd/btcjson"
	chainhash "github.com/btcsuite/btcd/chaincfg/chainhash"
	gomock "go.uber.org/mock/gomock"
)

// MockClient is a mock of the bitcoinrpc.Client interface.
type MockClient struct {
	ctrl     *gomock.Controller
	recorder *MockClientMockRecorder
}

// MockClientMockRecorder is the mock recorder for MockClient.
type MockClientMockRecorder struct {
	mock *MockClient
}

// NewMockClient creates a new mock instance.
func NewMockClient(ctrl *gomock.Controller) *MockClient {
	mock := &MockClient{ctrl: ctrl}
	mock.recorder = &MockClientMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockClient) EXPECT() *MockClientMockRecorder {
	return m.recorder
}

// GetBlockChainInfo mocks base method.
func (m *MockClient) GetBlockChainInfo() (*btcjson.GetBlockChainInfoResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBlockChainInfo")
	ret0, _ := ret[0].(*btcjson.GetBlockChainInfoResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBlockChainInfo indicates an expected call of GetBlockChainInfo.
func (mr *MockClientMockRecorder) GetBlockChainInfo() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBlockChainInfo", reflect.TypeOf((*MockClient)(nil).GetBlockChainInfo))
}

// GetRawTransactionVerbose mocks base method.
func (m *MockClient) GetRawTransactionVerbose(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetRawTransactionVerbose", txid)
	ret0, _ := ret[0].(*btcjson.TxRawResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetRawTransactionVerbose indicates an expected call of GetRawTransactionVerbose.
func (mr *MockClientMockRecorder) GetRawTransactionVerbose(txid interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetRawTransactionVerbose", reflect.TypeOf((*MockClient)(nil).GetRawTransactionVerbose), txid)
}

// GetBlockVerbose mocks base method.
func (m *MockClient) GetBlockVerbose(hash *chainhash.Hash) (*btcjson.GetBlockVerboseResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBlockVerbose", hash)
	ret0, _ := ret[0].(*btcjson.GetBlockVerboseResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBlockVerbose indicates an expected call of GetBlockVerbose.
func (mr *MockClientMockRecorder) GetBlockVerbose(hash interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBlockVerbose", reflect.TypeOf((*MockClient)(nil).GetBlockVerbose), hash)
}
