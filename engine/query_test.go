package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
)

func TestGetBlockByHashFindsFinalisedBlock(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0xaa")
	_, err := e.AddTxToBlock(100, blockHash, TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)
	rec, err := e.FinaliseBlock(100, blockHash, 1)
	require.NoError(t, err)

	got, ok := e.GetBlockByHash(blockHash)
	require.True(t, ok)
	require.Equal(t, rec.Number, got.Number)

	_, ok = e.GetBlockByHash(common.HexToHash("0xbb"))
	require.False(t, ok)
}

func TestGetBlockByHashIndexRemovedOnReorg(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0xcc")
	_, err := e.AddTxToBlock(100, blockHash, TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)
	_, err = e.FinaliseBlock(100, blockHash, 1)
	require.NoError(t, err)

	require.NoError(t, e.Reorg(0))
	_, ok := e.GetBlockByHash(blockHash)
	require.False(t, ok)
}

func TestGetLogsFiltersByAddress(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0xdd")
	from := common.HexToAddress("0x01")
	receipt, err := e.AddTxToBlock(100, blockHash, TxInput{From: from})
	require.NoError(t, err)
	_, err = e.FinaliseBlock(100, blockHash, 1)
	require.NoError(t, err)
	_ = receipt

	logs := e.GetLogs(1, 1, nil, nil)
	require.Empty(t, logs)

	other := common.HexToAddress("0x02")
	logs = e.GetLogs(1, 1, &other, nil)
	require.Empty(t, logs)
}

func TestInitialiseIsOneShot(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialise())
	err := e.Initialise()
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindStateMachine))
}

func TestInitialiseDeploysControllerAtExpectedAddress(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialise())

	require.Equal(t, uint64(1), e.LatestHeight())
	require.Equal(t, uint64(1), e.GetTransactionCount(IndexerAddress))

	rec, ok := e.GetBlockByNumber(1)
	require.True(t, ok)
	require.Len(t, rec.TxHashes, 1)

	receipt, ok := e.GetReceiptByTxHash(rec.TxHashes[0].Hash())
	require.True(t, ok)
	require.NotNil(t, receipt.ContractAddress)
	require.Equal(t, BRC20ControllerAddress, receipt.ContractAddress.Common())
}
