package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/cache"
	"github.com/brc20-prog/brc20-programmable-module/internal/xlog"
	"github.com/brc20-prog/brc20-programmable-module/kvstore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	versioned := cache.NewVersionedStore(store, "accounts", "code", "storage")
	return New(store, versioned, nil, xlog.New("engine-test"))
}

func TestMineBlockAdvancesHeightWithZeroHash(t *testing.T) {
	e := newTestEngine(t)
	recs, err := e.MineBlock(3, 1000)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, uint64(3), e.LatestHeight())

	require.Equal(t, uint64(1000), uint64(recs[0].Timestamp))
	require.Equal(t, uint64(1001), uint64(recs[1].Timestamp))
	require.Equal(t, uint64(1002), uint64(recs[2].Timestamp))

	require.Equal(t, recs[0].Hash, recs[1].ParentHash)
	require.Equal(t, recs[1].Hash, recs[2].ParentHash)
	require.Equal(t, common.Hash{}, recs[0].Hash.Hash())
}

func TestFinaliseBlockRejectsMismatchedParams(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0x01")
	_, err := e.AddTxToBlock(100, blockHash, TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)

	_, err = e.FinaliseBlock(999, blockHash, 1)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindStateMachine))
}

func TestFinaliseBlockRejectsWrongTxCount(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0x01")
	_, err := e.AddTxToBlock(100, blockHash, TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)

	_, err = e.FinaliseBlock(100, blockHash, 2)
	require.Error(t, err)
}

func TestFinaliseBlockSucceedsAndClosesEngine(t *testing.T) {
	e := newTestEngine(t)
	blockHash := common.HexToHash("0x01")
	_, err := e.AddTxToBlock(100, blockHash, TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)

	rec, err := e.FinaliseBlock(100, blockHash, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), uint64(rec.Number))
	require.Equal(t, Closed, e.Phase())
}

func TestReorgTooDeepFails(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.MineBlock(MaxHistoryPlusOneForTest(), 1000)
	require.NoError(t, err)

	err = e.Reorg(0)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindReorgTooDeep))
}

// MaxHistoryPlusOneForTest exposes cache.MaxHistorySize+1 without this
// test file importing the cache package twice under different names.
func MaxHistoryPlusOneForTest() uint64 {
	return uint64(cache.MaxHistorySize + 1)
}

func TestReorgWithinWindowResetsHeight(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.MineBlock(3, 1000)
	require.NoError(t, err)

	require.NoError(t, e.Reorg(1))
	require.Equal(t, uint64(1), e.LatestHeight())
	require.Equal(t, Closed, e.Phase())
}

func TestCommitRejectedWhileOpen(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddTxToBlock(100, common.HexToHash("0x01"), TxInput{From: common.HexToAddress("0x01")})
	require.NoError(t, err)

	err = e.CommitToDatabase()
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindStateMachine))
}
