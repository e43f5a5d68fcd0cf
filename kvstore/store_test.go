package kvstore

import (
	"testing"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTableGetPutDelete(t *testing.T) {
	s := openTestStore(t)
	tbl := s.Table("accounts")

	_, ok, err := tbl.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tbl.Put([]byte("k1"), []byte("v1")))
	v, ok, err := tbl.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, tbl.Delete([]byte("k1")))
	_, ok, err = tbl.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTableNamespacingIsolatesTables(t *testing.T) {
	s := openTestStore(t)
	a := s.Table("a")
	b := s.Table("b")

	require.NoError(t, a.Put([]byte("x"), []byte("from-a")))
	_, ok, err := b.Get([]byte("x"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIteratorOrdering(t *testing.T) {
	s := openTestStore(t)
	tbl := s.Table("blocks")
	for _, h := range []uint64{3, 1, 2} {
		require.NoError(t, tbl.Put(CompositeKey([]byte("b"), h), []byte{byte(h)}))
	}
	kvs, err := tbl.Iterator([]byte("b"))
	require.NoError(t, err)
	require.Len(t, kvs, 3)
	require.Equal(t, byte(1), kvs[0].Value[0])
	require.Equal(t, byte(2), kvs[1].Value[0])
	require.Equal(t, byte(3), kvs[2].Value[0])
}

func TestLatestBeforeOrEqual(t *testing.T) {
	s := openTestStore(t)
	tbl := s.Table("blocks")
	for _, h := range []uint64{1, 5, 10} {
		require.NoError(t, tbl.Put(CompositeKey([]byte("b"), h), []byte{byte(h)}))
	}

	v, ok, err := tbl.LatestBeforeOrEqual([]byte("b"), 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(5), v[0])

	v, ok, err = tbl.LatestBeforeOrEqual([]byte("b"), 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(10), v[0])

	_, ok, err = tbl.LatestBeforeOrEqual([]byte("b"), 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchCommitsAtomicallyAcrossTables(t *testing.T) {
	s := openTestStore(t)
	a := s.Table("a")
	b := s.Table("b")

	batch := s.NewBatch()
	batch.Put(a, []byte("k"), []byte("va"))
	batch.Put(b, []byte("k"), []byte("vb"))
	require.NoError(t, batch.Commit())

	va, ok, err := a.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("va"), va)

	vb, ok, err := b.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("vb"), vb)
}

func TestConfigTableInitializesOnFreshStore(t *testing.T) {
	s := openTestStore(t)
	cfg := s.ConfigTable()
	values := map[string]string{"db_version": "1", "bitcoin_network": "signet"}
	require.NoError(t, cfg.Reconcile(values))

	v, ok, err := s.Table(ConfigTableName).Get([]byte("db_version"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestConfigTableRejectsMismatchOnExistingStore(t *testing.T) {
	s := openTestStore(t)
	cfg := s.ConfigTable()
	require.NoError(t, cfg.Reconcile(map[string]string{"db_version": "1", "bitcoin_network": "signet"}))

	err := cfg.Reconcile(map[string]string{"db_version": "1", "bitcoin_network": "mainnet"})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindConfigMismatch))
}

func TestConfigTableAcceptsMatchingReopen(t *testing.T) {
	s := openTestStore(t)
	cfg := s.ConfigTable()
	values := map[string]string{"db_version": "1", "bitcoin_network": "signet"}
	require.NoError(t, cfg.Reconcile(values))
	require.NoError(t, cfg.Reconcile(values))
}
