package cache

import (
	"testing"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/kvstore"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	s, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVersionedTableSetGetWithinWindow(t *testing.T) {
	store := newTestStore(t)
	vt := NewVersionedTable(store.Table("accounts"))

	require.NoError(t, vt.Set([]byte("alice"), []byte("v1"), 1))
	vt.latest = 1
	v, ok, err := vt.Get([]byte("alice"), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, vt.Set([]byte("alice"), []byte("v2"), 2))
	vt.latest = 2
	v, ok, err = vt.Get([]byte("alice"), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v)

	// earlier height returns the pre-window old value
	v, ok, err = vt.Get([]byte("alice"), 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestVersionedTableUntouchedKeyFallsBackToUnderlying(t *testing.T) {
	store := newTestStore(t)
	underlying := store.Table("accounts")
	require.NoError(t, underlying.Put([]byte("bob"), []byte("committed")))

	vt := NewVersionedTable(underlying)
	v, ok, err := vt.Get([]byte("bob"), 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("committed"), v)
}

func TestVersionedStoreCommitWritesThrough(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	tbl := vs.Table("accounts")

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v1"), 1))
	vs.Touch(1)
	require.NoError(t, vs.Commit())

	v, ok, err := store.Table("accounts").Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestVersionedStoreRollbackRestoresCreatedAsAbsent(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	tbl := vs.Table("accounts")

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v1"), 1))
	vs.Touch(1)
	require.NoError(t, vs.Commit())

	require.NoError(t, tbl.Set([]byte("carol"), []byte("new"), 2))
	vs.Touch(2)

	require.NoError(t, vs.Rollback(1))

	_, ok, err := store.Table("accounts").Get([]byte("carol"))
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err := store.Table("accounts").Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestVersionedStoreRollbackRestoresChangedToOld(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	tbl := vs.Table("accounts")

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v1"), 1))
	vs.Touch(1)
	require.NoError(t, vs.Commit())

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v2"), 2))
	vs.Touch(2)

	require.NoError(t, vs.Rollback(1))

	v, ok, err := store.Table("accounts").Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

// TestVersionedStoreRollbackIsExactAfterRemutationPastCommit exercises
// spec.md's "rollback is exact" property on a key re-mutated at a
// height well past the commit it's rolled back to: Set(v1, h=1),
// Commit, Set(v2, h=5), Rollback(2). The pre-commit blockHeight must
// not leak past the commit that reset the entry's old/current pair,
// or the gate in rollback would wrongly treat the h=5 mutation as
// already covered by the h=1 window and skip restoring it.
func TestVersionedStoreRollbackIsExactAfterRemutationPastCommit(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	tbl := vs.Table("accounts")

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v1"), 1))
	vs.Touch(1)
	require.NoError(t, vs.Commit())

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v2"), 5))
	vs.Touch(5)

	require.NoError(t, vs.Rollback(2))

	v, ok, err := tbl.Get([]byte("alice"), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	v, ok, err = store.Table("accounts").Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestVersionedStoreRollbackTooDeepFails(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	vs.Touch(MaxHistorySize + 5)

	err := vs.Rollback(0)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.KindReorgTooDeep))
}

func TestVersionedStoreClearDropsOverlayWithoutWriting(t *testing.T) {
	store := newTestStore(t)
	vs := NewVersionedStore(store, "accounts")
	tbl := vs.Table("accounts")

	require.NoError(t, tbl.Set([]byte("alice"), []byte("v1"), 1))
	vs.Touch(1)
	vs.Clear()

	_, ok, err := store.Table("accounts").Get([]byte("alice"))
	require.NoError(t, err)
	require.False(t, ok)
}
