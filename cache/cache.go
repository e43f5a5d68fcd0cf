// Package cache implements the module's versioned block cache: a
// bounded in-memory undo-log layered over a kvstore.Table, supporting
// commit, rollback to an earlier block height, and historical read.
// Grounded on original_source/db/src/types/cache.rs's CacheVal/
// CacheState (a single old/current/state triple per key, tagged with
// the block height of first mutation), generalised here from one typed
// value to arbitrary []byte table entries.
package cache

import (
	"bytes"
	"fmt"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
	"github.com/brc20-prog/brc20-programmable-module/kvstore"
)

// MaxHistorySize bounds how many block heights back a rollback can
// reach; spec.md §4.3.
const MaxHistorySize = 10

// State is the lifecycle of a single cached entry.
type State int

const (
	NotChanged State = iota
	Changed
	Created
)

func (s State) String() string {
	switch s {
	case NotChanged:
		return "NotChanged"
	case Changed:
		return "Changed"
	case Created:
		return "Created"
	default:
		return "Unknown"
	}
}

// entry is the in-memory record for one key: its value before any
// uncommitted mutation (old), its value now (current), the state, and
// the block height at which it was first touched in this window.
type entry struct {
	old         []byte
	oldPresent  bool
	current     []byte
	state       State
	blockHeight uint64
}

func (e *entry) isChanged() bool {
	if e.oldPresent != (e.current != nil) {
		return true
	}
	return !bytes.Equal(e.old, e.current)
}

// VersionedTable is one logical table's undo-log, backed by an
// underlying kvstore.Table that holds the last-committed value.
type VersionedTable struct {
	underlying *kvstore.Table
	entries    map[string]*entry
	latest     uint64
}

func NewVersionedTable(underlying *kvstore.Table) *VersionedTable {
	return &VersionedTable{underlying: underlying, entries: make(map[string]*entry)}
}

// Set records value as the new content of key at blockHeight, loading
// the prior committed value into the entry's "old" slot the first time
// a key is touched in the current window, per spec.md §4.3.
func (t *VersionedTable) Set(key, value []byte, blockHeight uint64) error {
	if blockHeight > t.latest {
		t.latest = blockHeight
	}
	k := string(key)
	e, ok := t.entries[k]
	if !ok {
		committed, present, err := t.underlying.Get(key)
		if err != nil {
			return fmt.Errorf("cache: loading committed value for set: %w", err)
		}
		e = &entry{old: committed, oldPresent: present, state: NotChanged, blockHeight: blockHeight}
		t.entries[k] = e
	}
	e.blockHeight = blockHeight
	e.current = append([]byte(nil), value...)
	if !e.oldPresent {
		e.state = Created
	} else if e.state == NotChanged {
		e.state = Changed
	}
	return nil
}

// Get returns the value of key as of blockHeight (which must be <=
// the cache's latest known height): the live current value when
// blockHeight is the latest height, the entry's pre-window old value
// for earlier heights, or the underlying committed value when the key
// has no entry in the current window at all.
func (t *VersionedTable) Get(key []byte, blockHeight uint64) ([]byte, bool, error) {
	e, ok := t.entries[string(key)]
	if !ok {
		return t.underlying.Get(key)
	}
	if blockHeight >= t.latest {
		return e.current, e.current != nil, nil
	}
	return e.old, e.oldPresent, nil
}

// commitInto queues every changed entry's write-through to the
// underlying table on batch.
func (t *VersionedTable) commitInto(batch *kvstore.Batch) {
	for k, e := range t.entries {
		if !e.isChanged() {
			continue
		}
		if e.current == nil {
			batch.Delete(t.underlying, []byte(k))
		} else {
			batch.Put(t.underlying, []byte(k), e.current)
		}
	}
}

// afterCommit drops every entry last touched more than MaxHistorySize
// heights before the latest one, and resets each remaining entry's old
// value to its current value, so that it still participates in future
// rollbacks within the history window even though it has now been
// flushed to disk.
func (t *VersionedTable) afterCommit() {
	for k, e := range t.entries {
		if e.blockHeight+MaxHistorySize < t.latest {
			delete(t.entries, k)
			continue
		}
		e.old = e.current
		e.oldPresent = e.current != nil
		e.state = NotChanged
	}
}

// rollback restores every entry touched at a height > target to its
// pre-window old value (or removes it, if it was Created), and writes
// the restoration through to the underlying table immediately, since a
// prior commit may already have flushed the now-undone value to disk.
func (t *VersionedTable) rollback(target uint64, batch *kvstore.Batch) {
	for k, e := range t.entries {
		if e.blockHeight <= target {
			continue
		}
		if e.state == Created {
			batch.Delete(t.underlying, []byte(k))
		} else if e.oldPresent {
			batch.Put(t.underlying, []byte(k), e.old)
		} else {
			batch.Delete(t.underlying, []byte(k))
		}
		delete(t.entries, k)
	}
}

func (t *VersionedTable) clear() {
	t.entries = make(map[string]*entry)
}

// VersionedStore aggregates one VersionedTable per table name passed to
// NewVersionedStore and fans Commit/Rollback/Clear out across all of
// them, writing Commit's and Rollback's changes through in one
// kvstore.Batch so neither can partially apply across those tables.
type VersionedStore struct {
	store  *kvstore.Store
	tables map[string]*VersionedTable
	latest uint64
}

func NewVersionedStore(store *kvstore.Store, tableNames ...string) *VersionedStore {
	vs := &VersionedStore{store: store, tables: make(map[string]*VersionedTable, len(tableNames))}
	for _, name := range tableNames {
		vs.tables[name] = NewVersionedTable(store.Table(name))
	}
	return vs
}

func (vs *VersionedStore) Table(name string) *VersionedTable {
	return vs.tables[name]
}

// Touch advances the store's notion of the latest block height without
// requiring a Set on every table, e.g. when finalising an empty block.
func (vs *VersionedStore) Touch(height uint64) {
	if height > vs.latest {
		vs.latest = height
	}
	for _, t := range vs.tables {
		if height > t.latest {
			t.latest = height
		}
	}
}

func (vs *VersionedStore) LatestHeight() uint64 { return vs.latest }

// Commit flushes every table's changed entries to the underlying store
// in one atomic batch and truncates the undo-log to MaxHistorySize.
func (vs *VersionedStore) Commit() error {
	batch := vs.store.NewBatch()
	for _, t := range vs.tables {
		t.commitInto(batch)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	for _, t := range vs.tables {
		t.afterCommit()
	}
	return nil
}

// Rollback reverts every table to its state as of targetHeight,
// refusing if the reorg depth exceeds MaxHistorySize.
func (vs *VersionedStore) Rollback(targetHeight uint64) error {
	if targetHeight > vs.latest {
		return apperrors.New(apperrors.KindBadRequest, "rollback target is newer than latest height")
	}
	if vs.latest-targetHeight > MaxHistorySize {
		return apperrors.New(apperrors.KindReorgTooDeep,
			fmt.Sprintf("rollback target %d is more than %d blocks behind latest %d", targetHeight, MaxHistorySize, vs.latest))
	}
	batch := vs.store.NewBatch()
	for _, t := range vs.tables {
		t.rollback(targetHeight, batch)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("cache: rollback: %w", err)
	}
	vs.latest = targetHeight
	for _, t := range vs.tables {
		t.latest = targetHeight
	}
	return nil
}

// Clear discards the in-memory overlay of every table without writing
// through.
func (vs *VersionedStore) Clear() {
	for _, t := range vs.tables {
		t.clear()
	}
}
