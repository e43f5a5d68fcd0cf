// Package kvstore presents the module's storage as a set of named
// tables over a single Badger database, with atomic cross-table
// batches, ordered prefix iteration, and a composite-key reverse seek
// for "latest value at or before height" lookups. Grounded on the
// teacher's blockchain/badgerstore.go (badger.Open options, txn-scoped
// Get/Set, key-prefix table scheme) generalised from one fixed set of
// prefixes to an open table registry.
package kvstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Store owns the single underlying Badger database and hands out
// Table views over it.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database at path, disabling
// Badger's own logger as the teacher's NewBadgerBlockChain does, since
// this module routes all logging through internal/xlog.
func Open(path string, maxOpenFiles int) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if maxOpenFiles > 0 {
		opts = opts.WithMaxOpenFiles(maxOpenFiles)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a Badger database that never touches disk, used
// by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open in-memory: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Table returns a named view over the store. Keys written through a
// Table are namespaced under "<name>:" so distinct tables never
// collide even though they share one physical Badger keyspace.
func (s *Store) Table(name string) *Table {
	return &Table{db: s.db, prefix: []byte(name + ":")}
}

// Table is a single logical keyspace within a Store.
type Table struct {
	db     *badger.DB
	prefix []byte
}

func (t *Table) namespaced(key []byte) []byte {
	out := make([]byte, 0, len(t.prefix)+len(key))
	out = append(out, t.prefix...)
	out = append(out, key...)
	return out
}

func (t *Table) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.namespaced(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (t *Table) Put(key, value []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.namespaced(key), value)
	})
}

func (t *Table) Delete(key []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.namespaced(key))
	})
}

func (t *Table) Has(key []byte) (bool, error) {
	_, ok, err := t.Get(key)
	return ok, err
}

// KV is a single key/value pair, with key relative to the table (the
// table's namespace prefix already stripped).
type KV struct {
	Key   []byte
	Value []byte
}

// Iterator walks every key in the table with the given prefix, in
// ascending lexicographic order.
func (t *Table) Iterator(prefix []byte) ([]KV, error) {
	var out []KV
	fullPrefix := t.namespaced(prefix)
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			k := append([]byte(nil), item.KeyCopy(nil)[len(t.prefix):]...)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, KV{Key: k, Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompositeKey builds a prefix‖height_be8 key: the scheme
// LatestBeforeOrEqual reverse-seeks over.
func CompositeKey(prefix []byte, height uint64) []byte {
	out := make([]byte, len(prefix)+8)
	copy(out, prefix)
	binary.BigEndian.PutUint64(out[len(prefix):], height)
	return out
}

// LatestBeforeOrEqual reverse-seeks over keys of the form
// prefix‖height_be8 for the entry with the greatest height <= height,
// returning its value. ok is false if no such entry exists.
func (t *Table) LatestBeforeOrEqual(prefix []byte, height uint64) (value []byte, ok bool, err error) {
	seekKey := t.namespaced(CompositeKey(prefix, height))
	fullPrefix := t.namespaced(prefix)
	err = t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = fullPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Badger's reverse iterator Seek(k) lands on the first key
		// <= k; appending 0xff bytes after seekKey would require the
		// key space to avoid that suffix, so instead we seek to
		// seekKey and skip forward past keys in the non-reverse
		// sense: because seekKey is an exact-height sentinel, a
		// reverse seek starting at seekKey directly yields the
		// greatest key <= seekKey, which is what we want since actual
		// stored keys are exactly prefix‖height_be8 (no keys strictly
		// between consecutive heights share ordering ambiguity).
		it.Seek(seekKey)
		if !it.ValidForPrefix(fullPrefix) {
			return nil
		}
		item := it.Item()
		if bytes.Compare(item.Key(), seekKey) > 0 {
			// Badger doesn't support true upper-bound reverse seeks;
			// defensively skip ahead (further in reverse order, i.e.
			// to smaller keys) until we're at or below the sentinel.
			for it.ValidForPrefix(fullPrefix) && bytes.Compare(it.Item().Key(), seekKey) > 0 {
				it.Next()
			}
			if !it.ValidForPrefix(fullPrefix) {
				return nil
			}
			item = it.Item()
		}
		v, verr := item.ValueCopy(nil)
		if verr != nil {
			return verr
		}
		value = v
		ok = true
		return nil
	})
	return value, ok, err
}

// Batch groups writes across multiple tables into one atomic Badger
// transaction, the cross-table commit atomicity spec.md §4.2 requires.
type Batch struct {
	db  *badger.DB
	ops []func(txn *badger.Txn) error
}

func (s *Store) NewBatch() *Batch {
	return &Batch{db: s.db}
}

func (b *Batch) Put(t *Table, key, value []byte) {
	k := t.namespaced(key)
	v := append([]byte(nil), value...)
	b.ops = append(b.ops, func(txn *badger.Txn) error { return txn.Set(k, v) })
}

func (b *Batch) Delete(t *Table, key []byte) {
	k := t.namespaced(key)
	b.ops = append(b.ops, func(txn *badger.Txn) error { return txn.Delete(k) })
}

func (b *Batch) Commit() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if err := op(txn); err != nil {
				return err
			}
		}
		return nil
	})
}
