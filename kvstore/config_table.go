package kvstore

import (
	"fmt"

	"github.com/brc20-prog/brc20-programmable-module/apperrors"
)

// ConfigTableName is the table spec.md §4.2 reserves for
// db_version/bitcoin_network/evm_record_traces comparison-on-open.
const ConfigTableName = "config"

// ConfigTable wraps the reserved config table: on an existing store it
// compares persisted values against the live configuration and refuses
// to proceed on mismatch; on a fresh store it initialises them.
type ConfigTable struct {
	table *Table
}

func (s *Store) ConfigTable() *ConfigTable {
	return &ConfigTable{table: s.Table(ConfigTableName)}
}

// Reconcile is grounded on original_source/src/config/database.rs's
// ConfigDatabase::validate: on a store with no persisted config, write
// the given values; on a store with persisted config, every key must
// match exactly or the store refuses to open.
func (c *ConfigTable) Reconcile(values map[string]string) error {
	existing, err := c.table.Iterator(nil)
	if err != nil {
		return fmt.Errorf("kvstore: reading config table: %w", err)
	}
	if len(existing) == 0 {
		for k, v := range values {
			if err := c.table.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("kvstore: initializing config key %s: %w", k, err)
			}
		}
		return nil
	}

	persisted := make(map[string]string, len(existing))
	for _, kv := range existing {
		persisted[string(kv.Key)] = string(kv.Value)
	}
	for k, want := range values {
		got, ok := persisted[k]
		if !ok {
			return apperrors.New(apperrors.KindConfigMismatch,
				fmt.Sprintf("config key %q missing in existing store", k))
		}
		if got != want {
			return apperrors.New(apperrors.KindConfigMismatch,
				fmt.Sprintf("config key %q mismatch: store has %q, configured %q", k, got, want))
		}
	}
	return nil
}
