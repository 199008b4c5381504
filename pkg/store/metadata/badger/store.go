package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

var (
	_ metadata.Store = (*BadgerMetadataStore)(nil)
	_ metadata.Tx    = (*badgerTx)(nil)
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - Serializable snapshot transactions: every Update is one badger txn
//   - Efficient range scans for children, subtrees and version history
//
// Thread Safety:
// BadgerDB uses optimistic concurrency control. Two Updates that read and
// write overlapping keys cannot both commit; the loser receives
// badger.ErrConflict, which this store reports as an ErrConflict StoreError.
// Callers decide whether to retry (finalize does, move and delete do not).
//
// Storage Model:
// See keys.go for the key namespace schema.
type BadgerMetadataStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB
// metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs badger without touching disk (tests only)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 256)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 128)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions allows full customization of BadgerDB behavior.
	// If nil, options are derived from the fields above.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// Parameters:
//   - ctx: Context for cancellation (checked before opening the database)
//   - config: Database path and cache sizing
//
// Returns:
//   - *BadgerMetadataStore: A store ready for use
//   - error: Error if the database cannot be opened
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, fmt.Errorf("badger metadata store: db_path is required")
			}
			opts = badger.DefaultOptions(config.DBPath)
		}

		// Metadata rows are small and mostly point lookups or short scans
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 256
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 128
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerMetadataStore{db: db}, nil
}

// View implements metadata.Store.
func (s *BadgerMetadataStore) View(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

// Update implements metadata.Store.
func (s *BadgerMetadataStore) Update(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := fn(&badgerTx{txn: txn}); err != nil {
			return err
		}
		// A cancelled request must not commit.
		return ctx.Err()
	})

	switch {
	case errors.Is(err, badger.ErrConflict):
		return metadata.NewTxnConflictError()
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("operation touches too many rows for one transaction: %w", err)
	}
	return err
}

// Healthcheck implements metadata.Store.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyNode("healthcheck"))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// Close implements metadata.Store.
func (s *BadgerMetadataStore) Close() error {
	return s.db.Close()
}

// badgerTx adapts a badger transaction to metadata.Tx.
type badgerTx struct {
	txn *badger.Txn
}

// getRow decodes the value at key into v. notFound is returned verbatim when
// the key is absent.
func (tx *badgerTx) getRow(key []byte, v any, notFound error) error {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return decode(val, v)
	})
}

func (tx *badgerTx) putRow(key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return tx.txn.Set(key, data)
}

// getString returns the raw value at key as a string.
func (tx *badgerTx) getString(key []byte, notFound error) (string, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", notFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// scanValues visits the values of every key with prefix, in key order.
func (tx *badgerTx) scanValues(prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// scanStrings collects the values under prefix as strings.
func (tx *badgerTx) scanStrings(prefix []byte) ([]string, error) {
	var out []string
	err := tx.scanValues(prefix, func(_, val []byte) error {
		out = append(out, string(val))
		return nil
	})
	return out, err
}
