// Package badgerstore provides a BadgerDB-backed checkpoint.Store for runs
// that must survive a process restart.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/agentpipe/checkpoint"
	"github.com/hupe1980/agentpipe/core"
)

// Options configures the store.
type Options struct {
	// Dir is the on-disk location of the database. Ignored when InMemory
	// is set.
	Dir string
	// InMemory keeps all data in memory; useful for tests.
	InMemory bool
	// Logger is passed to Badger; nil silences the database's own logging.
	Logger badger.Logger
}

// Store persists checkpoints in BadgerDB under keys
// runs/<runID>/<sequence>, with the sequence encoded big-endian so
// lexicographic key order matches checkpoint order.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the database and returns the store.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var dbOpts badger.Options
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbOpts = badger.DefaultOptions(opts.Dir)
	}
	dbOpts = dbOpts.WithLogger(opts.Logger)

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing BadgerDB database.
func NewFromDB(db *badger.DB) *Store {
	return &Store{db: db}
}

func key(runID string, seq int) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, uint64(seq))
	return append([]byte("runs/"+runID+"/"), seqBytes...)
}

func prefix(runID string) []byte {
	return []byte("runs/" + runID + "/")
}

// Save implements checkpoint.Store.
func (s *Store) Save(ctx context.Context, runID string, state *core.WorkflowState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(runID, state.Checkpoint), data)
	})
}

// Load implements checkpoint.Store: the highest sequence number wins.
func (s *Store) Load(ctx context.Context, runID string) (*core.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state *core.WorkflowState
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(runID)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the end of the prefix range; the first valid item in
		// reverse order is the latest checkpoint.
		seek := append(prefix(runID), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		it.Seek(seek)
		if !it.Valid() {
			return checkpoint.ErrNotFound
		}
		return it.Item().Value(func(val []byte) error {
			var decoded core.WorkflowState
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("decode checkpoint: %w", err)
			}
			state = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// History returns every checkpoint for the run in sequence order.
func (s *Store) History(ctx context.Context, runID string) ([]*core.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var history []*core.WorkflowState
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(runID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var decoded core.WorkflowState
				if err := json.Unmarshal(val, &decoded); err != nil {
					return fmt.Errorf("decode checkpoint: %w", err)
				}
				history = append(history, &decoded)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, checkpoint.ErrNotFound
	}
	return history, nil
}

// DeleteRun removes every checkpoint for the run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.DropPrefix(prefix(runID))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ checkpoint.Store = (*Store)(nil)
