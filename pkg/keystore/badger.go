package keystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const badgerPrefix = "keystore/"

// BadgerStore keeps envelopes in a badger database.
//
// Badger reclaims deleted values lazily, so Delete flattens the LSM tree and
// runs value log GC afterwards. This is best effort: a deleted envelope may
// survive on disk until badger rewrites the file holding it.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadgerStore opens the database at path, or an in-memory database if
// path is empty.
func OpenBadgerStore(path string, log zerolog.Logger) (*BadgerStore, error) {
	log = log.With().Str("component", "badger").Logger()
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func badgerKey(id WalletID) []byte {
	return []byte(badgerPrefix + string(id))
}

func (s *BadgerStore) Put(ctx context.Context, id WalletID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := id.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(id), data)
	})
}

func (s *BadgerStore) Get(ctx context.Context, id WalletID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

func (s *BadgerStore) Delete(ctx context.Context, id WalletID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(id)); err != nil {
			return err
		}
		return txn.Delete(badgerKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if err = s.compact(); err != nil {
		s.log.Warn().Err(err).Stringer("wallet", id).Msg("failed to compact after delete")
	}
	return nil
}

// compact drops stale versions from the LSM tree and rewrites value log
// files with enough garbage.
func (s *BadgerStore) compact() error {
	if s.db.Opts().InMemory {
		return nil
	}
	if err := s.db.Flatten(1); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(0.01)
		switch {
		case err == nil:
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			return nil
		default:
			return err
		}
	}
}

func (s *BadgerStore) List(ctx context.Context) ([]WalletID, error) {
	var ids []WalletID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, WalletID(strings.TrimPrefix(string(it.Item().Key()), badgerPrefix)))
		}
		return nil
	})
	return ids, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(strings.TrimSpace(format), args...)
}
