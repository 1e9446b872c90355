package keystore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Store persists encoded envelopes by wallet id.
//
// Get and Delete return ErrNotFound for unknown wallets.
type Store interface {
	Put(ctx context.Context, id WalletID, data []byte) error
	Get(ctx context.Context, id WalletID) ([]byte, error)
	Delete(ctx context.Context, id WalletID) error
	List(ctx context.Context) ([]WalletID, error)
	Close() error
}

const (
	// BackendBadger selects BadgerStore.
	BackendBadger = "badger"
	// BackendDir selects DirStore.
	BackendDir = "dir"
)

// OpenStore opens the storage backend named backend at path.
func OpenStore(backend, path string, log zerolog.Logger) (Store, error) {
	switch backend {
	case BackendBadger:
		return OpenBadgerStore(path, log)
	case BackendDir:
		return NewDirStore(path)
	default:
		return nil, fmt.Errorf("keystore: unknown backend %q", backend)
	}
}
