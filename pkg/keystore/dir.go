package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const envelopeExt = ".cbor"

// DirStore keeps one file per wallet in a directory.
//
// Files are replaced atomically: envelopes are written to a temporary file,
// synced, and renamed over the previous one.
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed, readable only by the current user.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("keystore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) path(id WalletID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, string(id)+envelopeExt), nil
}

func (s *DirStore) Put(ctx context.Context, id WalletID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+string(id)+"-*")
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = tmp.Chmod(0o600); err == nil {
		if _, err = tmp.Write(data); err == nil {
			err = tmp.Sync()
		}
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("keystore: failed to write %s: %w", id, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return syncDir(s.dir)
}

func (s *DirStore) Get(ctx context.Context, id WalletID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return data, nil
}

func (s *DirStore) Delete(ctx context.Context, id WalletID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return syncDir(s.dir)
}

func (s *DirStore) List(ctx context.Context) ([]WalletID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	var ids []WalletID
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, envelopeExt) {
			continue
		}
		id := WalletID(strings.TrimSuffix(name, envelopeExt))
		if id.Validate() == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (*DirStore) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	defer d.Close()
	if err = d.Sync(); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return nil
}
