package keystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-wallet/internal/test"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
	"golang.org/x/sync/errgroup"
)

var testParams = Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1}

func newKey(t *testing.T, tag suite.Tag) *keygen.KeyPackage {
	info := test.Info(1, 1, tag)
	e, err := keygen.New(info, info.Participants[0])
	require.NoError(t, err)
	_, err = e.Start()
	require.NoError(t, err)
	key, err := e.Finalize()
	require.NoError(t, err)
	return key
}

func stores(t *testing.T) map[string]Store {
	b, err := OpenBadgerStore("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	d, err := NewDirStore(filepath.Join(t.TempDir(), "wallets"))
	require.NoError(t, err)
	return map[string]Store{BackendBadger: b, BackendDir: d}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		ks, err := New(store, WithArgon2Params(testParams))
		require.NoError(t, err)
		for _, tag := range suite.Tags() {
			t.Run(name+"/"+string(tag), func(t *testing.T) {
				key := newKey(t, tag)
				id, err := ks.EncryptAndStore(ctx, key, []byte("correct horse"))
				require.NoError(t, err)
				assert.Equal(t, NewWalletID(key), id)

				loaded, err := ks.Load(ctx, id, []byte("correct horse"))
				require.NoError(t, err)
				assert.True(t, key.Equal(loaded))

				expected, err := key.MarshalBinary()
				require.NoError(t, err)
				actual, err := loaded.MarshalBinary()
				require.NoError(t, err)
				assert.Equal(t, expected, actual)

				_, err = ks.Load(ctx, id, []byte("wrong horse"))
				assert.True(t, errors.Is(err, ErrWrongPasswordOrCorrupted))
			})
		}
		ids, err := ks.List(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(suite.Tags()))
	}
}

func TestEnvelopeHasNoPlaintext(t *testing.T) {
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Secp256k1SHA256)
	secret, err := key.SigningShare.MarshalBinary()
	require.NoError(t, err)

	env, err := ks.encrypt(key, []byte("pw"))
	require.NoError(t, err)
	data, err := env.MarshalBinary()
	require.NoError(t, err)
	assert.NotContains(t, string(data), string(secret))
	assert.Len(t, env.AuthTag, 16)
	assert.Len(t, env.Nonce, 24)
	assert.Len(t, env.Salt, 16)
}

func TestUnsupportedFormat(t *testing.T) {
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Ed25519SHA512)
	password := []byte("pw")

	mutations := map[string]func(*Envelope){
		"version":  func(e *Envelope) { e.Version = 2 },
		"kdf":      func(e *Envelope) { e.KDF = "scrypt" },
		"cipher":   func(e *Envelope) { e.Cipher = "aes-256-gcm" },
		"params":   func(e *Envelope) { e.KDFParams.Time++ },
		"suite":    func(e *Envelope) { e.CurveTag = "p256-sha256" },
		"salt":     func(e *Envelope) { e.Salt = e.Salt[:8] },
		"auth tag": func(e *Envelope) { e.AuthTag = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			env, err := ks.encrypt(key, password)
			require.NoError(t, err)
			mutate(env)
			_, err = ks.LoadAndDecrypt(env, password)
			assert.True(t, errors.Is(err, ErrUnsupportedFormat))
		})
	}

	_, err = UnmarshalEnvelope([]byte("not cbor at all"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	// a keystore with other parameters refuses envelopes it did not write
	other, err := New(stores(t)[BackendBadger], WithArgon2Params(Argon2Params{Time: 2, MemoryKiB: 64, Threads: 1}))
	require.NoError(t, err)
	env, err := ks.encrypt(key, password)
	require.NoError(t, err)
	_, err = other.LoadAndDecrypt(env, password)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestTamperedEnvelope(t *testing.T) {
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Secp256k1SHA256)
	password := []byte("pw")

	mutations := map[string]func(*Envelope){
		"ciphertext": func(e *Envelope) { e.Ciphertext[0] ^= 1 },
		"auth tag":   func(e *Envelope) { e.AuthTag[0] ^= 1 },
		"salt":       func(e *Envelope) { e.Salt[0] ^= 1 },
		"nonce":      func(e *Envelope) { e.Nonce[0] ^= 1 },
		"suite":      func(e *Envelope) { e.CurveTag = suite.Ed25519SHA512 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			env, err := ks.encrypt(key, password)
			require.NoError(t, err)
			mutate(env)
			_, err = ks.LoadAndDecrypt(env, password)
			assert.True(t, errors.Is(err, ErrWrongPasswordOrCorrupted))
		})
	}
}

func TestEnvelopeEncoding(t *testing.T) {
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Ed25519SHA512)

	env, err := ks.encrypt(key, []byte("pw"))
	require.NoError(t, err)
	data, err := env.MarshalBinary()
	require.NoError(t, err)
	decoded, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	loaded, err := ks.LoadAndDecrypt(decoded, []byte("pw"))
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))
}

func TestLoadAndDecryptNilEnvelope(t *testing.T) {
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	var key *keygen.KeyPackage
	require.NotPanics(t, func() {
		key, err = ks.LoadAndDecrypt(nil, []byte("pw"))
	})
	assert.Nil(t, key)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.True(t, errors.Is(err, protocol.StorageError))
}

// failingStore fails every operation.
type failingStore struct{ err error }

func (s failingStore) Put(context.Context, WalletID, []byte) error { return s.err }

func (s failingStore) Get(context.Context, WalletID) ([]byte, error) { return nil, s.err }

func (s failingStore) Delete(context.Context, WalletID) error { return s.err }

func (s failingStore) List(context.Context) ([]WalletID, error) { return nil, s.err }

func (s failingStore) Close() error { return nil }

func TestErrorKinds(t *testing.T) {
	ctx := context.Background()
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Secp256k1SHA256)
	id, err := ks.EncryptAndStore(ctx, key, []byte("pw"))
	require.NoError(t, err)

	_, err = ks.Load(ctx, id, []byte("not pw"))
	assert.True(t, errors.Is(err, protocol.StorageError))
	assert.True(t, errors.Is(err, ErrWrongPasswordOrCorrupted))
	assert.Equal(t, protocol.StorageError, protocol.KindOf(err))

	require.NoError(t, ks.Delete(ctx, id))
	_, err = ks.Load(ctx, id, []byte("pw"))
	assert.True(t, errors.Is(err, protocol.StorageError))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = ks.EncryptAndStore(ctx, key, nil)
	assert.True(t, errors.Is(err, protocol.ConfigurationError))
	assert.True(t, errors.Is(err, ErrEmptyPassword))

	err = ks.Delete(ctx, "not-a-wallet")
	assert.True(t, errors.Is(err, protocol.ConfigurationError))
	assert.True(t, errors.Is(err, ErrInvalidWalletID))

	diskFull := errors.New("disk full")
	broken, err := New(failingStore{err: diskFull}, WithArgon2Params(testParams))
	require.NoError(t, err)
	_, err = broken.EncryptAndStore(ctx, key, []byte("pw"))
	assert.True(t, errors.Is(err, protocol.StorageError))
	assert.True(t, errors.Is(err, diskFull))
	_, err = broken.Load(ctx, id, []byte("pw"))
	assert.True(t, errors.Is(err, protocol.StorageError))
	_, err = broken.List(ctx)
	assert.True(t, errors.Is(err, protocol.StorageError))
	assert.True(t, errors.Is(broken.Delete(ctx, id), protocol.StorageError))
}

func TestBadgerDeleteOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "badger")
	store, err := OpenBadgerStore(path, zerolog.Nop())
	require.NoError(t, err)
	ks, err := New(store, WithArgon2Params(testParams))
	require.NoError(t, err)

	key := newKey(t, suite.Secp256k1SHA256)
	id, err := ks.EncryptAndStore(ctx, key, []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, ks.Delete(ctx, id))
	require.NoError(t, store.Close())

	store, err = OpenBadgerStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ks, err := New(store, WithArgon2Params(testParams))
			require.NoError(t, err)
			key := newKey(t, suite.Ed25519SHA512)
			id, err := ks.EncryptAndStore(ctx, key, []byte("pw"))
			require.NoError(t, err)

			require.NoError(t, ks.Delete(ctx, id))
			_, err = ks.Load(ctx, id, []byte("pw"))
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.True(t, errors.Is(ks.Delete(ctx, id), ErrNotFound))
		})
	}
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	ks, err := New(stores(t)[BackendDir], WithArgon2Params(testParams))
	require.NoError(t, err)

	_, err = ks.Load(ctx, "../../etc/passwd", []byte("pw"))
	assert.True(t, errors.Is(err, ErrInvalidWalletID))

	_, err = ks.EncryptAndStore(ctx, newKey(t, suite.Ed25519SHA512), nil)
	assert.True(t, errors.Is(err, ErrEmptyPassword))

	_, err = New(stores(t)[BackendDir], WithArgon2Params(Argon2Params{}))
	assert.Error(t, err)

	_, err = OpenStore("s3", "", zerolog.Nop())
	assert.Error(t, err)
}

func TestDirStoreFiles(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "wallets")
	store, err := NewDirStore(dir)
	require.NoError(t, err)
	ks, err := New(store, WithArgon2Params(testParams))
	require.NoError(t, err)

	id, err := ks.EncryptAndStore(ctx, newKey(t, suite.Secp256k1SHA256), []byte("pw"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(id)+envelopeExt, entries[0].Name())
	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, cbor.Unmarshal(data, &env))
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, suite.Secp256k1SHA256, env.CurveTag)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	ks, err := New(stores(t)[BackendBadger], WithArgon2Params(testParams))
	require.NoError(t, err)
	key := newKey(t, suite.Ed25519SHA512)
	id, err := ks.EncryptAndStore(ctx, key, []byte("pw"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			if i%2 == 0 {
				_, err := ks.EncryptAndStore(ctx, key, []byte("pw"))
				return err
			}
			loaded, err := ks.Load(ctx, id, []byte("pw"))
			if err != nil {
				return err
			}
			if !loaded.Equal(key) {
				return errors.New("loaded a different key")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Empty(t, ks.locks.locks)
}
