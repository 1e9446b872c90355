// Package keystore persists KeyPackages encrypted under a password.
//
// Keys are derived with Argon2id and the serialized KeyPackage is sealed with
// XChaCha20-Poly1305. The envelope records the algorithms and parameters
// used, and anything other than the configured format is refused.
package keystore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrUnsupportedFormat is returned for envelopes with an unknown version,
	// algorithm, or parameters.
	ErrUnsupportedFormat = errors.New("keystore: unsupported envelope format")
	// ErrWrongPasswordOrCorrupted is returned when decryption fails.
	ErrWrongPasswordOrCorrupted = errors.New("keystore: wrong password or corrupted envelope")
	// ErrNotFound is returned when no envelope is stored for a wallet.
	ErrNotFound = errors.New("keystore: wallet not found")
	// ErrInvalidWalletID is returned for malformed wallet ids.
	ErrInvalidWalletID = errors.New("keystore: invalid wallet id")
	// ErrEmptyPassword is returned when encrypting with an empty password.
	ErrEmptyPassword = errors.New("keystore: empty password")
)

// Keystore encrypts KeyPackages into a Store.
//
// Operations on the same wallet are serialized; different wallets proceed
// concurrently.
type Keystore struct {
	store  Store
	params Argon2Params
	rand   io.Reader
	locks  *keyedMutex
	log    zerolog.Logger
}

// Option configures a Keystore.
type Option func(*Keystore)

// WithArgon2Params sets the cost of key derivation. Envelopes written with
// other parameters can no longer be read.
func WithArgon2Params(params Argon2Params) Option {
	return func(k *Keystore) { k.params = params }
}

// WithRand sets the source of salts and nonces.
func WithRand(r io.Reader) Option {
	return func(k *Keystore) { k.rand = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Keystore) { k.log = l }
}

// New returns a Keystore writing to store.
func New(store Store, opts ...Option) (*Keystore, error) {
	k := &Keystore{
		store:  store,
		params: DefaultArgon2Params,
		rand:   rand.Reader,
		locks:  newKeyedMutex(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if store == nil {
		return nil, errors.New("keystore: nil store")
	}
	if err := k.params.Validate(); err != nil {
		return nil, err
	}
	k.log = k.log.With().Str("component", "keystore").Logger()
	return k, nil
}

// EncryptAndStore encrypts key under password and stores it, replacing any
// previous envelope of the same wallet.
//
// Errors are protocol.Error values of kind ConfigurationError for invalid
// arguments and StorageError otherwise. The sentinels of this package remain
// reachable with errors.Is.
func (k *Keystore) EncryptAndStore(ctx context.Context, key *keygen.KeyPackage, password []byte) (WalletID, error) {
	id, err := k.encryptAndStore(ctx, key, password)
	return id, classify(err)
}

func (k *Keystore) encryptAndStore(ctx context.Context, key *keygen.KeyPackage, password []byte) (WalletID, error) {
	if len(password) == 0 {
		return "", ErrEmptyPassword
	}
	if err := key.Validate(); err != nil {
		return "", err
	}
	id := NewWalletID(key)

	unlock := k.locks.Lock(id)
	defer unlock()

	env, err := k.encrypt(key, password)
	if err != nil {
		return "", err
	}
	data, err := env.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("keystore: failed to encode envelope: %w", err)
	}
	if err = k.store.Put(ctx, id, data); err != nil {
		k.log.Error().Err(err).Stringer("wallet", id).Msg("failed to store envelope")
		return "", err
	}
	k.log.Info().Stringer("wallet", id).Str("suite", string(key.Suite)).Msg("stored key package")
	return id, nil
}

func (k *Keystore) encrypt(key *keygen.KeyPackage, password []byte) (*Envelope, error) {
	plaintext, err := key.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to encode key package: %w", err)
	}
	defer zero(plaintext)

	env := &Envelope{
		Version:   EnvelopeVersion,
		CurveTag:  key.Suite,
		KDF:       KDFArgon2id,
		KDFParams: k.params,
		Cipher:    CipherXChaCha20Poly1305,
		Salt:      make([]byte, saltLength),
		Nonce:     make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err = io.ReadFull(k.rand, env.Salt); err != nil {
		return nil, fmt.Errorf("keystore: failed to sample salt: %w", err)
	}
	if _, err = io.ReadFull(k.rand, env.Nonce); err != nil {
		return nil, fmt.Errorf("keystore: failed to sample nonce: %w", err)
	}

	aad, err := env.associatedData()
	if err != nil {
		return nil, err
	}
	derived := deriveKey(password, env.Salt, env.KDFParams)
	defer zero(derived)
	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, env.Nonce, plaintext, aad)
	split := len(sealed) - aead.Overhead()
	env.Ciphertext = sealed[:split:split]
	env.AuthTag = sealed[split:]
	return env, nil
}

// Load reads and decrypts the KeyPackage of wallet id.
func (k *Keystore) Load(ctx context.Context, id WalletID, password []byte) (*keygen.KeyPackage, error) {
	key, err := k.load(ctx, id, password)
	return key, classify(err)
}

func (k *Keystore) load(ctx context.Context, id WalletID, password []byte) (*keygen.KeyPackage, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	unlock := k.locks.Lock(id)
	defer unlock()

	data, err := k.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	env, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, err
	}
	key, err := k.decrypt(env, password)
	if err != nil {
		k.log.Warn().Err(err).Stringer("wallet", id).Msg("failed to decrypt")
		return nil, err
	}
	if NewWalletID(key) != id {
		key.Zeroize()
		return nil, fmt.Errorf("%w: envelope belongs to another wallet", ErrWrongPasswordOrCorrupted)
	}
	return key, nil
}

// LoadAndDecrypt decrypts env. Envelopes not written with exactly the
// algorithms and parameters of this Keystore are refused with ErrUnsupportedFormat.
func (k *Keystore) LoadAndDecrypt(env *Envelope, password []byte) (*keygen.KeyPackage, error) {
	key, err := k.decrypt(env, password)
	return key, classify(err)
}

func (k *Keystore) decrypt(env *Envelope, password []byte) (*keygen.KeyPackage, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrUnsupportedFormat)
	}
	if err := env.check(k.params, chacha20poly1305.NonceSizeX, chacha20poly1305.Overhead); err != nil {
		return nil, err
	}
	aad, err := env.associatedData()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	derived := deriveKey(password, env.Salt, env.KDFParams)
	defer zero(derived)
	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.AuthTag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)
	plaintext, err := aead.Open(nil, env.Nonce, sealed, aad)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}
	defer zero(plaintext)

	key := new(keygen.KeyPackage)
	if err = key.UnmarshalBinary(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPasswordOrCorrupted, err)
	}
	if key.Suite != env.CurveTag {
		key.Zeroize()
		return nil, fmt.Errorf("%w: curve tag mismatch", ErrWrongPasswordOrCorrupted)
	}
	return key, nil
}

// Delete removes the envelope of wallet id.
func (k *Keystore) Delete(ctx context.Context, id WalletID) error {
	if err := id.Validate(); err != nil {
		return classify(err)
	}
	unlock := k.locks.Lock(id)
	defer unlock()

	if err := k.store.Delete(ctx, id); err != nil {
		return classify(err)
	}
	k.log.Info().Stringer("wallet", id).Msg("deleted key package")
	return nil
}

// List returns the ids of all stored wallets.
func (k *Keystore) List(ctx context.Context) ([]WalletID, error) {
	ids, err := k.store.List(ctx)
	return ids, classify(err)
}

// classify wraps err in a protocol.Error unless it already is one.
func classify(err error) error {
	if err == nil || protocol.KindOf(err) != protocol.UnknownKind {
		return err
	}
	switch {
	case errors.Is(err, ErrEmptyPassword), errors.Is(err, ErrInvalidWalletID), errors.Is(err, keygen.ErrInvalidKeyPackage):
		return protocol.NewError(protocol.ConfigurationError, 0, err)
	default:
		return protocol.NewError(protocol.StorageError, 0, err)
	}
}

func deriveKey(password, salt []byte, params Argon2Params) []byte {
	return argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Threads, keyLength)
}

func zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
