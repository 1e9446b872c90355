package sign

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-wallet/internal/test"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/sample"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
	"github.com/taurusgroup/frost-wallet/pkg/taproot"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
)

func generateKeys(t *testing.T, info session.Info) map[party.Index]*keygen.KeyPackage {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	network := test.NewNetwork(info.Indices())
	handlers := make(map[party.Index]*protocol.Handler, info.Total())
	for _, id := range info.Participants {
		e, err := keygen.New(info, id)
		require.NoError(t, err)
		h := protocol.NewHandler(e, network.Transport(e.SelfIndex()), nil, zerolog.Nop())
		require.NoError(t, h.Start(ctx, e.Start))
		handlers[e.SelfIndex()] = h
	}
	require.NoError(t, test.Run(ctx, network, handlers))

	keys := make(map[party.Index]*keygen.KeyPackage, info.Total())
	for index, h := range handlers {
		r, err := h.Result()
		require.NoError(t, err)
		keys[index] = r.(*keygen.KeyPackage)
	}
	return keys
}

func runSign(t *testing.T, info session.Info, keys map[party.Index]*keygen.KeyPackage, opID string, message []byte, subset party.IDSlice, intercept test.Interceptor, opts ...protocol.Option) map[party.Index]*protocol.Handler {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	network := test.NewNetwork(info.Indices())
	if intercept != nil {
		network.Intercept(intercept)
	}
	handlers := make(map[party.Index]*protocol.Handler, len(subset))
	for _, id := range subset {
		index, err := info.IndexOf(id)
		require.NoError(t, err)
		e, err := New(info, keys[index], nonce.NewStore(), opts...)
		require.NoError(t, err)
		h := protocol.NewHandler(e, network.Transport(index), nil, zerolog.Nop())
		require.NoError(t, h.Start(ctx, e.Start(opID, message, subset)))
		handlers[index] = h
	}
	require.NoError(t, test.Run(ctx, network, handlers))
	return handlers
}

// verifyExternally checks sig with verifiers independent from this module.
func verifyExternally(t *testing.T, key *keygen.KeyPackage, message, sig []byte) {
	switch key.Suite {
	case suite.Secp256k1SHA256:
		m := sha256.Sum256(message)
		assert.True(t, taproot.PublicKey(key.PublicKeyBytes()).Verify(sig, m[:]))
	case suite.Ed25519SHA512:
		assert.True(t, ed25519.Verify(key.PublicKeyBytes(), message, sig))
	default:
		t.Fatalf("unknown suite %s", key.Suite)
	}
}

func checkSignatures(t *testing.T, key *keygen.KeyPackage, message []byte, handlers map[party.Index]*protocol.Handler) {
	var sigBytes []byte
	for _, h := range handlers {
		r, err := h.Result()
		require.NoError(t, err)
		sig := r.(*Signature)
		require.True(t, sig.Verify(key.GroupPublicKey, message))
		if sigBytes != nil {
			assert.Equal(t, sigBytes, sig.Bytes())
		}
		sigBytes = sig.Bytes()
	}
	require.Len(t, sigBytes, 64)
	verifyExternally(t, key, message, sigBytes)
}

func TestSign(t *testing.T) {
	pl := pool.NewPool(0)
	t.Cleanup(pl.TearDown)

	configs := []struct{ n, threshold int }{{1, 1}, {2, 1}, {3, 2}, {4, 3}, {5, 3}}
	for _, tag := range suite.Tags() {
		for _, cfg := range configs {
			tag, cfg := tag, cfg
			t.Run(fmt.Sprintf("%s/%d-of-%d", tag, cfg.threshold, cfg.n), func(t *testing.T) {
				t.Parallel()
				info := test.Info(cfg.n, cfg.threshold, tag)
				keys := generateKeys(t, info)
				message := []byte("hello, frost")

				subsets := []party.IDSlice{
					info.Participants[:cfg.threshold],
					info.Participants[cfg.n-cfg.threshold:],
					info.Participants,
				}
				for i, subset := range subsets {
					opID := fmt.Sprintf("op-%d", i)
					handlers := runSign(t, info, keys, opID, message, subset, nil, protocol.WithPool(pl))
					require.Len(t, handlers, len(subset))
					checkSignatures(t, keys[1], message, handlers)
				}
			})
		}
	}
}

func TestSignScenario(t *testing.T) {
	for _, tag := range suite.Tags() {
		t.Run(string(tag), func(t *testing.T) {
			info := session.Info{
				SessionID:    "wallet-scenario",
				Participants: party.IDSlice{"alice", "bob", "carol"},
				Threshold:    2,
				Suite:        tag,
			}
			keys := generateKeys(t, info)
			message := []byte("transfer:100")

			// alice and bob sign without carol
			handlers := runSign(t, info, keys, "transfer-1", message, party.IDSlice{"alice", "bob"}, nil)
			checkSignatures(t, keys[1], message, handlers)

			// carol contributes a share not derived from her key package
			group := keys[3].SigningShare.Curve()
			handlers = runSign(t, info, keys, "transfer-2", message, info.Participants, func(from, to party.Index, data []byte) []byte {
				msg, err := protocol.UnmarshalMessage(data)
				if err != nil || msg.Round != 2 || from != 3 {
					return data
				}
				msg.Data, _ = cbor.Marshal(&ShareMessage{Share: curve.MustMarshal(sample.Scalar(rand.Reader, group))})
				forged, _ := msg.MarshalBinary()
				return forged
			})
			for _, index := range []party.Index{1, 2} {
				_, err := handlers[index].Result()
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidShare))
				assert.True(t, errors.Is(err, protocol.VerificationFailure))
				assert.Equal(t, party.Index(3), protocol.CulpritOf(err))
			}
		})
	}
}

func TestSignForgedKey(t *testing.T) {
	info := test.Info(3, 2, suite.Ed25519SHA512)
	keys := generateKeys(t, info)

	forged := *keys[3]
	forged.SigningShare = sample.Scalar(rand.Reader, forged.SigningShare.Curve())
	_, err := New(info, &forged, nonce.NewStore())
	require.Error(t, err)
	assert.True(t, errors.Is(err, keygen.ErrInvalidKeyPackage))
	assert.True(t, errors.Is(err, protocol.ConfigurationError))
}

func TestSignKeyMismatch(t *testing.T) {
	info := test.Info(3, 2, suite.Ed25519SHA512)
	keys := generateKeys(t, info)

	other := test.Info(3, 2, suite.Secp256k1SHA256)
	_, err := New(other, keys[1], nonce.NewStore())
	assert.True(t, errors.Is(err, ErrSuiteMismatch))

	other = test.Info(4, 2, suite.Ed25519SHA512)
	_, err = New(other, keys[1], nonce.NewStore())
	assert.True(t, errors.Is(err, ErrSuiteMismatch))
}

func TestSignInsufficientParticipants(t *testing.T) {
	info := test.Info(3, 2, suite.Secp256k1SHA256)
	keys := generateKeys(t, info)
	store := nonce.NewStore()

	e, err := New(info, keys[1], store)
	require.NoError(t, err)
	_, err = e.BeginSigning("op", []byte("m"), info.Participants[:1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientParticipants))
	assert.Equal(t, StateIdle, e.Current())
	assert.Zero(t, store.Len())

	_, err = e.BeginSigning("op", []byte("m"), info.Participants[1:])
	assert.True(t, errors.Is(err, ErrNotSigner))
	assert.Equal(t, StateIdle, e.Current())

	_, err = e.BeginSigning("op", []byte("m"), party.IDSlice{"a", "a"})
	assert.Error(t, err)

	// the engine can still be used after configuration errors
	_, err = e.BeginSigning("op", []byte("m"), info.Participants[:2])
	require.NoError(t, err)
	assert.Equal(t, StateCommitPhase, e.Current())
}

// commitAll begins signing on an engine for each signer, and exchanges the commitments.
func commitAll(t *testing.T, info session.Info, keys map[party.Index]*keygen.KeyPackage, stores map[party.Index]*nonce.Store, subset party.IDSlice, opts ...protocol.Option) map[party.Index]*Engine {
	engines := make(map[party.Index]*Engine, len(subset))
	var commitments []*protocol.Message
	for _, id := range subset {
		index, err := info.IndexOf(id)
		require.NoError(t, err)
		e, err := New(info, keys[index], stores[index], opts...)
		require.NoError(t, err)
		out, err := e.BeginSigning("op", []byte("message"), subset)
		require.NoError(t, err)
		commitments = append(commitments, out...)
		engines[index] = e
	}
	for _, msg := range commitments {
		var content CommitmentMessage
		require.NoError(t, msg.UnmarshalContent(&content))
		require.NoError(t, engines[msg.To].CollectCommitment(msg.From, &content))
	}
	return engines
}

func TestGenerateShareTwice(t *testing.T) {
	info := test.Info(2, 2, suite.Secp256k1SHA256)
	keys := generateKeys(t, info)
	stores := map[party.Index]*nonce.Store{1: nonce.NewStore(), 2: nonce.NewStore()}

	e, err := New(info, keys[1], stores[1])
	require.NoError(t, err)
	_, err = e.GenerateShare()
	assert.True(t, errors.Is(err, ErrIncompleteCommitments))
	assert.Equal(t, StateIdle, e.Current())

	engines := commitAll(t, info, keys, stores, info.Participants)
	e = engines[1]
	require.Equal(t, StateSharePhase, e.Current())

	out, err := e.GenerateShare()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StateAggregate, e.Current())
	assert.False(t, stores[1].Contains("op/1"))

	_, err = e.GenerateShare()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoncesAlreadyConsumed))
	assert.Equal(t, StateAggregate, e.Current())
}

func TestSignManualAggregate(t *testing.T) {
	info := test.Info(3, 2, suite.Ed25519SHA512)
	keys := generateKeys(t, info)
	stores := map[party.Index]*nonce.Store{1: nonce.NewStore(), 3: nonce.NewStore()}
	subset := party.IDSlice{info.Participants[0], info.Participants[2]}
	engines := commitAll(t, info, keys, stores, subset)

	shares := make(map[party.Index]curve.Scalar)
	for index, e := range engines {
		out, err := e.GenerateShare()
		require.NoError(t, err)
		require.Len(t, out, 1)
		var content ShareMessage
		require.NoError(t, out[0].UnmarshalContent(&content))
		z := keys[index].SigningShare.Curve().NewScalar()
		require.NoError(t, z.UnmarshalBinary(content.Share))
		shares[index] = z
	}

	e := engines[1]
	_, err := e.Aggregate(map[party.Index]curve.Scalar{1: shares[1]})
	assert.True(t, errors.Is(err, ErrIncompleteShares))
	assert.Equal(t, StateAggregate, e.Current())

	sig, err := e.Aggregate(shares)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, e.Current())
	verifyExternally(t, keys[1], []byte("message"), sig.Bytes())

	// the same shares give the same signature on the other signer
	sig3, err := engines[3].Aggregate(shares)
	require.NoError(t, err)
	assert.Equal(t, sig.Bytes(), sig3.Bytes())
}

func TestSignInvalidShareCulprit(t *testing.T) {
	info := test.Info(3, 3, suite.Secp256k1SHA256)
	keys := generateKeys(t, info)
	stores := map[party.Index]*nonce.Store{1: nonce.NewStore(), 2: nonce.NewStore(), 3: nonce.NewStore()}
	engines := commitAll(t, info, keys, stores, info.Participants)

	shares := make(map[party.Index]curve.Scalar)
	for index, e := range engines {
		_, err := e.GenerateShare()
		require.NoError(t, err)
		shares[index] = e.z_i
	}
	shares[2] = curve.Secp256k1{}.NewScalar().Set(shares[2]).Add(curve.ScalarFromUint64(curve.Secp256k1{}, 1))

	_, err := engines[1].Aggregate(shares)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidShare))
	assert.Equal(t, party.Index(2), protocol.CulpritOf(err))
	assert.Equal(t, StateFailed, engines[1].Current())
}

func TestSignAbortDiscardsNonces(t *testing.T) {
	info := test.Info(3, 2, suite.Ed25519SHA512)
	keys := generateKeys(t, info)
	store := nonce.NewStore()

	e, err := New(info, keys[2], store)
	require.NoError(t, err)
	_, err = e.BeginSigning("op-abort", []byte("m"), info.Participants)
	require.NoError(t, err)
	require.True(t, store.Contains("op-abort/2"))

	e.Abort(errors.New("user rejected"))
	assert.Equal(t, StateFailed, e.Current())
	assert.False(t, store.Contains("op-abort/2"))
	_, err = e.Result()
	assert.True(t, errors.Is(err, protocol.ErrAborted))

	// operation ids are never reused
	e2, err := New(info, keys[2], store)
	require.NoError(t, err)
	_, err = e2.BeginSigning("op-abort", []byte("m"), info.Participants)
	assert.True(t, errors.Is(err, nonce.ErrOperationReused))
	assert.Equal(t, StateIdle, e2.Current())
}

func TestSignTimeout(t *testing.T) {
	mock := clock.NewMock()
	info := test.Info(2, 2, suite.Secp256k1SHA256)
	keys := generateKeys(t, info)
	store := nonce.NewStore()

	e, err := New(info, keys[1], store, protocol.WithClock(mock), protocol.WithRoundTimeout(time.Minute))
	require.NoError(t, err)
	_, err = e.BeginSigning("op", []byte("m"), info.Participants)
	require.NoError(t, err)

	mock.Add(2 * time.Minute)
	err = e.CheckTimeout()
	assert.True(t, errors.Is(err, protocol.Timeout))
	assert.Equal(t, StateFailed, e.Current())
	assert.False(t, store.Contains("op/1"))
}

func TestSignEvictedNonces(t *testing.T) {
	info := test.Info(2, 2, suite.Ed25519SHA512)
	keys := generateKeys(t, info)
	stores := map[party.Index]*nonce.Store{
		1: nonce.NewStore(nonce.WithTTL(10 * time.Millisecond)),
		2: nonce.NewStore(),
	}
	engines := commitAll(t, info, keys, stores, info.Participants)

	time.Sleep(50 * time.Millisecond)
	_, err := engines[1].GenerateShare()
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ResourceExhaustion))
	assert.True(t, errors.Is(err, nonce.ErrNotFound))
	assert.Equal(t, StateFailed, engines[1].Current())
}

func TestSignRejectsNonSigner(t *testing.T) {
	info := test.Info(3, 2, suite.Secp256k1SHA256)
	keys := generateKeys(t, info)
	stores := map[party.Index]*nonce.Store{1: nonce.NewStore(), 2: nonce.NewStore()}
	engines := commitAll(t, info, keys, stores, info.Participants[:2])

	// 3 is not part of the subset
	_, commitments := nonce.New(rand.Reader, curve.Secp256k1{})
	hiding, binding, err := commitments.MarshalPoints()
	require.NoError(t, err)
	err = engines[1].CollectCommitment(3, &CommitmentMessage{Hiding: hiding, Binding: binding})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSigner))
	assert.Equal(t, party.Index(3), protocol.CulpritOf(err))
	assert.Equal(t, StateFailed, engines[1].Current())
	assert.False(t, stores[1].Contains("op/1"))
}
