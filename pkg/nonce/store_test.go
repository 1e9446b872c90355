package nonce

import (
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

func TestNewCommitments(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}} {
		nonces, commitments := New(rand.Reader, group)
		require.NoError(t, commitments.Validate())
		assert.True(t, commitments.Hiding.Equal(nonces.Hiding.ActOnBase()))
		assert.True(t, commitments.Binding.Equal(nonces.Binding.ActOnBase()))

		hiding, binding, err := commitments.MarshalPoints()
		require.NoError(t, err)
		decoded, err := UnmarshalCommitments(group, hiding, binding)
		require.NoError(t, err)
		assert.True(t, decoded.Hiding.Equal(commitments.Hiding))

		identity := curve.MustMarshal(group.NewPoint())
		_, err = UnmarshalCommitments(group, identity, binding)
		assert.Error(t, err)

		nonces.Zeroize()
		assert.True(t, nonces.IsZero())
	}
}

func TestStoreSingleUse(t *testing.T) {
	s := NewStore()
	nonces, _ := New(rand.Reader, curve.Secp256k1{})

	require.NoError(t, s.Put("op", nonces))
	assert.ErrorIs(t, s.Put("op", nonces), ErrOperationReused)
	assert.True(t, s.Contains("op"))

	got, err := s.GetAndConsume("op")
	require.NoError(t, err)
	assert.Same(t, nonces, got)
	assert.False(t, got.IsZero(), "consumed nonces are handed out intact")

	_, err = s.GetAndConsume("op")
	assert.ErrorIs(t, err, ErrAlreadyConsumed)
	assert.ErrorIs(t, s.Put("op", nonces), ErrOperationReused)

	_, err = s.GetAndConsume("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDiscard(t *testing.T) {
	s := NewStore()
	nonces, _ := New(rand.Reader, curve.Edwards25519{})
	require.NoError(t, s.Put("op", nonces))

	s.Discard("op")
	assert.True(t, nonces.IsZero())
	assert.False(t, s.Contains("op"))
	_, err := s.GetAndConsume("op")
	assert.ErrorIs(t, err, ErrAlreadyConsumed)
}

func TestStoreExpiry(t *testing.T) {
	s := NewStore(WithTTL(20 * time.Millisecond))
	nonces, _ := New(rand.Reader, curve.Secp256k1{})
	require.NoError(t, s.Put("op", nonces))

	require.Eventually(t, func() bool { return s.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, nonces.IsZero())
	_, err := s.GetAndConsume("op")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCapacity(t *testing.T) {
	s := NewStore(WithCapacity(2))
	first, _ := New(rand.Reader, curve.Secp256k1{})
	require.NoError(t, s.Put("a", first))
	for _, id := range []string{"b", "c"} {
		n, _ := New(rand.Reader, curve.Secp256k1{})
		require.NoError(t, s.Put(id, n))
	}
	assert.Equal(t, 2, s.Len())
	assert.True(t, first.IsZero(), "evicted nonces are zeroized")
	_, err := s.GetAndConsume("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreConcurrentConsume(t *testing.T) {
	s := NewStore()
	for i := 0; i < 20; i++ {
		nonces, _ := New(rand.Reader, curve.Secp256k1{})
		require.NoError(t, s.Put(fmt.Sprint(i), nonces))
	}

	var (
		wg       sync.WaitGroup
		mtx      sync.Mutex
		consumed int
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := s.GetAndConsume(fmt.Sprint(i)); err == nil {
					mtx.Lock()
					consumed++
					mtx.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, consumed)
}
