package taproot

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// BIP-340 test vectors 0 and 1.
var vectors = []struct {
	secret    uint64
	publicKey string
	message   string
	signature string
}{
	{
		secret:    3,
		publicKey: "F9308A019258C31049344F85F89D5229B531C845836F99B08601F113BCE036F9",
		message:   "0000000000000000000000000000000000000000000000000000000000000000",
		signature: "E907831F80848D1069A5371B402410364BDF1C5F8307B0084C55F1CE2DCA821525F66A4A85EA8B71E482A74F382D2CE5EBEEE8FDB2172F477DF4900D310536C0",
	},
	{
		publicKey: "DFF1D77F2A671C5F36183726DB2341BE58FEAE1DA2DECED843240F7B502BA659",
		message:   "243F6A8885A308D313198A2E03707344A4093822299F31D0082EFA98EC4E6C89",
		signature: "6896BD60EEAE296DB48A229FF71DFE071BDE413E6D43F917DC8DCF8C78DE33418906D11AC976ABCCB20B091292BFF4EA897EFCB639EA871CFA95F6DE339E4B0A",
	},
}

func TestVerifyVectors(t *testing.T) {
	for _, v := range vectors {
		pk := PublicKey(mustHex(t, v.publicKey))
		m := mustHex(t, v.message)
		sig := Signature(mustHex(t, v.signature))
		require.Len(t, sig, SignatureLen)
		assert.True(t, pk.Verify(sig, m))

		for _, i := range []int{0, 40} {
			tampered := append(Signature(nil), sig...)
			tampered[i] ^= 1
			assert.False(t, pk.Verify(tampered, m))
		}
		other := append([]byte(nil), m...)
		other[31] ^= 1
		assert.False(t, pk.Verify(sig, other))
	}
	assert.False(t, PublicKey([]byte{1, 2, 3}).Verify(mustHex(t, vectors[0].signature), make([]byte, 32)))
	assert.False(t, PublicKey(mustHex(t, vectors[0].publicKey)).Verify(Signature{1}, make([]byte, 32)))
}

func TestChallenge(t *testing.T) {
	v := vectors[0]
	sig := mustHex(t, v.signature)
	m := mustHex(t, v.message)

	d := curve.ScalarFromUint64(curve.Secp256k1{}, v.secret)
	P := d.ActOnBase().(*curve.Secp256k1Point)
	require.Equal(t, mustHex(t, v.publicKey), P.XBytes())
	if !P.HasEvenY() {
		d.Negate()
	}

	s := curve.Secp256k1{}.NewScalar()
	require.NoError(t, s.UnmarshalBinary(sig[32:]))
	e := Challenge(sig[:32], P.XBytes(), m)

	// s⋅G - e⋅P = R
	R := s.ActOnBase().Sub(e.Mul(d).ActOnBase()).(*curve.Secp256k1Point)
	assert.True(t, R.HasEvenY())
	assert.Equal(t, sig[:32], R.XBytes())
}

func TestTaggedHashDomainSeparation(t *testing.T) {
	a := TaggedHash("BIP0340/challenge", []byte("data"))
	b := TaggedHash("BIP0340/aux", []byte("data"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
