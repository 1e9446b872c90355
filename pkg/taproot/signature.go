package taproot

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

// TaggedHash adds some domain separation to SHA-256.
//
// This is the hash_tag function mentioned in BIP-340.
//
// See: https://github.com/bitcoin/bips/blob/master/bip-0340.mediawiki#specification
func TaggedHash(tag string, datas ...[]byte) []byte {
	tagSum := sha256.Sum256([]byte(tag))

	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	for _, data := range datas {
		h.Write(data)
	}
	return h.Sum(nil)
}

// Challenge computes e = H_tag("BIP0340/challenge", R.x ‖ P.x ‖ m) mod n.
func Challenge(rX, pX, m []byte) curve.Scalar {
	return curve.ScalarFromWideBytes(curve.Secp256k1{}, TaggedHash("BIP0340/challenge", rX, pX, m))
}

// PublicKey represents an x-only public key for BIP-340 signatures.
type PublicKey []byte

// SignatureLen is the number of bytes in a Signature.
const SignatureLen = 64

// Signature represents a signature according to BIP-340: R.x ‖ s.
type Signature []byte

// Verify checks the integrity of a signature, using a public key.
//
// m is the 32 byte hash of a message.
func (pk PublicKey) Verify(sig Signature, m []byte) bool {
	key, err := schnorr.ParsePubKey(pk)
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(m, key)
}
