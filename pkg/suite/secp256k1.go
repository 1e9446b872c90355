package suite

import (
	"crypto/sha256"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/taproot"
)

const secp256k1Context = "FROST-secp256k1-SHA256-v1"

// secp256k1Suite produces BIP-340 signatures.
//
// BIP-340 signs 32 byte messages, so arbitrary messages are first hashed with
// SHA-256; a verifier checks the signature against SHA-256(message).
type secp256k1Suite struct{}

func (secp256k1Suite) Tag() Tag {
	return Secp256k1SHA256
}

func (secp256k1Suite) Group() curve.Curve {
	return curve.Secp256k1{}
}

// HashToScalar expands data into 64 bytes with two SHA-256 calls, and reduces
// the result modulo n.
func (secp256k1Suite) HashToScalar(domain string, data ...[]byte) curve.Scalar {
	wide := make([]byte, 0, 64)
	for counter := byte(0); counter < 2; counter++ {
		h := sha256.New()
		h.Write([]byte(secp256k1Context))
		h.Write([]byte{counter})
		frame(h, domain, data...)
		wide = h.Sum(wide)
	}
	return curve.ScalarFromWideBytes(curve.Secp256k1{}, wide)
}

func (secp256k1Suite) Challenge(R, Y curve.Point, message []byte) (curve.Scalar, error) {
	r, ok := R.(*curve.Secp256k1Point)
	if !ok {
		return nil, fmt.Errorf("suite: group commitment is not a secp256k1 point")
	}
	y, ok := Y.(*curve.Secp256k1Point)
	if !ok {
		return nil, fmt.Errorf("suite: public key is not a secp256k1 point")
	}
	m := sha256.Sum256(message)
	return taproot.Challenge(r.XBytes(), y.XBytes(), m[:]), nil
}

func (secp256k1Suite) RequiresNegation(p curve.Point) bool {
	point, ok := p.(*curve.Secp256k1Point)
	return ok && !point.IsIdentity() && !point.HasEvenY()
}

func (secp256k1Suite) EncodePublicKey(Y curve.Point) []byte {
	point, ok := Y.(*curve.Secp256k1Point)
	if !ok {
		return nil
	}
	return point.XBytes()
}

func (secp256k1Suite) EncodeSignature(R curve.Point, z curve.Scalar) []byte {
	point, ok := R.(*curve.Secp256k1Point)
	if !ok {
		return nil
	}
	if _, ok = z.(*curve.Secp256k1Scalar); !ok {
		return nil
	}
	out := make([]byte, 0, taproot.SignatureLen)
	out = append(out, point.XBytes()...)
	out = append(out, curve.MustMarshal(z)...)
	return out
}

func (s secp256k1Suite) Verify(Y curve.Point, message, signature []byte) bool {
	point, ok := Y.(*curve.Secp256k1Point)
	if !ok {
		return false
	}
	m := sha256.Sum256(message)
	return taproot.PublicKey(point.XBytes()).Verify(signature, m[:])
}
