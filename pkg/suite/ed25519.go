package suite

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

const ed25519Context = "FROST-ED25519-SHA512-v1"

// ed25519Suite produces signatures verifiable by any RFC 8032 Ed25519 verifier.
type ed25519Suite struct{}

func (ed25519Suite) Tag() Tag {
	return Ed25519SHA512
}

func (ed25519Suite) Group() curve.Curve {
	return curve.Edwards25519{}
}

func (ed25519Suite) HashToScalar(domain string, data ...[]byte) curve.Scalar {
	h := sha512.New()
	h.Write([]byte(ed25519Context))
	frame(h, domain, data...)
	s, err := curve.Edwards25519{}.ScalarFromUniformBytes(h.Sum(nil))
	if err != nil {
		panic(fmt.Sprintf("suite: sha512 output rejected: %v", err))
	}
	return s
}

// Challenge computes SHA-512(R ‖ A ‖ M) mod L, as in RFC 8032.
func (ed25519Suite) Challenge(R, Y curve.Point, message []byte) (curve.Scalar, error) {
	rBytes, err := R.MarshalBinary()
	if err != nil {
		return nil, err
	}
	yBytes, err := Y.MarshalBinary()
	if err != nil {
		return nil, err
	}
	h := sha512.New()
	h.Write(rBytes)
	h.Write(yBytes)
	h.Write(message)
	return curve.Edwards25519{}.ScalarFromUniformBytes(h.Sum(nil))
}

func (ed25519Suite) RequiresNegation(curve.Point) bool {
	return false
}

func (ed25519Suite) EncodePublicKey(Y curve.Point) []byte {
	if _, ok := Y.(*curve.Edwards25519Point); !ok {
		return nil
	}
	return curve.MustMarshal(Y)
}

func (ed25519Suite) EncodeSignature(R curve.Point, z curve.Scalar) []byte {
	if _, ok := R.(*curve.Edwards25519Point); !ok {
		return nil
	}
	if _, ok := z.(*curve.Edwards25519Scalar); !ok {
		return nil
	}
	out := make([]byte, 0, ed25519.SignatureSize)
	out = append(out, curve.MustMarshal(R)...)
	out = append(out, curve.MustMarshal(z)...)
	return out
}

func (ed25519Suite) Verify(Y curve.Point, message, signature []byte) bool {
	pub, err := Y.MarshalBinary()
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}
