package zksch

import (
	"fmt"
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/hash"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/sample"
)

// Proof is a Schnorr proof of knowledge of the discrete logarithm x of a
// public point X = x⋅G.
type Proof struct {
	// C = k⋅G
	C curve.Point
	// Z = k + e⋅x
	Z curve.Scalar
}

// challenge derives e from the transcript, which the caller has already bound
// to the session and prover.
func challenge(hash *hash.Hash, group curve.Curve, C, X curve.Point) (curve.Scalar, error) {
	if err := hash.WriteAny(C, X); err != nil {
		return nil, err
	}
	return sample.Scalar(hash.Digest(), group), nil
}

// NewProof proves knowledge of private, such that public = private⋅G.
func NewProof(rand io.Reader, hash *hash.Hash, public curve.Point, private curve.Scalar) (*Proof, error) {
	group := private.Curve()
	k, C := sample.ScalarPointPair(rand, group)

	e, err := challenge(hash, group, C, public)
	if err != nil {
		return nil, err
	}
	// z = k + e⋅x
	z := e.Mul(private).Add(k)
	k.Set(group.NewScalar())
	return &Proof{C: C, Z: z}, nil
}

// IsValid checks that the proof is well formed.
func (p *Proof) IsValid() bool {
	if p == nil || p.C == nil || p.Z == nil {
		return false
	}
	return !p.C.IsIdentity() && !p.Z.IsZero()
}

// Verify checks the proof against the public point X, using a transcript
// initialized exactly as the prover's.
func (p *Proof) Verify(hash *hash.Hash, X curve.Point) bool {
	if !p.IsValid() || X == nil || X.IsIdentity() {
		return false
	}
	e, err := challenge(hash, X.Curve(), p.C, X)
	if err != nil {
		return false
	}

	// z⋅G == C + e⋅X
	lhs := p.Z.ActOnBase()
	rhs := e.Act(X).Add(p.C)
	return lhs.Equal(rhs)
}

// Bytes returns the encodings of C and Z.
func (p *Proof) Bytes() (commitment, response []byte, err error) {
	if commitment, err = p.C.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if response, err = p.Z.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return commitment, response, nil
}

// ProofFromBytes decodes a proof produced by Bytes.
func ProofFromBytes(group curve.Curve, commitment, response []byte) (*Proof, error) {
	p := &Proof{C: group.NewPoint(), Z: group.NewScalar()}
	if err := p.C.UnmarshalBinary(commitment); err != nil {
		return nil, fmt.Errorf("zksch: commitment: %w", err)
	}
	if err := p.Z.UnmarshalBinary(response); err != nil {
		return nil, fmt.Errorf("zksch: response: %w", err)
	}
	return p, nil
}
