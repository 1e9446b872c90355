package nonce

import (
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/sample"
)

// SigningNonces is the secret pair (d, e) a participant commits to in the
// first round of signing. It must be used for at most one signature share.
type SigningNonces struct {
	// Hiding is the nonce d.
	Hiding curve.Scalar
	// Binding is the nonce e, scaled by the binding factor.
	Binding curve.Scalar
}

// SigningCommitments is the public pair (D, E) = (d⋅G, e⋅G).
type SigningCommitments struct {
	Hiding  curve.Point
	Binding curve.Point
}

// New samples fresh nonces and returns them together with their commitments.
func New(rand io.Reader, group curve.Curve) (*SigningNonces, *SigningCommitments) {
	nonces := &SigningNonces{
		Hiding:  sample.ScalarUnit(rand, group),
		Binding: sample.ScalarUnit(rand, group),
	}
	return nonces, nonces.Commitments()
}

// Commitments recomputes the public commitments of the nonces.
func (n *SigningNonces) Commitments() *SigningCommitments {
	return &SigningCommitments{
		Hiding:  n.Hiding.ActOnBase(),
		Binding: n.Binding.ActOnBase(),
	}
}

// Zeroize overwrites both nonces with zero.
func (n *SigningNonces) Zeroize() {
	if n == nil {
		return
	}
	for _, s := range []curve.Scalar{n.Hiding, n.Binding} {
		if s != nil {
			s.Set(s.Curve().NewScalar())
		}
	}
}

// IsZero reports whether both nonces were zeroized.
func (n *SigningNonces) IsZero() bool {
	return n.Hiding.IsZero() && n.Binding.IsZero()
}

// Validate rejects commitments containing the identity.
func (c *SigningCommitments) Validate() error {
	if c.Hiding == nil || c.Binding == nil {
		return errors.New("nonce: missing commitment")
	}
	if c.Hiding.IsIdentity() || c.Binding.IsIdentity() {
		return errors.New("nonce: commitment is the identity")
	}
	return nil
}

// MarshalPoints returns the encodings of D and E.
func (c *SigningCommitments) MarshalPoints() (hiding, binding []byte, err error) {
	if hiding, err = c.Hiding.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if binding, err = c.Binding.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return hiding, binding, nil
}

// UnmarshalCommitments decodes and validates a pair of commitments.
func UnmarshalCommitments(group curve.Curve, hiding, binding []byte) (*SigningCommitments, error) {
	c := &SigningCommitments{Hiding: group.NewPoint(), Binding: group.NewPoint()}
	if err := c.Hiding.UnmarshalBinary(hiding); err != nil {
		return nil, fmt.Errorf("nonce: hiding commitment: %w", err)
	}
	if err := c.Binding.UnmarshalBinary(binding); err != nil {
		return nil, fmt.Errorf("nonce: binding commitment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
