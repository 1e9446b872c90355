package sign

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/polynomial"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

// ShareMessage carries the signature share zᵢ of a signer.
type ShareMessage struct {
	Share []byte `cbor:"share"`
}

// GenerateShare consumes our nonces and returns our signature share for
// every other signer.
//
// It requires the commitments of all signers. The nonces can only be
// consumed once, so a second call fails with ErrNoncesAlreadyConsumed.
func (e *Engine) GenerateShare() ([]*protocol.Message, error) {
	switch e.state {
	case StateFailed:
		return nil, e.err
	case StateIdle, StateCommitPhase:
		return nil, protocol.NewError(protocol.ProtocolViolation, 0, ErrIncompleteCommitments)
	case StateAggregate, StateComplete:
		return nil, protocol.NewError(protocol.ProtocolViolation, 0, ErrNoncesAlreadyConsumed)
	}
	if err := e.CheckTimeout(); err != nil {
		return nil, err
	}

	nonces, err := e.store.GetAndConsume(e.nonceKey)
	switch {
	case errors.Is(err, nonce.ErrAlreadyConsumed):
		return nil, protocol.NewError(protocol.ProtocolViolation, 0, fmt.Errorf("%w: %w", ErrNoncesAlreadyConsumed, err))
	case err != nil:
		// evicted after the TTL or pushed out of a full store
		return nil, e.fail(protocol.ResourceExhaustion, 0, err)
	}
	defer nonces.Zeroize()
	d_i, e_i := nonces.Hiding, nonces.Binding

	group := e.Group()
	s := e.Suite()
	self := e.SelfIndex()

	// ρₗ = H("rho", Y, m, B, l) where B is the list of all commitments
	Y := curve.MustMarshal(e.key.GroupPublicKey)
	B := e.encodeCommitments()
	rho := make(map[party.Index]curve.Scalar, len(e.signers))
	for _, l := range e.signers {
		rho[l] = s.HashToScalar("rho", Y, e.message, B, l.Bytes())
	}

	// R = ∑ₗ Dₗ + ρₗ⋅Eₗ
	R := group.NewPoint()
	RShares := make(map[party.Index]curve.Point, len(e.signers))
	for _, l := range e.signers {
		RShares[l] = rho[l].Act(e.E[l]).Add(e.D[l])
		R = R.Add(RShares[l])
	}
	if R.IsIdentity() {
		return nil, e.fail(protocol.VerificationFailure, 0, errors.New("sign: group commitment is the identity"))
	}

	// BIP-340 requires R with an even y coordinate. Negating k = ∑ᵢ (dᵢ + eᵢ⋅ρᵢ)
	// amounts to negating every dᵢ, eᵢ, and so every Rᵢ.
	if s.RequiresNegation(R) {
		R = R.Negate()
		d_i.Negate()
		e_i.Negate()
		for l, R_l := range RShares {
			RShares[l] = R_l.Negate()
		}
	}

	c, err := s.Challenge(R, e.key.GroupPublicKey, e.message)
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}

	Lambdas := polynomial.Lagrange(group, e.signers)

	// zᵢ = dᵢ + (eᵢ ρᵢ) + λᵢ sᵢ c
	z_i := group.NewScalar().Set(Lambdas[self]).Mul(e.key.SigningShare).Mul(c)
	z_i.Add(d_i)
	z_i.Add(group.NewScalar().Set(rho[self]).Mul(e_i))

	e.R = R
	e.RShares = RShares
	e.c = c
	e.Lambdas = Lambdas
	e.z_i = z_i

	out, err := e.MessagesTo(e.signers, 2, &ShareMessage{Share: curve.MustMarshal(z_i)})
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}
	e.advance(StateAggregate)
	return out, nil
}

// encodeCommitments returns l || Dₗ || Eₗ for every signer l, in index order.
func (e *Engine) encodeCommitments() []byte {
	var out []byte
	for _, l := range e.signers {
		out = append(out, l.Bytes()...)
		out = append(out, curve.MustMarshal(e.D[l])...)
		out = append(out, curve.MustMarshal(e.E[l])...)
	}
	return out
}

// ReceiveShare stores the signature share of from.
//
// Shares may arrive before our own share was generated; they are verified once
// all of them are present.
func (e *Engine) ReceiveShare(from party.Index, msg *ShareMessage) error {
	if err := e.checkActive(); err != nil {
		return err
	}
	if err := e.checkSigner(from); err != nil {
		return err
	}
	if _, ok := e.shareBytes[from]; ok {
		return e.fail(protocol.ProtocolViolation, from, protocol.ErrDuplicateMessage)
	}
	if len(msg.Share) == 0 {
		return e.fail(protocol.ProtocolViolation, from, fmt.Errorf("%w: empty share", protocol.ErrMalformedContent))
	}
	e.shareBytes[from] = append([]byte(nil), msg.Share...)
	return nil
}
