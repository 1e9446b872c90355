package sign

import (
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

// Aggregate verifies the share zₗ of every signer and combines them into the
// group signature.
//
// shares must contain exactly one share per signer, ours included. A share
// that does not satisfy zₗ⋅G = Rₗ + c⋅λₗ⋅Yₗ fails the signature, naming its sender.
func (e *Engine) Aggregate(shares map[party.Index]curve.Scalar) (*Signature, error) {
	switch e.state {
	case StateComplete:
		return e.signature, nil
	case StateFailed:
		return nil, e.err
	case StateAggregate:
	default:
		return nil, fmt.Errorf("%w: signing is in state %s", protocol.ErrWrongState, e.state)
	}
	if err := e.CheckTimeout(); err != nil {
		return nil, err
	}
	if len(shares) != len(e.signers) {
		return nil, protocol.NewError(protocol.ProtocolViolation, 0,
			fmt.Errorf("%w: got %d shares for %d signers", ErrIncompleteShares, len(shares), len(e.signers)))
	}
	for _, l := range e.signers {
		if shares[l] == nil {
			return nil, protocol.NewError(protocol.ProtocolViolation, 0, fmt.Errorf("%w: missing share of %d", ErrIncompleteShares, l))
		}
	}

	group := e.Group()
	valid := pool.Parallelize(e.Pool(), len(e.signers), func(k int) bool {
		l := e.signers[k]
		// zₗ⋅G = Rₗ + c⋅λₗ⋅Yₗ
		expected := group.NewScalar().Set(e.c).Mul(e.Lambdas[l]).Act(e.key.VerifyingShares[l]).Add(e.RShares[l])
		return shares[l].ActOnBase().Equal(expected)
	})
	z := group.NewScalar()
	for k, l := range e.signers {
		if !valid[k] {
			return nil, e.fail(protocol.VerificationFailure, l, ErrInvalidShare)
		}
		z.Add(shares[l])
	}

	sig := &Signature{
		Suite: e.Suite().Tag(),
		R:     e.R,
		Z:     z,
	}
	if !sig.Verify(e.key.GroupPublicKey, e.message) {
		return nil, e.fail(protocol.VerificationFailure, 0, ErrInvalidSignature)
	}

	e.signature = sig
	e.state = StateComplete
	e.discard()
	e.Log.Info().Hex("signature", sig.Bytes()).Msg("signing complete")
	return sig, nil
}

// aggregateReceived decodes the buffered shares, and aggregates them with ours.
func (e *Engine) aggregateReceived() error {
	group := e.Group()
	shares := make(map[party.Index]curve.Scalar, len(e.signers))
	shares[e.SelfIndex()] = group.NewScalar().Set(e.z_i)
	for l, data := range e.shareBytes {
		z_l := group.NewScalar()
		if err := z_l.UnmarshalBinary(data); err != nil {
			return e.fail(protocol.VerificationFailure, l, fmt.Errorf("%w: %v", ErrInvalidShare, err))
		}
		shares[l] = z_l
	}
	_, err := e.Aggregate(shares)
	return err
}
