package keygen

import (
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/polynomial"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	zksch "github.com/taurusgroup/frost-wallet/pkg/zk/sch"
)

// Round1Message is broadcast by every participant.
type Round1Message struct {
	// Commitments are the encoded coefficients of Phi_i = f_i(X)•G
	Commitments [][]byte `cbor:"commitments"`
	// ProofC and ProofZ form a proof of knowledge of f_i(0)
	ProofC []byte `cbor:"proof_c"`
	ProofZ []byte `cbor:"proof_z"`
}

// Start samples the secret polynomial f_i and returns the Round1 broadcast.
//
// Round1 messages received before Start are kept, so that for a single
// participant the key package is available as soon as Start returns.
func (e *Engine) Start() ([]*protocol.Message, error) {
	if e.state != StateInit {
		return nil, fmt.Errorf("%w: keygen already started", protocol.ErrWrongState)
	}
	group := e.Group()

	// f_i(X) of degree t-1, with a random constant a_i0
	e.f_i = polynomial.NewPolynomial(e.Rand(), group, e.Threshold()-1, nil)
	Phi_i := polynomial.NewPolynomialExponent(e.f_i)

	// σ_i = proof of knowledge of a_i0, bound to the SSID and our index
	proof, err := zksch.NewProof(e.Rand(), e.HashForIndex(e.SelfIndex()), Phi_i.Constant(), e.f_i.Constant())
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}
	commitments, err := Phi_i.MarshalPoints()
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}
	proofC, proofZ, err := proof.Bytes()
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}

	content := &Round1Message{
		Commitments: commitments,
		ProofC:      proofC,
		ProofZ:      proofZ,
	}
	e.Phi[e.SelfIndex()] = Phi_i
	e.broadcasts[e.SelfIndex()] = content
	e.shareFrom[e.SelfIndex()] = e.f_i.Evaluate(e.SelfIndex().Scalar(group))

	msg, err := e.Message(0, 1, content)
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}
	e.advance(StateRound1)

	out, err := e.progress()
	if err != nil {
		return nil, err
	}
	if e.state == StateFinalize {
		if _, err = e.Finalize(); err != nil {
			return nil, err
		}
	}
	return append([]*protocol.Message{msg}, out...), nil
}

// progress moves to the next state once all the messages of the current round
// were received, and returns the messages to send.
func (e *Engine) progress() ([]*protocol.Message, error) {
	var out []*protocol.Message
	if e.state == StateRound1 && len(e.Phi) == e.N() {
		if err := e.computeEcho(); err != nil {
			return nil, err
		}
		msgs, err := e.sendShares()
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
		e.advance(StateRound2)
	}
	if e.state == StateRound2 && len(e.shareBytes) == e.N()-1 {
		if err := e.verifyShares(); err != nil {
			return nil, err
		}
		e.advance(StateFinalize)
	}
	return out, nil
}

// computeEcho hashes the Round1 messages of all participants in index order.
// Every participant sends this hash with its shares, so that a party showing
// different commitments to different peers is detected.
func (e *Engine) computeEcho() error {
	h := e.HashForIndex(0)
	for _, l := range e.Info().Indices() {
		msg := e.broadcasts[l]
		if err := h.WriteAny(l); err != nil {
			return e.fail(protocol.ConfigurationError, 0, err)
		}
		for _, c := range msg.Commitments {
			if err := h.WriteAny(c); err != nil {
				return e.fail(protocol.ConfigurationError, 0, err)
			}
		}
		if err := h.WriteAny(msg.ProofC, msg.ProofZ); err != nil {
			return e.fail(protocol.ConfigurationError, 0, err)
		}
	}
	e.echo = h.Sum()
	e.broadcasts = nil
	return nil
}
