package keygen

import (
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/polynomial"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	zksch "github.com/taurusgroup/frost-wallet/pkg/zk/sch"
)

// Round2Message is sent to each participant individually.
type Round2Message struct {
	// Share is f_i(j) for the recipient j
	Share []byte `cbor:"share"`
	// EchoHash is the hash of all Round1 messages received by the sender
	EchoHash []byte `cbor:"echo_hash"`
}

// ReceiveRound1 stores the commitment broadcast by from, after checking its
// degree and the proof of knowledge of its constant term.
//
// Once all commitments are received, the shares f_i(j) are returned for
// every other participant j.
func (e *Engine) ReceiveRound1(from party.Index, msg *Round1Message) ([]*protocol.Message, error) {
	if err := e.checkActive(); err != nil {
		return nil, err
	}
	if err := e.checkSender(from); err != nil {
		return nil, err
	}
	if _, ok := e.Phi[from]; ok || e.state > StateRound1 {
		return nil, e.fail(protocol.ProtocolViolation, from, protocol.ErrDuplicateMessage)
	}

	group := e.Group()
	Phi_l, err := polynomial.UnmarshalExponent(group, msg.Commitments)
	if err != nil || Phi_l.Degree() != e.Threshold()-1 {
		return nil, e.fail(protocol.VerificationFailure, from, ErrInvalidCommitment)
	}
	proof, err := zksch.ProofFromBytes(group, msg.ProofC, msg.ProofZ)
	if err != nil || !proof.Verify(e.HashForIndex(from), Phi_l.Constant()) {
		return nil, e.fail(protocol.VerificationFailure, from, ErrInvalidProof)
	}

	e.Phi[from] = Phi_l
	e.broadcasts[from] = msg
	if e.state == StateInit {
		return nil, nil
	}
	return e.progress()
}

// sendShares evaluates f_i for every other participant.
func (e *Engine) sendShares() ([]*protocol.Message, error) {
	group := e.Group()
	out := make([]*protocol.Message, 0, len(e.OtherIndices()))
	for _, j := range e.OtherIndices() {
		share := e.f_i.Evaluate(j.Scalar(group))
		data := curve.MustMarshal(share)
		share.Set(group.NewScalar())
		msg, err := e.Message(j, 2, &Round2Message{Share: data, EchoHash: e.echo})
		if err != nil {
			return nil, e.fail(protocol.ConfigurationError, 0, err)
		}
		out = append(out, msg)
	}
	// f_i is no longer needed, only f_i(i) is kept
	e.f_i.Zeroize()
	e.f_i = nil
	return out, nil
}
