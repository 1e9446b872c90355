package keygen

import (
	"bytes"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

// ReceiveRound2 stores the share f_l(i) sent by from.
//
// Shares may arrive before all Round1 commitments; they are verified together
// once every commitment and share is present.
func (e *Engine) ReceiveRound2(from party.Index, msg *Round2Message) ([]*protocol.Message, error) {
	if err := e.checkActive(); err != nil {
		return nil, err
	}
	if err := e.checkSender(from); err != nil {
		return nil, err
	}
	if _, ok := e.shareBytes[from]; ok || e.state > StateRound2 {
		return nil, e.fail(protocol.ProtocolViolation, from, protocol.ErrDuplicateMessage)
	}
	e.shareBytes[from] = append([]byte(nil), msg.Share...)
	e.echoFrom[from] = append([]byte(nil), msg.EchoHash...)
	if e.state == StateInit {
		return nil, nil
	}
	return e.progress()
}

// verifyShares checks that every participant received the same Round1
// messages as we did, and that f_l(i)•G = Phi_l(i) for every received share.
//
// An inconsistent echo names no culprit: it cannot tell the participant who
// sent different commitments from the one who lied about them.
func (e *Engine) verifyShares() error {
	for _, l := range e.OtherIndices() {
		if !bytes.Equal(e.echoFrom[l], e.echo) {
			return e.fail(protocol.VerificationFailure, 0, fmt.Errorf("%w: echo of %d differs", ErrInconsistentBroadcast, l))
		}
	}

	group := e.Group()
	x := e.SelfIndex().Scalar(group)
	others := e.OtherIndices()
	shares := pool.Parallelize(e.Pool(), len(others), func(k int) curve.Scalar {
		l := others[k]
		share := group.NewScalar()
		if err := share.UnmarshalBinary(e.shareBytes[l]); err != nil {
			return nil
		}
		if !share.ActOnBase().Equal(e.Phi[l].Evaluate(x)) {
			return nil
		}
		return share
	})
	for k, l := range others {
		if shares[k] == nil {
			return e.fail(protocol.VerificationFailure, l, ErrShareVerificationFailed)
		}
		e.shareFrom[l] = shares[k]
	}
	for l, data := range e.shareBytes {
		for i := range data {
			data[i] = 0
		}
		delete(e.shareBytes, l)
	}
	return nil
}
