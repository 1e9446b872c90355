package sign

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

// CommitmentMessage carries the nonce commitments (Dᵢ, Eᵢ) of a signer.
type CommitmentMessage struct {
	Hiding  []byte `cbor:"hiding"`
	Binding []byte `cbor:"binding"`
}

// BeginSigning selects the signers, samples our nonces and returns our
// commitments for every other signer.
//
// operationID must be unique: the nonces are stored under it, and a store
// never accepts the same operation twice. Configuration errors leave the
// engine Idle.
func (e *Engine) BeginSigning(operationID string, message []byte, subset []party.ID) ([]*protocol.Message, error) {
	if e.state != StateIdle {
		return nil, fmt.Errorf("%w: signing already begun", protocol.ErrWrongState)
	}
	if operationID == "" {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, errors.New("sign: empty operation id"))
	}

	indices := make([]party.Index, 0, len(subset))
	for _, id := range subset {
		index, err := e.Info().IndexOf(id)
		if err != nil {
			return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
		}
		indices = append(indices, index)
	}
	signers := party.NewIndexSlice(indices)
	if !signers.Valid() {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, errors.New("sign: duplicate signers"))
	}
	if len(signers) < e.Threshold() {
		return nil, protocol.NewError(protocol.ConfigurationError, 0,
			fmt.Errorf("%w: got %d, need %d", ErrInsufficientParticipants, len(signers), e.Threshold()))
	}
	if !signers.Contains(e.SelfIndex()) {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, ErrNotSigner)
	}

	// every message of this operation is bound to the operation id, the
	// message and the signers
	if err := e.Bind(operation(operationID), messageHash(message), signers); err != nil {
		return nil, err
	}

	nonceKey := fmt.Sprintf("%s/%d", operationID, e.SelfIndex())
	d_i, commitments := nonce.New(e.Rand(), e.Group())
	if err := e.store.Put(nonceKey, d_i); err != nil {
		d_i.Zeroize()
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}
	hiding, binding, err := commitments.MarshalPoints()
	if err != nil {
		e.store.Discard(nonceKey)
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}

	e.operationID = operationID
	e.nonceKey = nonceKey
	e.message = append([]byte(nil), message...)
	e.signers = signers
	e.D[e.SelfIndex()] = commitments.Hiding
	e.E[e.SelfIndex()] = commitments.Binding

	out, err := e.MessagesTo(signers, 1, &CommitmentMessage{Hiding: hiding, Binding: binding})
	if err != nil {
		return nil, e.fail(protocol.ConfigurationError, 0, err)
	}
	e.Log = e.Log.With().Str("operation", operationID).Logger()
	e.Log.Info().Int("signers", len(signers)).Msg("signing begun")
	e.advance(StateCommitPhase)
	e.commitmentsComplete()
	return out, nil
}

// CollectCommitment stores the nonce commitments of the signer from.
//
// Once the commitments of all signers are present the engine moves to the
// SharePhase.
func (e *Engine) CollectCommitment(from party.Index, msg *CommitmentMessage) error {
	if err := e.checkActive(); err != nil {
		return err
	}
	if err := e.checkSigner(from); err != nil {
		return err
	}
	if _, ok := e.D[from]; ok || e.state > StateCommitPhase {
		return e.fail(protocol.ProtocolViolation, from, protocol.ErrDuplicateMessage)
	}

	// identity commitments are rejected here
	commitments, err := nonce.UnmarshalCommitments(e.Group(), msg.Hiding, msg.Binding)
	if err != nil {
		return e.fail(protocol.VerificationFailure, from, fmt.Errorf("%w: %v", ErrInvalidCommitment, err))
	}

	e.D[from] = commitments.Hiding
	e.E[from] = commitments.Binding
	e.commitmentsComplete()
	return nil
}

func (e *Engine) commitmentsComplete() {
	if e.state == StateCommitPhase && len(e.D) == len(e.signers) {
		e.advance(StateSharePhase)
	}
}
