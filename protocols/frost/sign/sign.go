// Package sign implements threshold signing with FROST, producing BIP-340
// signatures for secp256k1 keys and RFC 8032 signatures for ed25519 keys.
package sign

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/internal/round"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
)

// ProtocolID identifies signing messages.
const ProtocolID = "frost/sign"

var (
	// ErrInsufficientParticipants is returned when fewer than t signers are selected.
	ErrInsufficientParticipants = errors.New("sign: insufficient participants")
	// ErrNoncesAlreadyConsumed is returned when a share was already generated
	// for the operation.
	ErrNoncesAlreadyConsumed = errors.New("sign: nonces already consumed")
	// ErrInvalidShare is returned when a signature share does not verify.
	ErrInvalidShare = errors.New("sign: invalid signature share")
	// ErrInvalidCommitment is returned for malformed or identity nonce commitments.
	ErrInvalidCommitment = errors.New("sign: invalid nonce commitment")
	// ErrIncompleteCommitments is returned when a share is requested before all
	// commitments were collected.
	ErrIncompleteCommitments = errors.New("sign: commitments are incomplete")
	// ErrIncompleteShares is returned when the shares given to Aggregate are not
	// exactly those of the signers.
	ErrIncompleteShares = errors.New("sign: shares do not match signers")
	// ErrNotSigner is returned for participants outside the signing subset.
	ErrNotSigner = errors.New("sign: participant is not a signer")
	// ErrSuiteMismatch is returned when the key does not belong to the session.
	ErrSuiteMismatch = errors.New("sign: key does not match session")
	// ErrInvalidSignature is returned when the aggregated signature does not verify.
	ErrInvalidSignature = errors.New("sign: aggregated signature is invalid")
)

// State is the phase of a signing operation.
type State uint8

const (
	StateIdle State = iota
	StateCommitPhase
	StateSharePhase
	StateAggregate
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommitPhase:
		return "commit"
	case StateSharePhase:
		return "share"
	case StateAggregate:
		return "aggregate"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Engine runs one signing operation for the local participant.
type Engine struct {
	*round.Helper

	key   *keygen.KeyPackage
	store *nonce.Store

	state State
	err   error

	operationID string
	// nonceKey is the key of our nonces in the store
	nonceKey string
	message  []byte
	signers  party.IndexSlice

	// D[l], E[l] are the nonce commitments of signer l, ourselves included
	D map[party.Index]curve.Point
	E map[party.Index]curve.Point

	// shareBytes[l] is the encoded share of l, until it is verified
	shareBytes map[party.Index][]byte
	// z_i is our own share
	z_i curve.Scalar

	// R is the group commitment and RShares[l] = Dₗ + ρₗ⋅Eₗ, both normalized
	R       curve.Point
	RShares map[party.Index]curve.Point
	c       curve.Scalar
	Lambdas map[party.Index]curve.Scalar

	signature *Signature
}

// New returns an engine in the Idle state, signing with key for the session info.
//
// Nonces are kept in store, which can be shared by any number of engines.
func New(info session.Info, key *keygen.KeyPackage, store *nonce.Store, opts ...protocol.Option) (*Engine, error) {
	if key == nil || store == nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, errors.New("sign: missing key or nonce store"))
	}
	if key.Suite != info.Suite || key.Total != info.Total() || key.Threshold != info.Threshold {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, fmt.Errorf("%w: key is %d-of-%d %s", ErrSuiteMismatch, key.Threshold, key.Total, key.Suite))
	}
	if err := key.Validate(); err != nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}
	selfID, err := info.IDOf(key.Index)
	if err != nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}
	helper, err := round.NewHelper(ProtocolID, info, selfID, protocol.NewOptions(opts...))
	if err != nil {
		return nil, err
	}
	if key.SigningShare.Curve().Name() != helper.Group().Name() {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, ErrSuiteMismatch)
	}
	return &Engine{
		Helper:     helper,
		key:        key,
		store:      store,
		state:      StateIdle,
		D:          make(map[party.Index]curve.Point),
		E:          make(map[party.Index]curve.Point),
		shareBytes: make(map[party.Index][]byte),
	}, nil
}

// Current returns the state of the engine.
func (e *Engine) Current() State {
	return e.state
}

// State implements protocol.Engine.
func (e *Engine) State() string {
	return e.state.String()
}

// Done implements protocol.Engine.
func (e *Engine) Done() bool {
	return e.state == StateComplete || e.state == StateFailed
}

// Signers returns the committed signing subset.
func (e *Engine) Signers() party.IndexSlice {
	return e.signers
}

// Result implements protocol.Engine, returning a *Signature.
func (e *Engine) Result() (interface{}, error) {
	switch e.state {
	case StateComplete:
		return e.signature, nil
	case StateFailed:
		return nil, e.err
	default:
		return nil, fmt.Errorf("%w: signing is in state %s", protocol.ErrWrongState, e.state)
	}
}

// Start returns a protocol.StartFunc beginning the signature of message by
// subset, for use with protocol.Handler.
func (e *Engine) Start(operationID string, message []byte, subset []party.ID) protocol.StartFunc {
	return func() ([]*protocol.Message, error) {
		out, err := e.BeginSigning(operationID, message, subset)
		if err != nil {
			return nil, err
		}
		more, err := e.step()
		if err != nil {
			return nil, err
		}
		return append(out, more...), nil
	}
}

// Handle implements protocol.Engine. Shares are generated and aggregated as
// soon as the required messages are present.
func (e *Engine) Handle(msg *protocol.Message) ([]*protocol.Message, error) {
	switch msg.Round {
	case 1:
		var content CommitmentMessage
		if err := msg.UnmarshalContent(&content); err != nil {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, err)
		}
		if err := e.CollectCommitment(msg.From, &content); err != nil {
			return nil, err
		}
	case 2:
		var content ShareMessage
		if err := msg.UnmarshalContent(&content); err != nil {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, err)
		}
		if err := e.ReceiveShare(msg.From, &content); err != nil {
			return nil, err
		}
	default:
		return nil, e.fail(protocol.ProtocolViolation, msg.From, protocol.ErrUnknownRound)
	}
	return e.step()
}

// step generates our share once all commitments are present, and aggregates
// once all shares are present.
func (e *Engine) step() ([]*protocol.Message, error) {
	var out []*protocol.Message
	if e.state == StateSharePhase {
		msgs, err := e.GenerateShare()
		if err != nil {
			return nil, err
		}
		out = msgs
	}
	if e.state == StateAggregate && len(e.shareBytes) == len(e.signers)-1 {
		if err := e.aggregateReceived(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CheckTimeout implements protocol.Engine.
func (e *Engine) CheckTimeout() error {
	if e.Done() {
		return e.err
	}
	if e.Expired() {
		return e.fail(protocol.Timeout, 0, protocol.ErrTimeout)
	}
	return nil
}

// Abort implements protocol.Engine. Our nonces are discarded from the store
// before it returns.
func (e *Engine) Abort(reason error) {
	if e.Done() {
		return
	}
	err := protocol.ErrAborted
	if reason != nil {
		err = fmt.Errorf("%w: %w", protocol.ErrAborted, reason)
	}
	_ = e.fail(protocol.KindOf(reason), protocol.CulpritOf(reason), err)
}

func (e *Engine) checkActive() error {
	if e.Done() {
		if e.err != nil {
			return e.err
		}
		return fmt.Errorf("%w: signing is complete", protocol.ErrWrongState)
	}
	if e.state == StateIdle {
		return fmt.Errorf("%w: signing has not begun", protocol.ErrWrongState)
	}
	return e.CheckTimeout()
}

// checkSigner fails the engine if from is not another member of the subset.
func (e *Engine) checkSigner(from party.Index) error {
	if from == e.SelfIndex() || !e.signers.Contains(from) {
		return e.fail(protocol.ProtocolViolation, from, ErrNotSigner)
	}
	return nil
}

func (e *Engine) fail(kind protocol.Kind, culprit party.Index, err error) error {
	e.err = protocol.NewError(kind, culprit, err)
	e.state = StateFailed
	e.discard()
	e.Log.Warn().Err(e.err).Str("operation", e.operationID).Msg("signing failed")
	return e.err
}

// discard erases all transient secret state, including our nonces in the store.
func (e *Engine) discard() {
	if e.nonceKey != "" {
		e.store.Discard(e.nonceKey)
	}
	if e.z_i != nil {
		e.z_i.Set(e.Group().NewScalar())
		e.z_i = nil
	}
	for l := range e.shareBytes {
		delete(e.shareBytes, l)
	}
}

func (e *Engine) advance(next State) {
	e.state = next
	e.ResetDeadline()
	e.Log.Debug().Stringer("state", next).Str("operation", e.operationID).Msg("signing advanced")
}
