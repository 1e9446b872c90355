// Package keygen implements the distributed key generation of FROST: a
// Pedersen DKG in which every participant deals a Feldman-verifiable sharing
// of a random secret, and proves knowledge of it.
package keygen

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/internal/round"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/polynomial"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
)

// ProtocolID identifies keygen messages.
const ProtocolID = "frost/keygen"

var (
	// ErrShareVerificationFailed is returned when a secret share does not match
	// the sender's commitment.
	ErrShareVerificationFailed = errors.New("keygen: share verification failed")
	// ErrInvalidProof is returned when a proof of knowledge does not verify.
	ErrInvalidProof = errors.New("keygen: invalid proof of knowledge")
	// ErrInvalidCommitment is returned when a commitment is malformed or has the wrong degree.
	ErrInvalidCommitment = errors.New("keygen: invalid commitment")
	// ErrInconsistentBroadcast is returned when another participant received
	// different Round1 broadcasts than we did.
	ErrInconsistentBroadcast = errors.New("keygen: participants received different broadcasts")
)

// State is the phase of a key generation.
type State uint8

const (
	StateInit State = iota
	StateRound1
	StateRound2
	StateFinalize
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRound1:
		return "round1"
	case StateRound2:
		return "round2"
	case StateFinalize:
		return "finalize"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Engine runs one key generation for the local participant.
//
// All n participants must take part; the resulting key can be used by any t of them.
type Engine struct {
	*round.Helper

	state State
	err   error

	// f_i is our secret polynomial of degree t-1
	f_i *polynomial.Polynomial
	// Phi[l] is the commitment to f_l broadcast by l, including ourselves
	Phi map[party.Index]*polynomial.Exponent
	// broadcasts[l] is the Round1 message of l, until echo is computed
	broadcasts map[party.Index]*Round1Message
	// echo is the hash of all Round1 messages as we received them
	echo []byte
	// echoFrom[l] is the echo hash sent by l along with its share
	echoFrom map[party.Index][]byte
	// shareBytes[l] is the encoded f_l(i) sent to us by l, until it is verified
	shareBytes map[party.Index][]byte
	// shareFrom[l] is the verified f_l(i), including our own
	shareFrom map[party.Index]curve.Scalar

	result *KeyPackage
}

// New returns an engine in the Init state, for the participant selfID of the session.
func New(info session.Info, selfID party.ID, opts ...protocol.Option) (*Engine, error) {
	helper, err := round.NewHelper(ProtocolID, info, selfID, protocol.NewOptions(opts...))
	if err != nil {
		return nil, err
	}
	return &Engine{
		Helper:     helper,
		state:      StateInit,
		Phi:        make(map[party.Index]*polynomial.Exponent, info.Total()),
		broadcasts: make(map[party.Index]*Round1Message, info.Total()),
		echoFrom:   make(map[party.Index][]byte, info.Total()),
		shareBytes: make(map[party.Index][]byte, info.Total()),
		shareFrom:  make(map[party.Index]curve.Scalar, info.Total()),
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

// Err returns the reason the engine failed, if it did.
func (e *Engine) Err() error {
	return e.err
}

// Result implements protocol.Engine, returning a *KeyPackage.
func (e *Engine) Result() (interface{}, error) {
	switch e.state {
	case StateComplete:
		return e.result, nil
	case StateFailed:
		return nil, e.err
	default:
		return nil, fmt.Errorf("%w: keygen is in state %s", protocol.ErrWrongState, e.state)
	}
}

// Handle implements protocol.Engine. Once all shares are verified, the key
// package is computed right away.
func (e *Engine) Handle(msg *protocol.Message) ([]*protocol.Message, error) {
	var (
		out []*protocol.Message
		err error
	)
	switch msg.Round {
	case 1:
		if !msg.Broadcast() {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, errors.New("keygen: commitment was not broadcast"))
		}
		var content Round1Message
		if err = msg.UnmarshalContent(&content); err != nil {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, err)
		}
		out, err = e.ReceiveRound1(msg.From, &content)
	case 2:
		if msg.Broadcast() {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, errors.New("keygen: share was broadcast"))
		}
		var content Round2Message
		if err = msg.UnmarshalContent(&content); err != nil {
			return nil, e.fail(protocol.ProtocolViolation, msg.From, err)
		}
		out, err = e.ReceiveRound2(msg.From, &content)
	default:
		return nil, e.fail(protocol.ProtocolViolation, msg.From, protocol.ErrUnknownRound)
	}
	if err != nil {
		return nil, err
	}
	if e.state == StateFinalize {
		if _, err = e.Finalize(); err != nil {
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

// Abort implements protocol.Engine. Secret state is erased before it returns.
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

// checkActive fails the engine if the deadline passed, and returns an error
// if it can no longer accept input.
func (e *Engine) checkActive() error {
	if e.Done() {
		if e.err != nil {
			return e.err
		}
		return fmt.Errorf("%w: keygen is complete", protocol.ErrWrongState)
	}
	return e.CheckTimeout()
}

// checkSender validates that from is another participant of the session.
func (e *Engine) checkSender(from party.Index) error {
	if !e.OtherIndices().Contains(from) {
		return e.fail(protocol.ProtocolViolation, from, protocol.ErrUnknownSender)
	}
	return nil
}

// fail moves the engine to Failed, erasing all secrets.
func (e *Engine) fail(kind protocol.Kind, culprit party.Index, err error) error {
	e.err = protocol.NewError(kind, culprit, err)
	e.state = StateFailed
	e.zeroize()
	e.Log.Warn().Err(e.err).Msg("keygen failed")
	return e.err
}

func (e *Engine) zeroize() {
	if e.f_i != nil {
		e.f_i.Zeroize()
		e.f_i = nil
	}
	for l, share := range e.shareFrom {
		share.Set(e.Group().NewScalar())
		delete(e.shareFrom, l)
	}
	for l, data := range e.shareBytes {
		for i := range data {
			data[i] = 0
		}
		delete(e.shareBytes, l)
	}
}

func (e *Engine) advance(next State) {
	e.state = next
	e.ResetDeadline()
	e.Log.Debug().Stringer("state", next).Msg("keygen advanced")
}
