package round

import (
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/hash"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

// Helper holds the static information shared by every state of a protocol
// engine, and can be embedded in it.
type Helper struct {
	info       session.Info
	suite      suite.Suite
	protocolID string

	self   party.Index
	selfID party.ID
	// others are the indices of all participants except self
	others party.IndexSlice

	// ssid the unique identifier for this protocol execution
	ssid []byte
	hash *hash.Hash

	clock    clock.Clock
	timeout  time.Duration
	deadline time.Time
	rand     io.Reader
	pool     *pool.Pool

	Log zerolog.Logger
}

// NewHelper validates info, locates selfID in it and derives the SSID of the
// protocol execution from the session and the optional auxInfo.
func NewHelper(protocolID string, info session.Info, selfID party.ID, opts protocol.Options, auxInfo ...hash.WriterToWithDomain) (*Helper, error) {
	info = info.Clone()
	if err := info.Validate(); err != nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}
	self, err := info.IndexOf(selfID)
	if err != nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}
	s, err := suite.FromTag(info.Suite)
	if err != nil {
		return nil, protocol.NewError(protocol.ConfigurationError, 0, err)
	}

	h := &Helper{
		info:       info,
		suite:      s,
		protocolID: protocolID,
		self:       self,
		selfID:     selfID,
		others:     info.Indices().Remove(self),
		clock:      opts.Clock,
		timeout:    opts.RoundTimeout,
		rand:       opts.Rand,
		pool:       opts.Pool,
	}
	if err = h.Bind(auxInfo...); err != nil {
		return nil, err
	}
	h.Log = opts.Logger.With().
		Str("protocol", protocolID).
		Str("party", string(selfID)).
		Stringer("index", self).
		Logger()
	return h, nil
}

// Bind resets the SSID to the digest of the session, the protocol id, and auxInfo.
func (h *Helper) Bind(auxInfo ...hash.WriterToWithDomain) error {
	state := hash.New(
		hash.BytesWithDomain{TheDomain: "Session SSID", Bytes: h.info.SSID()},
		hash.BytesWithDomain{TheDomain: "Protocol ID", Bytes: []byte(h.protocolID)},
	)
	for _, a := range auxInfo {
		if a == nil {
			continue
		}
		if err := state.WriteAny(a); err != nil {
			return protocol.NewError(protocol.ConfigurationError, 0, fmt.Errorf("session: %w", err))
		}
	}
	h.hash = state
	h.ssid = state.Clone().Sum()
	return nil
}

// HashForIndex returns a clone of the hash.Hash for this session, initialized with the given index.
func (h *Helper) HashForIndex(index party.Index) *hash.Hash {
	cloned := h.hash.Clone()
	if index != 0 {
		_ = cloned.WriteAny(index)
	}
	return cloned
}

// Message creates a message for the given recipient, or a broadcast if to is 0.
func (h *Helper) Message(to party.Index, round protocol.RoundNumber, content interface{}) (*protocol.Message, error) {
	return protocol.NewMessage(h.ssid, h.protocolID, h.self, to, round, content)
}

// MessagesTo creates one copy of the message for each recipient.
func (h *Helper) MessagesTo(recipients []party.Index, round protocol.RoundNumber, content interface{}) ([]*protocol.Message, error) {
	out := make([]*protocol.Message, 0, len(recipients))
	for _, to := range recipients {
		if to == h.self {
			continue
		}
		msg, err := h.Message(to, round, content)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// ResetDeadline starts the timer of a new round.
func (h *Helper) ResetDeadline() {
	h.deadline = h.clock.Now().Add(h.timeout)
}

// Expired returns true if the deadline of the current round passed.
func (h *Helper) Expired() bool {
	return !h.deadline.IsZero() && h.clock.Now().After(h.deadline)
}

// Deadline returns the deadline of the current round.
func (h *Helper) Deadline() time.Time {
	return h.deadline
}

// ProtocolID is an identifier for this protocol.
func (h *Helper) ProtocolID() string { return h.protocolID }

// SSID the unique identifier for this protocol execution.
func (h *Helper) SSID() []byte { return h.ssid }

// SelfIndex is this party's Index.
func (h *Helper) SelfIndex() party.Index { return h.self }

// SelfID is this party's identity.
func (h *Helper) SelfID() party.ID { return h.selfID }

// Info returns the snapshot of the session this execution runs in.
func (h *Helper) Info() session.Info { return h.info }

// OtherIndices returns the indices of all participants except self.
func (h *Helper) OtherIndices() party.IndexSlice { return h.others }

// N returns the total number of parties.
func (h *Helper) N() int { return h.info.Total() }

// Threshold returns the number of parties needed to sign.
func (h *Helper) Threshold() int { return h.info.Threshold }

// Suite returns the signature suite of the session.
func (h *Helper) Suite() suite.Suite { return h.suite }

// Group returns the curve used for this protocol.
func (h *Helper) Group() curve.Curve { return h.suite.Group() }

// Rand returns the source of randomness.
func (h *Helper) Rand() io.Reader { return h.rand }

// Pool is the worker pool for verification, possibly nil.
func (h *Helper) Pool() *pool.Pool { return h.pool }
