package session

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/hash"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

var (
	// ErrIndexNotFound is returned when an identity or index is not part of the session.
	ErrIndexNotFound = errors.New("session: participant not found")
	// ErrInvalidThreshold is returned when the threshold is not in [1, n].
	ErrInvalidThreshold = errors.New("session: invalid threshold")
	// ErrInvalidParticipants is returned when identities are empty or repeated.
	ErrInvalidParticipants = errors.New("session: participants must be unique and non-empty")
	// ErrSessionFrozen is returned when mutating a session after it was frozen.
	ErrSessionFrozen = errors.New("session: participant set is frozen")
)

// Info is a snapshot of a session's configuration, handed to the protocol engines.
//
// The order of Participants is fixed: the Index of a participant is one more
// than its position, and every party must agree on that order.
type Info struct {
	// SessionID distinguishes sessions with the same participants.
	SessionID string
	// Participants is the ordered list of identities.
	Participants party.IDSlice
	// Threshold is the number t of participants needed to sign.
	Threshold int
	// Suite is the tag of the signature scheme used by this session.
	Suite suite.Tag
}

// Total returns the number n of participants.
func (info Info) Total() int {
	return len(info.Participants)
}

// Validate checks that the threshold and participants are consistent, and
// that the suite tag is known.
func (info Info) Validate() error {
	if !info.Participants.Valid() {
		return ErrInvalidParticipants
	}
	n := info.Total()
	if n > party.MaxIndex {
		return fmt.Errorf("session: too many participants (%d)", n)
	}
	if info.Threshold < 1 || info.Threshold > n {
		return fmt.Errorf("%w: t=%d, n=%d", ErrInvalidThreshold, info.Threshold, n)
	}
	if _, err := suite.FromTag(info.Suite); err != nil {
		return err
	}
	return nil
}

// IndexOf returns the Index of id. It is computed from the participant list
// on every call.
func (info Info) IndexOf(id party.ID) (party.Index, error) {
	index, ok := info.Participants.IndexOf(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrIndexNotFound, string(id))
	}
	return index, nil
}

// IDOf returns the identity with the given Index.
func (info Info) IDOf(index party.Index) (party.ID, error) {
	if index == 0 || int(index) > info.Total() {
		return "", fmt.Errorf("%w: index %d", ErrIndexNotFound, index)
	}
	return info.Participants[index-1], nil
}

// Indices returns the indices of all participants, [1, …, n].
func (info Info) Indices() party.IndexSlice {
	out := make(party.IndexSlice, info.Total())
	for i := range out {
		out[i] = party.Index(i + 1)
	}
	return out
}

// Clone returns a deep copy of info.
func (info Info) Clone() Info {
	info.Participants = info.Participants.Copy()
	return info
}

// SSID returns a digest binding every field of the session, used to
// correlate protocol messages with the session they belong to.
func (info Info) SSID() []byte {
	h := hash.New()
	_ = h.WriteAny(
		hash.BytesWithDomain{TheDomain: "Session ID", Bytes: []byte(info.SessionID)},
		info.Suite,
		info.Participants,
		hash.BytesWithDomain{TheDomain: "Threshold", Bytes: party.Index(info.Threshold).Bytes()},
	)
	return h.Sum()
}
