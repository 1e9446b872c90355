package session

import (
	"fmt"
	"sync"

	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

// Session is the live, mutable registry of participants for a wallet.
//
// Participants may join or leave until Freeze is called, typically right
// before a DKG starts. Every read goes through the current participant list,
// so indices are never cached across changes.
type Session struct {
	mtx    sync.RWMutex
	info   Info
	frozen bool
}

// New creates an empty session for the given suite.
func New(sessionID string, tag suite.Tag) *Session {
	return &Session{info: Info{SessionID: sessionID, Suite: tag}}
}

// AddParticipant appends id to the participant list.
func (s *Session) AddParticipant(id party.ID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}
	if id == "" || s.info.Participants.Contains(id) {
		return fmt.Errorf("%w: %q", ErrInvalidParticipants, string(id))
	}
	s.info.Participants = append(s.info.Participants, id)
	return nil
}

// RemoveParticipant removes id, shifting the indices of later participants.
func (s *Session) RemoveParticipant(id party.ID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}
	index, err := s.info.IndexOf(id)
	if err != nil {
		return err
	}
	pos := int(index) - 1
	participants := s.info.Participants.Copy()
	s.info.Participants = append(participants[:pos], participants[pos+1:]...)
	return nil
}

// SetThreshold sets t. It is validated against n when the session is frozen.
func (s *Session) SetThreshold(t int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.frozen {
		return ErrSessionFrozen
	}
	if t < 1 {
		return fmt.Errorf("%w: t=%d", ErrInvalidThreshold, t)
	}
	s.info.Threshold = t
	return nil
}

// Freeze validates the session and forbids any further change.
func (s *Session) Freeze() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.info.Validate(); err != nil {
		return err
	}
	s.frozen = true
	return nil
}

// Frozen reports whether Freeze succeeded.
func (s *Session) Frozen() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.frozen
}

// IndexOf returns the current Index of id.
func (s *Session) IndexOf(id party.ID) (party.Index, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.info.IndexOf(id)
}

// Threshold returns the current threshold.
func (s *Session) Threshold() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.info.Threshold
}

// Total returns the current number of participants.
func (s *Session) Total() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.info.Total()
}

// Snapshot returns a deep copy of the current session info.
func (s *Session) Snapshot() Info {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.info.Clone()
}
