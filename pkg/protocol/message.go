package protocol

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/frost-wallet/pkg/party"
)

// WireVersion is the only version of Message this module accepts.
const WireVersion uint16 = 1

// RoundNumber is the round of a protocol a message belongs to, starting at 1.
type RoundNumber uint16

// Message is the envelope exchanged between participants.
type Message struct {
	// Version must equal WireVersion.
	Version uint16 `cbor:"version"`
	// SSID is a byte string which uniquely identifies the session or operation this message belongs to.
	SSID []byte `cbor:"ssid"`
	// Protocol identifies the protocol this message belongs to.
	Protocol string `cbor:"protocol"`
	// From is the Index of the sender.
	From party.Index `cbor:"from"`
	// To is the Index of the recipient, or 0 for a broadcast.
	To party.Index `cbor:"to"`
	// Round is the round this message belongs to.
	Round RoundNumber `cbor:"round"`
	// Data is the CBOR encoded content consumed by the round.
	Data []byte `cbor:"data"`
}

// NewMessage encodes content into a Message.
func NewMessage(ssid []byte, protocolID string, from, to party.Index, round RoundNumber, content interface{}) (*Message, error) {
	data, err := cbor.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal content: %w", err)
	}
	return &Message{
		Version:  WireVersion,
		SSID:     ssid,
		Protocol: protocolID,
		From:     from,
		To:       to,
		Round:    round,
		Data:     data,
	}, nil
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("message: round %d, from: %d, to %d, protocol: %s", m.Round, m.From, m.To, m.Protocol)
}

// Broadcast returns true if the message is addressed to all participants.
func (m Message) Broadcast() bool {
	return m.To == 0
}

// IsFor returns true if the message is intended for the designated party.
func (m Message) IsFor(index party.Index) bool {
	if m.From == index {
		return false
	}
	return m.To == 0 || m.To == index
}

// UnmarshalContent decodes the content of the message into v.
func (m Message) UnmarshalContent(v interface{}) error {
	if err := cbor.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	return nil
}

// wireMessage is Message without its methods.
type wireMessage Message

// MarshalBinary encodes the message for the transport.
func (m *Message) MarshalBinary() ([]byte, error) {
	return cbor.Marshal((*wireMessage)(m))
}

// UnmarshalMessage decodes a message received from the transport, and
// rejects any version other than WireVersion.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m wireMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	if m.Version != WireVersion {
		return nil, fmt.Errorf("%w: %d", ErrWireVersion, m.Version)
	}
	return (*Message)(&m), nil
}

// validateHeader checks that msg belongs to the session run by engine, and
// was sent by from.
func validateHeader(msg *Message, from party.Index, engine Engine) error {
	if msg.From != from {
		return ErrSenderMismatch
	}
	if !msg.IsFor(engine.SelfIndex()) {
		return ErrWrongDestination
	}
	if !bytes.Equal(msg.SSID, engine.SSID()) {
		return ErrWrongSSID
	}
	if msg.Protocol != engine.ProtocolID() {
		return ErrWrongProtocol
	}
	return nil
}
