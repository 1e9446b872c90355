package protocol

import (
	"context"

	"github.com/taurusgroup/frost-wallet/pkg/party"
)

// Transport delivers encoded messages to other participants.
//
// It must be reliable, and authenticated per pair of participants: the
// receiving side reports the true sender to Handler.OnMessage.
type Transport interface {
	// Send delivers data to the participant with Index to, or to all other
	// participants when to is 0.
	Send(ctx context.Context, to party.Index, data []byte) error
}

// Event describes a change in the state of an engine.
type Event struct {
	Protocol string
	SSID     []byte
	Self     party.Index
	State    string
	Done     bool
	Err      error
}

// Observer is notified of every state transition and terminal outcome.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
