package test

import (
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

// PartyIDs returns a party.IDSlice with IDs represented as simple strings.
func PartyIDs(n int) party.IDSlice {
	baseString := ""
	ids := make(party.IDSlice, n)
	for i := range ids {
		if i%26 == 0 && i > 0 {
			baseString += "a"
		}
		ids[i] = party.ID(baseString + string('a'+rune(i%26)))
	}
	return ids
}

// Info returns a session with n parties and threshold t.
func Info(n, t int, tag suite.Tag) session.Info {
	return session.Info{
		SessionID:    "test-session",
		Participants: PartyIDs(n),
		Threshold:    t,
		Suite:        tag,
	}
}
