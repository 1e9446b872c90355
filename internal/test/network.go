package test

import (
	"context"
	"sync"

	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

// Interceptor may rewrite a message in flight. Returning nil drops it.
type Interceptor func(from, to party.Index, data []byte) []byte

type envelope struct {
	from party.Index
	data []byte
}

// Network is an in-memory, reliable and authenticated transport between
// parties living in the same process.
type Network struct {
	mtx       sync.Mutex
	parties   party.IndexSlice
	inboxes   map[party.Index]chan envelope
	intercept Interceptor
}

// NewNetwork creates a network connecting the given parties.
func NewNetwork(parties []party.Index) *Network {
	n := &Network{
		parties: party.NewIndexSlice(parties),
		inboxes: make(map[party.Index]chan envelope, len(parties)),
	}
	size := 4*len(parties)*len(parties) + 16
	for _, index := range parties {
		n.inboxes[index] = make(chan envelope, size)
	}
	return n
}

// Intercept installs f on every message sent from now on.
func (n *Network) Intercept(f Interceptor) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.intercept = f
}

// Transport returns the protocol.Transport used by the party self.
func (n *Network) Transport(self party.Index) protocol.Transport {
	return &transport{network: n, self: self}
}

// next returns the channel of messages received by index.
func (n *Network) next(index party.Index) <-chan envelope {
	return n.inboxes[index]
}

func (n *Network) deliver(ctx context.Context, from, to party.Index, data []byte) error {
	n.mtx.Lock()
	intercept := n.intercept
	inbox, ok := n.inboxes[to]
	n.mtx.Unlock()

	if !ok {
		return nil
	}
	if intercept != nil {
		if data = intercept(from, to, data); data == nil {
			return nil
		}
	}
	select {
	case inbox <- envelope{from: from, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type transport struct {
	network *Network
	self    party.Index
}

func (t *transport) Send(ctx context.Context, to party.Index, data []byte) error {
	if to != 0 {
		return t.network.deliver(ctx, t.self, to, data)
	}
	for _, other := range t.network.parties {
		if other == t.self {
			continue
		}
		if err := t.network.deliver(ctx, t.self, other, data); err != nil {
			return err
		}
	}
	return nil
}
