package test

import (
	"context"
	"time"

	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

// TickInterval is how often HandlerLoop checks round deadlines.
var TickInterval = 10 * time.Millisecond

// HandlerLoop feeds the messages received by index to h until the protocol
// finishes. The result of the execution is given by Handler.Result().
func HandlerLoop(ctx context.Context, index party.Index, h *protocol.Handler, network *Network) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	inbox := network.next(index)
	for {
		select {
		case <-h.Done():
			return nil
		case env := <-inbox:
			// failures are reported through h.Result
			_ = h.OnMessage(ctx, env.from, env.data)
		case <-ticker.C:
			_ = h.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run drives all handlers concurrently until each one finished.
// The handlers must already be started.
func Run(ctx context.Context, network *Network, handlers map[party.Index]*protocol.Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	for index, h := range handlers {
		index, h := index, h
		g.Go(func() error {
			return HandlerLoop(ctx, index, h, network)
		})
	}
	return g.Wait()
}
