package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/party"
)

// Handler represents an execution of a given protocol.
// It decodes messages from the transport, feeds them to the engine one at a
// time, and sends whatever the engine produces.
type Handler struct {
	mtx       sync.Mutex
	engine    Engine
	transport Transport
	observer  Observer
	queue     *queue

	Log zerolog.Logger

	started   bool
	lastState string
	done      chan struct{}
	closed    bool
}

// NewHandler returns a handler driving engine over transport.
// The observer may be nil.
func NewHandler(engine Engine, transport Transport, observer Observer, log zerolog.Logger) *Handler {
	h := &Handler{
		engine:    engine,
		transport: transport,
		observer:  observer,
		queue:     &queue{},
		done:      make(chan struct{}),
		lastState: engine.State(),
	}
	h.Log = log.With().
		Str("protocol", engine.ProtocolID()).
		Stringer("party", engine.SelfIndex()).
		Logger()
	return h
}

// Start runs start, which must begin the engine, and sends its messages.
// Messages received before Start are processed afterwards.
func (h *Handler) Start(ctx context.Context, start StartFunc) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.started {
		return NewError(ProtocolViolation, 0, errors.New("protocol: handler already started"))
	}
	h.started = true
	h.Log.Info().Msg("start")

	out, err := start()
	if err != nil {
		h.afterStep()
		return err
	}
	if err = h.send(ctx, out); err != nil {
		return err
	}
	h.afterStep()

	for _, msg := range h.queue.Drain() {
		if err = h.process(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// OnMessage must be called by the transport for every message received from
// the authenticated peer from.
//
// Messages that belong to another session, or are malformed at the envelope
// level, are rejected without affecting the engine. Invalid content fails the
// engine, naming the sender as culprit.
func (h *Handler) OnMessage(ctx context.Context, from party.Index, data []byte) error {
	msg, err := UnmarshalMessage(data)
	if err != nil {
		h.Log.Warn().Err(err).Stringer("from", from).Msg("failed to decode")
		return NewError(ProtocolViolation, from, err)
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if !h.started {
		if msg.From != from {
			return NewError(ProtocolViolation, from, ErrSenderMismatch)
		}
		h.Log.Debug().Stringer("msg", msg).Msg("storing message")
		if err = h.queue.Store(msg); err != nil {
			return NewError(ResourceExhaustion, from, err)
		}
		return nil
	}
	if msg.From != from {
		return NewError(ProtocolViolation, from, ErrSenderMismatch)
	}
	return h.process(ctx, msg)
}

func (h *Handler) process(ctx context.Context, msg *Message) error {
	if h.engine.Done() {
		_, err := h.engine.Result()
		return err
	}
	if err := validateHeader(msg, msg.From, h.engine); err != nil {
		h.Log.Warn().Err(err).Stringer("msg", msg).Msg("failed to validate")
		return NewError(ProtocolViolation, msg.From, err)
	}

	h.Log.Debug().Stringer("msg", msg).Msg("got new message")
	out, err := h.engine.Handle(msg)
	if err != nil {
		h.Log.Error().Err(err).Stringer("msg", msg).Msg("failed to handle")
		h.afterStep()
		return err
	}
	if err = h.send(ctx, out); err != nil {
		return err
	}
	h.afterStep()
	return nil
}

// Tick fails the engine if its round deadline passed.
// It should be called periodically by the owner of the handler.
func (h *Handler) Tick() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	err := h.engine.CheckTimeout()
	h.afterStep()
	return err
}

// Abort stops the protocol, discarding all secret state.
func (h *Handler) Abort(reason error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.engine.Abort(reason)
	h.afterStep()
}

// Result returns the protocol result if the protocol completed successfully. Otherwise an error is returned.
func (h *Handler) Result() (interface{}, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.engine.Result()
}

// State returns the current state of the engine.
func (h *Handler) State() string {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.engine.State()
}

// Done returns a channel that is closed once the engine reached a terminal state.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) send(ctx context.Context, out []*Message) error {
	for _, msg := range out {
		data, err := msg.MarshalBinary()
		if err == nil {
			err = h.transport.Send(ctx, msg.To, data)
		}
		if err != nil {
			err = fmt.Errorf("protocol: failed to send %s: %w", msg, err)
			h.Log.Error().Err(err).Msg("abort")
			h.engine.Abort(err)
			h.afterStep()
			return err
		}
	}
	return nil
}

// afterStep logs and reports state transitions, and closes done once the
// engine reached a terminal state.
func (h *Handler) afterStep() {
	state := h.engine.State()
	finished := h.engine.Done()
	if state == h.lastState && (!finished || h.closed) {
		return
	}
	h.lastState = state

	var err error
	if finished {
		_, err = h.engine.Result()
	}
	h.Log.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("state", state)
	})
	if err != nil {
		h.Log.Warn().Err(err).Msg("protocol failed")
	} else {
		h.Log.Info().Msg("state advanced")
	}

	if h.observer != nil {
		h.observer.OnEvent(Event{
			Protocol: h.engine.ProtocolID(),
			SSID:     h.engine.SSID(),
			Self:     h.engine.SelfIndex(),
			State:    state,
			Done:     finished,
			Err:      err,
		})
	}

	if finished && !h.closed {
		h.closed = true
		close(h.done)
	}
}
