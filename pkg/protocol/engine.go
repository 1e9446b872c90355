package protocol

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
)

// DefaultRoundTimeout is the time a party waits for the messages of one round.
const DefaultRoundTimeout = 2 * time.Minute

// Engine is a protocol state machine driven by a Handler.
//
// Engines never block: a call either returns messages to send, returns no
// messages while waiting for more input, or fails.
type Engine interface {
	// ProtocolID identifies the protocol, and is included in every message.
	ProtocolID() string
	// SSID identifies the session or operation, and is included in every message.
	SSID() []byte
	// SelfIndex is the Index of the local party.
	SelfIndex() party.Index
	// Handle processes a message whose header was validated.
	Handle(msg *Message) ([]*Message, error)
	// CheckTimeout fails the engine if the current round's deadline passed.
	CheckTimeout() error
	// Abort discards all secret state and fails the engine.
	Abort(reason error)
	// State returns the name of the current state.
	State() string
	// Done returns true once the engine reached a terminal state.
	Done() bool
	// Result returns the output of a completed engine, or its failure.
	Result() (interface{}, error)
}

// StartFunc produces the first messages of a protocol.
type StartFunc func() ([]*Message, error)

// Options are shared by all protocol engines.
type Options struct {
	Clock        clock.Clock
	RoundTimeout time.Duration
	Logger       zerolog.Logger
	Rand         io.Reader
	// Pool parallelizes verification work. It may be nil.
	Pool *pool.Pool
}

// Option configures an engine.
type Option func(*Options)

// WithClock sets the clock used for round deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithRoundTimeout sets the time allowed for each round.
func WithRoundTimeout(d time.Duration) Option {
	return func(o *Options) { o.RoundTimeout = d }
}

// WithLogger sets the logger of the engine.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithRand sets the source of randomness. It defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(o *Options) { o.Rand = r }
}

// WithPool sets the worker pool used for verification.
func WithPool(p *pool.Pool) Option {
	return func(o *Options) { o.Pool = p }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Clock:        clock.New(),
		RoundTimeout: DefaultRoundTimeout,
		Logger:       zerolog.Nop(),
		Rand:         rand.Reader,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
