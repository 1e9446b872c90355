package protocol

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-wallet/pkg/party"
)

// Kind classifies protocol failures.
//
// A Kind is itself an error, so that errors.Is(err, protocol.Timeout) can be
// used on any error returned by an engine.
type Kind uint8

const (
	UnknownKind Kind = iota
	// ConfigurationError is caused by invalid parameters given by the caller.
	ConfigurationError
	// ProtocolViolation is caused by a message or call that is invalid in the current state.
	ProtocolViolation
	// VerificationFailure is caused by a proof, share, or signature that does not verify.
	VerificationFailure
	// ResourceExhaustion is caused by evicted or exhausted state, such as expired nonces.
	ResourceExhaustion
	// StorageError is caused by the persistence layer.
	StorageError
	// Timeout is caused by a round deadline passing.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration error"
	case ProtocolViolation:
		return "protocol violation"
	case VerificationFailure:
		return "verification failure"
	case ResourceExhaustion:
		return "resource exhaustion"
	case StorageError:
		return "storage error"
	case Timeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

func (k Kind) Error() string {
	return k.String()
}

var (
	ErrWireVersion      = errors.New("protocol: unsupported wire version")
	ErrWrongSSID        = errors.New("protocol: message has wrong SSID")
	ErrWrongProtocol    = errors.New("protocol: message has wrong protocol id")
	ErrWrongDestination = errors.New("protocol: message is not addressed to this party")
	ErrSenderMismatch   = errors.New("protocol: message sender does not match channel")
	ErrUnknownSender    = errors.New("protocol: unknown sender")
	ErrDuplicateMessage = errors.New("protocol: message already received")
	ErrUnknownRound     = errors.New("protocol: unknown round")
	ErrMalformedContent = errors.New("protocol: malformed message content")
	ErrWrongState       = errors.New("protocol: operation not allowed in current state")
	ErrTimeout          = errors.New("protocol: round deadline exceeded")
	ErrAborted          = errors.New("protocol: aborted")
	ErrQueueFull        = errors.New("protocol: too many queued messages")
)

// Error is a custom error for protocols which contains information about the
// kind of failure, and the party responsible.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Culprit is 0 if the identity of the misbehaving party cannot be known.
	Culprit party.Index
	// Err is the underlying error.
	Err error
}

// NewError returns an Error of the given kind.
func NewError(kind Kind, culprit party.Index, err error) Error {
	return Error{Kind: kind, Culprit: culprit, Err: err}
}

func (e Error) Error() string {
	if e.Culprit == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: party %d: %s", e.Kind, e.Culprit, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind of the error.
func (e Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first Error in err's chain.
func KindOf(err error) Kind {
	var protocolErr Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Kind
	}
	return UnknownKind
}

// CulpritOf returns the culprit of the first Error in err's chain, or 0.
func CulpritOf(err error) party.Index {
	var protocolErr Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Culprit
	}
	return 0
}
