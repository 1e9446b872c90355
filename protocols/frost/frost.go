// Package frost runs the FROST threshold Schnorr protocols over a transport.
//
// Keys are created with a distributed key generation in which every
// participant must take part, and any Threshold of them can later sign:
//   https://eprint.iacr.org/2020/852.pdf
//
// Signatures are BIP-340 compatible for the secp256k1 suite, and RFC 8032
// compatible for the ed25519 suite.
package frost

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
	"github.com/taurusgroup/frost-wallet/protocols/frost/sign"
)

type (
	KeyPackage = keygen.KeyPackage
	Signature  = sign.Signature
)

// Keygen starts the key generation of selfID, and returns the handler which
// must be fed every message received on transport.
//
// The handler's result is a *KeyPackage.
func Keygen(ctx context.Context, info session.Info, selfID party.ID, transport protocol.Transport, observer protocol.Observer, log zerolog.Logger, opts ...protocol.Option) (*protocol.Handler, error) {
	e, err := keygen.New(info, selfID, opts...)
	if err != nil {
		return nil, err
	}
	h := protocol.NewHandler(e, transport, observer, log)
	if err = h.Start(ctx, e.Start); err != nil {
		return nil, err
	}
	return h, nil
}

// Sign starts a signing operation of message by signers, using the share in key.
//
// operationID must be unique for each signature produced with the same nonce
// store. The handler's result is a *Signature.
func Sign(ctx context.Context, info session.Info, key *KeyPackage, store *nonce.Store, operationID string, message []byte, signers party.IDSlice, transport protocol.Transport, observer protocol.Observer, log zerolog.Logger, opts ...protocol.Option) (*protocol.Handler, error) {
	e, err := sign.New(info, key, store, opts...)
	if err != nil {
		return nil, err
	}
	h := protocol.NewHandler(e, transport, observer, log)
	if err = h.Start(ctx, e.Start(operationID, message, signers)); err != nil {
		return nil, err
	}
	return h, nil
}
