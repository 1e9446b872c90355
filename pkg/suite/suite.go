// Package suite binds a prime order group to the hash functions and encodings
// of one Schnorr signature scheme.
//
// A Suite is selected from a Tag, which is plain data carried alongside every
// key package and envelope, so the curve in use is never inferred from the
// dynamic type of a value.
package suite

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

// ErrUnknownSuite is returned when a Tag does not name a supported suite.
var ErrUnknownSuite = errors.New("suite: unknown curve tag")

// Tag identifies a Suite.
type Tag string

const (
	// Secp256k1SHA256 produces BIP-340 signatures.
	Secp256k1SHA256 Tag = "secp256k1-sha256"
	// Ed25519SHA512 produces RFC 8032 Ed25519 signatures.
	Ed25519SHA512 Tag = "ed25519-sha512"
)

// WriteTo implements io.WriterTo.
func (t Tag) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte(t))
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (Tag) Domain() string {
	return "Suite Tag"
}

// Suite is the set of capabilities a signature scheme exposes to the
// threshold protocols.
type Suite interface {
	// Tag returns the identifier of the suite.
	Tag() Tag

	// Group returns the group in which keys and nonces live.
	Group() curve.Curve

	// HashToScalar hashes data under a domain string into a uniform scalar.
	HashToScalar(domain string, data ...[]byte) curve.Scalar

	// Challenge computes the Schnorr challenge c = H(R, Y, message).
	// R and Y must already be normalized.
	Challenge(R, Y curve.Point, message []byte) (curve.Scalar, error)

	// RequiresNegation reports whether p must be negated before it can be used
	// as a public key or group commitment in a signature.
	RequiresNegation(p curve.Point) bool

	// EncodePublicKey returns the public key encoding verifiers expect, or nil
	// if Y belongs to another group.
	EncodePublicKey(Y curve.Point) []byte

	// EncodeSignature serializes (R, z) into the 64 byte signature format. It
	// returns nil if R or z belong to another group.
	EncodeSignature(R curve.Point, z curve.Scalar) []byte

	// Verify checks a serialized signature against a public key and message,
	// with an implementation independent from this module's curve arithmetic.
	Verify(Y curve.Point, message, signature []byte) bool
}

var suites = map[Tag]Suite{
	Secp256k1SHA256: secp256k1Suite{},
	Ed25519SHA512:   ed25519Suite{},
}

// FromTag returns the Suite identified by tag.
func FromTag(tag Tag) (Suite, error) {
	s, ok := suites[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, string(tag))
	}
	return s, nil
}

// Tags returns the tags of all supported suites.
func Tags() []Tag {
	return []Tag{Secp256k1SHA256, Ed25519SHA512}
}

// frame writes each piece of data prefixed by its length.
func frame(w io.Writer, domain string, data ...[]byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(domain)))
	_, _ = w.Write(length[:])
	_, _ = w.Write([]byte(domain))
	for _, d := range data {
		binary.BigEndian.PutUint64(length[:], uint64(len(d)))
		_, _ = w.Write(length[:])
		_, _ = w.Write(d)
	}
}
