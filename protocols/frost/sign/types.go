package sign

import (
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

// messageHash is a wrapper around bytes to provide some domain separation.
type messageHash []byte

// WriteTo makes messageHash implement the io.WriterTo interface.
func (m messageHash) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m)
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (messageHash) Domain() string {
	return "messageHash"
}

// operation is the caller chosen identifier of a signing operation.
type operation string

func (o operation) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, string(o))
	return int64(n), err
}

func (operation) Domain() string {
	return "Operation ID"
}

// Signature represents the result of a Schnorr signature.
//
// This signature satisfies:
//
//	z * G = R + c * Y
//
// for the group public key Y, where the challenge c is defined by the suite.
type Signature struct {
	Suite suite.Tag
	// R is the commitment point, normalized for the suite.
	R curve.Point
	// Z is the response scalar.
	Z curve.Scalar
}

// Bytes returns the 64 byte encoding of the signature for the suite.
func (sig *Signature) Bytes() []byte {
	s, err := suite.FromTag(sig.Suite)
	if err != nil {
		return nil
	}
	return s.EncodeSignature(sig.R, sig.Z)
}

// Verify checks the signature of message under the public key Y.
func (sig *Signature) Verify(Y curve.Point, message []byte) bool {
	s, err := suite.FromTag(sig.Suite)
	if err != nil {
		return false
	}
	return s.Verify(Y, message, s.EncodeSignature(sig.R, sig.Z))
}
