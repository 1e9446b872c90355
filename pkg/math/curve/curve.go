package curve

import (
	"encoding"

	"github.com/cronokirby/saferith"
)

// Curve represents a prime order group in which discrete logarithms are hard.
//
// Both the secp256k1 and edwards25519 groups used for signing implement this
// interface, which lets the protocols be written once for either of them.
type Curve interface {
	// NewPoint returns the identity element.
	NewPoint() Point
	// NewBasePoint returns the generator of the group.
	NewBasePoint() Point
	// NewScalar returns the zero scalar.
	NewScalar() Scalar
	// Name returns a short name for the group.
	Name() string
	// ScalarBits is the number of bits needed to represent a scalar.
	ScalarBits() int
	// SafeScalarBytes is the number of random bytes needed to sample a scalar
	// with negligible bias.
	SafeScalarBytes() int
	// Order returns the order of the group as a modulus.
	Order() *saferith.Modulus
}

// Scalar is an element of the field of integers modulo the group order.
//
// Methods that modify a Scalar do so in place, and return the receiver.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Negate() Scalar
	Mul(Scalar) Scalar
	Invert() Scalar
	Equal(Scalar) bool
	IsZero() bool
	Set(Scalar) Scalar
	// SetNat sets the scalar to x reduced modulo the group order.
	SetNat(*saferith.Nat) Scalar
	// Act computes the scalar multiple of a point.
	Act(Point) Point
	// ActOnBase computes the scalar multiple of the generator.
	ActOnBase() Point
}

// Point is an element of the group.
//
// Operations on points always return a new Point.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Set(Point) Point
	Equal(Point) bool
	IsIdentity() bool
}

// MustMarshal returns the binary encoding of v, and panics on failure.
//
// Scalars and points of both groups never fail to encode.
func MustMarshal(v encoding.BinaryMarshaler) []byte {
	data, err := v.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return data
}

// ScalarFromUint64 returns x as a scalar of the given group.
func ScalarFromUint64(group Curve, x uint64) Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(x))
}

// ScalarFromWideBytes interprets data as a big-endian integer and reduces it
// modulo the group order.
//
// data should be at least SafeScalarBytes long for the result to be close to
// uniform.
func ScalarFromWideBytes(group Curve, data []byte) Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetBytes(data))
}
