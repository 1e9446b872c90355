package curve

import (
	"bytes"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/cronokirby/saferith"
)

var edwards25519Order = saferith.ModulusFromBytes(mustDecodeHex("1000000000000000000000000000000014DEF9DEA2F79CD65812631A5CF5D3ED"))

// edwards25519InvEight is 8⁻¹ mod ℓ. A point P lies in the prime order
// subgroup iff 8⁻¹⋅(8⋅P) = P.
var edwards25519InvEight = func() *edwards25519.Scalar {
	var eight [32]byte
	eight[0] = 8
	s, err := edwards25519.NewScalar().SetCanonicalBytes(eight[:])
	if err != nil {
		panic(err)
	}
	return s.Invert(s)
}()

// Edwards25519 is the prime order subgroup of the twisted Edwards curve
// birationally equivalent to Curve25519.
type Edwards25519 struct{}

func (Edwards25519) NewPoint() Point {
	return &Edwards25519Point{value: *edwards25519.NewIdentityPoint()}
}

func (Edwards25519) NewBasePoint() Point {
	return &Edwards25519Point{value: *edwards25519.NewGeneratorPoint()}
}

func (Edwards25519) NewScalar() Scalar {
	return &Edwards25519Scalar{value: *edwards25519.NewScalar()}
}

func (Edwards25519) Name() string {
	return "edwards25519"
}

func (Edwards25519) ScalarBits() int {
	return 253
}

func (Edwards25519) SafeScalarBytes() int {
	return 64
}

func (Edwards25519) Order() *saferith.Modulus {
	return edwards25519Order
}

// ScalarFromUniformBytes reduces a 64 byte little-endian value modulo the
// group order, as done for RFC 8032 hashes.
func (Edwards25519) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	out := new(Edwards25519Scalar)
	if _, err := out.value.SetUniformBytes(data); err != nil {
		return nil, err
	}
	return out, nil
}

// Edwards25519Scalar is a scalar modulo the order of the edwards25519 subgroup.
type Edwards25519Scalar struct {
	value edwards25519.Scalar
}

func edwards25519CastScalar(generic Scalar) *Edwards25519Scalar {
	out, ok := generic.(*Edwards25519Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Scalar: %v", generic))
	}
	return out
}

func (*Edwards25519Scalar) Curve() Curve {
	return Edwards25519{}
}

// MarshalBinary encodes the scalar as 32 little-endian bytes.
func (s *Edwards25519Scalar) MarshalBinary() ([]byte, error) {
	return s.value.Bytes(), nil
}

func (s *Edwards25519Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("invalid length for edwards25519 scalar: %d", len(data))
	}
	if _, err := s.value.SetCanonicalBytes(data); err != nil {
		return fmt.Errorf("invalid bytes for edwards25519 scalar: %w", err)
	}
	return nil
}

func (s *Edwards25519Scalar) Add(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Add(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Sub(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Subtract(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Mul(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Multiply(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Invert() Scalar {
	s.value.Invert(&s.value)
	return s
}

func (s *Edwards25519Scalar) Negate() Scalar {
	s.value.Negate(&s.value)
	return s
}

func (s *Edwards25519Scalar) Equal(that Scalar) bool {
	other := edwards25519CastScalar(that)

	return s.value.Equal(&other.value) == 1
}

func (s *Edwards25519Scalar) IsZero() bool {
	return s.value.Equal(edwards25519.NewScalar()) == 1
}

func (s *Edwards25519Scalar) Set(that Scalar) Scalar {
	other := edwards25519CastScalar(that)

	s.value.Set(&other.value)
	return s
}

func (s *Edwards25519Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, edwards25519Order).FillBytes(make([]byte, 32))
	// saferith is big-endian, edwards25519 little-endian
	for i, j := 0, len(reduced)-1; i < j; i, j = i+1, j-1 {
		reduced[i], reduced[j] = reduced[j], reduced[i]
	}
	if _, err := s.value.SetCanonicalBytes(reduced); err != nil {
		panic(fmt.Sprintf("edwards25519Scalar.SetNat: %v", err))
	}
	return s
}

func (s *Edwards25519Scalar) Act(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.ScalarMult(&s.value, &other.value)
	return out
}

func (s *Edwards25519Scalar) ActOnBase() Point {
	out := new(Edwards25519Point)
	out.value.ScalarBaseMult(&s.value)
	return out
}

// Edwards25519Point is a point in the edwards25519 group.
type Edwards25519Point struct {
	value edwards25519.Point
}

func edwards25519CastPoint(generic Point) *Edwards25519Point {
	out, ok := generic.(*Edwards25519Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Point: %v", generic))
	}
	return out
}

func (*Edwards25519Point) Curve() Curve {
	return Edwards25519{}
}

// MarshalBinary uses the 32 byte encoding of RFC 8032.
func (p *Edwards25519Point) MarshalBinary() ([]byte, error) {
	return p.value.Bytes(), nil
}

func (p *Edwards25519Point) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("invalid length for edwards25519Point: %d", len(data))
	}
	if _, err := p.value.SetBytes(data); err != nil {
		return fmt.Errorf("edwards25519Point.UnmarshalBinary: %w", err)
	}
	if !bytes.Equal(p.value.Bytes(), data) {
		return errors.New("edwards25519Point.UnmarshalBinary: non canonical encoding")
	}
	var cleared, q edwards25519.Point
	cleared.MultByCofactor(&p.value)
	q.ScalarMult(edwards25519InvEight, &cleared)
	if q.Equal(&p.value) != 1 {
		return errors.New("edwards25519Point.UnmarshalBinary: point is not in the prime order subgroup")
	}
	return nil
}

func (p *Edwards25519Point) Add(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.Add(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Sub(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.Subtract(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Set(that Point) Point {
	other := edwards25519CastPoint(that)

	p.value.Set(&other.value)
	return p
}

func (p *Edwards25519Point) Negate() Point {
	out := new(Edwards25519Point)
	out.value.Negate(&p.value)
	return out
}

func (p *Edwards25519Point) Equal(that Point) bool {
	other := edwards25519CastPoint(that)

	return p.value.Equal(&other.value) == 1
}

func (p *Edwards25519Point) IsIdentity() bool {
	return p.value.Equal(edwards25519.NewIdentityPoint()) == 1
}
