package polynomial

import (
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

// Exponent represents a polynomial whose coefficients are points on an elliptic curve.
// It is the Feldman commitment to a Polynomial.
type Exponent struct {
	group        curve.Curve
	coefficients []curve.Point
}

// NewPolynomialExponent generates an Exponent polynomial F(X) = [secret + a₁•X + … + aₜ•Xᵗ]•G,
// with coefficients in G, and degree t.
func NewPolynomialExponent(polynomial *Polynomial) *Exponent {
	p := &Exponent{
		group:        polynomial.group,
		coefficients: make([]curve.Point, len(polynomial.coefficients)),
	}

	for i, c := range polynomial.coefficients {
		p.coefficients[i] = c.ActOnBase()
	}

	return p
}

// Evaluate returns F(x) = [f(x)]•G = A₀ + [x]A₁ + … + [xᵗ]Aₜ.
func (p *Exponent) Evaluate(x curve.Scalar) curve.Point {
	result := p.group.NewPoint().Set(p.coefficients[0])
	power := p.group.NewScalar().Set(x)
	for i := 1; i < len(p.coefficients); i++ {
		result = result.Add(power.Act(p.coefficients[i]))
		power.Mul(x)
	}
	return result
}

// Degree returns the degree t of the polynomial.
func (p *Exponent) Degree() int {
	return len(p.coefficients) - 1
}

func (p *Exponent) add(q *Exponent) error {
	if len(p.coefficients) != len(q.coefficients) {
		return errors.New("q is not the same length as p")
	}

	for i := 0; i < len(p.coefficients); i++ {
		p.coefficients[i] = p.coefficients[i].Add(q.coefficients[i])
	}

	return nil
}

// Sum creates a new Polynomial in the Exponent, by summing a slice of existing ones.
func Sum(polynomials []*Exponent) (*Exponent, error) {
	if len(polynomials) == 0 {
		return nil, errors.New("polynomial.Sum: no polynomials")
	}

	// Create the new polynomial by copying the first one given
	summed := polynomials[0].Copy()

	// we assume all polynomials have the same degree as the first
	for j := 1; j < len(polynomials); j++ {
		if err := summed.add(polynomials[j]); err != nil {
			return nil, err
		}
	}
	return summed, nil
}

// Copy returns a deep copy of p.
func (p *Exponent) Copy() *Exponent {
	q := &Exponent{
		group:        p.group,
		coefficients: make([]curve.Point, len(p.coefficients)),
	}
	for i, c := range p.coefficients {
		q.coefficients[i] = p.group.NewPoint().Set(c)
	}
	return q
}

// Equal returns true if both polynomials have the same coefficients.
func (p *Exponent) Equal(other *Exponent) bool {
	if len(p.coefficients) != len(other.coefficients) {
		return false
	}
	for i := range p.coefficients {
		if !p.coefficients[i].Equal(other.coefficients[i]) {
			return false
		}
	}
	return true
}

// Constant returns the constant coefficient of the polynomial 'in the exponent'.
func (p *Exponent) Constant() curve.Point {
	return p.coefficients[0]
}

// Coefficients returns the coefficients of the polynomial, from lowest to highest degree.
func (p *Exponent) Coefficients() []curve.Point {
	return p.coefficients
}

// MarshalPoints encodes every coefficient, from lowest to highest degree.
func (p *Exponent) MarshalPoints() ([][]byte, error) {
	out := make([][]byte, len(p.coefficients))
	for i, c := range p.coefficients {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// UnmarshalExponent decodes an Exponent from encoded coefficients.
//
// None of the coefficients may be the identity.
func UnmarshalExponent(group curve.Curve, data [][]byte) (*Exponent, error) {
	if len(data) == 0 {
		return nil, errors.New("polynomial: empty exponent")
	}
	p := &Exponent{
		group:        group,
		coefficients: make([]curve.Point, len(data)),
	}
	for i, d := range data {
		c := group.NewPoint()
		if err := c.UnmarshalBinary(d); err != nil {
			return nil, fmt.Errorf("polynomial: coefficient %d: %w", i, err)
		}
		if c.IsIdentity() {
			return nil, fmt.Errorf("polynomial: coefficient %d is the identity", i)
		}
		p.coefficients[i] = c
	}
	return p, nil
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (p *Exponent) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range p.coefficients {
		data, err := c.MarshalBinary()
		if err != nil {
			return total, err
		}
		n, err := w.Write(data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (*Exponent) Domain() string {
	return "Exponent"
}
