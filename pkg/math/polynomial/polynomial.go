package polynomial

import (
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/sample"
)

// Polynomial represents f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ.
type Polynomial struct {
	group        curve.Curve
	coefficients []curve.Scalar
}

// NewPolynomial generates a random Polynomial f(X) = secret + a₁⋅X + … + aₜ⋅Xᵗ,
// with coefficients in ℤₚ, and degree t.
//
// If constant is nil, a random constant is sampled as well.
func NewPolynomial(rand io.Reader, group curve.Curve, degree int, constant curve.Scalar) *Polynomial {
	polynomial := &Polynomial{
		group:        group,
		coefficients: make([]curve.Scalar, degree+1),
	}

	if constant == nil {
		constant = sample.ScalarUnit(rand, group)
	}
	polynomial.coefficients[0] = group.NewScalar().Set(constant)

	for i := 1; i <= degree; i++ {
		polynomial.coefficients[i] = sample.Scalar(rand, group)
	}

	return polynomial
}

// Evaluate evaluates a polynomial in a given variable index.
// We use Horner's method: https://en.wikipedia.org/wiki/Horner%27s_method
func (p *Polynomial) Evaluate(index curve.Scalar) curve.Scalar {
	if index.IsZero() {
		panic("attempt to leak secret")
	}

	result := p.group.NewScalar()
	// reverse order
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result.Mul(index).Add(p.coefficients[i])
	}
	return result
}

// Constant returns a reference to the constant coefficient of the polynomial.
func (p *Polynomial) Constant() curve.Scalar {
	return p.coefficients[0]
}

// Degree is the highest power of the Polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Zeroize overwrites every coefficient with zero.
func (p *Polynomial) Zeroize() {
	for _, c := range p.coefficients {
		c.Set(p.group.NewScalar())
	}
}
