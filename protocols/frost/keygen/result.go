package keygen

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
	"github.com/taurusgroup/frost-wallet/pkg/math/polynomial"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

// KeyPackage is the output of a key generation for one participant.
//
// The group public key and all verifying shares are already normalized for
// the suite, so that signers never need to negate them again.
type KeyPackage struct {
	// Suite the key is used with.
	Suite suite.Tag
	// Index of the participant owning SigningShare.
	Index party.Index
	// Threshold is the number of participants needed to sign.
	Threshold int
	// Total is the number of participants holding a share.
	Total int
	// SigningShare is the secret s_i.
	SigningShare curve.Scalar
	// VerifyingShare is s_i•G.
	VerifyingShare curve.Point
	// VerifyingShares maps every index j to s_j•G.
	VerifyingShares map[party.Index]curve.Point
	// GroupPublicKey is the public key Y of the wallet.
	GroupPublicKey curve.Point
}

// ErrInvalidKeyPackage is returned when a KeyPackage is not internally consistent.
var ErrInvalidKeyPackage = errors.New("keygen: invalid key package")

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Finalize derives the KeyPackage from the verified shares and commitments.
//
// It may only be called in the Finalize state; once Complete, it returns the
// same KeyPackage again.
func (e *Engine) Finalize() (*KeyPackage, error) {
	switch e.state {
	case StateComplete:
		return e.result, nil
	case StateFailed:
		return nil, e.err
	case StateFinalize:
	default:
		return nil, fmt.Errorf("%w: keygen is in state %s", protocol.ErrWrongState, e.state)
	}
	if err := e.CheckTimeout(); err != nil {
		return nil, err
	}

	group := e.Group()

	// s_i = ∑ₗ f_l(i)
	s_i := group.NewScalar()
	for _, share := range e.shareFrom {
		s_i.Add(share)
	}

	// Phi = ∑ₗ Phi_l, summed in index order
	all := make([]*polynomial.Exponent, 0, len(e.Phi))
	for _, l := range e.Info().Indices() {
		all = append(all, e.Phi[l])
	}
	Phi, err := polynomial.Sum(all)
	if err != nil {
		return nil, e.fail(protocol.VerificationFailure, 0, err)
	}

	Y := Phi.Constant()
	if Y.IsIdentity() {
		return nil, e.fail(protocol.VerificationFailure, 0, fmt.Errorf("%w: group key is the identity", ErrInvalidKeyPackage))
	}
	verifyingShares := make(map[party.Index]curve.Point, e.N())
	for _, j := range e.Info().Indices() {
		verifyingShares[j] = Phi.Evaluate(j.Scalar(group))
	}

	// only keys with an even y coordinate can be used for BIP-340, in which
	// case the whole sharing is negated
	if e.Suite().RequiresNegation(Y) {
		Y = Y.Negate()
		s_i.Negate()
		for j, Y_j := range verifyingShares {
			verifyingShares[j] = Y_j.Negate()
		}
	}

	if !s_i.ActOnBase().Equal(verifyingShares[e.SelfIndex()]) {
		return nil, e.fail(protocol.VerificationFailure, 0, fmt.Errorf("%w: signing share does not match commitments", ErrInvalidKeyPackage))
	}

	result := &KeyPackage{
		Suite:           e.Suite().Tag(),
		Index:           e.SelfIndex(),
		Threshold:       e.Threshold(),
		Total:           e.N(),
		SigningShare:    s_i,
		VerifyingShare:  verifyingShares[e.SelfIndex()],
		VerifyingShares: verifyingShares,
		GroupPublicKey:  Y,
	}
	e.zeroize()
	e.result = result
	e.state = StateComplete
	e.Log.Info().Hex("public_key", result.PublicKeyBytes()).Msg("keygen complete")
	return result, nil
}

// Group returns the curve of the key.
func (k *KeyPackage) Group() (curve.Curve, error) {
	s, err := suite.FromTag(k.Suite)
	if err != nil {
		return nil, err
	}
	return s.Group(), nil
}

// PublicKeyBytes returns the group public key in the encoding verifiers of the suite expect.
func (k *KeyPackage) PublicKeyBytes() []byte {
	s, err := suite.FromTag(k.Suite)
	if err != nil {
		return nil
	}
	return s.EncodePublicKey(k.GroupPublicKey)
}

// Validate checks that the KeyPackage is consistent: the signing share
// matches its verifying share, and any Threshold verifying shares
// interpolate to the group public key.
func (k *KeyPackage) Validate() error {
	group, err := k.Group()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
	}
	if k.Threshold < 1 || k.Threshold > k.Total || k.Total > int(party.MaxIndex) {
		return fmt.Errorf("%w: threshold %d of %d", ErrInvalidKeyPackage, k.Threshold, k.Total)
	}
	if k.Index < 1 || int(k.Index) > k.Total {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidKeyPackage, k.Index)
	}
	if len(k.VerifyingShares) != k.Total {
		return fmt.Errorf("%w: got %d verifying shares, expected %d", ErrInvalidKeyPackage, len(k.VerifyingShares), k.Total)
	}
	if k.SigningShare == nil || k.GroupPublicKey == nil || k.VerifyingShare == nil {
		return fmt.Errorf("%w: missing field", ErrInvalidKeyPackage)
	}
	if k.GroupPublicKey.IsIdentity() {
		return fmt.Errorf("%w: group key is the identity", ErrInvalidKeyPackage)
	}
	if k.GroupPublicKey.Curve().Name() != group.Name() || k.SigningShare.Curve().Name() != group.Name() {
		return fmt.Errorf("%w: wrong curve", ErrInvalidKeyPackage)
	}
	own, ok := k.VerifyingShares[k.Index]
	if !ok || !own.Equal(k.VerifyingShare) || !k.SigningShare.ActOnBase().Equal(own) {
		return fmt.Errorf("%w: signing share does not match verifying share", ErrInvalidKeyPackage)
	}

	domain := make([]party.Index, 0, k.Threshold)
	for j := party.Index(1); int(j) <= k.Total; j++ {
		if _, ok = k.VerifyingShares[j]; !ok {
			return fmt.Errorf("%w: missing verifying share %d", ErrInvalidKeyPackage, j)
		}
		if len(domain) < k.Threshold {
			domain = append(domain, j)
		}
	}
	Y := group.NewPoint()
	for j, lambda := range polynomial.Lagrange(group, domain) {
		Y = Y.Add(lambda.Act(k.VerifyingShares[j]))
	}
	if !Y.Equal(k.GroupPublicKey) {
		return fmt.Errorf("%w: verifying shares do not match group key", ErrInvalidKeyPackage)
	}
	return nil
}

// Equal returns true if both packages hold the same values.
func (k *KeyPackage) Equal(other *KeyPackage) bool {
	if k == nil || other == nil {
		return k == other
	}
	if k.Suite != other.Suite || k.Index != other.Index || k.Threshold != other.Threshold || k.Total != other.Total {
		return false
	}
	if !k.SigningShare.Equal(other.SigningShare) ||
		!k.VerifyingShare.Equal(other.VerifyingShare) ||
		!k.GroupPublicKey.Equal(other.GroupPublicKey) {
		return false
	}
	if len(k.VerifyingShares) != len(other.VerifyingShares) {
		return false
	}
	for j, Y_j := range k.VerifyingShares {
		Y_j2, ok := other.VerifyingShares[j]
		if !ok || !Y_j.Equal(Y_j2) {
			return false
		}
	}
	return true
}

// Zeroize overwrites the signing share.
func (k *KeyPackage) Zeroize() {
	if k.SigningShare != nil {
		k.SigningShare.Set(k.SigningShare.Curve().NewScalar())
	}
}

type keyPackageCBOR struct {
	Suite           suite.Tag              `cbor:"suite"`
	Index           party.Index            `cbor:"index"`
	Threshold       int                    `cbor:"threshold"`
	Total           int                    `cbor:"total"`
	SigningShare    []byte                 `cbor:"signing_share"`
	VerifyingShares map[party.Index][]byte `cbor:"verifying_shares"`
	GroupPublicKey  []byte                 `cbor:"group_public_key"`
}

// MarshalBinary implements encoding.BinaryMarshaler, with a deterministic
// CBOR encoding.
func (k *KeyPackage) MarshalBinary() ([]byte, error) {
	shares := make(map[party.Index][]byte, len(k.VerifyingShares))
	for j, Y_j := range k.VerifyingShares {
		data, err := Y_j.MarshalBinary()
		if err != nil {
			return nil, err
		}
		shares[j] = data
	}
	secret, err := k.SigningShare.MarshalBinary()
	if err != nil {
		return nil, err
	}
	public, err := k.GroupPublicKey.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(&keyPackageCBOR{
		Suite:           k.Suite,
		Index:           k.Index,
		Threshold:       k.Threshold,
		Total:           k.Total,
		SigningShare:    secret,
		VerifyingShares: shares,
		GroupPublicKey:  public,
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, and validates the result.
func (k *KeyPackage) UnmarshalBinary(data []byte) error {
	var raw keyPackageCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
	}
	s, err := suite.FromTag(raw.Suite)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
	}
	group := s.Group()

	secret := group.NewScalar()
	if err = secret.UnmarshalBinary(raw.SigningShare); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
	}
	Y := group.NewPoint()
	if err = Y.UnmarshalBinary(raw.GroupPublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
	}
	shares := make(map[party.Index]curve.Point, len(raw.VerifyingShares))
	for j, data := range raw.VerifyingShares {
		Y_j := group.NewPoint()
		if err = Y_j.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKeyPackage, err)
		}
		shares[j] = Y_j
	}

	out := KeyPackage{
		Suite:           raw.Suite,
		Index:           raw.Index,
		Threshold:       raw.Threshold,
		Total:           raw.Total,
		SigningShare:    secret,
		VerifyingShare:  shares[raw.Index],
		VerifyingShares: shares,
		GroupPublicKey:  Y,
	}
	if err = out.Validate(); err != nil {
		return err
	}
	*k = out
	return nil
}
