package keystore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
)

const (
	// EnvelopeVersion is the only envelope version this package reads and writes.
	EnvelopeVersion uint16 = 1
	// KDFArgon2id names the key derivation function.
	KDFArgon2id = "argon2id"
	// CipherXChaCha20Poly1305 names the AEAD.
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"

	saltLength = 16
	keyLength  = 32
)

// Argon2Params are the cost parameters of Argon2id.
type Argon2Params struct {
	Time      uint32 `cbor:"time" yaml:"time"`
	MemoryKiB uint32 `cbor:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `cbor:"threads" yaml:"threads"`
}

// DefaultArgon2Params follow the second recommended option of RFC 9106.
var DefaultArgon2Params = Argon2Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// Validate rejects parameters Argon2id cannot run with.
func (p Argon2Params) Validate() error {
	if p.Time == 0 || p.Threads == 0 || p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("keystore: invalid argon2 parameters %+v", p)
	}
	return nil
}

// Envelope is the persisted form of an encrypted KeyPackage.
//
// Every field except Ciphertext and AuthTag is authenticated as associated data.
type Envelope struct {
	Version    uint16       `cbor:"version"`
	CurveTag   suite.Tag    `cbor:"curve_tag"`
	KDF        string       `cbor:"kdf_algorithm"`
	KDFParams  Argon2Params `cbor:"kdf_params"`
	Cipher     string       `cbor:"cipher"`
	Salt       []byte       `cbor:"salt"`
	Nonce      []byte       `cbor:"nonce"`
	Ciphertext []byte       `cbor:"ciphertext"`
	AuthTag    []byte       `cbor:"auth_tag"`
}

type envelopeHeader struct {
	Version   uint16       `cbor:"version"`
	CurveTag  suite.Tag    `cbor:"curve_tag"`
	KDF       string       `cbor:"kdf_algorithm"`
	KDFParams Argon2Params `cbor:"kdf_params"`
	Cipher    string       `cbor:"cipher"`
	Salt      []byte       `cbor:"salt"`
	Nonce     []byte       `cbor:"nonce"`
}

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// associatedData returns the deterministic encoding of the header.
func (e *Envelope) associatedData() ([]byte, error) {
	return encMode.Marshal(&envelopeHeader{
		Version:   e.Version,
		CurveTag:  e.CurveTag,
		KDF:       e.KDF,
		KDFParams: e.KDFParams,
		Cipher:    e.Cipher,
		Salt:      e.Salt,
		Nonce:     e.Nonce,
	})
}

// envelopeWire is Envelope without its methods.
type envelopeWire Envelope

// MarshalBinary implements encoding.BinaryMarshaler.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	return encMode.Marshal((*envelopeWire)(e))
}

// UnmarshalEnvelope decodes an envelope. Undecodable data is reported as
// ErrUnsupportedFormat.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e envelopeWire
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return (*Envelope)(&e), nil
}

// check fails closed on anything but the exact format this keystore writes.
func (e *Envelope) check(params Argon2Params, nonceSize, overhead int) error {
	switch {
	case e.Version != EnvelopeVersion:
		return fmt.Errorf("%w: version %d", ErrUnsupportedFormat, e.Version)
	case e.KDF != KDFArgon2id:
		return fmt.Errorf("%w: kdf %q", ErrUnsupportedFormat, e.KDF)
	case e.Cipher != CipherXChaCha20Poly1305:
		return fmt.Errorf("%w: cipher %q", ErrUnsupportedFormat, e.Cipher)
	case e.KDFParams != params:
		return fmt.Errorf("%w: kdf parameters %+v", ErrUnsupportedFormat, e.KDFParams)
	case len(e.Salt) != saltLength || len(e.Nonce) != nonceSize || len(e.AuthTag) != overhead:
		return fmt.Errorf("%w: invalid lengths", ErrUnsupportedFormat)
	}
	if _, err := suite.FromTag(e.CurveTag); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return nil
}
