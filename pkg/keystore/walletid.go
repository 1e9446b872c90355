package keystore

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-wallet/pkg/hash"
	"github.com/taurusgroup/frost-wallet/protocols/frost/keygen"
)

// walletIDLength is the number of bytes of a WalletID before hex encoding.
const walletIDLength = 32

// WalletID identifies a stored KeyPackage. It is derived from the suite and
// the group public key, so all participants of a wallet share it.
type WalletID string

// NewWalletID returns the WalletID of key.
func NewWalletID(key *keygen.KeyPackage) WalletID {
	h := hash.New(
		key.Suite,
		hash.BytesWithDomain{TheDomain: "Group Public Key", Bytes: key.PublicKeyBytes()},
	)
	out := make([]byte, walletIDLength)
	_, _ = io.ReadFull(h.Digest(), out)
	return WalletID(hex.EncodeToString(out))
}

// Validate checks that id is a lower case hex string of the expected length.
// Only valid ids are ever used as storage keys or file names.
func (id WalletID) Validate() error {
	if len(id) != 2*walletIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidWalletID, string(id))
	}
	for _, c := range id {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return fmt.Errorf("%w: %q", ErrInvalidWalletID, string(id))
		}
	}
	return nil
}

func (id WalletID) String() string {
	return string(id)
}
