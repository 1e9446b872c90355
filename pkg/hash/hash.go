package hash

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the length of the output of Sum.
const DigestLengthBytes = 64

// Hash is the hash function used to build protocol transcripts and session identifiers.
//
// Every piece of data written to it is framed with its domain and length, so
// that two different sequences of writes never produce the same state.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct where the internal hash function is initialized
// with "FROST-WALLET-BLAKE3", followed by the initial data.
func New(initialData ...WriterToWithDomain) *Hash {
	hash := &Hash{h: blake3.New()}
	_, _ = hash.h.WriteString("FROST-WALLET-BLAKE3")
	for _, d := range initialData {
		_ = hash.WriteAny(d)
	}
	return hash
}

// Digest returns a reader for the current state of the hash.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current
// hash state. If a different length is required, use io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - string
//   - *saferith.Nat
//   - hash.WriterToWithDomain
//   - encoding.BinaryMarshaler (curve.Scalar and curve.Point)
func (hash *Hash) WriteAny(data ...interface{}) error {
	var toBeWritten WriterToWithDomain
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			toBeWritten = BytesWithDomain{"[]byte", t}
		case string:
			toBeWritten = BytesWithDomain{"string", []byte(t)}
		case *saferith.Nat:
			toBeWritten = BytesWithDomain{"saferith.Nat", t.Bytes()}
		case WriterToWithDomain:
			toBeWritten = t
		case encoding.BinaryMarshaler:
			bytes, err := t.MarshalBinary()
			if err != nil {
				return fmt.Errorf("hash.Hash: %w", err)
			}
			toBeWritten = BytesWithDomain{"BinaryMarshaler", bytes}
		default:
			return errors.New("hash.Hash: unsupported type")
		}

		if err := hash.writeFramed(toBeWritten); err != nil {
			return err
		}
	}
	return nil
}

// writeFramed writes len(domain) || domain || len(data) || data.
func (hash *Hash) writeFramed(v WriterToWithDomain) error {
	domain := v.Domain()
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(domain)))
	_, _ = hash.h.Write(length[:])
	_, _ = hash.h.WriteString(domain)

	buf := newBuffer()
	if _, err := v.WriteTo(buf); err != nil {
		return fmt.Errorf("hash.Hash: write %s: %w", domain, err)
	}
	binary.BigEndian.PutUint64(length[:], uint64(len(buf.data)))
	_, _ = hash.h.Write(length[:])
	_, _ = hash.h.Write(buf.data)
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// Fork clones this hash, and then writes some data.
func (hash *Hash) Fork(data ...interface{}) *Hash {
	newHash := hash.Clone()
	_ = newHash.WriteAny(data...)
	return newHash
}

type buffer struct {
	data []byte
}

func newBuffer() *buffer {
	return &buffer{data: make([]byte, 0, 64)}
}

func (b *buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
