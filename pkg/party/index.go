package party

import (
	"encoding/binary"
	"io"
	"sort"
	"strconv"

	"github.com/taurusgroup/frost-wallet/pkg/math/curve"
)

// ByteSize is the number of bytes required to store an Index.
const ByteSize = 2

// MaxIndex is the largest Index that can be represented.
const MaxIndex = (1 << (ByteSize * 8)) - 1

// Index is the position of a participant within a session, counted from 1.
// It is the x coordinate at which that participant's share is evaluated.
//
// The zero Index is never a valid participant; on the wire it addresses all
// participants.
type Index uint16

// Scalar returns the corresponding curve.Scalar.
func (i Index) Scalar(group curve.Curve) curve.Scalar {
	return curve.ScalarFromUint64(group, uint64(i))
}

// Bytes returns a []byte slice of length party.ByteSize.
func (i Index) Bytes() []byte {
	out := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(out, uint16(i))
	return out
}

// String returns a base 10 representation of Index.
func (i Index) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// WriteTo makes Index implement the io.WriterTo interface.
func (i Index) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(i.Bytes())
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (Index) Domain() string {
	return "Index"
}

// IndexSlice is a sorted set of indices.
type IndexSlice []Index

// NewIndexSlice returns a sorted copy of indices.
func NewIndexSlice(indices []Index) IndexSlice {
	out := make(IndexSlice, len(indices))
	copy(out, indices)
	sort.Sort(out)
	return out
}

func (s IndexSlice) Len() int           { return len(s) }
func (s IndexSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s IndexSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Valid returns true if the slice is sorted, free of duplicates, and contains
// no zero Index.
func (s IndexSlice) Valid() bool {
	for i := range s {
		if s[i] == 0 {
			return false
		}
		if i > 0 && s[i-1] >= s[i] {
			return false
		}
	}
	return true
}

// Contains returns true if s contains all of the given indices.
func (s IndexSlice) Contains(indices ...Index) bool {
	for _, index := range indices {
		pos := sort.Search(len(s), func(i int) bool { return s[i] >= index })
		if pos >= len(s) || s[pos] != index {
			return false
		}
	}
	return true
}

// Remove returns a copy of s without index.
func (s IndexSlice) Remove(index Index) IndexSlice {
	out := make(IndexSlice, 0, len(s))
	for _, other := range s {
		if other != index {
			out = append(out, other)
		}
	}
	return out
}

// WriteTo implements the io.WriterTo interface, writing each index in order.
func (s IndexSlice) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, index := range s {
		n, err := index.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (IndexSlice) Domain() string {
	return "IndexSlice"
}

func writeLengthPrefixed(w io.Writer, data []byte) (int64, error) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	n1, err := w.Write(length[:])
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(data)
	return int64(n1 + n2), err
}
