package party

import (
	"io"
)

// IDSlice is an ordered list of participant identities.
//
// Unlike an IndexSlice, the order is meaningful: the position of an ID
// determines its Index.
type IDSlice []ID

// Valid returns true if all IDs are non-empty and pairwise distinct.
func (ids IDSlice) Valid() bool {
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return false
		}
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// Contains returns true if ids contains all of the given IDs.
func (ids IDSlice) Contains(others ...ID) bool {
	for _, other := range others {
		if ids.position(other) < 0 {
			return false
		}
	}
	return true
}

// IndexOf returns the Index of id, which is one more than its position.
func (ids IDSlice) IndexOf(id ID) (Index, bool) {
	pos := ids.position(id)
	if pos < 0 {
		return 0, false
	}
	return Index(pos + 1), true
}

func (ids IDSlice) position(id ID) int {
	for i, other := range ids {
		if other == id {
			return i
		}
	}
	return -1
}

// Copy returns an identical copy of the receiver.
func (ids IDSlice) Copy() IDSlice {
	a := make(IDSlice, len(ids))
	copy(a, ids)
	return a
}

// WriteTo implements the io.WriterTo interface, writing the IDs in order.
func (ids IDSlice) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, id := range ids {
		n, err := writeLengthPrefixed(w, []byte(id))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (IDSlice) Domain() string {
	return "IDSlice"
}
