// Package sortkey implements the rational ordering keys that position
// items among their siblings. Inserting between two neighbors allocates
// the mediant of their keys, so no other item ever needs renumbering.
package sortkey

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Key is a rational number num/den. Keys are never reduced to lowest
// terms; repeated insertion between the same neighbors grows both
// components without bound, which is accepted for realistic list sizes.
type Key struct {
	Num uint32
	Den uint32
}

// Start is the virtual neighbor below the first sibling (scalar 0).
func Start() Key { return Key{Num: 0, Den: 1} }

// End is the virtual neighbor above the last sibling (scalar +Inf).
func End() Key { return Key{Num: 1, Den: 0} }

// ErrReversedNeighbors reports that the caller passed two physical
// neighbors in the wrong order.
var ErrReversedNeighbors = errors.New("sortkey: after does not precede before")

// Mediant returns the key (an+bn)/(ad+bd), which lies strictly between
// its two neighbors. A nil after stands in for Start, a nil before for
// End. Reversed physical neighbors would silently produce an
// out-of-order key, so they are rejected instead.
func Mediant(after, before *Key) (Key, error) {
	a := Start()
	if after != nil {
		a = *after
	}
	b := End()
	if before != nil {
		b = *before
	}
	if after != nil && before != nil && a.Scalar() >= b.Scalar() {
		return Key{}, fmt.Errorf("%w: %v >= %v", ErrReversedNeighbors, a, b)
	}
	return Key{Num: a.Num + b.Num, Den: a.Den + b.Den}, nil
}

// Scalar returns the comparable value num/den. End maps to +Inf.
func (k Key) Scalar() float64 {
	return float64(k.Num) / float64(k.Den)
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Num, k.Den)
}

// encodedLen is the persisted size: two unsigned 32-bit integers.
const encodedLen = 8

// Bytes encodes the key as two little-endian uint32 values, numerator
// first. The byte order is fixed and part of the stored format.
func (k Key) Bytes() []byte {
	buf := make([]byte, encodedLen)
	binary.LittleEndian.PutUint32(buf[0:4], k.Num)
	binary.LittleEndian.PutUint32(buf[4:8], k.Den)
	return buf
}

// FromBytes decodes a key previously encoded with Bytes.
func FromBytes(raw []byte) (Key, error) {
	if len(raw) != encodedLen {
		return Key{}, fmt.Errorf("sortkey: expected %d bytes, got %d", encodedLen, len(raw))
	}
	return Key{
		Num: binary.LittleEndian.Uint32(raw[0:4]),
		Den: binary.LittleEndian.Uint32(raw[4:8]),
	}, nil
}
