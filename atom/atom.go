// Package atom implements the totally ordered value cells a relation's
// tuples are built from: a closed Integer | String | Id sum type with a
// deterministic canonical byte encoding (order-preserving for Integer
// atoms only; see Atom.Bytes).
package atom

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/lftjplus/engine/internal/xerr"
)

// Variant is the closed tag of an Atom.
type Variant byte

// Cross-variant order is fixed: Integer < String < Id.
const (
	VariantInteger Variant = 0
	VariantString  Variant = 1
	VariantId      Variant = 2
)

// Atom is an immutable totally ordered value. The zero Atom is invalid;
// construct one with NewInteger, NewString, or NewId.
type Atom struct {
	variant Variant
	i       int64
	s       string
	id      []byte
}

// NewInteger builds a signed 64-bit integer atom.
func NewInteger(v int64) Atom { return Atom{variant: VariantInteger, i: v} }

// NewString builds a Unicode string atom, compared by code-point order.
func NewString(v string) Atom { return Atom{variant: VariantString, s: v} }

// NewId builds an opaque identifier atom, compared lexicographically over
// its given bytes. The bytes are copied so the Atom remains immutable.
func NewId(v []byte) Atom {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Atom{variant: VariantId, id: cp}
}

// Variant reports the atom's closed-sum-type tag.
func (a Atom) Variant() Variant { return a.variant }

// Int returns the underlying integer; only meaningful if Variant() ==
// VariantInteger.
func (a Atom) Int() int64 { return a.i }

// Str returns the underlying string; only meaningful if Variant() ==
// VariantString.
func (a Atom) Str() string { return a.s }

// IdBytes returns the underlying id bytes; only meaningful if Variant() ==
// VariantId.
func (a Atom) IdBytes() []byte { return a.id }

// Compare implements the total order over atoms: cross-variant order is
// Integer < String < Id; within a variant, Integer compares numerically,
// String by code point (Go's native string compare, which is byte-wise
// UTF-8 and therefore code-point order), Id lexicographically over bytes.
func (a Atom) Compare(b Atom) int {
	if a.variant != b.variant {
		if a.variant < b.variant {
			return -1
		}
		return 1
	}
	switch a.variant {
	case VariantInteger:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case VariantString:
		return stringCompare(a.s, b.s)
	case VariantId:
		return bytes.Compare(a.id, b.id)
	default:
		panic(fmt.Sprintf("atom: unknown variant %d", a.variant))
	}
}

func stringCompare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Equal reports byte-level equality of the atoms' canonical encodings.
func (a Atom) Equal(b Atom) bool {
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// Bytes returns the canonical, prefix-free-across-variants encoding of the
// atom:
//
//	[variant tag: 1 byte][payload]
//
// Integer payload is 8 bytes, big-endian, with the sign bit flipped so
// unsigned byte-wise comparison matches signed numeric comparison. String
// and Id payloads are length-prefixed (4-byte big-endian length then raw
// bytes) so no encoding of one is a prefix of another of a different
// length, keeping distinct atoms from ever sharing bytes. Because the
// length comes first, byte-wise order of String and Id encodings follows
// payload length before content and does not match Compare (Str("b")
// encodes below Str("aa")).
func (a Atom) Bytes() []byte {
	switch a.variant {
	case VariantInteger:
		buf := make([]byte, 9)
		buf[0] = byte(VariantInteger)
		binary.BigEndian.PutUint64(buf[1:], uint64(a.i)^uint64(1)<<63)
		return buf
	case VariantString:
		return encodeTagged(VariantString, []byte(a.s))
	case VariantId:
		return encodeTagged(VariantId, a.id)
	default:
		panic(fmt.Sprintf("atom: unknown variant %d", a.variant))
	}
}

func encodeTagged(v Variant, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = byte(v)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// String renders a debug-friendly representation. Id atoms render as
// base58 of their raw id bytes — the same "compact, copy-pasteable"
// treatment content-addressed systems give opaque identifiers.
func (a Atom) String() string {
	switch a.variant {
	case VariantInteger:
		return fmt.Sprintf("Int(%d)", a.i)
	case VariantString:
		return fmt.Sprintf("Str(%q)", a.s)
	case VariantId:
		return fmt.Sprintf("Id(%s)", base58.Encode(a.id))
	default:
		return "Atom(invalid)"
	}
}

// Fingerprint returns a short BLAKE2b-160 digest of the atom's canonical
// bytes. No error message or String rendering in this module includes it.
func (a Atom) Fingerprint() [20]byte {
	return blake2b160(a.Bytes())
}

func blake2b160(data []byte) (ret [20]byte) {
	h, err := blake2b.New(20, nil)
	xerr.Assert(err == nil, "atom: blake2b.New(20, nil) failed: %v", err)
	_, err = h.Write(data)
	xerr.Assert(err == nil, "atom: hash write failed: %v", err)
	copy(ret[:], h.Sum(nil))
	return ret
}
