// Package tuple implements an immutable, fixed-arity ordered sequence of
// atoms with lexicographic compare and a canonical, length-prefixed byte
// encoding.
package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dgryski/go-farm"

	"github.com/lftjplus/engine/atom"
)

// Tuple is an immutable sequence of atoms of known arity.
type Tuple struct {
	atoms []atom.Atom
}

// New builds a tuple from the given atoms. The slice is copied so the
// Tuple remains immutable even if the caller mutates its argument.
func New(atoms ...atom.Atom) Tuple {
	cp := make([]atom.Atom, len(atoms))
	copy(cp, atoms)
	return Tuple{atoms: cp}
}

// Empty is the arity-0 tuple, the empty prefix every trie descent starts from.
var Empty = Tuple{}

// Arity returns the tuple's length.
func (t Tuple) Arity() int { return len(t.atoms) }

// At returns the atom at position i. Panics if i is out of range; an
// out-of-range index is a programming error, not a runtime condition.
func (t Tuple) At(i int) atom.Atom { return t.atoms[i] }

// Atoms returns a defensive copy of the underlying atom sequence.
func (t Tuple) Atoms() []atom.Atom {
	cp := make([]atom.Atom, len(t.atoms))
	copy(cp, t.atoms)
	return cp
}

// Slice returns the prefix tuple of the first n atoms (0 <= n <= Arity()).
func (t Tuple) Slice(n int) Tuple {
	return New(t.atoms[:n]...)
}

// Append returns a new tuple with a extended by a.
func (t Tuple) Append(a atom.Atom) Tuple {
	out := make([]atom.Atom, len(t.atoms)+1)
	copy(out, t.atoms)
	out[len(t.atoms)] = a
	return Tuple{atoms: out}
}

// Compare is the lexicographic order over atoms, shorter-prefix-first when
// one tuple is a strict prefix of the other.
func (t Tuple) Compare(o Tuple) int {
	n := len(t.atoms)
	if len(o.atoms) < n {
		n = len(o.atoms)
	}
	for i := 0; i < n; i++ {
		if c := t.atoms[i].Compare(o.atoms[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(t.atoms) < len(o.atoms):
		return -1
	case len(t.atoms) > len(o.atoms):
		return 1
	default:
		return 0
	}
}

// Equal reports byte-level equality.
func (t Tuple) Equal(o Tuple) bool {
	return bytes.Equal(t.Bytes(), o.Bytes())
}

// Bytes returns the canonical encoding: a 4-byte big-endian arity tag
// followed by the concatenation of each atom's canonical bytes. Atom
// encodings are themselves length-tagged (see atom.Atom.Bytes), so no two
// distinct tuples — of equal or different arity — ever share an encoding.
func (t Tuple) Bytes() []byte {
	var buf bytes.Buffer
	var arityTag [4]byte
	binary.BigEndian.PutUint32(arityTag[:], uint32(len(t.atoms)))
	buf.Write(arityTag[:])
	for _, a := range t.atoms {
		buf.Write(a.Bytes())
	}
	return buf.Bytes()
}

// Key returns the canonical encoding as a string, suitable for use as a
// map key or a set element (see the delta package).
func (t Tuple) Key() string { return string(t.Bytes()) }

// FastHash returns a non-cryptographic fingerprint of the tuple's
// canonical bytes, used by the trie's iterator-factory memoization cache.
func (t Tuple) FastHash() uint64 {
	b := t.Bytes()
	return farm.Hash64(b)
}

// String renders a debug-friendly representation.
func (t Tuple) String() string {
	parts := make([]string, len(t.atoms))
	for i, a := range t.atoms {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

// FromBytes decodes a tuple previously produced by Bytes. It is provided
// for symmetry and diagnostics; the engine itself never needs to decode a
// tuple it didn't already hold in memory.
func FromBytes(data []byte) (Tuple, error) {
	if len(data) < 4 {
		return Tuple{}, fmt.Errorf("tuple: truncated arity tag")
	}
	arity := binary.BigEndian.Uint32(data[:4])
	rest := data[4:]
	atoms := make([]atom.Atom, 0, arity)
	for i := uint32(0); i < arity; i++ {
		a, n, err := decodeAtom(rest)
		if err != nil {
			return Tuple{}, err
		}
		atoms = append(atoms, a)
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return Tuple{}, fmt.Errorf("tuple: trailing bytes after decoding %d atoms", arity)
	}
	return New(atoms...), nil
}

func decodeAtom(data []byte) (atom.Atom, int, error) {
	if len(data) < 1 {
		return atom.Atom{}, 0, fmt.Errorf("tuple: truncated atom tag")
	}
	switch atom.Variant(data[0]) {
	case atom.VariantInteger:
		if len(data) < 9 {
			return atom.Atom{}, 0, fmt.Errorf("tuple: truncated integer atom")
		}
		u := binary.BigEndian.Uint64(data[1:9])
		v := int64(u ^ (uint64(1) << 63))
		return atom.NewInteger(v), 9, nil
	case atom.VariantString:
		payload, n, err := decodeTagged(data)
		if err != nil {
			return atom.Atom{}, 0, err
		}
		return atom.NewString(string(payload)), n, nil
	case atom.VariantId:
		payload, n, err := decodeTagged(data)
		if err != nil {
			return atom.Atom{}, 0, err
		}
		return atom.NewId(payload), n, nil
	default:
		return atom.Atom{}, 0, fmt.Errorf("tuple: unknown atom variant %d", data[0])
	}
}

func decodeTagged(data []byte) ([]byte, int, error) {
	if len(data) < 5 {
		return nil, 0, fmt.Errorf("tuple: truncated length-tagged atom")
	}
	length := binary.BigEndian.Uint32(data[1:5])
	end := 5 + int(length)
	if len(data) < end {
		return nil, 0, fmt.Errorf("tuple: truncated payload")
	}
	return data[5:end], end, nil
}
