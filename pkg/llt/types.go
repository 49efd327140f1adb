// Package llt defines the low-level types carried by generic machine
// instructions. A type only describes the shape of a value: a scalar of some
// width, a vector of lanes, or a pointer into an address space. Integer and
// floating point values share the same scalar types.
package llt

import (
	"fmt"

	"fortio.org/safecast"
)

// Kind distinguishes the three type variants
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindVector
	KindPointer
)

func (k Kind) String() string {
	names := []string{"invalid", "scalar", "vector", "pointer"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Type is an immutable type descriptor. The zero value is the invalid type.
// Types are comparable with ==.
type Type struct {
	kind    Kind
	eltKind Kind   // element kind for vectors: scalar or pointer
	lanes   uint16 // vectors only
	bits    uint32 // scalar width, pointer width or element width
	space   uint32 // address space of pointers and pointer elements
}

func toBits(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil || v == 0 {
		panic(fmt.Errorf("llt: invalid width %d: %v", n, err))
	}
	return v
}

// Scalar returns a scalar type of the given width in bits
func Scalar(bits int) Type {
	return Type{kind: KindScalar, bits: toBits(bits)}
}

// Pointer returns a pointer type in the given address space
func Pointer(space, bits int) Type {
	s, err := safecast.Conv[uint32](space)
	if err != nil {
		panic(fmt.Errorf("llt: invalid address space %d: %w", space, err))
	}
	return Type{kind: KindPointer, bits: toBits(bits), space: s}
}

// Vector returns a vector of lanes scalar elements of eltBits each.
// A single-lane vector collapses to its element type.
func Vector(lanes, eltBits int) Type {
	return VectorOf(lanes, Scalar(eltBits))
}

// VectorOf returns a vector of lanes elements of type elt, which must be a
// scalar or a pointer. A single-lane vector collapses to elt.
func VectorOf(lanes int, elt Type) Type {
	if elt.kind != KindScalar && elt.kind != KindPointer {
		panic(fmt.Errorf("llt: invalid vector element %s", elt))
	}
	if lanes == 1 {
		return elt
	}
	l, err := safecast.Conv[uint16](lanes)
	if err != nil || l == 0 {
		panic(fmt.Errorf("llt: invalid lane count %d: %v", lanes, err))
	}
	return Type{kind: KindVector, eltKind: elt.kind, lanes: l, bits: elt.bits, space: elt.space}
}

// Kind returns the variant of the type
func (t Type) Kind() Kind { return t.kind }

func (t Type) IsValid() bool   { return t.kind != KindInvalid }
func (t Type) IsScalar() bool  { return t.kind == KindScalar }
func (t Type) IsVector() bool  { return t.kind == KindVector }
func (t Type) IsPointer() bool { return t.kind == KindPointer }

// NumElements returns the lane count of a vector and 1 for anything else
func (t Type) NumElements() int {
	if t.kind == KindVector {
		return int(t.lanes)
	}
	return 1
}

// ScalarSizeInBits returns the width of a scalar, a pointer, or a vector element
func (t Type) ScalarSizeInBits() int {
	return int(t.bits)
}

// SizeInBits returns the total width of the type
func (t Type) SizeInBits() int {
	return t.NumElements() * int(t.bits)
}

// AddressSpace returns the address space of a pointer or pointer vector
func (t Type) AddressSpace() int {
	return int(t.space)
}

// ElementType returns the element of a vector; scalars and pointers are their
// own element type.
func (t Type) ElementType() Type {
	if t.kind != KindVector {
		return t
	}
	return Type{kind: t.eltKind, bits: t.bits, space: t.space}
}

// IsPow2Size reports whether the total size is a power of two
func (t Type) IsPow2Size() bool {
	return t.IsValid() && IsPow2(t.SizeInBits())
}

// ChangeElementCount returns a type with the same element and n lanes.
// n == 1 yields the element type.
func (t Type) ChangeElementCount(n int) Type {
	return VectorOf(n, t.ElementType())
}

// ChangeElementSize returns a type with the same shape and elements of bits
// width. Pointer elements become scalars.
func (t Type) ChangeElementSize(bits int) Type {
	if t.kind == KindVector {
		return Vector(int(t.lanes), bits)
	}
	return Scalar(bits)
}

// ChangeElementType replaces the element type and keeps the lane count
func (t Type) ChangeElementType(elt Type) Type {
	if t.kind == KindVector {
		return VectorOf(int(t.lanes), elt)
	}
	return elt
}

// String prints s32, p1.64 or <2 x s16>
func (t Type) String() string {
	switch t.kind {
	case KindScalar:
		return fmt.Sprintf("s%d", t.bits)
	case KindPointer:
		return fmt.Sprintf("p%d.%d", t.space, t.bits)
	case KindVector:
		return fmt.Sprintf("<%d x %s>", t.lanes, t.ElementType())
	}
	return "invalid"
}
