package legalizer

import (
	"slices"

	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Predicate decides whether a rule matches a query. It remembers the type
// indices it inspects so catalogs can be checked against opcode layouts.
type Predicate struct {
	test   func(Query) bool
	idxs   []int
	always bool
}

// PredicateFunc wraps an arbitrary test. typeIdxs lists the type indices the
// test reads.
func PredicateFunc(fn func(Query) bool, typeIdxs ...int) Predicate {
	return Predicate{test: fn, idxs: typeIdxs}
}

// Test evaluates the predicate
func (p Predicate) Test(q Query) bool {
	if p.always {
		return true
	}
	return p.test != nil && p.test(q)
}

// IsAlways reports whether the predicate holds for every query
func (p Predicate) IsAlways() bool {
	return p.always
}

// TypeIndices returns the type indices the predicate reads
func (p Predicate) TypeIndices() []int {
	return p.idxs
}

// Always matches every query
func Always() Predicate {
	return Predicate{always: true}
}

// TypeIs matches when type index idx holds t
func TypeIs(idx int, t llt.Type) Predicate {
	return PredicateFunc(func(q Query) bool { return q.Type(idx) == t }, idx)
}

// TypeInSet matches when type index idx holds one of types
func TypeInSet(idx int, types ...llt.Type) Predicate {
	return PredicateFunc(func(q Query) bool {
		return slices.Contains(types, q.Type(idx))
	}, idx)
}

// TypePairInSet matches when (idx0, idx1) is one of pairs
func TypePairInSet(idx0, idx1 int, pairs ...[2]llt.Type) Predicate {
	return PredicateFunc(func(q Query) bool {
		return slices.Contains(pairs, [2]llt.Type{q.Type(idx0), q.Type(idx1)})
	}, idx0, idx1)
}

// TypeTupleInSet matches when the types at idxs equal one of tuples
func TypeTupleInSet(idxs []int, tuples ...[]llt.Type) Predicate {
	return PredicateFunc(func(q Query) bool {
		for _, tuple := range tuples {
			if len(tuple) != len(idxs) {
				continue
			}
			match := true
			for i, idx := range idxs {
				if q.Type(idx) != tuple[i] {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
		return false
	}, idxs...)
}

// TypePairAndMemSize is one entry of a memory-size aware legal set
type TypePairAndMemSize struct {
	Type0   llt.Type
	Type1   llt.Type
	MemSize int
}

// TypePairAndMemSizeInSet matches when (idx0, idx1) and the size of memory
// operand mmoIdx equal one of entries
func TypePairAndMemSizeInSet(idx0, idx1, mmoIdx int, entries ...TypePairAndMemSize) Predicate {
	return PredicateFunc(func(q Query) bool {
		want := TypePairAndMemSize{q.Type(idx0), q.Type(idx1), q.MemSize(mmoIdx)}
		return slices.Contains(entries, want)
	}, idx0, idx1)
}

// IsScalar matches when type index idx holds a scalar
func IsScalar(idx int) Predicate {
	return PredicateFunc(func(q Query) bool { return q.Type(idx).IsScalar() }, idx)
}

// IsVector matches when type index idx holds a vector
func IsVector(idx int) Predicate {
	return PredicateFunc(func(q Query) bool { return q.Type(idx).IsVector() }, idx)
}

// IsPointer matches when type index idx holds a pointer
func IsPointer(idx int) Predicate {
	return PredicateFunc(func(q Query) bool { return q.Type(idx).IsPointer() }, idx)
}

// IsPointerIn matches a pointer in the given address space
func IsPointerIn(idx, space int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsPointer() && t.AddressSpace() == space
	}, idx)
}

// ElementTypeIs matches a vector whose element type is elt
func ElementTypeIs(idx int, elt llt.Type) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsVector() && t.ElementType() == elt
	}, idx)
}

// NarrowerThan matches a scalar of fewer than bits bits
func NarrowerThan(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsScalar() && t.SizeInBits() < bits
	}, idx)
}

// WiderThan matches a scalar of more than bits bits
func WiderThan(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsScalar() && t.SizeInBits() > bits
	}, idx)
}

// ScalarOrEltNarrowerThan matches a scalar or vector whose element is
// narrower than bits
func ScalarOrEltNarrowerThan(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && !t.IsPointer() && t.ScalarSizeInBits() < bits
	}, idx)
}

// ScalarOrEltWiderThan matches a scalar or vector whose element is wider
// than bits
func ScalarOrEltWiderThan(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && !t.IsPointer() && t.ScalarSizeInBits() > bits
	}, idx)
}

// SizeIs matches any type of exactly bits total bits
func SizeIs(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && t.SizeInBits() == bits
	}, idx)
}

// SizeAtMost matches any type of at most bits total bits
func SizeAtMost(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && t.SizeInBits() <= bits
	}, idx)
}

// SizeMultipleOf matches any type whose total width is a multiple of bits
func SizeMultipleOf(idx, bits int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && t.SizeInBits()%bits == 0
	}, idx)
}

// NumElementsMultipleOf matches a vector whose lane count is a multiple of n
func NumElementsMultipleOf(idx, n int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsVector() && t.NumElements()%n == 0
	}, idx)
}

// IsElementOf matches when type index idx holds the element type of the
// vector at vecIdx
func IsElementOf(idx, vecIdx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		v := q.Type(vecIdx)
		return v.IsVector() && q.Type(idx) == v.ElementType()
	}, idx, vecIdx)
}

// SizeNotPow2 matches a scalar whose width is not a power of two
func SizeNotPow2(idx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsScalar() && !llt.IsPow2(t.SizeInBits())
	}, idx)
}

// ScalarOrEltSizeNotPow2 matches a scalar or vector whose element width is
// not a power of two
func ScalarOrEltSizeNotPow2(idx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsValid() && !t.IsPointer() && !llt.IsPow2(t.ScalarSizeInBits())
	}, idx)
}

// NumElementsNotPow2 matches a vector whose lane count is not a power of two
func NumElementsNotPow2(idx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		t := q.Type(idx)
		return t.IsVector() && !llt.IsPow2(t.NumElements())
	}, idx)
}

// MemSizeNotPow2 matches when memory operand mmoIdx is not a power of two
// number of bytes
func MemSizeNotPow2(mmoIdx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		size := q.MemSize(mmoIdx)
		return size > 0 && (size < 8 || !llt.IsPow2(size))
	})
}

// MemNarrowerThanType matches when memory operand mmoIdx accesses fewer
// bits than type index idx holds
func MemNarrowerThanType(idx, mmoIdx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		return q.MemSize(mmoIdx) < q.Type(idx).SizeInBits()
	}, idx)
}

// MemSizeMatchesType matches when memory operand mmoIdx accesses exactly
// the width of type index idx
func MemSizeMatchesType(idx, mmoIdx int) Predicate {
	return PredicateFunc(func(q Query) bool {
		return q.MemSize(mmoIdx) == q.Type(idx).SizeInBits()
	}, idx)
}

// MemSizeInSet matches when memory operand mmoIdx has one of sizes
func MemSizeInSet(mmoIdx int, sizes ...int) Predicate {
	return PredicateFunc(func(q Query) bool {
		return slices.Contains(sizes, q.MemSize(mmoIdx))
	})
}

// All matches when every predicate matches
func All(preds ...Predicate) Predicate {
	p := Predicate{always: true}
	for _, sub := range preds {
		p.idxs = append(p.idxs, sub.idxs...)
		p.always = p.always && sub.always
	}
	p.test = func(q Query) bool {
		for _, sub := range preds {
			if !sub.Test(q) {
				return false
			}
		}
		return true
	}
	return p
}

// Any matches when at least one predicate matches
func Any(preds ...Predicate) Predicate {
	p := Predicate{}
	for _, sub := range preds {
		p.idxs = append(p.idxs, sub.idxs...)
		p.always = p.always || sub.always
	}
	p.test = func(q Query) bool {
		for _, sub := range preds {
			if sub.Test(q) {
				return true
			}
		}
		return false
	}
	return p
}

// Not inverts a predicate
func Not(pred Predicate) Predicate {
	return PredicateFunc(func(q Query) bool { return !pred.Test(q) }, pred.idxs...)
}
