package legalizer

import "github.com/raymyers/ralph-legalize/pkg/llt"

// Mutation computes the type index to change and its replacement type
type Mutation func(q Query) (int, llt.Type)

// ChangeTo replaces type index idx with t
func ChangeTo(idx int, t llt.Type) Mutation {
	return func(Query) (int, llt.Type) { return idx, t }
}

// ChangeToSameAs replaces type index idx with the type at from
func ChangeToSameAs(idx, from int) Mutation {
	return func(q Query) (int, llt.Type) { return idx, q.Type(from) }
}

// ChangeElementTo replaces the element type of type index idx, keeping the
// lane count
func ChangeElementTo(idx int, elt llt.Type) Mutation {
	return func(q Query) (int, llt.Type) {
		return idx, q.Type(idx).ChangeElementType(elt)
	}
}

// ChangeElementCountTo gives type index idx lanes elements; one lane yields
// the element type
func ChangeElementCountTo(idx, lanes int) Mutation {
	return func(q Query) (int, llt.Type) {
		return idx, q.Type(idx).ChangeElementCount(lanes)
	}
}

// WidenScalarToNextPow2Mutation widens a scalar, or the element of a vector,
// to the next power of two of at least minBits
func WidenScalarToNextPow2Mutation(idx, minBits int) Mutation {
	return func(q Query) (int, llt.Type) {
		t := q.Type(idx)
		bits := max(llt.NextPow2(t.ScalarSizeInBits()), minBits)
		return idx, t.ChangeElementSize(bits)
	}
}

// MoreElementsToNextPow2 pads a vector to the next power of two lane count of
// at least minLanes
func MoreElementsToNextPow2(idx, minLanes int) Mutation {
	return func(q Query) (int, llt.Type) {
		t := q.Type(idx)
		lanes := max(llt.NextPow2(t.NumElements()), minLanes)
		return idx, t.ChangeElementCount(lanes)
	}
}

// ScalarizeMutation replaces a vector with its element type
func ScalarizeMutation(idx int) Mutation {
	return func(q Query) (int, llt.Type) {
		return idx, q.Type(idx).ElementType()
	}
}

// WidenScalarToNextPow2OrMultiple widens a scalar past its width to the next
// power of two. Once that reaches from bits, the next multiple of step is
// used instead when it is smaller.
func WidenScalarToNextPow2OrMultiple(idx, step, from int) Mutation {
	return func(q Query) (int, llt.Type) {
		size := q.Type(idx).SizeInBits()
		bits := llt.NextPow2(size + 1)
		if bits >= from {
			bits = min(bits, llt.AlignTo(size+1, step))
		}
		return idx, llt.Scalar(bits)
	}
}
