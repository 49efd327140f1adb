package legalizer

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Rule pairs a predicate with the action taken when it matches. Rules are
// values; constructors return them in the order they must be tried.
type Rule struct {
	Action   Action
	pred     Predicate
	mutation Mutation
	typeIdxs []int
	desc     string
}

// NewRule builds a rule from parts. mutation may be nil for actions that do
// not change a type. typeIdxs lists indices the mutation writes.
func NewRule(desc string, action Action, pred Predicate, mutation Mutation, typeIdxs ...int) Rule {
	return Rule{
		Action:   action,
		pred:     pred,
		mutation: mutation,
		typeIdxs: append(append([]int(nil), pred.idxs...), typeIdxs...),
		desc:     desc,
	}
}

// Matches reports whether the rule applies to q
func (r Rule) Matches(q Query) bool {
	return r.pred.Test(q)
}

// Total reports whether the rule matches every query
func (r Rule) Total() bool {
	return r.pred.IsAlways()
}

// HasMutation reports whether the rule computes a new type
func (r Rule) HasMutation() bool {
	return r.mutation != nil
}

// Mutate applies the rule's mutation to q
func (r Rule) Mutate(q Query) (int, llt.Type) {
	if r.mutation == nil {
		return -1, llt.Type{}
	}
	return r.mutation(q)
}

// TypeIndices lists every type index the rule reads or writes
func (r Rule) TypeIndices() []int {
	return r.typeIdxs
}

func (r Rule) String() string {
	return r.desc
}

// Concat joins rule groups in order
func Concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func one(r Rule) []Rule { return []Rule{r} }

func typeList(types []llt.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// AlwaysLegal always matches and declares the instruction legal
func AlwaysLegal() []Rule {
	return one(NewRule("legal", Legal, Always(), nil))
}

// LegalIf declares the instruction legal when pred holds
func LegalIf(pred Predicate) []Rule {
	return one(NewRule("legal_if", Legal, pred, nil))
}

// LegalFor declares type index 0 legal for each of types
func LegalFor(types ...llt.Type) []Rule {
	return one(NewRule(fmt.Sprintf("legal_for(%s)", typeList(types)), Legal, TypeInSet(0, types...), nil))
}

// LegalForPairs declares type indices 0 and 1 legal for each pair
func LegalForPairs(pairs ...[2]llt.Type) []Rule {
	return one(NewRule(fmt.Sprintf("legal_for_pairs(%d)", len(pairs)), Legal, TypePairInSet(0, 1, pairs...), nil))
}

// LegalForTuples declares the leading type indices legal for each tuple
func LegalForTuples(tuples ...[]llt.Type) []Rule {
	n := 0
	for _, t := range tuples {
		n = max(n, len(t))
	}
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return one(NewRule(fmt.Sprintf("legal_for_tuples(%d)", len(tuples)), Legal, TypeTupleInSet(idxs, tuples...), nil))
}

// LegalForCartesianProduct declares legal every combination where type
// index i is drawn from sets[i]
func LegalForCartesianProduct(sets ...[]llt.Type) []Rule {
	preds := make([]Predicate, len(sets))
	descs := make([]string, len(sets))
	for i, set := range sets {
		preds[i] = TypeInSet(i, set...)
		descs[i] = "{" + typeList(set) + "}"
	}
	desc := fmt.Sprintf("legal_for_cartesian_product(%s)", strings.Join(descs, " x "))
	pred := All(preds...)
	pred.always = false
	return one(NewRule(desc, Legal, pred, nil))
}

// LegalForTypesWithMemSize declares (type0, type1, memory size) triples legal
func LegalForTypesWithMemSize(entries ...TypePairAndMemSize) []Rule {
	return one(NewRule(fmt.Sprintf("legal_for_types_with_mem_size(%d)", len(entries)), Legal,
		TypePairAndMemSizeInSet(0, 1, 0, entries...), nil))
}

// AlwaysLower always matches and expands the instruction
func AlwaysLower() []Rule {
	return one(NewRule("lower", Lower, Always(), nil))
}

// LowerIf expands the instruction when pred holds
func LowerIf(pred Predicate) []Rule {
	return one(NewRule("lower_if", Lower, pred, nil))
}

// LowerFor expands the instruction when type index 0 is one of types
func LowerFor(types ...llt.Type) []Rule {
	return one(NewRule(fmt.Sprintf("lower_for(%s)", typeList(types)), Lower, TypeInSet(0, types...), nil))
}

// AlwaysCustom always matches and calls the target's handler
func AlwaysCustom() []Rule {
	return one(NewRule("custom", Custom, Always(), nil))
}

// CustomIf calls the target's handler when pred holds
func CustomIf(pred Predicate) []Rule {
	return one(NewRule("custom_if", Custom, pred, nil))
}

// CustomFor calls the target's handler when type index 0 is one of types
func CustomFor(types ...llt.Type) []Rule {
	return one(NewRule(fmt.Sprintf("custom_for(%s)", typeList(types)), Custom, TypeInSet(0, types...), nil))
}

// AlwaysUnsupported always matches and fails legalization
func AlwaysUnsupported() []Rule {
	return one(NewRule("unsupported", Unsupported, Always(), nil))
}

// UnsupportedIf fails legalization when pred holds
func UnsupportedIf(pred Predicate) []Rule {
	return one(NewRule("unsupported_if", Unsupported, pred, nil))
}

// UnsupportedIfMemSizeNotPow2 rejects accesses that are not a power of two
// number of bytes
func UnsupportedIfMemSizeNotPow2() []Rule {
	return one(NewRule("unsupported_if_mem_size_not_pow2", Unsupported, MemSizeNotPow2(0), nil))
}

func mutating(desc string, action Action, pred Predicate, m Mutation, idx int) []Rule {
	return one(NewRule(desc, action, pred, m, idx))
}

// WidenScalarIf widens with m when pred holds
func WidenScalarIf(pred Predicate, m Mutation) []Rule {
	return one(NewRule("widen_scalar_if", WidenScalar, pred, m))
}

// NarrowScalarIf narrows with m when pred holds
func NarrowScalarIf(pred Predicate, m Mutation) []Rule {
	return one(NewRule("narrow_scalar_if", NarrowScalar, pred, m))
}

// FewerElementsIf reduces the lane count with m when pred holds
func FewerElementsIf(pred Predicate, m Mutation) []Rule {
	return one(NewRule("fewer_elements_if", FewerElements, pred, m))
}

// MoreElementsIf increases the lane count with m when pred holds
func MoreElementsIf(pred Predicate, m Mutation) []Rule {
	return one(NewRule("more_elements_if", MoreElements, pred, m))
}

// MinScalar widens a scalar at idx that is narrower than min
func MinScalar(idx int, min llt.Type) []Rule {
	return mutating(fmt.Sprintf("min_scalar(%d, %s)", idx, min), WidenScalar,
		NarrowerThan(idx, min.SizeInBits()), ChangeTo(idx, min), idx)
}

// MaxScalar narrows a scalar at idx that is wider than max
func MaxScalar(idx int, max llt.Type) []Rule {
	return mutating(fmt.Sprintf("max_scalar(%d, %s)", idx, max), NarrowScalar,
		WiderThan(idx, max.SizeInBits()), ChangeTo(idx, max), idx)
}

// ClampScalar keeps a scalar at idx within [min, max]. Vectors fall through.
func ClampScalar(idx int, min, max llt.Type) []Rule {
	return Concat(MinScalar(idx, min), MaxScalar(idx, max))
}

// MinScalarSameAs widens a scalar at idx narrower than the scalar at large
func MinScalarSameAs(idx, large int) []Rule {
	pred := PredicateFunc(func(q Query) bool {
		t, l := q.Type(idx), q.Type(large)
		return t.IsScalar() && l.IsScalar() && t.SizeInBits() < l.SizeInBits()
	}, idx, large)
	return mutating(fmt.Sprintf("min_scalar_same_as(%d, %d)", idx, large), WidenScalar,
		pred, ChangeToSameAs(idx, large), idx)
}

// WidenScalarToNextPow2 widens a scalar at idx whose width is not a power of
// two to the next power of two of at least minBits. Power of two widths
// below minBits are left alone.
func WidenScalarToNextPow2(idx, minBits int) []Rule {
	return mutating(fmt.Sprintf("widen_scalar_to_next_pow2(%d, %d)", idx, minBits), WidenScalar,
		SizeNotPow2(idx), WidenScalarToNextPow2Mutation(idx, minBits), idx)
}

// ClampMinNumElements pads vectors of elt at idx to at least min lanes
func ClampMinNumElements(idx int, elt llt.Type, min int) []Rule {
	pred := All(ElementTypeIs(idx, elt), PredicateFunc(func(q Query) bool {
		return q.Type(idx).NumElements() < min
	}, idx))
	return mutating(fmt.Sprintf("clamp_min_num_elements(%d, %s, %d)", idx, elt, min), MoreElements,
		pred, ChangeElementCountTo(idx, min), idx)
}

// ClampMaxNumElements splits vectors of elt at idx to at most max lanes
func ClampMaxNumElements(idx int, elt llt.Type, max int) []Rule {
	pred := All(ElementTypeIs(idx, elt), PredicateFunc(func(q Query) bool {
		return q.Type(idx).NumElements() > max
	}, idx))
	return mutating(fmt.Sprintf("clamp_max_num_elements(%d, %s, %d)", idx, elt, max), FewerElements,
		pred, ChangeElementCountTo(idx, max), idx)
}

// ClampNumElements keeps vectors at idx between the lane counts of min and
// max, which must share an element type
func ClampNumElements(idx int, min, max llt.Type) []Rule {
	return Concat(
		ClampMinNumElements(idx, min.ElementType(), min.NumElements()),
		ClampMaxNumElements(idx, max.ElementType(), max.NumElements()),
	)
}

// MoreElementsToNextPow2Rule pads vectors at idx to a power of two lane count
func MoreElementsToNextPow2Rule(idx int) []Rule {
	return mutating(fmt.Sprintf("more_elements_to_next_pow2(%d)", idx), MoreElements,
		NumElementsNotPow2(idx), MoreElementsToNextPow2(idx, 0), idx)
}

// Scalarize splits vectors at idx into their elements
func Scalarize(idx int) []Rule {
	return mutating(fmt.Sprintf("scalarize(%d)", idx), FewerElements,
		IsVector(idx), ScalarizeMutation(idx), idx)
}
