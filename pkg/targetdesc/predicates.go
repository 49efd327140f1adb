package targetdesc

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-legalize/pkg/legalizer"
)

var indexPredicates = map[string]func(idx int) legalizer.Predicate{
	"is_scalar":             legalizer.IsScalar,
	"is_vector":             legalizer.IsVector,
	"is_pointer":            legalizer.IsPointer,
	"size_not_pow2":         legalizer.SizeNotPow2,
	"elt_size_not_pow2":     legalizer.ScalarOrEltSizeNotPow2,
	"num_elements_not_pow2": legalizer.NumElementsNotPow2,
	"mem_size_not_pow2":     legalizer.MemSizeNotPow2,
}

var widthPredicates = map[string]func(idx, bits int) legalizer.Predicate{
	"narrower_than":               legalizer.NarrowerThan,
	"wider_than":                  legalizer.WiderThan,
	"scalar_or_elt_narrower_than": legalizer.ScalarOrEltNarrowerThan,
	"scalar_or_elt_wider_than":    legalizer.ScalarOrEltWiderThan,
	"size_is":                     legalizer.SizeIs,
	"size_at_most":                legalizer.SizeAtMost,
	"size_multiple_of":            legalizer.SizeMultipleOf,
}

// predicate compiles a predicate mapping such as {narrower_than: {idx: 0, bits: 32}}
func (c *compiler) predicate(node *yaml.Node) (legalizer.Predicate, error) {
	key, val, err := single(node)
	if err != nil {
		return legalizer.Predicate{}, err
	}
	p, err := c.predicateFor(key, val)
	if err != nil {
		return legalizer.Predicate{}, fmt.Errorf("%s: %w", key, err)
	}
	return p, nil
}

func (c *compiler) predicateFor(key string, val *yaml.Node) (legalizer.Predicate, error) {
	if fn, ok := indexPredicates[key]; ok {
		idx, err := decodeInt(val)
		if err != nil {
			return legalizer.Predicate{}, err
		}
		return fn(idx), nil
	}
	var a args
	if fn, ok := widthPredicates[key]; ok {
		if err := decodeArgs(val, &a, "idx", "bits"); err != nil {
			return legalizer.Predicate{}, err
		}
		return fn(a.Idx, a.Bits), nil
	}

	switch key {
	case "always":
		return legalizer.Always(), noArgs(val)

	case "type_is", "element_type_is":
		if err := decodeArgs(val, &a, "idx", "type"); err != nil {
			return legalizer.Predicate{}, err
		}
		t, err := c.typ(a.Type)
		if err != nil {
			return legalizer.Predicate{}, err
		}
		if key == "element_type_is" {
			return legalizer.ElementTypeIs(a.Idx, t), nil
		}
		return legalizer.TypeIs(a.Idx, t), nil

	case "type_in":
		if err := decodeArgs(val, &a, "idx", "types"); err != nil {
			return legalizer.Predicate{}, err
		}
		types, err := c.typeList(a.Types)
		if err != nil {
			return legalizer.Predicate{}, err
		}
		return legalizer.TypeInSet(a.Idx, types...), nil

	case "pointer_in":
		if err := decodeArgs(val, &a, "idx", "space"); err != nil {
			return legalizer.Predicate{}, err
		}
		return legalizer.IsPointerIn(a.Idx, a.Space), nil

	case "num_elements_multiple_of":
		if err := decodeArgs(val, &a, "idx", "n"); err != nil {
			return legalizer.Predicate{}, err
		}
		if a.N < 1 {
			return legalizer.Predicate{}, fmt.Errorf("n %d out of range", a.N)
		}
		return legalizer.NumElementsMultipleOf(a.Idx, a.N), nil

	case "is_element_of":
		if err := decodeArgs(val, &a, "idx", "vec"); err != nil {
			return legalizer.Predicate{}, err
		}
		return legalizer.IsElementOf(a.Idx, a.Vec), nil

	case "mem_size_in":
		if err := decodeArgs(val, &a, "mmo", "sizes"); err != nil {
			return legalizer.Predicate{}, err
		}
		return legalizer.MemSizeInSet(a.MMO, a.Sizes...), nil

	case "mem_narrower_than_type", "mem_size_matches_type":
		if err := decodeArgs(val, &a, "idx", "mmo"); err != nil {
			return legalizer.Predicate{}, err
		}
		if key == "mem_narrower_than_type" {
			return legalizer.MemNarrowerThanType(a.Idx, a.MMO), nil
		}
		return legalizer.MemSizeMatchesType(a.Idx, a.MMO), nil

	case "all", "any":
		if val.Kind != yaml.SequenceNode || len(val.Content) == 0 {
			return legalizer.Predicate{}, errors.New("expected a non-empty list")
		}
		preds := make([]legalizer.Predicate, len(val.Content))
		for i, sub := range val.Content {
			p, err := c.predicate(sub)
			if err != nil {
				return legalizer.Predicate{}, err
			}
			preds[i] = p
		}
		if key == "all" {
			return legalizer.All(preds...), nil
		}
		return legalizer.Any(preds...), nil

	case "not":
		p, err := c.predicate(val)
		if err != nil {
			return legalizer.Predicate{}, err
		}
		return legalizer.Not(p), nil

	// subtarget queries are answered now and baked into the catalog
	case "subtarget_at_least", "subtarget_below":
		if val.Kind != yaml.ScalarNode {
			return legalizer.Predicate{}, errors.New("expected a generation")
		}
		g, err := ParseGeneration(val.Value)
		if err != nil {
			return legalizer.Predicate{}, err
		}
		return constant(c.st.AtLeast(g) == (key == "subtarget_at_least")), nil

	case "has_feature":
		if val.Kind != yaml.ScalarNode {
			return legalizer.Predicate{}, errors.New("expected a feature name")
		}
		return constant(c.st.Has(val.Value)), nil
	}
	return legalizer.Predicate{}, errors.New("unknown predicate")
}

func constant(v bool) legalizer.Predicate {
	if v {
		return legalizer.Always()
	}
	return legalizer.Not(legalizer.Always())
}

// mutation compiles a mutation mapping such as {change_to: {idx: 0, type: s32}}
func (c *compiler) mutation(node *yaml.Node) (legalizer.Mutation, error) {
	key, val, err := single(node)
	if err != nil {
		return nil, err
	}
	m, err := c.mutationFor(key, val)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}

func (c *compiler) mutationFor(key string, val *yaml.Node) (legalizer.Mutation, error) {
	var a args
	switch key {
	case "change_to", "change_element_to":
		if err := decodeArgs(val, &a, "idx", "type"); err != nil {
			return nil, err
		}
		t, err := c.typ(a.Type)
		if err != nil {
			return nil, err
		}
		if key == "change_element_to" {
			return legalizer.ChangeElementTo(a.Idx, t), nil
		}
		return legalizer.ChangeTo(a.Idx, t), nil

	case "change_element_count_to":
		if err := decodeArgs(val, &a, "idx", "lanes"); err != nil {
			return nil, err
		}
		if a.Lanes < 1 {
			return nil, fmt.Errorf("lanes %d out of range", a.Lanes)
		}
		return legalizer.ChangeElementCountTo(a.Idx, a.Lanes), nil

	case "same_as":
		if err := decodeArgs(val, &a, "idx", "from"); err != nil {
			return nil, err
		}
		return legalizer.ChangeToSameAs(a.Idx, a.From), nil

	case "scalarize":
		idx, err := decodeInt(val)
		if err != nil {
			return nil, err
		}
		return legalizer.ScalarizeMutation(idx), nil

	case "next_pow2":
		if err := idxOr(val, &a, "min_bits"); err != nil {
			return nil, err
		}
		return legalizer.WidenScalarToNextPow2Mutation(a.Idx, a.MinBits), nil

	case "more_elements_next_pow2":
		if err := idxOr(val, &a, "min_lanes"); err != nil {
			return nil, err
		}
		return legalizer.MoreElementsToNextPow2(a.Idx, a.MinLanes), nil

	case "next_pow2_or_multiple":
		if err := decodeArgs(val, &a, "idx", "step", "from"); err != nil {
			return nil, err
		}
		if a.Step < 1 {
			return nil, fmt.Errorf("step %d out of range", a.Step)
		}
		return legalizer.WidenScalarToNextPow2OrMultiple(a.Idx, a.Step, a.From), nil
	}
	return nil, errors.New("unknown mutation")
}
