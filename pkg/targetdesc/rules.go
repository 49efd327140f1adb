package targetdesc

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// rule compiles one entry of a do list into the rules it stands for
func (c *compiler) rule(node *yaml.Node) ([]legalizer.Rule, error) {
	key, val, err := single(node)
	if err != nil {
		return nil, err
	}
	rules, err := c.ruleFor(key, val)
	if err != nil {
		return nil, fmt.Errorf("line %d: %s: %w", node.Line, key, err)
	}
	return rules, nil
}

func (c *compiler) ruleFor(key string, val *yaml.Node) ([]legalizer.Rule, error) {
	var a args
	switch key {
	case "legal", "lower", "custom", "unsupported", "unsupported_if_mem_size_not_pow2":
		if err := noArgs(val); err != nil {
			return nil, err
		}
		return map[string]func() []legalizer.Rule{
			"legal":                            legalizer.AlwaysLegal,
			"lower":                            legalizer.AlwaysLower,
			"custom":                           legalizer.AlwaysCustom,
			"unsupported":                      legalizer.AlwaysUnsupported,
			"unsupported_if_mem_size_not_pow2": legalizer.UnsupportedIfMemSizeNotPow2,
		}[key](), nil

	case "legal_for", "lower_for", "custom_for":
		types, err := c.types(val)
		if err != nil {
			return nil, err
		}
		switch key {
		case "lower_for":
			return legalizer.LowerFor(types...), nil
		case "custom_for":
			return legalizer.CustomFor(types...), nil
		}
		return legalizer.LegalFor(types...), nil

	case "legal_for_pairs":
		tuples, err := c.tuples(val, 2)
		if err != nil {
			return nil, err
		}
		pairs := make([][2]llt.Type, len(tuples))
		for i, t := range tuples {
			pairs[i] = [2]llt.Type{t[0], t[1]}
		}
		return legalizer.LegalForPairs(pairs...), nil

	case "legal_for_tuples":
		tuples, err := c.tuples(val, 0)
		if err != nil {
			return nil, err
		}
		return legalizer.LegalForTuples(tuples...), nil

	case "legal_for_cartesian_product":
		sets, err := c.tuples(val, 0)
		if err != nil {
			return nil, err
		}
		return legalizer.LegalForCartesianProduct(sets...), nil

	case "legal_for_types_with_mem_size":
		var entries []struct {
			Types []string `yaml:"types"`
			Mem   int      `yaml:"mem"`
		}
		if err := val.Decode(&entries); err != nil {
			return nil, err
		}
		out := make([]legalizer.TypePairAndMemSize, len(entries))
		for i, e := range entries {
			types, err := c.typeList(e.Types)
			if err != nil {
				return nil, err
			}
			if len(types) != 2 || e.Mem <= 0 {
				return nil, fmt.Errorf("entry %d: want two types and a memory size", i)
			}
			out[i] = legalizer.TypePairAndMemSize{Type0: types[0], Type1: types[1], MemSize: e.Mem}
		}
		return legalizer.LegalForTypesWithMemSize(out...), nil

	case "legal_if", "lower_if", "custom_if", "unsupported_if":
		pred, err := c.predicate(val)
		if err != nil {
			return nil, err
		}
		return map[string]func(legalizer.Predicate) []legalizer.Rule{
			"legal_if":       legalizer.LegalIf,
			"lower_if":       legalizer.LowerIf,
			"custom_if":      legalizer.CustomIf,
			"unsupported_if": legalizer.UnsupportedIf,
		}[key](pred), nil

	case "widen_scalar_if", "narrow_scalar_if", "fewer_elements_if", "more_elements_if":
		if err := decodeArgs(val, &a, "if", "to"); err != nil {
			return nil, err
		}
		if a.If.Kind == 0 || a.To.Kind == 0 {
			return nil, errors.New("needs both if and to")
		}
		pred, err := c.predicate(&a.If)
		if err != nil {
			return nil, err
		}
		m, err := c.mutation(&a.To)
		if err != nil {
			return nil, err
		}
		return map[string]func(legalizer.Predicate, legalizer.Mutation) []legalizer.Rule{
			"widen_scalar_if":   legalizer.WidenScalarIf,
			"narrow_scalar_if":  legalizer.NarrowScalarIf,
			"fewer_elements_if": legalizer.FewerElementsIf,
			"more_elements_if":  legalizer.MoreElementsIf,
		}[key](pred, m), nil

	case "min_scalar", "max_scalar":
		if err := decodeArgs(val, &a, "idx", "type"); err != nil {
			return nil, err
		}
		t, err := c.typ(a.Type)
		if err != nil {
			return nil, err
		}
		if key == "min_scalar" {
			return legalizer.MinScalar(a.Idx, t), nil
		}
		return legalizer.MaxScalar(a.Idx, t), nil

	case "clamp_scalar", "clamp_num_elements":
		if err := decodeArgs(val, &a, "idx", "min", "max"); err != nil {
			return nil, err
		}
		lo, err := c.typ(a.Min)
		if err != nil {
			return nil, err
		}
		hi, err := c.typ(a.Max)
		if err != nil {
			return nil, err
		}
		if key == "clamp_scalar" {
			return legalizer.ClampScalar(a.Idx, lo, hi), nil
		}
		return legalizer.ClampNumElements(a.Idx, lo, hi), nil

	case "min_scalar_same_as":
		if err := decodeArgs(val, &a, "idx", "large"); err != nil {
			return nil, err
		}
		return legalizer.MinScalarSameAs(a.Idx, a.Large), nil

	case "widen_scalar_to_next_pow2":
		if err := idxOr(val, &a, "min_bits"); err != nil {
			return nil, err
		}
		return legalizer.WidenScalarToNextPow2(a.Idx, a.MinBits), nil

	case "clamp_min_num_elements", "clamp_max_num_elements":
		if err := decodeArgs(val, &a, "idx", "elt", "lanes"); err != nil {
			return nil, err
		}
		elt, err := c.typ(a.Elt)
		if err != nil {
			return nil, err
		}
		if a.Lanes < 1 {
			return nil, fmt.Errorf("lanes %d out of range", a.Lanes)
		}
		if key == "clamp_min_num_elements" {
			return legalizer.ClampMinNumElements(a.Idx, elt, a.Lanes), nil
		}
		return legalizer.ClampMaxNumElements(a.Idx, elt, a.Lanes), nil

	case "more_elements_to_next_pow2", "scalarize":
		idx, err := decodeInt(val)
		if err != nil {
			return nil, err
		}
		if key == "scalarize" {
			return legalizer.Scalarize(idx), nil
		}
		return legalizer.MoreElementsToNextPow2Rule(idx), nil
	}
	return nil, errors.New("unknown rule")
}

// types decodes a list of type names
func (c *compiler) types(node *yaml.Node) ([]llt.Type, error) {
	var names []string
	if err := node.Decode(&names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("empty type list")
	}
	return c.typeList(names)
}

// tuples decodes a list of type lists; width 0 accepts any length
func (c *compiler) tuples(node *yaml.Node, width int) ([][]llt.Type, error) {
	var lists [][]string
	if err := node.Decode(&lists); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, errors.New("empty list")
	}
	out := make([][]llt.Type, len(lists))
	for i, names := range lists {
		types, err := c.typeList(names)
		if err != nil {
			return nil, err
		}
		if width > 0 && len(types) != width {
			return nil, fmt.Errorf("entry %d: want %d types, got %d", i, width, len(types))
		}
		out[i] = types
	}
	return out, nil
}
