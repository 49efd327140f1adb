package legalizer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// CustomHandler legalizes one instruction on behalf of a target. It rewrites
// the function through h and reports failure with an error.
type CustomHandler func(h *Helper, instr *gmir.Instr) error

// Catalog is a frozen set of rule sequences indexed by opcode. It is safe
// for concurrent use.
type Catalog struct {
	name     string
	rules    map[gmir.Opcode][]Rule
	defaults []Rule
	custom   map[gmir.Opcode]CustomHandler
}

// Name returns the target name the catalog was built for
func (c *Catalog) Name() string {
	return c.name
}

// Rules returns the sequence consulted for op: its own, or the defaults
func (c *Catalog) Rules(op gmir.Opcode) []Rule {
	if rules, ok := c.rules[op]; ok {
		return rules
	}
	return c.defaults
}

// HasRules reports whether op has an explicit entry
func (c *Catalog) HasRules(op gmir.Opcode) bool {
	_, ok := c.rules[op]
	return ok
}

// Defaults returns the sequence used for opcodes without an entry
func (c *Catalog) Defaults() []Rule {
	return c.defaults
}

// Opcodes lists the opcodes with explicit entries in opcode order
func (c *Catalog) Opcodes() []gmir.Opcode {
	ops := make([]gmir.Opcode, 0, len(c.rules))
	for op := range c.rules {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// CustomHandler returns the handler registered for op
func (c *Catalog) CustomHandler(op gmir.Opcode) (CustomHandler, bool) {
	h, ok := c.custom[op]
	return h, ok
}

// CatalogBuilder assembles a Catalog. Calls append rules in order; Build
// verifies the result and freezes it.
type CatalogBuilder struct {
	name     string
	order    []gmir.Opcode
	rules    map[gmir.Opcode][]Rule
	legacy   map[gmir.Opcode]map[int]map[Action][]llt.Type
	defaults []Rule
	custom   map[gmir.Opcode]CustomHandler
	errs     []error
	built    bool
}

// NewCatalogBuilder starts an empty catalog whose default sequence is a
// single Unsupported rule
func NewCatalogBuilder(name string) *CatalogBuilder {
	return &CatalogBuilder{
		name:     name,
		rules:    make(map[gmir.Opcode][]Rule),
		legacy:   make(map[gmir.Opcode]map[int]map[Action][]llt.Type),
		defaults: AlwaysUnsupported(),
		custom:   make(map[gmir.Opcode]CustomHandler),
	}
}

func (b *CatalogBuilder) checkOpen() {
	if b.built {
		panic("legalizer: catalog " + b.name + " modified after Build")
	}
}

func (b *CatalogBuilder) touch(op gmir.Opcode) {
	if _, ok := b.rules[op]; !ok {
		b.rules[op] = nil
		b.order = append(b.order, op)
	}
}

// Define appends rules to every opcode in ops
func (b *CatalogBuilder) Define(ops []gmir.Opcode, rules ...[]Rule) *CatalogBuilder {
	b.checkOpen()
	seq := Concat(rules...)
	for _, op := range ops {
		if !op.IsValid() {
			b.errs = append(b.errs, fmt.Errorf("define: invalid opcode %d", op))
			continue
		}
		b.touch(op)
		b.rules[op] = append(b.rules[op], seq...)
	}
	return b
}

// SetAction records a per-type-index declaration: type index idx holding t
// gets action. Legal declarations of one opcode combine into a single rule
// that requires every declared index to hold a declared type.
func (b *CatalogBuilder) SetAction(op gmir.Opcode, idx int, t llt.Type, action Action) *CatalogBuilder {
	b.checkOpen()
	switch action {
	case Legal, Lower, Custom, Unsupported:
	default:
		b.errs = append(b.errs, fmt.Errorf("set action %s on %s: action needs a mutation", action, op))
		return b
	}
	b.touch(op)
	slots, ok := b.legacy[op]
	if !ok {
		slots = make(map[int]map[Action][]llt.Type)
		b.legacy[op] = slots
	}
	if slots[idx] == nil {
		slots[idx] = make(map[Action][]llt.Type)
	}
	if !slices.Contains(slots[idx][action], t) {
		slots[idx][action] = append(slots[idx][action], t)
	}
	return b
}

// Custom registers the handler invoked for Custom actions on op
func (b *CatalogBuilder) Custom(op gmir.Opcode, h CustomHandler) *CatalogBuilder {
	b.checkOpen()
	b.custom[op] = h
	return b
}

// Default replaces the sequence used for opcodes without an entry
func (b *CatalogBuilder) Default(rules ...[]Rule) *CatalogBuilder {
	b.checkOpen()
	b.defaults = Concat(rules...)
	return b
}

// Build verifies the catalog and freezes it. The builder cannot be used
// afterwards.
func (b *CatalogBuilder) Build(opts ...VerifyOption) (*Catalog, error) {
	b.checkOpen()
	b.built = true
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidCatalog, b.name, errors.Join(b.errs...))
	}

	c := &Catalog{
		name:     b.name,
		rules:    make(map[gmir.Opcode][]Rule, len(b.rules)),
		defaults: slices.Clone(b.defaults),
		custom:   b.custom,
	}
	for _, op := range b.order {
		seq := slices.Clone(b.rules[op])
		if slots, ok := b.legacy[op]; ok {
			seq = append(legacyRules(slots), seq...)
			seq = append(seq, AlwaysUnsupported()...)
		}
		c.rules[op] = seq
	}

	if err := Verify(c, opts...); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidCatalog, b.name, err)
	}
	return c, nil
}

// legacyRules turns per-index declarations into leading rules: one Legal
// rule over every declared index, then one rule per other action and type.
func legacyRules(slots map[int]map[Action][]llt.Type) []Rule {
	idxs := make([]int, 0, len(slots))
	for idx := range slots {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)

	var rules []Rule
	var legal []Predicate
	for _, idx := range idxs {
		if types := slots[idx][Legal]; len(types) > 0 {
			legal = append(legal, TypeInSet(idx, types...))
		}
	}
	if len(legal) > 0 {
		pred := All(legal...)
		rules = append(rules, NewRule("legacy_legal", Legal, pred, nil))
	}
	for _, idx := range idxs {
		for _, action := range []Action{Lower, Custom, Unsupported} {
			for _, t := range slots[idx][action] {
				rules = append(rules, NewRule(fmt.Sprintf("legacy_%s(%d, %s)", action, idx, t), action, TypeIs(idx, t), nil))
			}
		}
	}
	return rules
}
