package targetdesc

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

type compiler struct {
	desc *Description
	st   Subtarget
}

// Compile builds the catalog described by d. Description errors are
// collected and returned together; catalog verification runs only when the
// description itself is well formed.
func (d *Description) Compile(opts ...Option) (*legalizer.Catalog, error) {
	o := options{
		handlers: builtinHandlers(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &compiler{desc: d, st: o.subtarget}

	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	b := legalizer.NewCatalogBuilder(d.Name)

	if len(d.Default) > 0 {
		rules, err := c.sequence(d.Default)
		if err != nil {
			errs = append(errs, fmt.Errorf("default: %w", err))
		} else {
			b.Default(rules)
		}
	}

	for i, e := range d.Rules {
		ok, err := e.When.Holds(c.st)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
			continue
		}
		if !ok {
			o.log.Debug("entry skipped", "target", d.Name, "ops", e.Ops, "subtarget", c.st.String())
			continue
		}
		ops, err := opcodes(e.Ops)
		if err == nil && len(e.Do) == 0 {
			err = errors.New("no rules")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
			continue
		}
		rules, err := c.sequence(e.Do)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %s: %w", i, strings.Join(e.Ops, ","), err))
			continue
		}
		b.Define(ops, rules)
	}

	for i, l := range d.Legacy {
		if err := c.legacy(b, l); err != nil {
			errs = append(errs, fmt.Errorf("legacy[%d]: %w", i, err))
		}
	}

	names := make([]string, 0, len(d.Custom))
	for name := range d.Custom {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		op, ok := gmir.LookupOpcode(name)
		if !ok {
			errs = append(errs, fmt.Errorf("custom: unknown opcode %s", name))
			continue
		}
		h, ok := o.handlers[d.Custom[name]]
		if !ok {
			errs = append(errs, fmt.Errorf("custom %s: unknown handler %q", name, d.Custom[name]))
			continue
		}
		b.Custom(op, h)
	}

	required, err := opcodes(d.Required)
	if err != nil {
		errs = append(errs, fmt.Errorf("required: %w", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidDescription, d.Name, errors.Join(errs...))
	}
	verify := []legalizer.VerifyOption{legalizer.WithVerifyLogger(o.log)}
	if len(required) > 0 {
		verify = append(verify, legalizer.WithRequiredOpcodes(required...))
	}
	return b.Build(append(verify, o.verify...)...)
}

func (c *compiler) legacy(b *legalizer.CatalogBuilder, l LegacyEntry) error {
	ok, err := l.When.Holds(c.st)
	if err != nil || !ok {
		return err
	}
	op, found := gmir.LookupOpcode(l.Op)
	if !found {
		return fmt.Errorf("unknown opcode %q", l.Op)
	}
	if l.Idx < 0 || l.Idx >= gmir.InfoOf(op).NumTypeIdx {
		return fmt.Errorf("%s: type index %d out of range", op, l.Idx)
	}
	t, err := c.typ(l.Type)
	if err != nil {
		return err
	}
	action := legalizer.Legal
	if l.Action != "" {
		if action, found = legalizer.LookupAction(l.Action); !found {
			return fmt.Errorf("unknown action %q", l.Action)
		}
	}
	b.SetAction(op, l.Idx, t, action)
	return nil
}

func (c *compiler) sequence(nodes []yaml.Node) ([]legalizer.Rule, error) {
	var out []legalizer.Rule
	for i := range nodes {
		rules, err := c.rule(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

func opcodes(names []string) ([]gmir.Opcode, error) {
	if names == nil {
		return nil, nil
	}
	ops := make([]gmir.Opcode, 0, len(names))
	for _, name := range names {
		op, ok := gmir.LookupOpcode(name)
		if !ok {
			return nil, fmt.Errorf("unknown opcode %q", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// typ resolves a pointer name from the pointers table or a type literal
func (c *compiler) typ(name string) (llt.Type, error) {
	if name == "" {
		return llt.Type{}, errors.New("missing type")
	}
	if p, ok := c.desc.Pointers[name]; ok {
		if p.Bits <= 0 || p.Space < 0 {
			return llt.Type{}, fmt.Errorf("pointer %s: bad space %d or size %d", name, p.Space, p.Bits)
		}
		return llt.Pointer(p.Space, p.Bits), nil
	}
	return llt.Parse(name)
}

// typeList resolves names, expanding "$set" references from type_sets
func (c *compiler) typeList(names []string) ([]llt.Type, error) {
	var out []llt.Type
	for _, name := range names {
		if set, ok := strings.CutPrefix(name, "$"); ok {
			members, found := c.desc.TypeSets[set]
			if !found {
				return nil, fmt.Errorf("unknown type set %q", set)
			}
			for _, m := range members {
				t, err := c.typ(m)
				if err != nil {
					return nil, fmt.Errorf("type set %s: %w", set, err)
				}
				out = append(out, t)
			}
			continue
		}
		t, err := c.typ(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// single splits a one-key mapping such as {legal_for: [s32]}, following
// aliases on both sides
func single(node *yaml.Node) (string, *yaml.Node, error) {
	node = deref(node)
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, fmt.Errorf("line %d: expected a mapping with one key", node.Line)
	}
	return node.Content[0].Value, deref(node.Content[1]), nil
}

func deref(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

// decodeArgs decodes a mapping of named arguments, rejecting unknown keys
func decodeArgs(node *yaml.Node, out any, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected {%s}", strings.Join(allowed, ", "))
	}
	for i := 0; i < len(node.Content); i += 2 {
		if k := node.Content[i].Value; !slices.Contains(allowed, k) {
			return fmt.Errorf("unknown argument %q", k)
		}
	}
	return node.Decode(out)
}

func decodeInt(node *yaml.Node) (int, error) {
	var n int
	if node.Kind != yaml.ScalarNode {
		return 0, errors.New("expected an integer")
	}
	if err := node.Decode(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func noArgs(node *yaml.Node) error {
	switch {
	case node.Kind == yaml.MappingNode && len(node.Content) == 0:
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
	default:
		return errors.New("takes no arguments")
	}
	return nil
}

// args holds every named argument the vocabulary uses; each key reads only
// the fields it allows
type args struct {
	Idx      int       `yaml:"idx"`
	Type     string    `yaml:"type"`
	Types    []string  `yaml:"types"`
	Min      string    `yaml:"min"`
	Max      string    `yaml:"max"`
	Elt      string    `yaml:"elt"`
	Lanes    int       `yaml:"lanes"`
	Large    int       `yaml:"large"`
	From     int       `yaml:"from"`
	Step     int       `yaml:"step"`
	Bits     int       `yaml:"bits"`
	MinBits  int       `yaml:"min_bits"`
	MinLanes int       `yaml:"min_lanes"`
	N        int       `yaml:"n"`
	Vec      int       `yaml:"vec"`
	MMO      int       `yaml:"mmo"`
	Mem      int       `yaml:"mem"`
	Sizes    []int     `yaml:"sizes"`
	Space    int       `yaml:"space"`
	If       yaml.Node `yaml:"if"`
	To       yaml.Node `yaml:"to"`
}

// idxOr reads either a bare type index or an argument mapping
func idxOr(node *yaml.Node, a *args, allowed ...string) error {
	if node.Kind == yaml.ScalarNode {
		n, err := decodeInt(node)
		a.Idx = n
		return err
	}
	return decodeArgs(node, a, append([]string{"idx"}, allowed...)...)
}
