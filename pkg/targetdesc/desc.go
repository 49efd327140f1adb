// Package targetdesc builds legalizer catalogs from YAML target
// descriptions. A description names pointer types and type sets, then lists
// rule entries per opcode group in the order the resolver tries them.
// Subtarget conditions are evaluated once, while the catalog is built.
package targetdesc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-legalize/pkg/legalizer"
)

// ErrInvalidDescription is wrapped by every schema or vocabulary error
var ErrInvalidDescription = errors.New("invalid target description")

// Description is the decoded form of a target description file
type Description struct {
	Name     string                 `yaml:"name"`
	Pointers map[string]PointerDesc `yaml:"pointers"`
	TypeSets map[string][]string    `yaml:"type_sets"`
	Required []string               `yaml:"required"`
	Default  []yaml.Node            `yaml:"default"`
	Rules    []Entry                `yaml:"rules"`
	Legacy   []LegacyEntry          `yaml:"legacy"`
	Custom   map[string]string      `yaml:"custom"`
}

// PointerDesc declares a named pointer type
type PointerDesc struct {
	Space int `yaml:"space"`
	Bits  int `yaml:"bits"`
}

// Entry appends a rule sequence to every opcode in Ops
type Entry struct {
	Ops  []string    `yaml:"ops"`
	When *Condition  `yaml:"when"`
	Do   []yaml.Node `yaml:"do"`
}

// LegacyEntry is a per-type-index declaration, one type at a time
type LegacyEntry struct {
	Op     string     `yaml:"op"`
	Idx    int        `yaml:"idx"`
	Type   string     `yaml:"type"`
	Action string     `yaml:"action"`
	When   *Condition `yaml:"when"`
}

// Condition gates an entry on the subtarget. Empty fields always hold.
type Condition struct {
	Feature           string `yaml:"feature"`
	NotFeature        string `yaml:"not_feature"`
	GenerationAtLeast string `yaml:"generation_at_least"`
	GenerationBelow   string `yaml:"generation_below"`
}

type options struct {
	subtarget Subtarget
	handlers  map[string]legalizer.CustomHandler
	verify    []legalizer.VerifyOption
	log       *slog.Logger
}

// Option configures catalog construction
type Option func(*options)

// WithSubtarget sets the subtarget conditions are evaluated against
func WithSubtarget(st Subtarget) Option {
	return func(o *options) { o.subtarget = st }
}

// WithHandler registers a custom handler under name, replacing a builtin
// of the same name
func WithHandler(name string, h legalizer.CustomHandler) Option {
	return func(o *options) { o.handlers[name] = h }
}

// WithVerifyOptions passes extra options to the catalog verifier
func WithVerifyOptions(opts ...legalizer.VerifyOption) Option {
	return func(o *options) { o.verify = append(o.verify, opts...) }
}

// WithLogger sets the logger for skipped entries and verifier notes
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Decode reads a description without compiling it. Unknown top-level keys
// are rejected.
func Decode(data []byte) (*Description, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var desc Description
	if err := dec.Decode(&desc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDescription)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	return &desc, nil
}

// Parse decodes and compiles a description
func Parse(data []byte, opts ...Option) (*legalizer.Catalog, error) {
	desc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return desc.Compile(opts...)
}

// Load reads, decodes and compiles the description at path
func Load(path string, opts ...Option) (*legalizer.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
