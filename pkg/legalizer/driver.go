package legalizer

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

const (
	// DefaultMaxDepth bounds how many rewrites may descend from one
	// original instruction
	DefaultMaxDepth = 64
	// DefaultMaxSteps bounds the resolutions performed for one function
	DefaultMaxSteps = 1 << 16
)

// Driver legalizes functions against a frozen catalog
type Driver struct {
	catalog  *Catalog
	maxDepth int
	maxSteps int
	jobs     int
	log      *slog.Logger
}

// Option configures a Driver
type Option func(*Driver)

// WithMaxDepth sets the rewrite depth cutoff
func WithMaxDepth(n int) Option {
	return func(d *Driver) {
		d.maxDepth = n
	}
}

// WithMaxSteps sets the per-function resolution cutoff
func WithMaxSteps(n int) Option {
	return func(d *Driver) {
		d.maxSteps = n
	}
}

// WithJobs sets how many functions LegalizeProgram handles at once.
// n <= 0 means GOMAXPROCS.
func WithJobs(n int) Option {
	return func(d *Driver) {
		d.jobs = n
	}
}

// WithLogger sets the logger for resolutions and failures
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

// NewDriver creates a driver for catalog c
func NewDriver(c *Catalog, opts ...Option) *Driver {
	d := &Driver{
		catalog:  c,
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.jobs <= 0 {
		d.jobs = runtime.GOMAXPROCS(0)
	}
	return d
}

// Step is one resolution recorded in a provenance chain
type Step struct {
	Seq     int // position among the function's steps, from 1
	Action  Action
	TypeIdx int
	NewType llt.Type
	Instr   string // the instruction as resolved
	Derived bool   // resolved on an instruction created by an earlier rewrite
}

func (s Step) String() string {
	if s.TypeIdx >= 0 {
		return fmt.Sprintf("#%d %s %d -> %s: %s", s.Seq, s.Action, s.TypeIdx, s.NewType, s.Instr)
	}
	return fmt.Sprintf("#%d %s: %s", s.Seq, s.Action, s.Instr)
}

// Provenance is the history of one original instruction and everything
// rewritten from it
type Provenance struct {
	Origin string
	Steps  []Step
}

// Own returns the steps taken on the original instruction itself
func (p Provenance) Own() []Step {
	var own []Step
	for _, s := range p.Steps {
		if !s.Derived {
			own = append(own, s)
		}
	}
	return own
}

// FunctionReport summarizes the legalization of one function
type FunctionReport struct {
	Function   string
	Steps      int
	Combines   int          // artifacts folded into their sources
	Provenance []Provenance // indexed by position in the original body
}

// Report summarizes a legalized program
type Report struct {
	Functions []FunctionReport
}

type pending struct {
	instr  *gmir.Instr
	origin int
	depth  int
}

// worklist holds one function's state while it is legalized
type worklist struct {
	d         *Driver
	fn        *gmir.Function
	h         *Helper
	work      []pending
	artifacts []pending
	originals []*gmir.Instr
	finalized map[*gmir.Instr]bool
	// registers defined by the input, which always keep a definition
	observable map[gmir.Reg]bool
	report     *FunctionReport
}

// Legalize rewrites fn in place until every instruction resolves Legal.
// On failure fn is left partially rewritten.
func (d *Driver) Legalize(fn *gmir.Function) (*FunctionReport, error) {
	w := &worklist{
		d:          d,
		fn:         fn,
		h:          newHelper(fn, d.log),
		originals:  append([]*gmir.Instr(nil), fn.Body...),
		finalized:  make(map[*gmir.Instr]bool),
		observable: make(map[gmir.Reg]bool),
		report: &FunctionReport{
			Function:   fn.Name,
			Provenance: make([]Provenance, len(fn.Body)),
		},
	}
	for i, instr := range fn.Body {
		w.report.Provenance[i].Origin = gmir.FormatInstr(fn, instr)
		for _, r := range instr.Defs {
			w.observable[r] = true
		}
	}
	for i := len(w.originals) - 1; i >= 0; i-- {
		instr := w.originals[i]
		w.push(pending{instr: instr, origin: i}, instr.Info().Artifact)
	}

	for {
		p, ok := w.pop()
		if !ok {
			break
		}
		if w.finalized[p.instr] || w.h.erased[p.instr] {
			continue
		}
		if err := w.step(p); err != nil {
			d.log.Error("legalization failed", "func", fn.Name, "err", err)
			return nil, err
		}
	}
	d.log.Debug("legalized", "func", fn.Name, "steps", w.report.Steps, "combines", w.report.Combines)
	return w.report, nil
}

func (w *worklist) push(p pending, artifact bool) {
	if artifact {
		w.artifacts = append(w.artifacts, p)
	} else {
		w.work = append(w.work, p)
	}
}

// pop drains the main list before touching artifacts
func (w *worklist) pop() (pending, bool) {
	list := &w.work
	if len(*list) == 0 {
		list = &w.artifacts
	}
	if len(*list) == 0 {
		return pending{}, false
	}
	p := (*list)[len(*list)-1]
	*list = (*list)[:len(*list)-1]
	return p, true
}

func (w *worklist) fail(instr *gmir.Instr, q Query, reason error) error {
	return &LegalizeError{
		Function: w.fn.Name,
		Opcode:   instr.Op,
		Types:    append([]llt.Type(nil), q.Types...),
		Instr:    gmir.FormatInstr(w.fn, instr),
		Reason:   reason,
	}
}

func (w *worklist) step(p pending) error {
	instr := p.instr
	q := QueryFor(w.fn, instr)

	if p.depth > w.d.maxDepth {
		return w.fail(instr, q, fmt.Errorf("%w: rewrite depth %d > %d", ErrIterationLimit, p.depth, w.d.maxDepth))
	}
	if isArtifact(instr) && instr != w.originals[p.origin] {
		w.h.begin()
		before := gmir.FormatInstr(w.fn, instr)
		if w.tryCombine(instr) {
			w.report.Combines++
			w.d.log.Debug("combine", "func", w.fn.Name, "instr", before)
			w.requeue(p, false)
			return nil
		}
	}
	w.report.Steps++
	if w.report.Steps > w.d.maxSteps {
		return w.fail(instr, q, fmt.Errorf("%w: %d steps > %d", ErrIterationLimit, w.report.Steps, w.d.maxSteps))
	}

	dec, err := w.d.catalog.Resolve(q)
	prov := &w.report.Provenance[p.origin]
	prov.Steps = append(prov.Steps, Step{
		Seq:     w.report.Steps,
		Action:  dec.Action,
		TypeIdx: dec.TypeIdx,
		NewType: dec.NewType,
		Instr:   gmir.FormatInstr(w.fn, instr),
		Derived: instr != w.originals[p.origin],
	})
	if err != nil {
		return w.fail(instr, q, err)
	}
	w.d.log.Debug("resolve", "func", w.fn.Name, "op", instr.Op, "types", q.Types,
		"action", dec.Action, "type_idx", dec.TypeIdx, "type", dec.NewType, "rule", dec.Rule.String())

	switch dec.Action {
	case Legal:
		w.finalized[instr] = true
		return nil
	case Unsupported:
		return w.fail(instr, q, ErrUnsupported)
	}

	w.h.begin()
	if err := w.apply(instr, q, dec); err != nil {
		return w.fail(instr, q, err)
	}

	w.requeue(p, dec.Action == Custom && !w.h.changed[instr])
	return nil
}

// requeue queues what the last rewrite created, then the rewritten
// instruction itself unless it was erased or is final
func (w *worklist) requeue(p pending, final bool) {
	created := w.h.created
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		if w.h.erased[c] {
			continue
		}
		w.push(pending{instr: c, origin: p.origin, depth: p.depth + 1}, isArtifact(c))
	}
	switch {
	case w.h.erased[p.instr]:
	case final:
		w.finalized[p.instr] = true
	default:
		w.push(pending{instr: p.instr, origin: p.origin, depth: p.depth + 1}, p.instr.Info().Artifact)
	}
}

// isArtifact classifies instructions created by rewrites
func isArtifact(instr *gmir.Instr) bool {
	return instr.Info().Artifact || instr.Op == gmir.GImplicitDef
}

func (w *worklist) apply(instr *gmir.Instr, q Query, dec Decision) error {
	if dec.Action.NeedsMutation() {
		if dec.TypeIdx < 0 || dec.TypeIdx >= len(q.Types) {
			return unable("%s names type index %d", dec.Action, dec.TypeIdx)
		}
		if !dec.NewType.IsValid() {
			return unable("%s produced an invalid type", dec.Action)
		}
		if dec.NewType == q.Types[dec.TypeIdx] {
			return unable("%s does not change %s", dec.Action, dec.NewType)
		}
	}

	switch dec.Action {
	case WidenScalar:
		return w.h.WidenScalar(instr, dec.TypeIdx, dec.NewType)
	case NarrowScalar:
		return w.h.NarrowScalar(instr, dec.TypeIdx, dec.NewType)
	case FewerElements:
		return w.h.FewerElements(instr, dec.TypeIdx, dec.NewType)
	case MoreElements:
		return w.h.MoreElements(instr, dec.TypeIdx, dec.NewType)
	case Lower:
		return w.h.Lower(instr, dec.NewType)
	case Custom:
		handler, ok := w.d.catalog.CustomHandler(instr.Op)
		if !ok {
			return unable("no custom handler for %s", instr.Op)
		}
		return handler(w.h, instr)
	}
	return unable("unexpected action %s", dec.Action)
}
