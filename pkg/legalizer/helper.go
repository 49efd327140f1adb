package legalizer

import (
	"log/slog"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Helper rewrites one function on behalf of the driver and of custom
// handlers. New instructions go at the insertion point; the driver queues
// everything the helper creates.
type Helper struct {
	fn  *gmir.Function
	log *slog.Logger

	anchor *gmir.Instr
	after  bool

	created []*gmir.Instr
	changed map[*gmir.Instr]bool
	erased  map[*gmir.Instr]bool
}

func newHelper(fn *gmir.Function, log *slog.Logger) *Helper {
	return &Helper{
		fn:      fn,
		log:     log,
		changed: make(map[*gmir.Instr]bool),
		erased:  make(map[*gmir.Instr]bool),
	}
}

// begin resets per-step state
func (h *Helper) begin() {
	h.created = h.created[:0]
	clear(h.changed)
	h.anchor = nil
}

// Function returns the function being legalized
func (h *Helper) Function() *gmir.Function {
	return h.fn
}

// Logger returns the driver's logger
func (h *Helper) Logger() *slog.Logger {
	return h.log
}

// TypeOf returns the type of r
func (h *Helper) TypeOf(r gmir.Reg) llt.Type {
	return h.fn.TypeOf(r)
}

// NewReg allocates a register of type t
func (h *Helper) NewReg(t llt.Type) gmir.Reg {
	return h.fn.NewReg(t)
}

// SetInsertBefore makes later builds land in order before at
func (h *Helper) SetInsertBefore(at *gmir.Instr) {
	h.anchor, h.after = at, false
}

// SetInsertAfter makes later builds land in order after at
func (h *Helper) SetInsertAfter(at *gmir.Instr) {
	h.anchor, h.after = at, true
}

// Insert places a prebuilt instruction at the insertion point
func (h *Helper) Insert(instr *gmir.Instr) *gmir.Instr {
	if h.anchor == nil {
		panic("legalizer: no insertion point")
	}
	if h.after {
		h.fn.InsertAfter(h.anchor, instr)
		h.anchor = instr
	} else {
		h.fn.InsertBefore(h.anchor, instr)
	}
	h.created = append(h.created, instr)
	return instr
}

// Build creates an instruction at the insertion point
func (h *Helper) Build(op gmir.Opcode, defs []gmir.Reg, uses ...gmir.Operand) *gmir.Instr {
	return h.Insert(gmir.NewInstr(op, defs, uses...))
}

// Erase removes instr from the function
func (h *Helper) Erase(instr *gmir.Instr) {
	h.fn.Remove(instr)
	h.erased[instr] = true
}

// MarkChanged records an in-place edit so the driver queries instr again
func (h *Helper) MarkChanged(instr *gmir.Instr) {
	h.changed[instr] = true
}

// BuildValue creates a single-def instruction and returns the new register
func (h *Helper) BuildValue(op gmir.Opcode, t llt.Type, uses ...gmir.Operand) gmir.Reg {
	r := h.NewReg(t)
	h.Build(op, []gmir.Reg{r}, uses...)
	return r
}

// BuildConstant materializes an integer constant of type t
func (h *Helper) BuildConstant(t llt.Type, v int64) gmir.Reg {
	return h.BuildValue(gmir.GConstant, t, gmir.Imm(v))
}

// BuildUndef creates a G_IMPLICIT_DEF of type t
func (h *Helper) BuildUndef(t llt.Type) gmir.Reg {
	return h.BuildValue(gmir.GImplicitDef, t)
}

// BuildUnmerge splits src into n values of type part
func (h *Helper) BuildUnmerge(src gmir.Reg, part llt.Type, n int) []gmir.Reg {
	parts := make([]gmir.Reg, n)
	for i := range parts {
		parts[i] = h.NewReg(part)
	}
	h.Build(gmir.GUnmergeValues, parts, gmir.R(src))
	return parts
}

// BuildMerge recombines parts into dst with G_MERGE_VALUES,
// G_BUILD_VECTOR or G_CONCAT_VECTORS depending on the types
func (h *Helper) BuildMerge(dst gmir.Reg, parts []gmir.Reg) *gmir.Instr {
	op := gmir.GMergeValues
	if h.TypeOf(dst).IsVector() {
		op = gmir.GBuildVector
		if h.TypeOf(parts[0]).IsVector() {
			op = gmir.GConcatVectors
		}
	}
	return h.Build(op, []gmir.Reg{dst}, regs(parts)...)
}

// buildPtrAdd offsets a pointer by a constant number of bytes
func (h *Helper) buildPtrAdd(base gmir.Reg, bytes int) gmir.Reg {
	if bytes == 0 {
		return base
	}
	pt := h.TypeOf(base)
	off := h.BuildConstant(llt.Scalar(pt.ScalarSizeInBits()), int64(bytes))
	return h.BuildValue(gmir.GGEP, pt, gmir.R(base), gmir.R(off))
}

func regs(rs []gmir.Reg) []gmir.Operand {
	ops := make([]gmir.Operand, len(rs))
	for i, r := range rs {
		ops[i] = gmir.R(r)
	}
	return ops
}

// partAlign returns the alignment of an access at offBits past an access
// aligned to align
func partAlign(align, offBits int) int {
	if align == 0 {
		return 0
	}
	for align > 8 && offBits%align != 0 {
		align /= 2
	}
	return align
}

// signExtend sign-extends the low bits of v
func signExtend(v int64, bits int) int64 {
	if bits >= 64 {
		return v
	}
	shift := uint(64 - bits)
	return v << shift >> shift
}
