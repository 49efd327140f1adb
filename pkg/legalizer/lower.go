package legalizer

import (
	"math"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Lower replaces instr with an equivalent sequence of simpler instructions.
// hint is the type computed by the rule's mutation, if it has one.
func (h *Helper) Lower(instr *gmir.Instr, hint llt.Type) error {
	h.SetInsertBefore(instr)
	switch instr.Op {
	case gmir.GFSub:
		dt := h.TypeOf(instr.Defs[0])
		neg := h.BuildValue(gmir.GFNeg, dt, instr.Uses[1])
		h.Build(gmir.GFAdd, instr.Defs, instr.Uses[0], gmir.R(neg))

	case gmir.GFPExt:
		return h.lowerFPExt(instr, hint)

	case gmir.GSExtLoad, gmir.GZExtLoad:
		return h.lowerExtLoad(instr)

	case gmir.GCtlzZeroUndef, gmir.GCttzZeroUndef:
		if instr.Op == gmir.GCtlzZeroUndef {
			instr.Op = gmir.GCtlz
		} else {
			instr.Op = gmir.GCttz
		}
		h.MarkChanged(instr)
		return nil

	case gmir.GFNeg:
		dt := h.TypeOf(instr.Defs[0])
		if !dt.IsScalar() || dt.SizeInBits() > 64 {
			return unable("cannot lower %s of %s", instr.Op, dt)
		}
		mask := h.BuildConstant(dt, int64(math.MinInt64)>>uint(64-dt.SizeInBits()))
		h.Build(gmir.GXor, instr.Defs, instr.Uses[0], gmir.R(mask))

	case gmir.GSMulH, gmir.GUMulH:
		dt := h.TypeOf(instr.Defs[0])
		if !dt.IsScalar() {
			return unable("cannot lower %s of %s", instr.Op, dt)
		}
		ext := gmir.GZExt
		if instr.Op == gmir.GSMulH {
			ext = gmir.GSExt
		}
		wide := llt.Scalar(2 * dt.SizeInBits())
		lhs := h.BuildValue(ext, wide, instr.Uses[0])
		rhs := h.BuildValue(ext, wide, instr.Uses[1])
		prod := h.BuildValue(gmir.GMul, wide, gmir.R(lhs), gmir.R(rhs))
		amt := h.BuildConstant(wide, int64(dt.SizeInBits()))
		hi := h.BuildValue(gmir.GLShr, wide, gmir.R(prod), gmir.R(amt))
		h.Build(gmir.GTrunc, instr.Defs, gmir.R(hi))

	case gmir.GUAddO, gmir.GUSubO:
		res, carry := instr.Defs[0], instr.Defs[1]
		lhs, rhs := instr.Uses[0], instr.Uses[1]
		if instr.Op == gmir.GUAddO {
			h.Build(gmir.GAdd, []gmir.Reg{res}, lhs, rhs)
			h.Build(gmir.GICmp, []gmir.Reg{carry}, gmir.P(gmir.IntULT), gmir.R(res), lhs)
		} else {
			h.Build(gmir.GSub, []gmir.Reg{res}, lhs, rhs)
			h.Build(gmir.GICmp, []gmir.Reg{carry}, gmir.P(gmir.IntULT), lhs, rhs)
		}

	default:
		return unable("no lowering for %s", instr.Op)
	}
	h.Erase(instr)
	return nil
}

// lowerFPExt goes through an intermediate width: hint when valid, otherwise
// twice the source width
func (h *Helper) lowerFPExt(instr *gmir.Instr, hint llt.Type) error {
	st := h.TypeOf(instr.Uses[0].Reg)
	dt := h.TypeOf(instr.Defs[0])
	mid := hint
	if !mid.IsValid() || mid.NumElements() != st.NumElements() {
		mid = st.ChangeElementSize(2 * st.ScalarSizeInBits())
	}
	if mid.ScalarSizeInBits() <= st.ScalarSizeInBits() || mid.ScalarSizeInBits() >= dt.ScalarSizeInBits() {
		return unable("cannot lower %s from %s to %s", instr.Op, st, dt)
	}
	step := h.BuildValue(gmir.GFPExt, mid, instr.Uses[0])
	h.Build(gmir.GFPExt, instr.Defs, gmir.R(step))
	h.Erase(instr)
	return nil
}

// lowerExtLoad loads the memory type and extends it
func (h *Helper) lowerExtLoad(instr *gmir.Instr) error {
	dt := h.TypeOf(instr.Defs[0])
	mem := memOf(instr, dt)
	if !dt.IsScalar() || mem.SizeInBits > dt.SizeInBits() {
		return unable("cannot lower %s of %s", instr.Op, dt)
	}
	if mem.SizeInBits == dt.SizeInBits() {
		instr.Op = gmir.GLoad
		h.MarkChanged(instr)
		return nil
	}
	tmp := h.NewReg(llt.Scalar(mem.SizeInBits))
	ld := h.Build(gmir.GLoad, []gmir.Reg{tmp}, instr.Uses[0])
	ld.Mem = append([]gmir.MemDesc(nil), instr.Mem...)
	h.Build(loadExt[instr.Op], instr.Defs, gmir.R(tmp))
	h.Erase(instr)
	return nil
}
