package legalizer

import (
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// extOpcode picks the conversion applied to a use whose slot grows
func extOpcode(ext gmir.ExtKind, instr *gmir.Instr) gmir.Opcode {
	switch ext {
	case gmir.ExtAny:
		return gmir.GAnyExt
	case gmir.ExtSign:
		return gmir.GSExt
	case gmir.ExtZero:
		return gmir.GZExt
	case gmir.ExtFP:
		return gmir.GFPExt
	case gmir.ExtPred:
		if len(instr.Uses) > 0 && instr.Uses[0].Pred.IsSigned() {
			return gmir.GSExt
		}
		return gmir.GZExt
	}
	return gmir.OpInvalid
}

// truncOpcode picks the conversion from a widened def back to its old type
func truncOpcode(ext gmir.ExtKind) gmir.Opcode {
	switch ext {
	case gmir.ExtNone:
		return gmir.OpInvalid
	case gmir.ExtFP:
		return gmir.GFPTrunc
	}
	return gmir.GTrunc
}

// WidenScalar makes type index idx of instr hold wide. Uses are extended
// and defs are computed wide and truncated back into their registers.
func (h *Helper) WidenScalar(instr *gmir.Instr, idx int, wide llt.Type) error {
	old := QueryFor(h.fn, instr).Type(idx)
	if !old.IsValid() {
		return unable("%s has no type index %d", instr.Op, idx)
	}
	if old.IsPointer() || old.ElementType().IsPointer() || wide.ElementType().IsPointer() {
		return unable("cannot widen pointer type %s of %s", old, instr.Op)
	}
	if wide.NumElements() != old.NumElements() || wide.ScalarSizeInBits() <= old.ScalarSizeInBits() {
		return unable("cannot widen %s to %s", old, wide)
	}

	switch instr.Op {
	case gmir.GMergeValues:
		if idx == 0 {
			return h.widenMergeDst(instr, old, wide)
		}
		return unable("cannot widen %s sources", instr.Op)
	case gmir.GUnmergeValues:
		if idx == 1 {
			return h.widenUnmergeSrc(instr, old, wide)
		}
		return h.widenUnmergeDst(instr)
	case gmir.GCtlz, gmir.GCtlzZeroUndef, gmir.GCttz, gmir.GCttzZeroUndef:
		if idx == 1 {
			return h.widenCountSrc(instr, old, wide)
		}
	case gmir.GBSwap:
		return h.widenBSwap(instr, old, wide)
	case gmir.GTrunc:
		if idx == 0 && wide.SizeInBits() >= h.TypeOf(instr.Uses[0].Reg).SizeInBits() {
			return unable("cannot widen %s result to %s", instr.Op, wide)
		}
	case gmir.GAnyExt, gmir.GSExt, gmir.GZExt, gmir.GFPExt:
		if idx == 1 && wide.SizeInBits() >= h.TypeOf(instr.Defs[0]).SizeInBits() {
			return unable("cannot widen %s source to %s", instr.Op, wide)
		}
	}
	return h.widenOperands(instr, idx, old, wide)
}

func (h *Helper) widenOperands(instr *gmir.Instr, idx int, old, wide llt.Type) error {
	info := instr.Info()
	for i, u := range instr.Uses {
		spec := info.UseSpec(i)
		if u.Kind == gmir.OperandReg && spec.TypeIdx == idx && extOpcode(spec.Ext, instr) == gmir.OpInvalid {
			return unable("%s operand %d cannot be extended", instr.Op, i)
		}
	}
	for i := range instr.Defs {
		spec := info.DefSpec(i)
		if spec.TypeIdx == idx && truncOpcode(spec.Ext) == gmir.OpInvalid {
			return unable("%s result %d cannot be truncated", instr.Op, i)
		}
	}

	h.SetInsertBefore(instr)
	for i, u := range instr.Uses {
		spec := info.UseSpec(i)
		if u.Kind != gmir.OperandReg || spec.TypeIdx != idx {
			continue
		}
		instr.Uses[i] = gmir.R(h.BuildValue(extOpcode(spec.Ext, instr), wide, u))
	}
	if instr.Op == gmir.GConstant && idx == 0 {
		instr.Uses[0].Imm = signExtend(instr.Uses[0].Imm, old.SizeInBits())
	}

	h.SetInsertAfter(instr)
	for i, d := range instr.Defs {
		spec := info.DefSpec(i)
		if spec.TypeIdx != idx {
			continue
		}
		wideDef := h.NewReg(wide)
		instr.Defs[i] = wideDef
		h.Build(truncOpcode(spec.Ext), []gmir.Reg{d}, gmir.R(wideDef))
	}
	h.MarkChanged(instr)
	return nil
}

// widenMergeDst rebuilds a merge as zero-extended parts shifted into place
func (h *Helper) widenMergeDst(instr *gmir.Instr, old, wide llt.Type) error {
	if !old.IsScalar() || !wide.IsScalar() {
		return unable("cannot widen %s of %s", instr.Op, old)
	}
	part := h.TypeOf(instr.Uses[0].Reg)
	if !part.IsScalar() {
		return unable("cannot widen %s of %s parts", instr.Op, part)
	}

	h.SetInsertBefore(instr)
	acc := h.BuildValue(gmir.GZExt, wide, instr.Uses[0])
	for i, u := range instr.Uses[1:] {
		ext := h.BuildValue(gmir.GZExt, wide, u)
		amt := h.BuildConstant(wide, int64((i+1)*part.SizeInBits()))
		shifted := h.BuildValue(gmir.GShl, wide, gmir.R(ext), gmir.R(amt))
		acc = h.BuildValue(gmir.GOr, wide, gmir.R(acc), gmir.R(shifted))
	}
	h.Build(gmir.GTrunc, []gmir.Reg{instr.Defs[0]}, gmir.R(acc))
	h.Erase(instr)
	return nil
}

// widenUnmergeSrc extends the source and adds dead defs for the extra parts
func (h *Helper) widenUnmergeSrc(instr *gmir.Instr, old, wide llt.Type) error {
	part := h.TypeOf(instr.Defs[0])
	if !old.IsScalar() || !wide.IsScalar() || wide.SizeInBits()%part.SizeInBits() != 0 {
		return unable("cannot widen %s source %s to %s", instr.Op, old, wide)
	}
	h.SetInsertBefore(instr)
	instr.Uses[0] = gmir.R(h.BuildValue(gmir.GAnyExt, wide, instr.Uses[0]))
	for n := len(instr.Defs); n < wide.SizeInBits()/part.SizeInBits(); n++ {
		instr.Defs = append(instr.Defs, h.NewReg(part))
	}
	h.MarkChanged(instr)
	return nil
}

// widenUnmergeDst extracts every part with a shift and a truncation
func (h *Helper) widenUnmergeDst(instr *gmir.Instr) error {
	src := instr.Uses[0]
	st := h.TypeOf(src.Reg)
	if !st.IsScalar() {
		return unable("cannot widen %s parts of %s", instr.Op, st)
	}
	part := h.TypeOf(instr.Defs[0])

	h.SetInsertBefore(instr)
	for i, d := range instr.Defs {
		val := src
		if i > 0 {
			amt := h.BuildConstant(st, int64(i*part.SizeInBits()))
			val = gmir.R(h.BuildValue(gmir.GLShr, st, src, gmir.R(amt)))
		}
		h.Build(gmir.GTrunc, []gmir.Reg{d}, val)
	}
	h.Erase(instr)
	return nil
}

// widenCountSrc widens the source of a bit count. Leading counts subtract
// the added width; trailing counts plant a stop bit above the old width.
func (h *Helper) widenCountSrc(instr *gmir.Instr, old, wide llt.Type) error {
	if !old.IsScalar() {
		return unable("cannot widen %s source %s", instr.Op, old)
	}
	dst := instr.Defs[0]
	dt := h.TypeOf(dst)

	h.SetInsertBefore(instr)
	switch instr.Op {
	case gmir.GCtlz, gmir.GCtlzZeroUndef:
		ext := h.BuildValue(gmir.GZExt, wide, instr.Uses[0])
		count := h.BuildValue(instr.Op, dt, gmir.R(ext))
		diff := h.BuildConstant(dt, int64(wide.SizeInBits()-old.SizeInBits()))
		h.Build(gmir.GSub, []gmir.Reg{dst}, gmir.R(count), gmir.R(diff))
		h.Erase(instr)
	case gmir.GCttz:
		if old.SizeInBits() >= 63 {
			return unable("cannot widen %s source %s", instr.Op, old)
		}
		ext := h.BuildValue(gmir.GAnyExt, wide, instr.Uses[0])
		stop := h.BuildConstant(wide, int64(1)<<old.SizeInBits())
		or := h.BuildValue(gmir.GOr, wide, gmir.R(ext), gmir.R(stop))
		h.Build(gmir.GCttzZeroUndef, []gmir.Reg{dst}, gmir.R(or))
		h.Erase(instr)
	case gmir.GCttzZeroUndef:
		instr.Uses[0] = gmir.R(h.BuildValue(gmir.GAnyExt, wide, instr.Uses[0]))
		h.MarkChanged(instr)
	}
	return nil
}

// widenBSwap swaps in the wide type and shifts the result back down
func (h *Helper) widenBSwap(instr *gmir.Instr, old, wide llt.Type) error {
	if !old.IsScalar() {
		return unable("cannot widen %s of %s", instr.Op, old)
	}
	h.SetInsertBefore(instr)
	ext := h.BuildValue(gmir.GAnyExt, wide, instr.Uses[0])
	swapped := h.BuildValue(gmir.GBSwap, wide, gmir.R(ext))
	amt := h.BuildConstant(wide, int64(wide.SizeInBits()-old.SizeInBits()))
	shifted := h.BuildValue(gmir.GLShr, wide, gmir.R(swapped), gmir.R(amt))
	h.Build(gmir.GTrunc, []gmir.Reg{instr.Defs[0]}, gmir.R(shifted))
	h.Erase(instr)
	return nil
}
