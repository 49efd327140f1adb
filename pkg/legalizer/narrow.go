package legalizer

import (
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// NarrowScalar makes type index idx of instr hold narrow by splitting the
// value into parts or by operating on a truncated value.
func (h *Helper) NarrowScalar(instr *gmir.Instr, idx int, narrow llt.Type) error {
	old := QueryFor(h.fn, instr).Type(idx)
	if !old.IsScalar() || !narrow.IsScalar() || narrow.SizeInBits() >= old.SizeInBits() {
		return unable("cannot narrow %s type index %d from %s to %s", instr.Op, idx, old, narrow)
	}

	switch {
	case idx == 0 && (instr.Op == gmir.GLoad || instr.Op == gmir.GSExtLoad || instr.Op == gmir.GZExtLoad):
		return h.narrowLoad(instr, old, narrow)
	case idx == 0 && instr.Op == gmir.GStore:
		return h.narrowStore(instr, old, narrow)
	case idx == 1 && instr.Op == gmir.GTrunc:
		return h.narrowTruncSrc(instr, old, narrow)
	case idx == 1 && instr.Op == gmir.GICmp:
		return h.narrowCompare(instr, old, narrow)
	}

	if idx != 0 {
		return unable("cannot narrow %s type index %d", instr.Op, idx)
	}
	n, err := numParts(old, narrow)
	if err != nil {
		return err
	}
	switch instr.Op {
	case gmir.GAnd, gmir.GOr, gmir.GXor:
		return h.narrowBitwise(instr, narrow, n)
	case gmir.GAdd, gmir.GSub:
		return h.narrowAddSub(instr, narrow, n)
	case gmir.GSelect:
		return h.narrowSelect(instr, narrow, n)
	case gmir.GImplicitDef:
		h.SetInsertBefore(instr)
		parts := make([]gmir.Reg, n)
		for i := range parts {
			parts[i] = h.BuildUndef(narrow)
		}
		h.BuildMerge(instr.Defs[0], parts)
		h.Erase(instr)
		return nil
	case gmir.GConstant:
		h.SetInsertBefore(instr)
		v := instr.Uses[0].Imm
		bits := narrow.SizeInBits()
		parts := make([]gmir.Reg, n)
		for i := range parts {
			parts[i] = h.BuildConstant(narrow, signExtend(v>>uint(i*bits), bits))
		}
		h.BuildMerge(instr.Defs[0], parts)
		h.Erase(instr)
		return nil
	case gmir.GAnyExt, gmir.GSExt, gmir.GZExt:
		return h.narrowExt(instr, narrow, n)
	}
	return unable("cannot narrow %s", instr.Op)
}

// numParts returns how many narrow parts make up old
func numParts(old, narrow llt.Type) (int, error) {
	if old.SizeInBits()%narrow.SizeInBits() != 0 {
		return 0, unable("%s is not a multiple of %s", old, narrow)
	}
	return old.SizeInBits() / narrow.SizeInBits(), nil
}

func (h *Helper) narrowBitwise(instr *gmir.Instr, narrow llt.Type, n int) error {
	h.SetInsertBefore(instr)
	lhs := h.BuildUnmerge(instr.Uses[0].Reg, narrow, n)
	rhs := h.BuildUnmerge(instr.Uses[1].Reg, narrow, n)
	parts := make([]gmir.Reg, n)
	for i := range parts {
		parts[i] = h.BuildValue(instr.Op, narrow, gmir.R(lhs[i]), gmir.R(rhs[i]))
	}
	h.BuildMerge(instr.Defs[0], parts)
	h.Erase(instr)
	return nil
}

// narrowAddSub chains the carry from the low part upwards
func (h *Helper) narrowAddSub(instr *gmir.Instr, narrow llt.Type, n int) error {
	first, rest := gmir.GUAddO, gmir.GUAddE
	if instr.Op == gmir.GSub {
		first, rest = gmir.GUSubO, gmir.GUSubE
	}

	h.SetInsertBefore(instr)
	lhs := h.BuildUnmerge(instr.Uses[0].Reg, narrow, n)
	rhs := h.BuildUnmerge(instr.Uses[1].Reg, narrow, n)
	parts := make([]gmir.Reg, n)
	var carry gmir.Reg
	for i := range parts {
		parts[i] = h.NewReg(narrow)
		next := h.NewReg(llt.Scalar(1))
		if i == 0 {
			h.Build(first, []gmir.Reg{parts[i], next}, gmir.R(lhs[i]), gmir.R(rhs[i]))
		} else {
			h.Build(rest, []gmir.Reg{parts[i], next}, gmir.R(lhs[i]), gmir.R(rhs[i]), gmir.R(carry))
		}
		carry = next
	}
	h.BuildMerge(instr.Defs[0], parts)
	h.Erase(instr)
	return nil
}

func (h *Helper) narrowSelect(instr *gmir.Instr, narrow llt.Type, n int) error {
	cond := instr.Uses[0]
	if h.TypeOf(cond.Reg).IsVector() {
		return unable("cannot narrow %s with a vector condition", instr.Op)
	}
	h.SetInsertBefore(instr)
	lhs := h.BuildUnmerge(instr.Uses[1].Reg, narrow, n)
	rhs := h.BuildUnmerge(instr.Uses[2].Reg, narrow, n)
	parts := make([]gmir.Reg, n)
	for i := range parts {
		parts[i] = h.BuildValue(gmir.GSelect, narrow, cond, gmir.R(lhs[i]), gmir.R(rhs[i]))
	}
	h.BuildMerge(instr.Defs[0], parts)
	h.Erase(instr)
	return nil
}

// narrowExt builds the low part with the same extension and fills the high
// parts with undef, copies of the sign, or zero
func (h *Helper) narrowExt(instr *gmir.Instr, narrow llt.Type, n int) error {
	src := instr.Uses[0]
	st := h.TypeOf(src.Reg)
	if !st.IsScalar() || st.SizeInBits() > narrow.SizeInBits() {
		return unable("cannot narrow %s of %s to %s", instr.Op, st, narrow)
	}

	h.SetInsertBefore(instr)
	lo := src.Reg
	if st != narrow {
		lo = h.BuildValue(instr.Op, narrow, src)
	}
	var hi gmir.Reg
	switch instr.Op {
	case gmir.GAnyExt:
		hi = h.BuildUndef(narrow)
	case gmir.GSExt:
		amt := h.BuildConstant(narrow, int64(narrow.SizeInBits()-1))
		hi = h.BuildValue(gmir.GAShr, narrow, gmir.R(lo), gmir.R(amt))
	case gmir.GZExt:
		hi = h.BuildConstant(narrow, 0)
	}
	parts := make([]gmir.Reg, n)
	parts[0] = lo
	for i := 1; i < n; i++ {
		parts[i] = hi
	}
	h.BuildMerge(instr.Defs[0], parts)
	h.Erase(instr)
	return nil
}

// narrowTruncSrc keeps only the low part of the source
func (h *Helper) narrowTruncSrc(instr *gmir.Instr, old, narrow llt.Type) error {
	dst := instr.Defs[0]
	dt := h.TypeOf(dst)
	n, err := numParts(old, narrow)
	if err != nil {
		return err
	}
	if !dt.IsScalar() || dt.SizeInBits() > narrow.SizeInBits() {
		return unable("cannot narrow %s source to %s for %s", instr.Op, narrow, dt)
	}

	h.SetInsertBefore(instr)
	if dt == narrow {
		defs := []gmir.Reg{dst}
		for i := 1; i < n; i++ {
			defs = append(defs, h.NewReg(narrow))
		}
		h.Build(gmir.GUnmergeValues, defs, instr.Uses[0])
	} else {
		parts := h.BuildUnmerge(instr.Uses[0].Reg, narrow, n)
		h.Build(gmir.GTrunc, []gmir.Reg{dst}, gmir.R(parts[0]))
	}
	h.Erase(instr)
	return nil
}

// narrowCompare handles equality by or-ing the xor of every part pair
func (h *Helper) narrowCompare(instr *gmir.Instr, old, narrow llt.Type) error {
	pred := instr.Uses[0].Pred
	if pred != gmir.IntEQ && pred != gmir.IntNE {
		return unable("cannot narrow %s %s", instr.Op, pred)
	}
	n, err := numParts(old, narrow)
	if err != nil {
		return err
	}

	h.SetInsertBefore(instr)
	lhs := h.BuildUnmerge(instr.Uses[1].Reg, narrow, n)
	rhs := h.BuildUnmerge(instr.Uses[2].Reg, narrow, n)
	var acc gmir.Reg
	for i := 0; i < n; i++ {
		x := h.BuildValue(gmir.GXor, narrow, gmir.R(lhs[i]), gmir.R(rhs[i]))
		if i == 0 {
			acc = x
		} else {
			acc = h.BuildValue(gmir.GOr, narrow, gmir.R(acc), gmir.R(x))
		}
	}
	zero := h.BuildConstant(narrow, 0)
	h.Build(gmir.GICmp, []gmir.Reg{instr.Defs[0]}, gmir.P(pred), gmir.R(acc), gmir.R(zero))
	h.Erase(instr)
	return nil
}

func memOf(instr *gmir.Instr, t llt.Type) gmir.MemDesc {
	if len(instr.Mem) > 0 {
		return instr.Mem[0]
	}
	return gmir.MemDesc{SizeInBits: t.SizeInBits()}
}

var loadExt = map[gmir.Opcode]gmir.Opcode{
	gmir.GLoad:     gmir.GAnyExt,
	gmir.GSExtLoad: gmir.GSExt,
	gmir.GZExtLoad: gmir.GZExt,
}

// narrowLoad loads a narrow value and extends it when the access fits,
// otherwise splits a plain load into consecutive narrow loads
func (h *Helper) narrowLoad(instr *gmir.Instr, old, narrow llt.Type) error {
	dst := instr.Defs[0]
	addr := instr.Uses[0]
	mem := memOf(instr, old)

	h.SetInsertBefore(instr)
	if mem.SizeInBits <= narrow.SizeInBits() {
		tmp := h.NewReg(narrow)
		ld := h.Build(instr.Op, []gmir.Reg{tmp}, addr)
		ld.Mem = append([]gmir.MemDesc(nil), instr.Mem...)
		h.Build(loadExt[instr.Op], []gmir.Reg{dst}, gmir.R(tmp))
		h.Erase(instr)
		return nil
	}

	bits := narrow.SizeInBits()
	if instr.Op != gmir.GLoad || mem.SizeInBits != old.SizeInBits() || bits%8 != 0 {
		return unable("cannot split %s of %d bits into %s", instr.Op, mem.SizeInBits, narrow)
	}
	n, err := numParts(old, narrow)
	if err != nil {
		return err
	}
	parts := make([]gmir.Reg, n)
	for i := range parts {
		ptr := h.buildPtrAdd(addr.Reg, i*bits/8)
		parts[i] = h.NewReg(narrow)
		ld := h.Build(gmir.GLoad, []gmir.Reg{parts[i]}, gmir.R(ptr))
		ld.Mem = []gmir.MemDesc{{SizeInBits: bits, AlignInBits: partAlign(mem.AlignInBits, i*bits)}}
	}
	h.BuildMerge(dst, parts)
	h.Erase(instr)
	return nil
}

// narrowStore truncates the value when the access fits, otherwise stores
// each part at its offset
func (h *Helper) narrowStore(instr *gmir.Instr, old, narrow llt.Type) error {
	val, addr := instr.Uses[0], instr.Uses[1]
	mem := memOf(instr, old)

	h.SetInsertBefore(instr)
	if mem.SizeInBits <= narrow.SizeInBits() {
		tmp := h.BuildValue(gmir.GTrunc, narrow, val)
		st := h.Build(gmir.GStore, nil, gmir.R(tmp), addr)
		st.Mem = append([]gmir.MemDesc(nil), instr.Mem...)
		h.Erase(instr)
		return nil
	}

	bits := narrow.SizeInBits()
	if mem.SizeInBits != old.SizeInBits() || bits%8 != 0 {
		return unable("cannot split %s of %d bits into %s", instr.Op, mem.SizeInBits, narrow)
	}
	n, err := numParts(old, narrow)
	if err != nil {
		return err
	}
	parts := h.BuildUnmerge(val.Reg, narrow, n)
	for i, part := range parts {
		ptr := h.buildPtrAdd(addr.Reg, i*bits/8)
		st := h.Build(gmir.GStore, nil, gmir.R(part), gmir.R(ptr))
		st.Mem = []gmir.MemDesc{{SizeInBits: bits, AlignInBits: partAlign(mem.AlignInBits, i*bits)}}
	}
	h.Erase(instr)
	return nil
}
