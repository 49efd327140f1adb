package legalizer

import (
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// FewerElements splits the vector at type index idx into pieces with the
// lane count of piece. The instruction is repeated once per piece and the
// results are recombined. A piece size that does not divide the vector
// falls back to single elements.
func (h *Helper) FewerElements(instr *gmir.Instr, idx int, piece llt.Type) error {
	old := QueryFor(h.fn, instr).Type(idx)
	if !old.IsVector() {
		return unable("cannot split %s type index %d of %s", instr.Op, idx, old)
	}
	lanes, n := old.NumElements(), piece.NumElements()
	if n >= lanes {
		return unable("cannot split %s into %s", old, piece)
	}
	if lanes%n != 0 {
		n = 1
	}

	switch instr.Op {
	case gmir.GLoad, gmir.GStore:
		if idx != 0 {
			return unable("cannot split %s type index %d", instr.Op, idx)
		}
		return h.fewerMemory(instr, old, n)
	case gmir.GBuildVector:
		return h.fewerBuildVector(instr, old, n)
	}
	if !instr.Info().Elementwise && instr.Op != gmir.GImplicitDef {
		return unable("cannot split %s", instr.Op)
	}
	return h.fewerElementwise(instr, lanes, n)
}

func (h *Helper) checkLanes(instr *gmir.Instr, lanes int) error {
	for _, d := range instr.Defs {
		if h.TypeOf(d).NumElements() != lanes {
			return unable("%s result %s does not have %d lanes", instr.Op, h.TypeOf(d), lanes)
		}
	}
	for _, u := range instr.Uses {
		if u.Kind != gmir.OperandReg {
			continue
		}
		if t := h.TypeOf(u.Reg); t.IsVector() && t.NumElements() != lanes {
			return unable("%s operand %s does not have %d lanes", instr.Op, t, lanes)
		}
	}
	return nil
}

func (h *Helper) fewerElementwise(instr *gmir.Instr, lanes, n int) error {
	if err := h.checkLanes(instr, lanes); err != nil {
		return err
	}
	count := lanes / n

	h.SetInsertBefore(instr)
	usePieces := make([][]gmir.Reg, len(instr.Uses))
	for i, u := range instr.Uses {
		if u.Kind != gmir.OperandReg {
			continue
		}
		if t := h.TypeOf(u.Reg); t.IsVector() {
			usePieces[i] = h.BuildUnmerge(u.Reg, t.ChangeElementCount(n), count)
		}
	}
	defPieces := make([][]gmir.Reg, len(instr.Defs))
	for i, d := range instr.Defs {
		t := h.TypeOf(d).ChangeElementCount(n)
		defPieces[i] = make([]gmir.Reg, count)
		for j := range defPieces[i] {
			defPieces[i][j] = h.NewReg(t)
		}
	}

	for j := 0; j < count; j++ {
		c := instr.Clone()
		c.Mem = nil
		for i := range c.Defs {
			c.Defs[i] = defPieces[i][j]
		}
		for i := range c.Uses {
			if usePieces[i] != nil {
				c.Uses[i] = gmir.R(usePieces[i][j])
			}
		}
		h.Insert(c)
	}
	for i, d := range instr.Defs {
		h.BuildMerge(d, defPieces[i])
	}
	h.Erase(instr)
	return nil
}

// fewerMemory splits a vector load or store into accesses of n lanes at
// consecutive offsets
func (h *Helper) fewerMemory(instr *gmir.Instr, old llt.Type, n int) error {
	mem := memOf(instr, old)
	pt := old.ChangeElementCount(n)
	bits := pt.SizeInBits()
	if mem.SizeInBits != old.SizeInBits() || bits%8 != 0 {
		return unable("cannot split %s of %s with %d bit access", instr.Op, old, mem.SizeInBits)
	}
	count := old.NumElements() / n

	h.SetInsertBefore(instr)
	if instr.Op == gmir.GLoad {
		addr := instr.Uses[0].Reg
		parts := make([]gmir.Reg, count)
		for j := range parts {
			ptr := h.buildPtrAdd(addr, j*bits/8)
			parts[j] = h.NewReg(pt)
			ld := h.Build(gmir.GLoad, []gmir.Reg{parts[j]}, gmir.R(ptr))
			ld.Mem = []gmir.MemDesc{{SizeInBits: bits, AlignInBits: partAlign(mem.AlignInBits, j*bits)}}
		}
		h.BuildMerge(instr.Defs[0], parts)
	} else {
		addr := instr.Uses[1].Reg
		parts := h.BuildUnmerge(instr.Uses[0].Reg, pt, count)
		for j, part := range parts {
			ptr := h.buildPtrAdd(addr, j*bits/8)
			st := h.Build(gmir.GStore, nil, gmir.R(part), gmir.R(ptr))
			st.Mem = []gmir.MemDesc{{SizeInBits: bits, AlignInBits: partAlign(mem.AlignInBits, j*bits)}}
		}
	}
	h.Erase(instr)
	return nil
}

// fewerBuildVector builds sub-vectors of n lanes and concatenates them
func (h *Helper) fewerBuildVector(instr *gmir.Instr, old llt.Type, n int) error {
	if n == 1 {
		return unable("cannot scalarize %s", instr.Op)
	}
	pt := old.ChangeElementCount(n)
	h.SetInsertBefore(instr)
	var pieces []gmir.Reg
	for j := 0; j < len(instr.Uses); j += n {
		pieces = append(pieces, h.BuildValue(gmir.GBuildVector, pt, instr.Uses[j:j+n]...))
	}
	h.Build(gmir.GConcatVectors, []gmir.Reg{instr.Defs[0]}, regs(pieces)...)
	h.Erase(instr)
	return nil
}

// MoreElements pads the vector at type index idx to the lane count of wide.
// Uses get undefined extra lanes; defs are produced wide and the original
// lanes are rebuilt into the old registers.
func (h *Helper) MoreElements(instr *gmir.Instr, idx int, wide llt.Type) error {
	old := QueryFor(h.fn, instr).Type(idx)
	lanes, more := old.NumElements(), wide.NumElements()
	if !old.IsVector() || more <= lanes {
		return unable("cannot pad %s type index %d from %s to %s", instr.Op, idx, old, wide)
	}

	info := instr.Info()
	switch {
	case instr.Op == gmir.GBuildVector:
		h.SetInsertBefore(instr)
		pad := h.BuildUndef(old.ElementType())
		for i := lanes; i < more; i++ {
			instr.Uses = append(instr.Uses, gmir.R(pad))
		}
	case info.Elementwise || instr.Op == gmir.GImplicitDef:
		if err := h.checkLanes(instr, lanes); err != nil {
			return err
		}
		h.SetInsertBefore(instr)
		pads := make(map[llt.Type]gmir.Reg)
		for i, u := range instr.Uses {
			if u.Kind != gmir.OperandReg || !h.TypeOf(u.Reg).IsVector() {
				continue
			}
			t := h.TypeOf(u.Reg)
			elt := t.ElementType()
			elts := h.BuildUnmerge(u.Reg, elt, lanes)
			pad, ok := pads[elt]
			if !ok {
				pad = h.BuildUndef(elt)
				pads[elt] = pad
			}
			for len(elts) < more {
				elts = append(elts, pad)
			}
			instr.Uses[i] = gmir.R(h.BuildValue(gmir.GBuildVector, t.ChangeElementCount(more), regs(elts)...))
		}
	default:
		return unable("cannot pad %s", instr.Op)
	}

	h.SetInsertAfter(instr)
	for i, d := range instr.Defs {
		t := h.TypeOf(d)
		wideDef := h.NewReg(t.ChangeElementCount(more))
		instr.Defs[i] = wideDef
		elts := h.BuildUnmerge(wideDef, t.ElementType(), more)
		h.Build(gmir.GBuildVector, []gmir.Reg{d}, regs(elts[:lanes])...)
	}
	h.MarkChanged(instr)
	return nil
}
