package legalizer

import (
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// tryCombine folds an artifact created by a rewrite into the artifact that
// defines its source. It reports whether instr was erased or rewritten in
// place. Registers defined by the input program keep their definitions:
// a fold may recompute them but never forwards their readers elsewhere.
func (w *worklist) tryCombine(instr *gmir.Instr) bool {
	if len(instr.Uses) == 0 || instr.Uses[0].Kind != gmir.OperandReg {
		return false
	}
	src := w.fn.DefOf(instr.Uses[0].Reg)
	if src == nil || w.h.erased[src] {
		return false
	}
	switch instr.Op {
	case gmir.GTrunc:
		return w.combineTrunc(instr, src)
	case gmir.GAnyExt, gmir.GZExt, gmir.GSExt:
		return w.combineExt(instr, src)
	case gmir.GUnmergeValues:
		return w.combineUnmerge(instr, src)
	}
	return false
}

func isExt(op gmir.Opcode) bool {
	return op == gmir.GAnyExt || op == gmir.GZExt || op == gmir.GSExt
}

// scalars reports whether every register is a scalar
func (w *worklist) scalars(rs ...gmir.Reg) bool {
	for _, r := range rs {
		if !w.fn.TypeOf(r).IsScalar() {
			return false
		}
	}
	return true
}

// forward replaces every read of the result of instr with from and erases
// instr
func (w *worklist) forward(instr *gmir.Instr, from gmir.Reg) bool {
	dst := instr.Defs[0]
	if w.observable[dst] {
		return false
	}
	w.fn.ReplaceUses(dst, from)
	w.h.Erase(instr)
	return true
}

// rewrite turns instr into op reading from
func (w *worklist) rewrite(instr *gmir.Instr, op gmir.Opcode, from gmir.Reg) bool {
	instr.Op = op
	instr.Uses = []gmir.Operand{gmir.R(from)}
	w.h.MarkChanged(instr)
	return true
}

// combineTrunc folds trunc(ext x), trunc(trunc x) and the low part of
// trunc(merge)
func (w *worklist) combineTrunc(instr, src *gmir.Instr) bool {
	dst := instr.Defs[0]
	dt := w.fn.TypeOf(dst)
	done := false
	switch {
	case isExt(src.Op):
		x := src.Uses[0].Reg
		if !w.scalars(dst, x) {
			return false
		}
		xt := w.fn.TypeOf(x)
		switch {
		case xt == dt:
			done = w.forward(instr, x)
		case xt.SizeInBits() < dt.SizeInBits():
			done = w.rewrite(instr, src.Op, x)
		default:
			done = w.rewrite(instr, gmir.GTrunc, x)
		}
	case src.Op == gmir.GTrunc:
		done = w.rewrite(instr, gmir.GTrunc, src.Uses[0].Reg)
	case src.Op == gmir.GMergeValues:
		lo := src.Uses[0].Reg
		if !w.scalars(dst, lo) {
			return false
		}
		lt := w.fn.TypeOf(lo)
		switch {
		case lt == dt:
			done = w.forward(instr, lo)
		case dt.SizeInBits() < lt.SizeInBits():
			done = w.rewrite(instr, gmir.GTrunc, lo)
		}
	}
	if done {
		w.eraseIfDead(src)
	}
	return done
}

// combineExt folds an extension of a truncation or of another extension
func (w *worklist) combineExt(instr, src *gmir.Instr) bool {
	dst := instr.Defs[0]
	x := src.Uses[0].Reg
	if !w.scalars(dst, x) {
		return false
	}
	dt, xt := w.fn.TypeOf(dst), w.fn.TypeOf(x)
	done := false
	switch {
	case src.Op == gmir.GTrunc && instr.Op == gmir.GAnyExt:
		switch {
		case xt == dt:
			done = w.forward(instr, x)
		case xt.SizeInBits() < dt.SizeInBits():
			done = w.rewrite(instr, gmir.GAnyExt, x)
		default:
			done = w.rewrite(instr, gmir.GTrunc, x)
		}
	case src.Op == gmir.GTrunc && instr.Op == gmir.GZExt:
		// zext(trunc x) keeps the low bits of x
		mid := w.fn.TypeOf(src.Defs[0]).SizeInBits()
		if xt != dt || mid >= 64 {
			return false
		}
		w.h.SetInsertBefore(instr)
		mask := w.h.BuildConstant(dt, int64(1)<<mid-1)
		instr.Op = gmir.GAnd
		instr.Uses = []gmir.Operand{gmir.R(x), gmir.R(mask)}
		w.h.MarkChanged(instr)
		done = true
	case isExt(src.Op):
		if op, ok := extOfExt(instr.Op, src.Op); ok {
			done = w.rewrite(instr, op, x)
		}
	}
	if done {
		w.eraseIfDead(src)
	}
	return done
}

// extOfExt returns the single extension equal to outer applied to inner.
// An inner zext leaves a zero top bit, so a sign extension of it is a zext.
func extOfExt(outer, inner gmir.Opcode) (gmir.Opcode, bool) {
	switch {
	case outer == gmir.GAnyExt, outer == inner:
		return inner, true
	case outer == gmir.GSExt && inner == gmir.GZExt:
		return gmir.GZExt, true
	}
	return gmir.OpInvalid, false
}

// combineUnmerge splits a value that was just built from parts back into
// those parts, regrouping them when the counts differ
func (w *worklist) combineUnmerge(instr, src *gmir.Instr) bool {
	switch src.Op {
	case gmir.GMergeValues, gmir.GBuildVector, gmir.GConcatVectors:
	default:
		return false
	}
	defs := instr.Defs
	parts := make([]gmir.Reg, len(src.Uses))
	for i, u := range src.Uses {
		parts[i] = u.Reg
	}
	dt, pt := w.fn.TypeOf(defs[0]), w.fn.TypeOf(parts[0])
	if dt.SizeInBits()*len(defs) != pt.SizeInBits()*len(parts) {
		return false
	}

	switch {
	case len(defs) == len(parts):
		if dt != pt {
			return false
		}
		for _, d := range defs {
			if w.observable[d] {
				return false
			}
		}
		for i, d := range defs {
			w.fn.ReplaceUses(d, parts[i])
		}
		w.h.Erase(instr)
	case len(parts)%len(defs) == 0:
		if !canMerge(dt, pt) {
			return false
		}
		k := len(parts) / len(defs)
		w.h.SetInsertBefore(instr)
		for i, d := range defs {
			w.h.BuildMerge(d, parts[i*k:(i+1)*k])
		}
		w.h.Erase(instr)
	case len(defs)%len(parts) == 0:
		if !canMerge(pt, dt) {
			return false
		}
		k := len(defs) / len(parts)
		w.h.SetInsertBefore(instr)
		for j, p := range parts {
			w.h.Build(gmir.GUnmergeValues, append([]gmir.Reg(nil), defs[j*k:(j+1)*k]...), gmir.R(p))
		}
		w.h.Erase(instr)
	default:
		return false
	}
	w.eraseIfDead(src)
	return true
}

// canMerge reports whether whole values of type part recombine into wide
// with one merge, build_vector or concat
func canMerge(wide, part llt.Type) bool {
	switch {
	case wide.IsScalar():
		return part.IsScalar()
	case wide.IsVector() && part.IsVector():
		return wide.ElementType() == part.ElementType()
	case wide.IsVector():
		return wide.ElementType() == part
	}
	return false
}

// eraseIfDead removes an artifact whose results nothing reads, then tries
// the artifacts that fed it
func (w *worklist) eraseIfDead(instr *gmir.Instr) {
	if instr == nil || w.h.erased[instr] || !isArtifact(instr) {
		return
	}
	for _, d := range instr.Defs {
		if w.observable[d] || w.fn.HasUses(d) {
			return
		}
	}
	w.h.Erase(instr)
	for _, u := range instr.Uses {
		if u.Kind == gmir.OperandReg {
			w.eraseIfDead(w.fn.DefOf(u.Reg))
		}
	}
}
