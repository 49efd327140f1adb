package legalizer

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// MemDesc is the memory access descriptor of a load, store or atomic
type MemDesc = gmir.MemDesc

// Query is a snapshot of one instruction occurrence: its opcode, the type
// held by each type index, and its memory accesses.
type Query struct {
	Opcode gmir.Opcode
	Types  []llt.Type
	MMOs   []MemDesc
}

// Type returns the type at idx, or the invalid type when idx is out of range
func (q Query) Type(idx int) llt.Type {
	if idx < 0 || idx >= len(q.Types) {
		return llt.Type{}
	}
	return q.Types[idx]
}

// MemSize returns the access size of memory operand i, or 0
func (q Query) MemSize(i int) int {
	if i < 0 || i >= len(q.MMOs) {
		return 0
	}
	return q.MMOs[i].SizeInBits
}

func (q Query) String() string {
	parts := make([]string, len(q.Types))
	for i, t := range q.Types {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s (%s)", q.Opcode, strings.Join(parts, ", "))
}

// QueryFor builds the query of instr. The type of a slot is taken from the
// first register operand assigned to it, defs before uses.
func QueryFor(fn *gmir.Function, instr *gmir.Instr) Query {
	info := instr.Info()
	q := Query{
		Opcode: instr.Op,
		Types:  make([]llt.Type, info.NumTypeIdx),
		MMOs:   instr.Mem,
	}
	set := func(idx int, r gmir.Reg) {
		if idx >= 0 && idx < len(q.Types) && !q.Types[idx].IsValid() {
			q.Types[idx] = fn.TypeOf(r)
		}
	}
	for i, d := range instr.Defs {
		set(info.DefSpec(i).TypeIdx, d)
	}
	for i, u := range instr.Uses {
		if u.Kind == gmir.OperandReg {
			set(info.UseSpec(i).TypeIdx, u.Reg)
		}
	}
	return q
}
