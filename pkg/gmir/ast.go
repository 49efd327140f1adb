// Package gmir defines the generic machine IR consumed by the legalizer.
// A function is a straight-line list of instructions over virtual registers;
// every register carries an llt.Type. Opcodes are target independent and
// declare which operands share a type slot.
package gmir

import (
	"fmt"

	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Reg is a virtual register (positive integer, infinite supply)
type Reg int

// Pred is a comparison predicate operand of G_ICMP and G_FCMP
type Pred uint8

const (
	PredInvalid Pred = iota
	IntEQ
	IntNE
	IntUGT
	IntUGE
	IntULT
	IntULE
	IntSGT
	IntSGE
	IntSLT
	IntSLE
	FloatOEQ
	FloatOGT
	FloatOGE
	FloatOLT
	FloatOLE
	FloatONE
	FloatORD
	FloatUNO
	FloatUEQ
	FloatUNE
)

var predNames = []string{
	"invalid",
	"intpred(eq)", "intpred(ne)",
	"intpred(ugt)", "intpred(uge)", "intpred(ult)", "intpred(ule)",
	"intpred(sgt)", "intpred(sge)", "intpred(slt)", "intpred(sle)",
	"floatpred(oeq)", "floatpred(ogt)", "floatpred(oge)", "floatpred(olt)",
	"floatpred(ole)", "floatpred(one)", "floatpred(ord)", "floatpred(uno)",
	"floatpred(ueq)", "floatpred(une)",
}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return "?"
}

// IsSigned reports whether an integer predicate compares signed values
func (p Pred) IsSigned() bool {
	return p >= IntSGT && p <= IntSLE
}

// LookupPred finds a predicate by its printed form, e.g. "intpred(eq)"
func LookupPred(name string) (Pred, bool) {
	for i, n := range predNames {
		if i > 0 && n == name {
			return Pred(i), true
		}
	}
	return PredInvalid, false
}

// Operand is a use operand: a register, an integer or float immediate,
// or a predicate
type Operand struct {
	Kind OperandKind
	Reg  Reg
	Imm  int64
	FImm float64
	Pred Pred
}

// R makes a register operand
func R(r Reg) Operand { return Operand{Kind: OperandReg, Reg: r} }

// Imm makes an integer immediate operand
func Imm(v int64) Operand { return Operand{Kind: OperandImm, Imm: v} }

// FImm makes a floating point immediate operand
func FImm(v float64) Operand { return Operand{Kind: OperandFImm, FImm: v} }

// P makes a predicate operand
func P(p Pred) Operand { return Operand{Kind: OperandPred, Pred: p} }

// MemDesc describes one memory access of a load, store or atomic
type MemDesc struct {
	SizeInBits  int
	AlignInBits int
}

// Instr is a single generic instruction
type Instr struct {
	Op   Opcode
	Defs []Reg
	Uses []Operand
	Mem  []MemDesc
}

// NewInstr builds an instruction
func NewInstr(op Opcode, defs []Reg, uses ...Operand) *Instr {
	return &Instr{Op: op, Defs: defs, Uses: uses}
}

// Clone returns a deep copy of the instruction
func (i *Instr) Clone() *Instr {
	c := &Instr{Op: i.Op}
	c.Defs = append([]Reg(nil), i.Defs...)
	c.Uses = append([]Operand(nil), i.Uses...)
	c.Mem = append([]MemDesc(nil), i.Mem...)
	return c
}

// Info returns the operand layout of the instruction's opcode
func (i *Instr) Info() *Info {
	return InfoOf(i.Op)
}

// Function is a list of instructions with the types of its registers
type Function struct {
	Name     string
	Params   []Reg
	Body     []*Instr
	regTypes map[Reg]llt.Type
	nextReg  Reg
}

// NewFunction creates an empty function
func NewFunction(name string) *Function {
	return &Function{
		Name:     name,
		regTypes: make(map[Reg]llt.Type),
	}
}

// NewReg allocates a fresh register of type t
func (f *Function) NewReg(t llt.Type) Reg {
	f.nextReg++
	for {
		if _, taken := f.regTypes[f.nextReg]; !taken {
			break
		}
		f.nextReg++
	}
	f.regTypes[f.nextReg] = t
	return f.nextReg
}

// SetType records the type of r, reserving the register number
func (f *Function) SetType(r Reg, t llt.Type) {
	f.regTypes[r] = t
}

// TypeOf returns the type of r, or the invalid type if r is unknown
func (f *Function) TypeOf(r Reg) llt.Type {
	return f.regTypes[r]
}

// Clone returns a deep copy of the function
func (f *Function) Clone() *Function {
	c := &Function{
		Name:     f.Name,
		Params:   append([]Reg(nil), f.Params...),
		Body:     make([]*Instr, len(f.Body)),
		regTypes: make(map[Reg]llt.Type, len(f.regTypes)),
		nextReg:  f.nextReg,
	}
	for i, instr := range f.Body {
		c.Body[i] = instr.Clone()
	}
	for r, t := range f.regTypes {
		c.regTypes[r] = t
	}
	return c
}

// AddParam declares a parameter register
func (f *Function) AddParam(r Reg, t llt.Type) {
	f.SetType(r, t)
	f.Params = append(f.Params, r)
}

// Append adds instructions at the end of the body
func (f *Function) Append(instrs ...*Instr) {
	f.Body = append(f.Body, instrs...)
}

// IndexOf returns the position of at in the body, or -1
func (f *Function) IndexOf(at *Instr) int {
	for i, instr := range f.Body {
		if instr == at {
			return i
		}
	}
	return -1
}

// InsertBefore inserts instrs immediately before at
func (f *Function) InsertBefore(at *Instr, instrs ...*Instr) {
	f.insertAt(f.mustIndex(at), instrs)
}

// InsertAfter inserts instrs immediately after at
func (f *Function) InsertAfter(at *Instr, instrs ...*Instr) {
	f.insertAt(f.mustIndex(at)+1, instrs)
}

// Remove deletes at from the body
func (f *Function) Remove(at *Instr) {
	idx := f.mustIndex(at)
	f.Body = append(f.Body[:idx], f.Body[idx+1:]...)
}

// DefOf returns the instruction defining r, or nil for parameters and
// unknown registers
func (f *Function) DefOf(r Reg) *Instr {
	for _, instr := range f.Body {
		for _, d := range instr.Defs {
			if d == r {
				return instr
			}
		}
	}
	return nil
}

// HasUses reports whether any instruction reads r
func (f *Function) HasUses(r Reg) bool {
	for _, instr := range f.Body {
		for _, u := range instr.Uses {
			if u.Kind == OperandReg && u.Reg == r {
				return true
			}
		}
	}
	return false
}

// ReplaceUses rewrites every read of from into a read of to and returns
// the instructions it changed
func (f *Function) ReplaceUses(from, to Reg) []*Instr {
	var changed []*Instr
	for _, instr := range f.Body {
		hit := false
		for i, u := range instr.Uses {
			if u.Kind == OperandReg && u.Reg == from {
				instr.Uses[i].Reg = to
				hit = true
			}
		}
		if hit {
			changed = append(changed, instr)
		}
	}
	return changed
}

func (f *Function) mustIndex(at *Instr) int {
	idx := f.IndexOf(at)
	if idx < 0 {
		panic(fmt.Sprintf("gmir: instruction %s not in function %s", at.Op, f.Name))
	}
	return idx
}

func (f *Function) insertAt(idx int, instrs []*Instr) {
	body := make([]*Instr, 0, len(f.Body)+len(instrs))
	body = append(body, f.Body[:idx]...)
	body = append(body, instrs...)
	body = append(body, f.Body[idx:]...)
	f.Body = body
}

// Program is a collection of functions
type Program struct {
	Functions []*Function
}
