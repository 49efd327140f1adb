package gmir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs gmir in the textual form read by Parser
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new gmir printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every function, separated by blank lines
func (p *Printer) PrintProgram(prog *Program) {
	for i, fn := range prog.Functions {
		p.PrintFunction(fn)
		if i < len(prog.Functions)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintFunction prints a function header and its body
func (p *Printer) PrintFunction(fn *Function) {
	fmt.Fprintf(p.w, "func @%s(", fn.Name)
	for i, r := range fn.Params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprintf(p.w, "%%%d:%s", r, fn.TypeOf(r))
	}
	fmt.Fprintln(p.w, ") {")
	for _, instr := range fn.Body {
		fmt.Fprintf(p.w, "  %s\n", FormatInstr(fn, instr))
	}
	fmt.Fprintln(p.w, "}")
}

// FormatInstr renders one instruction on a single line
func FormatInstr(fn *Function, instr *Instr) string {
	var sb strings.Builder
	for i, d := range instr.Defs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%%d:%s", d, fn.TypeOf(d))
	}
	if len(instr.Defs) > 0 {
		sb.WriteString(" = ")
	}
	sb.WriteString(instr.Op.String())
	for i, u := range instr.Uses {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(formatOperand(u))
	}
	if len(instr.Mem) > 0 {
		sb.WriteString(" :: ")
		kind := memKind(instr.Info())
		for i, m := range instr.Mem {
			if i > 0 {
				sb.WriteString(", ")
			}
			if m.AlignInBits > 0 {
				fmt.Fprintf(&sb, "(%s %d, align %d)", kind, m.SizeInBits, m.AlignInBits)
			} else {
				fmt.Fprintf(&sb, "(%s %d)", kind, m.SizeInBits)
			}
		}
	}
	return sb.String()
}

func formatOperand(op Operand) string {
	switch op.Kind {
	case OperandReg:
		return fmt.Sprintf("%%%d", op.Reg)
	case OperandImm:
		return strconv.FormatInt(op.Imm, 10)
	case OperandFImm:
		s := strconv.FormatFloat(op.FImm, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case OperandPred:
		return op.Pred.String()
	}
	return "?"
}

func memKind(info *Info) string {
	switch {
	case info.MayLoad && info.MayStore:
		return "atomic"
	case info.MayStore:
		return "store"
	}
	return "load"
}
