package gmir

// Opcode identifies a generic machine operation
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// Integer arithmetic
	GAdd
	GSub
	GMul
	GUMulH
	GSMulH
	GAnd
	GOr
	GXor
	GShl
	GLShr
	GAShr

	// Overflow arithmetic: dst, carry-out, lhs, rhs [, carry-in]
	GUAddO
	GSAddO
	GUSubO
	GSSubO
	GUAddE
	GSAddE
	GUSubE
	GSSubE

	// Constants and definitions
	GConstant
	GFConstant
	GImplicitDef
	GFrameIndex
	GBlockAddr

	// Floating point
	GFAdd
	GFSub
	GFMul
	GFNeg
	GFAbs
	GFMA
	GFPow
	GFExp
	GFExp2
	GFLog
	GFLog2
	GFLog10
	GIntrinsicTrunc
	GIntrinsicRound

	// Conversions
	GTrunc
	GAnyExt
	GSExt
	GZExt
	GFPTrunc
	GFPExt
	GSIToFP
	GUIToFP
	GFPToSI
	GFPToUI
	GBitcast
	GIntToPtr
	GPtrToInt

	// Bit counting
	GCtlz
	GCtlzZeroUndef
	GCttz
	GCttzZeroUndef
	GCtpop
	GBSwap

	// Comparison and selection
	GICmp
	GFCmp
	GSelect

	// Memory
	GLoad
	GSExtLoad
	GZExtLoad
	GStore
	GAtomicRMWXchg
	GAtomicRMWAdd
	GAtomicRMWSub
	GAtomicRMWAnd
	GAtomicRMWOr
	GAtomicRMWXor
	GAtomicRMWMax
	GAtomicRMWMin
	GAtomicRMWUMax
	GAtomicRMWUMin
	GAtomicCmpXchg
	GGEP

	// Aggregates
	GMergeValues
	GUnmergeValues
	GBuildVector
	GConcatVectors
	GExtract
	GInsert
	GExtractVectorElt
	GInsertVectorElt

	// Control
	GBrCond

	numOpcodes
)

// ExtKind says how a value in a type slot is widened when its slot grows.
// For definitions it selects the conversion back to the original width.
type ExtKind uint8

const (
	ExtNone ExtKind = iota // the slot cannot be widened by extension
	ExtAny
	ExtSign
	ExtZero
	ExtFP   // floating point: G_FPEXT on uses, G_FPTRUNC on defs
	ExtPred // sign or zero extension chosen by the comparison predicate
)

// OperandKind classifies instruction operands
type OperandKind uint8

const (
	OperandReg OperandKind = iota
	OperandImm
	OperandFImm
	OperandPred
)

func (k OperandKind) String() string {
	switch k {
	case OperandReg:
		return "a register"
	case OperandImm:
		return "an immediate"
	case OperandFImm:
		return "a float immediate"
	case OperandPred:
		return "a predicate"
	}
	return "?"
}

// OperandSpec describes one def or use position of an opcode
type OperandSpec struct {
	Kind    OperandKind
	TypeIdx int // -1 for operands without a type slot
	Ext     ExtKind
}

// Info describes the operand layout of an opcode. Variadic opcodes repeat
// their last def or use spec.
type Info struct {
	Name         string
	Defs         []OperandSpec
	Uses         []OperandSpec
	VariadicDefs bool
	VariadicUses bool
	NumTypeIdx   int

	MayLoad  bool
	MayStore bool

	// Elementwise opcodes can be split lane by lane
	Elementwise bool
	// Artifact opcodes are the conversions inserted by legalization itself
	Artifact bool
}

func reg(idx int, ext ExtKind) OperandSpec {
	return OperandSpec{Kind: OperandReg, TypeIdx: idx, Ext: ext}
}

var (
	immSpec  = OperandSpec{Kind: OperandImm, TypeIdx: -1}
	fimmSpec = OperandSpec{Kind: OperandFImm, TypeIdx: -1}
	predSpec = OperandSpec{Kind: OperandPred, TypeIdx: -1}
)

func defs(specs ...OperandSpec) []OperandSpec { return specs }
func uses(specs ...OperandSpec) []OperandSpec { return specs }

func binary(name string, ext ExtKind) Info {
	return Info{
		Name:        name,
		Defs:        defs(reg(0, ext)),
		Uses:        uses(reg(0, ext), reg(0, ext)),
		NumTypeIdx:  1,
		Elementwise: true,
	}
}

func unary(name string, ext ExtKind) Info {
	return Info{
		Name:        name,
		Defs:        defs(reg(0, ext)),
		Uses:        uses(reg(0, ext)),
		NumTypeIdx:  1,
		Elementwise: true,
	}
}

func cast(name string, dstExt, srcExt ExtKind) Info {
	return Info{
		Name:        name,
		Defs:        defs(reg(0, dstExt)),
		Uses:        uses(reg(1, srcExt)),
		NumTypeIdx:  2,
		Elementwise: true,
	}
}

func shift(name string, srcExt ExtKind) Info {
	return Info{
		Name:        name,
		Defs:        defs(reg(0, ExtAny)),
		Uses:        uses(reg(0, srcExt), reg(1, ExtZero)),
		NumTypeIdx:  2,
		Elementwise: true,
	}
}

func overflow(name string, ext ExtKind, carryIn bool) Info {
	info := Info{
		Name:        name,
		Defs:        defs(reg(0, ext), reg(1, ExtZero)),
		Uses:        uses(reg(0, ext), reg(0, ext)),
		NumTypeIdx:  2,
		Elementwise: true,
	}
	if carryIn {
		info.Uses = append(info.Uses, reg(1, ExtZero))
	}
	return info
}

func constant(name string, spec OperandSpec) Info {
	return Info{
		Name:       name,
		Defs:       defs(reg(0, ExtAny)),
		Uses:       uses(spec),
		NumTypeIdx: 1,
	}
}

func atomic(name string, ext ExtKind) Info {
	return Info{
		Name:       name,
		Defs:       defs(reg(0, ext)),
		Uses:       uses(reg(1, ExtNone), reg(0, ext)),
		NumTypeIdx: 2,
		MayLoad:    true,
		MayStore:   true,
	}
}

func load(name string, ext ExtKind) Info {
	return Info{
		Name:       name,
		Defs:       defs(reg(0, ext)),
		Uses:       uses(reg(1, ExtNone)),
		NumTypeIdx: 2,
		MayLoad:    true,
	}
}

var infos = [numOpcodes]Info{
	OpInvalid: {Name: "INVALID"},

	GAdd:   binary("G_ADD", ExtAny),
	GSub:   binary("G_SUB", ExtAny),
	GMul:   binary("G_MUL", ExtAny),
	GUMulH: binary("G_UMULH", ExtZero),
	GSMulH: binary("G_SMULH", ExtSign),
	GAnd:   binary("G_AND", ExtAny),
	GOr:    binary("G_OR", ExtAny),
	GXor:   binary("G_XOR", ExtAny),
	GShl:   shift("G_SHL", ExtAny),
	GLShr:  shift("G_LSHR", ExtZero),
	GAShr:  shift("G_ASHR", ExtSign),

	GUAddO: overflow("G_UADDO", ExtZero, false),
	GSAddO: overflow("G_SADDO", ExtSign, false),
	GUSubO: overflow("G_USUBO", ExtZero, false),
	GSSubO: overflow("G_SSUBO", ExtSign, false),
	GUAddE: overflow("G_UADDE", ExtZero, true),
	GSAddE: overflow("G_SADDE", ExtSign, true),
	GUSubE: overflow("G_USUBE", ExtZero, true),
	GSSubE: overflow("G_SSUBE", ExtSign, true),

	GConstant:    constant("G_CONSTANT", immSpec),
	GFConstant:   {Name: "G_FCONSTANT", Defs: defs(reg(0, ExtFP)), Uses: uses(fimmSpec), NumTypeIdx: 1},
	GImplicitDef: {Name: "G_IMPLICIT_DEF", Defs: defs(reg(0, ExtAny)), NumTypeIdx: 1},
	GFrameIndex:  constant("G_FRAME_INDEX", immSpec),
	GBlockAddr:   constant("G_BLOCK_ADDR", immSpec),

	GFAdd:           binary("G_FADD", ExtFP),
	GFSub:           binary("G_FSUB", ExtFP),
	GFMul:           binary("G_FMUL", ExtFP),
	GFNeg:           unary("G_FNEG", ExtFP),
	GFAbs:           unary("G_FABS", ExtFP),
	GFMA:            {Name: "G_FMA", Defs: defs(reg(0, ExtFP)), Uses: uses(reg(0, ExtFP), reg(0, ExtFP), reg(0, ExtFP)), NumTypeIdx: 1, Elementwise: true},
	GFPow:           binary("G_FPOW", ExtFP),
	GFExp:           unary("G_FEXP", ExtFP),
	GFExp2:          unary("G_FEXP2", ExtFP),
	GFLog:           unary("G_FLOG", ExtFP),
	GFLog2:          unary("G_FLOG2", ExtFP),
	GFLog10:         unary("G_FLOG10", ExtFP),
	GIntrinsicTrunc: unary("G_INTRINSIC_TRUNC", ExtFP),
	GIntrinsicRound: unary("G_INTRINSIC_ROUND", ExtFP),

	GTrunc:    artifact(cast("G_TRUNC", ExtAny, ExtAny)),
	GAnyExt:   artifact(cast("G_ANYEXT", ExtAny, ExtAny)),
	GSExt:     artifact(cast("G_SEXT", ExtAny, ExtSign)),
	GZExt:     artifact(cast("G_ZEXT", ExtAny, ExtZero)),
	GFPTrunc:  cast("G_FPTRUNC", ExtFP, ExtFP),
	GFPExt:    cast("G_FPEXT", ExtFP, ExtFP),
	GSIToFP:   cast("G_SITOFP", ExtFP, ExtSign),
	GUIToFP:   cast("G_UITOFP", ExtFP, ExtZero),
	GFPToSI:   cast("G_FPTOSI", ExtAny, ExtFP),
	GFPToUI:   cast("G_FPTOUI", ExtAny, ExtFP),
	GBitcast:  {Name: "G_BITCAST", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone)), NumTypeIdx: 2},
	GIntToPtr: cast("G_INTTOPTR", ExtNone, ExtZero),
	GPtrToInt: cast("G_PTRTOINT", ExtAny, ExtNone),

	GCtlz:          cast("G_CTLZ", ExtAny, ExtNone),
	GCtlzZeroUndef: cast("G_CTLZ_ZERO_UNDEF", ExtAny, ExtNone),
	GCttz:          cast("G_CTTZ", ExtAny, ExtNone),
	GCttzZeroUndef: cast("G_CTTZ_ZERO_UNDEF", ExtAny, ExtNone),
	GCtpop:         cast("G_CTPOP", ExtAny, ExtZero),
	GBSwap:         unary("G_BSWAP", ExtNone),

	GICmp:   {Name: "G_ICMP", Defs: defs(reg(0, ExtAny)), Uses: uses(predSpec, reg(1, ExtPred), reg(1, ExtPred)), NumTypeIdx: 2, Elementwise: true},
	GFCmp:   {Name: "G_FCMP", Defs: defs(reg(0, ExtAny)), Uses: uses(predSpec, reg(1, ExtFP), reg(1, ExtFP)), NumTypeIdx: 2, Elementwise: true},
	GSelect: {Name: "G_SELECT", Defs: defs(reg(0, ExtAny)), Uses: uses(reg(1, ExtZero), reg(0, ExtAny), reg(0, ExtAny)), NumTypeIdx: 2, Elementwise: true},

	GLoad:          load("G_LOAD", ExtAny),
	GSExtLoad:      load("G_SEXTLOAD", ExtAny),
	GZExtLoad:      load("G_ZEXTLOAD", ExtAny),
	GStore:         {Name: "G_STORE", Uses: uses(reg(0, ExtAny), reg(1, ExtNone)), NumTypeIdx: 2, MayStore: true},
	GAtomicRMWXchg: atomic("G_ATOMICRMW_XCHG", ExtAny),
	GAtomicRMWAdd:  atomic("G_ATOMICRMW_ADD", ExtAny),
	GAtomicRMWSub:  atomic("G_ATOMICRMW_SUB", ExtAny),
	GAtomicRMWAnd:  atomic("G_ATOMICRMW_AND", ExtAny),
	GAtomicRMWOr:   atomic("G_ATOMICRMW_OR", ExtAny),
	GAtomicRMWXor:  atomic("G_ATOMICRMW_XOR", ExtAny),
	GAtomicRMWMax:  atomic("G_ATOMICRMW_MAX", ExtNone),
	GAtomicRMWMin:  atomic("G_ATOMICRMW_MIN", ExtNone),
	GAtomicRMWUMax: atomic("G_ATOMICRMW_UMAX", ExtNone),
	GAtomicRMWUMin: atomic("G_ATOMICRMW_UMIN", ExtNone),
	GAtomicCmpXchg: {Name: "G_ATOMIC_CMPXCHG", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone), reg(0, ExtNone), reg(0, ExtNone)), NumTypeIdx: 2, MayLoad: true, MayStore: true},
	GGEP:           {Name: "G_GEP", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(0, ExtNone), reg(1, ExtSign)), NumTypeIdx: 2},

	GMergeValues:      artifact(Info{Name: "G_MERGE_VALUES", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone)), VariadicUses: true, NumTypeIdx: 2}),
	GUnmergeValues:    artifact(Info{Name: "G_UNMERGE_VALUES", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone)), VariadicDefs: true, NumTypeIdx: 2}),
	GBuildVector:      artifact(Info{Name: "G_BUILD_VECTOR", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone)), VariadicUses: true, NumTypeIdx: 2}),
	GConcatVectors:    artifact(Info{Name: "G_CONCAT_VECTORS", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone)), VariadicUses: true, NumTypeIdx: 2}),
	GExtract:          {Name: "G_EXTRACT", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone), immSpec), NumTypeIdx: 2},
	GInsert:           {Name: "G_INSERT", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(0, ExtNone), reg(1, ExtNone), immSpec), NumTypeIdx: 2},
	GExtractVectorElt: {Name: "G_EXTRACT_VECTOR_ELT", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(1, ExtNone), reg(2, ExtZero)), NumTypeIdx: 3},
	GInsertVectorElt:  {Name: "G_INSERT_VECTOR_ELT", Defs: defs(reg(0, ExtNone)), Uses: uses(reg(0, ExtNone), reg(1, ExtNone), reg(2, ExtZero)), NumTypeIdx: 3},

	GBrCond: {Name: "G_BRCOND", Uses: uses(reg(0, ExtZero), immSpec), NumTypeIdx: 1},
}

func artifact(info Info) Info {
	info.Artifact = true
	return info
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := OpInvalid + 1; op < numOpcodes; op++ {
		m[infos[op].Name] = op
	}
	return m
}()

// InfoOf returns the operand layout of op
func InfoOf(op Opcode) *Info {
	if op >= numOpcodes {
		return &infos[OpInvalid]
	}
	return &infos[op]
}

func (op Opcode) String() string {
	return InfoOf(op).Name
}

// IsValid reports whether op names a known opcode
func (op Opcode) IsValid() bool {
	return op > OpInvalid && op < numOpcodes
}

// LookupOpcode finds an opcode by its G_* name
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// AllOpcodes lists every valid opcode in declaration order
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, numOpcodes-1)
	for op := OpInvalid + 1; op < numOpcodes; op++ {
		ops = append(ops, op)
	}
	return ops
}

// DefSpec returns the OperandSpec of def position i
func (info *Info) DefSpec(i int) OperandSpec {
	if i < len(info.Defs) {
		return info.Defs[i]
	}
	if info.VariadicDefs && len(info.Defs) > 0 {
		return info.Defs[len(info.Defs)-1]
	}
	return OperandSpec{Kind: OperandReg, TypeIdx: -1}
}

// UseSpec returns the OperandSpec of use position i
func (info *Info) UseSpec(i int) OperandSpec {
	if i < len(info.Uses) {
		return info.Uses[i]
	}
	if info.VariadicUses && len(info.Uses) > 0 {
		return info.Uses[len(info.Uses)-1]
	}
	return OperandSpec{Kind: OperandReg, TypeIdx: -1}
}
