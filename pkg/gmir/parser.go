package gmir

import (
	"fmt"
	"strconv"

	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Parser reads the textual form produced by Printer
type Parser struct {
	l      *Lexer
	errors []string

	curToken  Token
	peekToken Token

	fn *Function
}

// NewParser creates a new parser reading from l
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse is a convenience wrapper returning the first error as an error value
func Parse(input string) (*Program, error) {
	p := NewParser(NewLexer(input))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("gmir: %s (%d errors)", errs[0], len(errs))
	}
	return prog, nil
}

// Errors returns parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.curToken, format, args...)
}

func (p *Parser) errorAt(tok Token, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("line %d:%d: %s", tok.Line, tok.Column, msg))
}

func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal)
	return false
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// skipLine recovers from an error by discarding the rest of the line
func (p *Parser) skipLine() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBrace) {
		p.nextToken()
	}
}

// ParseProgram parses a sequence of functions
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	p.skipNewlines()
	for !p.curTokenIs(TokenEOF) {
		fn := p.parseFunction()
		if fn == nil {
			break
		}
		prog.Functions = append(prog.Functions, fn)
		p.skipNewlines()
	}
	return prog
}

func (p *Parser) parseFunction() *Function {
	if !p.curTokenIs(TokenIdent) || p.curToken.Literal != "func" {
		p.errorf("expected 'func', got %q", p.curToken.Literal)
		return nil
	}
	p.nextToken()
	if !p.curTokenIs(TokenGlobal) {
		p.errorf("expected function name, got %q", p.curToken.Literal)
		return nil
	}
	p.fn = NewFunction(p.curToken.Literal)
	p.nextToken()

	if !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) {
		r, t, ok := p.parseTypedReg()
		if !ok {
			return nil
		}
		if p.declare(r, t) {
			p.fn.Params = append(p.fn.Params, r)
		}
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	p.nextToken()
	if !p.expect(TokenLBrace) {
		return nil
	}

	for {
		p.skipNewlines()
		if p.curTokenIs(TokenRBrace) {
			p.nextToken()
			break
		}
		if p.curTokenIs(TokenEOF) {
			p.errorf("unterminated function @%s", p.fn.Name)
			return p.fn
		}
		if instr := p.parseInstr(); instr != nil {
			p.fn.Body = append(p.fn.Body, instr)
		} else {
			p.skipLine()
		}
	}
	return p.fn
}

func (p *Parser) declare(r Reg, t llt.Type) bool {
	if prev := p.fn.TypeOf(r); prev.IsValid() && prev != t {
		p.errorf("register %%%d redeclared as %s (was %s)", r, t, prev)
		return false
	}
	p.fn.SetType(r, t)
	return true
}

func (p *Parser) parseReg() (Reg, bool) {
	if !p.curTokenIs(TokenReg) {
		p.errorf("expected register, got %q", p.curToken.Literal)
		return 0, false
	}
	n, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.errorf("bad register %q", p.curToken.Literal)
		return 0, false
	}
	p.nextToken()
	return Reg(n), true
}

func (p *Parser) parseTypedReg() (Reg, llt.Type, bool) {
	r, ok := p.parseReg()
	if !ok {
		return 0, llt.Type{}, false
	}
	if !p.expect(TokenColon) {
		return 0, llt.Type{}, false
	}
	if !p.curTokenIs(TokenLLT) {
		p.errorf("expected type, got %q", p.curToken.Literal)
		return 0, llt.Type{}, false
	}
	t, err := llt.Parse(p.curToken.Literal)
	if err != nil {
		p.errorf("%v", err)
		return 0, llt.Type{}, false
	}
	p.nextToken()
	return r, t, true
}

func (p *Parser) parseInstr() *Instr {
	instr := &Instr{}

	if p.curTokenIs(TokenReg) {
		for {
			r, t, ok := p.parseTypedReg()
			if !ok {
				return nil
			}
			if !p.declare(r, t) {
				return nil
			}
			instr.Defs = append(instr.Defs, r)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		if !p.expect(TokenAssign) {
			return nil
		}
	}

	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected opcode, got %q", p.curToken.Literal)
		return nil
	}
	op, ok := LookupOpcode(p.curToken.Literal)
	if !ok {
		p.errorf("unknown opcode %s", p.curToken.Literal)
		return nil
	}
	instr.Op = op
	opTok := p.curToken
	p.nextToken()

	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenColonColon) && !p.curTokenIs(TokenRBrace) {
		operand, ok := p.parseOperand()
		if !ok {
			return nil
		}
		instr.Uses = append(instr.Uses, operand)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}

	if p.curTokenIs(TokenColonColon) {
		p.nextToken()
		for p.curTokenIs(TokenLParen) {
			mem, ok := p.parseMem()
			if !ok {
				return nil
			}
			instr.Mem = append(instr.Mem, mem)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
	}
	if !p.checkOperands(opTok, instr) {
		return nil
	}
	return instr
}

// checkOperands holds instr to the operand layout of its opcode so later
// passes can index Defs and Uses without bounds checks
func (p *Parser) checkOperands(opTok Token, instr *Instr) bool {
	info := InfoOf(instr.Op)
	if !arityOK(len(instr.Defs), len(info.Defs), info.VariadicDefs) {
		p.errorAt(opTok, "%s defines %d values, want %s", info.Name, len(instr.Defs), arity(len(info.Defs), info.VariadicDefs))
		return false
	}
	if !arityOK(len(instr.Uses), len(info.Uses), info.VariadicUses) {
		p.errorAt(opTok, "%s takes %d operands, want %s", info.Name, len(instr.Uses), arity(len(info.Uses), info.VariadicUses))
		return false
	}
	for i, u := range instr.Uses {
		if want := info.UseSpec(i).Kind; u.Kind != want {
			p.errorAt(opTok, "%s operand %d is %s, want %s", info.Name, i, u.Kind, want)
			return false
		}
	}
	return true
}

func arityOK(got, want int, variadic bool) bool {
	if variadic {
		return got >= want
	}
	return got == want
}

func arity(n int, variadic bool) string {
	if variadic {
		return fmt.Sprintf("at least %d", n)
	}
	return strconv.Itoa(n)
}

func (p *Parser) parseOperand() (Operand, bool) {
	tok := p.curToken
	switch tok.Type {
	case TokenReg:
		r, ok := p.parseReg()
		if !ok {
			return Operand{}, false
		}
		if !p.fn.TypeOf(r).IsValid() {
			p.errorf("use of undefined register %%%d", r)
			return Operand{}, false
		}
		return R(r), true
	case TokenInt:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf("bad integer %q", tok.Literal)
			return Operand{}, false
		}
		p.nextToken()
		return Imm(v), true
	case TokenFloat:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("bad float %q", tok.Literal)
			return Operand{}, false
		}
		p.nextToken()
		return FImm(v), true
	case TokenPred:
		pred, ok := LookupPred(tok.Literal)
		if !ok {
			p.errorf("unknown predicate %s", tok.Literal)
			return Operand{}, false
		}
		p.nextToken()
		return P(pred), true
	}
	p.errorf("unexpected operand %q", tok.Literal)
	return Operand{}, false
}

// parseMem reads (load 32) or (store 16, align 8)
func (p *Parser) parseMem() (MemDesc, bool) {
	p.nextToken()
	if !p.curTokenIs(TokenIdent) {
		p.errorf("expected access kind, got %q", p.curToken.Literal)
		return MemDesc{}, false
	}
	p.nextToken()
	size, ok := p.parseInt()
	if !ok {
		return MemDesc{}, false
	}
	mem := MemDesc{SizeInBits: size}
	if p.curTokenIs(TokenComma) && p.peekTokenIs(TokenIdent) && p.peekToken.Literal == "align" {
		p.nextToken()
		p.nextToken()
		if mem.AlignInBits, ok = p.parseInt(); !ok {
			return MemDesc{}, false
		}
	}
	return mem, p.expect(TokenRParen)
}

func (p *Parser) parseInt() (int, bool) {
	if !p.curTokenIs(TokenInt) {
		p.errorf("expected integer, got %q", p.curToken.Literal)
		return 0, false
	}
	v, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.errorf("bad integer %q", p.curToken.Literal)
		return 0, false
	}
	p.nextToken()
	return v, true
}
