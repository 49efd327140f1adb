package gmir

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNewline

	TokenIdent  // G_ADD, func, load, align
	TokenGlobal // @name
	TokenReg    // %3
	TokenInt    // 42, -1
	TokenFloat  // 1.5
	TokenLLT    // s32, p1.64, <2 x s16>
	TokenPred   // intpred(eq)

	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenColon
	TokenColonColon
	TokenAssign
)

func (t TokenType) String() string {
	names := []string{
		"EOF", "ILLEGAL", "newline", "identifier", "global", "register",
		"integer", "float", "type", "predicate",
		"(", ")", "{", "}", ",", ":", "::", "=",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// Token is a lexical token with its position
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// Lexer tokenizes gmir text
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// NewLexer creates a new Lexer for the given input
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipBlanks()

	tok := Token{Line: l.line, Column: l.column}

	switch {
	case l.ch == 0:
		tok.Type = TokenEOF
	case l.ch == '\n':
		tok.Type = TokenNewline
		tok.Literal = "\n"
		l.line++
		l.column = 0
		l.readChar()
	case l.ch == '(':
		tok = l.single(tok, TokenLParen)
	case l.ch == ')':
		tok = l.single(tok, TokenRParen)
	case l.ch == '{':
		tok = l.single(tok, TokenLBrace)
	case l.ch == '}':
		tok = l.single(tok, TokenRBrace)
	case l.ch == ',':
		tok = l.single(tok, TokenComma)
	case l.ch == '=':
		tok = l.single(tok, TokenAssign)
	case l.ch == ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = l.single(tok, TokenColonColon)
			tok.Literal = "::"
		} else {
			tok = l.single(tok, TokenColon)
		}
	case l.ch == '<':
		tok.Type = TokenLLT
		tok.Literal = l.readUntil('>')
	case l.ch == '%':
		l.readChar()
		tok.Type = TokenReg
		tok.Literal = l.readWhile(isDigit)
		if tok.Literal == "" {
			tok.Type = TokenIllegal
			tok.Literal = "%"
		}
	case l.ch == '@':
		l.readChar()
		tok.Type = TokenGlobal
		tok.Literal = l.readWhile(isIdentChar)
	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())):
		tok = l.readNumber(tok)
	case isLetter(l.ch):
		tok = l.readWord(tok)
	default:
		tok = l.single(tok, TokenIllegal)
	}
	return tok
}

func (l *Lexer) single(tok Token, typ TokenType) Token {
	tok.Type = typ
	tok.Literal = string(l.ch)
	l.readChar()
	return tok
}

// skipBlanks skips spaces, tabs and ';' comments but not newlines
func (l *Lexer) skipBlanks() {
	for {
		switch l.ch {
		case ' ', '\t', '\r':
			l.readChar()
		case ';':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for l.ch != 0 && pred(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readUntil(end byte) string {
	start := l.pos
	for l.ch != 0 && l.ch != end && l.ch != '\n' {
		l.readChar()
	}
	if l.ch == end {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber(tok Token) Token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	tok.Type = TokenInt
	for isDigit(l.ch) || l.ch == '.' || l.ch == 'e' || (l.ch == '-' && l.input[l.pos-1] == 'e') {
		if l.ch == '.' || l.ch == 'e' {
			tok.Type = TokenFloat
		}
		l.readChar()
	}
	tok.Literal = l.input[start:l.pos]
	return tok
}

func (l *Lexer) readWord(tok Token) Token {
	word := l.readWhile(isIdentChar)
	tok.Literal = word
	tok.Type = TokenIdent
	switch {
	case (word == "intpred" || word == "floatpred") && l.ch == '(':
		tok.Type = TokenPred
		tok.Literal = word + l.readUntil(')')
	case isTypeWord(word):
		tok.Type = TokenLLT
	}
	return tok
}

// isTypeWord recognizes s32 and p1.64
func isTypeWord(w string) bool {
	if len(w) < 2 || (w[0] != 's' && w[0] != 'p') || !isDigit(w[1]) {
		return false
	}
	for i := 1; i < len(w); i++ {
		if !isDigit(w[i]) && w[i] != '.' {
			return false
		}
	}
	return true
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '.'
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Type, t.Literal, t.Line, t.Column)
}
