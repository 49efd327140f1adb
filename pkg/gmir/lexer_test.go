package gmir

import "testing"

func TestNextToken(t *testing.T) {
	input := `func @f(%0:s32, %1:p1.64) {
  %2:<2 x s16> = G_ICMP intpred(eq), %0, -7 ; comment
  G_STORE %2, %1 :: (store 16, align 8)
}`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenIdent, "func"},
		{TokenGlobal, "f"},
		{TokenLParen, "("},
		{TokenReg, "0"},
		{TokenColon, ":"},
		{TokenLLT, "s32"},
		{TokenComma, ","},
		{TokenReg, "1"},
		{TokenColon, ":"},
		{TokenLLT, "p1.64"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenNewline, "\n"},
		{TokenReg, "2"},
		{TokenColon, ":"},
		{TokenLLT, "<2 x s16>"},
		{TokenAssign, "="},
		{TokenIdent, "G_ICMP"},
		{TokenPred, "intpred(eq)"},
		{TokenComma, ","},
		{TokenReg, "0"},
		{TokenComma, ","},
		{TokenInt, "-7"},
		{TokenNewline, "\n"},
		{TokenIdent, "G_STORE"},
		{TokenReg, "2"},
		{TokenComma, ","},
		{TokenReg, "1"},
		{TokenColonColon, "::"},
		{TokenLParen, "("},
		{TokenIdent, "store"},
		{TokenInt, "16"},
		{TokenComma, ","},
		{TokenIdent, "align"},
		{TokenInt, "8"},
		{TokenRParen, ")"},
		{TokenNewline, "\n"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"42", TokenInt},
		{"-1", TokenInt},
		{"1.5", TokenFloat},
		{"-0.25", TokenFloat},
		{"1e-5", TokenFloat},
	}
	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != tt.typ || tok.Literal != tt.input {
			t.Errorf("NextToken(%q) = %s %q, want %s", tt.input, tok.Type, tok.Literal, tt.typ)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	l := NewLexer("G_ADD\n  %3")
	l.NextToken()
	l.NextToken()
	tok := l.NextToken()
	if tok.Line != 2 || tok.Column != 3 {
		t.Errorf("position = %d:%d, want 2:3", tok.Line, tok.Column)
	}
}
