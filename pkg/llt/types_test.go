package llt

import (
	"strings"
	"testing"
)

func TestTypeConstructors(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		wantStr  string
		wantSize int
		wantElts int
	}{
		{"s1", Scalar(1), "s1", 1, 1},
		{"s32", Scalar(32), "s32", 32, 1},
		{"s24", Scalar(24), "s24", 24, 1},
		{"global pointer", Pointer(1, 64), "p1.64", 64, 1},
		{"local pointer", Pointer(3, 32), "p3.32", 32, 1},
		{"v2s16", Vector(2, 16), "<2 x s16>", 32, 2},
		{"v3s32", Vector(3, 32), "<3 x s32>", 96, 3},
		{"v16s32", Vector(16, 32), "<16 x s32>", 512, 16},
		{"pointer vector", VectorOf(2, Pointer(1, 64)), "<2 x p1.64>", 128, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
			if got := tt.typ.SizeInBits(); got != tt.wantSize {
				t.Errorf("SizeInBits() = %d, want %d", got, tt.wantSize)
			}
			if got := tt.typ.NumElements(); got != tt.wantElts {
				t.Errorf("NumElements() = %d, want %d", got, tt.wantElts)
			}
		})
	}
}

func TestSingleLaneVectorCollapses(t *testing.T) {
	if got := Vector(1, 32); got != Scalar(32) {
		t.Errorf("Vector(1, 32) = %v, want s32", got)
	}
	if got := Vector(4, 16).ChangeElementCount(1); got != Scalar(16) {
		t.Errorf("ChangeElementCount(1) = %v, want s16", got)
	}
}

func TestTypeEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Type
		equal bool
	}{
		{"s32 == s32", Scalar(32), Scalar(32), true},
		{"s32 != s64", Scalar(32), Scalar(64), false},
		{"s64 != p1.64", Scalar(64), Pointer(1, 64), false},
		{"p1.64 != p4.64", Pointer(1, 64), Pointer(4, 64), false},
		{"v2s32 == v2s32", Vector(2, 32), Vector(2, 32), true},
		{"v2s32 != s64", Vector(2, 32), Scalar(64), false},
		{"v2s32 != v4s16", Vector(2, 32), Vector(4, 16), false},
		{"invalid == invalid", Type{}, Type{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a == tt.b; got != tt.equal {
				t.Errorf("%v == %v: got %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestElementType(t *testing.T) {
	tests := []struct {
		typ  Type
		want Type
	}{
		{Scalar(16), Scalar(16)},
		{Pointer(3, 32), Pointer(3, 32)},
		{Vector(4, 16), Scalar(16)},
		{VectorOf(2, Pointer(1, 64)), Pointer(1, 64)},
	}

	for _, tt := range tests {
		if got := tt.typ.ElementType(); got != tt.want {
			t.Errorf("ElementType(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestIsPow2Size(t *testing.T) {
	tests := []struct {
		typ  Type
		want bool
	}{
		{Scalar(1), true},
		{Scalar(24), false},
		{Scalar(32), true},
		{Vector(3, 32), false},
		{Vector(4, 16), true},
		{Type{}, false},
	}

	for _, tt := range tests {
		if got := tt.typ.IsPow2Size(); got != tt.want {
			t.Errorf("IsPow2Size(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestChangeElementSize(t *testing.T) {
	if got := Vector(2, 16).ChangeElementSize(32); got != Vector(2, 32) {
		t.Errorf("got %v, want <2 x s32>", got)
	}
	if got := Scalar(16).ChangeElementSize(64); got != Scalar(64) {
		t.Errorf("got %v, want s64", got)
	}
	if got := Vector(4, 32).ChangeElementType(Scalar(64)); got != Vector(4, 64) {
		t.Errorf("got %v, want <4 x s64>", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	types := []Type{
		Scalar(1), Scalar(128), Pointer(0, 64), Pointer(5, 32),
		Vector(2, 16), Vector(7, 64), VectorOf(4, Pointer(3, 32)),
	}
	for _, typ := range types {
		got, err := Parse(typ.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", typ.String(), err)
		}
		if got != typ {
			t.Errorf("Parse(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "malformed type"},
		{"s", "malformed type"},
		{"s0", "bad scalar width"},
		{"s-8", "bad scalar width"},
		{"s5000000000", "bad scalar width"},
		{"x32", "unknown type"},
		{"p1", "needs a width"},
		{"p-1.64", "bad address space"},
		{"p5000000000.64", "bad address space"},
		{"p1.0", "bad pointer width"},
		{"p1.99999999999", "bad pointer width"},
		{"<2 x s32", "unterminated vector"},
		{"<1 x s32>", "bad lane count"},
		{"<70000 x s32>", "bad lane count"},
		{"<2 y s32>", "malformed vector"},
		{"<2 x q8>", "unknown type"},
		{"<4 x s5000000000>", "bad scalar width"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse(%q) error %q should contain %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestParseWidestLaneCount(t *testing.T) {
	got, err := Parse("<65535 x s8>")
	if err != nil {
		t.Fatal(err)
	}
	if got.NumElements() != 65535 {
		t.Errorf("lanes = %d, want 65535", got.NumElements())
	}
}

func TestPow2Helpers(t *testing.T) {
	tests := []struct {
		n, next, log int
	}{
		{1, 1, 0},
		{2, 2, 1},
		{3, 4, 2},
		{17, 32, 5},
		{32, 32, 5},
		{33, 64, 6},
	}
	for _, tt := range tests {
		if got := NextPow2(tt.n); got != tt.next {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.n, got, tt.next)
		}
		if got := Log2Ceil(tt.n); got != tt.log {
			t.Errorf("Log2Ceil(%d) = %d, want %d", tt.n, got, tt.log)
		}
	}
	if got := AlignTo(193, 64); got != 256 {
		t.Errorf("AlignTo(193, 64) = %d, want 256", got)
	}
}
