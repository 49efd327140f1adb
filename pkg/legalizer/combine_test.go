package legalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

func TestCombineExtensions(t *testing.T) {
	tests := []struct {
		name     string
		define   func(b *CatalogBuilder)
		src      string
		want     string
		steps    int
		combines int
	}{
		{
			name: "sext of sext",
			define: func(b *CatalogBuilder) {
				b.Define([]gmir.Opcode{gmir.GICmp},
					WidenScalarIf(NarrowerThan(1, 16), ChangeTo(1, s16)),
					WidenScalarIf(NarrowerThan(1, 32), ChangeTo(1, s32)),
					AlwaysLegal())
			},
			src: `func @f(%0:s8, %1:s8) {
  %2:s1 = G_ICMP intpred(slt), %0, %1
}`,
			want: `func @f(%0:s8, %1:s8) {
  %5:s32 = G_SEXT %0
  %6:s32 = G_SEXT %1
  %2:s1 = G_ICMP intpred(slt), %5, %6
}
`,
			steps:    5,
			combines: 2,
		},
		{
			name: "zext of trunc masks",
			define: func(b *CatalogBuilder) {
				b.Define([]gmir.Opcode{gmir.GAdd}, MinScalar(0, s32), AlwaysLegal())
				b.Define([]gmir.Opcode{gmir.GICmp}, WidenScalarIf(NarrowerThan(1, 32), ChangeTo(1, s32)), AlwaysLegal())
			},
			src: `func @f(%0:s16, %1:s16) {
  %2:s16 = G_ADD %0, %1
  %3:s1 = G_ICMP intpred(ult), %2, %1
}`,
			want: `func @f(%0:s16, %1:s16) {
  %4:s32 = G_ANYEXT %0
  %5:s32 = G_ANYEXT %1
  %6:s32 = G_ADD %4, %5
  %2:s16 = G_TRUNC %6
  %9:s32 = G_CONSTANT 65535
  %7:s32 = G_AND %6, %9
  %8:s32 = G_ZEXT %1
  %3:s1 = G_ICMP intpred(ult), %7, %8
}
`,
			steps:    10,
			combines: 1,
		},
		{
			name: "anyext of wider trunc",
			define: func(b *CatalogBuilder) {
				b.Define([]gmir.Opcode{gmir.GMul}, MinScalar(0, s64), AlwaysLegal())
				b.Define([]gmir.Opcode{gmir.GAdd}, MinScalar(0, s32), AlwaysLegal())
			},
			src: `func @f(%0:s16, %1:s16) {
  %2:s16 = G_MUL %0, %1
  %3:s16 = G_ADD %2, %1
}`,
			want: `func @f(%0:s16, %1:s16) {
  %4:s64 = G_ANYEXT %0
  %5:s64 = G_ANYEXT %1
  %6:s64 = G_MUL %4, %5
  %2:s16 = G_TRUNC %6
  %7:s32 = G_TRUNC %6
  %8:s32 = G_ANYEXT %1
  %9:s32 = G_ADD %7, %8
  %3:s16 = G_TRUNC %9
}
`,
			steps:    10,
			combines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildCatalog(t, tt.define)
			fn, rep := mustLegalize(t, c, tt.src)
			assert.Equal(t, tt.want, render(fn))
			assert.Equal(t, tt.steps, rep.Steps)
			assert.Equal(t, tt.combines, rep.Combines)
		})
	}
}

func TestCombineUnmergeOfMerge(t *testing.T) {
	narrowTo := func(b *CatalogBuilder, op gmir.Opcode, bits int) {
		b.Define([]gmir.Opcode{op}, NarrowScalarIf(WiderThan(0, bits), ChangeTo(0, llt.Scalar(bits))), AlwaysLegal())
	}
	src := `func @f(%0:s128, %1:s128) {
  %2:s128 = G_AND %0, %1
  %3:s128 = G_OR %2, %0
}`

	tests := []struct {
		name    string
		and, or int
		want    string
	}{
		{
			name: "same parts",
			and:  64,
			or:   64,
			want: `func @f(%0:s128, %1:s128) {
  %4:s64, %5:s64 = G_UNMERGE_VALUES %0
  %6:s64, %7:s64 = G_UNMERGE_VALUES %1
  %8:s64 = G_AND %4, %6
  %9:s64 = G_AND %5, %7
  %2:s128 = G_MERGE_VALUES %8, %9
  %12:s64, %13:s64 = G_UNMERGE_VALUES %0
  %14:s64 = G_OR %8, %12
  %15:s64 = G_OR %9, %13
  %3:s128 = G_MERGE_VALUES %14, %15
}
`,
		},
		{
			name: "regroup into wider parts",
			and:  32,
			or:   64,
			want: `func @f(%0:s128, %1:s128) {
  %4:s32, %5:s32, %6:s32, %7:s32 = G_UNMERGE_VALUES %0
  %8:s32, %9:s32, %10:s32, %11:s32 = G_UNMERGE_VALUES %1
  %12:s32 = G_AND %4, %8
  %13:s32 = G_AND %5, %9
  %14:s32 = G_AND %6, %10
  %15:s32 = G_AND %7, %11
  %2:s128 = G_MERGE_VALUES %12, %13, %14, %15
  %16:s64 = G_MERGE_VALUES %12, %13
  %17:s64 = G_MERGE_VALUES %14, %15
  %18:s64, %19:s64 = G_UNMERGE_VALUES %0
  %20:s64 = G_OR %16, %18
  %21:s64 = G_OR %17, %19
  %3:s128 = G_MERGE_VALUES %20, %21
}
`,
		},
		{
			name: "split each part",
			and:  64,
			or:   32,
			want: `func @f(%0:s128, %1:s128) {
  %4:s64, %5:s64 = G_UNMERGE_VALUES %0
  %6:s64, %7:s64 = G_UNMERGE_VALUES %1
  %8:s64 = G_AND %4, %6
  %9:s64 = G_AND %5, %7
  %2:s128 = G_MERGE_VALUES %8, %9
  %10:s32, %11:s32 = G_UNMERGE_VALUES %8
  %12:s32, %13:s32 = G_UNMERGE_VALUES %9
  %14:s32, %15:s32, %16:s32, %17:s32 = G_UNMERGE_VALUES %0
  %18:s32 = G_OR %10, %14
  %19:s32 = G_OR %11, %15
  %20:s32 = G_OR %12, %16
  %21:s32 = G_OR %13, %17
  %3:s128 = G_MERGE_VALUES %18, %19, %20, %21
}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildCatalog(t, func(b *CatalogBuilder) {
				narrowTo(b, gmir.GAnd, tt.and)
				narrowTo(b, gmir.GOr, tt.or)
			})
			fn, rep := mustLegalize(t, c, src)
			assert.Equal(t, tt.want, render(fn))
			assert.Equal(t, 1, rep.Combines)
		})
	}
}

func TestCombineTruncOfMerge(t *testing.T) {
	c := buildCatalog(t, func(b *CatalogBuilder) {
		b.Define([]gmir.Opcode{gmir.GAdd, gmir.GStore}, NarrowScalarIf(WiderThan(0, 32), ChangeTo(0, s32)), AlwaysLegal())
	})
	fn, rep := mustLegalize(t, c, `func @f(%0:s64, %1:s64, %2:p1.64) {
  %3:s64 = G_ADD %0, %1
  G_STORE %3, %2 :: (store 16)
}`)

	// the store takes the low half straight from the carry chain
	want := `func @f(%0:s64, %1:s64, %2:p1.64) {
  %4:s32, %5:s32 = G_UNMERGE_VALUES %0
  %6:s32, %7:s32 = G_UNMERGE_VALUES %1
  %8:s32, %9:s1 = G_UADDO %4, %6
  %10:s32, %11:s1 = G_UADDE %5, %7, %9
  %3:s64 = G_MERGE_VALUES %8, %10
  G_STORE %8, %2 :: (store 16)
}
`
	assert.Equal(t, want, render(fn))
	assert.Equal(t, 1, rep.Combines)
}

func TestInputArtifactsAreNotCombined(t *testing.T) {
	c := buildCatalog(t, func(*CatalogBuilder) {})
	src := `func @f(%0:s16) {
  %1:s32 = G_ANYEXT %0
  %2:s16 = G_TRUNC %1
}
`
	fn, rep := mustLegalize(t, c, src)
	assert.Equal(t, strings.TrimLeft(src, "\n"), render(fn))
	assert.Equal(t, 2, rep.Steps)
	assert.Zero(t, rep.Combines)
}

func TestExtOfExt(t *testing.T) {
	tests := []struct {
		outer, inner gmir.Opcode
		want         gmir.Opcode
		ok           bool
	}{
		{gmir.GAnyExt, gmir.GSExt, gmir.GSExt, true},
		{gmir.GAnyExt, gmir.GZExt, gmir.GZExt, true},
		{gmir.GSExt, gmir.GSExt, gmir.GSExt, true},
		{gmir.GZExt, gmir.GZExt, gmir.GZExt, true},
		{gmir.GSExt, gmir.GZExt, gmir.GZExt, true},
		{gmir.GZExt, gmir.GSExt, gmir.OpInvalid, false},
		{gmir.GSExt, gmir.GAnyExt, gmir.OpInvalid, false},
	}
	for _, tt := range tests {
		got, ok := extOfExt(tt.outer, tt.inner)
		assert.Equal(t, tt.ok, ok, "%s of %s", tt.outer, tt.inner)
		assert.Equal(t, tt.want, got, "%s of %s", tt.outer, tt.inner)
	}
}
