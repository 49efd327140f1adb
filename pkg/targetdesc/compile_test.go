package targetdesc

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

func TestParseRejectsBadDescriptions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "empty document"},
		{"unknown key", "name: x\nbogus: 1\n", "bogus"},
		{"missing name", "rules: []\n", "missing name"},
		{"unknown opcode", `
name: x
rules:
  - ops: [G_NOPE]
    do: [{legal: {}}]
`, `unknown opcode "G_NOPE"`},
		{"no rules", `
name: x
rules:
  - ops: [G_ADD]
`, "rules[0]: no rules"},
		{"unknown rule", `
name: x
rules:
  - ops: [G_ADD]
    do:
      - legal_fro: [s32]
`, "legal_fro: unknown rule"},
		{"bad type", `
name: x
rules:
  - ops: [G_ADD]
    do: [{legal_for: [q32]}]
`, "q32"},
		{"unknown type set", `
name: x
rules:
  - ops: [G_ADD]
    do: [{legal_for: [$wide]}]
`, `unknown type set "wide"`},
		{"unknown argument", `
name: x
rules:
  - ops: [G_ADD]
    do: [{clamp_scalar: {idx: 0, min: s32, maxx: s64}}]
`, `unknown argument "maxx"`},
		{"missing type", `
name: x
rules:
  - ops: [G_ADD]
    do: [{min_scalar: {idx: 0}}]
`, "missing type"},
		{"unknown predicate", `
name: x
rules:
  - ops: [G_ADD]
    do: [{legal_if: {is_wide: 0}}]
`, "is_wide: unknown predicate"},
		{"unknown mutation", `
name: x
rules:
  - ops: [G_ADD]
    do: [{widen_scalar_if: {if: {is_scalar: 0}, to: {double: 0}}}]
`, "double: unknown mutation"},
		{"mutation rule without mutation", `
name: x
rules:
  - ops: [G_ADD]
    do: [{widen_scalar_if: {if: {is_scalar: 0}}}]
`, "needs both if and to"},
		{"arguments on legal", `
name: x
rules:
  - ops: [G_ADD]
    do: [{legal: [s32]}]
`, "takes no arguments"},
		{"unknown handler", `
name: x
custom: {G_ADD: fancy}
`, `unknown handler "fancy"`},
		{"bad generation", `
name: x
rules:
  - ops: [G_ADD]
    when: {generation_at_least: ancient}
    do: [{legal: {}}]
`, `unknown generation "ancient"`},
		{"bad legacy action", `
name: x
legacy:
  - {op: G_BRCOND, idx: 0, type: s1, action: widen_scalar}
`, "needs a mutation"},
		{"legacy index out of range", `
name: x
legacy:
  - {op: G_BRCOND, idx: 3, type: s1}
`, "type index 3 out of range"},
		{"bad pointer", `
name: x
pointers: {global: {space: 1}}
rules:
  - ops: [G_LOAD]
    do: [{legal_for: [global]}]
`, "pointer global"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			if !errors.Is(err, legalizer.ErrInvalidCatalog) {
				assert.ErrorIs(t, err, ErrInvalidDescription)
			}
		})
	}
}

func TestParseCollectsErrors(t *testing.T) {
	_, err := Parse([]byte(`
name: x
rules:
  - ops: [G_NOPE]
    do: [{legal: {}}]
  - ops: [G_ADD]
    do: [{legal_fro: [s32]}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules[0]")
	assert.Contains(t, err.Error(), "rules[1]")
}

func TestParseRunsCatalogVerification(t *testing.T) {
	_, err := Parse([]byte(`
name: partial
rules:
  - ops: [G_ADD]
    do: [{legal_for: [s32]}]
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, legalizer.ErrInvalidCatalog)
	assert.NotErrorIs(t, err, ErrInvalidDescription)

	_, err = Parse([]byte(`
name: required
required: [G_SUB]
default: [{legal: {}}]
`))
	assert.ErrorIs(t, err, legalizer.ErrInvalidCatalog)
}

func TestVocabulary(t *testing.T) {
	c, err := Parse([]byte(`
name: vocab
pointers:
  global: {space: 1, bits: 64}
type_sets:
  small: [s8, s16]
default: [{legal: {}}]
rules:
  - ops: [G_ADD]
    do:
      - unsupported_if: {all: [{is_vector: 0}, {num_elements_not_pow2: 0}]}
      - more_elements_if:
          if: {all: [{is_vector: 0}, {scalar_or_elt_narrower_than: {idx: 0, bits: 8}}]}
          to: {more_elements_next_pow2: {idx: 0, min_lanes: 8}}
      - legal_for: [$small, s32]
      - widen_scalar_if: {if: {size_not_pow2: 0}, to: {next_pow2: {idx: 0, min_bits: 32}}}
      - narrow_scalar_if: {if: {wider_than: {idx: 0, bits: 64}}, to: {change_to: {idx: 0, type: s64}}}
      - fewer_elements_if:
          if: {element_type_is: {idx: 0, type: s64}}
          to: {change_element_count_to: {idx: 0, lanes: 2}}
      - max_scalar: {idx: 0, type: s64}
      - scalarize: 0
      - unsupported: {}
  - ops: [G_LOAD]
    do:
      - legal_for_types_with_mem_size: [{types: [s32, global], mem: 32}]
      - unsupported_if: {mem_size_in: {mmo: 0, sizes: [24]}}
      - lower_if: {any: [{pointer_in: {idx: 1, space: 3}}, {type_in: {idx: 0, types: [s16]}}]}
      - custom: {}
  - ops: [G_BUILD_VECTOR]
    do:
      - legal_for_tuples: [[<2 x s32>, s32]]
      - clamp_min_num_elements: {idx: 0, elt: s32, lanes: 2}
      - more_elements_to_next_pow2: 0
      - unsupported: {}
`))
	require.NoError(t, err)

	s8, s16, s24 := llt.Scalar(8), llt.Scalar(16), llt.Scalar(24)
	global := llt.Pointer(1, 64)
	checkResolve(t, c, []resolveCase{
		{"type set member", query(gmir.GAdd, s8), legalizer.Legal, 0, llt.Type{}},
		{"odd scalar", query(gmir.GAdd, s24), legalizer.WidenScalar, 0, s32},
		{"odd lanes", query(gmir.GAdd, llt.Vector(3, 32)), legalizer.Unsupported, 0, llt.Type{}},
		{"tiny lanes", query(gmir.GAdd, llt.Vector(2, 4)), legalizer.MoreElements, 0, llt.Vector(8, 4)},
		{"wide scalar", query(gmir.GAdd, llt.Scalar(128)), legalizer.NarrowScalar, 0, s64},
		{"s64 lanes", query(gmir.GAdd, llt.Vector(4, 64)), legalizer.FewerElements, 0, llt.Vector(2, 64)},
		{"other lanes", query(gmir.GAdd, llt.Vector(4, 8)), legalizer.FewerElements, 0, s8},
		{"load with size", memQuery(gmir.GLoad, 32, s32, global), legalizer.Legal, 0, llt.Type{}},
		{"load odd size", memQuery(gmir.GLoad, 24, s32, global), legalizer.Unsupported, 0, llt.Type{}},
		{"load s16", memQuery(gmir.GLoad, 16, s16, global), legalizer.Lower, 0, llt.Type{}},
		{"load local", memQuery(gmir.GLoad, 32, s32, llt.Pointer(3, 32)), legalizer.Lower, 0, llt.Type{}},
		{"load other", memQuery(gmir.GLoad, 64, s64, global), legalizer.Custom, 0, llt.Type{}},
		{"tuple", query(gmir.GBuildVector, llt.Vector(2, 32), s32), legalizer.Legal, 0, llt.Type{}},
		{"odd build", query(gmir.GBuildVector, llt.Vector(3, 16), s16), legalizer.MoreElements, 0, llt.Vector(4, 16)},
		{"default", query(gmir.GMul, s8), legalizer.Legal, 0, llt.Type{}},
	})
}

func TestConditionsAndSubtargetPredicates(t *testing.T) {
	src := []byte(`
name: gated
rules:
  - ops: [G_ADD]
    when: {generation_at_least: volcanic_islands, not_feature: no-add}
    do: [{legal: {}}]
  - ops: [G_ADD]
    do:
      - legal_if: {all: [{subtarget_below: 7}, {has_feature: add-s64}, {type_is: {idx: 0, type: s64}}]}
      - unsupported: {}
`)
	resolve := func(st Subtarget, typ llt.Type) legalizer.Action {
		t.Helper()
		c, err := Parse(src, WithSubtarget(st))
		require.NoError(t, err)
		d, err := c.Resolve(query(gmir.GAdd, typ))
		require.NoError(t, err)
		return d.Action
	}

	assert.Equal(t, legalizer.Legal, resolve(Subtarget{Generation: GFX9}, s16))
	assert.Equal(t, legalizer.Unsupported, resolve(Subtarget{Generation: GFX9, Features: []string{"no-add"}}, s16))
	assert.Equal(t, legalizer.Unsupported, resolve(Subtarget{Generation: SeaIslands}, s16))
	assert.Equal(t, legalizer.Legal, resolve(Subtarget{Generation: SouthernIslands, Features: []string{"add-s64"}}, s64))
	assert.Equal(t, legalizer.Unsupported, resolve(Subtarget{Generation: SeaIslands, Features: []string{"add-s64"}}, s64))
}

func TestSkippedEntriesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := Parse([]byte(`
name: logged
default: [{legal: {}}]
rules:
  - ops: [G_ADD]
    when: {feature: missing}
    do: [{unsupported: {}}]
`), WithLogger(log), WithSubtarget(Subtarget{Generation: GFX9}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "entry skipped")
	assert.Contains(t, buf.String(), "subtarget=gfx9")
}

func TestCustomHandlers(t *testing.T) {
	src := []byte(`
name: custom
default: [{legal: {}}]
custom: {G_FSUB: lower, G_MUL: keep}
rules:
  - ops: [G_FSUB, G_MUL]
    do:
      - custom_for: [s64]
      - legal: {}
`)
	var kept int
	keep := func(h *legalizer.Helper, instr *gmir.Instr) error {
		kept++
		return nil
	}
	c, err := Parse(src, WithHandler("keep", keep))
	require.NoError(t, err)

	prog, err := gmir.Parse(`func @f(%0:s64, %1:s64) {
  %2:s64 = G_FSUB %0, %1
  %3:s64 = G_MUL %0, %2
}
`)
	require.NoError(t, err)
	_, err = legalizer.NewDriver(c).Legalize(prog.Functions[0])
	require.NoError(t, err)

	var sb strings.Builder
	gmir.NewPrinter(&sb).PrintProgram(prog)
	assert.Equal(t, `func @f(%0:s64, %1:s64) {
  %4:s64 = G_FNEG %1
  %2:s64 = G_FADD %0, %4
  %3:s64 = G_MUL %0, %2
}
`, sb.String())
	assert.Equal(t, 1, kept)
}

func TestLoadReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nrules: [{ops: [G_ADD], do: [{legal_for: [s32]}]}]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), path+": "), err.Error())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		in   string
		want Generation
		ok   bool
	}{
		{"sea_islands", SeaIslands, true},
		{"GFX9", GFX9, true},
		{"8", VolcanicIslands, true},
		{"0", GenerationUnknown, false},
		{"ancient", GenerationUnknown, false},
	}
	for _, tt := range tests {
		g, err := ParseGeneration(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, g)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
	assert.Equal(t, "volcanic_islands", VolcanicIslands.String())
	assert.Equal(t, "12", Generation(12).String())
	assert.Equal(t, "gfx9+16-bit-insts", Subtarget{Generation: GFX9, Features: []string{"16-bit-insts"}}.String())
}
