package legalizer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

func verifyErrors(err error) []*VerifyError {
	var out []*VerifyError
	var walk func(error)
	walk = func(err error) {
		if ve, ok := err.(*VerifyError); ok {
			out = append(out, ve)
			return
		}
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)
	return out
}

func TestBuildRejectsMalformedCatalogs(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *CatalogBuilder)
		opts   []VerifyOption
		op     gmir.Opcode
		reason string
	}{
		{
			name:   "not total",
			build:  func(b *CatalogBuilder) { b.Define([]gmir.Opcode{gmir.GAdd}, LegalFor(s32)) },
			op:     gmir.GAdd,
			reason: "last rule legal_for(s32) is not a total fallback",
		},
		{
			name:   "empty",
			build:  func(b *CatalogBuilder) { b.Define([]gmir.Opcode{gmir.GAdd}) },
			op:     gmir.GAdd,
			reason: "empty rule sequence",
		},
		{
			name: "missing mutation",
			build: func(b *CatalogBuilder) {
				b.Define([]gmir.Opcode{gmir.GAdd}, []Rule{NewRule("widen", WidenScalar, Always(), nil)})
			},
			op:     gmir.GAdd,
			reason: "widen_scalar (widen) has no mutation",
		},
		{
			name: "type index out of range",
			build: func(b *CatalogBuilder) {
				b.Define([]gmir.Opcode{gmir.GAdd}, LegalForPairs([2]llt.Type{s32, s32}), AlwaysLegal())
			},
			op:     gmir.GAdd,
			reason: "uses type index 1, opcode has 1",
		},
		{
			name:   "default not total",
			build:  func(b *CatalogBuilder) { b.Default(LegalFor(s32)) },
			op:     gmir.OpInvalid,
			reason: "is not a total fallback",
		},
		{
			name:   "required opcode",
			build:  func(b *CatalogBuilder) {},
			opts:   []VerifyOption{WithRequiredOpcodes(gmir.GMul)},
			op:     gmir.GMul,
			reason: "no rules for required opcode",
		},
		{
			name:  "failed check",
			build: func(b *CatalogBuilder) { b.Define([]gmir.Opcode{gmir.GLoad}, AlwaysLegal()) },
			opts: []VerifyOption{WithCheck(gmir.GLoad, func(rules []Rule) error {
				if len(rules) < 2 {
					return fmt.Errorf("loads need a memory size rule")
				}
				return nil
			})},
			op:     gmir.GLoad,
			reason: "loads need a memory size rule",
		},
		{
			name:   "check without rules",
			build:  func(b *CatalogBuilder) {},
			opts:   []VerifyOption{WithCheck(gmir.GStore, func([]Rule) error { return nil })},
			op:     gmir.GStore,
			reason: "check registered for opcode without rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCatalogBuilder("bad")
			tt.build(b)
			c, err := b.Build(tt.opts...)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidCatalog)

			var ve *VerifyError
			require.True(t, errors.As(err, &ve))
			found := false
			for _, ve := range verifyErrors(err) {
				if ve.Opcode == tt.op && bytes.Contains([]byte(ve.Reason), []byte(tt.reason)) {
					found = true
				}
			}
			assert.True(t, found, "no %s error containing %q in %v", tt.op, tt.reason, err)
		})
	}
}

func TestBuildJoinsDefects(t *testing.T) {
	b := NewCatalogBuilder("bad")
	b.Define([]gmir.Opcode{gmir.GAdd}, LegalFor(s32))
	b.Define([]gmir.Opcode{gmir.GSub}, LegalFor(s32))
	_, err := b.Build()
	require.Error(t, err)
	assert.Len(t, verifyErrors(err), 2)
	assert.Contains(t, err.Error(), "G_ADD: rule 0")
	assert.Contains(t, err.Error(), "G_SUB: rule 0")
}

func TestBuilderErrors(t *testing.T) {
	t.Run("set action needs mutation", func(t *testing.T) {
		b := NewCatalogBuilder("bad")
		b.SetAction(gmir.GAdd, 0, s16, WidenScalar)
		_, err := b.Build()
		require.ErrorIs(t, err, ErrInvalidCatalog)
		assert.Contains(t, err.Error(), "action needs a mutation")
	})

	t.Run("invalid opcode", func(t *testing.T) {
		b := NewCatalogBuilder("bad")
		b.Define([]gmir.Opcode{gmir.OpInvalid}, AlwaysLegal())
		_, err := b.Build()
		require.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("frozen after build", func(t *testing.T) {
		b := NewCatalogBuilder("frozen")
		_, err := b.Build()
		require.NoError(t, err)
		assert.Panics(t, func() { b.Define([]gmir.Opcode{gmir.GAdd}, AlwaysLegal()) })
		assert.Panics(t, func() { b.Default(AlwaysLegal()) })
	})
}

func TestVerifyLogsUncoveredTypeIndex(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := NewCatalogBuilder("notes")
	b.Define([]gmir.Opcode{gmir.GShl}, LegalFor(s32), AlwaysLegal())
	_, err := b.Build(WithVerifyLogger(log))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "type index not covered by any rule")
	assert.Contains(t, buf.String(), "op=G_SHL")
	assert.Contains(t, buf.String(), "type_idx=1")
}

func TestCatalogAccessors(t *testing.T) {
	handler := func(*Helper, *gmir.Instr) error { return nil }
	b := NewCatalogBuilder("acc")
	b.Define([]gmir.Opcode{gmir.GSub, gmir.GAdd}, AlwaysLegal())
	b.Custom(gmir.GMul, handler)
	c, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "acc", c.Name())
	assert.Equal(t, []gmir.Opcode{gmir.GAdd, gmir.GSub}, c.Opcodes())
	assert.True(t, c.HasRules(gmir.GAdd))
	assert.False(t, c.HasRules(gmir.GMul))
	require.Len(t, c.Rules(gmir.GMul), 1)
	assert.Equal(t, Unsupported, c.Rules(gmir.GMul)[0].Action)
	_, ok := c.CustomHandler(gmir.GMul)
	assert.True(t, ok)
	_, ok = c.CustomHandler(gmir.GAdd)
	assert.False(t, ok)
}
