package legalizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
)

// LegalizeProgram legalizes every function of prog, several at a time. Each
// function is rewritten on a copy; prog is only updated when all of them
// succeed. Cancelling ctx stops functions that have not started yet.
func (d *Driver) LegalizeProgram(ctx context.Context, prog *gmir.Program) (*Report, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs)

	funcs := make([]*gmir.Function, len(prog.Functions))
	reports := make([]FunctionReport, len(prog.Functions))
	for i, fn := range prog.Functions {
		i, fn := i, fn
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			work := fn.Clone()
			rep, err := d.Legalize(work)
			if err != nil {
				return err
			}
			funcs[i] = work
			reports[i] = *rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	copy(prog.Functions, funcs)
	return &Report{Functions: reports}, nil
}

// LegalizeProgram is a shorthand for NewDriver(c, opts...).LegalizeProgram
func LegalizeProgram(ctx context.Context, c *Catalog, prog *gmir.Program, opts ...Option) (*Report, error) {
	return NewDriver(c, opts...).LegalizeProgram(ctx, prog)
}
