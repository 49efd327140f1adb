package legalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

var (
	// ErrUnsupported is returned when an instruction resolves to Unsupported
	ErrUnsupported = errors.New("unsupported")
	// ErrUnableToLegalize is returned when the driver cannot carry out an action
	ErrUnableToLegalize = errors.New("unable to legalize")
	// ErrIterationLimit is returned when convergence exceeds the safety cutoff
	ErrIterationLimit = errors.New("iteration limit exceeded")
	// ErrNoMatchingRule is returned when no rule matches a query
	ErrNoMatchingRule = errors.New("no matching rule")
	// ErrInvalidCatalog is wrapped by catalog construction failures
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// LegalizeError reports an instruction that could not be legalized
type LegalizeError struct {
	Function string
	Opcode   gmir.Opcode
	Types    []llt.Type
	Instr    string
	Reason   error
}

func (e *LegalizeError) Error() string {
	types := make([]string, len(e.Types))
	for i, t := range e.Types {
		types[i] = t.String()
	}
	return fmt.Sprintf("@%s: %s (%s): %v [%s]", e.Function, e.Opcode, strings.Join(types, ", "), e.Reason, e.Instr)
}

func (e *LegalizeError) Unwrap() error {
	return e.Reason
}

// VerifyError reports one defect of a rule catalog
type VerifyError struct {
	Opcode    gmir.Opcode // OpInvalid for the default sequence
	RuleIndex int         // -1 when the defect concerns the whole sequence
	Reason    string
}

func (e *VerifyError) Error() string {
	name := "default rules"
	if e.Opcode != gmir.OpInvalid {
		name = e.Opcode.String()
	}
	if e.RuleIndex >= 0 {
		return fmt.Sprintf("%s: rule %d: %s", name, e.RuleIndex, e.Reason)
	}
	return fmt.Sprintf("%s: %s", name, e.Reason)
}

func unable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnableToLegalize, fmt.Sprintf(format, args...))
}
