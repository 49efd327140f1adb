package legalizer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/raymyers/ralph-legalize/pkg/gmir"
)

// CheckFunc is a target-supplied structural check on one opcode's rules
type CheckFunc func(rules []Rule) error

type verifyConfig struct {
	required []gmir.Opcode
	checks   map[gmir.Opcode][]CheckFunc
	logger   *slog.Logger
}

// VerifyOption configures Verify
type VerifyOption func(*verifyConfig)

// WithRequiredOpcodes names opcodes the target claims to handle. Each must
// have an explicit entry.
func WithRequiredOpcodes(ops ...gmir.Opcode) VerifyOption {
	return func(c *verifyConfig) {
		c.required = append(c.required, ops...)
	}
}

// WithCheck adds a structural check for op
func WithCheck(op gmir.Opcode, check CheckFunc) VerifyOption {
	return func(c *verifyConfig) {
		c.checks[op] = append(c.checks[op], check)
	}
}

// WithVerifyLogger sets the logger used for non-fatal notes
func WithVerifyLogger(l *slog.Logger) VerifyOption {
	return func(c *verifyConfig) {
		c.logger = l
	}
}

// Verify checks that every sequence is non-empty and ends in a total rule,
// that rules only name type indices the opcode has, and that mutating
// actions carry a mutation. All defects are returned joined.
func Verify(c *Catalog, opts ...VerifyOption) error {
	cfg := &verifyConfig{
		checks: make(map[gmir.Opcode][]CheckFunc),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var errs []error
	for _, op := range cfg.required {
		if !c.HasRules(op) {
			errs = append(errs, &VerifyError{Opcode: op, RuleIndex: -1, Reason: "no rules for required opcode"})
		}
	}

	errs = append(errs, verifySequence(gmir.OpInvalid, c.defaults, -1)...)
	for _, op := range c.Opcodes() {
		rules := c.rules[op]
		numIdx := gmir.InfoOf(op).NumTypeIdx
		errs = append(errs, verifySequence(op, rules, numIdx)...)

		mentioned := make([]bool, numIdx)
		for _, r := range rules {
			for _, idx := range r.TypeIndices() {
				if idx >= 0 && idx < numIdx {
					mentioned[idx] = true
				}
			}
		}
		for idx, ok := range mentioned {
			if !ok {
				cfg.logger.Debug("type index not covered by any rule", "catalog", c.name, "op", op, "type_idx", idx)
			}
		}

		for _, check := range cfg.checks[op] {
			if err := check(rules); err != nil {
				errs = append(errs, &VerifyError{Opcode: op, RuleIndex: -1, Reason: err.Error()})
			}
		}
	}
	for op := range cfg.checks {
		if !c.HasRules(op) {
			errs = append(errs, &VerifyError{Opcode: op, RuleIndex: -1, Reason: "check registered for opcode without rules"})
		}
	}
	return errors.Join(errs...)
}

// verifySequence checks one sequence; numIdx < 0 skips index range checks
func verifySequence(op gmir.Opcode, rules []Rule, numIdx int) []error {
	if len(rules) == 0 {
		return []error{&VerifyError{Opcode: op, RuleIndex: -1, Reason: "empty rule sequence"}}
	}
	var errs []error
	for i, r := range rules {
		if r.Action == NotFound {
			errs = append(errs, &VerifyError{Opcode: op, RuleIndex: i, Reason: "not_found is not a rule action"})
		}
		if r.Action.NeedsMutation() && !r.HasMutation() {
			errs = append(errs, &VerifyError{Opcode: op, RuleIndex: i, Reason: fmt.Sprintf("%s (%s) has no mutation", r.Action, r)})
		}
		if numIdx < 0 {
			continue
		}
		for _, idx := range r.TypeIndices() {
			if idx < 0 || idx >= numIdx {
				errs = append(errs, &VerifyError{
					Opcode:    op,
					RuleIndex: i,
					Reason:    fmt.Sprintf("%s uses type index %d, opcode has %d", r, idx, numIdx),
				})
			}
		}
	}
	if last := rules[len(rules)-1]; !last.Total() {
		errs = append(errs, &VerifyError{Opcode: op, RuleIndex: len(rules) - 1, Reason: fmt.Sprintf("last rule %s is not a total fallback", last)})
	}
	return errs
}
