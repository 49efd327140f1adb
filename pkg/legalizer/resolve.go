package legalizer

import (
	"fmt"

	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// Decision is the outcome of resolving one query
type Decision struct {
	Action    Action
	TypeIdx   int // -1 when the rule has no mutation
	NewType   llt.Type
	RuleIndex int
	Rule      Rule
}

// Resolve walks the rules of q's opcode in declaration order and returns the
// first match. It does not modify the catalog.
func (c *Catalog) Resolve(q Query) (Decision, error) {
	for i, r := range c.Rules(q.Opcode) {
		if !r.Matches(q) {
			continue
		}
		d := Decision{Action: r.Action, TypeIdx: -1, RuleIndex: i, Rule: r}
		if r.HasMutation() {
			d.TypeIdx, d.NewType = r.Mutate(q)
		}
		return d, nil
	}
	return Decision{Action: NotFound, TypeIdx: -1, RuleIndex: -1}, fmt.Errorf("%w for %s", ErrNoMatchingRule, q)
}
