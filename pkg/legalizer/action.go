// Package legalizer rewrites generic instructions until a target accepts
// every one of them. A Catalog maps each opcode to an ordered list of rules;
// the first rule whose predicate holds decides the action. The Driver applies
// actions through a Helper and re-queries everything it creates until the
// function is legal or an error is reported.
package legalizer

// Action says what the driver does with an instruction occurrence
type Action uint8

const (
	// Legal means the target can execute the instruction as is
	Legal Action = iota
	// NarrowScalar breaks a wide scalar slot into narrower parts
	NarrowScalar
	// WidenScalar extends a scalar slot to a wider type
	WidenScalar
	// FewerElements splits a vector slot into smaller vectors or scalars
	FewerElements
	// MoreElements pads a vector slot with extra lanes
	MoreElements
	// Lower expands the instruction into simpler generic instructions
	Lower
	// Custom defers to the target's handler for the opcode
	Custom
	// Unsupported is a terminal failure
	Unsupported
	// NotFound is reported only when no rule matched
	NotFound
)

var actionNames = [...]string{
	Legal:         "legal",
	NarrowScalar:  "narrow_scalar",
	WidenScalar:   "widen_scalar",
	FewerElements: "fewer_elements",
	MoreElements:  "more_elements",
	Lower:         "lower",
	Custom:        "custom",
	Unsupported:   "unsupported",
	NotFound:      "not_found",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "?"
}

// LookupAction finds an action by its printed name
func LookupAction(name string) (Action, bool) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), true
		}
	}
	return NotFound, false
}

// NeedsMutation reports whether the action must name a slot and a new type
func (a Action) NeedsMutation() bool {
	switch a {
	case NarrowScalar, WidenScalar, FewerElements, MoreElements:
		return true
	}
	return false
}
