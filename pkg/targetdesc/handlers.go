package targetdesc

import (
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/llt"
)

// builtinHandlers are available to every description by name
func builtinHandlers() map[string]legalizer.CustomHandler {
	return map[string]legalizer.CustomHandler{
		// the target selects the instruction itself
		"legal": func(*legalizer.Helper, *gmir.Instr) error { return nil },
		"lower": func(h *legalizer.Helper, instr *gmir.Instr) error {
			return h.Lower(instr, llt.Type{})
		},
	}
}
