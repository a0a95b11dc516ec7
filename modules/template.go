package modules

import (
	"github.com/jiangshenghai57/glassbox/refs"
	"github.com/jiangshenghai57/glassbox/timeline"
)

// Definition is one module instance as declared in a calculations document.
type Definition struct {
	TemplateID     string
	Inputs         map[string]any
	Enabled        bool // defaults to true; the document may set it false
	Converted      bool
	FullyConverted bool
}

// Solver computes a module's named outputs for every period.
type Solver func(def Definition, length int, ctx *refs.Context, tl timeline.Timeline) map[string][]float64

// Template describes a module kind: its solver and the ordered output keys
// used to number its M<id>.<n> refs (1-based, by position).
type Template struct {
	Outputs []string
	Solve   Solver
}

// registry is the fixed set of module templates the engine knows how to
// solve. New templates are added here, not dispatched ad hoc in the engine.
var registry = map[string]Template{
	"iterative_debt_sizing": {
		Outputs: []string{"sized_debt"},
		Solve:   SolveDebtSizing,
	},
	"dsrf": {
		Outputs: []string{"facility_limit", "refi_fees", "effective_margin"},
		Solve:   SolveReserve,
	},
}

// Lookup returns the Template for a template id, and whether it is known.
func Lookup(templateID string) (Template, bool) {
	t, ok := registry[templateID]
	return t, ok
}
