package scheduler

import "github.com/jiangshenghai57/glassbox/formula"

// NewCalculationNode builds a Node for a parsed calculation formula.
func NewCalculationNode(id string, expr *formula.Expr) *Node {
	return &Node{
		ID:           id,
		Kind:         KindCalculation,
		HardDeps:     expr.HardDeps(),
		ShiftTargets: expr.ShiftTargets(),
	}
}

// NewModuleNode builds a Node for a module solver, whose dependencies are
// whatever R/M refs its input bindings point at (modules never appear
// inside a SHIFT/PREVSUM/PREVVAL lag, so they have no soft targets).
func NewModuleNode(id string, hardDeps map[string]bool) *Node {
	return &Node{ID: id, Kind: KindModule, HardDeps: hardDeps}
}
