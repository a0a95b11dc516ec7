package formula

import "strings"

// HardDeps returns every R<id> or M<id> node this expression reads eagerly
// (i.e. not only inside a SHIFT/PREVSUM/PREVVAL lag). These become edges in
// the scheduler's dependency graph: a hard dep must be fully evaluated
// before this node can run.
func (e *Expr) HardDeps() map[string]bool {
	out := map[string]bool{}
	var walk func(n *Expr, inLag bool)
	walk = func(n *Expr, inLag bool) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindRef:
			if !inLag && isSchedulableRef(n.Ref) {
				out[schedulingKey(n.Ref)] = true
			}
		case KindBinary:
			walk(n.Left, inLag)
			walk(n.Right, inLag)
		case KindUnary:
			walk(n.Operand, inLag)
		case KindCall:
			lagHere := lagFuncs[n.Func]
			for i, a := range n.Args {
				if n.Func == "SHIFT" && i == 1 {
					continue // lag count, not a reference
				}
				walk(a, inLag || lagHere)
			}
		}
	}
	walk(e, false)
	return out
}

// ShiftTargets returns every R<id> node that appears inside a
// SHIFT/PREVSUM/PREVVAL call (whether or not it also appears outside one):
// a soft dependency the scheduler may route through a cluster instead of a
// hard topological edge. M<id> refs are never soft targets; since HardDeps
// also skips refs inside a lag, a lagged module output appears in neither
// set and adds no scheduling edge.
func (e *Expr) ShiftTargets() map[string]bool {
	out := map[string]bool{}
	var walk func(n *Expr, inLag bool)
	walk = func(n *Expr, inLag bool) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindRef:
			if inLag && strings.HasPrefix(n.Ref, "R") {
				out[schedulingKey(n.Ref)] = true
			}
		case KindBinary:
			walk(n.Left, inLag)
			walk(n.Right, inLag)
		case KindUnary:
			walk(n.Operand, inLag)
		case KindCall:
			lagHere := lagFuncs[n.Func]
			for i, a := range n.Args {
				if n.Func == "SHIFT" && i == 1 {
					continue
				}
				walk(a, inLag || lagHere)
			}
		}
	}
	walk(e, false)
	return out
}

// isSchedulableRef reports whether a reference names a formula (R) or
// module (M) output: the only ref families the scheduler graphs, since
// every other family (T/V/S/C/I/F/L) is resolved before scheduling starts.
func isSchedulableRef(ref string) bool {
	return strings.HasPrefix(ref, "R") || strings.HasPrefix(ref, "M")
}

// schedulingKey collapses a dotted module output ref (M3.1) down
// to its module node id (M3): module solvers run as a single scheduled
// unit and publish every output ref at once.
func schedulingKey(ref string) string {
	if !strings.HasPrefix(ref, "M") {
		return ref
	}
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i]
	}
	return ref
}
