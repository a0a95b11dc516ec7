package scheduler

import (
	"github.com/jiangshenghai57/glassbox/formula"
	"github.com/jiangshenghai57/glassbox/refs"
)

// EvaluateCluster runs every member of a soft-cycle cluster period by
// period: for each period i, every member's formula is recomputed against
// ctx, which by then has periods [0, i) fully resolved for every other
// member and period i partially resolved depending on iteration order
// within this period. This mirrors the original engine's recompute-each-
// period cluster evaluator exactly, array-operator cost included.
//
// exprs maps a member node id to its parsed formula; member ids absent
// from exprs (e.g. a calculation with no formula) evaluate to zero.
func EvaluateCluster(c *Cluster, exprs map[string]*formula.Expr, ctx *refs.Context) map[string][]float64 {
	periods := ctx.Periods()
	results := make(map[string][]float64, len(c.InternalOrder))
	for _, id := range c.InternalOrder {
		arr := make([]float64, periods)
		results[id] = arr
		ctx.Set(id, arr)
	}

	for i := 0; i < periods; i++ {
		for _, id := range c.InternalOrder {
			expr, ok := exprs[id]
			if !ok || expr == nil {
				results[id][i] = 0
				continue
			}
			results[id][i] = formula.EvalAt(expr, ctx, i)
		}
	}

	return results
}
