package refmap

import (
	"github.com/jiangshenghai57/glassbox/refs"
	"github.com/jiangshenghai57/glassbox/timeline"
)

// Build materializes every input-side reference (T.*, F*, I*, V/S/C/L*) from
// doc into ctx, over tl.
func Build(doc Document, tl timeline.Timeline, ctx *refs.Context) {
	ctx.Merge(tl.Constants())
	ctx.Merge(BuildFlags(doc.KeyPeriods, tl))
	ctx.Merge(BuildIndexation(doc.Indices, tl))
	ctx.Merge(BuildInputGroups(doc.InputGlass, doc.InputGlassGroups, doc.Config, doc.KeyPeriods, tl))
}
