package engine

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jiangshenghai57/glassbox/formula"
	"github.com/jiangshenghai57/glassbox/logger"
	"github.com/jiangshenghai57/glassbox/modules"
	"github.com/jiangshenghai57/glassbox/refmap"
	"github.com/jiangshenghai57/glassbox/refs"
	"github.com/jiangshenghai57/glassbox/scheduler"
	"github.com/jiangshenghai57/glassbox/store"
	"github.com/jiangshenghai57/glassbox/timeline"
)

// Engine loads an inputs document and a calculations document, builds the
// reference map, and evaluates every calculation and module in dependency
// order.
type Engine struct {
	inputs refmap.Document
	calcs  CalculationDocument
	log    *logger.Logger

	tl  timeline.Timeline
	ctx *refs.Context

	results       map[string][]float64
	moduleOutputs map[string][]float64
	errors        map[string]string

	calcByName map[string]*Calculation
	calcByRef  map[string]*Calculation

	astCache  *store.ASTCache
	overrides map[string]bool
	ran       bool
}

// New builds an Engine ready to run: the reference map is NOT built yet
// (so OverrideInput can still seed inputs before period arrays exist), but
// the timeline and calculation index are prepared immediately.
func New(inputs refmap.Document, calcs CalculationDocument, log *logger.Logger) *Engine {
	tl := timeline.Build(timeline.Config{
		StartYear: inputs.Config.StartYear, StartMonth: inputs.Config.StartMonth,
		EndYear: inputs.Config.EndYear, EndMonth: inputs.Config.EndMonth,
	})

	e := &Engine{
		inputs:        inputs,
		calcs:         calcs,
		log:           log,
		tl:            tl,
		ctx:           refs.New(tl.Periods()),
		results:       map[string][]float64{},
		moduleOutputs: map[string][]float64{},
		errors:        map[string]string{},
		calcByName:    map[string]*Calculation{},
		calcByRef:     map[string]*Calculation{},
		overrides:     map[string]bool{},
	}
	for i := range calcs.Calculations {
		c := &calcs.Calculations[i]
		e.calcByName[c.Name] = c
		e.calcByRef[fmt.Sprintf("R%d", c.ID)] = c
	}
	return e
}

// Periods returns the model's period count.
func (e *Engine) Periods() int { return e.tl.Periods() }

// SetASTCache wires a Badger-backed formula AST cache into the engine:
// evaluateAll then parses formulas through it instead of formula.Parse
// directly, so repeated runs of the same model skip re-parsing unchanged
// formula text.
func (e *Engine) SetASTCache(cache *store.ASTCache) {
	e.astCache = cache
}

func (e *Engine) parse(src string) (*formula.Expr, error) {
	if e.astCache != nil {
		return e.astCache.Get(src)
	}
	return formula.Parse(src)
}

// OverrideInput binds a scalar or array value onto an input reference
// (V1.5, C1.19, F2, ...) before Run executes. value must be a float64 or a
// []float64.
func (e *Engine) OverrideInput(ref string, value any) {
	switch v := value.(type) {
	case float64:
		e.ctx.SetScalar(ref, v)
	case []float64:
		e.ctx.Set(ref, v)
	default:
		return
	}
	e.overrides[ref] = true
}

// OverriddenRefs returns every ref that has received an OverrideInput/
// OverrideConstant call so far, for run-history bookkeeping.
func (e *Engine) OverriddenRefs() []string {
	out := make([]string, 0, len(e.overrides))
	for ref := range e.overrides {
		out = append(out, ref)
	}
	return out
}

// NodeCount returns the number of distinct calculation and module-output
// refs produced by the most recent Run.
func (e *Engine) NodeCount() int {
	return len(e.results) + len(e.moduleOutputs)
}

// OverrideConstant is a documented alias of OverrideInput for constant
// references, kept distinct because the original engine exposes it as its
// own entry point.
func (e *Engine) OverrideConstant(ref string, value float64) {
	e.OverrideInput(ref, value)
}

// Run builds the reference map (preserving any prior overrides), schedules
// and evaluates every calculation and module, and returns the full result
// set (formula outputs only; module outputs are available through
// GetResult/GetInputRef).
func (e *Engine) Run() map[string][]float64 {
	overrides := e.ctx.Names()
	saved := make(map[string][]float64, len(overrides))
	for _, name := range overrides {
		if arr, ok := e.ctx.Get(name); ok {
			saved[name] = arr
		}
	}

	refmap.Build(e.inputs, e.tl, e.ctx)
	for name, arr := range saved {
		e.ctx.Set(name, arr)
	}

	e.evaluateAll()
	e.ran = true

	if e.log != nil {
		e.log.Info("run complete",
			slog.Int("periods", e.tl.Periods()),
			slog.Int("calculations", len(e.calcs.Calculations)),
			slog.Int("errors", len(e.errors)),
		)
		for ref, msg := range e.errors {
			e.log.Error("calculation failed", slog.String("ref", ref), slog.String("error", msg))
		}
	}

	return e.results
}

// GetResult looks up a calculation result by its R-ref or name, or a module
// output by its M<id>.<n> ref.
func (e *Engine) GetResult(nameOrRef string) ([]float64, bool) {
	if v, ok := e.results[nameOrRef]; ok {
		return v, true
	}
	if v, ok := e.moduleOutputs[nameOrRef]; ok {
		return v, true
	}
	if c, ok := e.calcByName[nameOrRef]; ok {
		v, ok := e.results[fmt.Sprintf("R%d", c.ID)]
		return v, ok
	}
	return nil, false
}

// GetInputRef returns a raw input reference array (V1.5, S1.14, C1.19, F2,
// T.DiM, ...).
func (e *Engine) GetInputRef(ref string) ([]float64, bool) {
	return e.ctx.Get(ref)
}

// Results returns every evaluated calculation's result, keyed by R-ref.
func (e *Engine) Results() map[string][]float64 {
	return e.results
}

// Errors returns the per-ref evaluation error messages recorded by the most
// recent Run.
func (e *Engine) Errors() map[string]string {
	return e.errors
}

// CalculationNames returns every calculation's (ref, name) pair.
func (e *Engine) CalculationNames() []NamedRef {
	out := make([]NamedRef, 0, len(e.calcs.Calculations))
	for _, c := range e.calcs.Calculations {
		out = append(out, NamedRef{Ref: fmt.Sprintf("R%d", c.ID), Name: c.Name})
	}
	return out
}

// GetAllCalculationNames is a documented alias of CalculationNames.
func (e *Engine) GetAllCalculationNames() []NamedRef {
	return e.CalculationNames()
}

// ExportResults exports a subset of calculation and module results (or all
// of them, if refsToExport is empty) as {ref: {name, formula, type, values}}.
func (e *Engine) ExportResults(refsToExport ...string) map[string]ExportedResult {
	if len(refsToExport) == 0 {
		refsToExport = make([]string, 0, len(e.results)+len(e.moduleOutputs))
		for ref := range e.results {
			refsToExport = append(refsToExport, ref)
		}
		for ref := range e.moduleOutputs {
			refsToExport = append(refsToExport, ref)
		}
	}
	out := make(map[string]ExportedResult, len(refsToExport))
	for _, ref := range refsToExport {
		values, ok := e.results[ref]
		if !ok {
			values, ok = e.moduleOutputs[ref]
			if !ok {
				continue
			}
			out[ref] = ExportedResult{Name: ref, Type: "module", Values: values}
			continue
		}
		calc := e.calcByRef[ref]
		er := ExportedResult{Name: ref, Type: "flow", Values: values}
		if calc != nil {
			er.Name = calc.Name
			er.Formula = calc.Formula
			if calc.Type != "" {
				er.Type = calc.Type
			}
		}
		out[ref] = er
	}
	return out
}

var moduleInputRefPattern = regexp.MustCompile(`\bR(\d+)(?:\D|$)|\bM(\d+)\.(\d+)`)

// moduleInputDeps extracts the R/M node dependencies implied by a module's
// raw input bindings (any string-valued input naming a context reference).
func moduleInputDeps(inputs map[string]any) map[string]bool {
	out := map[string]bool{}
	for _, v := range inputs {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, m := range moduleInputRefPattern.FindAllStringSubmatch(s, -1) {
			if m[1] != "" {
				out["R"+m[1]] = true
			} else if m[2] != "" {
				out["M"+m[2]] = true
			}
		}
	}
	return out
}

var mRefTokenPattern = regexp.MustCompile(`\bM\d+\.\d+\b`)

// rewriteMRefs textually aliases every legacy 'M<mid>.<out>' token in src to
// its replacement 'R<id>' per mRefMap, mirroring the original engine's
// pre-scheduling rewrite pass for converted modules. Tokens absent from
// mRefMap are left untouched.
func rewriteMRefs(src string, mRefMap map[string]string) string {
	if len(mRefMap) == 0 {
		return src
	}
	return mRefTokenPattern.ReplaceAllStringFunc(src, func(tok string) string {
		if r, ok := mRefMap[tok]; ok {
			return r
		}
		return tok
	})
}

// rewriteMRefsInInputs applies rewriteMRefs to every string-valued module
// input, so a module whose input binding still names a converted sibling
// module's legacy M-ref resolves against the sibling's replacement R-ref.
func rewriteMRefsInInputs(inputs map[string]any, mRefMap map[string]string) map[string]any {
	if len(mRefMap) == 0 || len(inputs) == 0 {
		return inputs
	}
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		if s, ok := v.(string); ok {
			out[k] = rewriteMRefs(s, mRefMap)
			continue
		}
		out[k] = v
	}
	return out
}

// evaluateAll builds the dependency graph over every calculation and
// non-converted module, schedules it, and evaluates each node in order:
// cluster members are deferred to their cluster's trigger position and
// evaluated together, period by period; everything else is evaluated as a
// full array in one pass. Calculation formulas and module input bindings
// are first textually rewritten through calcs.MRefMap, so a converted
// module's legacy M<mid>.<out> references alias to the R<id> that replaced
// it rather than resolving to the converted module's never-populated
// M-ref.
func (e *Engine) evaluateAll() {
	exprs := make(map[string]*formula.Expr, len(e.calcs.Calculations))
	nodes := make(map[string]*scheduler.Node, len(e.calcs.Calculations)+len(e.calcs.Modules))

	for _, c := range e.calcs.Calculations {
		ref := fmt.Sprintf("R%d", c.ID)
		expr, err := e.parse(rewriteMRefs(c.Formula, e.calcs.MRefMap))
		if err != nil {
			e.errors[ref] = err.Error()
			exprs[ref] = nil
			nodes[ref] = scheduler.NewCalculationNode(ref, &formula.Expr{Kind: formula.KindNumber})
			continue
		}
		exprs[ref] = expr
		nodes[ref] = scheduler.NewCalculationNode(ref, expr)
	}

	type modEntry struct {
		id  string
		idx int
		def modules.Definition
	}
	var modEntries []modEntry
	for idx, m := range e.calcs.Modules {
		if m.Converted || m.FullyConverted {
			continue
		}
		id := fmt.Sprintf("M%d", idx+1)
		enabled := m.Enabled == nil || *m.Enabled
		inputs := rewriteMRefsInInputs(m.Inputs, e.calcs.MRefMap)
		def := modules.Definition{
			TemplateID:     m.TemplateID,
			Inputs:         inputs,
			Enabled:        enabled,
			Converted:      m.Converted,
			FullyConverted: m.FullyConverted,
		}
		nodes[id] = scheduler.NewModuleNode(id, moduleInputDeps(inputs))
		modEntries = append(modEntries, modEntry{id: id, idx: idx, def: def})
	}
	modByID := make(map[string]modEntry, len(modEntries))
	for _, me := range modEntries {
		modByID[me.id] = me
	}

	plan := scheduler.Build(nodes)
	if e.log != nil && len(plan.Clusters) > 0 {
		e.log.Warn("soft-cycle clusters detected", slog.Int("count", len(plan.Clusters)))
	}

	evaluatedClusters := map[int]bool{}
	clusterLastPos := map[int]int{}
	for i, id := range plan.Order {
		if cid, ok := plan.NodeToCluster[id]; ok {
			clusterLastPos[cid] = i
		}
	}
	triggerPos := map[int]int{}
	for cid, pos := range clusterLastPos {
		triggerPos[pos] = cid
	}

	years := e.tl.Year

	for pos, id := range plan.Order {
		if cid, inCluster := plan.NodeToCluster[id]; inCluster {
			tcid, isTrigger := triggerPos[pos]
			if !isTrigger || tcid != cid || evaluatedClusters[cid] {
				continue
			}
			evaluatedClusters[cid] = true
			cluster := plan.Clusters[cid]
			clusterResults := scheduler.EvaluateCluster(cluster, exprs, e.ctx)
			for ref, values := range clusterResults {
				e.results[ref] = values
				e.ctx.Set(ref, values)
			}
			continue
		}

		if expr, ok := exprs[id]; ok {
			if expr == nil {
				e.results[id] = make([]float64, e.tl.Periods())
				e.ctx.Set(id, e.results[id])
				continue
			}
			values := formula.EvalArray(expr, e.ctx, years)
			e.results[id] = values
			e.ctx.Set(id, values)
			continue
		}

		if me, ok := modByID[id]; ok {
			if !me.def.Enabled {
				continue
			}
			tmpl, known := modules.Lookup(me.def.TemplateID)
			if !known {
				continue
			}
			outputs := tmpl.Solve(me.def, e.tl.Periods(), e.ctx, e.tl)
			for outIdx, key := range tmpl.Outputs {
				ref := fmt.Sprintf("%s.%d", id, outIdx+1)
				arr, ok := outputs[key]
				if !ok {
					arr = make([]float64, e.tl.Periods())
				}
				e.moduleOutputs[ref] = arr
				e.ctx.Set(ref, arr)
			}
		}
	}
}
