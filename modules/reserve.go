package modules

import (
	"math"
	"sort"

	"github.com/jiangshenghai57/glassbox/refs"
	"github.com/jiangshenghai57/glassbox/timeline"
)

// RefinancingEvent is one scheduled refinancing: at MonthIndex, the
// facility's effective margin changes to MarginPct and a one-off fee of
// FeePct (of the facility limit on that date) is charged.
type RefinancingEvent struct {
	Active       bool
	MonthIndex   int
	MarginPct    float64
	MarginPctSet bool
	FeePct       float64
}

// SolveReserve sizes a debt-service reserve facility: a forward-looking
// facility limit stepped at operations start and at each active
// refinancing, a piecewise-constant effective margin, and the one-off fees
// due at each refinancing date.
func SolveReserve(def Definition, length int, ctx *refs.Context, tl timeline.Timeline) map[string][]float64 {
	in := def.Inputs

	dsrfActive := ResolveScalar(valueOr(in["dsrfActiveRef"], 1.0), ctx, 1) != 0
	zero := map[string][]float64{
		"facility_limit":   make([]float64, length),
		"refi_fees":        make([]float64, length),
		"effective_margin": make([]float64, length),
	}
	if !dsrfActive {
		return zero
	}

	dsRef, _ := in["debtServiceRef"].(string)
	opsFlagRef, _ := in["operationsFlagRef"].(string)
	baseMargin := ResolveScalar(valueOr(in["baseMarginPctRef"], 1.75), ctx, 1.75)
	facilityMonths := int(ResolveScalar(valueOr(in["facilityMonthsRef"], 6.0), ctx, 6))
	refiSchedule := parseRefiSchedule(in["refinancingSchedule"])

	debtService := resolveRefArray(dsRef, ctx, length)
	opsFlag := resolveRefArray(opsFlagRef, ctx, length)

	opsStart := -1
	for i := 0; i < length; i++ {
		if opsFlag[i] == 1 {
			opsStart = i
			break
		}
	}
	if opsStart < 0 {
		return zero
	}

	var activeRefis []RefinancingEvent
	for _, r := range refiSchedule {
		if r.Active && r.MonthIndex > 0 {
			activeRefis = append(activeRefis, r)
		}
	}
	sort.Slice(activeRefis, func(i, j int) bool { return activeRefis[i].MonthIndex < activeRefis[j].MonthIndex })

	effMargin := make([]float64, length)
	currentMargin := baseMargin
	nextRefi := 0
	for i := 0; i < length; i++ {
		if nextRefi < len(activeRefis) && i >= activeRefis[nextRefi].MonthIndex {
			if activeRefis[nextRefi].MarginPctSet {
				currentMargin = activeRefis[nextRefi].MarginPct
			}
			nextRefi++
		}
		effMargin[i] = currentMargin
	}

	var recalcPoints []int
	recalcPoints = append(recalcPoints, opsStart)
	for _, r := range activeRefis {
		if r.MonthIndex > opsStart && r.MonthIndex < length {
			recalcPoints = append(recalcPoints, r.MonthIndex)
		}
	}

	facLimit := make([]float64, length)
	currentLimit := 0.0
	nextRecalc := 0
	for i := 0; i < length; i++ {
		if opsFlag[i] != 1 {
			continue
		}
		if nextRecalc < len(recalcPoints) && i >= recalcPoints[nextRecalc] {
			fwdSum := 0.0
			end := i + facilityMonths
			if end > length {
				end = length
			}
			for j := i; j < end; j++ {
				fwdSum += math.Abs(debtService[j])
			}
			currentLimit = fwdSum
			for nextRecalc < len(recalcPoints) && recalcPoints[nextRecalc] <= i {
				nextRecalc++
			}
		}
		facLimit[i] = currentLimit
	}

	refiFees := make([]float64, length)
	for _, r := range activeRefis {
		idx := r.MonthIndex
		if idx >= 0 && idx < length && opsFlag[idx] == 1 {
			refiFees[idx] = facLimit[idx] * (r.FeePct / 100)
		}
	}

	return map[string][]float64{
		"facility_limit":   facLimit,
		"refi_fees":        refiFees,
		"effective_margin": effMargin,
	}
}

func parseRefiSchedule(v any) []RefinancingEvent {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]RefinancingEvent, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ev := RefinancingEvent{}
		if b, ok := m["active"].(bool); ok {
			ev.Active = b
		}
		if n, ok := m["monthIndex"].(float64); ok {
			ev.MonthIndex = int(n)
		}
		if n, ok := m["marginPct"].(float64); ok {
			ev.MarginPct = n
			ev.MarginPctSet = true
		}
		if n, ok := m["feePct"].(float64); ok {
			ev.FeePct = n
		}
		out = append(out, ev)
	}
	return out
}
