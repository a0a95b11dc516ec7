package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/glassbox/refs"
)

func TestSolveReserve_InactiveReturnsZero(t *testing.T) {
	ctx := refs.New(12)
	tl := testTimeline(12)
	def := Definition{Inputs: map[string]any{"dsrfActiveRef": 0.0}}
	out := SolveReserve(def, 12, ctx, tl)
	for _, v := range out["facility_limit"] {
		assert.Equal(t, 0.0, v)
	}
}

func TestSolveReserve_FacilityLimitStepsAtOpsStartAndRefi(t *testing.T) {
	periods := 12
	ctx := refs.New(periods)
	tl := testTimeline(periods)

	ds := make([]float64, periods)
	opsFlag := make([]float64, periods)
	for i := 3; i < periods; i++ {
		ds[i] = 100
		opsFlag[i] = 1
	}
	ctx.Set("R1", ds)
	ctx.Set("R2", opsFlag)

	def := Definition{
		Inputs: map[string]any{
			"dsrfActiveRef":     1.0,
			"debtServiceRef":    "R1",
			"operationsFlagRef": "R2",
			"baseMarginPctRef":  1.75,
			"facilityMonthsRef": 4.0,
			"refinancingSchedule": []any{
				map[string]any{"active": true, "monthIndex": 8.0, "marginPct": 2.25, "feePct": 1.0},
			},
		},
	}
	out := SolveReserve(def, periods, ctx, tl)

	require.Contains(t, out, "facility_limit")
	assert.Equal(t, 0.0, out["facility_limit"][0]) // before ops start
	assert.Equal(t, 400.0, out["facility_limit"][3])
	assert.InDelta(t, 1.75, out["effective_margin"][3], 1e-9)
	assert.InDelta(t, 2.25, out["effective_margin"][8], 1e-9)
	assert.Greater(t, out["refi_fees"][8], 0.0)
}
