package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/glassbox/refs"
)

func ctxWith(periods int, vals map[string][]float64) *refs.Context {
	c := refs.New(periods)
	for name, arr := range vals {
		c.Set(name, arr)
	}
	return c
}

func TestEvalArray_Arithmetic(t *testing.T) {
	ctx := ctxWith(3, map[string][]float64{"R1": {1, 2, 3}, "R2": {10, 10, 10}})
	e, err := Parse("R1 + R2 * 2")
	require.NoError(t, err)
	assert.Equal(t, []float64{21, 22, 23}, EvalArray(e, ctx, []int{2025, 2025, 2025}))
}

func TestEvalArray_DivisionByZeroIsZero(t *testing.T) {
	ctx := ctxWith(2, map[string][]float64{"R1": {1, 1}, "R2": {0, 2}})
	e, err := Parse("R1 / R2")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5}, EvalArray(e, ctx, []int{2025, 2025}))
}

func TestEvalArray_UnresolvedRefIsZero(t *testing.T) {
	ctx := refs.New(3)
	e, err := Parse("R99 + 1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, EvalArray(e, ctx, []int{2025, 2025, 2025}))
}

func TestEvalArray_Cumsum(t *testing.T) {
	ctx := ctxWith(4, map[string][]float64{"R1": {1, 2, 3, 4}})
	e, err := Parse("CUMSUM(R1)")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 6, 10}, EvalArray(e, ctx, []int{2025, 2025, 2025, 2025}))
}

func TestEvalArray_Shift(t *testing.T) {
	ctx := ctxWith(4, map[string][]float64{"R1": {1, 2, 3, 4}})
	e, err := Parse("SHIFT(R1, 2)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 2}, EvalArray(e, ctx, []int{2025, 2025, 2025, 2025}))
}

func TestEvalArray_PrevSumAndPrevVal(t *testing.T) {
	ctx := ctxWith(4, map[string][]float64{"R1": {1, 2, 3, 4}})
	ps, err := Parse("PREVSUM(R1)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 3, 6}, EvalArray(ps, ctx, nil))

	pv, err := Parse("PREVVAL(R1)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, EvalArray(pv, ctx, nil))
}

func TestEvalArray_CumsumY_AbsorbsAtYearBoundary(t *testing.T) {
	// Two years of 2 periods each: year total is absorbed using the FIRST
	// period's value of the completed year (bug-compatible quirk).
	ctx := ctxWith(4, map[string][]float64{"R1": {10, 20, 30, 40}})
	years := []int{2025, 2025, 2026, 2026}
	e, err := Parse("CUMSUM_Y(R1)")
	require.NoError(t, err)
	got := EvalArray(e, ctx, years)
	assert.Equal(t, []float64{0, 0, 10, 10}, got)
}

func TestEvalArray_CountNonZero(t *testing.T) {
	ctx := ctxWith(4, map[string][]float64{"R1": {0, 1, 0, 2}})
	e, err := Parse("COUNT(R1)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 2}, EvalArray(e, ctx, nil))
}

func TestEvalArray_IfAndMinMaxAbs(t *testing.T) {
	ctx := ctxWith(2, map[string][]float64{"R1": {-5, 5}})
	e, err := Parse("IF(R1 < 0, ABS(R1), MIN(R1, 100))")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5}, EvalArray(e, ctx, nil))
}

func TestEvalArray_RoundHalfAwayFromZero(t *testing.T) {
	ctx := refs.New(1)
	e, err := Parse("ROUND(2.5)")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, EvalArray(e, ctx, nil))

	e2, err := Parse("ROUND(-2.5)")
	require.NoError(t, err)
	assert.Equal(t, []float64{-3}, EvalArray(e2, ctx, nil))
}

func TestEvalAt_CumsumRecomputesFromScratch(t *testing.T) {
	ctx := ctxWith(4, map[string][]float64{"R1": {1, 2, 3, 4}})
	e, err := Parse("CUMSUM(R1)")
	require.NoError(t, err)
	assert.Equal(t, 1.0, EvalAt(e, ctx, 0))
	assert.Equal(t, 3.0, EvalAt(e, ctx, 1))
	assert.Equal(t, 6.0, EvalAt(e, ctx, 2))
}

func TestEvalAt_CumsumYIsUnsupportedInsideCluster(t *testing.T) {
	ctx := ctxWith(2, map[string][]float64{"R1": {10, 20}})
	e, err := Parse("CUMSUM_Y(R1)")
	require.NoError(t, err)
	assert.Equal(t, 0.0, EvalAt(e, ctx, 1))
}

func TestEvalAt_ShiftReadsPartiallyFilledContext(t *testing.T) {
	ctx := refs.New(3)
	ctx.Set("R1", []float64{0, 0, 0})
	e, err := Parse("SHIFT(R1, 1) + 1")
	require.NoError(t, err)
	// Simulate cluster fill-as-you-go: R1[0] becomes known before period 1 runs.
	arr, _ := ctx.Get("R1")
	arr[0] = 5
	assert.Equal(t, 6.0, EvalAt(e, ctx, 1))
}
