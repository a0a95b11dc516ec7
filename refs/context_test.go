package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	ctx := New(4)
	ctx.Set("R1", []float64{1, 2, 3, 4})
	arr, ok := ctx.Get("R1")
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4}, arr)
}

func TestGet_Unknown(t *testing.T) {
	ctx := New(4)
	_, ok := ctx.Get("R99")
	assert.False(t, ok)
}

func TestSet_ResizesMismatchedLength(t *testing.T) {
	ctx := New(3)
	ctx.Set("C1", []float64{5, 5})
	arr, _ := ctx.Get("C1")
	assert.Equal(t, []float64{5, 5, 0}, arr)
}

func TestSetScalar_Broadcasts(t *testing.T) {
	ctx := New(3)
	ctx.SetScalar("I1", 1.0)
	arr, _ := ctx.Get("I1")
	assert.Equal(t, []float64{1, 1, 1}, arr)
}

func TestIntern_StableAcrossCalls(t *testing.T) {
	ctx := New(2)
	id1 := ctx.Intern("R1")
	id2 := ctx.Intern("R1")
	assert.Equal(t, id1, id2)
}

func TestMerge(t *testing.T) {
	ctx := New(2)
	ctx.Merge(map[string][]float64{"R1": {1, 1}, "R2": {2, 2}})
	arr, ok := ctx.Get("R2")
	assert.True(t, ok)
	assert.Equal(t, []float64{2, 2}, arr)
}
