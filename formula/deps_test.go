package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardDeps_ExcludesShiftedRefs(t *testing.T) {
	e, err := Parse("R1 + SHIFT(R2, 1) + PREVSUM(R3)")
	require.NoError(t, err)

	hard := e.HardDeps()
	assert.True(t, hard["R1"])
	assert.False(t, hard["R2"])
	assert.False(t, hard["R3"])
}

func TestShiftTargets_OnlyLaggedRefs(t *testing.T) {
	e, err := Parse("R1 + SHIFT(R2, 1) + PREVVAL(R3)")
	require.NoError(t, err)

	targets := e.ShiftTargets()
	assert.False(t, targets["R1"])
	assert.True(t, targets["R2"])
	assert.True(t, targets["R3"])
}

func TestHardDeps_IgnoresNonSchedulableRefs(t *testing.T) {
	e, err := Parse("V1 + T.DiM + R5")
	require.NoError(t, err)
	hard := e.HardDeps()
	assert.Equal(t, map[string]bool{"R5": true}, hard)
}

func TestHardDeps_ModuleRefCollapsesToNodeID(t *testing.T) {
	e, err := Parse("M3.1 + M3.2")
	require.NoError(t, err)
	hard := e.HardDeps()
	assert.Equal(t, map[string]bool{"M3": true}, hard)
}

func TestShiftTargets_ExcludesModuleRefs(t *testing.T) {
	// Only R-refs are soft targets: a lagged module output is never a
	// soft/cluster-eligible target the way a lagged R-ref is.
	e, err := Parse("SHIFT(M3.1, 2)")
	require.NoError(t, err)
	assert.Empty(t, e.ShiftTargets())
}

func TestHardDeps_SkipsShiftLagArgument(t *testing.T) {
	// The second argument to SHIFT is a literal lag count, never a ref, and
	// must not appear in either dependency set even though it parses fine.
	e, err := Parse("SHIFT(R1, 2)")
	require.NoError(t, err)
	assert.Empty(t, e.HardDeps())
	assert.True(t, e.ShiftTargets()["R1"])
}
