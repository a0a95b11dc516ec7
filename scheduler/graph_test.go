package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/glassbox/formula"
)

func mustParse(t *testing.T, src string) *formula.Expr {
	t.Helper()
	e, err := formula.Parse(src)
	require.NoError(t, err)
	return e
}

func TestBuild_SimpleChainOrdersByDependency(t *testing.T) {
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "10")),
		"R2": NewCalculationNode("R2", mustParse(t, "R1 + 1")),
		"R3": NewCalculationNode("R3", mustParse(t, "R2 + 1")),
	}
	plan := Build(nodes)

	pos := indexOf(plan.Order)
	assert.Less(t, pos["R1"], pos["R2"])
	assert.Less(t, pos["R2"], pos["R3"])
	assert.Empty(t, plan.NodeToCluster)
}

func TestBuild_SoftCycleBecomesCluster(t *testing.T) {
	// R1 depends on R2 (hard); R2 reads R1 only through SHIFT, which would
	// otherwise be a hard cycle R1->R2->R1.
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "R2 + 1")),
		"R2": NewCalculationNode("R2", mustParse(t, "SHIFT(R1, 1) + 1")),
	}
	plan := Build(nodes)

	require.Len(t, plan.Clusters, 1)
	cid, ok := plan.NodeToCluster["R1"]
	require.True(t, ok)
	assert.Equal(t, cid, plan.NodeToCluster["R2"])

	cluster := plan.Clusters[cid]
	assert.ElementsMatch(t, []string{"R1", "R2"}, cluster.Members)
	assert.ElementsMatch(t, []string{"R1", "R2"}, cluster.InternalOrder)
}

func TestBuild_NonCyclicalShiftIsOrderingEdgeOnly(t *testing.T) {
	// R2 lags R1 via SHIFT but there's no cycle back to R1, so no cluster
	// should form; R1 must still be ordered before R2.
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "10")),
		"R2": NewCalculationNode("R2", mustParse(t, "SHIFT(R1, 1)")),
	}
	plan := Build(nodes)

	assert.Empty(t, plan.NodeToCluster)
	pos := indexOf(plan.Order)
	assert.Less(t, pos["R1"], pos["R2"])
}

func TestBuild_NonClusterConsumerDependsOnAllClusterMembers(t *testing.T) {
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "R2 + 1")),
		"R2": NewCalculationNode("R2", mustParse(t, "SHIFT(R1, 1) + 1")),
		"R3": NewCalculationNode("R3", mustParse(t, "R1 + 1")),
	}
	plan := Build(nodes)

	pos := indexOf(plan.Order)
	assert.Less(t, pos["R1"], pos["R3"])
	assert.Less(t, pos["R2"], pos["R3"])
}

func TestBuild_ModuleNodeParticipatesInOrdering(t *testing.T) {
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "10")),
		"M1": NewModuleNode("M1", map[string]bool{"R1": true}),
		"R2": NewCalculationNode("R2", mustParse(t, "M1 + 1")),
	}
	plan := Build(nodes)

	pos := indexOf(plan.Order)
	assert.Less(t, pos["R1"], pos["M1"])
	assert.Less(t, pos["M1"], pos["R2"])
}

func TestBuild_UnresolvedHardCycleIsAppendedNotDropped(t *testing.T) {
	nodes := map[string]*Node{
		"R1": NewCalculationNode("R1", mustParse(t, "R2")),
		"R2": NewCalculationNode("R2", mustParse(t, "R1")),
	}
	plan := Build(nodes)
	assert.ElementsMatch(t, []string{"R1", "R2"}, plan.Order)
}

func indexOf(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, id := range order {
		m[id] = i
	}
	return m
}
