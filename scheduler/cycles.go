package scheduler

import "sort"

// detectShiftCycles finds every SHIFT/PREVSUM/PREVVAL target from which the
// node that reads it is reachable over hard edges (the target depends,
// directly or transitively, on its reader): that's a soft cycle (the lag
// reference legitimately depends on a value not yet known this pass) and
// must be evaluated period-by-period as one cluster rather than scheduled
// with a plain topological edge.
func detectShiftCycles(nodes map[string]*Node, graph map[string]map[string]bool) (map[string]int, map[int]*Cluster) {
	nodeToCluster := map[string]int{}
	clusters := map[int]*Cluster{}

	reachable := func(start, target string) bool {
		if start == target {
			return true
		}
		visited := map[string]bool{start: true}
		queue := []string{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for dep := range graph[cur] {
				if dep == target {
					return true
				}
				if !visited[dep] {
					if _, ok := graph[dep]; ok {
						visited[dep] = true
						queue = append(queue, dep)
					}
				}
			}
		}
		return false
	}

	var cycleSets []map[string]bool

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := nodes[id]
		if n.Kind != KindCalculation {
			continue
		}
		for target := range n.ShiftTargets {
			if _, ok := graph[target]; !ok {
				continue
			}
			if reachable(target, id) {
				cycle := map[string]bool{id: true, target: true}
				for other := range graph {
					if reachable(target, other) && reachable(other, id) {
						cycle[other] = true
					}
				}
				cycleSets = append(cycleSets, cycle)
			}
		}
	}

	if len(cycleSets) == 0 {
		return nodeToCluster, clusters
	}

	merged := mergeOverlapping(cycleSets)

	for cid, set := range merged {
		var members []string
		for n := range set {
			members = append(members, n)
		}
		sort.Strings(members)
		for n := range set {
			nodeToCluster[n] = cid
		}
		clusters[cid] = &Cluster{ID: cid, Members: members}
	}

	return nodeToCluster, clusters
}

// mergeOverlapping unions any two sets sharing at least one element in a
// single left-to-right pass: each input set is merged into the first
// already-merged set it intersects, or starts a new one. This mirrors the
// original engine's cluster merge, including its single-pass (not
// fixpoint) behavior — a set merged late into an accumulator is not
// re-checked against earlier accumulators it might now also intersect.
func mergeOverlapping(sets []map[string]bool) []map[string]bool {
	var merged []map[string]bool
	for _, s := range sets {
		mergedInto := -1
		for i, m := range merged {
			if intersects(s, m) {
				mergedInto = i
				break
			}
		}
		if mergedInto >= 0 {
			for k := range s {
				merged[mergedInto][k] = true
			}
		} else {
			cp := make(map[string]bool, len(s))
			for k := range s {
				cp[k] = true
			}
			merged = append(merged, cp)
		}
	}
	return merged
}

func intersects(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
