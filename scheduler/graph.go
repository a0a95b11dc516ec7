// Package scheduler builds the dependency graph over formula and module
// output nodes, detects SHIFT-induced soft cycles, contracts them into
// evaluation clusters, and produces a topological run order.
package scheduler

import "sort"

// NodeKind distinguishes a plain formula node from a module-solver node.
type NodeKind int

const (
	KindCalculation NodeKind = iota
	KindModule
)

// Node is one schedulable unit: a calculation (R<id>) or a module (M<id>).
type Node struct {
	ID   string // "R12" or "M3"
	Kind NodeKind

	// HardDeps are nodes that must be fully evaluated before this one runs.
	HardDeps map[string]bool
	// ShiftTargets are nodes this node reads only through SHIFT/PREVSUM/
	// PREVVAL: candidates for soft-cycle clustering instead of a hard edge.
	ShiftTargets map[string]bool
}

// Cluster is a set of mutually soft-cyclical calculation nodes that must be
// evaluated together, period by period, rather than one full array at a
// time.
type Cluster struct {
	ID            int
	Members       []string // node ids, unordered
	InternalOrder []string // topological order within the cluster
}

// Plan is the scheduler's output: a topological run order plus the cluster
// membership needed to evaluate cluster nodes as a unit.
type Plan struct {
	Order         []string
	NodeToCluster map[string]int
	Clusters      map[int]*Cluster
}

// Build constructs the full schedule for a set of nodes: detects soft
// cycles, folds non-cyclical SHIFT dependencies into hard edges for
// ordering purposes, augments non-cluster consumers of a cluster member to
// depend on every member, and produces a Kahn's-algorithm topological
// order.
func Build(nodes map[string]*Node) *Plan {
	graph := make(map[string]map[string]bool, len(nodes))
	for id, n := range nodes {
		deps := make(map[string]bool, len(n.HardDeps))
		for d := range n.HardDeps {
			if _, ok := nodes[d]; ok {
				deps[d] = true
			}
		}
		graph[id] = deps
	}

	nodeToCluster, clusters := detectShiftCycles(nodes, graph)

	// Non-cyclical SHIFT targets become ordinary hard edges, so the
	// topological sort still places the producer before the consumer.
	for id, n := range nodes {
		for target := range n.ShiftTargets {
			if _, ok := graph[target]; !ok || target == id {
				continue
			}
			sameCluster := false
			if c1, ok1 := nodeToCluster[id]; ok1 {
				if c2, ok2 := nodeToCluster[target]; ok2 && c1 == c2 {
					sameCluster = true
				}
			}
			if !sameCluster {
				graph[id][target] = true
			}
		}
	}

	// A non-cluster node that depends on any cluster member depends on every
	// member: the cluster is evaluated as one atomic unit.
	if len(nodeToCluster) > 0 {
		for id, deps := range graph {
			if _, inCluster := nodeToCluster[id]; inCluster {
				continue
			}
			var augment []string
			for dep := range deps {
				if cid, ok := nodeToCluster[dep]; ok {
					augment = append(augment, clusters[cid].Members...)
				}
			}
			for _, m := range augment {
				deps[m] = true
			}
		}
	}

	order := topologicalSort(graph)

	if len(clusters) > 0 {
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, c := range clusters {
			sort.Slice(c.Members, func(i, j int) bool {
				return pos[c.Members[i]] < pos[c.Members[j]]
			})
			c.InternalOrder = append([]string(nil), c.Members...)
		}
	}

	return &Plan{Order: order, NodeToCluster: nodeToCluster, Clusters: clusters}
}

// topologicalSort runs Kahn's algorithm over graph, appending any node left
// over from an unresolved hard cycle at the end (in a deterministic order)
// rather than failing the whole run.
func topologicalSort(graph map[string]map[string]bool) []string {
	inDegree := make(map[string]int, len(graph))
	reverseAdj := make(map[string][]string, len(graph))
	for n := range graph {
		inDegree[n] = 0
		if _, ok := reverseAdj[n]; !ok {
			reverseAdj[n] = nil
		}
	}
	for node, deps := range graph {
		for dep := range deps {
			if _, ok := graph[dep]; ok {
				inDegree[node]++
				reverseAdj[dep] = append(reverseAdj[dep], node)
			}
		}
	}

	var queue []string
	for n, d := range inDegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	seen := make(map[string]bool, len(graph))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		seen[node] = true

		var newly []string
		for _, dependent := range reverseAdj[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				newly = append(newly, dependent)
			}
		}
		sort.Strings(newly)
		queue = append(queue, newly...)
	}

	var remaining []string
	for n := range graph {
		if !seen[n] {
			remaining = append(remaining, n)
		}
	}
	sort.Strings(remaining)
	order = append(order, remaining...)

	return order
}
