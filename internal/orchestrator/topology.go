package orchestrator

import "sort"

// Topology describes the load order computed from a table's foreign-key
// graph: Order lists tables grouped into strongly-connected components
// (each inner slice is one SCC, in dependency order — a component's
// dependencies all appear in earlier components); Deferred names every
// table whose foreign keys must wait for the post-step, which is every
// table belonging to an SCC with more than one member (a genuine cycle).
type Topology struct {
	Order    [][]string
	Deferred map[string]bool
}

// BuildTopology runs Tarjan's strongly-connected-components algorithm
// over the directed graph edges[A] = {B, ...} meaning "A references B".
// A single-table SCC with no self-reference is an ordinary dependency
// level; an SCC of size > 1 (or a table referencing itself) is a cycle,
// and every FK belonging to its members is deferred to the orchestrator's
// post-step rather than blocking load order.
func BuildTopology(tables []string, edges map[string][]string) Topology {
	t := &tarjan{
		edges:   edges,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	// Sort input for deterministic output across runs with the same graph.
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	for _, n := range sorted {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}

	deferred := map[string]bool{}
	for _, scc := range t.components {
		isCycle := len(scc) > 1
		if len(scc) == 1 {
			for _, dep := range edges[scc[0]] {
				if dep == scc[0] {
					isCycle = true
				}
			}
		}
		if isCycle {
			for _, n := range scc {
				deferred[n] = true
			}
		}
	}

	// Tarjan emits a component only after every component it references
	// has been emitted, so t.components already lists dependencies before
	// dependents, which is the load order the orchestrator needs.
	order := make([][]string, len(t.components))
	for i, scc := range t.components {
		sort.Strings(scc)
		order[i] = scc
	}

	return Topology{Order: order, Deferred: deferred}
}

type tarjan struct {
	edges      map[string][]string
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	counter    int
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	neighbors := append([]string(nil), t.edges[v]...)
	sort.Strings(neighbors)
	for _, w := range neighbors {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.components = append(t.components, scc)
	}
}
