package engine

import (
	"sort"

	"github.com/availdb/adb/txn"
)

// detectDeadlocks computes strongly-connected components of the wait-for
// graph induced by currently-blocked transactions. Every SCC of size >= 2 is
// a cycle; from each such cycle the youngest (latest-created) member is
// marked a victim, removed from the working set, and the SCCs are
// recomputed, repeating until no cyclic SCC remains. Victims are then
// killed in descending creation-timestamp order.
func (m *Manager) detectDeadlocks() {
	blocked := m.filterStatus(txn.Blocked)
	if len(blocked) <= 1 {
		return
	}

	working := blocked
	var victims []txn.Transaction
	for {
		sccs := m.stronglyConnected(working)
		removed := make(map[string]bool)
		for _, scc := range sccs {
			if len(scc) < 2 {
				continue
			}
			v := youngest(scc)
			victims = append(victims, v)
			removed[v.Name()] = true
		}
		if len(removed) == 0 {
			break
		}
		var next []txn.Transaction
		for _, tx := range working {
			if !removed[tx.Name()] {
				next = append(next, tx)
			}
		}
		working = next
	}

	sort.Slice(victims, func(i, j int) bool {
		if victims[i].CreatedAt() != victims[j].CreatedAt() {
			return victims[i].CreatedAt() > victims[j].CreatedAt()
		}
		return victims[i].Name() > victims[j].Name()
	})
	for _, v := range victims {
		v.Kill()
		m.finish(v)
	}
}

func youngest(scc []txn.Transaction) txn.Transaction {
	best := scc[0]
	for _, tx := range scc[1:] {
		if tx.CreatedAt() > best.CreatedAt() ||
			(tx.CreatedAt() == best.CreatedAt() && tx.Name() > best.Name()) {
			best = tx
		}
	}
	return best
}

// stronglyConnected computes the SCCs of the wait-for graph restricted to
// group, via two-pass (Kosaraju) DFS: a forward pass over wait-for edges
// recording finish order, then a pass over the transpose (waited-by) edges
// in reverse finish order, each reachable set being one SCC.
func (m *Manager) stronglyConnected(group []txn.Transaction) [][]txn.Transaction {
	inGroup := make(map[string]txn.Transaction, len(group))
	for _, tx := range group {
		inGroup[tx.Name()] = tx
	}

	visited := make(map[string]bool, len(group))
	var order []string
	var fillOrder func(name string)
	fillOrder = func(name string) {
		visited[name] = true
		for next := range m.waitFor[name] {
			if _, ok := inGroup[next]; !ok {
				continue
			}
			if !visited[next] {
				fillOrder(next)
			}
		}
		order = append(order, name)
	}
	for _, tx := range group {
		if !visited[tx.Name()] {
			fillOrder(tx.Name())
		}
	}

	for name := range visited {
		visited[name] = false
	}
	var sccs [][]txn.Transaction
	var collect func(name string, scc *[]txn.Transaction)
	collect = func(name string, scc *[]txn.Transaction) {
		visited[name] = true
		*scc = append(*scc, inGroup[name])
		for next := range m.waitedBy[name] {
			if _, ok := inGroup[next]; !ok {
				continue
			}
			if !visited[next] {
				collect(next, scc)
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if !visited[name] {
			var scc []txn.Transaction
			collect(name, &scc)
			sccs = append(sccs, scc)
		}
	}
	return sccs
}
