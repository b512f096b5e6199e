// Fixed-point solver: forward chaining over the conditional dependency map.

package erasure

// solve computes the minimal node set implied by the empty condition.
//
// Each round takes the nodes under the empty condition, adds them to the
// used set, and discharges them from every remaining condition, unioning
// conclusions whose conditions collide. Rounds repeat until no edge is
// unconditional. Every round strictly shrinks either the number of
// conditions or their aggregate size, so the loop terminates.
//
// The input map is not modified. The returned residual holds the edges
// whose conditions never fully discharged.
func solve(deps *Deps) (used NodeSet, residual *Deps, rounds int) {
	used = make(NodeSet)
	work := deps.clone()

	for {
		triggered, ok := work.Lookup(CondOf())
		if !ok {
			break
		}
		rounds++
		used.Union(triggered)

		next := NewDeps()
		for _, e := range work.edges {
			if len(e.Cond) == 0 {
				continue
			}
			next.AddSet(e.Cond.Minus(triggered), e.Uses)
		}
		work = next
	}

	return used, work, rounds
}
