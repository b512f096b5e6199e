// Projection of the solved node set into per-symbol results, plus the
// accessibility check against earlier passes.

package erasure

import "sort"

// project partitions the solved node set: a Result node makes its symbol
// reachable, an Arg node marks one used position. A symbol with Arg nodes
// but no Result node is anomalous but not an error; it still appears in the
// usage map.
func project(used NodeSet) (reachable []Name, usage map[Name][]int) {
	usage = make(map[Name][]int)
	for n := range used {
		if n.Arg.IsResult() {
			reachable = append(reachable, n.Name)
			if _, ok := usage[n.Name]; !ok {
				usage[n.Name] = nil
			}
			continue
		}
		usage[n.Name] = append(usage[n.Name], n.Arg.Index())
	}

	sort.Slice(reachable, func(i, j int) bool { return reachable[i].Less(reachable[j]) })
	for n := range usage {
		sort.Ints(usage[n])
	}
	return reachable, usage
}

// checkAccessibility verifies that no used argument index was proven
// statically inaccessible by an earlier pass. Any overlap is a hard error
// reporting the offending indices.
func checkAccessibility(ctx *Context, usage map[Name][]int) error {
	names := make([]Name, 0, len(usage))
	for n := range usage {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })

	for _, n := range names {
		ann, ok := ctx.Annotations[n]
		if !ok || len(ann.Inaccessible) == 0 {
			continue
		}
		inacc := make(map[int]bool, len(ann.Inaccessible))
		for _, i := range ann.Inaccessible {
			inacc[i] = true
		}
		var overlap []int
		for _, i := range usage[n] {
			if inacc[i] {
				overlap = append(overlap, i)
			}
		}
		if len(overlap) > 0 {
			sort.Ints(overlap)
			return errInaccessibleButUsed(n, overlap)
		}
	}
	return nil
}

// writeBack stores the ascending used-argument indices of every reachable
// symbol into its call-graph entry, creating an empty one for symbols the
// call-graph pass never saw (pure data constructors).
func writeBack(ctx *Context, reachable []Name, usage map[Name][]int) {
	for _, n := range reachable {
		indices := usage[n]
		if indices == nil {
			indices = []int{}
		}
		ctx.CallGraph.SetUsedArgs(n, indices)
	}
}
