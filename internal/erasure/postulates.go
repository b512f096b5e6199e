// Postulate injection: edges that cannot be derived from the program text.

package erasure

// injectPostulates seeds deps with the unconditional usage facts of §4.1:
// the entry point's result, the I/O runner, the builtin pair constructor,
// the fork primitive, the selective believe_me coercion, and every other
// primitive the program actually references with all of its positions
// marked used. The foreign-call wrappers are not seeded; their type-spec
// argument is dropped at call sites instead.
func injectPostulates(deps *Deps, ctx *Context, entry Name) {
	always := CondOf()

	deps.Add(always, Node{entry, Result})
	deps.Add(always, Node{RunIOName, Result}, Node{RunIOName, ArgPos(0)})
	deps.Add(always, Node{MkPairName, ArgPos(0)}, Node{MkPairName, ArgPos(1)})
	deps.Add(always, Node{ForkName, ArgPos(0)})
	deps.Add(always, Node{BelieveMeName, ArgPos(2)})

	// Remaining primitives are strict: if the program references one, every
	// argument position survives to runtime.
	referenced := deps.Names()
	for _, p := range ctx.Primitives {
		if p.Name == BelieveMeName || p.Name == ForkName {
			continue
		}
		if _, ok := referenced[p.Name]; !ok {
			continue
		}
		for i := 0; i < p.NArgs; i++ {
			deps.Add(always, Node{p.Name, ArgPos(i)})
		}
	}
}
