// Forward-chaining solver tests: discharge, cycles, residuals, and the
// closure/minimality/monotonicity properties.

package erasure

import "testing"

func node(name string, arg Arg) Node {
	return Node{Name: UserName(name), Arg: arg}
}

// Test that an empty map solves to an empty set in zero rounds.
func TestSolverEmpty(t *testing.T) {
	used, residual, rounds := solve(NewDeps())

	if len(used) != 0 {
		t.Errorf("used = %s, want empty", used)
	}
	if residual.Len() != 0 {
		t.Errorf("residual has %d edges, want 0", residual.Len())
	}
	if rounds != 0 {
		t.Errorf("rounds = %d, want 0", rounds)
	}
}

// Test that conditions discharge transitively through multiple rounds.
func TestSolverChain(t *testing.T) {
	a := node("a", Result)
	b := node("b", Result)
	c := node("c", ArgPos(0))

	deps := NewDeps()
	deps.Add(CondOf(), a)
	deps.Add(CondOf(a), b)
	deps.Add(CondOf(a, b), c)

	used, residual, _ := solve(deps)

	for _, n := range []Node{a, b, c} {
		if !used.Contains(n) {
			t.Errorf("%s missing from solved set %s", n, used)
		}
	}
	if residual.Len() != 0 {
		t.Errorf("residual = %s, want empty", residual)
	}
}

// Test that cyclic implications terminate and solve fully.
func TestSolverCycle(t *testing.T) {
	a := node("a", Result)
	b := node("b", Result)

	deps := NewDeps()
	deps.Add(CondOf(), a)
	deps.Add(CondOf(a), b)
	deps.Add(CondOf(b), a)

	used, residual, _ := solve(deps)

	if !used.Contains(a) || !used.Contains(b) {
		t.Errorf("solved set %s should contain both nodes", used)
	}
	if residual.Len() != 0 {
		t.Errorf("residual = %s, want empty", residual)
	}
}

// Test that edges whose conditions never discharge survive as residuals.
func TestSolverResidual(t *testing.T) {
	a := node("a", Result)
	b := node("b", Result)
	c := node("c", Result)
	d := node("d", Result)

	deps := NewDeps()
	deps.Add(CondOf(), a)
	deps.Add(CondOf(a), b)
	deps.Add(CondOf(c), d)

	used, residual, _ := solve(deps)

	if used.Contains(d) {
		t.Errorf("%s should not be derivable", d)
	}
	if residual.Len() != 1 {
		t.Fatalf("residual has %d edges, want 1", residual.Len())
	}
	if _, ok := residual.Lookup(CondOf(c)); !ok {
		t.Errorf("residual %s lacks the undischarged edge", residual)
	}
}

// Test that partially discharged conditions are rekeyed and their values
// combined by union.
func TestSolverRekeyUnion(t *testing.T) {
	a := node("a", Result)
	b := node("b", Result)
	c := node("c", Result)
	d := node("d", Result)

	deps := NewDeps()
	deps.Add(CondOf(), a)
	deps.Add(CondOf(a, b), c)
	deps.Add(CondOf(b), d)

	used, residual, _ := solve(deps)

	if used.Contains(c) || used.Contains(d) {
		t.Errorf("nothing gated on %s should solve, got %s", b, used)
	}
	// Both edges collapse onto the key {b}.
	if residual.Len() != 1 {
		t.Fatalf("residual has %d edges, want 1 after rekeying", residual.Len())
	}
	uses, ok := residual.Lookup(CondOf(b))
	if !ok {
		t.Fatalf("residual %s lacks the rekeyed condition", residual)
	}
	if !uses.Contains(c) || !uses.Contains(d) {
		t.Errorf("rekeyed values %s should be unioned", uses)
	}
}

// fixtureDeps is a small graph with one cycle and one undischargeable edge.
func fixtureDeps() *Deps {
	a := node("a", Result)
	b := node("b", ArgPos(0))
	c := node("c", Result)
	e := node("e", Result)

	deps := NewDeps()
	deps.Add(CondOf(), a)
	deps.Add(CondOf(a), b)
	deps.Add(CondOf(a, b), c)
	deps.Add(CondOf(c), a)
	deps.Add(CondOf(e), e)
	return deps
}

// Test closure: for every input edge whose condition is contained in the
// solved set, the conclusion is contained too.
func TestSolverClosure(t *testing.T) {
	deps := fixtureDeps()
	used, _, _ := solve(deps)

	for _, e := range deps.Edges() {
		satisfied := true
		for n := range e.Cond {
			if !used.Contains(n) {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		for n := range e.Uses {
			if !used.Contains(n) {
				t.Errorf("closure violated: %s -> %s but %s unsolved", e.Cond, e.Uses, n)
			}
		}
	}
}

// Test minimality: the solved set equals the least fixed point computed by
// naive iteration from the empty set.
func TestSolverMinimality(t *testing.T) {
	deps := fixtureDeps()
	used, _, _ := solve(deps)

	least := make(NodeSet)
	for changed := true; changed; {
		changed = false
		for _, e := range deps.Edges() {
			satisfied := true
			for n := range e.Cond {
				if !least.Contains(n) {
					satisfied = false
					break
				}
			}
			if !satisfied {
				continue
			}
			for n := range e.Uses {
				if !least.Contains(n) {
					least.Add(n)
					changed = true
				}
			}
		}
	}

	if len(least) != len(used) {
		t.Fatalf("solver found %s, naive iteration found %s", used, least)
	}
	for n := range least {
		if !used.Contains(n) {
			t.Errorf("%s derivable but missing from solved set", n)
		}
	}
}

// Test monotonicity: adding an unconditional edge can only grow the solved
// set.
func TestSolverMonotonicity(t *testing.T) {
	deps := fixtureDeps()
	before, _, _ := solve(deps)

	extra := node("extra", Result)
	grown := deps.clone()
	grown.Add(CondOf(), extra)
	after, _, _ := solve(grown)

	for n := range before {
		if !after.Contains(n) {
			t.Errorf("%s lost after adding an unconditional edge", n)
		}
	}
	if !after.Contains(extra) {
		t.Errorf("added node missing from %s", after)
	}
}

// Test that the input map is left untouched by solving.
func TestSolverInputImmutable(t *testing.T) {
	deps := fixtureDeps()
	edgesBefore := deps.Len()

	solve(deps)

	if deps.Len() != edgesBefore {
		t.Errorf("solver mutated its input: %d edges, want %d", deps.Len(), edgesBefore)
	}
	if _, ok := deps.Lookup(CondOf()); !ok {
		t.Error("solver removed the unconditional edge from its input")
	}
}
