// External-interface types of the usage analyzer: the symbol table slice it
// reads and the call-graph table it writes results into.

package erasure

import "sort"

// ClassInfo describes one class: its dictionary constructor and the names of
// its fields in declaration order.
type ClassInfo struct {
	Ctor   Name
	Fields []Name
}

// Annotation carries the per-symbol optimization facts recorded by earlier
// passes that this analyzer consumes.
type Annotation struct {
	// Inaccessible lists argument indices proven statically inaccessible.
	// The analyzer must never find a runtime use of one of these.
	Inaccessible []int
}

// Primitive is one entry of the builtin primitive table.
type Primitive struct {
	Name  Name
	NArgs int
}

// CallGraphEntry is the per-symbol record the analyzer writes its result
// into. Calls and Group are populated by other passes; entries created here
// for pure data constructors leave them empty.
type CallGraphEntry struct {
	Calls    []Name
	Group    []Name
	UsedArgs []int
}

// CallGraph is the per-symbol call-graph table.
type CallGraph struct {
	entries map[Name]*CallGraphEntry
}

// NewCallGraph returns an empty call graph.
func NewCallGraph() *CallGraph {
	return &CallGraph{entries: make(map[Name]*CallGraphEntry)}
}

// Entry returns the record for n, creating an empty one if absent.
func (g *CallGraph) Entry(n Name) *CallGraphEntry {
	e, ok := g.entries[n]
	if !ok {
		e = &CallGraphEntry{}
		g.entries[n] = e
	}
	return e
}

// Lookup returns the record for n without creating one.
func (g *CallGraph) Lookup(n Name) (*CallGraphEntry, bool) {
	e, ok := g.entries[n]
	return e, ok
}

// SetUsedArgs stores the ascending used-argument indices for n.
func (g *CallGraph) SetUsedArgs(n Name, indices []int) {
	g.Entry(n).UsedArgs = indices
}

// Len returns the number of entries.
func (g *CallGraph) Len() int { return len(g.entries) }

// Names returns the recorded symbols in ascending order.
func (g *CallGraph) Names() []Name {
	ns := make([]Name, 0, len(g.entries))
	for n := range g.entries {
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].Less(ns[j]) })
	return ns
}

// Context is the slice of the compiler's global state the analyzer works
// against. Symbols maps a name to every visible definition for it; more
// than one is an ambiguity.
type Context struct {
	Symbols     map[Name][]Definition
	Classes     map[Name]ClassInfo
	Annotations map[Name]Annotation
	CallGraph   *CallGraph
	Primitives  []Primitive
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{
		Symbols:     make(map[Name][]Definition),
		Classes:     make(map[Name]ClassInfo),
		Annotations: make(map[Name]Annotation),
		CallGraph:   NewCallGraph(),
	}
}

// AddSymbol registers one definition for n.
func (c *Context) AddSymbol(n Name, d Definition) {
	c.Symbols[n] = append(c.Symbols[n], d)
}

// Resolve looks up the unique definition of n. A missing name is an
// unknown-reference error; multiple visible definitions are an
// ambiguous-reference error.
func (c *Context) Resolve(n Name) (Definition, error) {
	defs, ok := c.Symbols[n]
	if !ok || len(defs) == 0 {
		return nil, errUnknownReference(n)
	}
	if len(defs) > 1 {
		return nil, errAmbiguousReference(n, len(defs))
	}
	return defs[0], nil
}

// Arity returns the number of argument positions of n that a caller can
// meaningfully gate: the declared arity of a case-op (which may exceed the
// variables its tree binds), the declared arity of a constructor or opaque
// operator, and 0 for anything unknown or ambiguous.
func (c *Context) Arity(n Name) int {
	defs := c.Symbols[n]
	if len(defs) != 1 {
		return 0
	}
	switch d := defs[0].(type) {
	case *CaseOp:
		return d.Arity()
	case *Operator:
		return d.NArgs
	case *TyDecl:
		return d.NArgs
	default:
		return 0
	}
}
