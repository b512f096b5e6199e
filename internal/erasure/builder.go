// Conditional dependency graph construction. Starting from the entry
// symbol, each reachable definition's runtime case tree is walked once and
// every reference it makes is recorded as an edge gated by a conjunction of
// "argument position is used" assumptions.

package erasure

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// thunk is one entry of the de Bruijn binder stack. A lambda or Pi pushes a
// constant-empty thunk; a let pushes one that analyzes its bound term under
// whatever condition the binder is referenced at.
type thunk func(cond Cond) (*Deps, error)

func emptyThunk(Cond) (*Deps, error) { return NewDeps(), nil }

// builder owns the traversal state of one analysis run. The visited set and
// the accumulator are the only shared mutable state; both are guarded by mu
// so independent definitions can be analyzed concurrently.
type builder struct {
	ctx  *Context
	opts Options

	mu      sync.Mutex
	visited map[Name]struct{}
	deps    *Deps
}

func newBuilder(ctx *Context, opts Options) *builder {
	return &builder{
		ctx:     ctx,
		opts:    opts,
		visited: make(map[Name]struct{}),
		deps:    NewDeps(),
	}
}

// build traverses every definition reachable from entry and returns the
// accumulated dependency map. Each frontier of unvisited names is analyzed
// concurrently; the per-name maps are merged key-wise, which is commutative,
// so the result does not depend on scheduling.
func (b *builder) build(gctx context.Context, entry Name) (*Deps, error) {
	workers := b.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	frontier := []Name{entry}
	b.visited[entry] = struct{}{}

	for len(frontier) > 0 {
		results := make([]*Deps, len(frontier))
		g, wctx := errgroup.WithContext(gctx)
		g.SetLimit(workers)

		for i, n := range frontier {
			i, n := i, n
			g.Go(func() error {
				if err := wctx.Err(); err != nil {
					return err
				}
				d, err := b.getDeps(n)
				if err != nil {
					return err
				}
				results[i] = d
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		b.mu.Lock()
		for _, d := range results {
			b.deps.Merge(d)
		}
		var next []Name
		for n := range b.deps.Names() {
			if _, seen := b.visited[n]; seen {
				continue
			}
			b.visited[n] = struct{}{}
			next = append(next, n)
		}
		b.mu.Unlock()

		sort.Slice(next, func(i, j int) bool { return next[i].Less(next[j]) })
		frontier = next
	}

	return b.deps, nil
}

// definitionsVisited returns how many symbols the traversal covered.
func (b *builder) definitionsVisited() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.visited)
}

// getDeps computes the dependency map contributed by one definition.
func (b *builder) getDeps(n Name) (*Deps, error) {
	def, err := b.ctx.Resolve(n)
	if err != nil {
		return nil, err
	}
	switch d := def.(type) {
	case *TyDecl, *Operator:
		return NewDeps(), nil
	case *Function:
		return nil, errUnsupported("unelaborated function body", n.String())
	case *CaseOp:
		return b.caseOpDeps(n, d)
	default:
		return nil, errUnsupported("unknown definition shape", n.String())
	}
}

// caseOpDeps seeds the variable environment with the definition's formal
// parameters, eta-expands a partially applied tree up to the declared
// arity, and analyzes the tree.
func (b *builder) caseOpDeps(fn Name, op *CaseOp) (*Deps, error) {
	vs := make(Vars, op.Arity())
	for i, v := range op.Params {
		vs[v] = Nodes(Node{fn, ArgPos(i)})
	}

	var etas []Name
	for i := len(op.Params); i < op.Arity(); i++ {
		e := MachineName(i, "eta")
		etas = append(etas, e)
		vs[e] = Nodes(Node{fn, ArgPos(i)})
	}

	return b.caseTreeDeps(fn, etas, vs, op.Tree)
}

// caseTreeDeps walks one case-tree node.
func (b *builder) caseTreeDeps(fn Name, etas []Name, vs Vars, tree CaseTree) (*Deps, error) {
	switch t := tree.(type) {
	case *ImpossibleCase, *UnmatchedCase:
		return NewDeps(), nil

	case *STerm:
		// Everything in a leaf body is gated on the function's result
		// being demanded.
		return b.termDeps(vs, nil, CondOf(Node{fn, Result}), etaExpand(t.Term, etas))

	case *Case:
		casedVar, ok := vs[t.Var]
		if !ok {
			return nil, errStrayVariable(t.Var)
		}
		// Scrutinizing the variable uses it, but only when the function's
		// result is used.
		deps := NewDeps()
		deps.AddSet(CondOf(Node{fn, Result}), casedVar)
		for _, alt := range t.Alts {
			ad, err := b.altDeps(fn, etas, vs, casedVar, alt)
			if err != nil {
				return nil, err
			}
			deps.Merge(ad)
		}
		return deps, nil

	case *ProjCase:
		return nil, errUnsupported("projection case", fn.String())

	default:
		return nil, errUnsupported("unknown case-tree shape", fn.String())
	}
}

// altDeps refines the variable environment for one alternative and recurses
// into its subtree.
func (b *builder) altDeps(fn Name, etas []Name, vs Vars, casedVar NodeSet, alt Alt) (*Deps, error) {
	switch a := alt.(type) {
	case *ConstCase:
		return b.caseTreeDeps(fn, etas, vs, a.Tree)

	case *DefaultCase:
		return b.caseTreeDeps(fn, etas, vs, a.Tree)

	case *SucCase:
		// Successor is transparent: the predecessor inherits the
		// scrutinee's dependencies verbatim.
		nvs := vs.clone()
		nvs[a.Param] = casedVar
		return b.caseTreeDeps(fn, etas, nvs, a.Tree)

	case *ConCase:
		// A pattern variable inherits the scrutinee's dependencies plus
		// the fact that its field of the constructor must be used.
		nvs := vs.clone()
		for j, p := range a.Params {
			nvs[p] = casedVar.CloneWith(Node{a.Con, ArgPos(j)})
		}
		return b.caseTreeDeps(fn, etas, nvs, a.Tree)

	case *FnCase:
		return nil, errUnsupported("function case", fn.String())

	default:
		return nil, errUnsupported("unknown alternative shape", fn.String())
	}
}

// termDeps analyzes one term under the given condition.
func (b *builder) termDeps(vs Vars, bs []thunk, cd Cond, t Term) (*Deps, error) {
	switch tm := t.(type) {
	case *Ref:
		return b.refDeps(vs, cd, tm.Name)

	case *Loc:
		th, err := stackAt(bs, tm.Index)
		if err != nil {
			return nil, err
		}
		return th(cd)

	case *Bind:
		switch tm.Kind {
		case BindLam, BindPi:
			return b.termDeps(vs, append(bs, emptyThunk), cd, tm.Body)
		case BindLet, BindLetLazy:
			// The bound term contributes only when the binder is
			// referenced, under whatever condition holds at the
			// reference.
			val := tm.Val
			saved := bs
			th := func(c Cond) (*Deps, error) {
				return b.termDeps(vs, saved, c, val)
			}
			return b.termDeps(vs, append(bs, th), cd, tm.Body)
		default:
			return nil, errUnsupported("unknown binder shape", tm.String())
		}

	case *App:
		head, args := unApply(tm)
		return b.appDeps(vs, bs, cd, head, args)

	case *Proj:
		return b.termDeps(vs, bs, cd, tm.Tm)

	case *Const, *TType, *Erased, *Impossible:
		return NewDeps(), nil

	default:
		return nil, errUnsupported("unknown term shape", t.String())
	}
}

// refDeps handles a bare name reference. Bound names yield their recorded
// dependencies; anything else is a global whose result is demanded, except
// that a non-whitelisted machine name escaping its binder is a bug in an
// earlier pass.
func (b *builder) refDeps(vs Vars, cd Cond, n Name) (*Deps, error) {
	deps := NewDeps()
	if set, ok := vs[n]; ok {
		deps.AddSet(cd, set)
		return deps, nil
	}
	if n.IsMachine() && !n.Visible() {
		return nil, errStrayVariable(n)
	}
	deps.Add(cd, Node{n, Result})
	return deps, nil
}

// appDeps dispatches on the head of an application spine.
func (b *builder) appDeps(vs Vars, bs []thunk, cd Cond, head Term, args []Term) (*Deps, error) {
	switch h := head.(type) {
	case *Ref:
		switch {
		case h.Kind == RefTypeCon:
			// Type constructors exist only at compile time; the
			// arguments may still contain runtime references.
			return b.argsDeps(vs, bs, cd, args)

		case h.Kind == RefDataCon:
			return b.nodeDeps(vs, bs, cd, h.Name, args)

		case h.Name == MkForeignName || h.Name == MkForeignPrimName || h.Name == MkLazyForeignPrimName:
			// The first argument is the compile-time type spec.
			if len(args) > 0 {
				args = args[1:]
			}
			return b.argsDeps(vs, bs, cd, args)

		default:
			if set, ok := vs[h.Name]; ok {
				// A bound variable in head position may itself be a
				// function, so its arguments are all live.
				deps, err := b.argsDeps(vs, bs, cd, args)
				if err != nil {
					return nil, err
				}
				deps.AddSet(cd, set)
				return deps, nil
			}
			if h.Name.IsMachine() && !h.Name.Visible() {
				return nil, errStrayVariable(h.Name)
			}
			return b.nodeDeps(vs, bs, cd, h.Name, args)
		}

	case *Loc:
		th, err := stackAt(bs, h.Index)
		if err != nil {
			return nil, err
		}
		deps, err := th(cd)
		if err != nil {
			return nil, err
		}
		ad, err := b.argsDeps(vs, bs, cd, args)
		if err != nil {
			return nil, err
		}
		deps.Merge(ad)
		return deps, nil

	case *Bind:
		switch {
		case h.Kind == BindLam && len(args) > 0:
			// (\x. body) a  ==>  let x = a in body, preserving de Bruijn
			// numbering.
			let := &Bind{Var: h.Var, Kind: BindLet, Val: args[0], Body: h.Body}
			return b.termDeps(vs, bs, cd, Apply(let, args[1:]...))

		case (h.Kind == BindLet || h.Kind == BindLetLazy) && len(args) > 0:
			// (let x = t in body) a  ==>  let x = t in (body a).
			inner := &Bind{Var: h.Var, Kind: h.Kind, Val: h.Val, Body: Apply(h.Body, args...)}
			return b.termDeps(vs, bs, cd, inner)

		default:
			return nil, errUnsupported("applied binder shape", h.String())
		}

	case *Proj:
		return b.projHeadDeps(vs, bs, cd, h, args)

	case *Erased, *TType:
		return b.argsDeps(vs, bs, cd, args)

	default:
		return nil, errUnsupported("application head shape", head.String())
	}
}

// projHeadDeps handles a projection in head position. The recognized shape
// is a field selection out of a class-dictionary instance constructor,
// which turns into a usage of that field of the class's dictionary
// constructor. Anything else is rejected unless the caller opted into the
// conservative fallback.
func (b *builder) projHeadDeps(vs Vars, bs []thunk, cd Cond, h *Proj, args []Term) (*Deps, error) {
	if ref, ok := h.Tm.(*Ref); ok {
		if class, isInst := ref.Name.InstanceClass(); isInst {
			info, known := b.ctx.Classes[class]
			if !known {
				return nil, errUnknownReference(class)
			}
			deps, err := b.argsDeps(vs, bs, cd, args)
			if err != nil {
				return nil, err
			}
			deps.Add(cd, Node{info.Ctor, ArgPos(h.Field)}, Node{ref.Name, Result})
			return deps, nil
		}
	}

	if b.opts.ConservativeProjection {
		return b.conservativeProjDeps(vs, bs, cd, h, args)
	}
	return nil, errUnsupported("applied projection head", h.String())
}

// conservativeProjDeps over-approximates an unrecognized projection head:
// the projected term and every argument are analyzed under the current
// condition, and a directly projected global is marked fully used.
func (b *builder) conservativeProjDeps(vs Vars, bs []thunk, cd Cond, h *Proj, args []Term) (*Deps, error) {
	deps, err := b.termDeps(vs, bs, cd, h.Tm)
	if err != nil {
		return nil, err
	}
	ad, err := b.argsDeps(vs, bs, cd, args)
	if err != nil {
		return nil, err
	}
	deps.Merge(ad)

	if ref, ok := h.Tm.(*Ref); ok {
		if _, bound := vs[ref.Name]; !bound {
			full := Nodes(Node{ref.Name, Result})
			for i := 0; i < b.ctx.Arity(ref.Name); i++ {
				full.Add(Node{ref.Name, ArgPos(i)})
			}
			deps.AddSet(cd, full)
		}
	}
	return deps, nil
}

// nodeDeps applies the node rule for a call of global n: calling n demands
// its result, and each argument within n's declared arity contributes only
// under the extra assumption that its position is used. Arguments beyond
// the arity are analyzed under the unmodified condition.
func (b *builder) nodeDeps(vs Vars, bs []thunk, cd Cond, n Name, args []Term) (*Deps, error) {
	deps := NewDeps()
	deps.Add(cd, Node{n, Result})

	arity := b.ctx.Arity(n)
	for i, a := range args {
		c := cd
		if i < arity {
			c = cd.With(Node{n, ArgPos(i)})
		}
		ad, err := b.termDeps(vs, bs, c, a)
		if err != nil {
			return nil, err
		}
		deps.Merge(ad)
	}
	return deps, nil
}

// argsDeps analyzes every argument under the current condition.
func (b *builder) argsDeps(vs Vars, bs []thunk, cd Cond, args []Term) (*Deps, error) {
	deps := NewDeps()
	for _, a := range args {
		ad, err := b.termDeps(vs, bs, cd, a)
		if err != nil {
			return nil, err
		}
		deps.Merge(ad)
	}
	return deps, nil
}

// stackAt returns the i-th-from-top entry of the binder stack.
func stackAt(bs []thunk, i int) (thunk, error) {
	if i < 0 || i >= len(bs) {
		return nil, errUnsupported("out-of-range de Bruijn index", "term analysis")
	}
	return bs[len(bs)-1-i], nil
}

// etaExpand applies t to a reference for each synthesized eta variable.
func etaExpand(t Term, etas []Name) Term {
	for _, e := range etas {
		t = &App{Fn: t, Arg: &Ref{Kind: RefBound, Name: e}}
	}
	return t
}
