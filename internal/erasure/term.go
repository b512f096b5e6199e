// Term and case-tree model consumed by the usage analyzer.
// Everything in this file is immutable after construction; the analyzer
// only reads it.

package erasure

import (
	"fmt"
	"sort"
	"strings"
)

// nameKind discriminates the sub-kinds of Name.
type nameKind uint8

const (
	nameUser nameKind = iota
	nameMachine
	nameInstanceCtor
)

// Name identifies a top-level symbol or a locally bound variable. It is an
// opaque value type: totally ordered, comparable, and usable as a map key.
//
// User names carry an optional dotted namespace. Machine names carry a
// numeric tag plus a text hint and are produced by earlier compiler passes;
// only a small whitelist of them is globally visible. Instance-constructor
// names identify the dictionary constructor of a class instance.
type Name struct {
	kind nameKind
	ns   string
	base string
	tag  int
}

// UserName builds a (possibly namespaced) source-level name. Namespace
// components are given outermost first.
func UserName(base string, ns ...string) Name {
	return Name{kind: nameUser, ns: strings.Join(ns, "."), base: base}
}

// MachineName builds a compiler-generated name from a numeric tag and a
// text hint.
func MachineName(tag int, text string) Name {
	return Name{kind: nameMachine, base: text, tag: tag}
}

// InstanceCtorName builds the name of the dictionary constructor for an
// instance of the given class.
func InstanceCtorName(class Name) Name {
	return Name{kind: nameInstanceCtor, ns: class.ns, base: class.base}
}

// visibleMachineNames are the machine-generated names that may legally occur
// free in elaborated terms.
var visibleMachineNames = map[string]bool{
	"__Unit":  true,
	"__True":  true,
	"__False": true,
}

// IsMachine reports whether n is a compiler-generated name.
func (n Name) IsMachine() bool { return n.kind == nameMachine }

// Visible reports whether a machine-generated name is on the global
// whitelist. User names are always visible.
func (n Name) Visible() bool {
	if n.kind != nameMachine {
		return true
	}
	return visibleMachineNames[n.base]
}

// InstanceClass returns the class a dictionary-constructor name belongs to.
func (n Name) InstanceClass() (Name, bool) {
	if n.kind != nameInstanceCtor {
		return Name{}, false
	}
	return Name{kind: nameUser, ns: n.ns, base: n.base}, true
}

// IsZero reports whether n is the zero Name.
func (n Name) IsZero() bool { return n == Name{} }

// String returns a printable form of the name.
func (n Name) String() string {
	switch n.kind {
	case nameMachine:
		return fmt.Sprintf("{%s_%d}", n.base, n.tag)
	case nameInstanceCtor:
		if n.ns != "" {
			return n.ns + "." + n.base + "@ctor"
		}
		return n.base + "@ctor"
	default:
		if n.ns != "" {
			return n.ns + "." + n.base
		}
		return n.base
	}
}

// Less imposes a total order on names, used for deterministic output.
func (n Name) Less(o Name) bool {
	if n.kind != o.kind {
		return n.kind < o.kind
	}
	if n.ns != o.ns {
		return n.ns < o.ns
	}
	if n.base != o.base {
		return n.base < o.base
	}
	return n.tag < o.tag
}

// Names of the postulated builtins (§4.1) and the foreign-call wrappers
// handled at call sites.
var (
	// MainName is the conventional program entry point.
	MainName = UserName("main", "Main")

	// RunIOName is the I/O runner applied to the entry computation.
	RunIOName = UserName("run__IO")

	// MkPairName is the builtin pair constructor.
	MkPairName = UserName("__MkPair")

	// ForkName is the thread-fork primitive; only its closure argument
	// survives to runtime.
	ForkName = UserName("prim_fork")

	// BelieveMeName is the non-strict coercion primitive; arguments 0 and 1
	// are type witnesses and erasable.
	BelieveMeName = UserName("prim__believe_me")

	// Variadic foreign-call wrappers. Their first argument is a
	// compile-time type spec and is dropped at call sites.
	MkForeignName         = UserName("mkForeign")
	MkForeignPrimName     = UserName("mkForeignPrim")
	MkLazyForeignPrimName = UserName("mkLazyForeignPrim")
)

// Arg designates an argument position of a symbol, or the distinguished
// Result tag.
type Arg int

// Result marks the result position of a symbol: (f, Result) means "the
// result of f is demanded".
const Result Arg = -1

// ArgPos returns the Arg designating position i.
func ArgPos(i int) Arg { return Arg(i) }

// IsResult reports whether a is the result tag.
func (a Arg) IsResult() bool { return a < 0 }

// Index returns the argument index; it must not be called on Result.
func (a Arg) Index() int { return int(a) }

// String returns a printable form of the position.
func (a Arg) String() string {
	if a.IsResult() {
		return "result"
	}
	return fmt.Sprintf("arg %d", int(a))
}

// Node is an elementary usage fact: a symbol paired with a position.
type Node struct {
	Name Name
	Arg  Arg
}

// String returns a printable form of the node.
func (n Node) String() string { return n.Name.String() + "[" + n.Arg.String() + "]" }

// Less imposes a total order on nodes.
func (n Node) Less(o Node) bool {
	if n.Name != o.Name {
		return n.Name.Less(o.Name)
	}
	return n.Arg < o.Arg
}

// NodeSet is a finite set of nodes.
type NodeSet map[Node]struct{}

// Nodes builds a set from the given nodes.
func Nodes(ns ...Node) NodeSet {
	s := make(NodeSet, len(ns))
	for _, n := range ns {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func (s NodeSet) Contains(n Node) bool {
	_, ok := s[n]
	return ok
}

// Add inserts the given nodes.
func (s NodeSet) Add(ns ...Node) {
	for _, n := range ns {
		s[n] = struct{}{}
	}
}

// Union inserts every node of o.
func (s NodeSet) Union(o NodeSet) {
	for n := range o {
		s[n] = struct{}{}
	}
}

// CloneWith returns a copy of s extended by the given nodes.
func (s NodeSet) CloneWith(ns ...Node) NodeSet {
	c := make(NodeSet, len(s)+len(ns))
	for n := range s {
		c[n] = struct{}{}
	}
	c.Add(ns...)
	return c
}

// Sorted returns the nodes in ascending order.
func (s NodeSet) Sorted() []Node {
	ns := make([]Node, 0, len(s))
	for n := range s {
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].Less(ns[j]) })
	return ns
}

// String returns a printable form of the set.
func (s NodeSet) String() string {
	parts := make([]string, 0, len(s))
	for _, n := range s.Sorted() {
		parts = append(parts, n.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Cond is a conjunction of usage assumptions; the empty condition is true.
type Cond map[Node]struct{}

// CondOf builds a condition from the given assumptions.
func CondOf(ns ...Node) Cond {
	c := make(Cond, len(ns))
	for _, n := range ns {
		c[n] = struct{}{}
	}
	return c
}

// With returns a copy of c strengthened by the given assumptions.
func (c Cond) With(ns ...Node) Cond {
	s := make(Cond, len(c)+len(ns))
	for n := range c {
		s[n] = struct{}{}
	}
	for _, n := range ns {
		s[n] = struct{}{}
	}
	return s
}

// Minus returns a copy of c with every assumption in t discharged.
func (c Cond) Minus(t NodeSet) Cond {
	s := make(Cond, len(c))
	for n := range c {
		if !t.Contains(n) {
			s[n] = struct{}{}
		}
	}
	return s
}

// Sorted returns the assumptions in ascending order.
func (c Cond) Sorted() []Node {
	ns := make([]Node, 0, len(c))
	for n := range c {
		ns = append(ns, n)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].Less(ns[j]) })
	return ns
}

// Key returns the canonical map key of the condition. Equal conditions
// always produce equal keys regardless of construction order.
func (c Cond) Key() string {
	var sb strings.Builder
	for _, n := range c.Sorted() {
		sb.WriteString(n.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

// String returns a printable form of the condition.
func (c Cond) String() string {
	parts := make([]string, 0, len(c))
	for _, n := range c.Sorted() {
		parts = append(parts, n.String())
	}
	return "{" + strings.Join(parts, " & ") + "}"
}

// Edge is one entry of a conditional dependency map: if every assumption in
// Cond holds, every node in Uses is used.
type Edge struct {
	Cond Cond
	Uses NodeSet
}

// Deps is the conditional dependency graph: a map from conditions to the
// node sets they imply. Entries with equal conditions are combined by set
// union.
type Deps struct {
	edges map[string]*Edge
}

// NewDeps returns an empty dependency map.
func NewDeps() *Deps {
	return &Deps{edges: make(map[string]*Edge)}
}

// Add records that cond implies every node in uses. The condition is copied;
// callers may keep mutating it.
func (d *Deps) Add(cond Cond, uses ...Node) {
	d.AddSet(cond, Nodes(uses...))
}

// AddSet records that cond implies every node in uses.
func (d *Deps) AddSet(cond Cond, uses NodeSet) {
	if len(uses) == 0 {
		return
	}
	key := cond.Key()
	if e, ok := d.edges[key]; ok {
		e.Uses.Union(uses)
		return
	}
	d.edges[key] = &Edge{Cond: cond.With(), Uses: uses.CloneWith()}
}

// Merge unions every edge of o into d.
func (d *Deps) Merge(o *Deps) {
	for _, e := range o.edges {
		d.AddSet(e.Cond, e.Uses)
	}
}

// Lookup returns the node set implied by exactly the given condition.
func (d *Deps) Lookup(cond Cond) (NodeSet, bool) {
	e, ok := d.edges[cond.Key()]
	if !ok {
		return nil, false
	}
	return e.Uses, true
}

// Len returns the number of distinct conditions.
func (d *Deps) Len() int { return len(d.edges) }

// Names returns every symbol mentioned anywhere in the map, in a condition
// or in a conclusion.
func (d *Deps) Names() map[Name]struct{} {
	ns := make(map[Name]struct{})
	for _, e := range d.edges {
		for n := range e.Cond {
			ns[n.Name] = struct{}{}
		}
		for n := range e.Uses {
			ns[n.Name] = struct{}{}
		}
	}
	return ns
}

// Edges returns the entries sorted by condition key, for deterministic
// logging and tests.
func (d *Deps) Edges() []Edge {
	keys := make([]string, 0, len(d.edges))
	for k := range d.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	es := make([]Edge, 0, len(keys))
	for _, k := range keys {
		es = append(es, *d.edges[k])
	}
	return es
}

// clone returns a deep copy of d.
func (d *Deps) clone() *Deps {
	c := NewDeps()
	c.Merge(d)
	return c
}

// String returns a printable dump of the map.
func (d *Deps) String() string {
	var sb strings.Builder
	for _, e := range d.Edges() {
		fmt.Fprintf(&sb, "%s -> %s\n", e.Cond, e.Uses)
	}
	return sb.String()
}

// Vars maps a locally bound name to the node set its binding carries.
type Vars map[Name]NodeSet

// clone returns a shallow copy; the node sets themselves are shared and
// treated as immutable.
func (v Vars) clone() Vars {
	c := make(Vars, len(v))
	for n, s := range v {
		c[n] = s
	}
	return c
}

// RefKind classifies a name reference in a term.
type RefKind uint8

const (
	// RefBound references a locally bound variable.
	RefBound RefKind = iota
	// RefGlobal references a top-level function or postulate.
	RefGlobal
	// RefDataCon references a data constructor.
	RefDataCon
	// RefTypeCon references a type constructor.
	RefTypeCon
)

// String returns the string representation of RefKind.
func (k RefKind) String() string {
	switch k {
	case RefBound:
		return "bound"
	case RefGlobal:
		return "global"
	case RefDataCon:
		return "data constructor"
	case RefTypeCon:
		return "type constructor"
	default:
		return "unknown"
	}
}

// Term is the elaborated term calculus the analyzer walks.
type Term interface {
	isTerm()
	String() string
}

// Ref is a reference to a name.
type Ref struct {
	Kind RefKind
	Name Name
}

// Loc is a de Bruijn variable counting binders from the innermost.
type Loc struct {
	Index int
}

// BinderKind classifies a Bind node.
type BinderKind uint8

const (
	// BindLam is a lambda abstraction.
	BindLam BinderKind = iota
	// BindPi is a dependent function type.
	BindPi
	// BindLet is a strict let binding.
	BindLet
	// BindLetLazy is a lazy let binding.
	BindLetLazy
)

// String returns the string representation of BinderKind.
func (k BinderKind) String() string {
	switch k {
	case BindLam:
		return "lam"
	case BindPi:
		return "pi"
	case BindLet:
		return "let"
	case BindLetLazy:
		return "letlazy"
	default:
		return "unknown"
	}
}

// Bind introduces one variable over Body. Val is the bound term for let
// binders and nil otherwise.
type Bind struct {
	Var  Name
	Kind BinderKind
	Val  Term
	Body Term
}

// App applies Fn to one argument; spines are left-nested App chains.
type App struct {
	Fn  Term
	Arg Term
}

// Proj projects field Field out of Tm.
type Proj struct {
	Tm    Term
	Field int
}

// Const is a literal constant; its payload is irrelevant to usage analysis.
type Const struct {
	Lit string
}

// TType is a type universe.
type TType struct{}

// Erased marks a subterm already erased by an earlier pass.
type Erased struct{}

// Impossible marks an unreachable subterm.
type Impossible struct{}

func (*Ref) isTerm()        {}
func (*Loc) isTerm()        {}
func (*Bind) isTerm()       {}
func (*App) isTerm()        {}
func (*Proj) isTerm()       {}
func (*Const) isTerm()      {}
func (*TType) isTerm()      {}
func (*Erased) isTerm()     {}
func (*Impossible) isTerm() {}

func (t *Ref) String() string { return t.Name.String() }
func (t *Loc) String() string { return fmt.Sprintf("V%d", t.Index) }

func (t *Bind) String() string {
	if t.Val != nil {
		return fmt.Sprintf("(%s %s = %s in %s)", t.Kind, t.Var, t.Val, t.Body)
	}
	return fmt.Sprintf("(%s %s. %s)", t.Kind, t.Var, t.Body)
}

func (t *App) String() string        { return fmt.Sprintf("(%s %s)", t.Fn, t.Arg) }
func (t *Proj) String() string       { return fmt.Sprintf("%s.%d", t.Tm, t.Field) }
func (t *Const) String() string      { return t.Lit }
func (t *TType) String() string      { return "Type" }
func (t *Erased) String() string     { return "__" }
func (t *Impossible) String() string { return "impossible" }

// Apply builds the application spine f a0 a1 ....
func Apply(f Term, args ...Term) Term {
	for _, a := range args {
		f = &App{Fn: f, Arg: a}
	}
	return f
}

// unApply splits an application spine into its head and arguments.
func unApply(t Term) (Term, []Term) {
	var rev []Term
	for {
		a, ok := t.(*App)
		if !ok {
			break
		}
		rev = append(rev, a.Arg)
		t = a.Fn
	}
	args := make([]Term, len(rev))
	for i, a := range rev {
		args[len(rev)-1-i] = a
	}
	return t, args
}

// CaseTree is a compiled decision tree over one definition's parameters.
type CaseTree interface {
	isCaseTree()
	String() string
}

// Case scrutinizes the variable Var against the alternatives.
type Case struct {
	Var  Name
	Alts []Alt
}

// STerm is a leaf holding the right-hand-side term.
type STerm struct {
	Term Term
}

// UnmatchedCase is a leaf for a missing-case runtime error.
type UnmatchedCase struct {
	Message string
}

// ImpossibleCase is a leaf proven unreachable by coverage checking.
type ImpossibleCase struct{}

// ProjCase projects a field during matching. The analyzer rejects it.
type ProjCase struct {
	Tm    Term
	Field int
}

func (*Case) isCaseTree()           {}
func (*STerm) isCaseTree()          {}
func (*UnmatchedCase) isCaseTree()  {}
func (*ImpossibleCase) isCaseTree() {}
func (*ProjCase) isCaseTree()       {}

func (c *Case) String() string {
	alts := make([]string, len(c.Alts))
	for i, a := range c.Alts {
		alts[i] = a.String()
	}
	return fmt.Sprintf("case %s of [%s]", c.Var, strings.Join(alts, " | "))
}

func (c *STerm) String() string          { return c.Term.String() }
func (c *UnmatchedCase) String() string  { return fmt.Sprintf("unmatched(%q)", c.Message) }
func (c *ImpossibleCase) String() string { return "impossible" }
func (c *ProjCase) String() string       { return fmt.Sprintf("projcase %s.%d", c.Tm, c.Field) }

// Alt is one alternative of a Case node.
type Alt interface {
	isAlt()
	String() string
}

// ConCase matches constructor Con binding its fields to Params.
type ConCase struct {
	Con    Name
	Tag    int
	Params []Name
	Tree   CaseTree
}

// FnCase matches against a function. The analyzer rejects it.
type FnCase struct {
	Fn     Name
	Params []Name
	Tree   CaseTree
}

// ConstCase matches a literal constant.
type ConstCase struct {
	Lit  string
	Tree CaseTree
}

// SucCase matches the successor pattern S n, binding the predecessor.
type SucCase struct {
	Param Name
	Tree  CaseTree
}

// DefaultCase matches anything.
type DefaultCase struct {
	Tree CaseTree
}

func (*ConCase) isAlt()     {}
func (*FnCase) isAlt()      {}
func (*ConstCase) isAlt()   {}
func (*SucCase) isAlt()     {}
func (*DefaultCase) isAlt() {}

func (a *ConCase) String() string {
	ps := make([]string, len(a.Params))
	for i, p := range a.Params {
		ps[i] = p.String()
	}
	return fmt.Sprintf("%s(%s) => %s", a.Con, strings.Join(ps, ","), a.Tree)
}

func (a *FnCase) String() string      { return fmt.Sprintf("fn %s => %s", a.Fn, a.Tree) }
func (a *ConstCase) String() string   { return fmt.Sprintf("%s => %s", a.Lit, a.Tree) }
func (a *SucCase) String() string     { return fmt.Sprintf("S %s => %s", a.Param, a.Tree) }
func (a *DefaultCase) String() string { return fmt.Sprintf("_ => %s", a.Tree) }

// DeclKind classifies a TyDecl.
type DeclKind uint8

const (
	// DeclFunction is a forward declaration with no body yet.
	DeclFunction DeclKind = iota
	// DeclTypeCon declares a type constructor.
	DeclTypeCon
	// DeclDataCon declares a data constructor.
	DeclDataCon
)

// String returns the string representation of DeclKind.
func (k DeclKind) String() string {
	switch k {
	case DeclFunction:
		return "function"
	case DeclTypeCon:
		return "type constructor"
	case DeclDataCon:
		return "data constructor"
	default:
		return "unknown"
	}
}

// Definition is the payload of one symbol-table entry.
type Definition interface {
	isDefinition()
}

// TyDecl is a declaration without executable content: a forward-declared
// function, a type constructor, or a data constructor.
type TyDecl struct {
	Decl  DeclKind
	NArgs int
}

// Operator is an opaque builtin with a fixed arity and no case tree.
type Operator struct {
	NArgs int
}

// Function is an unelaborated body. The analyzer requires case trees and
// rejects it.
type Function struct {
	Body Term
}

// CaseOp is a function compiled to a runtime case tree. Params are the
// variables the tree binds; ArgTypes carries the full declared parameter
// list, which may be longer than Params (partial eta form).
type CaseOp struct {
	ArgTypes []Term
	Params   []Name
	Tree     CaseTree
}

func (*TyDecl) isDefinition()   {}
func (*Operator) isDefinition() {}
func (*Function) isDefinition() {}
func (*CaseOp) isDefinition()   {}

// Arity returns the declared number of parameters.
func (c *CaseOp) Arity() int { return len(c.ArgTypes) }
