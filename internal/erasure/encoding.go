// JSON program format for the standalone inspection tool. A serialized
// program carries a semver format version, the symbol table slice the
// analyzer reads, and the auxiliary tables of §6.

package erasure

import (
	"encoding/json"
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// ProgramFormatConstraint is the range of serialized-program format
// versions this build can decode.
const ProgramFormatConstraint = "^1"

type programJSON struct {
	Format      string           `json:"format"`
	Symbols     []symbolJSON     `json:"symbols"`
	Classes     []classJSON      `json:"classes,omitempty"`
	Primitives  []primitiveJSON  `json:"primitives,omitempty"`
	Annotations []annotationJSON `json:"annotations,omitempty"`
}

type nameJSON struct {
	Name      string    `json:"name,omitempty"`
	Namespace []string  `json:"ns,omitempty"`
	Tag       *int      `json:"tag,omitempty"`
	Instance  *nameJSON `json:"instance,omitempty"`
}

type symbolJSON struct {
	Name nameJSON  `json:"name"`
	Defs []defJSON `json:"defs"`
}

type classJSON struct {
	Name   nameJSON   `json:"name"`
	Ctor   nameJSON   `json:"ctor"`
	Fields []nameJSON `json:"fields,omitempty"`
}

type primitiveJSON struct {
	Name  nameJSON `json:"name"`
	Arity int      `json:"arity"`
}

type annotationJSON struct {
	Name         nameJSON `json:"name"`
	Inaccessible []int    `json:"inaccessible,omitempty"`
}

type defJSON struct {
	Kind   string        `json:"kind"`
	Decl   string        `json:"decl,omitempty"`
	Arity  int           `json:"arity,omitempty"`
	Params []nameJSON    `json:"params,omitempty"`
	Body   *termJSON     `json:"body,omitempty"`
	Tree   *caseTreeJSON `json:"tree,omitempty"`
}

type termJSON struct {
	Kind    string    `json:"kind"`
	Ref     string    `json:"ref,omitempty"`
	Name    *nameJSON `json:"name,omitempty"`
	Index   int       `json:"index,omitempty"`
	Binder  string    `json:"binder,omitempty"`
	Var     *nameJSON `json:"var,omitempty"`
	Val     *termJSON `json:"val,omitempty"`
	Body    *termJSON `json:"body,omitempty"`
	Fn      *termJSON `json:"fn,omitempty"`
	Arg     *termJSON `json:"arg,omitempty"`
	Tm      *termJSON `json:"tm,omitempty"`
	Field   int       `json:"field,omitempty"`
	Literal string    `json:"lit,omitempty"`
}

type caseTreeJSON struct {
	Kind    string    `json:"kind"`
	Var     *nameJSON `json:"var,omitempty"`
	Alts    []altJSON `json:"alts,omitempty"`
	Term    *termJSON `json:"term,omitempty"`
	Message string    `json:"message,omitempty"`
	Tm      *termJSON `json:"tm,omitempty"`
	Field   int       `json:"field,omitempty"`
}

type altJSON struct {
	Kind   string        `json:"kind"`
	Con    *nameJSON     `json:"con,omitempty"`
	Tag    int           `json:"tag,omitempty"`
	Params []nameJSON    `json:"params,omitempty"`
	Param  *nameJSON     `json:"param,omitempty"`
	Lit    string        `json:"lit,omitempty"`
	Tree   *caseTreeJSON `json:"tree"`
}

// DecodeProgram parses a serialized program into a Context. The format
// version is validated against ProgramFormatConstraint before anything else
// is looked at.
func DecodeProgram(data []byte) (*Context, error) {
	var pj programJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	if err := checkFormat(pj.Format); err != nil {
		return nil, err
	}

	ctx := NewContext()
	for _, sj := range pj.Symbols {
		name, err := decodeName(&sj.Name)
		if err != nil {
			return nil, err
		}
		for _, dj := range sj.Defs {
			def, err := decodeDef(&dj)
			if err != nil {
				return nil, fmt.Errorf("symbol %s: %w", name, err)
			}
			ctx.AddSymbol(name, def)
		}
	}
	for _, cj := range pj.Classes {
		name, err := decodeName(&cj.Name)
		if err != nil {
			return nil, err
		}
		ctor, err := decodeName(&cj.Ctor)
		if err != nil {
			return nil, err
		}
		fields, err := decodeNames(cj.Fields)
		if err != nil {
			return nil, err
		}
		ctx.Classes[name] = ClassInfo{Ctor: ctor, Fields: fields}
	}
	for _, pjp := range pj.Primitives {
		name, err := decodeName(&pjp.Name)
		if err != nil {
			return nil, err
		}
		ctx.Primitives = append(ctx.Primitives, Primitive{Name: name, NArgs: pjp.Arity})
	}
	for _, aj := range pj.Annotations {
		name, err := decodeName(&aj.Name)
		if err != nil {
			return nil, err
		}
		ctx.Annotations[name] = Annotation{Inaccessible: aj.Inaccessible}
	}
	return ctx, nil
}

func checkFormat(format string) error {
	if format == "" {
		return fmt.Errorf("program file carries no format version")
	}
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("bad format version %q: %w", format, err)
	}
	c, err := semver.NewConstraint(ProgramFormatConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("format version %s outside supported range %s", v, ProgramFormatConstraint)
	}
	return nil
}

func decodeName(nj *nameJSON) (Name, error) {
	if nj == nil {
		return Name{}, fmt.Errorf("missing name")
	}
	if nj.Instance != nil {
		class, err := decodeName(nj.Instance)
		if err != nil {
			return Name{}, err
		}
		return InstanceCtorName(class), nil
	}
	if nj.Tag != nil {
		return MachineName(*nj.Tag, nj.Name), nil
	}
	if nj.Name == "" {
		return Name{}, fmt.Errorf("empty name")
	}
	return UserName(nj.Name, nj.Namespace...), nil
}

func decodeNames(njs []nameJSON) ([]Name, error) {
	if len(njs) == 0 {
		return nil, nil
	}
	ns := make([]Name, len(njs))
	for i := range njs {
		n, err := decodeName(&njs[i])
		if err != nil {
			return nil, err
		}
		ns[i] = n
	}
	return ns, nil
}

func decodeDef(dj *defJSON) (Definition, error) {
	switch dj.Kind {
	case "tydecl":
		decl, err := decodeDeclKind(dj.Decl)
		if err != nil {
			return nil, err
		}
		return &TyDecl{Decl: decl, NArgs: dj.Arity}, nil

	case "operator":
		return &Operator{NArgs: dj.Arity}, nil

	case "function":
		body, err := decodeTerm(dj.Body)
		if err != nil {
			return nil, err
		}
		return &Function{Body: body}, nil

	case "caseop":
		params, err := decodeNames(dj.Params)
		if err != nil {
			return nil, err
		}
		tree, err := decodeCaseTree(dj.Tree)
		if err != nil {
			return nil, err
		}
		arity := dj.Arity
		if arity < len(params) {
			arity = len(params)
		}
		// The wire format records only the parameter count; the declared
		// types themselves do not influence the analysis.
		argTypes := make([]Term, arity)
		for i := range argTypes {
			argTypes[i] = &Erased{}
		}
		return &CaseOp{ArgTypes: argTypes, Params: params, Tree: tree}, nil

	default:
		return nil, fmt.Errorf("unknown definition kind %q", dj.Kind)
	}
}

func decodeDeclKind(s string) (DeclKind, error) {
	switch s {
	case "", "function":
		return DeclFunction, nil
	case "typecon":
		return DeclTypeCon, nil
	case "datacon":
		return DeclDataCon, nil
	default:
		return 0, fmt.Errorf("unknown declaration kind %q", s)
	}
}

func decodeRefKind(s string) (RefKind, error) {
	switch s {
	case "bound":
		return RefBound, nil
	case "", "global":
		return RefGlobal, nil
	case "datacon":
		return RefDataCon, nil
	case "typecon":
		return RefTypeCon, nil
	default:
		return 0, fmt.Errorf("unknown reference kind %q", s)
	}
}

func decodeBinderKind(s string) (BinderKind, error) {
	switch s {
	case "lam":
		return BindLam, nil
	case "pi":
		return BindPi, nil
	case "let":
		return BindLet, nil
	case "letlazy":
		return BindLetLazy, nil
	default:
		return 0, fmt.Errorf("unknown binder kind %q", s)
	}
}

func decodeTerm(tj *termJSON) (Term, error) {
	if tj == nil {
		return nil, fmt.Errorf("missing term")
	}
	switch tj.Kind {
	case "ref":
		kind, err := decodeRefKind(tj.Ref)
		if err != nil {
			return nil, err
		}
		name, err := decodeName(tj.Name)
		if err != nil {
			return nil, err
		}
		return &Ref{Kind: kind, Name: name}, nil

	case "loc":
		return &Loc{Index: tj.Index}, nil

	case "bind":
		kind, err := decodeBinderKind(tj.Binder)
		if err != nil {
			return nil, err
		}
		v, err := decodeName(tj.Var)
		if err != nil {
			return nil, err
		}
		var val Term
		if kind == BindLet || kind == BindLetLazy {
			val, err = decodeTerm(tj.Val)
			if err != nil {
				return nil, err
			}
		}
		body, err := decodeTerm(tj.Body)
		if err != nil {
			return nil, err
		}
		return &Bind{Var: v, Kind: kind, Val: val, Body: body}, nil

	case "app":
		fn, err := decodeTerm(tj.Fn)
		if err != nil {
			return nil, err
		}
		arg, err := decodeTerm(tj.Arg)
		if err != nil {
			return nil, err
		}
		return &App{Fn: fn, Arg: arg}, nil

	case "proj":
		tm, err := decodeTerm(tj.Tm)
		if err != nil {
			return nil, err
		}
		return &Proj{Tm: tm, Field: tj.Field}, nil

	case "const":
		return &Const{Lit: tj.Literal}, nil

	case "type":
		return &TType{}, nil

	case "erased":
		return &Erased{}, nil

	case "impossible":
		return &Impossible{}, nil

	default:
		return nil, fmt.Errorf("unknown term kind %q", tj.Kind)
	}
}

func decodeCaseTree(cj *caseTreeJSON) (CaseTree, error) {
	if cj == nil {
		return nil, fmt.Errorf("missing case tree")
	}
	switch cj.Kind {
	case "case":
		v, err := decodeName(cj.Var)
		if err != nil {
			return nil, err
		}
		alts := make([]Alt, len(cj.Alts))
		for i := range cj.Alts {
			a, err := decodeAlt(&cj.Alts[i])
			if err != nil {
				return nil, err
			}
			alts[i] = a
		}
		return &Case{Var: v, Alts: alts}, nil

	case "term":
		t, err := decodeTerm(cj.Term)
		if err != nil {
			return nil, err
		}
		return &STerm{Term: t}, nil

	case "unmatched":
		return &UnmatchedCase{Message: cj.Message}, nil

	case "impossible":
		return &ImpossibleCase{}, nil

	case "projcase":
		tm, err := decodeTerm(cj.Tm)
		if err != nil {
			return nil, err
		}
		return &ProjCase{Tm: tm, Field: cj.Field}, nil

	default:
		return nil, fmt.Errorf("unknown case-tree kind %q", cj.Kind)
	}
}

func decodeAlt(aj *altJSON) (Alt, error) {
	tree, err := decodeCaseTree(aj.Tree)
	if err != nil {
		return nil, err
	}
	switch aj.Kind {
	case "con":
		con, err := decodeName(aj.Con)
		if err != nil {
			return nil, err
		}
		params, err := decodeNames(aj.Params)
		if err != nil {
			return nil, err
		}
		return &ConCase{Con: con, Tag: aj.Tag, Params: params, Tree: tree}, nil

	case "fn":
		fn, err := decodeName(aj.Con)
		if err != nil {
			return nil, err
		}
		params, err := decodeNames(aj.Params)
		if err != nil {
			return nil, err
		}
		return &FnCase{Fn: fn, Params: params, Tree: tree}, nil

	case "const":
		return &ConstCase{Lit: aj.Lit, Tree: tree}, nil

	case "suc":
		p, err := decodeName(aj.Param)
		if err != nil {
			return nil, err
		}
		return &SucCase{Param: p, Tree: tree}, nil

	case "default":
		return &DefaultCase{Tree: tree}, nil

	default:
		return nil, fmt.Errorf("unknown alternative kind %q", aj.Kind)
	}
}
