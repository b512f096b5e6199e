// Package erasure decides, for a whole program compiled to case trees,
// which top-level symbols are reachable from the entry point and which of
// their argument positions are used at runtime. The downstream code
// generator erases everything else.
//
// The pass builds a conditional dependency graph from the case trees
// (builder.go), seeds it with edges that cannot be derived from the program
// text (postulates.go), extracts the minimal consistent usage set by
// forward chaining (solver.go), and projects that set into per-symbol
// results written back into the call-graph table (project.go).
package erasure

import (
	"context"
	"fmt"

	"github.com/virel-lang/virel/internal/cli"
)

// Verbosity levels at which the pass reports intermediate results.
const (
	// LogReachable logs the reachable names.
	LogReachable = 3
	// LogUsage logs the minimal usage map.
	LogUsage = 4
	// LogResidual logs the dependency edges that never discharged.
	LogResidual = 5
)

// Options carries the analyzer's tunables.
type Options struct {
	// Entry overrides the program entry point; the zero Name means the
	// conventional Main.main.
	Entry Name

	// Verbosity gates log emission; see the Log* level constants.
	Verbosity int

	// ConservativeProjection makes an unrecognized projection head mark
	// the projected symbol fully used instead of failing the pass.
	ConservativeProjection bool

	// Workers bounds the number of definitions analyzed concurrently;
	// zero or negative means one per available CPU.
	Workers int

	// Logger receives the pass's diagnostic output. When nil a logger at
	// the configured verbosity is created.
	Logger *cli.Logger
}

func (o Options) entry() Name {
	if o.Entry.IsZero() {
		return MainName
	}
	return o.Entry
}

func (o Options) logger() *cli.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return cli.NewLogger(o.Verbosity, false)
}

// Stats are per-run counters; diagnostic only, they never affect the
// erasure decision.
type Stats struct {
	DefinitionsVisited int
	Conditions         int
	SolverRounds       int
}

// String returns a printable summary of the counters.
func (s Stats) String() string {
	return fmt.Sprintf("definitions=%d conditions=%d rounds=%d",
		s.DefinitionsVisited, s.Conditions, s.SolverRounds)
}

// Report is the outcome of one analysis run.
type Report struct {
	// Reachable lists the symbols used at runtime, in ascending order.
	Reachable []Name

	// UsedArgs maps every solved symbol to the ascending indices of its
	// used argument positions.
	UsedArgs map[Name][]int

	// Residual holds the dependency edges whose conditions never
	// discharged.
	Residual *Deps

	Stats Stats
}

// Analyze runs the whole pass against program. It returns the reachable
// symbols and writes each one's used-argument indices into the program's
// call-graph table. If the entry point is absent the translation unit is
// not being linked: the result is empty and nothing is written.
func Analyze(ctx context.Context, program *Context, opts Options) (*Report, error) {
	entry := opts.entry()
	log := opts.logger()

	if len(program.Symbols[entry]) == 0 {
		return &Report{UsedArgs: map[Name][]int{}, Residual: NewDeps()}, nil
	}

	b := newBuilder(program, opts)
	deps, err := b.build(ctx, entry)
	if err != nil {
		return nil, err
	}
	injectPostulates(deps, program, entry)

	used, residual, rounds := solve(deps)
	reachable, usage := project(used)

	if err := checkAccessibility(program, usage); err != nil {
		return nil, err
	}
	writeBack(program, reachable, usage)

	if log.At(LogReachable) {
		for _, n := range reachable {
			log.Logf(LogReachable, "reachable: %s", n)
		}
	}
	if log.At(LogUsage) {
		for _, n := range reachable {
			log.Logf(LogUsage, "used args: %s %v", n, usage[n])
		}
	}
	if log.At(LogResidual) {
		for _, e := range residual.Edges() {
			log.Logf(LogResidual, "residual: %s -> %s", e.Cond, e.Uses)
		}
	}

	return &Report{
		Reachable: reachable,
		UsedArgs:  usage,
		Residual:  residual,
		Stats: Stats{
			DefinitionsVisited: b.definitionsVisited(),
			Conditions:         deps.Len(),
			SolverRounds:       rounds,
		},
	}, nil
}
