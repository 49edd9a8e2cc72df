package inference

import (
	"io"
	"log/slog"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// StateUpdater writes solved states back to the syntax tree.
type StateUpdater interface {
	UpdateStates(ctx *Context)
}

type Options struct {
	// Debug keeps the initial constraints and the bound type cache.
	Debug bool
	// PrintSteps logs every solver pass at debug level.
	PrintSteps bool
	// StrictShapes panics on expressions without a bound type rule.
	StrictShapes bool
	Logger       *slog.Logger
}

// Facade runs collect context, collect constraints, solve and update, in
// that order and nothing else.
type Facade struct {
	resolver   resolver.Resolver
	contexts   *ContextCollector
	enhancer   Enhancer
	collectors []ConstraintsCollector
	updater    StateUpdater
	opts       Options
	logger     *slog.Logger
}

func NewFacade(r resolver.Resolver, oracle StateOracle, enhancer Enhancer, collectors []ConstraintsCollector, updater StateUpdater, opts Options) *Facade {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Facade{
		resolver:   r,
		contexts:   NewContextCollector(r, oracle),
		enhancer:   enhancer,
		collectors: collectors,
		updater:    updater,
		opts:       opts,
		logger:     logger,
	}
}

// Result describes one finished run.
type Result struct {
	Context     *Context
	Variables   int
	Constraints int
	Iterations  int

	// Debug mode only.
	InitialConstraints []*Constraint
	BoundTypes         []ExpressionBoundType
}

// StateCounts tallies the final state of every variable.
func (r *Result) StateCounts() (lower, upper, unknown int) {
	for _, v := range r.Context.Variables {
		switch {
		case !v.Fixed():
			unknown++
		case v.State() == Lower:
			lower++
		case v.State() == Upper:
			upper++
		default:
			unknown++
		}
	}
	return lower, upper, unknown
}

func (f *Facade) Run(elements []ast.Node) *Result {
	ctx := f.contexts.Collect(elements)
	calc := NewBoundTypeCalculator(f.resolver, f.enhancer, ctx,
		WithLogger(f.logger),
		WithStrictShapes(f.opts.StrictShapes),
	)
	constraints := NewAggregator(f.collectors...).Collect(calc, elements)

	res := &Result{
		Context:     ctx,
		Variables:   len(ctx.Variables),
		Constraints: len(constraints),
	}
	if f.opts.Debug {
		res.InitialConstraints = CloneConstraints(constraints)
		res.BoundTypes = calc.ExpressionBoundTypes()
	}

	solver := NewSolver(ctx, WithSolverLogger(f.logger), WithPrintSteps(f.opts.PrintSteps))
	res.Iterations = solver.Solve(constraints)
	f.logger.Debug("inference finished",
		"variables", res.Variables,
		"constraints", res.Constraints,
		"iterations", res.Iterations,
	)

	if f.updater != nil {
		f.updater.UpdateStates(ctx)
	}
	return res
}
