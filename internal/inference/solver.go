package inference

import (
	"io"
	"log/slog"
)

// Solver fixes variable states from a constraint list. Tiers are unlocked
// from the weakest evidence upwards; once every tier is exhausted the first
// variable still waiting on an equality or a supertype position defaults to
// Lower.
type Solver struct {
	ctx    *Context
	logger *slog.Logger
	print  bool
}

type SolverOption func(*Solver)

// WithSolverLogger sets where step dumps go.
func WithSolverLogger(l *slog.Logger) SolverOption {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrintSteps dumps the constraint list and variable states on every pass.
func WithPrintSteps(enabled bool) SolverOption {
	return func(s *Solver) { s.print = enabled }
}

func NewSolver(ctx *Context, opts ...SolverOption) *Solver {
	s := &Solver{
		ctx:    ctx,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve mutates variable states in place and returns the number of passes.
// The input slice is left untouched.
func (s *Solver) Solve(constraints []*Constraint) int {
	cs := CloneConstraints(constraints)
	tier := 0
	passes := 0
	for {
		s.dump(passes, Priorities[tier], cs)
		passes++

		before := len(cs)
		changed := false
		var c bool
		cs, c = nullableLowerBounds(cs, Priorities[tier])
		changed = c || changed
		cs, c = notNullUpperBounds(cs, Priorities[tier])
		changed = c || changed
		cs, c = resolveEquals(cs, Priorities[tier])
		changed = c || changed
		changed = substitute(cs) || changed
		cs = cleanup(cs)
		changed = changed || len(cs) < before

		if changed {
			continue
		}
		if tier < len(Priorities)-1 {
			tier++
			continue
		}
		v := defaultCandidate(cs)
		if v == nil {
			break
		}
		v.SetStateIfNotFixed(Lower)
	}
	return passes
}

func (s *Solver) dump(step int, tier Priority, cs []*Constraint) {
	if !s.print {
		return
	}
	p := NewDebugPrinter(s.ctx)
	s.logger.Debug("solver step",
		"step", step,
		"tier", tier.String(),
		"constraints", p.Constraints(cs),
		"variables", p.Variables(),
	)
}

// nullableLowerBounds handles UPPER <: X: X becomes Upper.
func nullableLowerBounds(cs []*Constraint, tier Priority) ([]*Constraint, bool) {
	changed := false
	out := cs[:0]
	for _, c := range cs {
		if c.Kind == Subtype && c.Priority <= tier && isLiteral(c.Left, Upper) {
			if v := variableOf(c.Right); v != nil && v.SetStateIfNotFixed(Upper) {
				changed = true
			}
			continue
		}
		out = append(out, c)
	}
	return out, changed
}

// notNullUpperBounds handles X <: LOWER: X becomes Lower.
func notNullUpperBounds(cs []*Constraint, tier Priority) ([]*Constraint, bool) {
	changed := false
	out := cs[:0]
	for _, c := range cs {
		if c.Kind == Subtype && c.Priority <= tier && isLiteral(c.Right, Lower) {
			if v := variableOf(c.Left); v != nil && v.SetStateIfNotFixed(Lower) {
				changed = true
			}
			continue
		}
		out = append(out, c)
	}
	return out, changed
}

// resolveEquals pushes a settled side onto an unsettled variable and drops
// equalities whose sides are both settled.
func resolveEquals(cs []*Constraint, tier Priority) ([]*Constraint, bool) {
	changed := false
	out := cs[:0]
	for _, c := range cs {
		if c.Kind != Equals || c.Priority > tier {
			out = append(out, c)
			continue
		}
		ls, lok := fixedState(c.Left)
		rs, rok := fixedState(c.Right)
		switch {
		case lok && rok:
			continue
		case rok:
			if variableOf(c.Left).SetStateIfNotFixed(rs) {
				changed = true
			}
			continue
		case lok:
			if variableOf(c.Right).SetStateIfNotFixed(ls) {
				changed = true
			}
			continue
		}
		out = append(out, c)
	}
	return out, changed
}

// substitute replaces fixed variables in subtype constraints with literals
// so the elimination steps can see them on the next pass.
func substitute(cs []*Constraint) bool {
	changed := false
	for _, c := range cs {
		if c.Kind != Subtype {
			continue
		}
		if v := variableOf(c.Left); v != nil && v.Fixed() {
			c.Left = LiteralBound{State: v.State()}
			changed = true
		}
		if v := variableOf(c.Right); v != nil && v.Fixed() {
			c.Right = LiteralBound{State: v.State()}
			changed = true
		}
	}
	return changed
}

// cleanup drops duplicates and constraints between two literals.
func cleanup(cs []*Constraint) []*Constraint {
	seen := make(map[constraintKey]bool, len(cs))
	out := cs[:0]
	for _, c := range cs {
		if _, ok := c.Left.(LiteralBound); ok {
			if _, ok := c.Right.(LiteralBound); ok {
				continue
			}
		}
		k := c.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// defaultCandidate is the first unfixed variable among equality operands,
// then among subtype supertype sides.
func defaultCandidate(cs []*Constraint) *TypeVariable {
	for _, c := range cs {
		if c.Kind != Equals {
			continue
		}
		for _, b := range []ConstraintBound{c.Left, c.Right} {
			if v := variableOf(b); v != nil && !v.Fixed() {
				return v
			}
		}
	}
	for _, c := range cs {
		if c.Kind != Subtype {
			continue
		}
		if v := variableOf(c.Right); v != nil && !v.Fixed() {
			return v
		}
	}
	return nil
}
