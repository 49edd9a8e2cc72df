package inference

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// ConstraintBuilder accumulates constraints derived from pairs of bound
// types. Generic slots are matched by variance: out keeps the direction,
// in flips it, invariant slots are equated.
type ConstraintBuilder struct {
	calc        *BoundTypeCalculator
	constraints []*Constraint
}

func NewConstraintBuilder(calc *BoundTypeCalculator) *ConstraintBuilder {
	return &ConstraintBuilder{calc: calc}
}

// Constraints returns everything collected so far, in insertion order.
func (b *ConstraintBuilder) Constraints() []*Constraint { return b.constraints }

func (b *ConstraintBuilder) Calculator() *BoundTypeCalculator { return b.calc }

func (b *ConstraintBuilder) Context() *Context { return b.calc.Context() }

func (b *ConstraintBuilder) add(c *Constraint) {
	b.constraints = append(b.constraints, c)
}

// SubtypeOf records sub <: super and recurses into matching type arguments.
func (b *ConstraintBuilder) SubtypeOf(sub, super *BoundType, p Priority) {
	if sub == nil || super == nil {
		return
	}
	n := min(len(sub.TypeParameters), len(super.TypeParameters))
	for i := 0; i < n; i++ {
		l, r := sub.TypeParameters[i], super.TypeParameters[i]
		switch l.Variance {
		case resolver.Out:
			b.SubtypeOf(l.Bound, r.Bound, p)
		case resolver.In:
			b.SubtypeOf(r.Bound, l.Bound, p)
		default:
			b.SameTypeAs(l.Bound, r.Bound, p, nil)
		}
	}
	lb, rb := sub.ConstraintBound(), super.ConstraintBound()
	if lb == nil || rb == nil {
		return
	}
	b.add(NewSubtype(lb, rb, p))
}

// SameTypeAs records left = right for the whole structure. Variables in
// ignore are skipped at every level.
func (b *ConstraintBuilder) SameTypeAs(left, right *BoundType, p Priority, ignore map[*TypeVariable]bool) {
	if left == nil || right == nil {
		return
	}
	n := min(len(left.TypeParameters), len(right.TypeParameters))
	for i := 0; i < n; i++ {
		b.SameTypeAs(left.TypeParameters[i].Bound, right.TypeParameters[i].Bound, p, ignore)
	}
	lb, rb := left.ConstraintBound(), right.ConstraintBound()
	if lb == nil || rb == nil {
		return
	}
	if ignore[variableOf(lb)] || ignore[variableOf(rb)] {
		return
	}
	b.add(NewEquals(lb, rb, p))
}

// SameTypeAsState pins the head of a bound type to a literal state.
func (b *ConstraintBuilder) SameTypeAsState(bt *BoundType, s State, p Priority) {
	cb := bt.ConstraintBound()
	if cb == nil {
		return
	}
	b.add(NewEquals(cb, LiteralBound{State: s}, p))
}

// ExprSubtypeOf is SubtypeOf with the bound type of an expression on the left.
func (b *ConstraintBuilder) ExprSubtypeOf(x ast.Expr, super *BoundType, p Priority) {
	if x == nil {
		return
	}
	b.SubtypeOf(b.calc.BoundType(x), super, p)
}

// ExprSubtypeOfExpr records x <: y for two expressions.
func (b *ConstraintBuilder) ExprSubtypeOfExpr(x, y ast.Expr, p Priority) {
	if x == nil || y == nil {
		return
	}
	b.SubtypeOf(b.calc.BoundType(x), b.calc.BoundType(y), p)
}

// ExprSameTypeAsState pins the bound type of x to s.
func (b *ConstraintBuilder) ExprSameTypeAsState(x ast.Expr, s State, p Priority) {
	if x == nil {
		return
	}
	b.SameTypeAsState(b.calc.BoundType(x), s, p)
}

// TypeRefSameTypeAs equates the variables of two type positions.
func (b *ConstraintBuilder) TypeRefSameTypeAs(left, right *ast.TypeRef, p Priority, ignore map[*TypeVariable]bool) {
	ctx := b.Context()
	lv, rv := ctx.VariableFor(left), ctx.VariableFor(right)
	if lv == nil || rv == nil {
		return
	}
	b.SameTypeAs(lv.Bound(), rv.Bound(), p, ignore)
}
