package nullability

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/inference"
)

// Rules is the nullability rule set run next to the common rules. The first
// matching case wins.
type Rules struct{}

func (Rules) CollectConstraints(n ast.Node, b *inference.ConstraintBuilder) {
	switch x := n.(type) {
	case *ast.Binary:
		if ast.IsNull(x.Left) || ast.IsNull(x.Right) {
			other := x.Left
			if ast.IsNull(x.Left) {
				other = x.Right
			}
			// A value checked against null may hold null.
			if !ast.IsNull(other) {
				b.ExprSameTypeAsState(other, inference.Upper, inference.CompareWithNull)
			}
			return
		}
		if !ast.IsAssignment(x.Op) {
			b.ExprSameTypeAsState(x.Left, inference.Lower, inference.UseAsReceiver)
			b.ExprSameTypeAsState(x.Right, inference.Lower, inference.UseAsReceiver)
		}
	case *ast.Qualified:
		b.ExprSameTypeAsState(x.Receiver, inference.Lower, inference.UseAsReceiver)
	case *ast.For:
		b.ExprSameTypeAsState(x.Range, inference.Lower, inference.UseAsReceiver)
	case *ast.While:
		b.ExprSameTypeAsState(x.Cond, inference.Lower, inference.UseAsReceiver)
	case *ast.If:
		b.ExprSameTypeAsState(x.Cond, inference.Lower, inference.UseAsReceiver)
	case *ast.Argument:
		if x.Spread {
			b.ExprSameTypeAsState(x.X, inference.Lower, inference.UseAsReceiver)
		}
	}
}
