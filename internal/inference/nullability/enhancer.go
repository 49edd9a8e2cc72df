package nullability

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/inference"
	"nullinfer/internal/resolver"
)

// Enhancer forces states that follow from what an expression is rather
// than how it is used.
type Enhancer struct {
	resolver resolver.Resolver
}

func NewEnhancer(r resolver.Resolver) *Enhancer {
	return &Enhancer{resolver: r}
}

func (e *Enhancer) Enhance(expr ast.Expr, b *inference.BoundType, ctx *inference.Context) *inference.BoundType {
	switch x := expr.(type) {
	case *ast.NullLiteral:
		return b.WithForced(inference.Upper)
	case *ast.Call:
		return e.call(x, b, ctx)
	case *ast.Qualified:
		return e.call(x, b, ctx)
	case *ast.Lambda:
		return b.WithForced(inference.Lower)
	case *ast.NameRef:
		if e.resolver.IsNarrowedNotNull(x) {
			return b.WithForced(inference.Lower)
		}
	}
	return b
}

func (e *Enhancer) call(expr ast.Expr, b *inference.BoundType, ctx *inference.Context) *inference.BoundType {
	call := e.resolver.ResolveCall(expr)
	if call == nil || call.Target == nil {
		return b
	}
	if call.Target.Constructor {
		return b.WithForced(inference.Lower)
	}
	if ctx.InScope(call.Target.Decl) {
		return b
	}
	if ret := call.Target.Return; ret != nil && (ret.Nullability == resolver.NotNull || ret.IsPrimitive()) {
		return b.WithForced(inference.Lower)
	}
	return b
}

// EnhanceType applies declared nullability of an out-of-batch type, slot by
// slot, when the shapes line up.
func (e *Enhancer) EnhanceType(t *resolver.Type, b *inference.BoundType, ctx *inference.Context) *inference.BoundType {
	if t == nil || b == nil || len(t.Args) != len(b.TypeParameters) {
		return b
	}
	out := &inference.BoundType{Label: b.Label, Forced: b.Forced}
	for i, tp := range b.TypeParameters {
		out.TypeParameters = append(out.TypeParameters, inference.TypeParameter{
			Bound:    e.EnhanceType(t.Args[i], tp.Bound, ctx),
			Variance: tp.Variance,
		})
	}
	if t.MarkedNullable() {
		return out.WithForced(inference.Upper)
	}
	return out
}
