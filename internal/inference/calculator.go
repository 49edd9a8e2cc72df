package inference

import (
	"fmt"
	"io"
	"log/slog"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// Enhancer refines structurally derived bound types with domain evidence.
type Enhancer interface {
	// Enhance runs over the bound type of an expression.
	Enhance(expr ast.Expr, b *BoundType, ctx *Context) *BoundType
	// EnhanceType runs over a bound type derived from a declared type of
	// a declaration outside the batch.
	EnhanceType(t *resolver.Type, b *BoundType, ctx *Context) *BoundType
}

// BoundTypeCalculator computes and memoizes the bound type of expressions.
// It is confined to one run and not safe for concurrent use.
type BoundTypeCalculator struct {
	resolver resolver.Resolver
	enhancer Enhancer
	ctx      *Context
	logger   *slog.Logger
	strict   bool

	cache map[ast.Expr]*BoundType
	order []ast.Expr
}

type CalculatorOption func(*BoundTypeCalculator)

// WithLogger sets the logger used for unhandled expression shapes.
func WithLogger(l *slog.Logger) CalculatorOption {
	return func(c *BoundTypeCalculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictShapes makes unhandled expression shapes panic.
func WithStrictShapes(strict bool) CalculatorOption {
	return func(c *BoundTypeCalculator) { c.strict = strict }
}

func NewBoundTypeCalculator(r resolver.Resolver, enhancer Enhancer, ctx *Context, opts ...CalculatorOption) *BoundTypeCalculator {
	c := &BoundTypeCalculator{
		resolver: r,
		enhancer: enhancer,
		ctx:      ctx,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:    make(map[ast.Expr]*BoundType),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BoundTypeCalculator) Context() *Context { return c.ctx }

func (c *BoundTypeCalculator) Resolver() resolver.Resolver { return c.resolver }

// UnhandledShapeError is the panic value in strict mode.
type UnhandledShapeError struct {
	Pos  ast.Span
	Kind string
}

func (e *UnhandledShapeError) Error() string {
	return fmt.Sprintf("%s: no bound type rule for %s", e.Pos, e.Kind)
}

// BoundType returns the memoized bound type of expr; nil only for nil expr.
func (c *BoundTypeCalculator) BoundType(expr ast.Expr) *BoundType {
	if expr == nil {
		return nil
	}
	if b, ok := c.cache[expr]; ok {
		return b
	}
	b := c.calculate(expr)
	c.cache[expr] = b
	c.order = append(c.order, expr)
	return b
}

// ExpressionBoundTypes lists the cache in computation order.
func (c *BoundTypeCalculator) ExpressionBoundTypes() []ExpressionBoundType {
	out := make([]ExpressionBoundType, 0, len(c.order))
	for _, e := range c.order {
		out = append(out, ExpressionBoundType{Expr: e, Bound: c.cache[e]})
	}
	return out
}

type ExpressionBoundType struct {
	Expr  ast.Expr
	Bound *BoundType
}

func (c *BoundTypeCalculator) calculate(expr ast.Expr) *BoundType {
	b, handled := c.structural(expr)
	if !handled {
		kind := fmt.Sprintf("%T", expr)
		if c.strict {
			panic(&UnhandledShapeError{Pos: expr.Pos(), Kind: kind})
		}
		c.logger.Warn("no bound type rule for expression", "kind", kind, "pos", expr.Pos().String())
		return literalBound()
	}
	if b == nil {
		// Resolution failed: a plain literal contributes nothing useful.
		return literalBound()
	}
	if c.enhancer != nil {
		b = c.enhancer.Enhance(expr, b, c.ctx)
	}
	return b
}

// structural applies the shape rules. handled=false means no rule matched;
// a nil result with handled=true means resolution came back empty.
func (c *BoundTypeCalculator) structural(expr ast.Expr) (*BoundType, bool) {
	switch x := expr.(type) {
	case *ast.NullLiteral:
		return &BoundType{Label: NullLiteralLabel{}}, true
	case *ast.Paren:
		return c.BoundType(x.X), true
	case *ast.Labeled:
		inner, ok := x.X.(ast.Expr)
		if !ok {
			return nil, false
		}
		return c.BoundType(inner), true
	case *ast.Literal, *ast.Unary, *ast.TypeTest, *ast.This:
		return literalBound(), true
	case *ast.Binary:
		if ast.IsAssignment(x.Op) {
			return nil, false
		}
		return literalBound(), true
	case *ast.Assign:
		return c.BoundType(x.Left), true
	case *ast.Qualified:
		receiver := c.BoundType(x.Receiver)
		return c.callable(x, receiver), true
	case *ast.Cast:
		if v := c.ctx.VariableFor(x.Type); v != nil {
			return v.Bound(), true
		}
		return nil, true
	case *ast.Call:
		return c.callable(x, nil), true
	case *ast.NameRef:
		if v := c.ctx.DeclVariable(c.resolver.ResolveReference(x)); v != nil {
			return v.Bound(), true
		}
		return nil, true
	case *ast.Lambda:
		return c.lambda(x), true
	case *ast.If:
		if !x.IsExpr {
			return nil, false
		}
		return c.conditional(x), true
	}
	return nil, false
}

// callable builds the bound type of a call or member access around the
// target's declared return type.
func (c *BoundTypeCalculator) callable(expr ast.Expr, contextBound *BoundType) *BoundType {
	call := c.resolver.ResolveCall(expr)
	if call == nil || call.Target == nil || call.ReturnType == nil {
		return nil
	}
	tv := c.ctx.DeclVariable(call.Target.Decl)
	bound := contextBound
	if bound == nil && call.DispatchReceiver != nil {
		bound = c.TypeBoundType(call.DispatchReceiver, nil, nil, nil, false)
	}
	implicit := bound != contextBound
	return c.TypeBoundType(call.ReturnType, tv, bound, call, implicit)
}

// TypeBoundType derives a bound type from a resolved type. tv is the
// variable owning the declared position, contextBound the receiver's bound
// type used to substitute class type parameters.
func (c *BoundTypeCalculator) TypeBoundType(t *resolver.Type, tv *TypeVariable, contextBound *BoundType, call *resolver.Call, implicit bool) *BoundType {
	if t == nil {
		return nil
	}
	b := c.unenhanced(t, tv, contextBound, call, implicit)
	if call != nil && call.Target != nil && c.enhancer != nil && !c.ctx.InScope(call.Target.Decl) {
		b = c.enhancer.EnhanceType(t, b, c.ctx)
	}
	return b
}

func (c *BoundTypeCalculator) unenhanced(t *resolver.Type, tv *TypeVariable, contextBound *BoundType, call *resolver.Call, implicit bool) *BoundType {
	switch {
	case t.Star:
		return &BoundType{Label: StarProjectionLabel{}}
	case t.Class != nil:
		var label Label = GenericLabel{Class: DescriptorClassRef{Class: t.Class}}
		if tv != nil {
			label = TypeVariableLabel{Var: tv}
		}
		out := &BoundType{Label: label}
		for i, arg := range t.Args {
			var nested *TypeVariable
			if tv != nil && i < len(tv.TypeParameters) {
				nested = tv.TypeParameters[i].Bound.Variable()
			}
			_, vr := variance(t, i)
			pb := c.unenhanced(arg, nested, contextBound, call, implicit)
			out.TypeParameters = append(out.TypeParameters, TypeParameter{Bound: pb, Variance: vr})
		}
		return out
	case t.Param != nil:
		b := c.typeParameterBound(t.Param, tv, contextBound, call, implicit)
		if tv != nil && tv.Fixed() && tv.State() == Upper && b.Variable() != tv {
			b = b.WithForced(Upper)
		}
		return b
	}
	return genericBound(NoClassRef{})
}

func (c *BoundTypeCalculator) typeParameterBound(p *resolver.TypeParamDescriptor, tv *TypeVariable, contextBound *BoundType, call *resolver.Call, implicit bool) *BoundType {
	if call != nil && p.OwnerFunction != nil && p.OwnerFunction == call.Target {
		if v := c.typeArgVariable(call, p.Index); v != nil {
			return v.Bound()
		}
	}
	if tv != nil && implicit {
		return &BoundType{Label: TypeVariableLabel{Var: tv}}
	}
	if contextBound != nil && p.OwnerClass != nil && p.Index < len(contextBound.TypeParameters) {
		if cls := contextBound.Class(); cls == nil || cls == p.OwnerClass {
			return contextBound.TypeParameters[p.Index].Bound
		}
	}
	if call != nil && call.Target != nil && call.Target.Constructor && p.OwnerClass != nil && p.OwnerClass == call.Target.Owner {
		if v := c.typeArgVariable(call, p.Index); v != nil {
			return v.Bound()
		}
	}
	return &BoundType{Label: TypeParameterLabel{Param: p}}
}

func (c *BoundTypeCalculator) typeArgVariable(call *resolver.Call, index int) *TypeVariable {
	if index >= len(call.TypeArgs) {
		return nil
	}
	return c.ctx.VariableFor(call.TypeArgs[index])
}

// lambda synthesizes FunctionN<in P1..., out R>.
func (c *BoundTypeCalculator) lambda(l *ast.Lambda) *BoundType {
	sig := c.resolver.LambdaSignature(l)
	var params []*BoundType
	fromSource := sig == nil || len(sig.Params) == len(l.Params)
	if fromSource {
		for _, p := range l.Params {
			v := c.ctx.DeclVariable(p)
			if v == nil {
				fromSource = false
				break
			}
			params = append(params, v.Bound())
		}
	}
	if !fromSource {
		params = params[:0]
		if sig == nil {
			return nil
		}
		for _, pt := range sig.Params {
			pb := c.TypeBoundType(pt, nil, nil, nil, false)
			if pb == nil {
				pb = genericBound(NoClassRef{})
			}
			params = append(params, pb)
		}
	}

	var ret *BoundType
	if v := c.ctx.DeclVariable(l); v != nil {
		ret = v.Bound()
	} else if sig != nil && sig.Return != nil {
		ret = c.TypeBoundType(sig.Return, nil, nil, nil, false)
	}
	if ret == nil {
		ret = genericBound(NoClassRef{})
	}

	fn := c.resolver.FunctionClass(len(params))
	var ref ClassReference = NoClassRef{}
	if fn != nil {
		ref = DescriptorClassRef{Class: fn}
	}
	out := genericBound(ref)
	for _, pb := range params {
		out.TypeParameters = append(out.TypeParameters, TypeParameter{Bound: pb, Variance: resolver.In})
	}
	out.TypeParameters = append(out.TypeParameters, TypeParameter{Bound: ret, Variance: resolver.Out})
	return out
}

// conditional prefers a null branch, then a branch carrying a variable.
func (c *BoundTypeCalculator) conditional(x *ast.If) *BoundType {
	if ast.IsNull(x.Then) || ast.IsNull(x.Else) {
		return &BoundType{Label: NullLiteralLabel{}}
	}
	var then, els *BoundType
	if e, ok := x.Then.(ast.Expr); ok {
		then = c.BoundType(e)
	}
	if e, ok := x.Else.(ast.Expr); ok {
		els = c.BoundType(e)
	}
	switch {
	case then.HasVariable():
		return then
	case els.HasVariable():
		return els
	case then != nil:
		return then
	}
	return els
}
