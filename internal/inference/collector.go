package inference

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// ConstraintsCollector contributes constraints for a single syntax element.
// Collectors are stateless with respect to the run; everything they need is
// reachable from the builder.
type ConstraintsCollector interface {
	CollectConstraints(n ast.Node, b *ConstraintBuilder)
}

// CollectorFunc adapts a plain function to ConstraintsCollector.
type CollectorFunc func(n ast.Node, b *ConstraintBuilder)

func (f CollectorFunc) CollectConstraints(n ast.Node, b *ConstraintBuilder) { f(n, b) }

// Collector runs the common rules followed by a domain rule set.
type Collector struct {
	common     ConstraintsCollector
	additional ConstraintsCollector
}

func NewCollector(additional ConstraintsCollector) *Collector {
	return &Collector{common: CommonRules{}, additional: additional}
}

func (c *Collector) CollectConstraints(n ast.Node, b *ConstraintBuilder) {
	c.common.CollectConstraints(n, b)
	if c.additional != nil {
		c.additional.CollectConstraints(n, b)
	}
}

// Aggregator drives several collectors over one traversal and unions what
// they produce.
type Aggregator struct {
	collectors []ConstraintsCollector
}

func NewAggregator(collectors ...ConstraintsCollector) *Aggregator {
	return &Aggregator{collectors: collectors}
}

// Collect visits every element below the given roots, imports excluded.
func (a *Aggregator) Collect(calc *BoundTypeCalculator, elements []ast.Node) []*Constraint {
	b := NewConstraintBuilder(calc)
	for _, el := range elements {
		ast.Inspect(el, func(n ast.Node) bool {
			if _, ok := n.(*ast.Import); ok {
				return false
			}
			for _, c := range a.collectors {
				c.CollectConstraints(n, b)
			}
			return true
		})
	}
	return b.Constraints()
}

// CommonRules are the structural rules shared by every inference flavor.
type CommonRules struct{}

func (CommonRules) CollectConstraints(n ast.Node, b *ConstraintBuilder) {
	ctx := b.Context()
	switch x := n.(type) {
	case *ast.Cast:
		if !x.Unsafe {
			return
		}
		if v := ctx.VariableFor(x.Type); v != nil {
			b.ExprSubtypeOf(x.X, v.Bound(), Assignment)
		}
	case *ast.Assign:
		if x.Op == "=" {
			b.ExprSubtypeOfExpr(x.Right, x.Left, Assignment)
		}
	case *ast.Property:
		if v := ctx.DeclVariable(x); v != nil {
			b.ExprSubtypeOf(x.Init, v.Bound(), Initializer)
		}
	case *ast.Parameter:
		if v := ctx.DeclVariable(x); v != nil {
			b.ExprSubtypeOf(x.Default, v.Bound(), Initializer)
		}
	case *ast.Return:
		if x.X != nil {
			if target := returnTarget(x, b); target != nil {
				b.ExprSubtypeOf(x.X, target, Return)
			}
		}
	case *ast.Lambda:
		v := ctx.DeclVariable(x)
		if v == nil {
			return
		}
		if result := implicitResult(x); result != nil {
			b.ExprSubtypeOf(result, v.Bound(), Return)
		}
	case *ast.Call:
		collectCallArguments(x, b)
	case *ast.For:
		collectLoopParameter(x, b)
	}
}

// returnTarget is the bound type a returned value flows into.
func returnTarget(ret *ast.Return, b *ConstraintBuilder) *BoundType {
	r := b.Calculator().Resolver()
	fn := r.EnclosingFunction(ret)
	if fn == nil {
		return nil
	}
	if v := b.Context().DeclVariable(fn); v != nil {
		return v.Bound()
	}
	calc := b.Calculator()
	switch f := fn.(type) {
	case *ast.Lambda:
		if sig := r.LambdaSignature(f); sig != nil {
			return calc.TypeBoundType(sig.Return, nil, nil, nil, false)
		}
	default:
		if fd := r.DescriptorFor(fn); fd != nil {
			return calc.TypeBoundType(fd.Return, nil, nil, nil, false)
		}
	}
	return nil
}

// implicitResult is the expression a lambda evaluates to without an explicit
// return statement.
func implicitResult(l *ast.Lambda) ast.Expr {
	switch body := l.Body.(type) {
	case ast.Expr:
		return body
	case *ast.Block:
		if !l.ResultIsLastExpr || len(body.Stmts) == 0 {
			return nil
		}
		if st, ok := body.Stmts[len(body.Stmts)-1].(*ast.ExprStmt); ok {
			return st.X
		}
	}
	return nil
}

func collectCallArguments(x *ast.Call, b *ConstraintBuilder) {
	calc := b.Calculator()
	ctx := b.Context()
	call := calc.Resolver().ResolveCall(x)
	if call == nil || call.Target == nil {
		return
	}
	target := call.Target
	bindings := callBindings(call, ctx)

	var receiver *BoundType
	if call.Receiver != nil {
		receiver = calc.BoundType(call.Receiver)
	}
	for i, p := range target.Params {
		if i >= len(call.Args) || len(call.Args[i]) == 0 {
			continue
		}
		var pt *resolver.Type
		if i < len(call.ParamTypes) {
			pt = call.ParamTypes[i]
		}
		var param *BoundType
		if p.Decl != nil {
			if v := ctx.DeclVariable(p.Decl); v != nil {
				param = substituteTypeParameters(v.Bound(), bindings)
			}
		}
		if param == nil {
			param = calc.TypeBoundType(pt, nil, receiver, call, false)
		}
		if param == nil {
			continue
		}
		for _, arg := range call.Args[i] {
			bound := param
			if p.Vararg && !arg.Spread {
				if pt.IsPrimitiveArray() || p.Type.IsPrimitiveArray() {
					continue
				}
				if len(param.TypeParameters) == 0 {
					continue
				}
				bound = param.TypeParameters[0].Bound
			}
			b.ExprSubtypeOf(arg.X, bound, Parameter)
		}
	}
}

// callBindings maps the target's type parameters onto the variables of the
// explicit type arguments. Constructor type arguments bind the class.
func callBindings(call *resolver.Call, ctx *Context) map[*resolver.TypeParamDescriptor]*TypeVariable {
	params := call.Target.TypeParams
	if call.Target.Constructor && call.Target.Owner != nil {
		params = call.Target.Owner.TypeParams
	}
	out := make(map[*resolver.TypeParamDescriptor]*TypeVariable)
	for i, p := range params {
		if i >= len(call.TypeArgs) {
			break
		}
		if v := ctx.VariableFor(call.TypeArgs[i]); v != nil {
			out[p] = v
		}
	}
	return out
}

// substituteTypeParameters relabels positions declared as a bound type
// parameter with the variable of the call's type argument.
func substituteTypeParameters(bt *BoundType, bindings map[*resolver.TypeParamDescriptor]*TypeVariable) *BoundType {
	if bt == nil || len(bindings) == 0 {
		return bt
	}
	label := bt.Label
	if v := bt.Variable(); v != nil && v.Type != nil && v.Type.Param != nil {
		if bound, ok := bindings[v.Type.Param]; ok {
			label = TypeVariableLabel{Var: bound}
		}
	}
	out := &BoundType{Label: label, Forced: bt.Forced}
	for _, tp := range bt.TypeParameters {
		out.TypeParameters = append(out.TypeParameters, TypeParameter{
			Bound:    substituteTypeParameters(tp.Bound, bindings),
			Variance: tp.Variance,
		})
	}
	return out
}

func collectLoopParameter(x *ast.For, b *ConstraintBuilder) {
	if x.Param == nil || x.Range == nil {
		return
	}
	v := b.Context().DeclVariable(x.Param)
	if v == nil {
		return
	}
	calc := b.Calculator()
	rangeBound := calc.BoundType(x.Range)
	iter := calc.TypeBoundType(calc.Resolver().IteratorElementType(x.Range), nil, rangeBound, nil, false)
	if iter == nil || len(iter.TypeParameters) == 0 {
		return
	}
	b.SubtypeOf(v.Bound(), iter.TypeParameters[0].Bound, Assignment)
}
