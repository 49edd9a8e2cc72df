package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

type stubResolver struct {
	refs        map[*ast.NameRef]ast.Decl
	calls       map[ast.Expr]*resolver.Call
	types       map[*ast.TypeRef]*resolver.Type
	returns     map[*ast.Return]ast.Decl
	lambdas     map[*ast.Lambda]*resolver.Signature
	iterators   map[ast.Expr]*resolver.Type
	descriptors map[ast.Decl]*resolver.FunctionDescriptor
	narrowed    map[*ast.NameRef]bool
	functions   map[int]*resolver.ClassDescriptor
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		refs:        make(map[*ast.NameRef]ast.Decl),
		calls:       make(map[ast.Expr]*resolver.Call),
		types:       make(map[*ast.TypeRef]*resolver.Type),
		returns:     make(map[*ast.Return]ast.Decl),
		lambdas:     make(map[*ast.Lambda]*resolver.Signature),
		iterators:   make(map[ast.Expr]*resolver.Type),
		descriptors: make(map[ast.Decl]*resolver.FunctionDescriptor),
		narrowed:    make(map[*ast.NameRef]bool),
		functions:   make(map[int]*resolver.ClassDescriptor),
	}
}

func (r *stubResolver) Name() string                                          { return "stub" }
func (r *stubResolver) ResolveReference(ref *ast.NameRef) ast.Decl            { return r.refs[ref] }
func (r *stubResolver) ResolveCall(expr ast.Expr) *resolver.Call              { return r.calls[expr] }
func (r *stubResolver) ResolveTypeRef(ref *ast.TypeRef) *resolver.Type        { return r.types[ref] }
func (r *stubResolver) LambdaSignature(l *ast.Lambda) *resolver.Signature     { return r.lambdas[l] }
func (r *stubResolver) EnclosingFunction(ret *ast.Return) ast.Decl            { return r.returns[ret] }
func (r *stubResolver) IteratorElementType(rng ast.Expr) *resolver.Type       { return r.iterators[rng] }
func (r *stubResolver) IsNarrowedNotNull(ref *ast.NameRef) bool               { return r.narrowed[ref] }
func (r *stubResolver) DescriptorFor(d ast.Decl) *resolver.FunctionDescriptor { return r.descriptors[d] }

func (r *stubResolver) FunctionClass(arity int) *resolver.ClassDescriptor {
	if c, ok := r.functions[arity]; ok {
		return c
	}
	c := &resolver.ClassDescriptor{Name: fmt.Sprintf("Function%d", arity), Interface: true, Functional: true}
	r.functions[arity] = c
	return c
}

func (r *stubResolver) SuperFunctions(*ast.Function) []*resolver.FunctionDescriptor { return nil }

func emptyContext() *Context {
	return &Context{
		typeRefVars: make(map[*ast.TypeRef]*TypeVariable),
		declVars:    make(map[ast.Decl]*TypeVariable),
		inScope:     make(map[ast.Decl]bool),
	}
}

func TestBoundTypeCalculator_Memoizes(t *testing.T) {
	null := &ast.NullLiteral{}
	paren := &ast.Paren{X: null}
	calc := NewBoundTypeCalculator(newStubResolver(), nil, emptyContext())

	first := calc.BoundType(null)
	assert.Same(t, first, calc.BoundType(null))
	assert.Same(t, first, calc.BoundType(paren))
	assert.Equal(t, LiteralBound{State: Upper}, first.ConstraintBound())

	got := calc.ExpressionBoundTypes()
	require.Len(t, got, 2)
	assert.Same(t, null, got[0].Expr)
	assert.Same(t, paren, got[1].Expr)
}

func TestBoundTypeCalculator_Shapes(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	prop := &ast.Property{Name: "x"}
	v := &TypeVariable{ID: 0, Name: "T0"}
	ctx.declVars[prop] = v

	known := &ast.NameRef{Name: "x"}
	r.refs[known] = prop
	unknown := &ast.NameRef{Name: "y"}

	calc := NewBoundTypeCalculator(r, nil, ctx)

	assert.Same(t, v, calc.BoundType(known).Variable())
	assert.Equal(t, LiteralBound{State: Lower}, calc.BoundType(unknown).ConstraintBound())
	assert.Equal(t, LiteralBound{State: Lower}, calc.BoundType(&ast.Literal{Kind: ast.LitString, Text: `"a"`}).ConstraintBound())
	assert.Same(t, v, calc.BoundType(&ast.Assign{Op: "=", Left: known, Right: &ast.NullLiteral{}}).Variable())

	cond := &ast.If{IsExpr: true, Cond: &ast.Literal{Kind: ast.LitBool, Text: "true"}, Then: known, Else: &ast.NullLiteral{}}
	assert.IsType(t, NullLiteralLabel{}, calc.BoundType(cond).Label)

	cond = &ast.If{IsExpr: true, Cond: &ast.Literal{Kind: ast.LitBool, Text: "true"}, Then: &ast.Literal{Text: "1"}, Else: known}
	assert.Same(t, v, calc.BoundType(cond).Variable())
}

func TestBoundTypeCalculator_UnhandledShape(t *testing.T) {
	odd := &ast.Binary{Op: "=", Left: &ast.NameRef{Name: "a"}, Right: &ast.NameRef{Name: "b"}}

	lenient := NewBoundTypeCalculator(newStubResolver(), nil, emptyContext())
	assert.Equal(t, LiteralBound{State: Lower}, lenient.BoundType(odd).ConstraintBound())

	strict := NewBoundTypeCalculator(newStubResolver(), nil, emptyContext(), WithStrictShapes(true))
	assert.Panics(t, func() { strict.BoundType(odd) })
}

func TestCommonRules(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	prop := &ast.Property{Name: "x", Local: true}
	v := &TypeVariable{ID: 0, Name: "T0"}
	ctx.declVars[prop] = v

	ref := func() *ast.NameRef {
		n := &ast.NameRef{Name: "x"}
		r.refs[n] = prop
		return n
	}

	fn := &ast.Function{Name: "f"}
	ret := &ast.Return{X: &ast.NullLiteral{}}
	r.returns[ret] = fn
	w := &TypeVariable{ID: 1, Name: "T1"}
	ctx.declVars[fn] = w

	lambda := &ast.Lambda{
		Body:             &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{X: ref()}}},
		ResultIsLastExpr: true,
	}
	u := &TypeVariable{ID: 2, Name: "T2"}
	ctx.declVars[lambda] = u

	fn.Body = &ast.Block{Stmts: []ast.Stmt{
		prop,
		&ast.ExprStmt{X: &ast.Assign{Op: "=", Left: ref(), Right: &ast.NullLiteral{}}},
		&ast.ExprStmt{X: &ast.Assign{Op: "+=", Left: ref(), Right: &ast.Literal{Text: "1"}}},
		&ast.ExprStmt{X: lambda},
		ret,
	}}

	calc := NewBoundTypeCalculator(r, nil, ctx)
	got := NewAggregator(NewCollector(nil)).Collect(calc, []ast.Node{fn})
	assert.Equal(t, []string{
		"UPPER <: T0 due to 'ASSIGNMENT'",
		"T0 <: T2 due to 'RETURN'",
		"UPPER <: T1 due to 'RETURN'",
	}, constraintStrings(got))
}

func TestAggregator_SkipsImports(t *testing.T) {
	seen := 0
	count := CollectorFunc(func(n ast.Node, _ *ConstraintBuilder) {
		if _, ok := n.(*ast.Import); ok {
			seen++
		}
	})
	file := &ast.File{Imports: []*ast.Import{{Path: "java.util.List"}}}
	calc := NewBoundTypeCalculator(newStubResolver(), nil, emptyContext())
	NewAggregator(count).Collect(calc, []ast.Node{file})
	assert.Zero(t, seen)
}

type fixedOracle struct{ state State }

func (o fixedOracle) StateOf(ClassReference, *ast.TypeRef) (State, bool) { return o.state, true }

type recordingUpdater struct{ calls int }

func (u *recordingUpdater) UpdateStates(*Context) { u.calls++ }

func TestFacade_Run(t *testing.T) {
	r := newStubResolver()
	str := &resolver.ClassDescriptor{Name: "String"}
	typ := &ast.TypeRef{Name: "String"}
	r.types[typ] = &resolver.Type{Class: str}

	prop := &ast.Property{Name: "s", Type: typ, Local: true}
	ref := &ast.NameRef{Name: "s"}
	r.refs[ref] = prop
	fn := &ast.Function{Name: "f", Body: &ast.Block{Stmts: []ast.Stmt{
		prop,
		&ast.ExprStmt{X: &ast.Assign{Op: "=", Left: ref, Right: &ast.NullLiteral{}}},
	}}}

	updater := &recordingUpdater{}
	facade := NewFacade(r, fixedOracle{state: Unknown}, nil, []ConstraintsCollector{NewCollector(nil)}, updater, Options{Debug: true})
	res := facade.Run([]ast.Node{fn})

	require.Equal(t, 1, res.Variables)
	assert.Equal(t, 1, res.Constraints)
	assert.Equal(t, 1, updater.calls)
	assert.Len(t, res.InitialConstraints, 1)
	assert.NotEmpty(t, res.BoundTypes)

	v := res.Context.DeclVariable(prop)
	require.NotNil(t, v)
	assert.Equal(t, Upper, v.State())
	lower, upper, unknown := res.StateCounts()
	assert.Equal(t, [3]int{0, 1, 0}, [3]int{lower, upper, unknown})
	// Debug copies are not touched by the solver.
	assert.Equal(t, TypeVariableBound{Var: v}, res.InitialConstraints[0].Right)
}
