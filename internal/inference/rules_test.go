package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// withSlots attaches generic slots to v before its bound type is first built.
func withSlots(v *TypeVariable, variance resolver.Variance, elems ...*TypeVariable) *TypeVariable {
	for _, e := range elems {
		v.TypeParameters = append(v.TypeParameters, TypeParameter{Bound: e.Bound(), Variance: variance})
	}
	return v
}

func resolvedCall(r *stubResolver, target *resolver.FunctionDescriptor, receiver ast.Expr, typeArgs []*ast.TypeRef, paramTypes []*resolver.Type, args ...*ast.Argument) *ast.Call {
	x := &ast.Call{Name: target.Name, TypeArgs: typeArgs, Args: args}
	r.calls[x] = resolver.NewCall(target, x, receiver, nil, nil, paramTypes)
	return x
}

func arg(x ast.Expr) *ast.Argument { return &ast.Argument{X: x} }

func str(text string) *ast.Literal { return &ast.Literal{Kind: ast.LitString, Text: text} }

func collectCommon(r *stubResolver, ctx *Context, nodes ...ast.Node) []string {
	calc := NewBoundTypeCalculator(r, nil, ctx)
	return constraintStrings(NewAggregator(NewCollector(nil)).Collect(calc, nodes))
}

func TestCommonRules_CallArguments(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	v := newVars(10)

	strCD := &resolver.ClassDescriptor{Name: "String"}
	intCD := &resolver.ClassDescriptor{Name: "int", Primitive: true}
	arrayCD := &resolver.ClassDescriptor{Name: "Array"}
	arrayOf := func(elem *resolver.ClassDescriptor) *resolver.Type {
		return &resolver.Type{Class: arrayCD, Args: []*resolver.Type{{Class: elem}}}
	}

	// void g(String p, String... q)
	p := &ast.Parameter{Name: "p"}
	q := &ast.Parameter{Name: "q", Vararg: true}
	ctx.declVars[p] = v[0]
	ctx.declVars[q] = withSlots(v[1], resolver.Out, v[2])
	g := &resolver.FunctionDescriptor{Name: "g", Params: []*resolver.ParamDescriptor{
		{Name: "p", Index: 0, Type: &resolver.Type{Class: strCD}, Decl: p},
		{Name: "q", Index: 1, Type: arrayOf(strCD), Vararg: true, Decl: q},
	}}
	gTypes := []*resolver.Type{{Class: strCD}, arrayOf(strCD)}

	// void ints(int... n)
	n := &ast.Parameter{Name: "n", Vararg: true}
	ctx.declVars[n] = withSlots(v[3], resolver.Out, v[4])
	ints := &resolver.FunctionDescriptor{Name: "ints", Params: []*resolver.ParamDescriptor{
		{Name: "n", Type: arrayOf(intCD), Vararg: true, Decl: n},
	}}

	// <T> void put(T value)
	put := &resolver.FunctionDescriptor{Name: "put"}
	tp := &resolver.TypeParamDescriptor{Name: "T", OwnerFunction: put}
	put.TypeParams = []*resolver.TypeParamDescriptor{tp}
	value := &ast.Parameter{Name: "value"}
	v[5].Type = &resolver.Type{Param: tp}
	ctx.declVars[value] = v[5]
	put.Params = []*resolver.ParamDescriptor{{Name: "value", Type: v[5].Type, Decl: value}}
	typeArg := &ast.TypeRef{Name: "String"}
	ctx.typeRefVars[typeArg] = v[6]

	// List<String> l; l.add(e) where add comes from the library.
	listCD := &resolver.ClassDescriptor{Name: "List"}
	e := &resolver.TypeParamDescriptor{Name: "E", OwnerClass: listCD}
	listCD.TypeParams = []*resolver.TypeParamDescriptor{e}
	add := &resolver.FunctionDescriptor{Name: "add", Owner: listCD, Params: []*resolver.ParamDescriptor{
		{Name: "e", Type: &resolver.Type{Param: e}},
	}}
	l := &ast.Property{Name: "l", Local: true}
	ctx.declVars[l] = withSlots(v[7], resolver.Invariant, v[8])
	lRef := &ast.NameRef{Name: "l"}
	r.refs[lRef] = l

	arr := &ast.Property{Name: "arr", Local: true}
	ctx.declVars[arr] = v[9]
	arrRef := &ast.NameRef{Name: "arr"}
	r.refs[arrRef] = arr

	block := &ast.Block{Stmts: []ast.Stmt{
		&ast.ExprStmt{X: resolvedCall(r, g, nil, nil, gTypes, arg(&ast.NullLiteral{}), arg(&ast.NullLiteral{}), arg(str(`"a"`)))},
		&ast.ExprStmt{X: resolvedCall(r, g, nil, nil, gTypes, arg(str(`"a"`)), &ast.Argument{X: arrRef, Spread: true})},
		&ast.ExprStmt{X: resolvedCall(r, ints, nil, nil, []*resolver.Type{arrayOf(intCD)}, arg(&ast.Literal{Text: "1"}))},
		&ast.ExprStmt{X: resolvedCall(r, put, nil, []*ast.TypeRef{typeArg}, []*resolver.Type{v[5].Type}, arg(&ast.NullLiteral{}))},
		&ast.ExprStmt{X: resolvedCall(r, add, lRef, nil, []*resolver.Type{{Param: e}}, arg(&ast.NullLiteral{}))},
	}}

	assert.Equal(t, []string{
		// every vararg element flows into the array element slot
		"UPPER <: T0 due to 'PARAMETER'",
		"UPPER <: T2 due to 'PARAMETER'",
		"LOWER <: T2 due to 'PARAMETER'",
		// a spread array flows into the array itself
		"LOWER <: T0 due to 'PARAMETER'",
		"T9 <: T1 due to 'PARAMETER'",
		// explicit type arguments replace the declared type parameter
		"UPPER <: T6 due to 'PARAMETER'",
		// class type parameters are read off the receiver
		"UPPER <: T8 due to 'PARAMETER'",
	}, collectCommon(r, ctx, block))
}

func TestCommonRules_LoopParameter(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	v := newVars(3)

	listCD := &resolver.ClassDescriptor{Name: "List"}
	e := &resolver.TypeParamDescriptor{Name: "E", OwnerClass: listCD}
	listCD.TypeParams = []*resolver.TypeParamDescriptor{e}
	iterCD := &resolver.ClassDescriptor{Name: "Iterator"}
	iterCD.TypeParams = []*resolver.TypeParamDescriptor{{Name: "T", Variance: resolver.Out, OwnerClass: iterCD}}

	items := &ast.Property{Name: "items", Local: true}
	ctx.declVars[items] = withSlots(v[1], resolver.Invariant, v[2])
	rng := &ast.NameRef{Name: "items"}
	r.refs[rng] = items
	r.iterators[rng] = &resolver.Type{Class: iterCD, Args: []*resolver.Type{{Param: e}}}

	s := &ast.Parameter{Name: "s"}
	ctx.declVars[s] = v[0]
	loop := &ast.For{Param: s, Range: rng, Body: &ast.Block{}}

	assert.Equal(t, []string{"T0 <: T2 due to 'ASSIGNMENT'"}, collectCommon(r, ctx, loop))

	t.Run("Unknown element type", func(t *testing.T) {
		delete(r.iterators, rng)
		assert.Empty(t, collectCommon(r, ctx, loop))
	})
}

func TestCommonRules_Casts(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	v := newVars(2)

	target := &ast.TypeRef{Name: "String"}
	ctx.typeRefVars[target] = v[0]
	unsafe := &ast.Cast{X: &ast.NullLiteral{}, Type: target, Unsafe: true}
	local := &ast.Property{Name: "s", Local: true, Init: unsafe}
	ctx.declVars[local] = v[1]

	assert.Equal(t, []string{
		"T0 <: T1 due to 'INITIALIZER'",
		"UPPER <: T0 due to 'ASSIGNMENT'",
	}, collectCommon(r, ctx, local))

	calc := NewBoundTypeCalculator(r, nil, ctx)
	assert.Same(t, v[0], calc.BoundType(unsafe).Variable())

	safe := &ast.Cast{X: &ast.NullLiteral{}, Type: target}
	assert.Empty(t, collectCommon(r, ctx, safe))

	untracked := &ast.Cast{X: &ast.NullLiteral{}, Type: &ast.TypeRef{Name: "int"}, Unsafe: true}
	assert.Equal(t, LiteralBound{State: Lower}, calc.BoundType(untracked).ConstraintBound())
}

func TestBoundTypeCalculator_Lambda(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	v := newVars(2)
	strCD := &resolver.ClassDescriptor{Name: "String"}

	t.Run("From source parameters", func(t *testing.T) {
		p := &ast.Parameter{Name: "x"}
		ctx.declVars[p] = v[0]
		l := &ast.Lambda{Params: []*ast.Parameter{p}, Body: &ast.NameRef{Name: "x"}}
		ctx.declVars[l] = v[1]

		b := NewBoundTypeCalculator(r, nil, ctx).BoundType(l)
		assert.Equal(t, "Function1<in T0, out T1>", b.String())
		assert.Same(t, r.FunctionClass(1), b.Class())
	})

	t.Run("Arity mismatch falls back to the signature", func(t *testing.T) {
		p := &ast.Parameter{Name: "x"}
		l := &ast.Lambda{Params: []*ast.Parameter{p}, Body: &ast.NameRef{Name: "x"}}
		str := &resolver.Type{Class: strCD}
		r.lambdas[l] = &resolver.Signature{Params: []*resolver.Type{str, str}, Return: str}

		b := NewBoundTypeCalculator(r, nil, ctx).BoundType(l)
		assert.Equal(t, "Function2<in String, in String, out String>", b.String())
	})

	t.Run("Untracked parameters without a signature", func(t *testing.T) {
		l := &ast.Lambda{Params: []*ast.Parameter{{Name: "y"}}, Body: &ast.NullLiteral{}}
		b := NewBoundTypeCalculator(r, nil, ctx).BoundType(l)
		assert.Equal(t, LiteralBound{State: Lower}, b.ConstraintBound())
	})
}

func TestBoundTypeCalculator_ReceiverSubstitution(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	v := newVars(2)

	listCD := &resolver.ClassDescriptor{Name: "List"}
	e := &resolver.TypeParamDescriptor{Name: "E", OwnerClass: listCD}
	listCD.TypeParams = []*resolver.TypeParamDescriptor{e}
	get := &resolver.FunctionDescriptor{Name: "get", Owner: listCD, Return: &resolver.Type{Param: e}}

	l := &ast.Property{Name: "l", Local: true}
	ctx.declVars[l] = withSlots(v[0], resolver.Invariant, v[1])
	ref := &ast.NameRef{Name: "l"}
	r.refs[ref] = l

	sel := &ast.Call{Name: "get", Args: []*ast.Argument{arg(&ast.Literal{Text: "0"})}}
	q := &ast.Qualified{Receiver: ref, Selector: sel}
	r.calls[q] = &resolver.Call{Target: get, Receiver: ref, ReturnType: get.Return}

	calc := NewBoundTypeCalculator(r, nil, ctx)
	assert.Same(t, v[1], calc.BoundType(q).Variable())

	t.Run("Unbound parameter stays a type parameter", func(t *testing.T) {
		other := &ast.Call{Name: "get"}
		r.calls[other] = &resolver.Call{Target: get, ReturnType: get.Return}
		b := NewBoundTypeCalculator(r, nil, ctx).BoundType(other)
		require.IsType(t, TypeParameterLabel{}, b.Label)
		assert.Nil(t, b.ConstraintBound())
	})
}

func TestFunctionCollector_ByInfoSubstitution(t *testing.T) {
	r := newStubResolver()
	ctx := emptyContext()
	ctx.ClassSubstitutions = make(map[*ast.Class]map[*resolver.TypeParamDescriptor]*ast.TypeRef)
	v := newVars(5)

	strCD := &resolver.ClassDescriptor{Name: "String"}

	// class Box<T> { T get(); String name(); }
	boxDecl := &ast.Class{Name: "Box"}
	boxCD := &resolver.ClassDescriptor{Name: "Box", Decl: boxDecl}
	tParam := &resolver.TypeParamDescriptor{Name: "T", OwnerClass: boxCD}
	boxCD.TypeParams = []*resolver.TypeParamDescriptor{tParam}
	boxGet := &ast.Function{Name: "get", Label: "box.get", ReturnType: &ast.TypeRef{Name: "T"}}
	boxName := &ast.Function{Name: "name", Label: "box.name", ReturnType: &ast.TypeRef{Name: "String"}}

	// class StrBox extends Box<String> { String get(); String name(); }
	superArg := &ast.TypeRef{Name: "String"}
	implDecl := &ast.Class{Name: "StrBox", Supertypes: []*ast.TypeRef{{Name: "Box", Args: []*ast.TypeRef{superArg}}}}
	implCD := &resolver.ClassDescriptor{Name: "StrBox", Decl: implDecl}
	implGet := &ast.Function{Name: "get", Label: "impl.get", ReturnType: &ast.TypeRef{Name: "String"}}
	implName := &ast.Function{Name: "name", Label: "impl.name", ReturnType: &ast.TypeRef{Name: "String"}}
	unlabelled := &ast.Function{Name: "size", ReturnType: &ast.TypeRef{Name: "String"}}

	ctx.typeRefVars[implGet.ReturnType] = v[0]
	ctx.typeRefVars[superArg] = v[1]
	ctx.typeRefVars[boxGet.ReturnType] = v[2]
	ctx.typeRefVars[boxName.ReturnType] = v[3]
	ctx.typeRefVars[implName.ReturnType] = v[4]
	for _, fn := range []*ast.Function{implGet, boxGet, boxName, implName} {
		ctx.declVars[fn] = ctx.typeRefVars[fn.ReturnType]
	}
	ctx.Elements = []ast.Node{boxGet, boxName, implGet, implName}
	ctx.ClassSubstitutions[implDecl] = map[*resolver.TypeParamDescriptor]*ast.TypeRef{tParam: superArg}

	r.descriptors[boxGet] = &resolver.FunctionDescriptor{Name: "get", Owner: boxCD, Return: &resolver.Type{Param: tParam}, Decl: boxGet}
	r.descriptors[boxName] = &resolver.FunctionDescriptor{Name: "name", Owner: boxCD, Return: &resolver.Type{Class: strCD}, Decl: boxName}
	r.descriptors[implGet] = &resolver.FunctionDescriptor{Name: "get", Owner: implCD, Decl: implGet}
	r.descriptors[implName] = &resolver.FunctionDescriptor{Name: "name", Owner: implCD, Decl: implName}
	r.descriptors[unlabelled] = &resolver.FunctionDescriptor{Name: "size", Owner: implCD, Decl: unlabelled}

	info := resolver.ElementInfo{}
	info.Add("impl.get", resolver.SuperFunctionInfo{Label: "box.get"})
	info.Add("impl.name", resolver.SuperFunctionInfo{Label: "box.name"})
	provider := NewByInfoSuperFunctions(r, info)

	supers := provider.SuperFunctions(implGet, ctx)
	require.Len(t, supers, 1)
	assert.Same(t, boxGet, supers[0].Decl)
	assert.Empty(t, provider.SuperFunctions(unlabelled, ctx))

	b := NewConstraintBuilder(NewBoundTypeCalculator(r, nil, ctx))
	c := NewFunctionCollector(provider)
	for _, fn := range []*ast.Function{implGet, implName, unlabelled} {
		c.CollectConstraints(fn, b)
	}
	assert.Equal(t, []string{
		// the overriding return is tied to the supertype argument, not to T
		"T0 := T1 due to 'SUPER_DECLARATION'",
		"T3 := T4 due to 'SUPER_DECLARATION'",
	}, constraintStrings(b.Constraints()))
}
