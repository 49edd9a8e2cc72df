package resolver

import "nullinfer/internal/ast"

// Call is a statically resolved invocation. ReturnType and ParamTypes are
// expressed in terms of the dispatch receiver's class parameters.
type Call struct {
	Target           *FunctionDescriptor
	TypeArgs         []*ast.TypeRef
	Receiver         ast.Expr
	DispatchReceiver *Type
	ReturnType       *Type
	ParamTypes       []*Type
	// Args holds, per target parameter, the arguments mapped onto it.
	Args [][]*ast.Argument
}

// Signature is the functional shape a lambda is checked against.
type Signature struct {
	Params []*Type
	Return *Type
}

// Resolver is the name/overload oracle consumed by the inference engine.
// Answers must be deterministic for one run; nil means "unresolved".
type Resolver interface {
	Name() string
	ResolveReference(ref *ast.NameRef) ast.Decl
	ResolveCall(expr ast.Expr) *Call
	ResolveTypeRef(ref *ast.TypeRef) *Type
	LambdaSignature(l *ast.Lambda) *Signature
	EnclosingFunction(ret *ast.Return) ast.Decl
	IteratorElementType(rng ast.Expr) *Type
	FunctionClass(arity int) *ClassDescriptor
	DescriptorFor(decl ast.Decl) *FunctionDescriptor
	SuperFunctions(fn *ast.Function) []*FunctionDescriptor
	IsNarrowedNotNull(ref *ast.NameRef) bool
}

// Chain asks each resolver in order; the first non-nil answer wins.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// NewDefaultChain puts the in-batch scope first and the library second.
func NewDefaultChain(lib *Library, files []*ast.File) *Chain {
	return NewChain(NewScope(lib, files), NewLibraryResolver(lib))
}

func (c *Chain) Name() string { return "chain" }

func first[T comparable](c *Chain, ask func(Resolver) T) T {
	var zero T
	for _, r := range c.resolvers {
		if v := ask(r); v != zero {
			return v
		}
	}
	return zero
}

func (c *Chain) ResolveReference(ref *ast.NameRef) ast.Decl {
	return first(c, func(r Resolver) ast.Decl { return r.ResolveReference(ref) })
}

func (c *Chain) ResolveCall(expr ast.Expr) *Call {
	return first(c, func(r Resolver) *Call { return r.ResolveCall(expr) })
}

func (c *Chain) ResolveTypeRef(ref *ast.TypeRef) *Type {
	return first(c, func(r Resolver) *Type { return r.ResolveTypeRef(ref) })
}

func (c *Chain) LambdaSignature(l *ast.Lambda) *Signature {
	return first(c, func(r Resolver) *Signature { return r.LambdaSignature(l) })
}

func (c *Chain) EnclosingFunction(ret *ast.Return) ast.Decl {
	return first(c, func(r Resolver) ast.Decl { return r.EnclosingFunction(ret) })
}

func (c *Chain) IteratorElementType(rng ast.Expr) *Type {
	return first(c, func(r Resolver) *Type { return r.IteratorElementType(rng) })
}

func (c *Chain) FunctionClass(arity int) *ClassDescriptor {
	return first(c, func(r Resolver) *ClassDescriptor { return r.FunctionClass(arity) })
}

func (c *Chain) DescriptorFor(decl ast.Decl) *FunctionDescriptor {
	return first(c, func(r Resolver) *FunctionDescriptor { return r.DescriptorFor(decl) })
}

func (c *Chain) SuperFunctions(fn *ast.Function) []*FunctionDescriptor {
	for _, r := range c.resolvers {
		if out := r.SuperFunctions(fn); len(out) > 0 {
			return out
		}
	}
	return nil
}

func (c *Chain) IsNarrowedNotNull(ref *ast.NameRef) bool {
	for _, r := range c.resolvers {
		if r.IsNarrowedNotNull(ref) {
			return true
		}
	}
	return false
}

// LibraryResolver answers from the descriptor table alone: library type
// names and top-level library functions. It knows nothing about scopes.
type LibraryResolver struct {
	lib *Library
}

func NewLibraryResolver(lib *Library) *LibraryResolver {
	return &LibraryResolver{lib: lib}
}

func (r *LibraryResolver) Name() string { return "library" }

func (r *LibraryResolver) ResolveReference(*ast.NameRef) ast.Decl { return nil }

func (r *LibraryResolver) ResolveCall(expr ast.Expr) *Call {
	call, ok := expr.(*ast.Call)
	if !ok || call.Constructor {
		return nil
	}
	for _, fn := range r.lib.Functions(call.Name) {
		if fn.Accepts(len(call.Args)) {
			return NewCall(fn, call, nil, nil, fn.Return, paramTypes(fn, nil))
		}
	}
	return nil
}

func (r *LibraryResolver) ResolveTypeRef(ref *ast.TypeRef) *Type {
	if ref == nil || ref.Star {
		return nil
	}
	c := r.lib.Class(ref.Name)
	if c == nil {
		return nil
	}
	t := &Type{Class: c, Nullability: markerNullability(ref)}
	for _, a := range ref.Args {
		at := r.ResolveTypeRef(a)
		if at == nil {
			at = &Type{Star: a.Star}
		}
		t.Args = append(t.Args, at)
	}
	return t
}

func (r *LibraryResolver) LambdaSignature(*ast.Lambda) *Signature             { return nil }
func (r *LibraryResolver) EnclosingFunction(*ast.Return) ast.Decl             { return nil }
func (r *LibraryResolver) IteratorElementType(ast.Expr) *Type                 { return nil }
func (r *LibraryResolver) FunctionClass(arity int) *ClassDescriptor           { return r.lib.FunctionClass(arity) }
func (r *LibraryResolver) DescriptorFor(ast.Decl) *FunctionDescriptor         { return nil }
func (r *LibraryResolver) SuperFunctions(*ast.Function) []*FunctionDescriptor { return nil }
func (r *LibraryResolver) IsNarrowedNotNull(*ast.NameRef) bool                { return false }

func markerNullability(ref *ast.TypeRef) Nullability {
	switch {
	case ref.Primitive:
		return NotNull
	case ref.Marker == ast.MarkerNullable:
		return Nullable
	case ref.Marker == ast.MarkerNotNull:
		return NotNull
	}
	return Platform
}

func paramTypes(fn *FunctionDescriptor, subst map[*TypeParamDescriptor]*Type) []*Type {
	out := make([]*Type, len(fn.Params))
	for i, p := range fn.Params {
		out[i] = p.Type.Substitute(subst)
	}
	return out
}

// NewCall maps call arguments onto fn's parameters. A trailing vararg
// parameter collects every remaining argument.
func NewCall(fn *FunctionDescriptor, call *ast.Call, receiver ast.Expr, dispatch *Type, ret *Type, params []*Type) *Call {
	c := &Call{
		Target:           fn,
		TypeArgs:         call.TypeArgs,
		Receiver:         receiver,
		DispatchReceiver: dispatch,
		ReturnType:       ret,
		ParamTypes:       params,
		Args:             make([][]*ast.Argument, len(fn.Params)),
	}
	for i, a := range call.Args {
		idx := i
		if idx >= len(fn.Params) {
			idx = len(fn.Params) - 1
		}
		if idx < 0 {
			break
		}
		c.Args[idx] = append(c.Args[idx], a)
	}
	return c
}
