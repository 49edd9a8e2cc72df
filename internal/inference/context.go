package inference

import (
	"fmt"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// Context is the read-mostly index of one inference run.
type Context struct {
	Elements  []ast.Node
	Variables []*TypeVariable

	typeRefVars map[*ast.TypeRef]*TypeVariable
	declVars    map[ast.Decl]*TypeVariable
	inScope     map[ast.Decl]bool

	// ClassSubstitutions maps, per in-batch class, each type parameter of a
	// direct supertype to the source position substituting it.
	ClassSubstitutions map[*ast.Class]map[*resolver.TypeParamDescriptor]*ast.TypeRef
}

// VariableFor returns the variable owning a type position.
func (c *Context) VariableFor(tr *ast.TypeRef) *TypeVariable {
	if tr == nil {
		return nil
	}
	return c.typeRefVars[tr]
}

// DeclVariable returns the variable of a declaration's type (the return
// type for functions and lambdas).
func (c *Context) DeclVariable(d ast.Decl) *TypeVariable {
	if d == nil {
		return nil
	}
	return c.declVars[d]
}

// InScope reports whether d belongs to the batch being converted.
func (c *Context) InScope(d ast.Decl) bool {
	return d != nil && c.inScope[d]
}

// Declarations lists every declaration owning a variable in a stable order.
func (c *Context) Declarations() []ast.Decl {
	var out []ast.Decl
	for _, el := range c.Elements {
		ast.Inspect(el, func(n ast.Node) bool {
			if d, ok := n.(ast.Decl); ok && c.declVars[d] != nil {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

// StateOracle decides per type position whether a variable is created.
// ok=false means "not tracked"; Unknown means a fresh variable; Lower and
// Upper produce a variable that is already fixed.
type StateOracle interface {
	StateOf(class ClassReference, ref *ast.TypeRef) (State, bool)
}

// ContextCollector walks declarations and type positions and creates the
// variables of a run.
type ContextCollector struct {
	resolver resolver.Resolver
	oracle   StateOracle
}

func NewContextCollector(r resolver.Resolver, oracle StateOracle) *ContextCollector {
	return &ContextCollector{resolver: r, oracle: oracle}
}

type contextBuilder struct {
	*ContextCollector
	ctx     *Context
	visited map[*ast.TypeRef]bool
}

func (c *ContextCollector) Collect(elements []ast.Node) *Context {
	b := &contextBuilder{
		ContextCollector: c,
		ctx: &Context{
			Elements:           elements,
			typeRefVars:        make(map[*ast.TypeRef]*TypeVariable),
			declVars:           make(map[ast.Decl]*TypeVariable),
			inScope:            make(map[ast.Decl]bool),
			ClassSubstitutions: make(map[*ast.Class]map[*resolver.TypeParamDescriptor]*ast.TypeRef),
		},
		visited: make(map[*ast.TypeRef]bool),
	}
	for _, el := range elements {
		ast.Inspect(el, b.visit)
	}
	return b.ctx
}

func (b *contextBuilder) visit(n ast.Node) bool {
	switch x := n.(type) {
	case *ast.Import, *ast.TypeParam:
		return false
	case *ast.TypeTest:
		ast.Inspect(x.X, b.visit)
		return false
	case *ast.TypeRef:
		b.fromTypeRef(x, nil)
		return false
	case *ast.Class:
		b.ctx.inScope[x] = true
		b.classSubstitutions(x)
	case *ast.Function:
		b.ctx.inScope[x] = true
		b.bindDecl(x, x.ReturnType)
	case *ast.Parameter:
		b.ctx.inScope[x] = true
		b.bindDecl(x, x.Type)
	case *ast.Property:
		b.ctx.inScope[x] = true
		b.bindDecl(x, x.Type)
	case *ast.Lambda:
		b.ctx.inScope[x] = true
		if sig := b.resolver.LambdaSignature(x); sig != nil {
			if v := b.fromType(sig.Return, nil); v != nil {
				b.ctx.declVars[x] = v
			}
		}
	}
	return true
}

func (b *contextBuilder) bindDecl(d ast.Decl, tr *ast.TypeRef) {
	if v := b.fromTypeRef(tr, nil); v != nil {
		b.ctx.declVars[d] = v
	}
}

func (b *contextBuilder) classSubstitutions(c *ast.Class) {
	subs := make(map[*resolver.TypeParamDescriptor]*ast.TypeRef)
	b.ctx.ClassSubstitutions[c] = subs
	for _, st := range c.Supertypes {
		t := b.resolver.ResolveTypeRef(st)
		if t == nil || t.Class == nil {
			continue
		}
		for i, p := range t.Class.TypeParams {
			if i < len(st.Args) {
				subs[p] = st.Args[i]
			}
		}
	}
}

func (b *contextBuilder) newVariable(class ClassReference, slot *resolver.TypeParamDescriptor) *TypeVariable {
	id := len(b.ctx.Variables)
	v := &TypeVariable{ID: id, Name: fmt.Sprintf("T%d", id), Class: class, TypeParam: slot}
	b.ctx.Variables = append(b.ctx.Variables, v)
	return v
}

func variance(t *resolver.Type, i int) (*resolver.TypeParamDescriptor, resolver.Variance) {
	if t == nil || t.Class == nil || i >= len(t.Class.TypeParams) {
		return nil, resolver.Invariant
	}
	p := t.Class.TypeParams[i]
	return p, p.Variance
}

// fromTypeRef creates the variable of a source type position, recursing
// into its arguments. Each position is processed at most once.
func (b *contextBuilder) fromTypeRef(tr *ast.TypeRef, slot *resolver.TypeParamDescriptor) *TypeVariable {
	if tr == nil {
		return nil
	}
	if b.visited[tr] {
		return b.ctx.typeRefVars[tr]
	}
	b.visited[tr] = true
	if tr.Unit || tr.Star {
		return nil
	}
	t := b.resolver.ResolveTypeRef(tr)
	if t.IsUnit() {
		return nil
	}
	class := ClassReferenceOf(t)
	state, ok := b.oracle.StateOf(class, tr)
	if !ok {
		return nil
	}
	v := b.newVariable(class, slot)
	v.TypeRef = tr
	v.Type = t
	for i, arg := range tr.Args {
		p, vr := variance(t, i)
		var bound *BoundType
		switch {
		case arg.Star:
			b.visited[arg] = true
			bound = &BoundType{Label: StarProjectionLabel{}}
		default:
			if nested := b.fromTypeRef(arg, p); nested != nil {
				bound = nested.Bound()
			} else {
				bound = genericBound(ClassReferenceOf(b.resolver.ResolveTypeRef(arg)))
			}
		}
		v.TypeParameters = append(v.TypeParameters, TypeParameter{Bound: bound, Variance: vr})
	}
	if state != Unknown {
		v.SetStateIfNotFixed(state)
	}
	b.ctx.typeRefVars[tr] = v
	return v
}

// fromType creates a variable for a position that only exists as a
// resolved type, such as the result of a lambda.
func (b *contextBuilder) fromType(t *resolver.Type, slot *resolver.TypeParamDescriptor) *TypeVariable {
	if t == nil || t.IsUnit() {
		return nil
	}
	if t.Star {
		return nil
	}
	class := ClassReferenceOf(t)
	state, ok := b.oracle.StateOf(class, nil)
	if !ok {
		return nil
	}
	v := b.newVariable(class, slot)
	v.Type = t
	for i, arg := range t.Args {
		p, vr := variance(t, i)
		var bound *BoundType
		if arg.Star {
			bound = &BoundType{Label: StarProjectionLabel{}}
		} else if nested := b.fromType(arg, p); nested != nil {
			bound = nested.Bound()
		} else {
			bound = genericBound(ClassReferenceOf(arg))
		}
		v.TypeParameters = append(v.TypeParameters, TypeParameter{Bound: bound, Variance: vr})
	}
	if state != Unknown {
		v.SetStateIfNotFixed(state)
	}
	return v
}
