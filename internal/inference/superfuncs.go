package inference

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// SuperFunctionsProvider lists the functions a declaration overrides.
type SuperFunctionsProvider interface {
	SuperFunctions(fn *ast.Function, ctx *Context) []*resolver.FunctionDescriptor
}

// ResolveSuperFunctions asks the resolver for the overridden set.
type ResolveSuperFunctions struct {
	Resolver resolver.Resolver
}

func (p ResolveSuperFunctions) SuperFunctions(fn *ast.Function, _ *Context) []*resolver.FunctionDescriptor {
	return p.Resolver.SuperFunctions(fn)
}

// ByInfoSuperFunctions reads overrides from the per-run element info table.
// In-batch super functions are found through their label.
type ByInfoSuperFunctions struct {
	resolver resolver.Resolver
	info     resolver.ElementInfo

	indexed *Context
	labels  map[string]*ast.Function
}

func NewByInfoSuperFunctions(r resolver.Resolver, info resolver.ElementInfo) *ByInfoSuperFunctions {
	return &ByInfoSuperFunctions{resolver: r, info: info}
}

func (p *ByInfoSuperFunctions) SuperFunctions(fn *ast.Function, ctx *Context) []*resolver.FunctionDescriptor {
	if fn.Label == "" {
		return nil
	}
	if p.indexed != ctx {
		p.index(ctx)
	}
	var out []*resolver.FunctionDescriptor
	for _, si := range p.info[fn.Label] {
		switch {
		case si.External != nil:
			out = append(out, si.External)
		case si.Internal():
			if target := p.labels[si.Label]; target != nil {
				if fd := p.resolver.DescriptorFor(target); fd != nil {
					out = append(out, fd)
				}
			}
		}
	}
	return out
}

func (p *ByInfoSuperFunctions) index(ctx *Context) {
	p.indexed = ctx
	p.labels = make(map[string]*ast.Function)
	for _, d := range ctx.Declarations() {
		if fn, ok := d.(*ast.Function); ok && fn.Label != "" {
			p.labels[fn.Label] = fn
		}
	}
}

// FunctionCollector ties the return type of an overriding function to the
// return types of the functions it overrides.
type FunctionCollector struct {
	provider SuperFunctionsProvider
}

func NewFunctionCollector(provider SuperFunctionsProvider) *FunctionCollector {
	return &FunctionCollector{provider: provider}
}

func (c *FunctionCollector) CollectConstraints(n ast.Node, b *ConstraintBuilder) {
	fn, ok := n.(*ast.Function)
	if !ok || fn.Constructor {
		return
	}
	ctx := b.Context()
	fd := b.Calculator().Resolver().DescriptorFor(fn)
	if fd == nil || fd.Owner == nil || fd.Owner.Decl == nil {
		return
	}
	returnVar := ctx.VariableFor(fn.ReturnType)
	if returnVar == nil {
		return
	}
	subs := ctx.ClassSubstitutions[fd.Owner.Decl]

	for _, super := range c.provider.SuperFunctions(fn, ctx) {
		if super.Owner == nil || super.Return == nil {
			continue
		}
		used := make(map[*TypeVariable]bool)
		for _, pair := range typeSubstitution(fn.ReturnType, super.Return) {
			superRef := subs[pair.param]
			if superRef == nil {
				continue
			}
			b.TypeRefSameTypeAs(pair.ref, superRef, SuperDeclaration, nil)
			if v := ctx.VariableFor(pair.ref); v != nil {
				used[v] = true
			}
		}
		superFn, ok := super.Decl.(*ast.Function)
		if !ok || superFn == nil {
			continue
		}
		if sv := ctx.VariableFor(superFn.ReturnType); sv != nil {
			b.SameTypeAs(sv.Bound(), returnVar.Bound(), SuperDeclaration, used)
		}
	}
}

type substitutionPair struct {
	ref   *ast.TypeRef
	param *resolver.TypeParamDescriptor
}

// typeSubstitution pairs each source position with the class type parameter
// found at the same place in the overridden return type, innermost first.
func typeSubstitution(ref *ast.TypeRef, super *resolver.Type) []substitutionPair {
	if ref == nil || super == nil {
		return nil
	}
	var out []substitutionPair
	for i, arg := range ref.Args {
		if i >= len(super.Args) {
			break
		}
		out = append(out, typeSubstitution(arg, super.Args[i])...)
	}
	if super.Param != nil && super.Param.OwnerClass != nil {
		out = append(out, substitutionPair{ref: ref, param: super.Param})
	}
	return out
}
