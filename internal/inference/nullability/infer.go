package nullability

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/inference"
	"nullinfer/internal/resolver"
)

// Run is one finished nullability inference over a batch of files.
type Run struct {
	Result      *inference.Result
	Annotations []Annotation
}

// NewFacade wires the nullability flavor around a resolver. Overrides are
// looked up through info when it has entries, through the resolver otherwise.
func NewFacade(r resolver.Resolver, info resolver.ElementInfo, opts inference.Options) *inference.Facade {
	var provider inference.SuperFunctionsProvider = inference.ResolveSuperFunctions{Resolver: r}
	if len(info) > 0 {
		provider = inference.NewByInfoSuperFunctions(r, info)
	}
	collectors := []inference.ConstraintsCollector{
		inference.NewCollector(Rules{}),
		inference.NewFunctionCollector(provider),
	}
	return inference.NewFacade(r, ContextOracle{}, NewEnhancer(r), collectors, StateUpdater{}, opts)
}

// Infer resolves files against lib and runs the whole pipeline on them.
func Infer(files []*ast.File, lib *resolver.Library, opts inference.Options) *Run {
	scope := resolver.NewScope(lib, files)
	chain := resolver.NewChain(scope, resolver.NewLibraryResolver(lib))

	elements := make([]ast.Node, 0, len(files))
	for _, f := range files {
		elements = append(elements, f)
	}
	res := NewFacade(chain, scope.ElementInfo(), opts).Run(elements)
	return &Run{Result: res, Annotations: Annotations(res.Context)}
}
