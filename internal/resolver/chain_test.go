package resolver

import (
	"testing"

	"nullinfer/internal/ast"
)

type fakeResolver struct {
	LibraryResolver
	name     string
	refs     map[*ast.NameRef]ast.Decl
	supers   []*FunctionDescriptor
	narrowed bool
}

func (f *fakeResolver) Name() string { return f.name }
func (f *fakeResolver) ResolveReference(ref *ast.NameRef) ast.Decl {
	return f.refs[ref]
}
func (f *fakeResolver) SuperFunctions(*ast.Function) []*FunctionDescriptor { return f.supers }
func (f *fakeResolver) IsNarrowedNotNull(*ast.NameRef) bool                { return f.narrowed }

func TestChain_FirstAnswerWins(t *testing.T) {
	ref := &ast.NameRef{Name: "x"}
	other := &ast.NameRef{Name: "y"}
	local := &ast.Property{Name: "x", Local: true}
	field := &ast.Property{Name: "x"}
	fieldY := &ast.Property{Name: "y"}

	r1 := &fakeResolver{name: "r1", refs: map[*ast.NameRef]ast.Decl{ref: local}}
	r2 := &fakeResolver{
		name:     "r2",
		refs:     map[*ast.NameRef]ast.Decl{ref: field, other: fieldY},
		supers:   []*FunctionDescriptor{{Name: "get"}},
		narrowed: true,
	}
	chain := NewChain(r1, r2)

	if got := chain.ResolveReference(ref); got != local {
		t.Fatalf("expected r1's answer, got %+v", got)
	}
	if got := chain.ResolveReference(other); got != fieldY {
		t.Fatalf("expected fallback to r2, got %+v", got)
	}
	if got := chain.ResolveReference(&ast.NameRef{Name: "z"}); got != nil {
		t.Fatalf("expected nil for unknown name, got %+v", got)
	}
	if got := chain.SuperFunctions(&ast.Function{}); len(got) != 1 || got[0].Name != "get" {
		t.Fatalf("unexpected super functions: %+v", got)
	}
	if !chain.IsNarrowedNotNull(ref) {
		t.Fatalf("expected narrowing from r2")
	}
	if chain.Name() != "chain" {
		t.Fatalf("unexpected name %q", chain.Name())
	}
}

func TestLibraryResolver(t *testing.T) {
	lib, err := DefaultLibrary()
	if err != nil {
		t.Fatalf("load library: %v", err)
	}
	r := NewLibraryResolver(lib)

	list := r.ResolveTypeRef(&ast.TypeRef{Name: "java.util.List", Args: []*ast.TypeRef{{Name: "String", Marker: ast.MarkerNullable}}})
	if list == nil || list.Class == nil || list.Class.Name != "List" {
		t.Fatalf("expected List, got %+v", list)
	}
	if len(list.Args) != 1 || !list.Args[0].MarkedNullable() {
		t.Fatalf("expected nullable String argument, got %s", list)
	}
	if got := r.ResolveTypeRef(&ast.TypeRef{Name: "NoSuchType"}); got != nil {
		t.Fatalf("expected nil for unknown type, got %s", got)
	}

	call := &ast.Call{Name: "arrayOfNulls", TypeArgs: []*ast.TypeRef{{Name: "String"}}, Args: []*ast.Argument{{X: &ast.Literal{Kind: ast.LitNumber, Text: "3"}}}}
	resolved := r.ResolveCall(call)
	if resolved == nil || resolved.Target.Name != "arrayOfNulls" {
		t.Fatalf("expected arrayOfNulls, got %+v", resolved)
	}
	if r.ResolveCall(&ast.Call{Name: "A", Constructor: true}) != nil {
		t.Fatalf("constructors are not library functions")
	}
}
