package nullability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/ast"
	"nullinfer/internal/extractor"
	"nullinfer/internal/inference"
	"nullinfer/internal/resolver"
)

func TestEnhancer_NarrowedReference(t *testing.T) {
	ext, err := extractor.NewExtractor("java")
	require.NoError(t, err)
	unit, err := ext.ExtractFromSource("A.java", []byte(`
class A {
    int f(String s) {
        if (s != null) { return s.length(); }
        return s.length();
    }
}`))
	require.NoError(t, err)
	lib, err := resolver.DefaultLibrary()
	require.NoError(t, err)
	scope := resolver.NewScope(lib, []*ast.File{unit.File})

	fn := unit.File.Decls[0].(*ast.Class).Members[0].(*ast.Function)
	guard := fn.Body.Stmts[0].(*ast.If)
	inside := guard.Then.(*ast.Block).Stmts[0].(*ast.Return).X.(*ast.Qualified).Receiver.(*ast.NameRef)
	after := fn.Body.Stmts[1].(*ast.Return).X.(*ast.Qualified).Receiver.(*ast.NameRef)

	e := NewEnhancer(scope)
	plain := &inference.BoundType{Label: inference.LiteralLabel{}}
	assert.Equal(t, inference.Lower, e.Enhance(inside, plain, nil).Forced)
	assert.Equal(t, inference.Unknown, e.Enhance(after, plain, nil).Forced)
	assert.Equal(t, inference.Upper, e.Enhance(&ast.NullLiteral{}, plain, nil).Forced)
	assert.Equal(t, inference.Unknown, plain.Forced, "the input bound type is not modified")
}
