package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/ast"
	"nullinfer/internal/extractor"
)

const scopeSource = `package p;

import java.util.List;

class Base {
    String /*@@base.get@@*/ get(String key) { return null; }
}

class Impl extends Base {
    String name;

    @Override
    String /*@@impl.get@@*/ get(String key) {
        if (key != null) {
            return key.trim();
        }
        List<String> items = List.of("a");
        for (String s : items) {
            name = s;
        }
        return name;
    }
}

class Cmp implements Comparable<Cmp> {
    public int /*@@cmp.compareTo@@*/ compareTo(Cmp other) { return 0; }
}
`

func parseScope(t *testing.T) (*Scope, map[string]*ast.Class) {
	t.Helper()
	ext, err := extractor.NewExtractor("java")
	require.NoError(t, err)
	unit, err := ext.ExtractFromSource("p/Impl.java", []byte(scopeSource))
	require.NoError(t, err)
	require.False(t, unit.HasErrors)

	lib, err := DefaultLibrary()
	require.NoError(t, err)

	classes := make(map[string]*ast.Class)
	for _, d := range unit.File.Decls {
		c := d.(*ast.Class)
		classes[c.Name] = c
	}
	return NewScope(lib, []*ast.File{unit.File}), classes
}

func method(t *testing.T, c *ast.Class, name string) *ast.Function {
	t.Helper()
	for _, m := range c.Members {
		if fn, ok := m.(*ast.Function); ok && fn.Name == name {
			return fn
		}
	}
	t.Fatalf("method %s not found in %s", name, c.Name)
	return nil
}

func TestScope(t *testing.T) {
	scope, classes := parseScope(t)
	impl := classes["Impl"]
	get := method(t, impl, "get")
	key := get.Params[0]

	guard := get.Body.Stmts[0].(*ast.If)
	condRef := guard.Cond.(*ast.Binary).Left.(*ast.NameRef)
	ret := guard.Then.(*ast.Block).Stmts[0].(*ast.Return)
	trim := ret.X.(*ast.Qualified)
	guardedRef := trim.Receiver.(*ast.NameRef)

	t.Run("References", func(t *testing.T) {
		assert.Same(t, key, scope.ResolveReference(condRef))
		assert.Same(t, key, scope.ResolveReference(guardedRef))

		loop := get.Body.Stmts[2].(*ast.For)
		assign := loop.Body.(*ast.Block).Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
		field := impl.Members[0].(*ast.Property)
		assert.Same(t, field, scope.ResolveReference(assign.Left.(*ast.NameRef)))
		assert.Same(t, loop.Param, scope.ResolveReference(assign.Right.(*ast.NameRef)))
	})

	t.Run("Null checks narrow the guarded branch", func(t *testing.T) {
		assert.False(t, scope.IsNarrowedNotNull(condRef))
		assert.True(t, scope.IsNarrowedNotNull(guardedRef))
	})

	t.Run("Library calls", func(t *testing.T) {
		call := scope.ResolveCall(trim)
		require.NotNil(t, call)
		assert.Equal(t, "trim", call.Target.Name)
		assert.Equal(t, "String", call.Target.Owner.Name)
		assert.Equal(t, NotNull, call.ReturnType.Nullability)
		assert.Same(t, get, scope.EnclosingFunction(ret))
	})

	t.Run("Iteration", func(t *testing.T) {
		loop := get.Body.Stmts[2].(*ast.For)
		require.NotNil(t, scope.IteratorElementType(loop.Range))
		elem := scope.TypeOf(loop.Body.(*ast.Block).Stmts[0].(*ast.ExprStmt).X.(*ast.Assign).Right)
		require.NotNil(t, elem)
		assert.Equal(t, "String", elem.Class.Name)
	})

	t.Run("Overrides", func(t *testing.T) {
		supers := scope.SuperFunctions(get)
		require.Len(t, supers, 1)
		assert.Same(t, method(t, classes["Base"], "get"), supers[0].Decl)
		assert.Empty(t, scope.SuperFunctions(method(t, classes["Base"], "get")))

		info := scope.ElementInfo()
		assert.Equal(t, []string{"cmp.compareTo", "impl.get"}, info.Labels())
		assert.Equal(t, []SuperFunctionInfo{{Label: "base.get"}}, info["impl.get"])
		require.Len(t, info["cmp.compareTo"], 1)
		ext := info["cmp.compareTo"][0]
		assert.False(t, ext.Internal())
		assert.Equal(t, "Comparable", ext.External.Owner.Name)
	})

	t.Run("Class descriptors", func(t *testing.T) {
		cd := scope.Class(impl)
		require.NotNil(t, cd)
		assert.Equal(t, "p.Impl", cd.Qualified)
		assert.True(t, cd.IsSubclassOf(scope.Class(classes["Base"])))
		require.Len(t, cd.Ctors, 1)
		assert.True(t, cd.Ctors[0].Constructor)
	})
}
