package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/ast"
	"nullinfer/internal/config"
	"nullinfer/internal/git"
	"nullinfer/internal/resolver"
	"nullinfer/internal/storage"
)

func writeJava(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	return path
}

func TestPipeline_Run(t *testing.T) {
	root := t.TempDir()
	a := writeJava(t, root, "src/A.java", `class A {
    String name;
    void reset() { name = null; }
}`)
	b := writeJava(t, root, "src/B.java", `class B {
    int len(String s) { return s.length(); }
}`)

	cfg := config.Default()
	cfg.Inference.Workers = 2
	o, err := New(cfg, nil).Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, o.Report.Files, 2)
	assert.Equal(t, a, o.Report.Files[0].Path)
	assert.Equal(t, b, o.Report.Files[1].Path)

	states := make(map[string]string)
	for _, e := range o.Report.Annotations() {
		states[e.Kind+":"+e.Declaration] = e.State
	}
	assert.Equal(t, "UPPER", states["field:name"])
	assert.Equal(t, "LOWER", states["parameter:s"])
	assert.NotEmpty(t, o.Symbols)
	assert.Positive(t, o.Report.Summary.Variables)

	t.Run("Persist", func(t *testing.T) {
		store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		defer store.Close()

		ctx := context.Background()
		_, err = Persist(ctx, store, o, 1)
		require.NoError(t, err)
		id, err := Persist(ctx, store, o, 1)
		require.NoError(t, err)

		runs, err := store.ListRuns(ctx, root)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, id, runs[0].ID)

		syms, err := store.FindSymbolsByFile(ctx, id, a)
		require.NoError(t, err)
		assert.NotEmpty(t, syms)
	})
}

func TestPipeline_RunFiles_ReportsUnreadableFiles(t *testing.T) {
	root := t.TempDir()
	good := writeJava(t, root, "Good.java", `class Good { String f() { return null; } }`)
	missing := filepath.Join(root, "Missing.java")

	o, err := New(config.Default(), nil).RunFiles(context.Background(), root, []string{good, missing})
	require.NoError(t, err)

	require.Len(t, o.Report.Files, 2)
	assert.Equal(t, good, o.Report.Files[0].Path)
	assert.NotEmpty(t, o.Report.Files[0].Annotations)
	assert.Equal(t, missing, o.Report.Files[1].Path)
	assert.NotEmpty(t, o.Report.Files[1].Error)
}

func badFile() *ast.File {
	at := ast.Span{File: "Bad.java", Line: 2, Column: 9}
	fn := &ast.Function{
		Span:       at,
		Name:       "f",
		ReturnType: &ast.TypeRef{Span: at, Name: "String"},
		Body: &ast.Block{Span: at, Stmts: []ast.Stmt{
			&ast.Return{Span: at, X: &ast.Binary{Span: at, Op: "+=", Left: &ast.Literal{Span: at}, Right: &ast.Literal{Span: at}}},
		}},
	}
	return &ast.File{Span: at, Path: "Bad.java", Decls: []ast.Decl{&ast.Class{Span: at, Name: "Bad", Members: []ast.Decl{fn}}}}
}

func goodFile() *ast.File {
	at := ast.Span{File: "Good.java", Line: 1, Column: 1}
	prop := &ast.Property{Span: at, Name: "f", Type: &ast.TypeRef{Span: at, Name: "String"}, Init: &ast.NullLiteral{Span: at}}
	return &ast.File{Span: at, Path: "Good.java", Decls: []ast.Decl{&ast.Class{Span: at, Name: "Good", Members: []ast.Decl{prop}}}}
}

func TestPipeline_StrictShapesDropOffendingFile(t *testing.T) {
	lib, err := resolver.DefaultLibrary()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Debug.StrictShapes = true
	fileErrors := make(map[string]error)
	run := New(cfg, nil).inferStage([]*ast.File{goodFile(), badFile()}, lib, fileErrors)

	require.NotNil(t, run)
	require.Contains(t, fileErrors, "Bad.java")
	assert.Contains(t, fileErrors["Bad.java"].Error(), "*ast.Binary")
	require.Len(t, run.Annotations, 1)
	assert.Equal(t, "Good.java", run.Annotations[0].Pos.File)
}

func TestPipeline_LenientShapesKeepEveryFile(t *testing.T) {
	lib, err := resolver.DefaultLibrary()
	require.NoError(t, err)

	fileErrors := make(map[string]error)
	run := New(config.Default(), nil).inferStage([]*ast.File{goodFile(), badFile()}, lib, fileErrors)

	assert.Empty(t, fileErrors)
	assert.Len(t, run.Annotations, 2)
}

func TestPipeline_ShapeOutsideBatchIsNotAFileError(t *testing.T) {
	lib, err := resolver.DefaultLibrary()
	require.NoError(t, err)

	// The offending node carries no file, so no batch file can be blamed.
	orphan := badFile()
	fn := orphan.Decls[0].(*ast.Class).Members[0].(*ast.Function)
	fn.Body.Stmts[0].(*ast.Return).X.(*ast.Binary).Span = ast.Span{Line: 2, Column: 9}

	cfg := config.Default()
	cfg.Debug.StrictShapes = true
	fileErrors := make(map[string]error)
	run := New(cfg, nil).inferStage([]*ast.File{goodFile(), orphan}, lib, fileErrors)

	require.NotNil(t, run)
	assert.Empty(t, fileErrors)
	assert.Len(t, run.Annotations, 2, "both files stay in the batch")
}

func TestRebaseChanges(t *testing.T) {
	repo := t.TempDir()
	root := filepath.Join(repo, "proj")
	require.NoError(t, os.MkdirAll(root, 0o755))

	got, err := rebaseChanges([]git.ChangedFile{
		{Path: "proj/src/A.java", ChangedLines: []int{3}},
		{Path: "other/B.java", ChangedLines: []int{1}},
		{Path: "proj2/C.java", ChangedLines: []int{1}},
	}, repo, root)
	require.NoError(t, err)

	require.Len(t, got, 1, "changes outside the project root are dropped")
	assert.Equal(t, filepath.Join(root, "src", "A.java"), got[0].Path)
	assert.Equal(t, []int{3}, got[0].ChangedLines)
}

func gitIn(t *testing.T, dir string, args ...string) {
	t.Helper()
	base := []string{"-C", dir, "-c", "user.name=nullinfer", "-c", "user.email=nullinfer@example.com", "-c", "commit.gpgsign=false"}
	out, err := exec.Command("git", append(base, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestPipeline_Diff(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo := t.TempDir()
	root := filepath.Join(repo, "proj")
	a := writeJava(t, root, "src/A.java", `class A {
    String name;
    String f() { return name; }
}`)
	gitIn(t, repo, "init", "-q")
	gitIn(t, repo, "add", ".")
	gitIn(t, repo, "commit", "-q", "-m", "init")

	writeJava(t, root, "src/A.java", `class A {
    String name;
    String f() { return name; }
    String g() { return null; }
}`)

	o, changes, err := New(config.Default(), nil).Diff(context.Background(), root, "HEAD")
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, a, changes[0].Path)
	assert.Equal(t, []int{4}, changes[0].ChangedLines)

	require.Len(t, o.Report.Files, 1)
	require.NotEmpty(t, o.Report.Files[0].Annotations)
	for _, e := range o.Report.Files[0].Annotations {
		assert.Equal(t, "g", e.Declaration)
		assert.Equal(t, 4, e.Line)
	}
	assert.Equal(t, 1, o.Report.Summary.Upper)
}
