package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/extractor"
	"nullinfer/internal/report"
)

func testReport(rendered string) *report.Report {
	return &report.Report{
		SchemaVersion: report.SchemaVersion,
		ToolVersion:   report.ToolVersion,
		GeneratedAt:   "2026-01-02T03:04:05Z",
		Files: []report.FileReport{
			{Path: "A.java", Annotations: []report.Entry{
				{Line: 3, Column: 5, Declaration: "name", Kind: "field", Type: "String", State: "UPPER", Rendered: rendered},
				{Line: 7, Column: 12, Declaration: "get", Kind: "return", Type: "String", State: "LOWER", Rendered: "String"},
			}},
			{Path: "B.java", Annotations: []report.Entry{}, Error: "parse failed"},
		},
		Summary: report.Summary{Variables: 2, Constraints: 1, Iterations: 7, Lower: 1, Upper: 1},
	}
}

func testSymbol(id, name, file string, line int) *extractor.Symbol {
	return &extractor.Symbol{ID: id, Name: name, Package: "p", Language: "java", UnitType: "method", Filepath: file, StartLine: line, EndLine: line + 2}
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoadRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	syms := []*extractor.Symbol{
		testSymbol("p:get", "get", "A.java", 7),
		testSymbol("p:set", "set", "A.java", 12),
		testSymbol("p:get", "get", "A.java", 7),
	}
	id, err := store.SaveRun(ctx, "/repo", testReport("String?"), syms)
	require.NoError(t, err)

	info, loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/repo", info.Root)
	assert.Equal(t, report.ToolVersion, info.ToolVersion)
	assert.Equal(t, testReport("String?").Files, loaded.Files)
	assert.Equal(t, testReport("String?").Summary, loaded.Summary)

	found, err := store.FindSymbolsByFile(ctx, id, "A.java")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "get", found[0].Name)
	assert.Equal(t, "set", found[1].Name)
}

func TestSQLiteStore_LatestRunAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.SaveRun(ctx, "/repo", testReport("String!"), nil)
	require.NoError(t, err)
	second, err := store.SaveRun(ctx, "/repo", testReport("String?"), nil)
	require.NoError(t, err)
	_, err = store.SaveRun(ctx, "/other", testReport("X"), nil)
	require.NoError(t, err)

	info, latest, err := store.LatestRun(ctx, "/repo")
	require.NoError(t, err)
	assert.Equal(t, second, info.ID)
	assert.Equal(t, "String?", latest.Files[0].Annotations[0].Rendered)

	runs, err := store.ListRuns(ctx, "/repo")
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, store.PruneRuns(ctx, "/repo", 1))
	runs, err = store.ListRuns(ctx, "/repo")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	others, err := store.ListRuns(ctx, "/other")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	_, _, err = store.LatestRun(ctx, "/missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_RejectsIncompatibleRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	r := testReport("String")
	r.ToolVersion = "9.1.0"
	id, err := store.SaveRun(ctx, "/repo", r, nil)
	require.NoError(t, err)

	_, _, err = store.LoadRun(ctx, id)
	assert.ErrorIs(t, err, ErrIncompatibleRun)

	_, _, err = store.LoadRun(ctx, id+100)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
