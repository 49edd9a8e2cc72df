package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nullinfer/internal/extractor"
	"nullinfer/internal/git"
	"nullinfer/internal/report"
)

func symbols() []*extractor.Symbol {
	return []*extractor.Symbol{
		{ID: "A", Name: "A", UnitType: "class", Filepath: "/repo/src/A.java", StartLine: 1, EndLine: 30},
		{ID: "A.name", Name: "name", UnitType: "field", Filepath: "/repo/src/A.java", StartLine: 3, EndLine: 3},
		{ID: "A.get", Name: "get", UnitType: "method", Filepath: "/repo/src/A.java", StartLine: 5, EndLine: 9},
		{ID: "A.set", Name: "set", UnitType: "method", Filepath: "/repo/src/A.java", StartLine: 11, EndLine: 14},
		{ID: "B.run", Name: "run", UnitType: "method", Filepath: "/repo/src/B.java", StartLine: 2, EndLine: 6},
	}
}

func TestAnalyzer_AnalyzeImpact(t *testing.T) {
	a := NewAnalyzer(symbols())
	impact := a.AnalyzeImpact([]git.ChangedFile{
		{Path: "src/A.java", ChangedLines: []int{6, 7, 20}},
	})

	require.Len(t, impact.DirectlyAffected, 1)
	assert.Equal(t, "A.get", impact.DirectlyAffected[0].ID)
}

func TestAnalyzer_FilterReport(t *testing.T) {
	r := &report.Report{
		Files: []report.FileReport{
			{Path: "/repo/src/A.java", Annotations: []report.Entry{
				{Line: 3, Declaration: "name", State: "UPPER"},
				{Line: 5, Declaration: "get", State: "LOWER"},
				{Line: 11, Declaration: "set", State: "UNKNOWN"},
			}},
			{Path: "/repo/src/B.java", Annotations: []report.Entry{{Line: 2, Declaration: "run", State: "LOWER"}}},
			{Path: "/repo/src/C.java", Error: "parse failed", Annotations: []report.Entry{}},
		},
		Summary: report.Summary{Variables: 5, Lower: 2, Upper: 1, Unknown: 1},
	}

	filtered := NewAnalyzer(symbols()).FilterReport(r, []git.ChangedFile{
		{Path: "src/A.java", ChangedLines: []int{3, 12}},
	})

	require.Len(t, filtered.Files, 2)
	var decls []string
	for _, e := range filtered.Files[0].Annotations {
		decls = append(decls, e.Declaration)
	}
	assert.Equal(t, []string{"name", "set"}, decls)
	assert.Equal(t, "parse failed", filtered.Files[1].Error)
	assert.Equal(t, report.Summary{Variables: 5, Lower: 0, Upper: 1, Unknown: 1}, filtered.Summary,
		"state counts follow the kept annotations")
	assert.Len(t, r.Files, 3, "input report is left intact")
	assert.Equal(t, 2, r.Summary.Lower)
}
