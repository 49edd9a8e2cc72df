package analysis

import (
	"path/filepath"
	"strings"

	"nullinfer/internal/extractor"
	"nullinfer/internal/git"
	"nullinfer/internal/report"
)

// ImpactReport summarizes the declarations touched by changes.
type ImpactReport struct {
	DirectlyAffected []*extractor.Symbol
}

// Analyzer relates diff hunks to the declarations of a run.
type Analyzer struct {
	symbols []*extractor.Symbol
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(symbols []*extractor.Symbol) *Analyzer {
	return &Analyzer{symbols: symbols}
}

// AnalyzeImpact identifies which methods and fields overlap the given changes.
// Classes are skipped; their span would cover every member.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) *ImpactReport {
	out := &ImpactReport{DirectlyAffected: []*extractor.Symbol{}}
	seen := make(map[string]bool)

	for _, change := range changes {
		for _, sym := range a.symbols {
			if !isMember(sym) || !samePath(sym.Filepath, change.Path) {
				continue
			}
			if isAffected(sym, change.ChangedLines) && !seen[sym.ID] {
				out.DirectlyAffected = append(out.DirectlyAffected, sym)
				seen[sym.ID] = true
			}
		}
	}
	return out
}

// FilterReport keeps only annotations that sit inside an affected
// declaration. Files without any are dropped; file errors are kept.
// The state counts of the summary cover the kept annotations; variables,
// constraints and iterations still describe the whole batch.
func (a *Analyzer) FilterReport(r *report.Report, changes []git.ChangedFile) *report.Report {
	impact := a.AnalyzeImpact(changes)
	out := *r
	out.Files = nil
	for _, f := range r.Files {
		kept := report.FileReport{Path: f.Path, Error: f.Error, Annotations: []report.Entry{}}
		for _, e := range f.Annotations {
			if withinAny(impact.DirectlyAffected, f.Path, e.Line) {
				kept.Annotations = append(kept.Annotations, e)
			}
		}
		if len(kept.Annotations) > 0 || kept.Error != "" {
			out.Files = append(out.Files, kept)
		}
	}
	out.Summary.Lower, out.Summary.Upper, out.Summary.Unknown = out.CountStates()
	return &out
}

func isMember(sym *extractor.Symbol) bool {
	switch sym.UnitType {
	case "method", "constructor", "field":
		return true
	}
	return false
}

// samePath matches a scanned path against a repository-relative diff path.
func samePath(scanned, changed string) bool {
	scanned = filepath.ToSlash(filepath.Clean(scanned))
	changed = filepath.ToSlash(filepath.Clean(changed))
	return scanned == changed || strings.HasSuffix(scanned, "/"+changed)
}

func withinAny(syms []*extractor.Symbol, path string, line int) bool {
	for _, s := range syms {
		if s.Filepath == path && line >= s.StartLine && line <= s.EndLine {
			return true
		}
	}
	return false
}

func isAffected(sym *extractor.Symbol, lines []int) bool {
	// Simple overlap check
	for _, line := range lines {
		if line >= sym.StartLine && line <= sym.EndLine {
			return true
		}
	}
	return false
}
