// Package report turns inference runs into JSON and text reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nullinfer/internal/config"
	"nullinfer/internal/inference"
	"nullinfer/internal/inference/nullability"
)

const (
	SchemaVersion = "1"
	ToolVersion   = "0.3.0"
)

type Report struct {
	SchemaVersion string       `json:"schema_version"`
	ToolVersion   string       `json:"tool_version"`
	GeneratedAt   string       `json:"generated_at"`
	Files         []FileReport `json:"files"`
	Summary       Summary      `json:"summary"`
}

type FileReport struct {
	Path        string  `json:"path"`
	Annotations []Entry `json:"annotations"`
	Error       string  `json:"error,omitempty"`
}

type Entry struct {
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Declaration string `json:"declaration"`
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	State       string `json:"state"`
	Rendered    string `json:"rendered"`
}

type Summary struct {
	Variables   int `json:"variables"`
	Constraints int `json:"constraints"`
	Iterations  int `json:"iterations"`
	Lower       int `json:"lower"`
	Upper       int `json:"upper"`
	Unknown     int `json:"unknown"`
}

// Input is everything Build needs from one pipeline run.
type Input struct {
	Files      []string
	FileErrors map[string]error
	Run        *nullability.Run
	// Unknown is the config policy for undecided positions.
	Unknown string
}

// Build assembles a report. Every input file gets an entry, in path order,
// even when it produced no annotations.
func Build(in Input) *Report {
	r := &Report{
		SchemaVersion: SchemaVersion,
		ToolVersion:   ToolVersion,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	byPath := make(map[string]*FileReport)
	file := func(path string) *FileReport {
		if fr, ok := byPath[path]; ok {
			return fr
		}
		fr := &FileReport{Path: path, Annotations: []Entry{}}
		byPath[path] = fr
		return fr
	}
	for _, p := range in.Files {
		file(p)
	}
	for p, err := range in.FileErrors {
		file(p).Error = err.Error()
	}
	if in.Run != nil {
		for _, a := range in.Run.Annotations {
			fr := file(a.Pos.File)
			fr.Annotations = append(fr.Annotations, Entry{
				Line:        a.Pos.Line,
				Column:      a.Pos.Column,
				Declaration: a.Declaration,
				Kind:        a.Kind,
				Type:        a.Type,
				State:       a.State.String(),
				Rendered:    applyPolicy(a.Rendered, a.State, in.Unknown),
			})
		}
		res := in.Run.Result
		r.Summary.Variables = res.Variables
		r.Summary.Constraints = res.Constraints
		r.Summary.Iterations = res.Iterations
		r.Summary.Lower, r.Summary.Upper, r.Summary.Unknown = res.StateCounts()
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fr := byPath[p]
		sort.SliceStable(fr.Annotations, func(i, j int) bool {
			a, b := fr.Annotations[i], fr.Annotations[j]
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Column < b.Column
		})
		r.Files = append(r.Files, *fr)
	}
	return r
}

// applyPolicy rewrites the outermost platform marker of an undecided type.
func applyPolicy(rendered string, s inference.State, policy string) string {
	if s != inference.Unknown || !strings.HasSuffix(rendered, "!") {
		return rendered
	}
	switch policy {
	case config.UnknownNotNull:
		return strings.TrimSuffix(rendered, "!")
	case config.UnknownNullable:
		return strings.TrimSuffix(rendered, "!") + "?"
	}
	return rendered
}

// Annotations returns every entry of the report with its file path.
func (r *Report) Annotations() []Located {
	var out []Located
	for _, f := range r.Files {
		for _, e := range f.Annotations {
			out = append(out, Located{Path: f.Path, Entry: e})
		}
	}
	return out
}

// CountStates tallies the annotations of the report by state.
func (r *Report) CountStates() (lower, upper, unknown int) {
	for _, a := range r.Annotations() {
		switch a.State {
		case inference.Lower.String():
			lower++
		case inference.Upper.String():
			upper++
		default:
			unknown++
		}
	}
	return lower, upper, unknown
}

// Located is an entry together with the file it belongs to.
type Located struct {
	Path string
	Entry
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}

// Save validates the report against the embedded schema and writes it.
func Save(path string, r *Report) error {
	if err := Validate(r); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0644)
}
