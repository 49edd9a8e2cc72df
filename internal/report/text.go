package report

import (
	"fmt"
	"io"
)

// WriteText prints file errors first, then one line per annotation:
//
//	path:line:col declaration: Type -> Rendered
func WriteText(w io.Writer, r *Report) error {
	for _, f := range r.Files {
		if f.Error == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: error: %s\n", f.Path, f.Error); err != nil {
			return err
		}
	}
	for _, a := range r.Annotations() {
		if _, err := fmt.Fprintf(w, "%s:%d:%d %s: %s -> %s\n", a.Path, a.Line, a.Column, a.Declaration, a.Type, a.Rendered); err != nil {
			return err
		}
	}
	s := r.Summary
	_, err := fmt.Fprintf(w, "%d variables, %d constraints: %d not-null, %d nullable, %d unknown\n",
		s.Variables, s.Constraints, s.Lower, s.Upper, s.Unknown)
	return err
}
