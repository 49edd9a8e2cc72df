package nullability

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/inference"
)

// Annotation is the final decision for one declared type.
type Annotation struct {
	Pos         ast.Span
	Declaration string
	Kind        string
	Type        string
	State       inference.State
	Rendered    string
}

// StateUpdater marks every type position whose variable got fixed.
// Positions left Unknown keep whatever the source said.
type StateUpdater struct{}

func (StateUpdater) UpdateStates(ctx *inference.Context) {
	for _, v := range ctx.Variables {
		if v.TypeRef == nil || !v.Fixed() {
			continue
		}
		switch v.State() {
		case inference.Lower:
			v.TypeRef.Inferred = ast.MarkerNotNull
		case inference.Upper:
			v.TypeRef.Inferred = ast.MarkerNullable
		}
	}
}

// Annotations lists every declaration owning a variable with a source
// position, in traversal order.
func Annotations(ctx *inference.Context) []Annotation {
	var out []Annotation
	for _, d := range ctx.Declarations() {
		v := ctx.DeclVariable(d)
		if v == nil || v.TypeRef == nil {
			continue
		}
		out = append(out, Annotation{
			Pos:         v.TypeRef.Pos(),
			Declaration: d.DeclName(),
			Kind:        kindOf(d),
			Type:        v.TypeRef.String(),
			State:       v.State(),
			Rendered:    v.TypeRef.Rendered(),
		})
	}
	return out
}

func kindOf(d ast.Decl) string {
	switch x := d.(type) {
	case *ast.Function:
		return "return"
	case *ast.Parameter:
		return "parameter"
	case *ast.Property:
		if x.Local {
			return "local"
		}
		return "field"
	}
	return "other"
}
