// Package nullability plugs nullability semantics into the generic
// inference engine: which type positions get a variable, what domain
// evidence forces a state, and how solved states reach the syntax tree.
package nullability

import (
	"nullinfer/internal/ast"
	"nullinfer/internal/inference"
)

// ContextOracle decides the initial state of a type position from its
// explicit marker.
type ContextOracle struct{}

func (ContextOracle) StateOf(class inference.ClassReference, ref *ast.TypeRef) (inference.State, bool) {
	if d, ok := class.(inference.DescriptorClassRef); ok && d.Class.Unit {
		return inference.Unknown, false
	}
	if ref == nil {
		if d, ok := class.(inference.DescriptorClassRef); ok && d.Class.Primitive {
			return inference.Lower, true
		}
		return inference.Unknown, true
	}
	switch {
	case ref.Unit:
		return inference.Unknown, false
	case ref.Marker == ast.MarkerNullable:
		return inference.Upper, true
	case ref.Marker == ast.MarkerNotNull, ref.Primitive:
		return inference.Lower, true
	}
	return inference.Unknown, true
}
