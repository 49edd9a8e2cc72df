// Package inference is a constraint-based engine that assigns a state to
// every inferred type position of a conversion batch.
//
// A run goes through four strictly sequential steps: the context collector
// creates one TypeVariable per untracked type position, the constraints
// collectors derive subtype/equality constraints from usages, the solver
// fixes variable states tier by tier, and a state updater writes the result
// back to the syntax tree.
package inference

import (
	"fmt"

	"nullinfer/internal/ast"
	"nullinfer/internal/resolver"
)

// State is the three-point lattice the solver works on.
type State int

const (
	Unknown State = iota
	Lower
	Upper
)

func (s State) String() string {
	switch s {
	case Lower:
		return "LOWER"
	case Upper:
		return "UPPER"
	}
	return "UNKNOWN"
}

// TypeVariable stands for one inferred type position. Nested generic
// arguments are TypeVariables of their own, reachable via TypeParameters.
type TypeVariable struct {
	ID             int
	Name           string
	Class          ClassReference
	TypeParameters []TypeParameter

	// Origin: a source type position, or a resolved type for positions
	// that have no syntax (lambda results).
	TypeRef *ast.TypeRef
	Type    *resolver.Type
	// TypeParam is the declared parameter this slot instantiates, if nested.
	TypeParam *resolver.TypeParamDescriptor

	state State
	fixed bool
	bound *BoundType
}

func (v *TypeVariable) State() State { return v.state }

func (v *TypeVariable) Fixed() bool { return v.fixed }

// SetStateIfNotFixed fixes the variable. It reports whether anything changed.
func (v *TypeVariable) SetStateIfNotFixed(s State) bool {
	if v.fixed {
		return false
	}
	v.state = s
	v.fixed = true
	return true
}

// Bound is the bound type labelled with this variable.
func (v *TypeVariable) Bound() *BoundType {
	if v.bound == nil {
		v.bound = &BoundType{Label: TypeVariableLabel{Var: v}, TypeParameters: v.TypeParameters}
	}
	return v.bound
}

func (v *TypeVariable) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("T%d", v.ID)
}
