package inference

import "fmt"

// Priority orders constraints by strength of evidence, weakest first.
type Priority int

const (
	SuperDeclaration Priority = iota
	Initializer
	CompareWithNull
	Assignment
	Return
	UseAsReceiver
	Parameter
)

// Priorities lists every tier in solving order.
var Priorities = []Priority{SuperDeclaration, Initializer, CompareWithNull, Assignment, Return, UseAsReceiver, Parameter}

func (p Priority) String() string {
	switch p {
	case SuperDeclaration:
		return "SUPER_DECLARATION"
	case Initializer:
		return "INITIALIZER"
	case CompareWithNull:
		return "COMPARE_WITH_NULL"
	case Assignment:
		return "ASSIGNMENT"
	case Return:
		return "RETURN"
	case UseAsReceiver:
		return "USE_AS_RECEIVER"
	case Parameter:
		return "PARAMETER"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ConstraintBound is one side of a constraint.
type ConstraintBound interface {
	String() string
	constraintBound()
}

type TypeVariableBound struct{ Var *TypeVariable }

type LiteralBound struct{ State State }

func (TypeVariableBound) constraintBound() {}
func (LiteralBound) constraintBound()      {}

func (b TypeVariableBound) String() string { return b.Var.String() }
func (b LiteralBound) String() string      { return b.State.String() }

type ConstraintKind int

const (
	Subtype ConstraintKind = iota
	Equals
)

// Constraint is Left <: Right for Subtype or Left = Right for Equals.
type Constraint struct {
	Kind     ConstraintKind
	Left     ConstraintBound
	Right    ConstraintBound
	Priority Priority
}

func NewSubtype(sub, super ConstraintBound, p Priority) *Constraint {
	return &Constraint{Kind: Subtype, Left: sub, Right: super, Priority: p}
}

func NewEquals(left, right ConstraintBound, p Priority) *Constraint {
	return &Constraint{Kind: Equals, Left: left, Right: right, Priority: p}
}

func (c *Constraint) String() string {
	op := "<:"
	if c.Kind == Equals {
		op = ":="
	}
	return fmt.Sprintf("%s %s %s due to '%s'", c.Left, op, c.Right, c.Priority)
}

type constraintKey struct {
	kind        ConstraintKind
	left, right ConstraintBound
	priority    Priority
}

func (c *Constraint) key() constraintKey {
	return constraintKey{kind: c.Kind, left: c.Left, right: c.Right, priority: c.Priority}
}

func isLiteral(b ConstraintBound, s State) bool {
	l, ok := b.(LiteralBound)
	return ok && l.State == s
}

func variableOf(b ConstraintBound) *TypeVariable {
	if v, ok := b.(TypeVariableBound); ok {
		return v.Var
	}
	return nil
}

// fixedState is the state b has settled on, if any.
func fixedState(b ConstraintBound) (State, bool) {
	switch x := b.(type) {
	case LiteralBound:
		return x.State, true
	case TypeVariableBound:
		if x.Var.Fixed() {
			return x.Var.State(), true
		}
	}
	return Unknown, false
}

// CloneConstraints copies the list so a solver run leaves the input intact.
func CloneConstraints(in []*Constraint) []*Constraint {
	out := make([]*Constraint, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}
