package inference

import (
	"strings"

	"nullinfer/internal/resolver"
)

// ClassReference is what a bound type or variable is an instance of.
type ClassReference interface {
	String() string
	classRef()
}

type DescriptorClassRef struct{ Class *resolver.ClassDescriptor }

type TypeParameterRef struct{ Param *resolver.TypeParamDescriptor }

type NoClassRef struct{}

func (DescriptorClassRef) classRef() {}
func (TypeParameterRef) classRef()   {}
func (NoClassRef) classRef()         {}

func (r DescriptorClassRef) String() string { return r.Class.Name }
func (r TypeParameterRef) String() string   { return r.Param.Name }
func (NoClassRef) String() string           { return "NoClass" }

// ClassReferenceOf maps a resolved type onto a class reference.
func ClassReferenceOf(t *resolver.Type) ClassReference {
	switch {
	case t == nil:
		return NoClassRef{}
	case t.Class != nil:
		return DescriptorClassRef{Class: t.Class}
	case t.Param != nil:
		return TypeParameterRef{Param: t.Param}
	}
	return NoClassRef{}
}

// Label is the head of a bound type.
type Label interface {
	String() string
	label()
}

type TypeVariableLabel struct{ Var *TypeVariable }

type TypeParameterLabel struct{ Param *resolver.TypeParamDescriptor }

type GenericLabel struct{ Class ClassReference }

type NullLiteralLabel struct{}

type LiteralLabel struct{}

type StarProjectionLabel struct{}

func (TypeVariableLabel) label()   {}
func (TypeParameterLabel) label()  {}
func (GenericLabel) label()        {}
func (NullLiteralLabel) label()    {}
func (LiteralLabel) label()        {}
func (StarProjectionLabel) label() {}

func (l TypeVariableLabel) String() string  { return l.Var.String() }
func (l TypeParameterLabel) String() string { return l.Param.Name }
func (l GenericLabel) String() string       { return l.Class.String() }
func (NullLiteralLabel) String() string     { return "NULL" }
func (LiteralLabel) String() string         { return "LIT" }
func (StarProjectionLabel) String() string  { return "*" }

// TypeParameter is one argument slot of a bound type.
type TypeParameter struct {
	Bound    *BoundType
	Variance resolver.Variance
}

// BoundType is the structural shape of an inferred type. A non-Unknown
// Forced state overrides what the label alone implies.
type BoundType struct {
	Label          Label
	TypeParameters []TypeParameter
	Forced         State
}

func literalBound() *BoundType { return &BoundType{Label: LiteralLabel{}} }

func genericBound(ref ClassReference) *BoundType { return &BoundType{Label: GenericLabel{Class: ref}} }

// WithForced returns a copy carrying a forced state.
func (b *BoundType) WithForced(s State) *BoundType {
	cp := *b
	cp.Forced = s
	return &cp
}

// WithEnhancementFrom copies the forced state of from, if any.
func (b *BoundType) WithEnhancementFrom(from *BoundType) *BoundType {
	if from == nil || from.Forced == Unknown {
		return b
	}
	return b.WithForced(from.Forced)
}

// Variable returns the variable labelling b, or nil.
func (b *BoundType) Variable() *TypeVariable {
	if b == nil {
		return nil
	}
	if l, ok := b.Label.(TypeVariableLabel); ok {
		return l.Var
	}
	return nil
}

// HasVariable reports whether b or any nested slot carries a variable.
func (b *BoundType) HasVariable() bool {
	if b == nil {
		return false
	}
	if b.Variable() != nil {
		return true
	}
	for _, p := range b.TypeParameters {
		if p.Bound.HasVariable() {
			return true
		}
	}
	return false
}

// ConstraintBound is what b contributes to a constraint, or nil when the
// label carries no state (generic classes, type parameters, stars).
func (b *BoundType) ConstraintBound() ConstraintBound {
	if b == nil {
		return nil
	}
	if b.Forced != Unknown {
		return LiteralBound{State: b.Forced}
	}
	switch l := b.Label.(type) {
	case TypeVariableLabel:
		return TypeVariableBound{Var: l.Var}
	case NullLiteralLabel:
		return LiteralBound{State: Upper}
	case LiteralLabel:
		return LiteralBound{State: Lower}
	}
	return nil
}

// Class is the class descriptor b is an instance of, when known.
func (b *BoundType) Class() *resolver.ClassDescriptor {
	if b == nil {
		return nil
	}
	var ref ClassReference
	switch l := b.Label.(type) {
	case TypeVariableLabel:
		ref = l.Var.Class
	case GenericLabel:
		ref = l.Class
	}
	if d, ok := ref.(DescriptorClassRef); ok {
		return d.Class
	}
	return nil
}

func (b *BoundType) String() string {
	if b == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(b.Label.String())
	if len(b.TypeParameters) > 0 {
		sb.WriteByte('<')
		for i, p := range b.TypeParameters {
			if i > 0 {
				sb.WriteString(", ")
			}
			if p.Variance != resolver.Invariant {
				sb.WriteString(p.Variance.String())
				sb.WriteByte(' ')
			}
			sb.WriteString(p.Bound.String())
		}
		sb.WriteByte('>')
	}
	if b.Forced != Unknown {
		sb.WriteString("!!")
		sb.WriteString(b.Forced.String())
	}
	return sb.String()
}
