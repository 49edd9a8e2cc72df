package resolver

import (
	"strings"

	"nullinfer/internal/ast"
)

// Variance of a declared type parameter.
type Variance int

const (
	Invariant Variance = iota
	In
	Out
)

func (v Variance) String() string {
	switch v {
	case In:
		return "in"
	case Out:
		return "out"
	}
	return "invariant"
}

// Nullability of a declared (library or source) type.
type Nullability int

const (
	Platform Nullability = iota
	NotNull
	Nullable
)

type ClassDescriptor struct {
	Name       string
	Qualified  string
	TypeParams []*TypeParamDescriptor
	Supertypes []*Type
	Methods    []*FunctionDescriptor
	Fields     []*FunctionDescriptor
	Ctors      []*FunctionDescriptor
	Interface  bool
	Primitive  bool
	Unit       bool
	// Functional marks a single-abstract-method interface usable as a lambda target.
	Functional bool
	Decl       *ast.Class
}

type TypeParamDescriptor struct {
	Name          string
	Index         int
	Variance      Variance
	OwnerClass    *ClassDescriptor
	OwnerFunction *FunctionDescriptor
}

type FunctionDescriptor struct {
	Name        string
	Owner       *ClassDescriptor
	TypeParams  []*TypeParamDescriptor
	Params      []*ParamDescriptor
	Return      *Type
	Constructor bool
	Property    bool
	Static      bool
	Abstract    bool
	Overridden  []*FunctionDescriptor
	Decl        ast.Decl
}

type ParamDescriptor struct {
	Name   string
	Index  int
	Type   *Type
	Vararg bool
	Decl   *ast.Parameter
}

// Type is a resolved type: either a class with arguments or a type parameter.
// A nil *Type means "unresolved".
type Type struct {
	Class       *ClassDescriptor
	Param       *TypeParamDescriptor
	Args        []*Type
	Nullability Nullability
	Star        bool
}

func (t *Type) MarkedNullable() bool { return t != nil && t.Nullability == Nullable }

func (t *Type) IsUnit() bool { return t != nil && t.Class != nil && t.Class.Unit }

func (t *Type) IsPrimitive() bool { return t != nil && t.Class != nil && t.Class.Primitive }

// IsPrimitiveArray reports an array whose element type is a primitive.
func (t *Type) IsPrimitiveArray() bool {
	return t != nil && t.Class != nil && t.Class.Name == "Array" &&
		len(t.Args) == 1 && t.Args[0].IsPrimitive()
}

func (t *Type) String() string {
	if t == nil {
		return "<unresolved>"
	}
	if t.Star {
		return "*"
	}
	var b strings.Builder
	switch {
	case t.Param != nil:
		b.WriteString(t.Param.Name)
	case t.Class != nil:
		b.WriteString(t.Class.Name)
	}
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	switch t.Nullability {
	case Nullable:
		b.WriteByte('?')
	case NotNull:
		if !t.IsPrimitive() {
			b.WriteByte('!')
		}
	}
	return b.String()
}

// Substitute replaces type parameters found in subst. Nullability of the
// replaced position wins when it is explicitly nullable.
func (t *Type) Substitute(subst map[*TypeParamDescriptor]*Type) *Type {
	if t == nil || len(subst) == 0 {
		return t
	}
	if t.Param != nil {
		r, ok := subst[t.Param]
		if !ok || r == nil {
			return t
		}
		if t.Nullability == Nullable && r.Nullability != Nullable {
			cp := *r
			cp.Nullability = Nullable
			return &cp
		}
		return r
	}
	if len(t.Args) == 0 {
		return t
	}
	cp := *t
	cp.Args = make([]*Type, len(t.Args))
	for i, a := range t.Args {
		cp.Args[i] = a.Substitute(subst)
	}
	return &cp
}

// DefaultType is the class applied to its own type parameters.
func (c *ClassDescriptor) DefaultType() *Type {
	t := &Type{Class: c}
	for _, p := range c.TypeParams {
		t.Args = append(t.Args, &Type{Param: p})
	}
	return t
}

// Bindings maps the class parameters onto the arguments of t.
func Bindings(t *Type) map[*TypeParamDescriptor]*Type {
	if t == nil || t.Class == nil {
		return nil
	}
	out := make(map[*TypeParamDescriptor]*Type, len(t.Class.TypeParams))
	for i, p := range t.Class.TypeParams {
		if i < len(t.Args) && !t.Args[i].Star {
			out[p] = t.Args[i]
		}
	}
	return out
}

// Member is a function found through the supertype graph together with the
// substitution rewriting its declaring class parameters in terms of the
// class the lookup started from.
type Member struct {
	Fn    *FunctionDescriptor
	Subst map[*TypeParamDescriptor]*Type
}

// LookupMember finds a method (or field when field is set) by name and arity
// on c or its supertypes.
func (c *ClassDescriptor) LookupMember(name string, arity int, field bool) (*FunctionDescriptor, map[*TypeParamDescriptor]*Type) {
	ms := c.LookupOverloads(name, arity, field)
	if len(ms) == 0 {
		return nil, nil
	}
	return ms[0].Fn, ms[0].Subst
}

// LookupOverloads returns every candidate declared on the nearest class of
// the hierarchy that declares at least one.
func (c *ClassDescriptor) LookupOverloads(name string, arity int, field bool) []Member {
	return c.lookup(name, arity, field, nil, make(map[*ClassDescriptor]bool))
}

func (c *ClassDescriptor) lookup(name string, arity int, field bool, subst map[*TypeParamDescriptor]*Type, seen map[*ClassDescriptor]bool) []Member {
	if c == nil || seen[c] {
		return nil
	}
	seen[c] = true
	members := c.Methods
	if field {
		members = c.Fields
	}
	var out []Member
	for _, m := range members {
		if m.Name == name && (field || m.Accepts(arity)) {
			out = append(out, Member{Fn: m, Subst: subst})
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, st := range c.Supertypes {
		if st == nil || st.Class == nil {
			continue
		}
		next := make(map[*TypeParamDescriptor]*Type)
		for p, arg := range Bindings(st) {
			next[p] = arg.Substitute(subst)
		}
		if found := st.Class.lookup(name, arity, field, next, seen); len(found) > 0 {
			return found
		}
	}
	return nil
}

// Accepts reports whether a call with arity arguments can target f.
func (f *FunctionDescriptor) Accepts(arity int) bool {
	n := len(f.Params)
	if n > 0 && f.Params[n-1].Vararg {
		return arity >= n-1
	}
	return arity == n
}

// SAM returns the single abstract method of a functional interface.
func (c *ClassDescriptor) SAM() *FunctionDescriptor {
	if c == nil || !c.Functional {
		return nil
	}
	var found *FunctionDescriptor
	for _, m := range c.Methods {
		if m.Abstract && !m.Static {
			if found != nil {
				return nil
			}
			found = m
		}
	}
	return found
}

// IsSubclassOf walks the supertype graph.
func (c *ClassDescriptor) IsSubclassOf(other *ClassDescriptor) bool {
	return c.subclassOf(other, make(map[*ClassDescriptor]bool))
}

func (c *ClassDescriptor) subclassOf(other *ClassDescriptor, seen map[*ClassDescriptor]bool) bool {
	if c == nil || other == nil || seen[c] {
		return false
	}
	if c == other {
		return true
	}
	seen[c] = true
	for _, st := range c.Supertypes {
		if st != nil && st.Class.subclassOf(other, seen) {
			return true
		}
	}
	return false
}
