package ast

import "strings"

// Marker is an explicit nullability annotation written at a type position.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerNullable
	MarkerNotNull
)

func (m Marker) String() string {
	switch m {
	case MarkerNullable:
		return "nullable"
	case MarkerNotNull:
		return "not-null"
	}
	return ""
}

// TypeRef is a type position written in source. Arrays are lowered to
// Array<Elem>; a `?` wildcard argument has Star set.
type TypeRef struct {
	Span
	Name      string
	Args      []*TypeRef
	Star      bool
	Primitive bool
	Unit      bool
	Marker    Marker

	// Inferred is written once by the state updater after solving.
	Inferred Marker
}

// String renders the type as written, without nullability.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	if t.Star {
		return "?"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, 0, len(t.Args))
	for _, a := range t.Args {
		parts = append(parts, a.String())
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Rendered prints the type with inferred nullability in Kotlin notation,
// e.g. List<String?>?. Positions without a decision keep a platform `!`.
func (t *TypeRef) Rendered() string {
	if t == nil {
		return ""
	}
	if t.Star {
		return "*"
	}
	var b strings.Builder
	b.WriteString(kotlinName(t))
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Rendered())
		}
		b.WriteByte('>')
	}
	switch {
	case t.Primitive || t.Unit:
	case t.Inferred == MarkerNullable, t.Inferred == MarkerNone && t.Marker == MarkerNullable:
		b.WriteByte('?')
	case t.Inferred == MarkerNone && t.Marker == MarkerNone:
		b.WriteByte('!')
	}
	return b.String()
}

var kotlinPrimitives = map[string]string{
	"int":     "Int",
	"long":    "Long",
	"short":   "Short",
	"byte":    "Byte",
	"char":    "Char",
	"float":   "Float",
	"double":  "Double",
	"boolean": "Boolean",
	"void":    "Unit",
	"Object":  "Any",
	"Integer": "Int",
}

func kotlinName(t *TypeRef) string {
	if k, ok := kotlinPrimitives[t.Name]; ok {
		return k
	}
	return t.Name
}
