// Package ast is the language-neutral syntax model consumed by the inference engine.
// Frontends (see internal/extractor) lower concrete source trees into these nodes.
package ast

import "fmt"

// Span locates a node in its source file. Lines and columns are 1-based.
type Span struct {
	File   string
	Line   int
	Column int
}

func (s Span) Pos() Span { return s }

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Node is implemented by every syntax element.
type Node interface {
	Pos() Span
	Children() []Node
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a node that can appear in a block.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is a declaration that can own a type position.
type Decl interface {
	Node
	DeclName() string
}

// --- declarations ---

type File struct {
	Span
	Path    string
	Package string
	Imports []*Import
	Decls   []Decl
}

type Import struct {
	Span
	Path   string
	Static bool
}

type Class struct {
	Span
	Name       string
	Qualified  string
	Interface  bool
	TypeParams []*TypeParam
	Supertypes []*TypeRef
	Members    []Decl
}

type TypeParam struct {
	Span
	Name   string
	Bounds []*TypeRef
}

// Function covers methods and constructors. Label is the cross-reference id
// used to find in-batch overrides without resolution.
type Function struct {
	Span
	Name        string
	Label       string
	TypeParams  []*TypeParam
	Params      []*Parameter
	ReturnType  *TypeRef
	Body        *Block
	Constructor bool
	Override    bool
	Static      bool
	Abstract    bool
}

type Parameter struct {
	Span
	Name    string
	Type    *TypeRef
	Default Expr
	Vararg  bool
}

// Property is a field or, with Local set, a local variable declaration.
type Property struct {
	Span
	Name   string
	Type   *TypeRef
	Init   Expr
	Local  bool
	Static bool
}

func (d *Class) DeclName() string     { return d.Name }
func (d *Function) DeclName() string  { return d.Name }
func (d *Parameter) DeclName() string { return d.Name }
func (d *Property) DeclName() string  { return d.Name }
func (d *Lambda) DeclName() string    { return "<lambda>" }

// --- statements ---

type Block struct {
	Span
	Stmts []Stmt
}

type ExprStmt struct {
	Span
	X Expr
}

type Return struct {
	Span
	X Expr
}

type Throw struct {
	Span
	X Expr
}

// If is both a statement and, with IsExpr set, a conditional expression.
// Then and Else are statements or expressions depending on the form.
type If struct {
	Span
	Cond   Expr
	Then   Node
	Else   Node
	IsExpr bool
}

type While struct {
	Span
	Cond    Expr
	Body    Node
	DoWhile bool
}

type For struct {
	Span
	Param *Parameter
	Range Expr
	Body  Node
}

type Labeled struct {
	Span
	Label string
	X     Node
}

// --- expressions ---

type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitString
	LitBool
	LitChar
)

type NullLiteral struct {
	Span
}

type Literal struct {
	Span
	Kind LiteralKind
	Text string
}

type Paren struct {
	Span
	X Expr
}

type Binary struct {
	Span
	Op    string
	Left  Expr
	Right Expr
}

type Unary struct {
	Span
	Op string
	X  Expr
}

// Assign covers plain and compound assignment; Op is "=" for the plain form.
type Assign struct {
	Span
	Op    string
	Left  Expr
	Right Expr
}

// Qualified is receiver.selector where the selector is a *NameRef or a *Call.
type Qualified struct {
	Span
	Receiver Expr
	Selector Expr
}

type NameRef struct {
	Span
	Name string
}

// Call is a function or constructor invocation. For constructors Name is the
// class and TypeArgs are the instantiated type arguments.
type Call struct {
	Span
	Name        string
	TypeArgs    []*TypeRef
	Args        []*Argument
	Constructor bool
}

type Argument struct {
	Span
	X      Expr
	Spread bool
}

type Cast struct {
	Span
	X      Expr
	Type   *TypeRef
	Unsafe bool
}

// TypeTest is `x instanceof T`.
type TypeTest struct {
	Span
	X    Expr
	Type *TypeRef
}

// Lambda is a function literal. With ResultIsLastExpr the last expression
// statement of a block body is the implicit result.
type Lambda struct {
	Span
	Params           []*Parameter
	Body             Node
	ResultIsLastExpr bool
}

type This struct {
	Span
}

func (*NullLiteral) exprNode() {}
func (*Literal) exprNode()     {}
func (*Paren) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Assign) exprNode()      {}
func (*Qualified) exprNode()   {}
func (*NameRef) exprNode()     {}
func (*Call) exprNode()        {}
func (*Cast) exprNode()        {}
func (*TypeTest) exprNode()    {}
func (*Lambda) exprNode()      {}
func (*This) exprNode()        {}
func (*If) exprNode()          {}
func (*Labeled) exprNode()     {}

func (*Block) stmtNode()    {}
func (*ExprStmt) stmtNode() {}
func (*Return) stmtNode()   {}
func (*Throw) stmtNode()    {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*For) stmtNode()      {}
func (*Labeled) stmtNode()  {}
func (*Property) stmtNode() {}
func (*Class) stmtNode()    {}

// IsAssignment reports whether op is an assignment operator.
func IsAssignment(op string) bool {
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=", ">>>=":
		return true
	}
	return false
}

// Unparen strips parentheses and labels around an expression.
func Unparen(e Expr) Expr {
	for {
		switch x := e.(type) {
		case *Paren:
			e = x.X
		case *Labeled:
			inner, ok := x.X.(Expr)
			if !ok {
				return e
			}
			e = inner
		default:
			return e
		}
	}
}

// IsNull reports whether n is a null literal, looking through parentheses.
func IsNull(n Node) bool {
	e, ok := n.(Expr)
	if !ok {
		return false
	}
	_, ok = Unparen(e).(*NullLiteral)
	return ok
}
