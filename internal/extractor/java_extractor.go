package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"nullinfer/internal/ast"
)

// JavaExtractor lowers tree-sitter-java syntax trees into the ast model.
type JavaExtractor struct{}

func (j *JavaExtractor) GetLanguage() *sitter.Language {
	return java.GetLanguage()
}

func (j *JavaExtractor) PackageQuery() string {
	return `(package_declaration [(scoped_identifier) (identifier)] @pkg)`
}

func (j *JavaExtractor) Lower(root *sitter.Node, sourceCode []byte, filepath string, packageName string) *Unit {
	l := &javaLowering{src: sourceCode, path: filepath, pkg: packageName}
	file := &ast.File{Span: l.span(root), Path: filepath, Package: packageName}
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "import_declaration":
			file.Imports = append(file.Imports, l.lowerImport(n))
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if c := l.lowerClass(n, ""); c != nil {
				file.Decls = append(file.Decls, c)
			}
		}
	}
	return &Unit{File: file, Symbols: l.symbols}
}

type javaLowering struct {
	src     []byte
	path    string
	pkg     string
	symbols []*Symbol
}

func (l *javaLowering) span(n *sitter.Node) ast.Span {
	p := n.StartPoint()
	return ast.Span{File: l.path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (l *javaLowering) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.src)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment", "line_comment", "block_comment":
			continue
		}
		out = append(out, c)
	}
	return out
}

func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func (l *javaLowering) addSymbol(n *sitter.Node, kind, name, owner, signature string) *Symbol {
	sym := &Symbol{
		Filepath:  l.path,
		Package:   l.pkg,
		Language:  "java",
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		UnitType:  kind,
		Name:      name,
		Owner:     owner,
		Signature: signature,
	}
	sym.ID = BuildStableSymbolID(sym)
	l.symbols = append(l.symbols, sym)
	return sym
}

func (l *javaLowering) lowerImport(n *sitter.Node) *ast.Import {
	imp := &ast.Import{Span: l.span(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			imp.Static = true
		case "scoped_identifier", "identifier":
			imp.Path = l.text(c)
		case "asterisk":
			imp.Path += ".*"
		}
	}
	return imp
}

// --- modifiers ---

type modifiers struct {
	marker   ast.Marker
	override bool
	static   bool
	abstract bool
}

func (l *javaLowering) modifiersOf(n *sitter.Node) modifiers {
	var m modifiers
	mods := childOfType(n, "modifiers")
	if mods == nil {
		return m
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		c := mods.Child(i)
		switch c.Type() {
		case "marker_annotation", "annotation":
			name := annotationName(l.text(c.ChildByFieldName("name")))
			if name == "Override" {
				m.override = true
			}
			if mk := markerFor(name); mk != ast.MarkerNone {
				m.marker = mk
			}
		case "static":
			m.static = true
		case "abstract":
			m.abstract = true
		}
	}
	return m
}

func annotationName(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func markerFor(annotation string) ast.Marker {
	switch annotation {
	case "Nullable", "CheckForNull":
		return ast.MarkerNullable
	case "NotNull", "NonNull", "Nonnull":
		return ast.MarkerNotNull
	}
	return ast.MarkerNone
}

// --- declarations ---

func (l *javaLowering) lowerClass(n *sitter.Node, outer string) *ast.Class {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	c := &ast.Class{
		Span:      l.span(n),
		Name:      l.text(nameNode),
		Interface: n.Type() == "interface_declaration",
	}
	c.Qualified = c.Name
	if outer != "" {
		c.Qualified = outer + "." + c.Name
	}
	if l.pkg != "" {
		c.Qualified = l.pkg + "." + c.Qualified
	}
	kind := "class"
	if c.Interface {
		kind = "interface"
	}
	l.addSymbol(n, kind, c.Name, outer, "")

	c.TypeParams = l.lowerTypeParams(n.ChildByFieldName("type_parameters"))
	if sc := n.ChildByFieldName("superclass"); sc != nil {
		for _, t := range namedChildren(sc) {
			c.Supertypes = append(c.Supertypes, l.lowerType(t, ast.MarkerNone))
		}
	}
	if si := n.ChildByFieldName("interfaces"); si != nil {
		c.Supertypes = append(c.Supertypes, l.typeList(si)...)
	}
	if ext := childOfType(n, "extends_interfaces"); ext != nil {
		c.Supertypes = append(c.Supertypes, l.typeList(ext)...)
	}

	owner := c.Name
	if outer != "" {
		owner = outer + "." + c.Name
	}
	if params := n.ChildByFieldName("parameters"); params != nil && n.Type() == "record_declaration" {
		for _, p := range l.lowerParams(params) {
			c.Members = append(c.Members, &ast.Property{Span: p.Span, Name: p.Name, Type: p.Type})
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		c.Members = append(c.Members, l.lowerBody(body, c, owner)...)
	}
	return c
}

func (l *javaLowering) typeList(n *sitter.Node) []*ast.TypeRef {
	var out []*ast.TypeRef
	for _, c := range namedChildren(n) {
		if c.Type() == "type_list" {
			out = append(out, l.typeList(c)...)
			continue
		}
		out = append(out, l.lowerType(c, ast.MarkerNone))
	}
	return out
}

func (l *javaLowering) lowerBody(body *sitter.Node, c *ast.Class, owner string) []ast.Decl {
	var out []ast.Decl
	for _, m := range namedChildren(body) {
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			for _, p := range l.lowerFields(m, c.Interface, owner) {
				out = append(out, p)
			}
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			if fn := l.lowerFunction(m, c, owner); fn != nil {
				out = append(out, fn)
			}
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if nested := l.lowerClass(m, owner); nested != nil {
				out = append(out, nested)
			}
		case "enum_constant":
			name := l.text(m.ChildByFieldName("name"))
			out = append(out, &ast.Property{
				Span:   l.span(m),
				Name:   name,
				Type:   &ast.TypeRef{Span: l.span(m), Name: c.Name, Marker: ast.MarkerNotNull},
				Static: true,
			})
		case "enum_body_declarations":
			out = append(out, l.lowerBody(m, c, owner)...)
		}
	}
	return out
}

func (l *javaLowering) lowerFields(n *sitter.Node, inInterface bool, owner string) []*ast.Property {
	mods := l.modifiersOf(n)
	typeNode := n.ChildByFieldName("type")
	var out []*ast.Property
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		p := l.lowerDeclarator(d, typeNode, mods.marker)
		p.Static = mods.static || inInterface
		l.addSymbol(d, "field", p.Name, owner, l.text(typeNode))
		out = append(out, p)
	}
	return out
}

// lowerDeclarator builds a property from `name [dims] [= value]`. Each
// declarator gets its own type position.
func (l *javaLowering) lowerDeclarator(d, typeNode *sitter.Node, marker ast.Marker) *ast.Property {
	p := &ast.Property{Span: l.span(d), Name: l.text(d.ChildByFieldName("name"))}
	if typeNode != nil && l.text(typeNode) != "var" {
		p.Type = l.lowerType(typeNode, marker)
		p.Type = l.wrapDims(p.Type, d.ChildByFieldName("dimensions"))
	}
	if v := d.ChildByFieldName("value"); v != nil {
		p.Init = l.lowerInitializer(v, p.Type)
	}
	return p
}

func (l *javaLowering) lowerFunction(n *sitter.Node, c *ast.Class, owner string) *ast.Function {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	mods := l.modifiersOf(n)
	fn := &ast.Function{
		Span:        l.span(n),
		Name:        l.text(nameNode),
		Constructor: n.Type() != "method_declaration",
		Override:    mods.override,
		Static:      mods.static,
		Abstract:    mods.abstract || (c.Interface && n.ChildByFieldName("body") == nil && !mods.static),
	}
	fn.TypeParams = l.lowerTypeParams(n.ChildByFieldName("type_parameters"))
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = l.lowerParams(params)
	}
	if !fn.Constructor {
		fn.ReturnType = l.lowerType(n.ChildByFieldName("type"), mods.marker)
		fn.ReturnType = l.wrapDims(fn.ReturnType, n.ChildByFieldName("dimensions"))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Body = l.lowerBlock(body)
	}

	kind := "method"
	if fn.Constructor {
		kind = "constructor"
	}
	sig := l.text(n.ChildByFieldName("parameters"))
	sym := l.addSymbol(n, kind, fn.Name, owner, sig)
	fn.Label = sym.ID
	if label, ok := l.labelBefore(nameNode); ok {
		fn.Label = label
	}
	return fn
}

// labelBefore reads a `/*@@label@@*/` comment placed right before a name.
func (l *javaLowering) labelBefore(n *sitter.Node) (string, bool) {
	prev := n.PrevSibling()
	if prev == nil {
		return "", false
	}
	switch prev.Type() {
	case "comment", "block_comment":
		return parseLabel(l.text(prev))
	}
	return "", false
}

func (l *javaLowering) lowerParams(n *sitter.Node) []*ast.Parameter {
	var out []*ast.Parameter
	for _, p := range namedChildren(n) {
		switch p.Type() {
		case "formal_parameter":
			mods := l.modifiersOf(p)
			param := &ast.Parameter{
				Span: l.span(p),
				Name: l.text(p.ChildByFieldName("name")),
				Type: l.lowerType(p.ChildByFieldName("type"), mods.marker),
			}
			param.Type = l.wrapDims(param.Type, p.ChildByFieldName("dimensions"))
			out = append(out, param)
		case "spread_parameter":
			mods := l.modifiersOf(p)
			var typeNode, decl, name *sitter.Node
			for _, c := range namedChildren(p) {
				switch c.Type() {
				case "modifiers":
				case "variable_declarator":
					decl = c
				case "identifier":
					name = c
				default:
					if typeNode == nil {
						typeNode = c
					}
				}
			}
			elem := l.lowerType(typeNode, mods.marker)
			param := &ast.Parameter{
				Span:   l.span(p),
				Vararg: true,
				Type:   &ast.TypeRef{Span: l.span(p), Name: "Array", Args: []*ast.TypeRef{elem}, Marker: ast.MarkerNotNull},
			}
			switch {
			case decl != nil:
				param.Name = l.text(decl.ChildByFieldName("name"))
			case name != nil:
				param.Name = l.text(name)
			}
			out = append(out, param)
		case "identifier":
			// inferred lambda parameter
			out = append(out, &ast.Parameter{Span: l.span(p), Name: l.text(p)})
		}
	}
	return out
}

func (l *javaLowering) lowerTypeParams(n *sitter.Node) []*ast.TypeParam {
	if n == nil {
		return nil
	}
	var out []*ast.TypeParam
	for _, p := range namedChildren(n) {
		if p.Type() != "type_parameter" {
			continue
		}
		tp := &ast.TypeParam{Span: l.span(p)}
		for _, c := range namedChildren(p) {
			switch c.Type() {
			case "type_identifier", "identifier":
				if tp.Name == "" {
					tp.Name = l.text(c)
				}
			case "type_bound":
				for _, b := range namedChildren(c) {
					tp.Bounds = append(tp.Bounds, l.lowerType(b, ast.MarkerNone))
				}
			}
		}
		out = append(out, tp)
	}
	return out
}

// --- types ---

func (l *javaLowering) lowerType(n *sitter.Node, marker ast.Marker) *ast.TypeRef {
	if n == nil {
		return nil
	}
	tr := &ast.TypeRef{Span: l.span(n), Marker: marker}
	switch n.Type() {
	case "void_type":
		tr.Name = "void"
		tr.Unit = true
		tr.Marker = ast.MarkerNone
	case "integral_type", "floating_point_type", "boolean_type":
		tr.Name = l.text(n)
		tr.Primitive = true
		tr.Marker = ast.MarkerNone
	case "type_identifier", "identifier":
		tr.Name = l.text(n)
	case "scoped_type_identifier", "scoped_identifier":
		tr.Name = strings.Join(strings.Fields(l.text(n)), "")
	case "generic_type":
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "type_arguments":
				for _, a := range namedChildren(c) {
					tr.Args = append(tr.Args, l.lowerTypeArg(a))
				}
			default:
				if tr.Name == "" {
					tr.Name = l.lowerType(c, ast.MarkerNone).Name
				}
			}
		}
	case "array_type":
		elem := l.lowerType(n.ChildByFieldName("element"), ast.MarkerNone)
		return l.wrapDimsMarked(elem, n.ChildByFieldName("dimensions"), marker)
	case "annotated_type":
		inner := marker
		var base *sitter.Node
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "marker_annotation", "annotation":
				if mk := markerFor(annotationName(l.text(c.ChildByFieldName("name")))); mk != ast.MarkerNone {
					inner = mk
				}
			default:
				base = c
			}
		}
		return l.lowerType(base, inner)
	default:
		tr.Name = l.text(n)
	}
	return tr
}

func (l *javaLowering) lowerTypeArg(n *sitter.Node) *ast.TypeRef {
	if n.Type() != "wildcard" {
		return l.lowerType(n, ast.MarkerNone)
	}
	// `? extends T` and `? super T` keep their bound; a bare `?` is a star.
	var marker ast.Marker
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "marker_annotation", "annotation":
			marker = markerFor(annotationName(l.text(c.ChildByFieldName("name"))))
		case "super":
		default:
			return l.lowerType(c, marker)
		}
	}
	return &ast.TypeRef{Span: l.span(n), Name: "?", Star: true}
}

func (l *javaLowering) wrapDims(t *ast.TypeRef, dims *sitter.Node) *ast.TypeRef {
	if t == nil || dims == nil {
		return t
	}
	marker := t.Marker
	t.Marker = ast.MarkerNone
	return l.wrapDimsMarked(t, dims, marker)
}

// wrapDimsMarked lowers `T[][]` to Array<Array<T>>; the marker lands on the
// outermost array.
func (l *javaLowering) wrapDimsMarked(elem *ast.TypeRef, dims *sitter.Node, marker ast.Marker) *ast.TypeRef {
	if elem == nil {
		return nil
	}
	n := 1
	if dims != nil {
		n = max(strings.Count(l.text(dims), "["), 1)
	}
	t := elem
	for i := 0; i < n; i++ {
		t = &ast.TypeRef{Span: elem.Span, Name: "Array", Args: []*ast.TypeRef{t}}
	}
	t.Marker = marker
	return t
}

// cloneType copies a type position so each use owns a distinct node.
func cloneType(t *ast.TypeRef) *ast.TypeRef {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Inferred = ast.MarkerNone
	cp.Args = make([]*ast.TypeRef, len(t.Args))
	for i, a := range t.Args {
		cp.Args[i] = cloneType(a)
	}
	return &cp
}

// --- statements ---

func (l *javaLowering) lowerBlock(n *sitter.Node) *ast.Block {
	b := &ast.Block{Span: l.span(n)}
	for _, c := range namedChildren(n) {
		b.Stmts = append(b.Stmts, l.lowerStmt(c)...)
	}
	return b
}

// lowerStmtNode turns a statement into a single node, wrapping multiple
// statements into a block.
func (l *javaLowering) lowerStmtNode(n *sitter.Node) ast.Node {
	if n == nil {
		return nil
	}
	stmts := l.lowerStmt(n)
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	return &ast.Block{Span: l.span(n), Stmts: stmts}
}

func (l *javaLowering) lowerStmt(n *sitter.Node) []ast.Stmt {
	switch n.Type() {
	case "block", "constructor_body":
		if n.Type() == "constructor_body" {
			return l.lowerBlock(n).Stmts
		}
		return []ast.Stmt{l.lowerBlock(n)}
	case "expression_statement":
		if x := l.lowerExpr(firstNamed(n)); x != nil {
			return []ast.Stmt{&ast.ExprStmt{Span: l.span(n), X: x}}
		}
	case "local_variable_declaration":
		mods := l.modifiersOf(n)
		typeNode := n.ChildByFieldName("type")
		var out []ast.Stmt
		for _, d := range namedChildren(n) {
			if d.Type() == "variable_declarator" {
				p := l.lowerDeclarator(d, typeNode, mods.marker)
				p.Local = true
				out = append(out, p)
			}
		}
		return out
	case "if_statement":
		return []ast.Stmt{&ast.If{
			Span: l.span(n),
			Cond: l.lowerCond(n.ChildByFieldName("condition")),
			Then: l.lowerStmtNode(n.ChildByFieldName("consequence")),
			Else: l.lowerStmtNode(n.ChildByFieldName("alternative")),
		}}
	case "while_statement", "do_statement":
		return []ast.Stmt{&ast.While{
			Span:    l.span(n),
			Cond:    l.lowerCond(n.ChildByFieldName("condition")),
			Body:    l.lowerStmtNode(n.ChildByFieldName("body")),
			DoWhile: n.Type() == "do_statement",
		}}
	case "for_statement":
		return l.lowerFor(n)
	case "enhanced_for_statement":
		mods := l.modifiersOf(n)
		param := &ast.Parameter{
			Span: l.span(n),
			Name: l.text(n.ChildByFieldName("name")),
			Type: l.lowerType(n.ChildByFieldName("type"), mods.marker),
		}
		return []ast.Stmt{&ast.For{
			Span:  l.span(n),
			Param: param,
			Range: l.lowerExpr(n.ChildByFieldName("value")),
			Body:  l.lowerStmtNode(n.ChildByFieldName("body")),
		}}
	case "return_statement":
		return []ast.Stmt{&ast.Return{Span: l.span(n), X: l.lowerExpr(firstNamed(n))}}
	case "throw_statement":
		return []ast.Stmt{&ast.Throw{Span: l.span(n), X: l.lowerExpr(firstNamed(n))}}
	case "yield_statement":
		if x := l.lowerExpr(firstNamed(n)); x != nil {
			return []ast.Stmt{&ast.ExprStmt{Span: l.span(n), X: x}}
		}
	case "labeled_statement":
		var label string
		var body ast.Node
		for _, c := range namedChildren(n) {
			if c.Type() == "identifier" && label == "" {
				label = l.text(c)
				continue
			}
			body = l.lowerStmtNode(c)
		}
		if body == nil {
			return nil
		}
		return []ast.Stmt{&ast.Labeled{Span: l.span(n), Label: label, X: body}}
	case "try_statement", "try_with_resources_statement":
		return []ast.Stmt{l.lowerTry(n)}
	case "switch_expression", "switch_statement":
		return []ast.Stmt{l.lowerSwitch(n)}
	case "synchronized_statement":
		b := &ast.Block{Span: l.span(n)}
		for _, c := range namedChildren(n) {
			if c.Type() == "parenthesized_expression" {
				if x := l.lowerExpr(c); x != nil {
					b.Stmts = append(b.Stmts, &ast.ExprStmt{Span: l.span(c), X: x})
				}
				continue
			}
			b.Stmts = append(b.Stmts, l.lowerStmt(c)...)
		}
		return []ast.Stmt{b}
	}
	return nil
}

func firstNamed(n *sitter.Node) *sitter.Node {
	cs := namedChildren(n)
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

// lowerFor rewrites `for (init; cond; update) body` as init statements
// followed by a while loop.
func (l *javaLowering) lowerFor(n *sitter.Node) []ast.Stmt {
	outer := &ast.Block{Span: l.span(n)}
	loop := &ast.While{Span: l.span(n)}
	body := &ast.Block{Span: l.span(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			continue
		}
		switch n.FieldNameForChild(i) {
		case "init":
			if c.Type() == "local_variable_declaration" {
				outer.Stmts = append(outer.Stmts, l.lowerStmt(c)...)
			} else if x := l.lowerExpr(c); x != nil {
				outer.Stmts = append(outer.Stmts, &ast.ExprStmt{Span: l.span(c), X: x})
			}
		case "condition":
			loop.Cond = l.lowerExpr(c)
		case "update":
			if x := l.lowerExpr(c); x != nil {
				body.Stmts = append(body.Stmts, &ast.ExprStmt{Span: l.span(c), X: x})
			}
		case "body":
			body.Stmts = append(l.lowerStmt(c), body.Stmts...)
		}
	}
	loop.Body = body
	outer.Stmts = append(outer.Stmts, loop)
	return []ast.Stmt{outer}
}

// lowerTry flattens resources, body, catch clauses and finally into one
// block. A catch parameter becomes a local.
func (l *javaLowering) lowerTry(n *sitter.Node) ast.Stmt {
	b := &ast.Block{Span: l.span(n)}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "resource_specification":
			for _, r := range namedChildren(c) {
				if r.Type() != "resource" {
					continue
				}
				if v := r.ChildByFieldName("value"); v != nil {
					p := &ast.Property{
						Span:  l.span(r),
						Name:  l.text(r.ChildByFieldName("name")),
						Type:  l.lowerType(r.ChildByFieldName("type"), l.modifiersOf(r).marker),
						Local: true,
					}
					p.Init = l.lowerExpr(v)
					b.Stmts = append(b.Stmts, p)
				}
			}
		case "block":
			b.Stmts = append(b.Stmts, l.lowerBlock(c))
		case "catch_clause":
			inner := &ast.Block{Span: l.span(c)}
			if fp := childOfType(c, "catch_formal_parameter"); fp != nil {
				var typ *ast.TypeRef
				if ct := childOfType(fp, "catch_type"); ct != nil {
					typ = l.lowerType(firstNamed(ct), ast.MarkerNone)
					if typ != nil {
						typ.Marker = ast.MarkerNotNull
					}
				}
				inner.Stmts = append(inner.Stmts, &ast.Property{
					Span:  l.span(fp),
					Name:  l.text(fp.ChildByFieldName("name")),
					Type:  typ,
					Local: true,
				})
			}
			if body := c.ChildByFieldName("body"); body != nil {
				inner.Stmts = append(inner.Stmts, l.lowerBlock(body))
			}
			b.Stmts = append(b.Stmts, inner)
		case "finally_clause":
			if body := childOfType(c, "block"); body != nil {
				b.Stmts = append(b.Stmts, l.lowerBlock(body))
			}
		}
	}
	return b
}

// lowerCond drops the parentheses Java requires around statement conditions.
func (l *javaLowering) lowerCond(n *sitter.Node) ast.Expr {
	if n != nil && n.Type() == "parenthesized_expression" {
		n = firstNamed(n)
	}
	return l.lowerExpr(n)
}

func (l *javaLowering) lowerSwitch(n *sitter.Node) ast.Stmt {
	b := &ast.Block{Span: l.span(n)}
	if x := l.lowerCond(n.ChildByFieldName("condition")); x != nil {
		b.Stmts = append(b.Stmts, &ast.ExprStmt{Span: l.span(n), X: x})
	}
	body := n.ChildByFieldName("body")
	for _, group := range namedChildren(body) {
		for _, c := range namedChildren(group) {
			if c.Type() == "switch_label" {
				continue
			}
			if stmts := l.lowerStmt(c); len(stmts) > 0 {
				b.Stmts = append(b.Stmts, stmts...)
				continue
			}
			if c.Type() == "block" || strings.HasSuffix(c.Type(), "_statement") {
				continue
			}
			if x := l.lowerExpr(c); x != nil {
				b.Stmts = append(b.Stmts, &ast.ExprStmt{Span: l.span(c), X: x})
			}
		}
	}
	return b
}

// --- expressions ---

func (l *javaLowering) lowerInitializer(n *sitter.Node, declared *ast.TypeRef) ast.Expr {
	if n.Type() == "array_initializer" {
		var elem *ast.TypeRef
		if declared != nil && declared.Name == "Array" && len(declared.Args) == 1 {
			elem = declared.Args[0]
		}
		return l.arrayOf(n, elem)
	}
	return l.lowerExpr(n)
}

func (l *javaLowering) arrayOf(n *sitter.Node, elem *ast.TypeRef) ast.Expr {
	call := &ast.Call{Span: l.span(n), Name: "arrayOf"}
	var inner *ast.TypeRef
	if elem != nil {
		call.TypeArgs = []*ast.TypeRef{cloneType(elem)}
		if elem.Name == "Array" && len(elem.Args) == 1 {
			inner = elem.Args[0]
		}
	}
	for _, c := range namedChildren(n) {
		var x ast.Expr
		if c.Type() == "array_initializer" {
			x = l.arrayOf(c, inner)
		} else {
			x = l.lowerExpr(c)
		}
		if x != nil {
			call.Args = append(call.Args, &ast.Argument{Span: l.span(c), X: x})
		}
	}
	return call
}

func (l *javaLowering) lowerArgs(n *sitter.Node) []*ast.Argument {
	var out []*ast.Argument
	for _, c := range namedChildren(n) {
		if x := l.lowerExpr(c); x != nil {
			out = append(out, &ast.Argument{Span: l.span(c), X: x})
		}
	}
	return out
}

func (l *javaLowering) lowerTypeArgs(n *sitter.Node) []*ast.TypeRef {
	var out []*ast.TypeRef
	for _, a := range namedChildren(n) {
		out = append(out, l.lowerTypeArg(a))
	}
	return out
}

func (l *javaLowering) lowerExpr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	sp := l.span(n)
	switch n.Type() {
	case "parenthesized_expression":
		inner := l.lowerExpr(firstNamed(n))
		if inner == nil {
			return nil
		}
		return &ast.Paren{Span: sp, X: inner}
	case "null_literal":
		return &ast.NullLiteral{Span: sp}
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal",
		"decimal_floating_point_literal", "hex_floating_point_literal":
		return &ast.Literal{Span: sp, Kind: ast.LitNumber, Text: l.text(n)}
	case "string_literal", "text_block":
		return &ast.Literal{Span: sp, Kind: ast.LitString, Text: l.text(n)}
	case "character_literal":
		return &ast.Literal{Span: sp, Kind: ast.LitChar, Text: l.text(n)}
	case "true", "false":
		return &ast.Literal{Span: sp, Kind: ast.LitBool, Text: l.text(n)}
	case "this", "super":
		return &ast.This{Span: sp}
	case "identifier":
		return &ast.NameRef{Span: sp, Name: l.text(n)}
	case "field_access":
		recv := l.lowerExpr(n.ChildByFieldName("object"))
		if recv == nil {
			return nil
		}
		field := n.ChildByFieldName("field")
		return &ast.Qualified{Span: sp, Receiver: recv, Selector: &ast.NameRef{Span: l.span(field), Name: l.text(field)}}
	case "method_invocation":
		name := n.ChildByFieldName("name")
		call := &ast.Call{
			Span:     l.span(name),
			Name:     l.text(name),
			TypeArgs: l.lowerTypeArgs(n.ChildByFieldName("type_arguments")),
			Args:     l.lowerArgs(n.ChildByFieldName("arguments")),
		}
		if obj := n.ChildByFieldName("object"); obj != nil {
			if recv := l.lowerExpr(obj); recv != nil {
				return &ast.Qualified{Span: sp, Receiver: recv, Selector: call}
			}
		}
		return call
	case "object_creation_expression":
		t := l.lowerType(n.ChildByFieldName("type"), ast.MarkerNone)
		if t == nil {
			return nil
		}
		return &ast.Call{
			Span:        sp,
			Name:        t.Name,
			TypeArgs:    t.Args,
			Args:        l.lowerArgs(n.ChildByFieldName("arguments")),
			Constructor: true,
		}
	case "array_creation_expression":
		elem := l.lowerType(n.ChildByFieldName("type"), ast.MarkerNone)
		if elem == nil {
			return nil
		}
		dims := 0
		var sizes []*ast.Argument
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "dimensions_expr":
				dims++
				if len(sizes) == 0 {
					if x := l.lowerExpr(firstNamed(c)); x != nil {
						sizes = append(sizes, &ast.Argument{Span: l.span(c), X: x})
					}
				}
			case "dimensions":
				dims += strings.Count(l.text(c), "[")
			}
		}
		for i := 1; i < dims; i++ {
			elem = &ast.TypeRef{Span: elem.Span, Name: "Array", Args: []*ast.TypeRef{elem}}
		}
		if v := n.ChildByFieldName("value"); v != nil {
			return l.arrayOf(v, elem)
		}
		return &ast.Call{Span: sp, Name: "arrayOfNulls", TypeArgs: []*ast.TypeRef{elem}, Args: sizes}
	case "array_initializer":
		return l.arrayOf(n, nil)
	case "array_access":
		arr := l.lowerExpr(n.ChildByFieldName("array"))
		idx := l.lowerExpr(n.ChildByFieldName("index"))
		if arr == nil || idx == nil {
			return nil
		}
		get := &ast.Call{Span: sp, Name: "get", Args: []*ast.Argument{{Span: idx.Pos(), X: idx}}}
		return &ast.Qualified{Span: sp, Receiver: arr, Selector: get}
	case "assignment_expression":
		left := l.lowerExpr(n.ChildByFieldName("left"))
		right := l.lowerExpr(n.ChildByFieldName("right"))
		if left == nil || right == nil {
			return nil
		}
		return &ast.Assign{Span: sp, Op: l.text(n.ChildByFieldName("operator")), Left: left, Right: right}
	case "binary_expression":
		left := l.lowerExpr(n.ChildByFieldName("left"))
		right := l.lowerExpr(n.ChildByFieldName("right"))
		if left == nil || right == nil {
			return nil
		}
		return &ast.Binary{Span: sp, Op: l.text(n.ChildByFieldName("operator")), Left: left, Right: right}
	case "unary_expression":
		x := l.lowerExpr(n.ChildByFieldName("operand"))
		if x == nil {
			return nil
		}
		return &ast.Unary{Span: sp, Op: l.text(n.ChildByFieldName("operator")), X: x}
	case "update_expression":
		x := l.lowerExpr(firstNamed(n))
		if x == nil {
			return nil
		}
		op := "++"
		if strings.Contains(l.text(n), "--") {
			op = "--"
		}
		return &ast.Unary{Span: sp, Op: op, X: x}
	case "instanceof_expression":
		x := l.lowerExpr(n.ChildByFieldName("left"))
		if x == nil {
			return nil
		}
		return &ast.TypeTest{Span: sp, X: x, Type: l.lowerType(n.ChildByFieldName("right"), ast.MarkerNone)}
	case "ternary_expression":
		cond := l.lowerExpr(n.ChildByFieldName("condition"))
		then := l.lowerExpr(n.ChildByFieldName("consequence"))
		els := l.lowerExpr(n.ChildByFieldName("alternative"))
		if cond == nil || then == nil || els == nil {
			return nil
		}
		return &ast.If{Span: sp, Cond: cond, Then: then, Else: els, IsExpr: true}
	case "cast_expression":
		x := l.lowerExpr(n.ChildByFieldName("value"))
		t := l.lowerType(n.ChildByFieldName("type"), ast.MarkerNone)
		if x == nil || t == nil {
			return nil
		}
		return &ast.Cast{Span: sp, X: x, Type: t, Unsafe: !t.Primitive}
	case "lambda_expression":
		return l.lowerLambda(n)
	}
	// Method references, class literals, switch expressions and friends
	// stay opaque; they resolve to nothing and count as plain values.
	return &ast.NameRef{Span: sp, Name: strings.Join(strings.Fields(l.text(n)), "")}
}

func (l *javaLowering) lowerLambda(n *sitter.Node) ast.Expr {
	lam := &ast.Lambda{Span: l.span(n)}
	if params := n.ChildByFieldName("parameters"); params != nil {
		if params.Type() == "identifier" {
			lam.Params = []*ast.Parameter{{Span: l.span(params), Name: l.text(params)}}
		} else {
			lam.Params = l.lowerParams(params)
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return lam
	}
	if body.Type() == "block" {
		lam.Body = l.lowerBlock(body)
	} else if x := l.lowerExpr(body); x != nil {
		lam.Body = x
	}
	return lam
}
