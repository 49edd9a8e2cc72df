package ast

// nodes collects non-nil children. Interface-typed fields are stored only
// when set, so a plain nil check is enough here.
type nodes []Node

func (ns *nodes) add(n Node) {
	if n != nil {
		*ns = append(*ns, n)
	}
}

func (ns *nodes) typ(t *TypeRef) {
	if t != nil {
		*ns = append(*ns, t)
	}
}

func (ns *nodes) params(ps []*Parameter) {
	for _, p := range ps {
		if p != nil {
			*ns = append(*ns, p)
		}
	}
}

func (ns *nodes) typeParams(ps []*TypeParam) {
	for _, p := range ps {
		if p != nil {
			*ns = append(*ns, p)
		}
	}
}

func (ns *nodes) types(ts []*TypeRef) {
	for _, t := range ts {
		ns.typ(t)
	}
}

func (n *File) Children() []Node {
	var out nodes
	for _, imp := range n.Imports {
		out.add(imp)
	}
	for _, d := range n.Decls {
		out.add(d)
	}
	return out
}

func (n *Import) Children() []Node { return nil }

func (n *Class) Children() []Node {
	var out nodes
	out.typeParams(n.TypeParams)
	out.types(n.Supertypes)
	for _, m := range n.Members {
		out.add(m)
	}
	return out
}

func (n *TypeParam) Children() []Node {
	var out nodes
	out.types(n.Bounds)
	return out
}

func (n *Function) Children() []Node {
	var out nodes
	out.typeParams(n.TypeParams)
	out.params(n.Params)
	out.typ(n.ReturnType)
	if n.Body != nil {
		out.add(n.Body)
	}
	return out
}

func (n *Parameter) Children() []Node {
	var out nodes
	out.typ(n.Type)
	out.add(n.Default)
	return out
}

func (n *Property) Children() []Node {
	var out nodes
	out.typ(n.Type)
	out.add(n.Init)
	return out
}

func (n *Block) Children() []Node {
	var out nodes
	for _, s := range n.Stmts {
		out.add(s)
	}
	return out
}

func (n *ExprStmt) Children() []Node { return single(n.X) }
func (n *Return) Children() []Node   { return single(n.X) }
func (n *Throw) Children() []Node    { return single(n.X) }

func (n *If) Children() []Node {
	var out nodes
	out.add(n.Cond)
	out.add(n.Then)
	out.add(n.Else)
	return out
}

func (n *While) Children() []Node {
	var out nodes
	out.add(n.Cond)
	out.add(n.Body)
	return out
}

func (n *For) Children() []Node {
	var out nodes
	if n.Param != nil {
		out.add(n.Param)
	}
	out.add(n.Range)
	out.add(n.Body)
	return out
}

func (n *Labeled) Children() []Node { return single(n.X) }

func (n *NullLiteral) Children() []Node { return nil }
func (n *Literal) Children() []Node     { return nil }
func (n *NameRef) Children() []Node     { return nil }
func (n *This) Children() []Node        { return nil }
func (n *Paren) Children() []Node       { return single(n.X) }
func (n *Unary) Children() []Node       { return single(n.X) }

func (n *Binary) Children() []Node {
	var out nodes
	out.add(n.Left)
	out.add(n.Right)
	return out
}

func (n *Assign) Children() []Node {
	var out nodes
	out.add(n.Left)
	out.add(n.Right)
	return out
}

func (n *Qualified) Children() []Node {
	var out nodes
	out.add(n.Receiver)
	out.add(n.Selector)
	return out
}

func (n *Call) Children() []Node {
	var out nodes
	out.types(n.TypeArgs)
	for _, a := range n.Args {
		if a != nil {
			out.add(a)
		}
	}
	return out
}

func (n *Argument) Children() []Node { return single(n.X) }

func (n *Cast) Children() []Node {
	var out nodes
	out.add(n.X)
	out.typ(n.Type)
	return out
}

func (n *TypeTest) Children() []Node {
	var out nodes
	out.add(n.X)
	out.typ(n.Type)
	return out
}

func (n *Lambda) Children() []Node {
	var out nodes
	out.params(n.Params)
	out.add(n.Body)
	return out
}

func (n *TypeRef) Children() []Node {
	var out nodes
	out.types(n.Args)
	return out
}

func single(n Node) []Node {
	if n == nil {
		return nil
	}
	return []Node{n}
}

// Inspect traverses the tree rooted at n in pre-order. If fn returns false
// the children of that node are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, fn)
	}
}

// InspectAll runs Inspect over several roots in order.
func InspectAll[T Node](roots []T, fn func(Node) bool) {
	for _, r := range roots {
		Inspect(r, fn)
	}
}
