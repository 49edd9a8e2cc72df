package resolver

import (
	"strings"

	"nullinfer/internal/ast"
)

// Scope resolves names, calls and types for the files of one conversion
// batch. Everything is computed eagerly by NewScope; the query methods are
// plain map lookups.
type Scope struct {
	lib *Library

	classes   map[string]*ClassDescriptor
	classOf   map[*ast.Class]*ClassDescriptor
	funcs     map[ast.Decl]*FunctionDescriptor
	typeRefs  map[*ast.TypeRef]*Type
	declTypes map[ast.Decl]*Type
	refs      map[*ast.NameRef]ast.Decl
	statics   map[ast.Expr]*ClassDescriptor
	calls     map[*ast.Call]*Call
	fields    map[*ast.Qualified]*Call
	exprTypes map[ast.Expr]*Type
	returns   map[*ast.Return]ast.Decl
	lambdas   map[*ast.Lambda]*Signature
	iterators map[ast.Expr]*Type
	narrowed  map[*ast.NameRef]bool
	info      ElementInfo
}

func NewScope(lib *Library, files []*ast.File) *Scope {
	s := &Scope{
		lib:       lib,
		classes:   make(map[string]*ClassDescriptor),
		classOf:   make(map[*ast.Class]*ClassDescriptor),
		funcs:     make(map[ast.Decl]*FunctionDescriptor),
		typeRefs:  make(map[*ast.TypeRef]*Type),
		declTypes: make(map[ast.Decl]*Type),
		refs:      make(map[*ast.NameRef]ast.Decl),
		statics:   make(map[ast.Expr]*ClassDescriptor),
		calls:     make(map[*ast.Call]*Call),
		fields:    make(map[*ast.Qualified]*Call),
		exprTypes: make(map[ast.Expr]*Type),
		returns:   make(map[*ast.Return]ast.Decl),
		lambdas:   make(map[*ast.Lambda]*Signature),
		iterators: make(map[ast.Expr]*Type),
		narrowed:  make(map[*ast.NameRef]bool),
		info:      make(ElementInfo),
	}

	var classes []*ast.Class
	for _, f := range files {
		for _, d := range f.Decls {
			if c, ok := d.(*ast.Class); ok {
				classes = append(classes, s.declareClass(c, f.Package)...)
			}
		}
	}
	for _, c := range classes {
		s.resolveSignatures(c)
	}
	for _, c := range classes {
		s.resolveOverrides(s.classOf[c])
	}
	for _, c := range classes {
		s.walkClass(c)
	}
	return s
}

func (s *Scope) declareClass(c *ast.Class, pkg string) []*ast.Class {
	cd := &ClassDescriptor{Name: c.Name, Qualified: c.Qualified, Interface: c.Interface, Decl: c}
	if cd.Qualified == "" {
		cd.Qualified = c.Name
		if pkg != "" {
			cd.Qualified = pkg + "." + c.Name
		}
	}
	for i, tp := range c.TypeParams {
		cd.TypeParams = append(cd.TypeParams, &TypeParamDescriptor{Name: tp.Name, Index: i, OwnerClass: cd})
	}
	if _, exists := s.classes[c.Name]; !exists {
		s.classes[c.Name] = cd
	}
	s.classes[cd.Qualified] = cd
	s.classOf[c] = cd

	out := []*ast.Class{c}
	for _, m := range c.Members {
		if nested, ok := m.(*ast.Class); ok {
			out = append(out, s.declareClass(nested, cd.Qualified)...)
		}
	}
	return out
}

func (s *Scope) resolveSignatures(c *ast.Class) {
	cd := s.classOf[c]
	e := &env{class: cd, typeParams: cd.TypeParams}
	for _, st := range c.Supertypes {
		if t := s.resolveTypeRef(st, e); t != nil && t.Class != nil {
			cd.Supertypes = append(cd.Supertypes, t)
		}
	}
	if len(cd.Supertypes) == 0 && s.lib.Object != nil {
		cd.Supertypes = []*Type{{Class: s.lib.Object}}
	}
	abstractCount := 0
	for _, m := range c.Members {
		switch d := m.(type) {
		case *ast.Function:
			fd := s.declareFunction(d, cd, e)
			if d.Constructor {
				cd.Ctors = append(cd.Ctors, fd)
				continue
			}
			cd.Methods = append(cd.Methods, fd)
			if fd.Abstract {
				abstractCount++
			}
		case *ast.Property:
			t := s.resolveTypeRef(d.Type, e)
			fd := &FunctionDescriptor{Name: d.Name, Owner: cd, Return: t, Property: true, Static: d.Static, Decl: d}
			s.funcs[d] = fd
			s.declTypes[d] = t
			cd.Fields = append(cd.Fields, fd)
		}
	}
	if len(cd.Ctors) == 0 && !cd.Interface {
		cd.Ctors = append(cd.Ctors, DefaultConstructor(cd))
	}
	cd.Functional = cd.Interface && abstractCount == 1
}

func (s *Scope) declareFunction(fn *ast.Function, owner *ClassDescriptor, classEnv *env) *FunctionDescriptor {
	fd := &FunctionDescriptor{
		Name:        fn.Name,
		Owner:       owner,
		Constructor: fn.Constructor,
		Static:      fn.Static,
		Abstract:    fn.Abstract || (owner.Interface && fn.Body == nil && !fn.Static),
		Decl:        fn,
	}
	for i, tp := range fn.TypeParams {
		fd.TypeParams = append(fd.TypeParams, &TypeParamDescriptor{Name: tp.Name, Index: i, OwnerFunction: fd})
	}
	e := classEnv.child()
	e.typeParams = fd.TypeParams
	for i, p := range fn.Params {
		t := s.resolveTypeRef(p.Type, e)
		s.declTypes[p] = t
		fd.Params = append(fd.Params, &ParamDescriptor{Name: p.Name, Index: i, Type: t, Vararg: p.Vararg, Decl: p})
	}
	switch {
	case fn.Constructor:
		fd.Return = owner.DefaultType()
		fd.Return.Nullability = NotNull
	case fn.ReturnType != nil:
		fd.Return = s.resolveTypeRef(fn.ReturnType, e)
	default:
		fd.Return = &Type{Class: s.lib.UnitType}
	}
	s.funcs[fn] = fd
	return fd
}

// resolveOverrides links each instance method to the methods it overrides
// in the direct supertypes and records them in the element info table.
func (s *Scope) resolveOverrides(cd *ClassDescriptor) {
	for _, m := range cd.Methods {
		if m.Static || m.Constructor {
			continue
		}
		for _, st := range cd.Supertypes {
			if st.Class == nil {
				continue
			}
			superFn, _ := st.Class.LookupMember(m.Name, len(m.Params), false)
			if superFn == nil || superFn.Static || len(superFn.Params) != len(m.Params) || containsFn(m.Overridden, superFn) {
				continue
			}
			m.Overridden = append(m.Overridden, superFn)
			fn, ok := m.Decl.(*ast.Function)
			if !ok {
				continue
			}
			if superDecl, ok := superFn.Decl.(*ast.Function); ok {
				s.info.Add(fn.Label, SuperFunctionInfo{Label: superDecl.Label})
			} else {
				s.info.Add(fn.Label, SuperFunctionInfo{External: superFn})
			}
		}
	}
}

func containsFn(fns []*FunctionDescriptor, fn *FunctionDescriptor) bool {
	for _, f := range fns {
		if f == fn {
			return true
		}
	}
	return false
}

// --- lexical environment ---

type env struct {
	parent     *env
	vars       map[string]ast.Decl
	class      *ClassDescriptor
	fn         ast.Decl
	typeParams []*TypeParamDescriptor
	narrowed   map[ast.Decl]bool
}

func (e *env) child() *env {
	return &env{parent: e, class: e.class, fn: e.fn}
}

func (e *env) declare(name string, d ast.Decl) {
	if e.vars == nil {
		e.vars = make(map[string]ast.Decl)
	}
	e.vars[name] = d
}

func (e *env) lookup(name string) ast.Decl {
	for cur := e; cur != nil; cur = cur.parent {
		if d, ok := cur.vars[name]; ok {
			return d
		}
	}
	return nil
}

func (e *env) typeParam(name string) *TypeParamDescriptor {
	for cur := e; cur != nil; cur = cur.parent {
		for _, p := range cur.typeParams {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

func (e *env) narrow(decls []ast.Decl) *env {
	if len(decls) == 0 {
		return e
	}
	c := e.child()
	c.narrowed = make(map[ast.Decl]bool, len(decls))
	for _, d := range decls {
		c.narrowed[d] = true
	}
	return c
}

func (e *env) isNarrowed(d ast.Decl) bool {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.narrowed[d] {
			return true
		}
	}
	return false
}

// --- types ---

func (s *Scope) classNamed(name string) *ClassDescriptor {
	if c, ok := s.classes[name]; ok {
		return c
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if c, ok := s.classes[name[i+1:]]; ok {
			return c
		}
	}
	return s.lib.Class(name)
}

func (s *Scope) resolveTypeRef(tr *ast.TypeRef, e *env) *Type {
	if tr == nil {
		return nil
	}
	if t, ok := s.typeRefs[tr]; ok {
		return t
	}
	var t *Type
	switch {
	case tr.Star:
		t = &Type{Star: true}
	case tr.Unit:
		t = &Type{Class: s.lib.UnitType}
	default:
		if p := e.typeParam(tr.Name); p != nil {
			t = &Type{Param: p}
		} else if c := s.classNamed(tr.Name); c != nil {
			t = &Type{Class: c}
		} else {
			return nil
		}
		t.Nullability = markerNullability(tr)
		for _, a := range tr.Args {
			at := s.resolveTypeRef(a, e)
			if at == nil {
				at = &Type{Star: true}
			}
			t.Args = append(t.Args, at)
		}
	}
	s.typeRefs[tr] = t
	return t
}

func (s *Scope) classOfType(t *Type) *ClassDescriptor {
	switch {
	case t == nil:
		return nil
	case t.Class != nil:
		return t.Class
	case t.Param != nil:
		return s.lib.Object
	}
	return nil
}

func (s *Scope) simple(name string) *Type {
	if c := s.lib.Class(name); c != nil {
		return &Type{Class: c, Nullability: NotNull}
	}
	return nil
}

// --- bodies ---

func (s *Scope) walkClass(c *ast.Class) {
	cd := s.classOf[c]
	e := &env{class: cd, typeParams: cd.TypeParams}
	for _, m := range c.Members {
		switch d := m.(type) {
		case *ast.Property:
			s.walkExpr(d.Init, e, s.declTypes[d])
		case *ast.Function:
			s.walkFunction(d, e)
		}
	}
}

func (s *Scope) walkFunction(fn *ast.Function, classEnv *env) {
	fd := s.funcs[fn]
	e := classEnv.child()
	e.fn = fn
	if fd != nil {
		e.typeParams = fd.TypeParams
	}
	for _, p := range fn.Params {
		e.declare(p.Name, p)
		s.walkExpr(p.Default, e, s.declTypes[p])
	}
	if fn.Body != nil {
		s.walkBlock(fn.Body, e)
	}
}

func (s *Scope) walkBlock(b *ast.Block, e *env) {
	inner := e.child()
	for _, st := range b.Stmts {
		s.walkStmt(st, inner)
		// `if (x == null) return;` narrows x for the rest of the block.
		if ifs, ok := st.(*ast.If); ok && ifs.Else == nil && jumps(ifs.Then) {
			inner = inner.narrow(s.nullGuards(ifs.Cond, "==", "||"))
		}
	}
}

func jumps(n ast.Node) bool {
	switch x := n.(type) {
	case *ast.Return, *ast.Throw:
		return true
	case *ast.Block:
		return len(x.Stmts) > 0 && jumps(x.Stmts[len(x.Stmts)-1])
	}
	return false
}

func (s *Scope) walkNode(n ast.Node, e *env) {
	switch x := n.(type) {
	case nil:
	case ast.Stmt:
		s.walkStmt(x, e)
	case ast.Expr:
		s.walkExpr(x, e, nil)
	}
}

func (s *Scope) walkStmt(st ast.Stmt, e *env) {
	switch x := st.(type) {
	case *ast.Block:
		s.walkBlock(x, e)
	case *ast.Property:
		t := s.resolveTypeRef(x.Type, e)
		it := s.walkExpr(x.Init, e, t)
		if t == nil {
			t = it
		}
		s.declTypes[x] = t
		e.declare(x.Name, x)
	case *ast.ExprStmt:
		s.walkExpr(x.X, e, nil)
	case *ast.Throw:
		s.walkExpr(x.X, e, nil)
	case *ast.Return:
		if e.fn != nil {
			s.returns[x] = e.fn
		}
		s.walkExpr(x.X, e, s.returnTypeOf(e.fn))
	case *ast.If:
		s.walkIf(x, e)
	case *ast.While:
		s.walkExpr(x.Cond, e, nil)
		s.walkNode(x.Body, e.narrow(s.nullGuards(x.Cond, "!=", "&&")))
	case *ast.For:
		s.walkFor(x, e)
	case *ast.Labeled:
		s.walkNode(x.X, e)
	}
}

func (s *Scope) walkIf(x *ast.If, e *env) *Type {
	s.walkExpr(x.Cond, e, nil)
	var out *Type
	thenEnv := e.narrow(s.nullGuards(x.Cond, "!=", "&&"))
	elseEnv := e.narrow(s.nullGuards(x.Cond, "==", "||"))
	if then, ok := x.Then.(ast.Expr); ok && x.IsExpr {
		out = s.walkExpr(then, thenEnv, nil)
	} else {
		s.walkNode(x.Then, thenEnv)
	}
	if els, ok := x.Else.(ast.Expr); ok && x.IsExpr {
		if t := s.walkExpr(els, elseEnv, nil); out == nil {
			out = t
		}
	} else {
		s.walkNode(x.Else, elseEnv)
	}
	return out
}

func (s *Scope) walkFor(x *ast.For, e *env) {
	rt := s.walkExpr(x.Range, e, nil)
	var elem *Type
	if cls := s.classOfType(rt); cls != nil {
		if it, subst := cls.LookupMember("iterator", 0, false); it != nil {
			iter := it.Return.Substitute(subst)
			s.iterators[x.Range] = iter
			if concrete := iter.Substitute(Bindings(rt)); concrete != nil && len(concrete.Args) > 0 {
				elem = concrete.Args[0]
			}
		}
	}
	body := e.child()
	if x.Param != nil {
		t := s.resolveTypeRef(x.Param.Type, e)
		if t == nil {
			t = elem
		}
		s.declTypes[x.Param] = t
		body.declare(x.Param.Name, x.Param)
	}
	s.walkNode(x.Body, body)
}

// nullGuards returns the declarations proven non-null when cond holds (for
// op "!=" joined by "&&") or when cond fails (op "==" joined by "||").
func (s *Scope) nullGuards(cond ast.Expr, op, join string) []ast.Decl {
	b, ok := ast.Unparen(cond).(*ast.Binary)
	if !ok {
		return nil
	}
	if b.Op == join {
		return append(s.nullGuards(b.Left, op, join), s.nullGuards(b.Right, op, join)...)
	}
	if b.Op != op {
		return nil
	}
	other := b.Left
	if ast.IsNull(b.Left) {
		other = b.Right
	} else if !ast.IsNull(b.Right) {
		return nil
	}
	if ref, ok := ast.Unparen(other).(*ast.NameRef); ok {
		if d := s.refs[ref]; d != nil {
			return []ast.Decl{d}
		}
	}
	return nil
}

func (s *Scope) returnTypeOf(fn ast.Decl) *Type {
	switch f := fn.(type) {
	case *ast.Function:
		if fd := s.funcs[f]; fd != nil {
			return fd.Return
		}
	case *ast.Lambda:
		if sig := s.lambdas[f]; sig != nil {
			return sig.Return
		}
	}
	return nil
}

func (s *Scope) walkExpr(x ast.Expr, e *env, expected *Type) *Type {
	if x == nil {
		return nil
	}
	t := s.exprType(x, e, expected)
	if t != nil {
		s.exprTypes[x] = t
	}
	return t
}

func (s *Scope) exprType(x ast.Expr, e *env, expected *Type) *Type {
	switch n := x.(type) {
	case *ast.NullLiteral:
		return nil
	case *ast.Literal:
		return s.literalType(n)
	case *ast.Paren:
		return s.walkExpr(n.X, e, expected)
	case *ast.Labeled:
		if inner, ok := n.X.(ast.Expr); ok {
			return s.walkExpr(inner, e, expected)
		}
		s.walkNode(n.X, e)
		return nil
	case *ast.Binary:
		return s.binaryType(n, e)
	case *ast.Unary:
		t := s.walkExpr(n.X, e, nil)
		if n.Op == "!" {
			return s.simple("boolean")
		}
		return t
	case *ast.Assign:
		lt := s.walkExpr(n.Left, e, nil)
		s.walkExpr(n.Right, e, lt)
		return lt
	case *ast.NameRef:
		return s.nameType(n, e)
	case *ast.This:
		if e.class != nil {
			t := e.class.DefaultType()
			t.Nullability = NotNull
			return t
		}
		return nil
	case *ast.Qualified:
		return s.qualifiedType(n, e, expected)
	case *ast.Call:
		return s.callType(n, nil, nil, nil, e, expected)
	case *ast.Cast:
		s.walkExpr(n.X, e, nil)
		return s.resolveTypeRef(n.Type, e)
	case *ast.TypeTest:
		s.walkExpr(n.X, e, nil)
		s.resolveTypeRef(n.Type, e)
		return s.simple("boolean")
	case *ast.Lambda:
		return s.walkLambda(n, e, expected)
	case *ast.If:
		return s.walkIf(n, e)
	}
	return nil
}

func (s *Scope) literalType(l *ast.Literal) *Type {
	switch l.Kind {
	case ast.LitString:
		return s.simple("String")
	case ast.LitBool:
		return s.simple("boolean")
	case ast.LitChar:
		return s.simple("char")
	}
	text := strings.ToLower(l.Text)
	switch {
	case strings.HasSuffix(text, "l"):
		return s.simple("long")
	case strings.HasSuffix(text, "f"):
		return s.simple("float")
	case strings.ContainsAny(text, ".e") && !strings.HasPrefix(text, "0x"):
		return s.simple("double")
	}
	return s.simple("int")
}

func (s *Scope) binaryType(b *ast.Binary, e *env) *Type {
	lt := s.walkExpr(b.Left, e, nil)
	right := e
	switch b.Op {
	case "&&":
		right = e.narrow(s.nullGuards(b.Left, "!=", "&&"))
	case "||":
		right = e.narrow(s.nullGuards(b.Left, "==", "||"))
	}
	rt := s.walkExpr(b.Right, right, nil)
	switch b.Op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return s.simple("boolean")
	case "+":
		if isString(lt) || isString(rt) {
			return s.simple("String")
		}
	}
	if lt != nil {
		return lt
	}
	return rt
}

func isString(t *Type) bool {
	return t != nil && t.Class != nil && t.Class.Name == "String"
}

func (s *Scope) nameType(n *ast.NameRef, e *env) *Type {
	if d := e.lookup(n.Name); d != nil {
		s.refs[n] = d
		if e.isNarrowed(d) {
			s.narrowed[n] = true
		}
		return s.declTypes[d]
	}
	if e.class != nil {
		if fd, subst := e.class.LookupMember(n.Name, 0, true); fd != nil {
			if fd.Decl != nil {
				s.refs[n] = fd.Decl
				if e.isNarrowed(fd.Decl) {
					s.narrowed[n] = true
				}
			}
			return fd.Return.Substitute(subst)
		}
	}
	if c := s.classNamed(n.Name); c != nil {
		s.statics[n] = c
	}
	return nil
}

func (s *Scope) qualifiedType(q *ast.Qualified, e *env, expected *Type) *Type {
	rt := s.walkExpr(q.Receiver, e, nil)
	static := s.statics[ast.Unparen(q.Receiver)]
	switch sel := q.Selector.(type) {
	case *ast.NameRef:
		cls := static
		if cls == nil {
			cls = s.classOfType(rt)
		}
		if cls == nil {
			return nil
		}
		fd, subst := cls.LookupMember(sel.Name, 0, true)
		if fd == nil {
			return nil
		}
		if fd.Decl != nil {
			s.refs[sel] = fd.Decl
		}
		declared := fd.Return.Substitute(subst)
		field := &Call{Target: fd, Receiver: q.Receiver, ReturnType: declared}
		t := declared
		if static == nil {
			field.DispatchReceiver = rt
			t = t.Substitute(Bindings(rt))
		}
		s.fields[q] = field
		if t != nil {
			s.exprTypes[sel] = t
		}
		return t
	case *ast.Call:
		t := s.callType(sel, q.Receiver, rt, static, e, expected)
		if t != nil {
			s.exprTypes[sel] = t
		}
		return t
	}
	return nil
}

// callType resolves a call and walks its arguments. receiverType is nil for
// unqualified calls; static is set when the receiver names a class.
func (s *Scope) callType(call *ast.Call, receiver ast.Expr, receiverType *Type, static *ClassDescriptor, e *env, expected *Type) *Type {
	argTypes := make([]*Type, len(call.Args))
	for i, a := range call.Args {
		if _, isLambda := ast.Unparen(a.X).(*ast.Lambda); !isLambda {
			argTypes[i] = s.walkExpr(a.X, e, nil)
		}
	}
	typeArgs := make([]*Type, len(call.TypeArgs))
	for i, ta := range call.TypeArgs {
		typeArgs[i] = s.resolveTypeRef(ta, e)
	}

	var (
		members  []Member
		dispatch *Type
		ctorCls  *ClassDescriptor
	)
	switch {
	case call.Constructor:
		ctorCls = s.classNamed(call.Name)
		if ctorCls != nil {
			for _, c := range ctorCls.Ctors {
				if c.Accepts(len(call.Args)) {
					members = append(members, Member{Fn: c})
				}
			}
		}
	case receiver != nil:
		cls := static
		if cls == nil {
			cls = s.classOfType(receiverType)
			dispatch = receiverType
		}
		members = cls.LookupOverloads(call.Name, len(call.Args), false)
		if len(members) == 0 && cls != nil && cls.Interface {
			members = s.lib.Object.LookupOverloads(call.Name, len(call.Args), false)
		}
	default:
		if e.class != nil {
			members = e.class.LookupOverloads(call.Name, len(call.Args), false)
			if len(members) > 0 && !members[0].Fn.Static {
				dispatch = e.class.DefaultType()
			}
		}
		if len(members) == 0 {
			for _, fn := range s.lib.Functions(call.Name) {
				if fn.Accepts(len(call.Args)) {
					members = append(members, Member{Fn: fn})
				}
			}
		}
	}

	m, ok := s.chooseOverload(members, argTypes)
	if !ok {
		for i, a := range call.Args {
			if argTypes[i] == nil {
				s.walkExpr(a.X, e, nil)
			}
		}
		return nil
	}
	fn := m.Fn
	ret := fn.Return.Substitute(m.Subst)
	params := paramTypes(fn, m.Subst)
	s.calls[call] = NewCall(fn, call, receiver, dispatch, ret, params)

	// Concrete view of the call: receiver arguments, explicit type
	// arguments and a naive unification against argument types.
	bind := make(map[*TypeParamDescriptor]*Type)
	for p, t := range Bindings(dispatch) {
		bind[p] = t
	}
	typeParams := fn.TypeParams
	if ctorCls != nil {
		typeParams = ctorCls.TypeParams
	}
	for i, p := range typeParams {
		if i < len(typeArgs) && typeArgs[i] != nil {
			bind[p] = typeArgs[i]
		}
	}
	for i, at := range argTypes {
		if pt := paramForArg(params, fn, i, call.Args[i].Spread); pt != nil {
			unify(pt, at, typeParams, bind)
		}
	}

	for i, a := range call.Args {
		lambda, isLambda := ast.Unparen(a.X).(*ast.Lambda)
		if !isLambda {
			continue
		}
		pt := paramForArg(params, fn, i, a.Spread).Substitute(bind)
		s.exprTypes[a.X] = s.walkLambda(lambda, e, pt)
	}

	out := ret.Substitute(bind)
	if ctorCls != nil && len(typeArgs) == 0 && expected != nil && expected.Class == ctorCls {
		out = &Type{Class: ctorCls, Args: expected.Args, Nullability: NotNull}
	}
	return out
}

// paramForArg is the type the i-th argument flows into; vararg elements
// unwrap the array unless spread.
func paramForArg(params []*Type, fn *FunctionDescriptor, i int, spread bool) *Type {
	if len(params) == 0 {
		return nil
	}
	idx := i
	if idx >= len(params) {
		idx = len(params) - 1
	}
	pt := params[idx]
	if idx == len(params)-1 && fn.Params[idx].Vararg && !spread && pt != nil && len(pt.Args) == 1 {
		return pt.Args[0]
	}
	return pt
}

func unify(pt, at *Type, owned []*TypeParamDescriptor, bind map[*TypeParamDescriptor]*Type) {
	if pt == nil || at == nil {
		return
	}
	if pt.Param != nil {
		for _, p := range owned {
			if p == pt.Param {
				if _, done := bind[p]; !done {
					bind[p] = at
				}
				return
			}
		}
		return
	}
	if pt.Class == nil || at.Class != pt.Class || len(pt.Args) != len(at.Args) {
		return
	}
	for i := range pt.Args {
		unify(pt.Args[i], at.Args[i], owned, bind)
	}
}

// chooseOverload picks the candidate whose parameters best match the known
// argument types. Ties keep declaration order.
func (s *Scope) chooseOverload(members []Member, argTypes []*Type) (Member, bool) {
	if len(members) == 0 {
		return Member{}, false
	}
	best, bestScore := members[0], -1<<31
	for _, m := range members {
		score := 0
		for i, at := range argTypes {
			pt := paramForArg(paramTypes(m.Fn, m.Subst), m.Fn, i, false)
			score += matchScore(pt, at)
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best, true
}

func matchScore(pt, at *Type) int {
	switch {
	case pt == nil || at == nil:
		return 0
	case pt.Param != nil:
		return 1
	case pt.Class == at.Class:
		return 3
	case pt.Class == nil || at.Class == nil:
		return 0
	case pt.Class.Primitive != at.Class.Primitive:
		return -2
	case at.Class.IsSubclassOf(pt.Class):
		return 2
	}
	return -1
}

func (s *Scope) walkLambda(l *ast.Lambda, e *env, expected *Type) *Type {
	var sig *Signature
	if expected != nil {
		if cls := expected.Class; cls != nil {
			if sam := cls.SAM(); sam != nil {
				b := Bindings(expected)
				sig = &Signature{Return: sam.Return.Substitute(b)}
				for _, p := range sam.Params {
					sig.Params = append(sig.Params, p.Type.Substitute(b))
				}
			}
		}
	}
	if sig != nil {
		s.lambdas[l] = sig
	}
	inner := e.child()
	inner.fn = l
	for i, p := range l.Params {
		t := s.resolveTypeRef(p.Type, e)
		if t == nil && sig != nil && i < len(sig.Params) {
			t = sig.Params[i]
		}
		s.declTypes[p] = t
		inner.declare(p.Name, p)
	}
	switch body := l.Body.(type) {
	case *ast.Block:
		s.walkBlock(body, inner)
	case ast.Expr:
		var want *Type
		if sig != nil {
			want = sig.Return
		}
		s.walkExpr(body, inner, want)
	}
	return expected
}

// --- Resolver ---

func (s *Scope) Name() string { return "scope" }

func (s *Scope) ResolveReference(ref *ast.NameRef) ast.Decl {
	return s.refs[ref]
}

func (s *Scope) ResolveCall(expr ast.Expr) *Call {
	switch x := expr.(type) {
	case *ast.Qualified:
		if c, ok := x.Selector.(*ast.Call); ok {
			return s.calls[c]
		}
		return s.fields[x]
	case *ast.Call:
		return s.calls[x]
	}
	return nil
}

func (s *Scope) ResolveTypeRef(ref *ast.TypeRef) *Type {
	return s.typeRefs[ref]
}

func (s *Scope) LambdaSignature(l *ast.Lambda) *Signature {
	return s.lambdas[l]
}

func (s *Scope) EnclosingFunction(ret *ast.Return) ast.Decl {
	return s.returns[ret]
}

func (s *Scope) IteratorElementType(rng ast.Expr) *Type {
	return s.iterators[rng]
}

func (s *Scope) FunctionClass(arity int) *ClassDescriptor {
	return s.lib.FunctionClass(arity)
}

func (s *Scope) DescriptorFor(decl ast.Decl) *FunctionDescriptor {
	return s.funcs[decl]
}

func (s *Scope) SuperFunctions(fn *ast.Function) []*FunctionDescriptor {
	if fd := s.funcs[fn]; fd != nil {
		return fd.Overridden
	}
	return nil
}

func (s *Scope) IsNarrowedNotNull(ref *ast.NameRef) bool {
	return s.narrowed[ref]
}

// TypeOf exposes the static type computed for an expression.
func (s *Scope) TypeOf(x ast.Expr) *Type {
	return s.exprTypes[x]
}

// ElementInfo returns the super-function side table built for the batch.
func (s *Scope) ElementInfo() ElementInfo {
	return s.info
}

// Class returns the descriptor of an in-batch class.
func (s *Scope) Class(c *ast.Class) *ClassDescriptor {
	return s.classOf[c]
}
