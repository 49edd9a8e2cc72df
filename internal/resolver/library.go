package resolver

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed stdlib.yaml
var stdlibYAML []byte

// LibraryTable is the on-disk shape of a descriptor table.
type LibraryTable struct {
	Classes   []ClassEntry `yaml:"classes"`
	Functions []string     `yaml:"functions"`
}

type ClassEntry struct {
	Name       string   `yaml:"name"`
	Qualified  string   `yaml:"qualified"`
	Params     []string `yaml:"params"`
	Supertypes []string `yaml:"supertypes"`
	Interface  bool     `yaml:"interface"`
	Functional bool     `yaml:"functional"`
	Methods    []string `yaml:"methods"`
	Fields     []string `yaml:"fields"`
	Ctors      []string `yaml:"ctors"`
}

// Library holds descriptors for code outside the conversion batch.
// It is safe for concurrent use.
type Library struct {
	classes   map[string]*ClassDescriptor
	functions map[string][]*FunctionDescriptor

	mu       sync.Mutex
	lambdas  map[int]*ClassDescriptor
	Object   *ClassDescriptor
	UnitType *ClassDescriptor
}

var primitiveNames = []string{"int", "long", "short", "byte", "char", "float", "double", "boolean"}

func newLibrary() *Library {
	l := &Library{
		classes:   make(map[string]*ClassDescriptor),
		functions: make(map[string][]*FunctionDescriptor),
		lambdas:   make(map[int]*ClassDescriptor),
	}
	for _, name := range primitiveNames {
		l.classes[name] = &ClassDescriptor{Name: name, Qualified: name, Primitive: true}
	}
	l.UnitType = &ClassDescriptor{Name: "void", Qualified: "void", Unit: true}
	l.classes["void"] = l.UnitType
	return l
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// DefaultLibrary returns the embedded java.lang/java.util subset.
func DefaultLibrary() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = LoadLibrary(stdlibYAML)
	})
	return defaultLib, defaultErr
}

// NewLibrary loads the embedded table followed by extra tables.
func NewLibrary(extra ...[]byte) (*Library, error) {
	if len(extra) == 0 {
		return DefaultLibrary()
	}
	return LoadLibrary(append([][]byte{stdlibYAML}, extra...)...)
}

// LoadLibrary builds a library from the given tables in order.
// Later tables may add classes; a class declared twice keeps its first definition.
func LoadLibrary(tables ...[]byte) (*Library, error) {
	l := newLibrary()
	var parsed []LibraryTable
	for i, data := range tables {
		var t LibraryTable
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse library table %d: %w", i, err)
		}
		parsed = append(parsed, t)
	}

	// Declare first so that member signatures can refer to any class.
	type pending struct {
		entry ClassEntry
		class *ClassDescriptor
	}
	var all []pending
	for _, t := range parsed {
		for _, e := range t.Classes {
			if _, exists := l.classes[e.Name]; exists {
				continue
			}
			c := &ClassDescriptor{
				Name:       e.Name,
				Qualified:  e.Qualified,
				Interface:  e.Interface,
				Functional: e.Functional,
			}
			for i, p := range e.Params {
				c.TypeParams = append(c.TypeParams, parseDeclaredParam(p, i, c))
			}
			l.classes[e.Name] = c
			if e.Qualified != "" {
				l.classes[e.Qualified] = c
			}
			all = append(all, pending{entry: e, class: c})
		}
	}
	l.Object = l.classes["Object"]

	for _, p := range all {
		if err := l.fill(p.class, p.entry); err != nil {
			return nil, fmt.Errorf("class %s: %w", p.entry.Name, err)
		}
	}
	for _, t := range parsed {
		for _, src := range t.Functions {
			sig, err := parseMethodSig(src)
			if err != nil {
				return nil, err
			}
			fn, err := l.buildFunction(sig, nil)
			if err != nil {
				return nil, err
			}
			fn.Static = true
			l.functions[fn.Name] = append(l.functions[fn.Name], fn)
		}
	}
	return l, nil
}

// parseDeclaredParam reads "out E" / "in T" / "K".
func parseDeclaredParam(src string, index int, owner *ClassDescriptor) *TypeParamDescriptor {
	p := &TypeParamDescriptor{Index: index, OwnerClass: owner}
	fields := strings.Fields(src)
	switch {
	case len(fields) == 2 && fields[0] == "out":
		p.Variance, p.Name = Out, fields[1]
	case len(fields) == 2 && fields[0] == "in":
		p.Variance, p.Name = In, fields[1]
	default:
		p.Name = strings.TrimSpace(src)
	}
	return p
}

func (l *Library) fill(c *ClassDescriptor, e ClassEntry) error {
	for _, src := range e.Supertypes {
		te, err := parseTypeExpr(src)
		if err != nil {
			return err
		}
		st, err := l.bind(te, c.TypeParams, nil)
		if err != nil {
			return err
		}
		c.Supertypes = append(c.Supertypes, st)
	}
	if len(c.Supertypes) == 0 && l.Object != nil && c != l.Object {
		c.Supertypes = []*Type{{Class: l.Object}}
	}
	for _, src := range e.Methods {
		sig, err := parseMethodSig(src)
		if err != nil {
			return err
		}
		fn, err := l.buildFunction(sig, c)
		if err != nil {
			return err
		}
		c.Methods = append(c.Methods, fn)
	}
	for _, src := range e.Fields {
		sig, err := parseFieldSig(src)
		if err != nil {
			return err
		}
		ret, err := l.bind(sig.ret, c.TypeParams, nil)
		if err != nil {
			return err
		}
		c.Fields = append(c.Fields, &FunctionDescriptor{Name: sig.name, Owner: c, Return: ret, Property: true, Static: sig.static})
	}
	for _, src := range e.Ctors {
		sig, err := parseCtorSig(src)
		if err != nil {
			return err
		}
		fn, err := l.buildFunction(sig, c)
		if err != nil {
			return err
		}
		fn.Constructor = true
		fn.Return = c.DefaultType()
		fn.Return.Nullability = NotNull
		c.Ctors = append(c.Ctors, fn)
	}
	if len(c.Ctors) == 0 && !c.Interface {
		c.Ctors = append(c.Ctors, DefaultConstructor(c))
	}
	return nil
}

// DefaultConstructor is the implicit no-arg constructor of c.
func DefaultConstructor(c *ClassDescriptor) *FunctionDescriptor {
	ret := c.DefaultType()
	ret.Nullability = NotNull
	return &FunctionDescriptor{Name: "<init>", Owner: c, Constructor: true, Return: ret}
}

func (l *Library) buildFunction(sig *sigExpr, owner *ClassDescriptor) (*FunctionDescriptor, error) {
	fn := &FunctionDescriptor{Name: sig.name, Owner: owner, Static: sig.static, Abstract: sig.abstract}
	for i, name := range sig.typeParams {
		fn.TypeParams = append(fn.TypeParams, &TypeParamDescriptor{Name: name, Index: i, OwnerFunction: fn})
	}
	var classParams []*TypeParamDescriptor
	if owner != nil {
		classParams = owner.TypeParams
	}
	for i, p := range sig.params {
		t, err := l.bind(p.typ, classParams, fn.TypeParams)
		if err != nil {
			return nil, err
		}
		if p.vararg {
			t = &Type{Class: l.classes["Array"], Args: []*Type{t}, Nullability: NotNull}
		}
		fn.Params = append(fn.Params, &ParamDescriptor{Name: p.name, Index: i, Type: t, Vararg: p.vararg})
	}
	if sig.ret != nil {
		t, err := l.bind(sig.ret, classParams, fn.TypeParams)
		if err != nil {
			return nil, err
		}
		fn.Return = t
	} else {
		fn.Return = &Type{Class: l.UnitType}
	}
	return fn, nil
}

func (l *Library) bind(te *typeExpr, classParams, fnParams []*TypeParamDescriptor) (*Type, error) {
	if te.star {
		return &Type{Star: true}, nil
	}
	for _, p := range fnParams {
		if p.Name == te.name {
			return &Type{Param: p, Nullability: te.nullability}, nil
		}
	}
	for _, p := range classParams {
		if p.Name == te.name {
			return &Type{Param: p, Nullability: te.nullability}, nil
		}
	}
	c, ok := l.classes[te.name]
	if !ok {
		return nil, fmt.Errorf("unknown type %s", te.name)
	}
	t := &Type{Class: c, Nullability: te.nullability}
	if c.Primitive {
		t.Nullability = NotNull
	}
	for _, a := range te.args {
		at, err := l.bind(a, classParams, fnParams)
		if err != nil {
			return nil, err
		}
		t.Args = append(t.Args, at)
	}
	return t, nil
}

// Class looks a class up by simple or qualified name.
func (l *Library) Class(name string) *ClassDescriptor {
	if c, ok := l.classes[name]; ok {
		return c
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return l.classes[name[i+1:]]
	}
	return nil
}

// Functions returns top-level functions named name.
func (l *Library) Functions(name string) []*FunctionDescriptor {
	return l.functions[name]
}

// FunctionClass returns the synthetic FunctionN type: N contravariant
// parameters followed by a covariant result.
func (l *Library) FunctionClass(arity int) *ClassDescriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.lambdas[arity]; ok {
		return c
	}
	c := &ClassDescriptor{Name: fmt.Sprintf("Function%d", arity), Interface: true, Functional: true}
	invoke := &FunctionDescriptor{Name: "invoke", Owner: c, Abstract: true}
	for i := 0; i < arity; i++ {
		p := &TypeParamDescriptor{Name: fmt.Sprintf("P%d", i+1), Index: i, Variance: In, OwnerClass: c}
		c.TypeParams = append(c.TypeParams, p)
		invoke.Params = append(invoke.Params, &ParamDescriptor{Name: strings.ToLower(p.Name), Index: i, Type: &Type{Param: p}})
	}
	r := &TypeParamDescriptor{Name: "R", Index: arity, Variance: Out, OwnerClass: c}
	c.TypeParams = append(c.TypeParams, r)
	invoke.Return = &Type{Param: r}
	c.Methods = []*FunctionDescriptor{invoke}
	if l.Object != nil {
		c.Supertypes = []*Type{{Class: l.Object}}
	}
	l.lambdas[arity] = c
	return c
}

// ArrayOf wraps elem into the library Array type.
func (l *Library) ArrayOf(elem *Type) *Type {
	return &Type{Class: l.classes["Array"], Args: []*Type{elem}}
}
