package resolver

import (
	"fmt"
	"strings"
	"unicode"
)

// Library tables describe members with compact signatures:
//
//	static <T> asList(vararg items: T): List<T>!
//	get(index: int): E
//	length: int                (fields)
//	(capacity: int)            (constructors)
//
// A trailing ? marks a nullable type, ! a not-null one, * a star projection.

type typeExpr struct {
	name        string
	args        []*typeExpr
	star        bool
	nullability Nullability
}

type paramExpr struct {
	name   string
	typ    *typeExpr
	vararg bool
}

type sigExpr struct {
	name       string
	static     bool
	abstract   bool
	typeParams []string
	params     []paramExpr
	ret        *typeExpr
}

type sigScanner struct {
	src string
	pos int
}

func (s *sigScanner) skipSpace() {
	for s.pos < len(s.src) && s.src[s.pos] == ' ' {
		s.pos++
	}
}

func (s *sigScanner) peek() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *sigScanner) accept(c byte) bool {
	if s.peek() == c {
		s.pos++
		return true
	}
	return false
}

func (s *sigScanner) expect(c byte) error {
	if !s.accept(c) {
		return fmt.Errorf("expected %q at %d in %q", c, s.pos, s.src)
	}
	return nil
}

func (s *sigScanner) ident() (string, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) {
		r := rune(s.src[s.pos])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$' {
			s.pos++
			continue
		}
		break
	}
	if start == s.pos {
		return "", fmt.Errorf("expected identifier at %d in %q", s.pos, s.src)
	}
	return s.src[start:s.pos], nil
}

// keyword consumes word if it is the next identifier.
func (s *sigScanner) keyword(word string) bool {
	s.skipSpace()
	rest := s.src[s.pos:]
	if strings.HasPrefix(rest, word+" ") {
		s.pos += len(word) + 1
		return true
	}
	return false
}

func parseTypeExpr(src string) (*typeExpr, error) {
	s := &sigScanner{src: src}
	t, err := s.typeExpr()
	if err != nil {
		return nil, err
	}
	if s.peek() != 0 {
		return nil, fmt.Errorf("trailing input at %d in %q", s.pos, src)
	}
	return t, nil
}

func (s *sigScanner) typeExpr() (*typeExpr, error) {
	if s.accept('*') {
		return &typeExpr{star: true}, nil
	}
	name, err := s.ident()
	if err != nil {
		return nil, err
	}
	t := &typeExpr{name: name}
	if s.accept('<') {
		for {
			arg, err := s.typeExpr()
			if err != nil {
				return nil, err
			}
			t.args = append(t.args, arg)
			if s.accept('>') {
				break
			}
			if err := s.expect(','); err != nil {
				return nil, err
			}
		}
	}
	switch {
	case s.accept('?'):
		t.nullability = Nullable
	case s.accept('!'):
		t.nullability = NotNull
	}
	return t, nil
}

func (s *sigScanner) typeParams() ([]string, error) {
	var out []string
	if !s.accept('<') {
		return nil, nil
	}
	for {
		name, err := s.ident()
		if err != nil {
			return nil, err
		}
		out = append(out, name)
		if s.accept('>') {
			return out, nil
		}
		if err := s.expect(','); err != nil {
			return nil, err
		}
	}
}

func (s *sigScanner) params() ([]paramExpr, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	var out []paramExpr
	if s.accept(')') {
		return nil, nil
	}
	for {
		p := paramExpr{vararg: s.keyword("vararg")}
		name, err := s.ident()
		if err != nil {
			return nil, err
		}
		p.name = name
		if err := s.expect(':'); err != nil {
			return nil, err
		}
		if p.typ, err = s.typeExpr(); err != nil {
			return nil, err
		}
		out = append(out, p)
		if s.accept(')') {
			return out, nil
		}
		if err := s.expect(','); err != nil {
			return nil, err
		}
	}
}

// parseMethodSig parses `[static] [abstract] [<T>] name(params): Type`.
func parseMethodSig(src string) (*sigExpr, error) {
	s := &sigScanner{src: src}
	sig := &sigExpr{}
	for {
		switch {
		case s.keyword("static"):
			sig.static = true
			continue
		case s.keyword("abstract"):
			sig.abstract = true
			continue
		}
		break
	}
	var err error
	if sig.typeParams, err = s.typeParams(); err != nil {
		return nil, err
	}
	if sig.name, err = s.ident(); err != nil {
		return nil, err
	}
	if sig.params, err = s.params(); err != nil {
		return nil, err
	}
	if s.accept(':') {
		if sig.ret, err = s.typeExpr(); err != nil {
			return nil, err
		}
	}
	if s.peek() != 0 {
		return nil, fmt.Errorf("trailing input at %d in %q", s.pos, src)
	}
	return sig, nil
}

// parseCtorSig parses `(params)`.
func parseCtorSig(src string) (*sigExpr, error) {
	s := &sigScanner{src: src}
	sig := &sigExpr{name: "<init>"}
	var err error
	if sig.params, err = s.params(); err != nil {
		return nil, err
	}
	return sig, nil
}

// parseFieldSig parses `[static] name: Type`.
func parseFieldSig(src string) (*sigExpr, error) {
	s := &sigScanner{src: src}
	sig := &sigExpr{static: s.keyword("static")}
	var err error
	if sig.name, err = s.ident(); err != nil {
		return nil, err
	}
	if err := s.expect(':'); err != nil {
		return nil, err
	}
	if sig.ret, err = s.typeExpr(); err != nil {
		return nil, err
	}
	return sig, nil
}
