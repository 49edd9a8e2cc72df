package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	labelRe      = regexp.MustCompile(`^/\*@@(.+)@@\*/$`)
)

// BuildStableSymbolID creates a deterministic symbol ID.
// The ID is derived from identity fields and a canonical signature hash, so
// overloads of the same name get distinct IDs.
func BuildStableSymbolID(sym *Symbol) string {
	if sym == nil {
		return ""
	}

	lang := orDefault(sym.Language, "java")
	pkg := orDefault(sym.Package, "_")
	kind := orDefault(sym.UnitType, "symbol")
	name := orDefault(sym.Name, "_")
	owner := canonicalize(sym.Owner)
	signature := canonicalize(sym.Signature)

	fingerprint := strings.Join([]string{
		lang,
		pkg,
		kind,
		owner,
		name,
		signature,
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	short := hex.EncodeToString(sum[:8])
	if owner != "" {
		name = owner + "." + name
	}
	return fmt.Sprintf("%s/%s:%s:%s:%s", lang, pkg, kind, name, short)
}

// parseLabel extracts the id from a `/*@@id@@*/` comment.
func parseLabel(comment string) (string, bool) {
	m := labelRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}
