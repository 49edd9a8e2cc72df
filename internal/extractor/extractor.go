package extractor

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
)

// Extractor orchestrates parsing and lowering using a language-specific frontend.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "java":
		langExt = &JavaExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// ExtractFromFile parses a single source file and lowers it to the syntax model.
func (e *Extractor) ExtractFromFile(filepath string) (*Unit, error) {
	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath, err)
	}
	return e.ExtractFromSource(filepath, sourceCode)
}

// ExtractFromSource is ExtractFromFile for source already in memory.
func (e *Extractor) ExtractFromSource(filepath string, sourceCode []byte) (*Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filepath, err)
	}
	root := tree.RootNode()

	packageName := e.detectPackageName(root, sourceCode)
	unit := e.langExtractor.Lower(root, sourceCode, filepath, packageName)
	unit.HasErrors = root.HasError()
	for _, sym := range unit.Symbols {
		sym.Language = e.langName
	}
	return unit, nil
}

func (e *Extractor) detectPackageName(root *sitter.Node, sourceCode []byte) string {
	pkgQuery, err := sitter.NewQuery([]byte(e.langExtractor.PackageQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return ""
	}
	pqc := sitter.NewQueryCursor()
	pqc.Exec(pkgQuery, root)
	if m, ok := pqc.NextMatch(); ok && len(m.Captures) > 0 {
		return m.Captures[0].Node.Content(sourceCode)
	}
	return ""
}
