package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"nullinfer/internal/ast"
)

// Symbol describes one declaration found in a source file.
type Symbol struct {
	ID        string `json:"id"`
	Filepath  string `json:"filepath"`
	Package   string `json:"package"`
	Language  string `json:"language"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	UnitType  string `json:"unit_type"` // e.g., "class", "interface", "method", "constructor", "field"
	Name      string `json:"name"`
	Owner     string `json:"owner,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Unit is the result of lowering one file.
type Unit struct {
	File    *ast.File
	Symbols []*Symbol
	// HasErrors is set when the parser had to recover from syntax errors.
	HasErrors bool
}

// LanguageExtractor defines the interface that each language frontend must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	PackageQuery() string
	Lower(root *sitter.Node, sourceCode []byte, filepath string, packageName string) *Unit
}
