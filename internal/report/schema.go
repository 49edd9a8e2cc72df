package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed report.schema.json
var schemaJSON []byte

const schemaURL = "nullinfer://report.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks a report against the embedded JSON schema.
func Validate(r *Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile report schema: %w", err)
	}

	var v any
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report for schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize report for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}
