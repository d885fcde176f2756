package services

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DocumentConditions is the schema name of the escrow conditions document.
const DocumentConditions = "conditions"

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks JSON documents against the compiled schemas in schemas/.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded *.json schema. The document name is the
// file name without its version suffix, e.g. conditions.v1.json -> conditions.
func NewValidator() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		name = strings.TrimSuffix(name, ".v1")
		data, err := fs.ReadFile(schemaFS, path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat = true
		id := "https://marketplace.local/schemas/" + e.Name()
		if err := c.AddResource(id, strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		schemas[name], err = c.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Validate returns an error wrapping ErrValidation if doc does not match the named schema.
func (v *Validator) Validate(name string, doc []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var parsed interface{}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// ValidateConditions checks a marshalled conditions document.
func (v *Validator) ValidateConditions(doc []byte) error {
	return v.Validate(DocumentConditions, doc)
}

// ErrValidation can be used with errors.Is to detect schema failures.
var ErrValidation = errors.New("validation failed")
