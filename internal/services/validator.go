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

// KindGSTReminder is the document kind for GST compliance reminder letters.
const KindGSTReminder = "gst_reminder"

// ErrValidation can be used with errors.Is to detect input that fails its schema.
var ErrValidation = errors.New("validation failed")

//go:embed schemas/*.json
var schemaFS embed.FS

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema, keyed by document kind
// (file name without the ".v1.json" suffix).
func NewValidator() (*Validator, error) {
	return newValidatorFS(schemaFS, "schemas")
}

func newValidatorFS(fsys fs.FS, dir string) (*Validator, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", dir, err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		kind := strings.TrimSuffix(strings.TrimSuffix(e.Name(), ".json"), ".v1")
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", p, err)
		}
		schemas[kind], err = jsonschema.CompileString("https://gstdoc.ai/schemas/"+kind+".input", string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", kind, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// ValidateInput rejects input that is not JSON or does not match the kind's schema.
func (v *Validator) ValidateInput(kind string, input json.RawMessage) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("unknown document kind %q", kind)
	}
	if len(input) == 0 {
		return fmt.Errorf("%w: empty input", ErrValidation)
	}
	var doc interface{}
	if err := json.Unmarshal(input, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
