package records

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://estate-search.local/schema/"

var ErrInvalid = errors.New("invalid property payload")

// Validator checks admin payloads before they reach a RecordStore.
type Validator struct {
	create *jsonschema.Schema
	update *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range []string{"property.json", "create.json", "update.json"} {
		b, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	create, err := c.Compile(schemaBase + "create.json")
	if err != nil {
		return nil, fmt.Errorf("compile create schema: %w", err)
	}
	update, err := c.Compile(schemaBase + "update.json")
	if err != nil {
		return nil, fmt.Errorf("compile update schema: %w", err)
	}
	return &Validator{create: create, update: update}, nil
}

func (v *Validator) ValidateCreate(body []byte) error { return validate(v.create, body) }

func (v *Validator) ValidateUpdate(body []byte) error { return validate(v.update, body) }

func validate(s *jsonschema.Schema, body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: body is not valid JSON: %w", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
