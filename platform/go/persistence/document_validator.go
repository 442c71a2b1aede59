package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	sqlassets "github.com/zenGate-Global/estatedesk/database"
)

// DocumentKind names a stored document shape with its own JSON Schema.
type DocumentKind string

const (
	DocumentLead     DocumentKind = "lead"
	DocumentProperty DocumentKind = "property"
)

var documentSchemas = map[DocumentKind][]byte{
	DocumentLead:     sqlassets.LeadDocumentSchema,
	DocumentProperty: sqlassets.PropertyDocumentSchema,
}

// DocumentValidator validates lead and property documents against the embedded
// JSON Schemas, compiling each schema once.
type DocumentValidator struct {
	mu    sync.RWMutex
	cache map[DocumentKind]*jsonschema.Schema
}

// NewDocumentValidator returns a validator with an empty schema cache.
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{
		cache: make(map[DocumentKind]*jsonschema.Schema),
	}
}

// Validate ensures the payload matches the schema registered for kind.
func (v *DocumentValidator) Validate(_ context.Context, kind DocumentKind, payload []byte) error {
	if len(payload) == 0 {
		return errors.New("payload is required for validation")
	}

	compiled, err := v.getOrCompile(kind)
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	if err := compiled.Validate(document); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	return nil
}

func (v *DocumentValidator) getOrCompile(kind DocumentKind) (*jsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.cache[kind]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	definition, ok := documentSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.cache[kind]; ok {
		return compiled, nil
	}

	key := fmt.Sprintf("memory://documents/%s.json", kind)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(key, bytes.NewReader(definition)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", key, err)
	}

	newCompiled, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", key, err)
	}

	v.cache[kind] = newCompiled
	return newCompiled, nil
}

// ValidationFields flattens a JSON Schema validation failure into messages keyed
// by top-level document field. Root-level failures are keyed "payload".
// The boolean is false when err does not carry a schema validation error.
func ValidationFields(err error) (map[string][]string, bool) {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, false
	}

	fields := make(map[string][]string)
	collectLeafCauses(validationErr, fields)
	for field := range fields {
		sort.Strings(fields[field])
	}
	return fields, true
}

func collectLeafCauses(verr *jsonschema.ValidationError, fields map[string][]string) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectLeafCauses(cause, fields)
		}
		return
	}

	field := "payload"
	if location := strings.TrimPrefix(verr.InstanceLocation, "/"); location != "" {
		field, _, _ = strings.Cut(location, "/")
	}
	fields[field] = append(fields[field], verr.Message)
}
