// Package contracts embeds the OpenAPI documents that describe and validate the HTTP API.
package contracts

import (
	"context"
	"embed"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed *.yaml
var files embed.FS

// Names lists the embedded contracts by their public documentation name.
func Names() []string {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		names = append(names, name[:len(name)-len(".yaml")])
	}
	sort.Strings(names)
	return names
}

// Load parses and validates the named contract ("leads", "properties", "templates").
func Load(ctx context.Context, name string) (*openapi3.T, error) {
	data, err := files.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("contract %q not found: %w", name, err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load contract %q: %w", name, err)
	}

	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate contract %q: %w", name, err)
	}

	return spec, nil
}
