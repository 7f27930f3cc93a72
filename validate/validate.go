// Package validate checks extracted Programme Specification records before
// they reach the catalog.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brunobiangulo/progspec/parser"
)

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compile(RecordSchema())
})

func compile(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Record validates rec against RecordSchema and checks that every
// modules_by_year key names the year its bucket holds.
func Record(rec *parser.Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	schema, err := compiled()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}

	keys := make([]string, 0, len(rec.ModulesByYear))
	for k := range rec.ModulesByYear {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if want := parser.BucketKey(rec.ModulesByYear[k].Year); k != want {
			return fmt.Errorf("modules_by_year[%q] holds year %d", k, rec.ModulesByYear[k].Year)
		}
	}
	return nil
}
