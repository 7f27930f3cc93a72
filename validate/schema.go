package validate

import "github.com/brunobiangulo/progspec/parser"

// RecordSchema returns the JSON Schema (draft 2020-12) of the parser output
// as a generic map.
func RecordSchema() map[string]any {
	programme := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":          map[string]any{"type": "string", "pattern": `^([A-Z]\d{3})?$`},
			"title":         map[string]any{"type": "string"},
			"academic_year": map[string]any{"type": "string", "pattern": `^(\d{4})?$`},
		},
		"required":             []string{"code", "title", "academic_year"},
		"additionalProperties": false,
	}

	department := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":    map[string]any{"type": "string"},
			"faculty": map[string]any{"type": []string{"string", "null"}},
		},
		"required":             []string{"name", "faculty"},
		"additionalProperties": false,
	}

	course := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []string{"level"},
		"additionalProperties": false,
	}

	module := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":      "string",
				"pattern":   `^[A-Za-z]+[0-9]+$`,
				"minLength": parser.MinModuleCodeLength,
			},
			"title":   map[string]any{"type": "string"},
			"type":    map[string]any{"type": "string"},
			"term":    map[string]any{"type": "string"},
			"credits": map[string]any{"type": []string{"number", "null"}},
		},
		"required":             []string{"code", "title", "type", "term", "credits"},
		"additionalProperties": false,
	}

	bucket := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"year":       map[string]any{"type": "integer", "minimum": 0},
			"fheq_level": map[string]any{"type": "integer", "minimum": 0},
			"modules":    map[string]any{"type": "array", "items": module},
		},
		"required":             []string{"year", "fheq_level", "modules"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"programme":  programme,
			"department": department,
			"courses":    map[string]any{"type": "array", "items": course},
			"modules_by_year": map[string]any{
				"type":                 "object",
				"propertyNames":        map[string]any{"pattern": `^year_\d+$`},
				"additionalProperties": bucket,
			},
		},
		"required":             []string{"programme", "department", "courses", "modules_by_year"},
		"additionalProperties": false,
	}
}
