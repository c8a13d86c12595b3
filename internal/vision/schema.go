package vision

// ExtractionSchema is the fixed JSON-Schema (draft 2020-12 subset) every
// model response must satisfy. Responses that fail it are discarded wholesale
// in favor of the zero-confidence empty result; there is no partial accept.
func ExtractionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"storeName", "date", "items", "total", "currency", "confidence"},
		"properties": map[string]any{
			"storeName": map[string]any{"type": []string{"string", "null"}},
			"date": map[string]any{
				"type":    []string{"string", "null"},
				"pattern": `^\d{4}-\d{2}-\d{2}$`,
			},
			"items": map[string]any{
				"type":  "array",
				"items": itemSchema(),
			},
			"total": map[string]any{
				"type":             []string{"number", "null"},
				"exclusiveMinimum": 0.0,
				"maximum":          10000.0,
			},
			"currency": map[string]any{
				"type":      "string",
				"minLength": 3,
				"maxLength": 3,
			},
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0.0,
				"maximum": 1.0,
			},
		},
	}
}

func itemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "price"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
			"price": map[string]any{
				"type":             "number",
				"exclusiveMinimum": 0.0,
				"maximum":          10000.0,
			},
			"quantity": map[string]any{"type": "integer", "minimum": 1},
		},
	}
}
