package vision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExtractJSONObject peels markdown code fences off model output and returns
// the outermost {...} span, if any.
func ExtractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// NormalizeResponse makes a well-meaning-but-sloppy model response strictly
// schema-friendly before validation:
//   - string-encoded numbers become numbers ("12.99" -> 12.99)
//   - empty strings in nullable slots become null
//   - unknown keys are dropped (additionalProperties is false)
//   - item quantities are coerced to integers
//
// It never invents values; anything uncoercible is left for the validator to
// reject.
func NormalizeResponse(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	drop := func(k, why string) {
		delete(m, k)
		dropped = append(dropped, k+"("+why+")")
	}

	// numeric slots
	for _, k := range []string{"total", "confidence"} {
		if v, ok := m[k]; ok {
			if f, ok := coerceNumber(v); ok {
				m[k] = f
			} else if v == nil || v == "" {
				m[k] = nil
			} else {
				drop(k, "type")
			}
		}
	}

	// nullable strings
	for _, k := range []string{"storeName", "date"} {
		if v, ok := m[k]; ok {
			switch t := v.(type) {
			case string:
				s := strings.TrimSpace(t)
				if s == "" || strings.EqualFold(s, "null") {
					m[k] = nil
				} else {
					m[k] = s
				}
			case nil:
			default:
				drop(k, "type")
			}
		}
	}

	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}

	if items, ok := m["items"].([]any); ok {
		cleaned := make([]any, 0, len(items))
		for _, raw := range items {
			it, ok := raw.(map[string]any)
			if !ok {
				dropped = append(dropped, "items[](type)")
				continue
			}
			cleaned = append(cleaned, normalizeItem(it, &dropped))
		}
		m["items"] = cleaned
	}

	// strict additionalProperties friendliness
	allowed := map[string]struct{}{
		"storeName": {}, "date": {}, "items": {}, "total": {},
		"currency": {}, "confidence": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			drop(k, "unknown")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

func normalizeItem(it map[string]any, dropped *[]string) map[string]any {
	if v, ok := it["name"].(string); ok {
		it["name"] = strings.TrimSpace(v)
	}
	if v, ok := it["price"]; ok {
		if f, ok := coerceNumber(v); ok {
			it["price"] = f
		}
	}
	if v, ok := it["quantity"]; ok {
		switch t := v.(type) {
		case float64:
			it["quantity"] = int(t)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				it["quantity"] = n
			} else {
				delete(it, "quantity")
				*dropped = append(*dropped, "items[].quantity(type)")
			}
		case nil:
			delete(it, "quantity")
		}
	}
	allowed := map[string]struct{}{"name": {}, "price": {}, "quantity": {}}
	for k := range it {
		if _, ok := allowed[k]; !ok {
			delete(it, k)
			*dropped = append(*dropped, "items[]."+k+"(unknown)")
		}
	}
	return it
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
