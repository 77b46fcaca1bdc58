// Package schema builds the JSON schema a model response must satisfy and
// decodes lenient model output into a typed record.
package schema

import (
	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
)

// ForClass returns the JSON schema for a class as a generic map. Every
// property is nullable and none is required: an absent value is a quality
// problem, not a malformed response.
func ForClass(cfg docclass.Config) map[string]any {
	props := make(map[string]any, len(cfg.Fields))
	for _, f := range cfg.Fields {
		props[f.String()] = propFor(f.Kind())
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
}

// ForFields returns a schema restricted to the given fields. Field-level
// calls use it to describe the single key they expect back.
func ForFields(fields ...model.Field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.String()] = propFor(f.Kind())
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
}

func propFor(k model.FieldKind) map[string]any {
	switch k {
	case model.KindAmount, model.KindRate:
		return nullable("number", nil)
	case model.KindDate:
		return nullable("string", map[string]any{"description": "ISO date YYYY-MM-DD"})
	case model.KindCurrency:
		return nullable("string", map[string]any{"description": "ISO 4217 code"})
	case model.KindItems:
		return map[string]any{
			"type":  []string{"array", "null"},
			"items": lineItemSchema(),
		}
	default:
		return nullable("string", nil)
	}
}

func lineItemSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": nullable("string", nil),
			"quantity":    nullable("number", nil),
			"unit_price":  nullable("number", nil),
			"total_price": nullable("number", nil),
		},
	}
}

func nullable(typ string, extra map[string]any) map[string]any {
	m := map[string]any{"type": []string{typ, "null"}}
	for k, v := range extra {
		m[k] = v
	}
	return m
}
