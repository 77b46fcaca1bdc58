package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/docclass"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// ReasonSchema marks a PermanentError caused by malformed model output.
const ReasonSchema = "schema"

// aliases maps keys models commonly use to the canonical field.
var aliases = map[string]model.Field{
	"items":    model.FieldLineItems,
	"total":    model.FieldTotalAmount,
	"subtotal": model.FieldSubtotalAmount,
	"tax":      model.FieldTaxAmount,
	"vendor":   model.FieldVendorName,
	"merchant": model.FieldStoreName,
}

// Validator checks and decodes model output for one class. It compiles its
// schema once and is safe for concurrent use.
type Validator struct {
	cfg    docclass.Config
	schema *jsonschema.Schema
}

// NewValidator compiles the schema for cfg.
func NewValidator(cfg docclass.Config) (*Validator, error) {
	b, err := json.Marshal(ForClass(cfg))
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, eris.Wrap(err, "schema: add resource")
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, eris.Wrap(err, "schema: compile")
	}
	return &Validator{cfg: cfg, schema: s}, nil
}

// Validate checks raw JSON against the schema without normalizing it.
func (v *Validator) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return eris.Wrap(err, "schema: unmarshal")
	}
	if err := v.schema.Validate(doc); err != nil {
		return eris.Wrap(err, "schema: json does not match schema")
	}
	return nil
}

// Decode extracts the JSON object from a model response, normalizes lenient
// values, validates it and converts it to a Record. Keys outside the class
// are ignored. Any failure is a PermanentError with reason "schema".
func (v *Validator) Decode(text string) (model.Record, error) {
	raw := CleanJSON(text)
	if !strings.HasPrefix(raw, "{") {
		return model.Record{}, permanent(eris.New("schema: no json object in response"))
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.Record{}, permanent(eris.Wrap(err, "schema: parse response"))
	}

	normalized, dropped := v.normalize(doc)
	if len(dropped) > 0 {
		zap.L().Debug("schema: dropped unusable values",
			zap.String("class", v.cfg.Name),
			zap.Strings("fields", dropped),
		)
	}

	if err := v.schema.Validate(normalized); err != nil {
		return model.Record{}, permanent(eris.Wrap(err, "schema: response does not match schema"))
	}

	b, err := json.Marshal(normalized)
	if err != nil {
		return model.Record{}, permanent(eris.Wrap(err, "schema: remarshal"))
	}
	var rec model.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Record{}, permanent(eris.Wrap(err, "schema: decode record"))
	}
	return rec, nil
}

// Decode is a convenience wrapper that compiles the class schema and decodes text.
func Decode(text string, cfg docclass.Config) (model.Record, error) {
	v, err := validators.get(cfg)
	if err != nil {
		return model.Record{}, err
	}
	return v.Decode(text)
}

func permanent(err error) error {
	return resilience.NewPermanentError(err, ReasonSchema)
}

// normalize keeps class fields only and coerces their values to the types
// the schema expects. Values that cannot be coerced are dropped.
func (v *Validator) normalize(doc map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(doc))
	var dropped []string

	for key, val := range doc {
		f, ok := model.ParseField(key)
		if !ok {
			if alias, isAlias := aliases[key]; isAlias {
				if _, taken := doc[alias.String()]; taken {
					continue
				}
				f = alias
			} else {
				continue
			}
		}
		if !v.cfg.HasField(f) {
			continue
		}
		if val == nil {
			continue
		}
		coerced, ok := coerce(f.Kind(), val)
		if !ok {
			dropped = append(dropped, f.String())
			continue
		}
		if coerced != nil {
			out[f.String()] = coerced
		}
	}
	return out, dropped
}

func coerce(kind model.FieldKind, val any) (any, bool) {
	switch kind {
	case model.KindAmount, model.KindRate:
		return coerceNumber(val)
	case model.KindItems:
		return coerceItems(val)
	case model.KindCurrency:
		s, ok := coerceText(val)
		if !ok || s == nil {
			return s, ok
		}
		return strings.ToUpper(s.(string)), true
	default:
		return coerceText(val)
	}
}

func coerceNumber(val any) (any, bool) {
	switch t := val.(type) {
	case float64:
		return t, true
	case string:
		if isNullString(t) {
			return nil, true
		}
		f, ok := ParseNumber(t)
		if !ok {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func coerceText(val any) (any, bool) {
	switch t := val.(type) {
	case string:
		s := strings.TrimSpace(t)
		if isNullString(s) {
			return nil, true
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return nil, false
	}
}

func coerceItems(val any) (any, bool) {
	list, ok := val.([]any)
	if !ok {
		return nil, false
	}
	items := make([]any, 0, len(list))
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item := make(map[string]any, 4)
		if d, ok := coerceText(obj["description"]); ok && d != nil {
			item["description"] = d
		}
		for _, k := range []string{"quantity", "unit_price", "total_price"} {
			if n, ok := coerceNumber(obj[k]); ok && n != nil {
				item[k] = n
			}
		}
		if len(item) > 0 {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, true
	}
	return items, true
}

// CleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// cache holds compiled validators keyed by class name and field set.
type cache struct {
	mu sync.Mutex
	m  map[string]*Validator
}

var validators = &cache{m: make(map[string]*Validator)}

func (c *cache) get(cfg docclass.Config) (*Validator, error) {
	parts := make([]string, 0, len(cfg.Fields)+1)
	parts = append(parts, cfg.Name)
	for _, f := range cfg.Fields {
		parts = append(parts, f.String())
	}
	key := strings.Join(parts, "|")

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[key]; ok {
		return v, nil
	}
	v, err := NewValidator(cfg)
	if err != nil {
		return nil, err
	}
	c.m[key] = v
	return v, nil
}
