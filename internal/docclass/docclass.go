// Package docclass holds per-document-class extraction configuration.
package docclass

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
)

// Tier names in cascade order.
const (
	TierPrimary   = "primary"
	TierSecondary = "secondary"
	TierTertiary  = "tertiary"
)

// TierConfig selects the backend and model for one tier.
type TierConfig struct {
	Name        string  `yaml:"name" json:"name"`
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// CriticalField is a field whose absence costs Penalty points. Any of the
// Alternates being present also satisfies the slot.
type CriticalField struct {
	Field      model.Field   `yaml:"field" json:"field"`
	Penalty    int           `yaml:"penalty" json:"penalty"`
	Alternates []model.Field `yaml:"alternates,omitempty" json:"alternates,omitempty"`
	// RequireValid counts a present but invalid value as missing.
	RequireValid bool `yaml:"require_valid" json:"require_valid"`
	// NonZero counts a zero amount as missing.
	NonZero bool `yaml:"non_zero" json:"non_zero"`
}

// OptionalField is a non-critical field whose absence is reported as an issue.
type OptionalField struct {
	Field   model.Field `yaml:"field" json:"field"`
	Penalty int         `yaml:"penalty" json:"penalty"`
}

// Config is the immutable extraction configuration for one document class.
// It is loaded once and shared across extractions.
type Config struct {
	Name   string        `yaml:"name" json:"name"`
	Fields []model.Field `yaml:"fields" json:"fields"`
	Tiers  []TierConfig  `yaml:"tiers" json:"tiers"`

	// NameField and NameMinLength drive the confidence bonus for a complete
	// party name (vendor on invoices, store on receipts).
	NameField     model.Field `yaml:"name_field" json:"name_field"`
	NameMinLength int         `yaml:"name_min_length" json:"name_min_length"`

	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	Retries        int           `yaml:"retries" json:"retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`

	// Pass 3 settings.
	FieldTimeoutCritical time.Duration `yaml:"field_timeout_critical" json:"field_timeout_critical"`
	FieldTimeoutOther    time.Duration `yaml:"field_timeout_other" json:"field_timeout_other"`
	FieldRetries         int           `yaml:"field_retries" json:"field_retries"`
	FieldRetryBaseDelay  time.Duration `yaml:"field_retry_base_delay" json:"field_retry_base_delay"`
	FieldConcurrency     int           `yaml:"field_concurrency" json:"field_concurrency"`
	CriticalPriority     int           `yaml:"critical_priority" json:"critical_priority"`

	FieldPriority     map[model.Field]int `yaml:"field_priority" json:"field_priority"`
	Critical          []CriticalField     `yaml:"critical" json:"critical"`
	ImportantOptional []OptionalField     `yaml:"important_optional" json:"important_optional"`

	InvalidPenalty     int `yaml:"invalid_penalty" json:"invalid_penalty"`
	ConsistencyPenalty int `yaml:"consistency_penalty" json:"consistency_penalty"`
	QualityThreshold   int `yaml:"quality_threshold" json:"quality_threshold"`

	// Tolerance is the absolute money tolerance for arithmetic checks.
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
	// RateTolerance is the tax rate tolerance in percentage points.
	RateTolerance float64 `yaml:"rate_tolerance" json:"rate_tolerance"`
	// RoundingFixRatio bounds a discrepancy, as a fraction of the stated
	// amount, below which a recalculated value is proposed as a fix.
	RoundingFixRatio float64 `yaml:"rounding_fix_ratio" json:"rounding_fix_ratio"`
	// RateMatchRatio bounds how far a rate-derived total may drift from the
	// stated total before a derived tax amount is proposed.
	RateMatchRatio float64 `yaml:"rate_match_ratio" json:"rate_match_ratio"`
	// ConfidenceBand is the confidence gap under which merges use per-field rules.
	ConfidenceBand float64 `yaml:"confidence_band" json:"confidence_band"`
}

// Clone returns a deep copy so overlays never mutate shared defaults.
func (c Config) Clone() Config {
	out := c
	out.Fields = slices.Clone(c.Fields)
	out.Tiers = slices.Clone(c.Tiers)
	out.FieldPriority = maps.Clone(c.FieldPriority)
	out.Critical = make([]CriticalField, len(c.Critical))
	for i, cf := range c.Critical {
		cf.Alternates = slices.Clone(cf.Alternates)
		out.Critical[i] = cf
	}
	out.ImportantOptional = slices.Clone(c.ImportantOptional)
	return out
}

// CriticalFields returns the names of the critical fields.
func (c Config) CriticalFields() []model.Field {
	out := make([]model.Field, 0, len(c.Critical))
	for _, cf := range c.Critical {
		out = append(out, cf.Field)
	}
	return out
}

// HasField reports whether f is part of the class schema.
func (c Config) HasField(f model.Field) bool {
	return slices.Contains(c.Fields, f)
}

// Priority returns the configured importance of f, 0 when unset.
func (c Config) Priority(f model.Field) int {
	return c.FieldPriority[f]
}

// Tier returns the tier config with the given name.
func (c Config) Tier(name string) (TierConfig, bool) {
	for _, t := range c.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return TierConfig{}, false
}

// TiersFrom returns the tiers starting at the named one, in cascade order.
func (c Config) TiersFrom(name string) []TierConfig {
	for i, t := range c.Tiers {
		if t.Name == name {
			return slices.Clone(c.Tiers[i:])
		}
	}
	return nil
}

// Validate checks the config for values the pipeline cannot work with.
func (c Config) Validate() error {
	if c.Name == "" {
		return eris.New("docclass: name is required")
	}
	if len(c.Tiers) == 0 {
		return eris.Errorf("docclass: %s: at least one tier is required", c.Name)
	}
	for _, t := range c.Tiers {
		if t.Provider == "" || t.Model == "" {
			return eris.Errorf("docclass: %s: tier %q needs provider and model", c.Name, t.Name)
		}
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		return eris.Errorf("docclass: %s: quality_threshold %d outside 0..100", c.Name, c.QualityThreshold)
	}
	if c.RoundingFixRatio < 0 || c.RoundingFixRatio > 1 {
		return eris.Errorf("docclass: %s: rounding_fix_ratio %.3f outside 0..1", c.Name, c.RoundingFixRatio)
	}
	for _, f := range c.Fields {
		if _, ok := model.ParseField(string(f)); !ok {
			return eris.Errorf("docclass: %s: unknown field %q", c.Name, f)
		}
	}
	for _, cf := range c.Critical {
		if !c.HasField(cf.Field) {
			return eris.Errorf("docclass: %s: critical field %q not in schema", c.Name, cf.Field)
		}
	}
	return nil
}

// Registry maps class names to their configs.
type Registry struct {
	classes map[string]Config
}

// NewRegistry creates a registry holding the given configs.
func NewRegistry(cfgs ...Config) *Registry {
	r := &Registry{classes: make(map[string]Config, len(cfgs))}
	for _, c := range cfgs {
		r.Register(c)
	}
	return r
}

// Defaults returns a registry with the built-in invoice and receipt classes.
func Defaults() *Registry {
	return NewRegistry(Invoice(), Receipt())
}

// Register adds or replaces a class.
func (r *Registry) Register(cfg Config) {
	r.classes[cfg.Name] = cfg.Clone()
}

// Get returns the config for the named class.
func (r *Registry) Get(name string) (Config, error) {
	c, ok := r.classes[name]
	if !ok {
		return Config{}, eris.Errorf("docclass: unknown class %q", name)
	}
	return c.Clone(), nil
}

// Names returns the registered class names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Each calls fn for every class in name order.
func (r *Registry) Each(fn func(Config)) {
	for _, n := range r.Names() {
		fn(r.classes[n].Clone())
	}
}
