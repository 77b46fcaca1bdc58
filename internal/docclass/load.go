package docclass

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk layout of a class profile file:
//
//	classes:
//	  invoice:
//	    quality_threshold: 75
//	  credit_note:
//	    extends: invoice
//	    tiers: [...]
type profileFile struct {
	Classes map[string]yaml.Node `yaml:"classes"`
}

// LoadFile reads class profiles from a YAML file and overlays them on base.
// A profile named after an existing class overrides only the keys it sets.
// New classes start from the class named by "extends" (default "invoice").
// Lists replace the inherited list; maps merge key by key.
func LoadFile(path string, base *Registry) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "docclass: read profiles %s", path)
	}
	return Load(data, base)
}

// Load is LoadFile over an in-memory document.
func Load(data []byte, base *Registry) (*Registry, error) {
	if base == nil {
		base = Defaults()
	}

	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrap(err, "docclass: parse profiles")
	}

	out := NewRegistry()
	base.Each(out.Register)

	// Classes without "extends" go first so derived classes see the
	// overridden parent.
	type entry struct {
		name    string
		extends string
		node    yaml.Node
	}
	entries := make([]entry, 0, len(pf.Classes))
	for name, node := range pf.Classes {
		var hdr struct {
			Extends string `yaml:"extends"`
		}
		if err := node.Decode(&hdr); err != nil {
			return nil, eris.Wrapf(err, "docclass: parse class %s", name)
		}
		entries = append(entries, entry{name: name, extends: hdr.Extends, node: node})
	}
	sort.Slice(entries, func(i, j int) bool {
		if (entries[i].extends == "") != (entries[j].extends == "") {
			return entries[i].extends == ""
		}
		return entries[i].name < entries[j].name
	})

	for _, e := range entries {
		parent := e.extends
		if parent == "" {
			parent = e.name
			if _, ok := out.classes[e.name]; !ok {
				parent = "invoice"
			}
		}
		cfg, err := out.Get(parent)
		if err != nil {
			return nil, eris.Wrapf(err, "docclass: class %s extends", e.name)
		}

		if err := e.node.Decode(&cfg); err != nil {
			return nil, eris.Wrapf(err, "docclass: decode class %s", e.name)
		}
		cfg.Name = e.name
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		out.Register(cfg)
	}

	return out, nil
}
