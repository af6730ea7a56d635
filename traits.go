package docmap

// Trait marks a schema capability. Traits form an acyclic graph through
// TraitBases; a schema records the linearized set computed at build time.
type Trait interface {
	TraitName() string
	TraitBases() []Trait
}

// Root is the universal base trait. Every trait descends from it and it is
// never recorded on a schema.
var Root Trait = rootTrait{}

type rootTrait struct{}

func (rootTrait) TraitName() string   { return "root" }
func (rootTrait) TraitBases() []Trait { return nil }

// DotNotation enables dotted-path access on documents of the schema.
var DotNotation Trait = dotNotationTrait{}

type dotNotationTrait struct{}

func (dotNotationTrait) TraitName() string   { return "dot_notation" }
func (dotNotationTrait) TraitBases() []Trait { return []Trait{Root} }

// NewTrait declares a named trait with optional base traits.
func NewTrait(name string, bases ...Trait) Trait {
	return &customTrait{name: name, bases: bases}
}

type customTrait struct {
	name  string
	bases []Trait
}

func (t *customTrait) TraitName() string   { return t.name }
func (t *customTrait) TraitBases() []Trait { return t.bases }

// linearizeTraits flattens declared traits depth-first in declaration order,
// keeping the first occurrence of each name and skipping the root trait.
// Diamond graphs therefore resolve deterministically with each ancestor
// appearing once.
func linearizeTraits(declared []Trait) []Trait {
	seen := make(map[string]bool)
	ordered := make([]Trait, 0, len(declared))
	var visit func(t Trait)
	visit = func(t Trait) {
		if t == nil {
			return
		}
		name := t.TraitName()
		if name == "" || name == Root.TraitName() || seen[name] {
			return
		}
		seen[name] = true
		ordered = append(ordered, t)
		for _, base := range t.TraitBases() {
			visit(base)
		}
	}
	for _, t := range declared {
		visit(t)
	}
	return ordered
}

func containsTrait(traits []Trait, name string) bool {
	for _, t := range traits {
		if t != nil && t.TraitName() == name {
			return true
		}
	}
	return false
}
