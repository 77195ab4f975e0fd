package schema

import (
	"fmt"
	"strings"
)

// Registry is the process-wide collection metadata store.
//
// A Registry is built once at startup via Register calls and passed
// explicitly to the query engine. It is never mutated after registration,
// so concurrent readers need no synchronization.
type Registry struct {
	collections map[string]*CollectionSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*CollectionSchema),
	}
}

// Register validates and adds a collection definition.
//
// Registration fails with a *SchemaError (ErrCodeInvalidSchema) when the
// definition is internally inconsistent: bad identifiers, missing primary
// key, join targets that are not registered yet, or duplicate names.
// Register collections in dependency order so join targets exist first.
func (r *Registry) Register(cs CollectionSchema) error {
	if err := r.validate(&cs); err != nil {
		return err
	}
	r.collections[cs.Name] = &cs
	return nil
}

// MustRegister is Register that panics on error. For fixture setup.
func (r *Registry) MustRegister(cs CollectionSchema) {
	if err := r.Register(cs); err != nil {
		panic(err)
	}
}

// Collection returns the schema registered under name.
func (r *Registry) Collection(name string) (*CollectionSchema, error) {
	cs, ok := r.collections[name]
	if !ok {
		return nil, &SchemaError{
			Code:       ErrCodeUnknownCollection,
			Message:    "collection not registered",
			Collection: name,
		}
	}
	return cs, nil
}

// Names returns the registered collection names in unspecified order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	return names
}

func (r *Registry) validate(cs *CollectionSchema) error {
	invalid := func(format string, args ...any) error {
		return &SchemaError{
			Code:       ErrCodeInvalidSchema,
			Message:    fmt.Sprintf(format, args...),
			Collection: cs.Name,
		}
	}

	if !ValidIdentifier(cs.Name) {
		return invalid("invalid collection name %q", cs.Name)
	}
	if !ValidIdentifier(cs.Table) {
		return invalid("invalid table name %q", cs.Table)
	}
	if _, exists := r.collections[cs.Name]; exists {
		return invalid("collection already registered")
	}
	if len(cs.Properties) == 0 {
		return invalid("collection has no properties")
	}

	seen := make(map[string]bool, len(cs.Properties))
	for _, p := range cs.Properties {
		if !ValidIdentifier(p.Name) {
			return invalid("invalid property name %q", p.Name)
		}
		// "__" is the alias__field reference separator; a property
		// containing it would be unreachable in filters.
		if strings.Contains(p.Name, "__") {
			return invalid("property name %q contains reserved separator \"__\"", p.Name)
		}
		if seen[p.Name] {
			return invalid("duplicate property %q", p.Name)
		}
		seen[p.Name] = true
		if !validPropertyTypes[p.Type] {
			return invalid("property %q has unknown type %q", p.Name, p.Type)
		}
		if p.Type == TypeEnum && len(p.Enum) == 0 {
			return invalid("enum property %q has empty domain", p.Name)
		}
	}

	if cs.PrimaryKey == "" {
		return invalid("missing primary key")
	}
	if !seen[cs.PrimaryKey] {
		return invalid("primary key %q is not a declared property", cs.PrimaryKey)
	}

	for _, s := range cs.Searchable {
		if !seen[s] {
			return invalid("searchable field %q is not a declared property", s)
		}
	}

	aliases := make(map[string]bool, len(cs.Joins))
	for _, j := range cs.Joins {
		if !ValidIdentifier(j.Alias) {
			return invalid("invalid join alias %q", j.Alias)
		}
		if strings.Contains(j.Alias, "__") {
			return invalid("join alias %q contains reserved separator \"__\"", j.Alias)
		}
		if aliases[j.Alias] {
			return invalid("duplicate join alias %q", j.Alias)
		}
		aliases[j.Alias] = true
		if j.Kind != JoinInner && j.Kind != JoinLeft && j.Kind != JoinRight {
			return invalid("join %q has unknown kind %q", j.Alias, j.Kind)
		}
		target, ok := r.collections[j.Target]
		if !ok && j.Target != cs.Name {
			return invalid("join %q targets unregistered collection %q", j.Alias, j.Target)
		}
		if ok {
			if _, found := target.Property(j.ForeignColumn); !found {
				return invalid("join %q foreign column %q not found on %q", j.Alias, j.ForeignColumn, j.Target)
			}
		}
		// LocalColumn may be "alias.field" for chained joins; the alias is
		// checked at activation time since it depends on activation order.
		if first, rest := SplitRef(j.LocalColumn); rest == "" {
			if !seen[first] {
				return invalid("join %q local column %q not found", j.Alias, first)
			}
		}
	}

	return nil
}

// ValidIdentifier reports whether s is safe to use as a quoted SQL
// identifier: [A-Za-z_][A-Za-z0-9_]*. Values never pass through this path;
// identifiers do, so the charset is deliberately narrow.
func ValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
