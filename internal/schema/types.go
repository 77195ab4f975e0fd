package schema

// PropertyType is the semantic type of a collection property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeInt      PropertyType = "int"
	TypeFloat    PropertyType = "float"
	TypeBool     PropertyType = "bool"
	TypeDatetime PropertyType = "datetime"
	TypeJSON     PropertyType = "json"
	TypeEnum     PropertyType = "enum"
)

// validPropertyTypes lists every accepted PropertyType.
var validPropertyTypes = map[PropertyType]bool{
	TypeString:   true,
	TypeInt:      true,
	TypeFloat:    true,
	TypeBool:     true,
	TypeDatetime: true,
	TypeJSON:     true,
	TypeEnum:     true,
}

// PropertyDef describes one typed property of a collection.
type PropertyDef struct {
	// Name is the column name. Must match identifier charset rules.
	Name string `yaml:"name" json:"name"`

	// Type is the semantic type used for filter validation.
	Type PropertyType `yaml:"type" json:"type"`

	// Nullable permits NULL values in storage.
	Nullable bool `yaml:"nullable,omitempty" json:"nullable,omitempty"`

	// Default is the value assumed when a record omits the property.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Enum is the closed value domain for TypeEnum properties.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// JoinKind selects the SQL join operator for a JoinDef.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
)

// JoinDef declares a named relationship from one collection to another.
//
// LocalColumn may reference a field of another join using "alias.field"
// syntax, which allows join-on-a-join chains. The referenced alias must be
// activated earlier in the same query.
type JoinDef struct {
	// Alias names the join in query specs and field references.
	Alias string `yaml:"alias" json:"alias"`

	// Target is the joined collection's registered name.
	Target string `yaml:"target" json:"target"`

	// LocalColumn is the join key on the base collection (or on a
	// previously activated join, using "alias.field" syntax).
	LocalColumn string `yaml:"local" json:"local"`

	// ForeignColumn is the join key on the target collection.
	ForeignColumn string `yaml:"foreign" json:"foreign"`

	// Kind is the declared join operator. A query that activates any LEFT
	// join has every activated join coerced to LEFT; see querysql.
	Kind JoinKind `yaml:"kind" json:"kind"`
}

// CollectionSchema is the full static description of one collection.
type CollectionSchema struct {
	// Name is the registered collection name.
	Name string `yaml:"name" json:"name"`

	// Table is the backing SQL table identity.
	Table string `yaml:"table" json:"table"`

	// Properties lists the typed properties in declaration order.
	Properties []PropertyDef `yaml:"properties" json:"properties"`

	// PrimaryKey names the property used as the record identity.
	PrimaryKey string `yaml:"primary_key" json:"primary_key"`

	// Joins lists the declared relationships in declaration order.
	Joins []JoinDef `yaml:"joins,omitempty" json:"joins,omitempty"`

	// Searchable names the properties included in unqualified search.
	Searchable []string `yaml:"searchable,omitempty" json:"searchable,omitempty"`

	// MetaEnabled marks the collection as having rows in the generic
	// metadata store. Meta filters against a collection without it fail.
	MetaEnabled bool `yaml:"meta_enabled,omitempty" json:"meta_enabled,omitempty"`
}

// Property returns the property definition for name, if declared.
func (c *CollectionSchema) Property(name string) (PropertyDef, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// Join returns the join definition for alias, if declared.
func (c *CollectionSchema) Join(alias string) (JoinDef, bool) {
	for _, j := range c.Joins {
		if j.Alias == alias {
			return j, true
		}
	}
	return JoinDef{}, false
}

// IsSearchable reports whether name is in the searchable set.
func (c *CollectionSchema) IsSearchable(name string) bool {
	for _, s := range c.Searchable {
		if s == name {
			return true
		}
	}
	return false
}
