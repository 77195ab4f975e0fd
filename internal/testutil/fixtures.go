// Package testutil provides shared fixtures for engine and harness tests:
// a canonical registry of collections and helpers for seeding an in-memory
// store.
package testutil

import "github.com/roach88/quarry/internal/schema"

// FixtureRegistry builds the registry used across package tests: users,
// orders (meta-enabled, joined to users) and items (joined to orders,
// enabling join-on-a-join through orders to users).
func FixtureRegistry() *schema.Registry {
	r := schema.NewRegistry()

	r.MustRegister(schema.CollectionSchema{
		Name:  "users",
		Table: "users",
		Properties: []schema.PropertyDef{
			{Name: "id", Type: schema.TypeInt},
			{Name: "email", Type: schema.TypeString},
			{Name: "name", Type: schema.TypeString},
			{Name: "country", Type: schema.TypeString, Nullable: true},
		},
		PrimaryKey: "id",
		Searchable: []string{"email", "name"},
	})

	r.MustRegister(schema.CollectionSchema{
		Name:  "orders",
		Table: "orders",
		Properties: []schema.PropertyDef{
			{Name: "id", Type: schema.TypeInt},
			{Name: "user_id", Type: schema.TypeInt},
			{Name: "status", Type: schema.TypeEnum, Enum: []string{"paid", "due", "void"}},
			{Name: "amount", Type: schema.TypeFloat},
			{Name: "created_at", Type: schema.TypeDatetime},
		},
		PrimaryKey: "id",
		Joins: []schema.JoinDef{
			{Alias: "u", Target: "users", LocalColumn: "user_id", ForeignColumn: "id", Kind: schema.JoinInner},
		},
		Searchable:  []string{"status"},
		MetaEnabled: true,
	})

	r.MustRegister(schema.CollectionSchema{
		Name:  "items",
		Table: "order_items",
		Properties: []schema.PropertyDef{
			{Name: "id", Type: schema.TypeInt},
			{Name: "order_id", Type: schema.TypeInt},
			{Name: "sku", Type: schema.TypeString},
			{Name: "qty", Type: schema.TypeInt},
			{Name: "price", Type: schema.TypeFloat},
		},
		PrimaryKey: "id",
		Joins: []schema.JoinDef{
			{Alias: "o", Target: "orders", LocalColumn: "order_id", ForeignColumn: "id", Kind: schema.JoinInner},
			{Alias: "buyer", Target: "users", LocalColumn: "o.user_id", ForeignColumn: "id", Kind: schema.JoinLeft},
		},
		Searchable: []string{"sku"},
	})

	return r
}
